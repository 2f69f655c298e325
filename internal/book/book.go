// Package book maintains the per-(instrument, side, live/pending)
// intrusive doubly-linked order lists in price-time priority, and the
// epoch-gated promotion from pending to live (spec.md §4.2).
package book

import "github.com/percolator/slab/internal/slab"

// Insert splices order orderIdx into the (side, state) list at its
// correct price-time position: buy orders rank by strictly higher price,
// ties broken by lower order_id; sell orders the mirror image
// (spec.md §4.2, invariant 3).
func Insert(s *slab.Slab, instrumentIdx uint16, orderIdx uint32, side slab.Side, price uint64, state slab.OrderState) slab.Error {
	inst, ok := s.GetInstrument(instrumentIdx)
	if !ok {
		return slab.ErrInvalidInstrument
	}
	order, ok := s.Orders.Get(orderIdx)
	if !ok {
		return slab.ErrOrderNotFound
	}

	head := inst.BookHead(side, state)

	if *head == slab.NoIndex {
		*head = orderIdx
		order.Next = slab.NoIndex
		order.Prev = slab.NoIndex
		s.Header.IncrementBookSeqno()
		return slab.OK
	}

	currIdx := *head
	prevIdx := slab.NoIndex

	for currIdx != slab.NoIndex {
		curr, ok := s.Orders.Get(currIdx)
		if !ok {
			return slab.ErrBookCorrupted
		}

		var insertBefore bool
		switch side {
		case slab.Buy:
			insertBefore = price > curr.Price || (price == curr.Price && order.OrderID < curr.OrderID)
		case slab.Sell:
			insertBefore = price < curr.Price || (price == curr.Price && order.OrderID < curr.OrderID)
		}
		if insertBefore {
			break
		}

		prevIdx = currIdx
		currIdx = curr.Next
	}

	order.Next = currIdx
	order.Prev = prevIdx

	if prevIdx == slab.NoIndex {
		*head = orderIdx
	} else if prev, ok := s.Orders.Get(prevIdx); ok {
		prev.Next = orderIdx
	} else {
		return slab.ErrBookCorrupted
	}

	if currIdx != slab.NoIndex {
		if next, ok := s.Orders.Get(currIdx); ok {
			next.Prev = orderIdx
		} else {
			return slab.ErrBookCorrupted
		}
	}

	s.Header.IncrementBookSeqno()
	return slab.OK
}

// Remove unlinks orderIdx from whichever of the four lists its (side,
// state) indicates. The order record itself is left intact (caller frees
// it separately if fully filled).
func Remove(s *slab.Slab, instrumentIdx uint16, orderIdx uint32) slab.Error {
	order, ok := s.Orders.Get(orderIdx)
	if !ok {
		return slab.ErrOrderNotFound
	}
	inst, ok := s.GetInstrument(instrumentIdx)
	if !ok {
		return slab.ErrInvalidInstrument
	}

	side, state := order.Side, order.State
	prev, next := order.Prev, order.Next
	head := inst.BookHead(side, state)

	if prev == slab.NoIndex {
		*head = next
	} else if prevOrder, ok := s.Orders.Get(prev); ok {
		prevOrder.Next = next
	} else {
		return slab.ErrBookCorrupted
	}

	if next != slab.NoIndex {
		if nextOrder, ok := s.Orders.Get(next); ok {
			nextOrder.Prev = prev
		} else {
			return slab.ErrBookCorrupted
		}
	}

	s.Header.IncrementBookSeqno()
	return slab.OK
}

// PromotePending moves every pending order with EligibleEpoch <= epoch to
// the live book, for both sides of instrumentIdx. It repeatedly re-scans
// the pending list from its head rather than collecting a transient
// worklist — the original source notes two variants exist upstream; the
// allocation-free single-pass-search variant is canonical here
// (spec.md §4.2, §9).
func PromotePending(s *slab.Slab, instrumentIdx uint16, epoch uint16) slab.Error {
	if err := promoteSide(s, instrumentIdx, slab.Buy, epoch); err != slab.OK {
		return err
	}
	return promoteSide(s, instrumentIdx, slab.Sell, epoch)
}

func promoteSide(s *slab.Slab, instrumentIdx uint16, side slab.Side, epoch uint16) slab.Error {
	for {
		inst, ok := s.GetInstrument(instrumentIdx)
		if !ok {
			return slab.ErrInvalidInstrument
		}
		pendingHead := *inst.BookHead(side, slab.Pending)

		var eligible uint32 = slab.NoIndex
		var eligiblePrice uint64
		curr := pendingHead
		for curr != slab.NoIndex {
			order, ok := s.Orders.Get(curr)
			if !ok {
				return slab.ErrBookCorrupted
			}
			if order.EligibleEpoch <= epoch {
				eligible = curr
				eligiblePrice = order.Price
				break
			}
			curr = order.Next
		}

		if eligible == slab.NoIndex {
			return slab.OK
		}

		if err := Remove(s, instrumentIdx, eligible); err != slab.OK {
			return err
		}
		order, ok := s.Orders.Get(eligible)
		if !ok {
			return slab.ErrBookCorrupted
		}
		order.State = slab.Live
		if err := Insert(s, instrumentIdx, eligible, side, eligiblePrice, slab.Live); err != slab.OK {
			return err
		}
	}
}

// BestPrices returns the best live bid and ask, each ok=false if that
// side's live book is empty.
func BestPrices(s *slab.Slab, instrumentIdx uint16) (bidPx uint64, bidOk bool, askPx uint64, askOk bool, err slab.Error) {
	inst, ok := s.GetInstrument(instrumentIdx)
	if !ok {
		return 0, false, 0, false, slab.ErrInvalidInstrument
	}
	if inst.BidsLive != slab.NoIndex {
		if o, ok := s.Orders.Get(inst.BidsLive); ok {
			bidPx, bidOk = o.Price, true
		}
	}
	if inst.AsksLive != slab.NoIndex {
		if o, ok := s.Orders.Get(inst.AsksLive); ok {
			askPx, askOk = o.Price, true
		}
	}
	return bidPx, bidOk, askPx, askOk, slab.OK
}

// BatchOpen advances the instrument's epoch and promotes eligible pending
// orders (spec.md §4.6). currentTs must be > 0.
func BatchOpen(s *slab.Slab, instrumentIdx uint16, currentTs uint64) slab.Error {
	if currentTs == 0 {
		return slab.ErrInvalidPrice
	}
	inst, ok := s.GetInstrument(instrumentIdx)
	if !ok {
		return slab.ErrInvalidInstrument
	}
	inst.BatchOpenMs = currentTs
	inst.Epoch++
	return PromotePending(s, instrumentIdx, inst.Epoch)
}
