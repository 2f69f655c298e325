// Package reserve implements the taker-side reservation walk: lock slices
// of resting contra orders and compute a deterministic price quote bound
// to the book's current seqno (spec.md §4.3).
package reserve

import (
	"github.com/holiman/uint256"
	"github.com/percolator/slab/internal/fixedmath"
	"github.com/percolator/slab/internal/slab"
)

// Result is the ReserveResult of spec.md §4.3 step 6 / §6.
type Result struct {
	HoldID    uint64
	VwapPx    uint64
	WorstPx   uint64
	MaxCharge uint256.Int
	ExpiryMs  uint64
	BookSeqno uint64
	FilledQty uint64
}

// Input bundles a Reserve call's caller-supplied arguments.
type Input struct {
	AccountIdx      uint32
	InstrumentIdx   uint16
	Side            slab.Side // taker side
	Qty             uint64
	LimitPx         uint64
	TTLMs           uint64
	CommitmentHash  [32]byte
	RouteID         uint64
}

// Reserve walks the contra side's live book and locks slices, without
// executing anything. Partial fills are the normal success case — the
// caller compares FilledQty against the requested Qty; only
// invariant/pool/validation failures return a non-OK error, and on any
// such error the Slab is left exactly as it was (spec.md §4.3 atomicity
// rule: slice allocation failures mid-walk unwind).
func Reserve(s *slab.Slab, in Input) (Result, slab.Error) {
	inst, ok := s.GetInstrument(in.InstrumentIdx)
	if !ok {
		return Result{}, slab.ErrInvalidInstrument
	}
	tick, lot, contractSize := inst.Tick, inst.Lot, inst.ContractSize

	if !fixedmath.IsTickAligned(in.LimitPx, tick) {
		return Result{}, slab.ErrPriceNotAligned
	}
	if !fixedmath.IsLotAligned(in.Qty, lot) {
		return Result{}, slab.ErrQuantityNotAligned
	}
	if in.Qty == 0 {
		return Result{}, slab.ErrInvalidQuantity
	}

	ttl := in.TTLMs
	if ttl == 0 {
		return Result{}, slab.ErrInvalidQuantity
	}
	if ttl > slab.MaxTTLMs {
		ttl = slab.MaxTTLMs
	}

	resvIdx, ok := s.Reservations.Alloc()
	if !ok {
		return Result{}, slab.ErrPoolFull
	}

	contraSide := in.Side.Opposite()

	filledQty, totalNotional, worstPx, sliceHead, allocated, walkErr :=
		walkAndReserve(s, in.InstrumentIdx, contraSide, in.Qty, in.LimitPx, resvIdx)

	if walkErr != slab.OK {
		// Unwind: release every slice we managed to allocate and its
		// matching order.ReservedQty bump, then free the reservation slot.
		unwindSlices(s, sliceHead, allocated)
		s.Reservations.Free(resvIdx)
		return Result{}, walkErr
	}

	holdID := s.Header.NextHoldIDAssign()

	var vwapPx uint64
	if filledQty > 0 {
		vwapPx = fixedmath.CalculateVWAP(totalNotional, filledQty)
	} else {
		vwapPx = in.LimitPx
		worstPx = in.LimitPx
	}

	maxCharge := fixedmath.CalculateMaxCharge(filledQty, worstPx, contractSize, s.Header.TakerFeeBps)

	bookSeqno := s.Header.BookSeqno
	currentTs := s.Header.CurrentTs
	expiryMs := currentTs + ttl

	resv, _ := s.Reservations.Get(resvIdx)
	*resv = slab.Reservation{
		HoldID:         holdID,
		RouteID:        in.RouteID,
		AccountIdx:     in.AccountIdx,
		InstrumentIdx:  in.InstrumentIdx,
		Side:           in.Side,
		Qty:            filledQty,
		VwapPx:         vwapPx,
		WorstPx:        worstPx,
		MaxCharge:      maxCharge,
		CommitmentHash: in.CommitmentHash,
		BookSeqno:      bookSeqno,
		ExpiryMs:       expiryMs,
		SliceHead:      sliceHead,
		Committed:      false,
	}

	return Result{
		HoldID:    holdID,
		VwapPx:    vwapPx,
		WorstPx:   worstPx,
		MaxCharge: maxCharge,
		ExpiryMs:  expiryMs,
		BookSeqno: bookSeqno,
		FilledQty: filledQty,
	}, slab.OK
}

// walkAndReserve walks the contra live book from its head, locking slices
// against each crossing order until qty is filled or the book no longer
// crosses limitPx (spec.md §4.3 step 2). allocated records every slice
// index created, in walk order, so a mid-walk pool-full can be unwound.
func walkAndReserve(s *slab.Slab, instrumentIdx uint16, side slab.Side, qty, limitPx uint64, _resvIdx uint32) (
	filledQty uint64, totalNotional uint256.Int, worstPx uint64, sliceHead uint32, allocated []uint32, err slab.Error,
) {
	inst, ok := s.GetInstrument(instrumentIdx)
	if !ok {
		return 0, uint256.Int{}, 0, slab.NoIndex, nil, slab.ErrInvalidInstrument
	}
	head := *inst.BookHead(side, slab.Live)

	qtyLeft := qty
	sliceHead = slab.NoIndex
	sliceTail := slab.NoIndex
	worstPx = limitPx

	currIdx := head
	for currIdx != slab.NoIndex && qtyLeft > 0 {
		order, ok := s.Orders.Get(currIdx)
		if !ok {
			return 0, uint256.Int{}, 0, slab.NoIndex, allocated, slab.ErrBookCorrupted
		}

		var crosses bool
		switch side {
		case slab.Buy:
			crosses = order.Price <= limitPx
		case slab.Sell:
			crosses = order.Price >= limitPx
		}
		if !crosses {
			break
		}

		available := order.Available()
		if available == 0 {
			currIdx = order.Next
			continue
		}

		take := fixedmath.Min64(qtyLeft, available)

		sliceIdx, ok := s.Slices.Alloc()
		if !ok {
			return 0, uint256.Int{}, 0, slab.NoIndex, allocated, slab.ErrPoolFull
		}
		allocated = append(allocated, sliceIdx)

		slice, _ := s.Slices.Get(sliceIdx)
		*slice = slab.Slice{OrderIdx: currIdx, Qty: take, Next: slab.NoIndex}

		if sliceHead == slab.NoIndex {
			sliceHead = sliceIdx
		} else if tail, ok := s.Slices.Get(sliceTail); ok {
			tail.Next = sliceIdx
		}
		sliceTail = sliceIdx

		order.ReservedQty += take

		qtyLeft -= take
		contrib := fixedmath.MulU64(take, order.Price)
		totalNotional.Add(&totalNotional, &contrib)
		worstPx = order.Price

		currIdx = order.Next
	}

	filledQty = qty - qtyLeft
	return filledQty, totalNotional, worstPx, sliceHead, allocated, slab.OK
}

// unwindSlices releases every slice in allocated: decrements the
// referenced order's ReservedQty and frees the slice slot. Slices are freed
// in reverse allocation order, which puts the slice pool's freelist back
// exactly as it was before the walk. Used only on the mid-walk failure
// path, where the reservation must never become observable (spec.md §4.3
// atomicity rule).
func unwindSlices(s *slab.Slab, _sliceHead uint32, allocated []uint32) {
	for i := len(allocated) - 1; i >= 0; i-- {
		idx := allocated[i]
		slice, ok := s.Slices.Get(idx)
		if !ok {
			continue
		}
		if order, ok := s.Orders.Get(slice.OrderIdx); ok {
			order.ReservedQty = fixedmath.SatSubU64(order.ReservedQty, slice.Qty)
		}
		s.Slices.Free(idx)
	}
}
