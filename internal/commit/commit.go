// Package commit executes a previously-reserved hold at its locked prices,
// and implements Cancel, the hold's no-execution release path
// (spec.md §4.4).
package commit

import (
	"github.com/holiman/uint256"
	"github.com/percolator/slab/internal/book"
	"github.com/percolator/slab/internal/fixedmath"
	"github.com/percolator/slab/internal/slab"
)

// Result is the CommitResult of spec.md §4.4 / §6.
type Result struct {
	FilledQty   uint64
	AvgPrice    uint64
	TotalFee    uint256.Int
	TotalDebit  uint256.Int
}

// Commit finds the reservation with the given hold_id, validates it is
// neither expired nor already committed, executes every locked slice at
// its order's resting price, updates both sides' positions, and frees the
// reservation's slices and then the reservation slot itself. Execution always proceeds slice-by-slice in the
// order the walk originally locked them (spec.md §4.4 step 3).
func Commit(s *slab.Slab, holdID uint64, currentTs uint64) (Result, slab.Error) {
	resvIdx, found := findReservation(s, holdID)
	if !found {
		return Result{}, slab.ErrReservationNotFound
	}
	resv, ok := s.Reservations.Get(resvIdx)
	if !ok {
		return Result{}, slab.ErrReservationNotFound
	}

	if currentTs > resv.ExpiryMs {
		return Result{}, slab.ErrReservationExpired
	}
	if resv.Committed {
		return Result{}, slab.ErrInvalidReservation
	}

	accountIdx := resv.AccountIdx
	instrumentIdx := resv.InstrumentIdx
	side := resv.Side
	sliceHead := resv.SliceHead

	filledQty, totalNotional, totalFee, err := executeSlices(s, sliceHead, accountIdx, instrumentIdx, side, currentTs)
	if err != slab.OK {
		return Result{}, err
	}

	var avgPrice uint64
	if filledQty > 0 {
		avgPrice = fixedmath.CalculateVWAP(totalNotional, filledQty)
	}

	var totalDebit uint256.Int
	totalDebit.Add(&totalNotional, &totalFee)

	resv, _ = s.Reservations.Get(resvIdx)
	resv.Committed = true

	if err := freeSlices(s, sliceHead); err != slab.OK {
		return Result{}, err
	}
	s.Reservations.Free(resvIdx)

	return Result{
		FilledQty:  filledQty,
		AvgPrice:   avgPrice,
		TotalFee:   totalFee,
		TotalDebit: totalDebit,
	}, slab.OK
}

// Cancel releases every slice a reservation holds without executing
// anything, and frees the reservation slot. Committed reservations cannot
// be canceled (spec.md §4.4).
func Cancel(s *slab.Slab, holdID uint64) slab.Error {
	resvIdx, found := findReservation(s, holdID)
	if !found {
		return slab.ErrReservationNotFound
	}
	resv, ok := s.Reservations.Get(resvIdx)
	if !ok {
		return slab.ErrReservationNotFound
	}
	if resv.Committed {
		return slab.ErrInvalidReservation
	}

	sliceHead := resv.SliceHead
	if err := freeSlices(s, sliceHead); err != slab.OK {
		return err
	}
	s.Reservations.Free(resvIdx)
	return slab.OK
}

func executeSlices(s *slab.Slab, sliceHead uint32, takerAccountIdx uint32, instrumentIdx uint16, side slab.Side, currentTs uint64) (
	totalQty uint64, totalNotional uint256.Int, totalFee uint256.Int, err slab.Error,
) {
	currIdx := sliceHead
	for currIdx != slab.NoIndex {
		sl, ok := s.Slices.Get(currIdx)
		if !ok {
			return 0, uint256.Int{}, uint256.Int{}, slab.ErrInvalidReservation
		}
		orderIdx := sl.OrderIdx
		qty := sl.Qty
		nextSlice := sl.Next

		order, ok := s.Orders.Get(orderIdx)
		if !ok {
			return 0, uint256.Int{}, uint256.Int{}, slab.ErrOrderNotFound
		}
		makerAccountIdx := order.AccountIdx
		price := order.Price
		makerOrderID := order.OrderID

		if err := executeTrade(s, takerAccountIdx, makerAccountIdx, instrumentIdx, side, qty, price, makerOrderID, currentTs); err != slab.OK {
			return 0, uint256.Int{}, uint256.Int{}, err
		}

		notional := fixedmath.MulU64(qty, price)
		takerFee := fixedmath.CalculateFee(notional, int64(s.Header.TakerFeeBps))
		makerFee := fixedmath.CalculateFee(notional, s.Header.MakerFeeBps)

		totalQty += qty
		totalNotional.Add(&totalNotional, &notional)
		totalFee.Add(&totalFee, &takerFee)

		if maker, ok := s.GetAccount(makerAccountIdx); ok {
			// spec.md's fee-rebate convention: a non-negative maker_fee_bps
			// debits the maker; a negative one credits a rebate.
			if s.Header.MakerFeeBps >= 0 {
				maker.Cash = maker.Cash.Sub(fixedmath.Signed{Mag: makerFee})
			} else {
				maker.Cash = maker.Cash.Add(fixedmath.Signed{Mag: makerFee})
			}
		}

		order, ok = s.Orders.Get(orderIdx)
		if !ok {
			return 0, uint256.Int{}, uint256.Int{}, slab.ErrOrderNotFound
		}
		order.Qty = fixedmath.SatSubU64(order.Qty, qty)
		if order.Qty == 0 {
			if err := book.Remove(s, instrumentIdx, orderIdx); err != slab.OK {
				return 0, uint256.Int{}, uint256.Int{}, err
			}
			s.Orders.Free(orderIdx)
		}

		currIdx = nextSlice
	}
	return totalQty, totalNotional, totalFee, slab.OK
}

func executeTrade(s *slab.Slab, takerAccountIdx, makerAccountIdx uint32, instrumentIdx uint16, side slab.Side, qty, price, makerOrderID, currentTs uint64) slab.Error {
	inst, ok := s.GetInstrument(instrumentIdx)
	if !ok {
		return slab.ErrInvalidInstrument
	}
	cumFunding := inst.CumFunding

	var takerQty int64
	if side == slab.Buy {
		takerQty = int64(qty)
	} else {
		takerQty = -int64(qty)
	}
	if err := updatePosition(s, takerAccountIdx, instrumentIdx, takerQty, price, cumFunding); err != slab.OK {
		return err
	}

	makerQty := -takerQty
	if err := updatePosition(s, makerAccountIdx, instrumentIdx, makerQty, price, cumFunding); err != slab.OK {
		return err
	}

	s.RecordTrade(slab.Trade{
		Ts:            currentTs,
		MakerOrderID:  makerOrderID,
		InstrumentIdx: instrumentIdx,
		Side:          side,
		Price:         price,
		Qty:           qty,
	})

	return slab.OK
}

// updatePosition applies the VWAP / close / flip rules of spec.md §4.4.4
// to accountIdx's position in instrumentIdx.
func updatePosition(s *slab.Slab, accountIdx uint32, instrumentIdx uint16, qtyDelta int64, price uint64, cumFunding fixedmath.Signed) slab.Error {
	account, ok := s.GetAccount(accountIdx)
	if !ok {
		return slab.ErrInvalidAccount
	}

	positionIdx := account.PositionHead
	found := slab.NoIndex
	for positionIdx != slab.NoIndex {
		pos, ok := s.Positions.Get(positionIdx)
		if !ok {
			return slab.ErrPositionNotFound
		}
		if pos.InstrumentIdx == instrumentIdx {
			found = positionIdx
			break
		}
		positionIdx = pos.NextInAccount
	}

	if found != slab.NoIndex {
		pos, _ := s.Positions.Get(found)
		newQty := pos.Qty + qtyDelta

		switch {
		case newQty == 0:
			pnl := fixedmath.CalculatePnL(pos.Qty, pos.EntryPx, price)
			account, ok := s.GetAccount(accountIdx)
			if ok {
				account.Cash = account.Cash.Add(pnl)
			}
			return removePosition(s, accountIdx, found)

		case (pos.Qty > 0 && newQty > 0) || (pos.Qty < 0 && newQty < 0):
			absOld := absI64(pos.Qty)
			absDelta := absI64(qtyDelta)
			oldNotional := fixedmath.MulU64(absOld, pos.EntryPx)
			deltaNotional := fixedmath.MulU64(absDelta, price)
			var newNotional uint256.Int
			newNotional.Add(&oldNotional, &deltaNotional)
			pos.EntryPx = fixedmath.CalculateVWAP(newNotional, absOld+absDelta)
			pos.Qty = newQty

		default:
			closeQty := pos.Qty
			pnl := fixedmath.CalculatePnL(closeQty, pos.EntryPx, price)
			if account, ok := s.GetAccount(accountIdx); ok {
				account.Cash = account.Cash.Add(pnl)
			}
			pos.Qty = newQty
			pos.EntryPx = price
			pos.LastFunding = cumFunding
		}
		return slab.OK
	}

	if qtyDelta != 0 {
		posIdx, ok := s.Positions.Alloc()
		if !ok {
			return slab.ErrPoolFull
		}
		pos, _ := s.Positions.Get(posIdx)
		*pos = slab.Position{
			AccountIdx:    accountIdx,
			InstrumentIdx: instrumentIdx,
			Qty:           qtyDelta,
			EntryPx:       price,
			LastFunding:   cumFunding,
			NextInAccount: account.PositionHead,
		}
		account.PositionHead = posIdx
	}
	return slab.OK
}

func removePosition(s *slab.Slab, accountIdx, positionIdx uint32) slab.Error {
	account, ok := s.GetAccount(accountIdx)
	if !ok {
		return slab.ErrInvalidAccount
	}

	curr := account.PositionHead
	prev := slab.NoIndex
	for curr != slab.NoIndex {
		if curr == positionIdx {
			pos, ok := s.Positions.Get(curr)
			if !ok {
				return slab.ErrPositionNotFound
			}
			next := pos.NextInAccount
			if prev == slab.NoIndex {
				account.PositionHead = next
			} else if prevPos, ok := s.Positions.Get(prev); ok {
				prevPos.NextInAccount = next
			}
			s.Positions.Free(positionIdx)
			return slab.OK
		}
		pos, ok := s.Positions.Get(curr)
		if !ok {
			break
		}
		prev = curr
		curr = pos.NextInAccount
	}
	return slab.OK
}

func freeSlices(s *slab.Slab, sliceHead uint32) slab.Error {
	curr := sliceHead
	for curr != slab.NoIndex {
		sl, ok := s.Slices.Get(curr)
		if !ok {
			return slab.ErrInvalidReservation
		}
		orderIdx := sl.OrderIdx
		qty := sl.Qty
		next := sl.Next

		if order, ok := s.Orders.Get(orderIdx); ok {
			order.ReservedQty = fixedmath.SatSubU64(order.ReservedQty, qty)
		}

		s.Slices.Free(curr)
		curr = next
	}
	return slab.OK
}

// findReservation linear-scans the reservation pool for hold_id, the same
// bounded O(ReservationsCap) search the original source performs.
func findReservation(s *slab.Slab, holdID uint64) (uint32, bool) {
	var found uint32
	ok := false
	s.Reservations.Each(func(idx uint32, r *slab.Reservation) {
		if !ok && r.HoldID == holdID {
			found = idx
			ok = true
		}
	})
	return found, ok
}

func absI64(v int64) uint64 {
	if v < 0 {
		return uint64(-v)
	}
	return uint64(v)
}
