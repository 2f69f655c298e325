// Package risk implements equity and margin accounting: unrealized PnL
// aggregation, IM/MM totals, pre-trade margin checks, and liquidatability
// (spec.md §4.5).
package risk

import (
	"github.com/holiman/uint256"
	"github.com/percolator/slab/internal/fixedmath"
	"github.com/percolator/slab/internal/slab"
)

// CalculateEquity sums cash plus unrealized PnL minus accrued funding
// across every open position (spec.md §4.5.1).
func CalculateEquity(s *slab.Slab, accountIdx uint32) (fixedmath.Signed, slab.Error) {
	account, ok := s.GetAccount(accountIdx)
	if !ok {
		return fixedmath.ZeroSigned, slab.ErrInvalidAccount
	}

	equity := account.Cash
	posIdx := account.PositionHead
	for posIdx != slab.NoIndex {
		pos, ok := s.Positions.Get(posIdx)
		if !ok {
			return fixedmath.ZeroSigned, slab.ErrPositionNotFound
		}
		inst, ok := s.GetInstrument(pos.InstrumentIdx)
		if !ok {
			return fixedmath.ZeroSigned, slab.ErrInvalidInstrument
		}

		pnl := fixedmath.CalculatePnL(pos.Qty, pos.EntryPx, inst.IndexPrice)
		fundingPayment := fixedmath.CalculateFundingPayment(pos.Qty, inst.CumFunding, pos.LastFunding)

		equity = equity.Add(pnl).Sub(fundingPayment)
		posIdx = pos.NextInAccount
	}

	return equity, slab.OK
}

// CalculateMarginRequirements sums IM and MM across every open position
// (spec.md §4.5.2).
func CalculateMarginRequirements(s *slab.Slab, accountIdx uint32) (im, mm uint256.Int, err slab.Error) {
	account, ok := s.GetAccount(accountIdx)
	if !ok {
		return uint256.Int{}, uint256.Int{}, slab.ErrInvalidAccount
	}

	posIdx := account.PositionHead
	for posIdx != slab.NoIndex {
		pos, ok := s.Positions.Get(posIdx)
		if !ok {
			return uint256.Int{}, uint256.Int{}, slab.ErrPositionNotFound
		}
		inst, ok := s.GetInstrument(pos.InstrumentIdx)
		if !ok {
			return uint256.Int{}, uint256.Int{}, slab.ErrInvalidInstrument
		}

		posIM := fixedmath.CalculateIM(pos.Qty, inst.ContractSize, inst.IndexPrice, s.Header.IMRBps)
		posMM := fixedmath.CalculateMM(pos.Qty, inst.ContractSize, inst.IndexPrice, s.Header.MMRBps)

		im.Add(&im, &posIM)
		mm.Add(&mm, &posMM)

		posIdx = pos.NextInAccount
	}

	return im, mm, slab.OK
}

// CheckMarginPreTrade reports whether accountIdx has enough equity to
// absorb a prospective qtyDelta change to its instrumentIdx position,
// given its current total IM across all instruments (spec.md §4.5.3).
func CheckMarginPreTrade(s *slab.Slab, accountIdx uint32, instrumentIdx uint16, qtyDelta int64) (bool, slab.Error) {
	equity, err := CalculateEquity(s, accountIdx)
	if err != slab.OK {
		return false, err
	}
	currentIM, _, err := CalculateMarginRequirements(s, accountIdx)
	if err != slab.OK {
		return false, err
	}

	inst, ok := s.GetInstrument(instrumentIdx)
	if !ok {
		return false, slab.ErrInvalidInstrument
	}

	currentQty := positionQty(s, accountIdx, instrumentIdx)
	newQty := currentQty + qtyDelta

	oldIM := fixedmath.CalculateIM(currentQty, inst.ContractSize, inst.IndexPrice, s.Header.IMRBps)
	newIM := fixedmath.CalculateIM(newQty, inst.ContractSize, inst.IndexPrice, s.Header.IMRBps)

	var imDelta uint256.Int
	if newIM.Cmp(&oldIM) >= 0 {
		imDelta.Sub(&newIM, &oldIM)
	}
	var totalIM uint256.Int
	totalIM.Add(&currentIM, &imDelta)

	return equity.Cmp(fixedmath.Signed{Mag: totalIM}) >= 0, slab.OK
}

// IsLiquidatable reports whether accountIdx's equity has fallen below its
// maintenance margin requirement (spec.md §4.5.4).
func IsLiquidatable(s *slab.Slab, accountIdx uint32) (bool, slab.Error) {
	equity, err := CalculateEquity(s, accountIdx)
	if err != slab.OK {
		return false, err
	}
	_, mm, err := CalculateMarginRequirements(s, accountIdx)
	if err != slab.OK {
		return false, err
	}
	return equity.Cmp(fixedmath.Signed{Mag: mm}) < 0, slab.OK
}

// RefreshMargin recomputes and caches accountIdx's IM/MM onto the Account
// record itself, the Go analogue of the original's account margin cache
// refresh, supplemented here as its own operation (SPEC_FULL.md §12).
func RefreshMargin(s *slab.Slab, accountIdx uint32) slab.Error {
	im, mm, err := CalculateMarginRequirements(s, accountIdx)
	if err != slab.OK {
		return err
	}
	account, ok := s.GetAccount(accountIdx)
	if !ok {
		return slab.ErrInvalidAccount
	}
	account.IM = im
	account.MM = mm
	return slab.OK
}

func positionQty(s *slab.Slab, accountIdx uint32, instrumentIdx uint16) int64 {
	account, ok := s.GetAccount(accountIdx)
	if !ok {
		return 0
	}
	posIdx := account.PositionHead
	for posIdx != slab.NoIndex {
		pos, ok := s.Positions.Get(posIdx)
		if !ok {
			break
		}
		if pos.InstrumentIdx == instrumentIdx {
			return pos.Qty
		}
		posIdx = pos.NextInAccount
	}
	return 0
}
