package risk

import (
	"testing"

	"github.com/percolator/slab/internal/fixedmath"
	"github.com/percolator/slab/internal/slab"
	"github.com/stretchr/testify/require"
)

func newTestSlab(t *testing.T) (*slab.Slab, uint16) {
	t.Helper()
	s := slab.New(slab.NewHeader(slab.HeaderParams{IMRBps: 500, MMRBps: 250}))
	idx, ok := s.AddInstrument(slab.Instrument{ContractSize: 1000, Tick: 1, Lot: 1, IndexPrice: 50_000})
	require.True(t, ok)
	return s, idx
}

func openPosition(t *testing.T, s *slab.Slab, accountIdx uint32, inst uint16, qty int64, entryPx uint64) {
	t.Helper()
	account, ok := s.ActivateAccount(accountIdx, [32]byte{})
	require.True(t, ok)
	posIdx, ok := s.Positions.Alloc()
	require.True(t, ok)
	pos, _ := s.Positions.Get(posIdx)
	pos.AccountIdx = accountIdx
	pos.InstrumentIdx = inst
	pos.Qty = qty
	pos.EntryPx = entryPx
	pos.NextInAccount = account.PositionHead
	account.PositionHead = posIdx
}

// TestMarginCalculation matches the original source's own unit test
// (qty=10, contract_size=1000, price=50000, imr=5%, mmr=2.5%).
func TestMarginCalculation(t *testing.T) {
	im := fixedmath.CalculateIM(10, 1000, 50_000, 500)
	require.EqualValues(t, 25_000_000, im.Uint64())

	mm := fixedmath.CalculateMM(10, 1000, 50_000, 250)
	require.EqualValues(t, 12_500_000, mm.Uint64())
}

func TestCalculateMarginRequirementsSumsPositions(t *testing.T) {
	s, inst := newTestSlab(t)
	openPosition(t, s, 1, inst, 10, 50_000)

	im, mm, err := CalculateMarginRequirements(s, 1)
	require.Equal(t, slab.OK, err)
	require.EqualValues(t, 25_000_000, im.Uint64())
	require.EqualValues(t, 12_500_000, mm.Uint64())
}

func TestCalculateEquityIncludesUnrealizedPnL(t *testing.T) {
	s, inst := newTestSlab(t)
	openPosition(t, s, 1, inst, 10, 49_000)
	s.Instruments[inst].IndexPrice = 50_000 // mark moved up 1000, long gains 10*1000 (equity PnL is not scaled by contract size)

	equity, err := CalculateEquity(s, 1)
	require.Equal(t, slab.OK, err)
	require.False(t, equity.IsNeg())
	require.EqualValues(t, "10000", equity.String())
}

func TestIsLiquidatableWhenEquityBelowMM(t *testing.T) {
	s, inst := newTestSlab(t)
	openPosition(t, s, 1, inst, 10, 50_000)
	account, _ := s.GetAccount(1)
	account.Cash = fixedmath.SignedFromInt64(-40_000_000) // deeply negative cash

	liq, err := IsLiquidatable(s, 1)
	require.Equal(t, slab.OK, err)
	require.True(t, liq)
}

func TestIsLiquidatableFalseWhenWellCapitalized(t *testing.T) {
	s, inst := newTestSlab(t)
	openPosition(t, s, 1, inst, 10, 50_000)
	account, _ := s.GetAccount(1)
	account.Cash = fixedmath.SignedFromInt64(1_000_000_000)

	liq, err := IsLiquidatable(s, 1)
	require.Equal(t, slab.OK, err)
	require.False(t, liq)
}

func TestCheckMarginPreTradeRejectsUndercapitalizedIncrease(t *testing.T) {
	s, inst := newTestSlab(t)
	_, ok := s.ActivateAccount(1, [32]byte{})
	require.True(t, ok)

	ok2, err := CheckMarginPreTrade(s, 1, inst, 1000)
	require.Equal(t, slab.OK, err)
	require.False(t, ok2, "zero-cash account should fail a pre-trade margin check for a large new position")
}

func TestRefreshMarginCachesOntoAccount(t *testing.T) {
	s, inst := newTestSlab(t)
	openPosition(t, s, 1, inst, 10, 50_000)

	require.Equal(t, slab.OK, RefreshMargin(s, 1))
	account, _ := s.GetAccount(1)
	require.EqualValues(t, 25_000_000, account.IM.Uint64())
	require.EqualValues(t, 12_500_000, account.MM.Uint64())
}
