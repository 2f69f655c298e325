package commit

import (
	"testing"

	"github.com/percolator/slab/internal/book"
	"github.com/percolator/slab/internal/reserve"
	"github.com/percolator/slab/internal/slab"
	"github.com/stretchr/testify/require"
)

func newTestSlab(t *testing.T, takerFeeBps uint64, makerFeeBps int64) (*slab.Slab, uint16) {
	t.Helper()
	s := slab.New(slab.NewHeader(slab.HeaderParams{TakerFeeBps: takerFeeBps, MakerFeeBps: makerFeeBps}))
	idx, ok := s.AddInstrument(slab.Instrument{ContractSize: 1, Tick: 1, Lot: 1})
	require.True(t, ok)
	return s, idx
}

func postLiveOrder(t *testing.T, s *slab.Slab, inst uint16, accountIdx uint32, side slab.Side, price, qty uint64) uint32 {
	t.Helper()
	idx, ok := s.Orders.Alloc()
	require.True(t, ok)
	o, _ := s.Orders.Get(idx)
	o.OrderID = s.Header.NextOrderIDAssign()
	o.AccountIdx = accountIdx
	o.InstrumentIdx = inst
	o.Side = side
	o.Price = price
	o.Qty = qty
	o.QtyOrig = qty
	o.State = slab.Live
	require.Equal(t, slab.OK, book.Insert(s, inst, idx, side, price, slab.Live))
	return idx
}

func activate(t *testing.T, s *slab.Slab, idx uint32) *slab.Account {
	t.Helper()
	a, ok := s.ActivateAccount(idx, [32]byte{})
	require.True(t, ok)
	return a
}

func TestCommitFullFillUpdatesPositionsAndFreesOrder(t *testing.T) {
	s, inst := newTestSlab(t, 10, 5)
	activate(t, s, 1)
	activate(t, s, 2)
	makerOrder := postLiveOrder(t, s, inst, 2, slab.Sell, 100, 5)

	res, err := reserve.Reserve(s, reserve.Input{
		AccountIdx:    1,
		InstrumentIdx: inst,
		Side:          slab.Buy,
		Qty:           5,
		LimitPx:       100,
		TTLMs:         1000,
	})
	require.Equal(t, slab.OK, err)

	cr, err := Commit(s, res.HoldID, 0)
	require.Equal(t, slab.OK, err)
	require.EqualValues(t, 5, cr.FilledQty)
	require.EqualValues(t, 100, cr.AvgPrice)

	taker, ok := s.GetAccount(1)
	require.True(t, ok)
	takerPos, ok := s.Positions.Get(taker.PositionHead)
	require.True(t, ok)
	require.EqualValues(t, 5, takerPos.Qty)
	require.EqualValues(t, 100, takerPos.EntryPx)

	maker, ok := s.GetAccount(2)
	require.True(t, ok)
	makerPos, ok := s.Positions.Get(maker.PositionHead)
	require.True(t, ok)
	require.EqualValues(t, -5, makerPos.Qty)

	_, stillThere := s.Orders.Get(makerOrder)
	require.False(t, stillThere, "fully filled maker order should be freed")
}

func TestCommitRejectsExpiredReservation(t *testing.T) {
	s, inst := newTestSlab(t, 0, 0)
	activate(t, s, 1)
	activate(t, s, 2)
	postLiveOrder(t, s, inst, 2, slab.Sell, 100, 5)

	res, err := reserve.Reserve(s, reserve.Input{
		AccountIdx:    1,
		InstrumentIdx: inst,
		Side:          slab.Buy,
		Qty:           5,
		LimitPx:       100,
		TTLMs:         1000,
	})
	require.Equal(t, slab.OK, err)

	_, err = Commit(s, res.HoldID, res.ExpiryMs+1)
	require.Equal(t, slab.ErrReservationExpired, err)
}

func TestCommitTwiceFailsSecondTime(t *testing.T) {
	s, inst := newTestSlab(t, 0, 0)
	activate(t, s, 1)
	activate(t, s, 2)
	postLiveOrder(t, s, inst, 2, slab.Sell, 100, 5)

	res, _ := reserve.Reserve(s, reserve.Input{
		AccountIdx:    1,
		InstrumentIdx: inst,
		Side:          slab.Buy,
		Qty:           5,
		LimitPx:       100,
		TTLMs:         1000,
	})

	_, err := Commit(s, res.HoldID, 0)
	require.Equal(t, slab.OK, err)

	_, err = Commit(s, res.HoldID, 0)
	require.Equal(t, slab.ErrReservationNotFound, err, "reservation is freed after its first commit")
}

func TestCancelReleasesReservedQtyWithoutExecuting(t *testing.T) {
	s, inst := newTestSlab(t, 0, 0)
	activate(t, s, 1)
	activate(t, s, 2)
	makerOrder := postLiveOrder(t, s, inst, 2, slab.Sell, 100, 5)

	res, _ := reserve.Reserve(s, reserve.Input{
		AccountIdx:    1,
		InstrumentIdx: inst,
		Side:          slab.Buy,
		Qty:           5,
		LimitPx:       100,
		TTLMs:         1000,
	})

	maker, _ := s.Orders.Get(makerOrder)
	require.EqualValues(t, 5, maker.ReservedQty)

	err := Cancel(s, res.HoldID)
	require.Equal(t, slab.OK, err)

	maker, _ = s.Orders.Get(makerOrder)
	require.EqualValues(t, 0, maker.ReservedQty, "cancel must release the maker's reserved_qty")

	taker, _ := s.GetAccount(1)
	require.EqualValues(t, slab.NoIndex, taker.PositionHead, "cancel must not create any position")
}

func TestCommitPositionFlipRealizesPartialPnL(t *testing.T) {
	s, inst := newTestSlab(t, 0, 0)
	activate(t, s, 1)
	activate(t, s, 2)
	activate(t, s, 3)

	// Taker goes long 5 @ 100 first.
	postLiveOrder(t, s, inst, 2, slab.Sell, 100, 5)
	res1, _ := reserve.Reserve(s, reserve.Input{AccountIdx: 1, InstrumentIdx: inst, Side: slab.Buy, Qty: 5, LimitPx: 100, TTLMs: 1000})
	_, err := Commit(s, res1.HoldID, 0)
	require.Equal(t, slab.OK, err)

	// Now sells 8 @ 110, flipping from +5 to -3.
	postLiveOrder(t, s, inst, 3, slab.Buy, 110, 8)
	res2, err := reserve.Reserve(s, reserve.Input{AccountIdx: 1, InstrumentIdx: inst, Side: slab.Sell, Qty: 8, LimitPx: 110, TTLMs: 1000})
	require.Equal(t, slab.OK, err)

	_, err = Commit(s, res2.HoldID, 0)
	require.Equal(t, slab.OK, err)

	taker, _ := s.GetAccount(1)
	pos, ok := s.Positions.Get(taker.PositionHead)
	require.True(t, ok)
	require.EqualValues(t, -3, pos.Qty)
	require.EqualValues(t, 110, pos.EntryPx)
	require.False(t, taker.Cash.IsNeg(), "closing the original long at a higher price should realize a profit")
	require.False(t, taker.Cash.IsZero())
}
