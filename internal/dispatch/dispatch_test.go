package dispatch

import (
	"testing"

	"go.uber.org/zap"

	"github.com/percolator/slab/internal/reserve"
	"github.com/percolator/slab/internal/slab"
)

func newDispatcher(t *testing.T) (*Dispatcher, uint16) {
	t.Helper()
	s := Initialize(slab.HeaderParams{IMRBps: 500, MMRBps: 250, TakerFeeBps: 10})
	d := New(s, zap.NewNop())
	idx, err := d.AddInstrument(slab.Instrument{ContractSize: 1, Tick: 1, Lot: 1})
	if err != nil {
		t.Fatalf("add instrument: %v", err)
	}
	return d, idx
}

// TestEndToEndReserveCommit matches spec.md §8 scenario S1: a full taker
// buy against one resting maker sell, walking Reserve then Commit.
func TestEndToEndReserveCommit(t *testing.T) {
	d, inst := newDispatcher(t)

	d.Slab.ActivateAccount(1, [32]byte{})
	d.Slab.ActivateAccount(2, [32]byte{})

	makerIdx, err := d.PostOrder(PostOrderInput{
		AccountIdx:    2,
		InstrumentIdx: inst,
		Side:          slab.Sell,
		MakerClass:    slab.MakerDLP,
		Price:         100,
		Qty:           10,
	})
	if err != nil {
		t.Fatalf("post order: %v", err)
	}

	res, err := d.Reserve(reserve.Input{
		AccountIdx:    1,
		InstrumentIdx: inst,
		Side:          slab.Buy,
		Qty:           10,
		LimitPx:       100,
		TTLMs:         1000,
	})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if res.FilledQty != 10 {
		t.Fatalf("expected full fill, got %d", res.FilledQty)
	}

	cr, err := d.Commit(res.HoldID, 0)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if cr.FilledQty != 10 || cr.AvgPrice != 100 {
		t.Fatalf("unexpected commit result: %+v", cr)
	}

	if _, ok := d.Slab.Orders.Get(makerIdx); ok {
		t.Fatal("maker order should be fully filled and freed")
	}
}

func TestPostOrderREGGoesToPendingUntilBatchOpen(t *testing.T) {
	d, inst := newDispatcher(t)
	d.Slab.ActivateAccount(1, [32]byte{})

	idx, err := d.PostOrder(PostOrderInput{
		AccountIdx:    1,
		InstrumentIdx: inst,
		Side:          slab.Buy,
		MakerClass:    slab.MakerREG,
		Price:         100,
		Qty:           1,
	})
	if err != nil {
		t.Fatalf("post order: %v", err)
	}

	i, _ := d.Slab.GetInstrument(inst)
	if i.BidsLive != slab.NoIndex {
		t.Fatal("REG order should not be live before batch open")
	}
	if i.BidsPending != idx {
		t.Fatal("REG order should be queued pending")
	}

	if err := d.BatchOpen(inst, 1000); err != nil {
		t.Fatalf("batch open: %v", err)
	}
	i, _ = d.Slab.GetInstrument(inst)
	if i.BidsLive != idx {
		t.Fatal("REG order should be live after its epoch opens")
	}
}

func TestPostOrderDLPGoesStraightToLive(t *testing.T) {
	d, inst := newDispatcher(t)
	d.Slab.ActivateAccount(1, [32]byte{})

	idx, err := d.PostOrder(PostOrderInput{
		AccountIdx:    1,
		InstrumentIdx: inst,
		Side:          slab.Sell,
		MakerClass:    slab.MakerDLP,
		Price:         100,
		Qty:           1,
	})
	if err != nil {
		t.Fatalf("post order: %v", err)
	}

	i, _ := d.Slab.GetInstrument(inst)
	if i.AsksLive != idx {
		t.Fatal("DLP order should post directly to live")
	}
}

func TestCancelReleasesHold(t *testing.T) {
	d, inst := newDispatcher(t)
	d.Slab.ActivateAccount(1, [32]byte{})
	d.Slab.ActivateAccount(2, [32]byte{})

	d.PostOrder(PostOrderInput{AccountIdx: 2, InstrumentIdx: inst, Side: slab.Sell, MakerClass: slab.MakerDLP, Price: 100, Qty: 5})

	res, err := d.Reserve(reserve.Input{AccountIdx: 1, InstrumentIdx: inst, Side: slab.Buy, Qty: 5, LimitPx: 100, TTLMs: 1000})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if err := d.Cancel(res.HoldID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if _, err := d.Commit(res.HoldID, 0); err == nil {
		t.Fatal("commit should fail after cancel freed the reservation")
	}
}
