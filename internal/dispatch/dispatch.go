// Package dispatch is the engine's single external entry point: it
// declares the opcode enum and exposes one typed method per operation,
// which calls into internal/book, internal/reserve, internal/commit, or
// internal/risk and wraps any failure with caller-facing context. It does
// not decode byte payloads, and no method here branches on Op. This is the only layer
// that imports github.com/pkg/errors or logs — the core packages beneath
// it are pure state transitions (spec.md §6, SPEC_FULL.md §12).
package dispatch

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/percolator/slab/internal/book"
	"github.com/percolator/slab/internal/commit"
	"github.com/percolator/slab/internal/reserve"
	"github.com/percolator/slab/internal/risk"
	"github.com/percolator/slab/internal/slab"
)

// Op is the instruction discriminator (spec.md §6).
type Op uint8

const (
	OpReserve Op = iota
	OpCommit
	OpCancel
	OpBatchOpen
	OpInitialize
	OpAddInstrument
	OpPostOrder
)

// Dispatcher wires a Slab to a logger and is the receiver for every
// operation. It holds no state of its own beyond the Slab pointer and
// logger — all mutation happens on *slab.Slab.
type Dispatcher struct {
	Slab *slab.Slab
	Log  *zap.Logger
}

// New constructs a Dispatcher over an already-initialized Slab.
func New(s *slab.Slab, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{Slab: s, Log: log}
}

// Initialize constructs a fresh Slab from header params. This is the Go
// analogue of the original program's account-initialization instruction;
// here it is simply a constructor since there is no on-chain account to
// provision (spec.md §6).
func Initialize(params slab.HeaderParams) *slab.Slab {
	return slab.New(slab.NewHeader(params))
}

// AddInstrument registers a new instrument.
func (d *Dispatcher) AddInstrument(inst slab.Instrument) (uint16, error) {
	idx, ok := d.Slab.AddInstrument(inst)
	if !ok {
		d.Log.Warn("add_instrument failed: instrument pool full")
		return 0, errors.Wrap(slab.ErrPoolFull, "dispatch: add instrument")
	}
	d.Log.Info("instrument added", zap.Uint16("instrument_idx", idx))
	return idx, nil
}

// PostOrder places a new maker order. REG orders post to the pending list
// gated by eligible_epoch; DLP orders post straight to the live book
// (spec.md §3 Lifecycles; this operation itself is a SPEC_FULL.md
// supplement, see its design notes).
func (d *Dispatcher) PostOrder(in PostOrderInput) (uint32, error) {
	inst, ok := d.Slab.GetInstrument(in.InstrumentIdx)
	if !ok {
		return 0, errors.Wrap(slab.ErrInvalidInstrument, "dispatch: post order")
	}
	if _, ok := d.Slab.ActivateAccount(in.AccountIdx, [32]byte{}); !ok {
		return 0, errors.Wrap(slab.ErrInvalidAccount, "dispatch: post order")
	}

	idx, ok := d.Slab.Orders.Alloc()
	if !ok {
		d.Log.Warn("post_order failed: order pool full", zap.Uint32("account_idx", in.AccountIdx))
		return 0, errors.Wrap(slab.ErrPoolFull, "dispatch: post order")
	}

	order, _ := d.Slab.Orders.Get(idx)
	*order = slab.Order{
		OrderID:       d.Slab.Header.NextOrderIDAssign(),
		AccountIdx:    in.AccountIdx,
		InstrumentIdx: in.InstrumentIdx,
		Side:          in.Side,
		TIF:           in.TIF,
		MakerClass:    in.MakerClass,
		Price:         in.Price,
		Qty:           in.Qty,
		QtyOrig:       in.Qty,
		CreatedMs:     in.CreatedMs,
	}

	state := slab.Live
	if in.MakerClass == slab.MakerREG {
		state = slab.Pending
		order.EligibleEpoch = inst.Epoch + 1
	}
	order.State = state

	if err := book.Insert(d.Slab, in.InstrumentIdx, idx, in.Side, in.Price, state); err != slab.OK {
		d.Slab.Orders.Free(idx)
		return 0, errors.Wrap(err, "dispatch: post order")
	}

	return idx, nil
}

// PostOrderInput bundles PostOrder's caller-supplied arguments.
type PostOrderInput struct {
	AccountIdx    uint32
	InstrumentIdx uint16
	Side          slab.Side
	TIF           slab.TimeInForce
	MakerClass    slab.MakerClass
	Price         uint64
	Qty           uint64
	CreatedMs     uint64
}

// BatchOpen advances instrumentIdx's epoch and promotes eligible pending
// orders.
func (d *Dispatcher) BatchOpen(instrumentIdx uint16, currentTs uint64) error {
	if err := book.BatchOpen(d.Slab, instrumentIdx, currentTs); err != slab.OK {
		return errors.Wrap(err, "dispatch: batch open")
	}
	d.Log.Info("batch opened", zap.Uint16("instrument_idx", instrumentIdx), zap.Uint64("ts", currentTs))
	return nil
}

// Reserve walks the book and locks slices for a prospective trade.
func (d *Dispatcher) Reserve(in reserve.Input) (reserve.Result, error) {
	if _, ok := d.Slab.ActivateAccount(in.AccountIdx, [32]byte{}); !ok {
		return reserve.Result{}, errors.Wrap(slab.ErrInvalidAccount, "dispatch: reserve")
	}
	res, err := reserve.Reserve(d.Slab, in)
	if err != slab.OK {
		if err.Fatal() {
			d.Log.Error("reserve hit a fatal invariant violation", zap.Error(err), zap.Uint32("account_idx", in.AccountIdx))
		}
		return reserve.Result{}, errors.Wrap(err, "dispatch: reserve")
	}
	return res, nil
}

// Commit executes a reservation's locked slices.
func (d *Dispatcher) Commit(holdID, currentTs uint64) (commit.Result, error) {
	res, err := commit.Commit(d.Slab, holdID, currentTs)
	if err != slab.OK {
		return commit.Result{}, errors.Wrap(err, "dispatch: commit")
	}
	return res, nil
}

// Cancel releases a reservation's locked slices without executing.
func (d *Dispatcher) Cancel(holdID uint64) error {
	if err := commit.Cancel(d.Slab, holdID); err != slab.OK {
		return errors.Wrap(err, "dispatch: cancel")
	}
	return nil
}

// CheckMargin reports whether accountIdx can absorb qtyDelta on
// instrumentIdx.
func (d *Dispatcher) CheckMargin(accountIdx uint32, instrumentIdx uint16, qtyDelta int64) (bool, error) {
	ok, err := risk.CheckMarginPreTrade(d.Slab, accountIdx, instrumentIdx, qtyDelta)
	if err != slab.OK {
		return false, errors.Wrap(err, "dispatch: check margin")
	}
	return ok, nil
}

// IsLiquidatable reports whether accountIdx is below maintenance margin.
func (d *Dispatcher) IsLiquidatable(accountIdx uint32) (bool, error) {
	liq, err := risk.IsLiquidatable(d.Slab, accountIdx)
	if err != slab.OK {
		return false, errors.Wrap(err, "dispatch: is liquidatable")
	}
	if liq {
		d.Log.Warn("account below maintenance margin", zap.Uint32("account_idx", accountIdx))
	}
	return liq, nil
}
