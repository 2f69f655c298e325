package slab

import (
	"github.com/holiman/uint256"
	"github.com/percolator/slab/internal/fixedmath"
)

// Side is the order/reservation direction.
type Side uint8

const (
	Buy Side = iota
	Sell
)

func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

func (s Side) String() string {
	if s == Buy {
		return "Buy"
	}
	return "Sell"
}

// TimeInForce mirrors the original's GTC/IOC/FOK; the reserve/commit core
// does not branch on it directly (IOC/FOK semantics are a caller-side
// composition of reserve+commit-or-cancel), but it is carried on Order so
// an external dispatcher can implement them.
type TimeInForce uint8

const (
	GTC TimeInForce = iota
	IOC
	FOK
)

// MakerClass decides whether a posted order enters the pending queue (REG)
// or bypasses it straight to LIVE (DLP) — spec.md §3 Lifecycles.
type MakerClass uint8

const (
	MakerREG MakerClass = iota
	MakerDLP
)

// OrderState is which of the four per-(instrument,side) lists an order
// lives in.
type OrderState uint8

const (
	Live OrderState = iota
	Pending
)

// Account holds cash and the head of this account's position list.
type Account struct {
	Key          [32]byte
	Cash         fixedmath.Signed
	IM           uint256.Int
	MM           uint256.Int
	PositionHead uint32
	Active       bool
}

// Instrument is a single perpetual-futures market.
type Instrument struct {
	Symbol        [8]byte
	ContractSize  uint64
	Tick          uint64
	Lot           uint64
	IndexPrice    uint64
	FundingRate   int64
	CumFunding    fixedmath.Signed
	LastFundingTs uint64

	BidsLive    uint32
	AsksLive    uint32
	BidsPending uint32
	AsksPending uint32

	Epoch         uint16
	BatchOpenMs   uint64
	FreezeUntilMs uint64
}

// bookHead returns a pointer to the list head field selected by (side, state).
func (i *Instrument) bookHead(side Side, state OrderState) *uint32 {
	switch {
	case side == Buy && state == Live:
		return &i.BidsLive
	case side == Buy && state == Pending:
		return &i.BidsPending
	case side == Sell && state == Live:
		return &i.AsksLive
	default:
		return &i.AsksPending
	}
}

// BookHead exposes bookHead for the book package.
func (i *Instrument) BookHead(side Side, state OrderState) *uint32 {
	return i.bookHead(side, state)
}

// Order is a resting (or recently-posted) limit order.
type Order struct {
	OrderID       uint64
	AccountIdx    uint32
	InstrumentIdx uint16
	Side          Side
	TIF           TimeInForce
	MakerClass    MakerClass
	State         OrderState
	EligibleEpoch uint16
	CreatedMs     uint64
	Price         uint64
	Qty           uint64
	ReservedQty   uint64
	QtyOrig       uint64

	Next uint32
	Prev uint32

	nextFree uint32
	used     bool
}

func (o *Order) SetNextFree(n uint32) { o.nextFree = n }
func (o *Order) NextFree() uint32     { return o.nextFree }
func (o *Order) SetUsed(u bool)       { o.used = u }
func (o *Order) IsUsed() bool         { return o.used }

// Available returns the unreserved portion of the resting quantity.
func (o *Order) Available() uint64 { return fixedmath.SatSubU64(o.Qty, o.ReservedQty) }

// Position is one account's open exposure in one instrument.
type Position struct {
	AccountIdx    uint32
	InstrumentIdx uint16
	Qty           int64
	EntryPx       uint64
	LastFunding   fixedmath.Signed
	NextInAccount uint32

	nextFree uint32
	used     bool
}

func (p *Position) SetNextFree(n uint32) { p.nextFree = n }
func (p *Position) NextFree() uint32     { return p.nextFree }
func (p *Position) SetUsed(u bool)       { p.used = u }
func (p *Position) IsUsed() bool         { return p.used }

// Slice is a reservation's claim on a specific quantity of a specific
// resting order.
type Slice struct {
	OrderIdx uint32
	Qty      uint64
	Next     uint32

	nextFree uint32
	used     bool
}

func (s *Slice) SetNextFree(n uint32) { s.nextFree = n }
func (s *Slice) NextFree() uint32     { return s.nextFree }
func (s *Slice) SetUsed(u bool)       { s.used = u }
func (s *Slice) IsUsed() bool         { return s.used }

// Reservation is a priced, slice-backed hold against the book.
type Reservation struct {
	HoldID        uint64
	RouteID       uint64
	AccountIdx    uint32
	InstrumentIdx uint16
	Side          Side

	Qty       uint64
	VwapPx    uint64
	WorstPx   uint64
	MaxCharge uint256.Int

	CommitmentHash [32]byte
	Salt           [16]byte

	BookSeqno uint64
	ExpiryMs  uint64
	SliceHead uint32
	Committed bool

	nextFree uint32
	used     bool
}

func (r *Reservation) SetNextFree(n uint32) { r.nextFree = n }
func (r *Reservation) NextFree() uint32     { return r.nextFree }
func (r *Reservation) SetUsed(u bool)       { r.used = u }
func (r *Reservation) IsUsed() bool         { return r.used }

// Trade is an append-only execution record.
type Trade struct {
	Ts            uint64
	MakerOrderID  uint64
	TakerRouteID  uint64
	InstrumentIdx uint16
	Side          Side
	Price         uint64
	Qty           uint64
	RevealHash    [32]byte
	RevealMs      uint64
	HasReveal     bool
}

// AggressorEntry is the per-(account,instrument,epoch) ledger the
// anti-sandwich admission checks would consult. The core implements the
// entity and its pool (spec.md §3 capacities) but, per spec.md §9's open
// question, leaves the kill-band/JIT/roundtrip predicates themselves as a
// future extension.
type AggressorEntry struct {
	AccountIdx    uint32
	InstrumentIdx uint16
	Epoch         uint16
	BuyQty        uint64
	BuyNotional   uint256.Int
	SellQty       uint64
	SellNotional  uint256.Int

	nextFree uint32
	used     bool
}

func (a *AggressorEntry) SetNextFree(n uint32) { a.nextFree = n }
func (a *AggressorEntry) NextFree() uint32     { return a.nextFree }
func (a *AggressorEntry) SetUsed(u bool)       { a.used = u }
func (a *AggressorEntry) IsUsed() bool         { return a.used }
