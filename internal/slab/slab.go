// Package slab implements the engine's single-owner state container: the
// header, the fixed-capacity pools, and the intrusive book lists, all as
// plain data reachable only through the Slab value (spec.md §5).
package slab

// Fixed pool capacities (spec.md §3).
const (
	AccountsCap     = 5_000
	InstrumentsCap  = 32
	OrdersCap       = 30_000
	PositionsCap    = 30_000
	ReservationsCap = 4_000
	SlicesCap       = 16_000
	TradesCap       = 10_000
	AggressorCap    = 4_000
	DLPCap          = 100
)

// Slab owns every piece of mutable engine state. All components (book,
// reserve, commit, risk) operate on it as pure functions: no component
// holds state of its own.
type Slab struct {
	Header Header

	Accounts     [AccountsCap]Account
	accountsUsed uint32 // count of Active accounts, for diagnostics only

	Instruments      [InstrumentsCap]Instrument
	InstrumentCount  uint16
	dlpMembers       [DLPCap]uint32 // account_idx values, 0..dlpCount
	dlpCount         uint16

	Orders        *Pool[Order, *Order]
	Positions     *Pool[Position, *Position]
	Reservations  *Pool[Reservation, *Reservation]
	Slices        *Pool[Slice, *Slice]
	Aggressors    *Pool[AggressorEntry, *AggressorEntry]

	Trades     [TradesCap]Trade
	TradeHead  uint32 // next write position
	TradeCount uint32 // number of valid entries, caps at TradesCap
}

// New constructs an empty Slab with the given header.
func New(header Header) *Slab {
	return &Slab{
		Header:       header,
		Orders:       NewPool[Order](uint32(OrdersCap)),
		Positions:    NewPool[Position](uint32(PositionsCap)),
		Reservations: NewPool[Reservation](uint32(ReservationsCap)),
		Slices:       NewPool[Slice](uint32(SlicesCap)),
		Aggressors:   NewPool[AggressorEntry](uint32(AggressorCap)),
	}
}

// GetAccount returns a pointer to the account at idx, or false if idx is
// out of range or the account slot was never activated.
func (s *Slab) GetAccount(idx uint32) (*Account, bool) {
	if idx >= AccountsCap {
		return nil, false
	}
	a := &s.Accounts[idx]
	if !a.Active {
		return nil, false
	}
	return a, true
}

// ActivateAccount marks account idx active (idempotent), used by the
// dispatch layer when a new account_idx is first referenced.
func (s *Slab) ActivateAccount(idx uint32, key [32]byte) (*Account, bool) {
	if idx >= AccountsCap {
		return nil, false
	}
	a := &s.Accounts[idx]
	if !a.Active {
		a.Key = key
		a.PositionHead = NoIndex
		a.Active = true
		s.accountsUsed++
	}
	return a, true
}

// GetInstrument returns a pointer to instrument idx, or false if idx is
// not yet registered (idx >= InstrumentCount).
func (s *Slab) GetInstrument(idx uint16) (*Instrument, bool) {
	if idx >= InstrumentsCap || idx >= s.InstrumentCount {
		return nil, false
	}
	return &s.Instruments[idx], true
}

// AddInstrument registers a new instrument and returns its index.
func (s *Slab) AddInstrument(inst Instrument) (uint16, bool) {
	if s.InstrumentCount >= InstrumentsCap {
		return 0, false
	}
	idx := s.InstrumentCount
	inst.BidsLive = NoIndex
	inst.AsksLive = NoIndex
	inst.BidsPending = NoIndex
	inst.AsksPending = NoIndex
	s.Instruments[idx] = inst
	s.InstrumentCount++
	return idx, true
}

// IsDLP reports whether accountIdx is a registered designated LP.
func (s *Slab) IsDLP(accountIdx uint32) bool {
	for i := uint16(0); i < s.dlpCount; i++ {
		if s.dlpMembers[i] == accountIdx {
			return true
		}
	}
	return false
}

// AddDLP registers accountIdx as a designated LP (idempotent).
func (s *Slab) AddDLP(accountIdx uint32) bool {
	if s.IsDLP(accountIdx) {
		return true
	}
	if s.dlpCount >= DLPCap {
		return false
	}
	s.dlpMembers[s.dlpCount] = accountIdx
	s.dlpCount++
	s.Header.DLPCount = s.dlpCount
	return true
}

// RecordTrade appends to the fixed trade ring, overwriting the oldest
// entry once full (spec.md §3 Lifecycles).
func (s *Slab) RecordTrade(t Trade) {
	s.Trades[s.TradeHead] = t
	s.TradeHead = (s.TradeHead + 1) % TradesCap
	if s.TradeCount < TradesCap {
		s.TradeCount++
	}
}

// TradesInOrder returns the valid trades oldest-first. It allocates a
// result slice (this is a read/export helper, not on the hot path — see
// internal/storage, which is the only caller).
func (s *Slab) TradesInOrder() []Trade {
	out := make([]Trade, 0, s.TradeCount)
	start := (s.TradeHead + TradesCap - s.TradeCount) % TradesCap
	for i := uint32(0); i < s.TradeCount; i++ {
		out = append(out, s.Trades[(start+i)%TradesCap])
	}
	return out
}
