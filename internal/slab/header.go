package slab

// Magic/version identify the persisted layout (spec.md §6).
var Magic = [8]byte{'P', 'E', 'R', 'C', 'S', 'L', 'B', '1'}

const Version uint16 = 1

// MaxTTLMs is the hard cap on reservation TTL (spec.md §4.3).
const MaxTTLMs uint64 = 120_000

// Header is the slab's singleton metadata record: identifiers, risk/fee
// params, anti-toxicity params, and the monotonic counters.
type Header struct {
	Magic   [8]byte
	Version uint16

	ProgramID [32]byte
	OwnerID   [32]byte
	RouterID  [32]byte // carried for the external router collaborator; unused by the core itself

	// Risk params (bps)
	IMRBps      uint64
	MMRBps      uint64
	MakerFeeBps int64 // signed: negative is a rebate
	TakerFeeBps uint64

	// Anti-toxicity params
	BatchMs          uint64
	FreezeLevels     uint16
	KillBandBps      uint64
	AsFeeK           uint64
	JitPenaltyOn     bool
	MakerRebateMinMs uint64

	DLPMax   uint16
	DLPCount uint16

	NextOrderID uint64
	NextHoldID  uint64
	BookSeqno   uint64
	CurrentTs   uint64
}

// HeaderParams are the caller-supplied fields for Initialize (spec.md §6).
type HeaderParams struct {
	ProgramID   [32]byte
	OwnerID     [32]byte
	RouterID    [32]byte
	IMRBps      uint64
	MMRBps      uint64
	MakerFeeBps int64
	TakerFeeBps uint64
	BatchMs     uint64
}

// NewHeader constructs a Header with the anti-toxicity defaults the
// original source ships (header.rs::new): freeze_levels=3, kill_band=1%,
// as_fee_k=0.5%, jit_penalty on, maker_rebate_min_ms=100, dlp_max=100.
func NewHeader(p HeaderParams) Header {
	return Header{
		Magic:            Magic,
		Version:          Version,
		ProgramID:        p.ProgramID,
		OwnerID:          p.OwnerID,
		RouterID:         p.RouterID,
		IMRBps:           p.IMRBps,
		MMRBps:           p.MMRBps,
		MakerFeeBps:      p.MakerFeeBps,
		TakerFeeBps:      p.TakerFeeBps,
		BatchMs:          p.BatchMs,
		FreezeLevels:     3,
		KillBandBps:      100,
		AsFeeK:           50,
		JitPenaltyOn:     true,
		MakerRebateMinMs: 100,
		DLPMax:           DLPCap,
		DLPCount:         0,
		NextOrderID:      1,
		NextHoldID:       1,
		BookSeqno:        0,
		CurrentTs:        0,
	}
}

// Validate checks the magic and version match what this build expects
// (header.rs::validate).
func (h *Header) Validate() bool {
	return h.Magic == Magic && h.Version == Version
}

// NextOrderIDAssign increments and returns the next order ID.
func (h *Header) NextOrderIDAssign() uint64 {
	id := h.NextOrderID
	h.NextOrderID++
	return id
}

// NextHoldIDAssign increments and returns the next hold ID.
func (h *Header) NextHoldIDAssign() uint64 {
	id := h.NextHoldID
	h.NextHoldID++
	return id
}

// IncrementBookSeqno bumps and returns the book sequence number. Every
// insert and every remove calls this exactly once; promoting a pending
// order is a remove plus an insert, so it bumps the counter twice.
func (h *Header) IncrementBookSeqno() uint64 {
	h.BookSeqno++
	return h.BookSeqno
}

// IsJITOrder reports whether an order created at createdMs, in a batch
// that opened at batchOpenMs, should be treated as just-in-time for the
// (not-yet-wired) JIT penalty — header.rs::is_jit_order.
func (h *Header) IsJITOrder(createdMs, batchOpenMs uint64) bool {
	return h.JitPenaltyOn && createdMs >= batchOpenMs
}
