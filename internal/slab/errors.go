package slab

// Error is the engine's closed, payload-free error enum (spec.md §7). Every
// operation is all-or-nothing: on any of these, the caller-observable state
// is exactly what it was before the call.
type Error int32

// OK is the zero value: "0 is success, not used as an error" (spec.md §6).
// Operations that return slab.Error use this as their non-error result.
const OK Error = 0

const (
	// Validation
	ErrInvalidInstruction Error = iota + 1
	ErrInvalidInstrument
	ErrInvalidQuantity
	ErrInvalidPrice
	ErrPriceNotAligned
	ErrQuantityNotAligned
	ErrInvalidSide

	// Lookup
	ErrOrderNotFound
	ErrPositionNotFound
	ErrReservationNotFound
	ErrInvalidReservation

	// State
	ErrReservationExpired
	ErrPoolFull
	ErrBookCorrupted
	ErrReservedQtyExceeded

	// Risk
	ErrInsufficientMargin
	ErrBelowMaintenanceMargin
	ErrInvalidRiskParams

	// Account
	ErrInvalidAccount
)

var errorNames = map[Error]string{
	ErrInvalidInstruction:     "InvalidInstruction",
	ErrInvalidInstrument:      "InvalidInstrument",
	ErrInvalidQuantity:        "InvalidQuantity",
	ErrInvalidPrice:           "InvalidPrice",
	ErrPriceNotAligned:        "PriceNotAligned",
	ErrQuantityNotAligned:     "QuantityNotAligned",
	ErrInvalidSide:            "InvalidSide",
	ErrOrderNotFound:          "OrderNotFound",
	ErrPositionNotFound:       "PositionNotFound",
	ErrReservationNotFound:    "ReservationNotFound",
	ErrInvalidReservation:     "InvalidReservation",
	ErrReservationExpired:     "ReservationExpired",
	ErrPoolFull:               "PoolFull",
	ErrBookCorrupted:          "BookCorrupted",
	ErrReservedQtyExceeded:    "ReservedQtyExceeded",
	ErrInsufficientMargin:     "InsufficientMargin",
	ErrBelowMaintenanceMargin: "BelowMaintenanceMargin",
	ErrInvalidRiskParams:      "InvalidRiskParams",
	ErrInvalidAccount:         "InvalidAccount",
}

func (e Error) Error() string {
	if name, ok := errorNames[e]; ok {
		return name
	}
	return "UnknownPercolatorError"
}

// Fatal reports whether e indicates an invariant violation rather than a
// deterministic, recoverable failure (spec.md §7): callers should abort the
// containing transaction rather than retry.
func (e Error) Fatal() bool {
	return e == ErrBookCorrupted || e == ErrReservedQtyExceeded
}
