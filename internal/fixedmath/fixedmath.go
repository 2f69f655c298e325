// Package fixedmath implements the engine's integer-only arithmetic:
// notional/fee/margin accumulators sized to avoid overflow, VWAP, PnL,
// funding payments, and tick/lot alignment. No floating point anywhere.
//
// Every accumulator is a fixed-width uint256.Int rather than math/big.Int:
// uint256 does not allocate on the heap per operation, which matches the
// engine's no-dynamic-allocation design (see SPEC_FULL.md §11).
package fixedmath

import "github.com/holiman/uint256"

// BpsDenominator is the basis-point scale: 10000 bps = 100%.
const BpsDenominator = 10_000

// Signed is a sign-magnitude wide integer, used for cash, PnL, equity and
// cumulative funding, all of which may go negative. The magnitude reuses
// uint256.Int so a single allocation-free type backs both the unsigned
// notional math and the signed ledger math.
type Signed struct {
	Neg bool
	Mag uint256.Int
}

// ZeroSigned is the additive identity.
var ZeroSigned = Signed{}

// SignedFromInt64 converts a plain signed quantity (order qty, position qty)
// into the wide representation.
func SignedFromInt64(v int64) Signed {
	if v < 0 {
		return Signed{Neg: true, Mag: *uint256.NewInt(uint64(-v))}
	}
	return Signed{Mag: *uint256.NewInt(uint64(v))}
}

// SignedFromUint64 lifts an unsigned value (always non-negative).
func SignedFromUint64(v uint64) Signed {
	return Signed{Mag: *uint256.NewInt(v)}
}

// IsZero reports whether the value is exactly zero.
func (s Signed) IsZero() bool { return s.Mag.IsZero() }

// IsNeg reports whether the value is strictly negative.
func (s Signed) IsNeg() bool { return s.Neg && !s.Mag.IsZero() }

// normalize clears the sign bit on a zero magnitude so -0 == 0 under Cmp.
func normalize(s Signed) Signed {
	if s.Mag.IsZero() {
		s.Neg = false
	}
	return s
}

// Negate returns -s.
func (s Signed) Negate() Signed {
	s.Neg = !s.Neg
	return normalize(s)
}

// Add returns s + o.
func (s Signed) Add(o Signed) Signed {
	if s.Mag.IsZero() {
		return o
	}
	if o.Mag.IsZero() {
		return s
	}
	if s.Neg == o.Neg {
		var m uint256.Int
		m.Add(&s.Mag, &o.Mag)
		return normalize(Signed{Neg: s.Neg, Mag: m})
	}
	if s.Mag.Cmp(&o.Mag) >= 0 {
		var m uint256.Int
		m.Sub(&s.Mag, &o.Mag)
		return normalize(Signed{Neg: s.Neg, Mag: m})
	}
	var m uint256.Int
	m.Sub(&o.Mag, &s.Mag)
	return normalize(Signed{Neg: o.Neg, Mag: m})
}

// Sub returns s - o.
func (s Signed) Sub(o Signed) Signed { return s.Add(o.Negate()) }

// Mul returns s * o.
func (s Signed) Mul(o Signed) Signed {
	var m uint256.Int
	m.Mul(&s.Mag, &o.Mag)
	return normalize(Signed{Neg: s.Neg != o.Neg, Mag: m})
}

// Cmp returns -1, 0, or 1 as s is less than, equal to, or greater than o.
func (s Signed) Cmp(o Signed) int {
	if s.Neg != o.Neg {
		if s.IsZero() && o.IsZero() {
			return 0
		}
		if s.Neg {
			return -1
		}
		return 1
	}
	c := s.Mag.Cmp(&o.Mag)
	if s.Neg {
		return -c
	}
	return c
}

// String renders the value in base 10 with an optional leading '-'.
func (s Signed) String() string {
	if s.IsNeg() {
		return "-" + s.Mag.Dec()
	}
	return s.Mag.Dec()
}

// MulU64 multiplies two u64 values into a wide unsigned accumulator.
func MulU64(a, b uint64) uint256.Int {
	var z uint256.Int
	z.Mul(uint256.NewInt(a), uint256.NewInt(b))
	return z
}

// MulWideU64 multiplies a wide accumulator by a u64 value.
func MulWideU64(a uint256.Int, b uint64) uint256.Int {
	var z uint256.Int
	z.Mul(&a, uint256.NewInt(b))
	return z
}

// DivFloorU64 floor-divides a wide accumulator by a u64 divisor.
func DivFloorU64(numerator uint256.Int, denom uint64) uint256.Int {
	var z uint256.Int
	z.Div(&numerator, uint256.NewInt(denom))
	return z
}

// CalculateVWAP computes floor(totalNotional / totalQty), returning 0 for
// a zero quantity (caller substitutes the conventional default price).
func CalculateVWAP(totalNotional uint256.Int, totalQty uint64) uint64 {
	if totalQty == 0 {
		return 0
	}
	q := DivFloorU64(totalNotional, totalQty)
	return q.Uint64()
}

// CalculatePnL computes qty * (currentPrice - entryPrice) as a signed wide
// value: positive for a profitable move in the position's direction.
func CalculatePnL(qty int64, entryPrice, currentPrice uint64) Signed {
	diff := SignedFromUint64(currentPrice).Sub(SignedFromUint64(entryPrice))
	return SignedFromInt64(qty).Mul(diff)
}

// CalculateFundingPayment computes qty * (cumFundingCurrent - cumFundingEntry),
// the amount owed by (positive) or to (negative) the position holder.
func CalculateFundingPayment(qty int64, cumFundingCurrent, cumFundingEntry Signed) Signed {
	diff := cumFundingCurrent.Sub(cumFundingEntry)
	return SignedFromInt64(qty).Mul(diff)
}

// CalculateFee floors notional*|feeBps|/10000. The caller (commit.go)
// decides the sign: a non-negative maker_fee_bps is a debit, a negative one
// is a rebate credited back to the maker — see DESIGN.md's fee-rebate
// decision.
func CalculateFee(notional uint256.Int, feeBps int64) uint256.Int {
	abs := feeBps
	if abs < 0 {
		abs = -abs
	}
	var v uint256.Int
	v.Mul(&notional, uint256.NewInt(uint64(abs)))
	return DivFloorU64(v, BpsDenominator)
}

// CalculateMaxCharge computes (filledQty*contractSize)*worstPx*(1+takerFeeBps/10000),
// floor-divided, matching spec.md §4.3 step 4.
func CalculateMaxCharge(filledQty, worstPx, contractSize, takerFeeBps uint64) uint256.Int {
	notional := MulU64(filledQty, contractSize)
	value := MulWideU64(notional, worstPx)
	fee := CalculateFee(value, int64(takerFeeBps))
	var total uint256.Int
	total.Add(&value, &fee)
	return total
}

// CalculateIM computes |qty|*contractSize*markPrice*imrBps/10000.
func CalculateIM(qty int64, contractSize, markPrice, imrBps uint64) uint256.Int {
	return marginRequirement(qty, contractSize, markPrice, imrBps)
}

// CalculateMM computes |qty|*contractSize*markPrice*mmrBps/10000.
func CalculateMM(qty int64, contractSize, markPrice, mmrBps uint64) uint256.Int {
	return marginRequirement(qty, contractSize, markPrice, mmrBps)
}

func marginRequirement(qty int64, contractSize, markPrice, bps uint64) uint256.Int {
	absQty := uint64(qty)
	if qty < 0 {
		absQty = uint64(-qty)
	}
	notional := MulU64(absQty, contractSize)
	value := MulWideU64(notional, markPrice)
	var v uint256.Int
	v.Mul(&value, uint256.NewInt(bps))
	return DivFloorU64(v, BpsDenominator)
}

// IsTickAligned reports whether price is an exact multiple of tick.
func IsTickAligned(price, tick uint64) bool { return tick != 0 && price%tick == 0 }

// IsLotAligned reports whether qty is an exact multiple of lot.
func IsLotAligned(qty, lot uint64) bool { return lot != 0 && qty%lot == 0 }

// RoundToTick rounds price down to the nearest tick multiple.
func RoundToTick(price, tick uint64) uint64 {
	if tick == 0 {
		return price
	}
	return (price / tick) * tick
}

// RoundToLot rounds qty down to the nearest lot multiple.
func RoundToLot(qty, lot uint64) uint64 {
	if lot == 0 {
		return qty
	}
	return (qty / lot) * lot
}

// Min64 returns the smaller of two u64 values.
func Min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

// SatSubU64 subtracts with saturation at zero, used defensively on
// non-critical fields per spec.md §9 (reserved_qty release, cash display).
func SatSubU64(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}
