package fixedmath

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestCalculateVWAPMultiLevel(t *testing.T) {
	// 5@50000, 3@50100, 2@50200 — spec.md §8 scenario S2.
	total := MulU64(5, 50_000)
	l2 := MulU64(3, 50_100)
	l3 := MulU64(2, 50_200)
	total.Add(&total, &l2)
	total.Add(&total, &l3)

	vwap := CalculateVWAP(total, 10)
	require.Equal(t, uint64(50_070), vwap)
}

func TestCalculatePnLLongAndShort(t *testing.T) {
	require.Equal(t, int64(10_000), mustInt64(CalculatePnL(10, 50_000, 51_000)))
	require.Equal(t, int64(-10_000), mustInt64(CalculatePnL(10, 50_000, 49_000)))
	require.Equal(t, int64(10_000), mustInt64(CalculatePnL(-10, 50_000, 49_000)))
	require.Equal(t, int64(-10_000), mustInt64(CalculatePnL(-10, 50_000, 51_000)))
}

func mustInt64(s Signed) int64 {
	v := int64(s.Mag.Uint64())
	if s.IsNeg() {
		return -v
	}
	return v
}

func TestCalculateMaxCharge(t *testing.T) {
	mc := CalculateMaxCharge(100, 50_000, 1000, 10)
	require.Equal(t, uint64(5_005_000_000), mc.Uint64())
}

func TestCalculateIMAndMM(t *testing.T) {
	im := CalculateIM(10, 1000, 50_000, 500)
	require.Equal(t, uint64(25_000_000), im.Uint64())

	mm := CalculateMM(10, 1000, 50_000, 250)
	require.Equal(t, uint64(12_500_000), mm.Uint64())
}

func TestAlignment(t *testing.T) {
	require.True(t, IsTickAligned(50_000, 1))
	require.True(t, IsLotAligned(10, 1))
	require.False(t, IsTickAligned(50_001, 10))
	require.Equal(t, uint64(50_000), RoundToTick(50_007, 10))
}

func TestSignedArithmetic(t *testing.T) {
	a := SignedFromInt64(-5)
	b := SignedFromInt64(3)
	require.Equal(t, int64(-2), mustInt64(a.Add(b)))
	require.Equal(t, int64(-8), mustInt64(a.Sub(b)))
	require.Equal(t, -1, a.Cmp(b))
	require.Equal(t, 1, b.Cmp(a))
}

func TestSignedZeroNormalization(t *testing.T) {
	a := SignedFromInt64(5)
	b := SignedFromInt64(-5)
	z := a.Add(b)
	require.True(t, z.IsZero())
	require.False(t, z.IsNeg())
	require.Equal(t, uint256.Int{}, z.Mag)
}
