package domain

import (
	"fmt"
	"math"
	"math/bits"
)

// ─── Saturating Arithmetic ──────────────────────────────────────────────────

func SaturatingMulU64(a, b uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return math.MaxUint64
	}
	return lo
}

func SaturatingAddU64(a, b uint64) uint64 {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return math.MaxUint64
	}
	return sum
}

func SaturatingSubU64(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

func SaturatingAddU32(a, b uint32) uint32 {
	if a > math.MaxUint32-b {
		return math.MaxUint32
	}
	return a + b
}

func SaturatingAddI64(a, b int64) int64 {
	c := a + b
	// Overflow only when both operands share a sign the result lacks.
	if (a >= 0) == (b >= 0) && (c >= 0) != (a >= 0) {
		if a >= 0 {
			return math.MaxInt64
		}
		return math.MinInt64
	}
	return c
}

func SaturatingSubI64(a, b int64) int64 {
	if b == math.MinInt64 {
		if a >= 0 {
			return math.MaxInt64
		}
		return a - b
	}
	return SaturatingAddI64(a, -b)
}

func SaturatingMulI64(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	c := a * b
	if c/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		if (a > 0) == (b > 0) {
			return math.MaxInt64
		}
		return math.MinInt64
	}
	return c
}

// ─── Overflow Policy ────────────────────────────────────────────────────────

// OverflowPolicy selects how money arithmetic handles overflow.
type OverflowPolicy string

const (
	// OverflowSaturate clamps at the type maximum.
	OverflowSaturate OverflowPolicy = "saturate"
	// OverflowReject fails the operation with ErrArithmeticOverflow.
	OverflowReject OverflowPolicy = "reject"
)

// ParseOverflowPolicy accepts "saturate", "reject" or "" (saturate).
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch OverflowPolicy(s) {
	case "", OverflowSaturate:
		return OverflowSaturate, nil
	case OverflowReject:
		return OverflowReject, nil
	default:
		return "", fmt.Errorf("unknown overflow policy %q", s)
	}
}

// Mul multiplies under the policy.
func (p OverflowPolicy) Mul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi == 0 {
		return lo, nil
	}
	if p == OverflowReject {
		return 0, fmt.Errorf("%w: %d × %d", ErrArithmeticOverflow, a, b)
	}
	return math.MaxUint64, nil
}

// Add adds under the policy.
func (p OverflowPolicy) Add(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry == 0 {
		return sum, nil
	}
	if p == OverflowReject {
		return 0, fmt.Errorf("%w: %d + %d", ErrArithmeticOverflow, a, b)
	}
	return math.MaxUint64, nil
}
