package safe

import (
	"math"
)

// SafeAddU64 performs uint64 addition and panics on overflow.
func SafeAddU64(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		panic("CORE_SAFE_ADD_OVERFLOW")
	}
	return a + b
}

// SafeSubU64 performs uint64 subtraction and panics on underflow.
func SafeSubU64(a, b uint64) uint64 {
	if b > a {
		panic("CORE_SAFE_SUB_UNDERFLOW")
	}
	return a - b
}

// SafeMulU64 performs uint64 multiplication and panics on overflow.
func SafeMulU64(a, b uint64) uint64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a > math.MaxUint64/b {
		panic("CORE_SAFE_MUL_OVERFLOW")
	}
	return a * b
}

// SafeDivU64 performs uint64 division and panics on division by zero.
func SafeDivU64(a, b uint64) uint64 {
	if b == 0 {
		panic("CORE_SAFE_DIV_BY_ZERO")
	}
	return a / b
}

// SplitBps splits an amount by basis points (100 bps => 1%).
// Returns (rest, cut) where cut = amount * bps / 10000.
// Venue-reported amounts are untrusted input, hence the overflow guards.
func SplitBps(amount uint64, bps uint16) (uint64, uint64) {
	cut := SafeDivU64(SafeMulU64(amount, uint64(bps)), 10000)
	return SafeSubU64(amount, cut), cut
}
