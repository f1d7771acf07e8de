package domain

import "math/bits"

// MulDiv returns floor(a*b/d) using a 128-bit intermediate product.
// It fails with ErrArithmeticOverflow when d is zero or the quotient
// does not fit in 64 bits.
func MulDiv(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, ErrArithmeticOverflow.WithDetails("division by zero")
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= d {
		return 0, ErrArithmeticOverflow.WithDetails("quotient exceeds 64 bits")
	}
	q, _ := bits.Div64(hi, lo, d)
	return q, nil
}

// AddU64 adds with overflow detection.
func AddU64(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrArithmeticOverflow
	}
	return sum, nil
}

// SubU64 subtracts with underflow detection.
func SubU64(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, ErrArithmeticOverflow.WithDetails("negative result")
	}
	return diff, nil
}

// AddSeconds adds a duration to a unix timestamp with overflow detection.
func AddSeconds(ts, secs int64) (int64, error) {
	sum := ts + secs
	if (secs > 0 && sum < ts) || (secs < 0 && sum > ts) {
		return 0, ErrArithmeticOverflow
	}
	return sum, nil
}
