package service

import (
	"math"
)

// ParseAmount converts a boundary number into whole LBX.
// NaN, infinities, fractions and values outside int64 are rejected.
func ParseAmount(value float64) (int64, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, ErrInvalidAmount
	}
	if value != math.Trunc(value) {
		return 0, ErrInvalidAmount
	}
	if value >= math.MaxInt64 || value < math.MinInt64 {
		return 0, ErrInvalidAmount
	}
	return int64(value), nil
}
