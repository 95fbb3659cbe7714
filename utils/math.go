package utils

import "math"

// Clamp limits v to the closed interval [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// ClampUint8 rounds v to the nearest integer and clamps it to a byte.
func ClampUint8(v float64) uint8 {
	return uint8(Clamp(math.Round(v), 0, 255))
}
