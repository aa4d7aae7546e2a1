package util

import "math"

// Clamp01 clamps x to the closed interval [0, 1].
func Clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// Clamp clamps x to [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// Round6 rounds x to 6 decimal places. Scores are rounded before
// persistence so repeated runs over identical input are bit-identical.
func Round6(x float64) float64 {
	return math.Round(x*1e6) / 1e6
}

// AbsFloat64 returns the absolute value of x.
func AbsFloat64(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
