package store

import "math"

// Ranks locates percentile p of n sorted values: the zero-based ranks of the
// two closest values and the interpolation weight of the upper one.
func Ranks(n int64, p float64) (lo, hi int64, frac float64) {
	if n <= 1 {
		return 0, 0, 0
	}
	pos := p / 100 * float64(n-1)
	lo = int64(math.Floor(pos))
	hi = int64(math.Ceil(pos))
	if hi > n-1 {
		hi = n - 1
	}
	return lo, hi, pos - float64(lo)
}

// Interpolate reads percentile p from n sorted values through at, which
// returns the value at a zero-based rank. The boolean is false when the
// population is empty or a needed rank is unavailable.
func Interpolate(n int64, p float64, at func(rank int64) (float64, bool)) (float64, bool) {
	if n <= 0 {
		return 0, false
	}
	lo, hi, frac := Ranks(n, p)
	low, ok := at(lo)
	if !ok {
		return 0, false
	}
	if hi == lo || frac == 0 {
		return low, true
	}
	high, ok := at(hi)
	if !ok {
		return low, true
	}
	return low + (high-low)*frac, true
}

// PercentileOfSorted computes percentile p of already sorted values.
func PercentileOfSorted(sorted []float64, p float64) (float64, bool) {
	return Interpolate(int64(len(sorted)), p, func(rank int64) (float64, bool) {
		if rank < 0 || rank >= int64(len(sorted)) {
			return 0, false
		}
		return sorted[rank], true
	})
}
