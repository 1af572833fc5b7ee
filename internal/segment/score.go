package segment

import "math"

// Percents are the cut points requested for every RFM dimension.
var Percents = [4]float64{20, 40, 60, 80}

// Cuts holds the 20/40/60/80th percentile boundaries of one metric.
type Cuts [4]float64

// Normalize forces the boundaries to be finite and non-decreasing.
func (c Cuts) Normalize() Cuts {
	var out Cuts
	for i, v := range c {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
			if i > 0 {
				v = out[i-1]
			}
		}
		if i > 0 && v < out[i-1] {
			v = out[i-1]
		}
		out[i] = v
	}
	return out
}

// CutSet is the full set of percentile boundaries for one segmentation run.
type CutSet struct {
	Recency   Cuts
	Frequency Cuts
	Monetary  Cuts
}

func (cs CutSet) Normalize() CutSet {
	return CutSet{
		Recency:   cs.Recency.Normalize(),
		Frequency: cs.Frequency.Normalize(),
		Monetary:  cs.Monetary.Normalize(),
	}
}

// ScoreAscending buckets v so that larger values score higher (1..5).
// A value equal to a boundary lands in the lower bucket.
func ScoreAscending(v float64, c Cuts) int {
	for i, cut := range c {
		if v <= cut {
			return i + 1
		}
	}
	return 5
}

// ScoreDescending buckets v so that smaller values score higher (5..1).
func ScoreDescending(v float64, c Cuts) int {
	return 6 - ScoreAscending(v, c)
}

// Score is the per-customer R, F and M sub-score, each in [1,5].
type Score struct {
	R int
	F int
	M int
}

// Code is the three digit composite 100R + 10F + M.
func (s Score) Code() int {
	return s.R*100 + s.F*10 + s.M
}

// Valid reports whether every sub-score is within [1,5].
func (s Score) Valid() bool {
	in := func(v int) bool { return v >= 1 && v <= 5 }
	return in(s.R) && in(s.F) && in(s.M)
}
