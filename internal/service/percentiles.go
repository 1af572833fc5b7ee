package service

import (
	"context"
	"fmt"
	"math"

	"github.com/godilite/rfm-insights/internal/segment"
	"github.com/godilite/rfm-insights/internal/store"
)

// PercentileCalculator derives the RFM cut points from the store.
type PercentileCalculator struct {
	client AggregateClient
	fields segment.Fields
}

func NewPercentileCalculator(client AggregateClient, fields segment.Fields) *PercentileCalculator {
	if client == nil {
		panic("client must not be nil")
	}
	return &PercentileCalculator{client: client, fields: fields}
}

// ComputeCutSet requests the 20/40/60/80th percentiles of the three RFM
// fields in one round trip.
func (p *PercentileCalculator) ComputeCutSet(ctx context.Context) (segment.CutSet, error) {
	fields := [3]string{p.fields.Recency, p.fields.Frequency, p.fields.Monetary}
	reqs := make([]store.PercentileRequest, 0, len(fields))
	for _, f := range fields {
		reqs = append(reqs, store.PercentileRequest{Field: f, Percents: segment.Percents[:]})
	}

	res, err := p.client.Percentiles(ctx, reqs...)
	if err != nil {
		return segment.CutSet{}, fmt.Errorf("compute percentiles: %w", err)
	}

	cs := segment.CutSet{
		Recency:   cutsFrom(res[p.fields.Recency]),
		Frequency: cutsFrom(res[p.fields.Frequency]),
		Monetary:  cutsFrom(res[p.fields.Monetary]),
	}
	return cs.Normalize(), nil
}

// cutsFrom fills each standard percent from values. A missing percent takes
// the value of the nearest percent present, preferring the lower one on a tie.
func cutsFrom(values map[float64]float64) segment.Cuts {
	var cuts segment.Cuts
	if len(values) == 0 {
		return cuts
	}
	for i, p := range segment.Percents {
		if v, ok := values[p]; ok {
			cuts[i] = v
			continue
		}
		best, bestDist := 0.0, math.Inf(1)
		var found bool
		for q, v := range values {
			d := math.Abs(q - p)
			if d < bestDist || (d == bestDist && found && q < best) {
				best, bestDist, found = q, d, true
				cuts[i] = v
			}
		}
	}
	return cuts
}
