// Package storetest provides a shared customer fixture and a behavioural
// suite every aggregate store implementation must pass.
package storetest

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/godilite/rfm-insights/internal/segment"
	"github.com/godilite/rfm-insights/internal/store"
)

type Client interface {
	Average(ctx context.Context, field string) (*float64, error)
	TotalCount(ctx context.Context) (int64, error)
	CountWhere(ctx context.Context, field, value string) (int64, error)
	CountByTerms(ctx context.Context, field string, limit int) (map[string]int64, error)
	MetricByGroup(ctx context.Context, metricField string, agg store.AggKind, groupField string, limit int) (map[string]float64, error)
	Percentiles(ctx context.Context, reqs ...store.PercentileRequest) (map[string]map[float64]float64, error)
	SegmentCounts(ctx context.Context, c *segment.Classifier, limit int) (map[string]int64, error)
}

// Customers returns ten customers whose RFM inputs are evenly spaced:
// customer i has recency 10*i days, i items and a spend of 100*i.
func Customers() []store.Customer {
	out := make([]store.Customer, 0, 10)
	for i := 1; i <= 10; i++ {
		c := store.Customer{
			CustomerID:            fmt.Sprintf("C%03d", i),
			Age:                   float64(20 + i),
			City:                  "Houston",
			TotalSpend:            float64(100 * i),
			ItemsPurchased:        float64(i),
			DaysSinceLastPurchase: float64(10 * i),
			DiscountApplied:       i%2 == 0,
		}
		if i%2 == 1 {
			c.Gender, c.AverageRating = "Female", 3.0
		} else {
			c.Gender, c.AverageRating = "Male", 4.0
		}
		switch {
		case i <= 3:
			c.MembershipType = "Gold"
		case i <= 7:
			c.MembershipType = "Silver"
		default:
			c.MembershipType = "Bronze"
		}
		switch {
		case i <= 5:
			c.SatisfactionLevel = "Satisfied"
		case i <= 8:
			c.SatisfactionLevel = "Neutral"
		default:
			c.SatisfactionLevel = "Unsatisfied"
		}
		out = append(out, c)
	}
	return out
}

// ExpectedCuts are the interpolated 20/40/60/80th percentiles of Customers.
var ExpectedCuts = segment.CutSet{
	Recency:   segment.Cuts{28, 46, 64, 82},
	Frequency: segment.Cuts{2.8, 4.6, 6.4, 8.2},
	Monetary:  segment.Cuts{280, 460, 640, 820},
}

// ExpectedSegments is the distribution of Customers under ExpectedCuts.
var ExpectedSegments = map[string]int64{
	string(segment.LoyalCustomers):     2,
	string(segment.PotentialLoyalists): 2,
	string(segment.Hibernating):        2,
	string(segment.AtRisk):             2,
	string(segment.FrequentBuyers):     2,
}

func rfmRequests() []store.PercentileRequest {
	pcts := segment.Percents[:]
	return []store.PercentileRequest{
		{Field: store.FieldDaysSincePurchase, Percents: pcts},
		{Field: store.FieldItemsPurchased, Percents: pcts},
		{Field: store.FieldTotalSpend, Percents: pcts},
	}
}

func assertCuts(t *testing.T, want segment.Cuts, got map[float64]float64) {
	t.Helper()
	require.Len(t, got, 4)
	for i, p := range segment.Percents {
		assert.InDelta(t, want[i], got[p], 1e-9, "p%v", p)
	}
}

// Run exercises a store populated through open with the given customers.
func Run(t *testing.T, open func(t *testing.T, customers []store.Customer) Client) {
	ctx := context.Background()

	t.Run("populated", func(t *testing.T) {
		c := open(t, Customers())

		t.Run("TotalCount", func(t *testing.T) {
			n, err := c.TotalCount(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(10), n)
		})

		t.Run("Average", func(t *testing.T) {
			avg, err := c.Average(ctx, store.FieldAverageRating)
			require.NoError(t, err)
			require.NotNil(t, avg)
			assert.InDelta(t, 3.5, *avg, 1e-9)

			age, err := c.Average(ctx, store.FieldAge)
			require.NoError(t, err)
			require.NotNil(t, age)
			assert.InDelta(t, 25.5, *age, 1e-9)
		})

		t.Run("CountWhere", func(t *testing.T) {
			n, err := c.CountWhere(ctx, store.FieldSatisfactionLevel, "Unsatisfied")
			require.NoError(t, err)
			assert.Equal(t, int64(2), n)

			n, err = c.CountWhere(ctx, store.FieldSatisfactionLevel, "Delighted")
			require.NoError(t, err)
			assert.Equal(t, int64(0), n)
		})

		t.Run("CountByTerms", func(t *testing.T) {
			got, err := c.CountByTerms(ctx, store.FieldMembershipType, 100)
			require.NoError(t, err)
			assert.Equal(t, map[string]int64{"Gold": 3, "Silver": 4, "Bronze": 3}, got)
		})

		t.Run("CountByTerms truncates to limit", func(t *testing.T) {
			got, err := c.CountByTerms(ctx, store.FieldMembershipType, 1)
			require.NoError(t, err)
			assert.Equal(t, map[string]int64{"Silver": 4}, got)
		})

		t.Run("MetricByGroup", func(t *testing.T) {
			sum, err := c.MetricByGroup(ctx, store.FieldTotalSpend, store.AggSum, store.FieldMembershipType, 100)
			require.NoError(t, err)
			require.Len(t, sum, 3)
			assert.InDelta(t, 600, sum["Gold"], 1e-9)
			assert.InDelta(t, 2200, sum["Silver"], 1e-9)
			assert.InDelta(t, 2700, sum["Bronze"], 1e-9)

			avg, err := c.MetricByGroup(ctx, store.FieldAge, store.AggAvg, store.FieldGender, 100)
			require.NoError(t, err)
			assert.InDelta(t, 25, avg["Female"], 1e-9)
			assert.InDelta(t, 26, avg["Male"], 1e-9)

			count, err := c.MetricByGroup(ctx, store.FieldItemsPurchased, store.AggCount, store.FieldGender, 100)
			require.NoError(t, err)
			assert.InDelta(t, 5, count["Female"], 1e-9)
			assert.InDelta(t, 5, count["Male"], 1e-9)
		})

		t.Run("Percentiles in one batch", func(t *testing.T) {
			got, err := c.Percentiles(ctx, rfmRequests()...)
			require.NoError(t, err)
			require.Len(t, got, 3)
			assertCuts(t, ExpectedCuts.Recency, got[store.FieldDaysSincePurchase])
			assertCuts(t, ExpectedCuts.Frequency, got[store.FieldItemsPurchased])
			assertCuts(t, ExpectedCuts.Monetary, got[store.FieldTotalSpend])
		})

		t.Run("SegmentCounts", func(t *testing.T) {
			cl, err := segment.NewClassifier(store.RFMFields, ExpectedCuts, nil)
			require.NoError(t, err)

			first, err := c.SegmentCounts(ctx, cl, 10)
			require.NoError(t, err)
			assert.Equal(t, ExpectedSegments, first)

			var total int64
			for _, n := range first {
				total += n
			}
			assert.Equal(t, int64(10), total)

			second, err := c.SegmentCounts(ctx, cl, 10)
			require.NoError(t, err)
			assert.Equal(t, first, second, "segmentation is idempotent")
		})

		t.Run("invalid field is rejected", func(t *testing.T) {
			_, err := c.Average(ctx, "total_spend; DROP TABLE customers")
			assert.ErrorIs(t, err, store.ErrInvalidField)
		})
	})

	t.Run("NaN RFM input scores as zero", func(t *testing.T) {
		customers := Customers()
		customers[4].DaysSinceLastPurchase = math.NaN()
		c := open(t, customers)

		cl, err := segment.NewClassifier(store.RFMFields, ExpectedCuts, nil)
		require.NoError(t, err)

		want := make(map[string]int64)
		for _, cu := range customers {
			recency := cu.DaysSinceLastPurchase
			if math.IsNaN(recency) {
				recency = 0
			}
			want[string(cl.Classify(recency, cu.ItemsPurchased, cu.TotalSpend))]++
		}
		require.Equal(t, int64(3), want[string(segment.LoyalCustomers)])

		got, err := c.SegmentCounts(ctx, cl, 10)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("empty", func(t *testing.T) {
		c := open(t, nil)

		n, err := c.TotalCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)

		avg, err := c.Average(ctx, store.FieldAverageRating)
		require.NoError(t, err)
		assert.Nil(t, avg)

		pcts, err := c.Percentiles(ctx, rfmRequests()...)
		require.NoError(t, err)
		for _, req := range rfmRequests() {
			assert.Empty(t, pcts[req.Field])
		}

		cl, err := segment.NewClassifier(store.RFMFields, segment.CutSet{}, nil)
		require.NoError(t, err)
		segs, err := c.SegmentCounts(ctx, cl, 10)
		require.NoError(t, err)
		assert.Empty(t, segs)
	})
}
