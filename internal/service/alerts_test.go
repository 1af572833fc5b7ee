package service

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/godilite/rfm-insights/internal/segment"
	"github.com/godilite/rfm-insights/internal/service/mocks"
	"github.com/godilite/rfm-insights/internal/store"
)

// fakeStore answers the alert metrics from fixed numbers and counts calls.
func fakeStore(avg *float64, total, unsatisfied, atRisk int64, calls map[string]int) *mocks.MockAggregateClient {
	return &mocks.MockAggregateClient{
		AverageFunc: func(ctx context.Context, field string) (*float64, error) {
			calls["Average"]++
			return avg, nil
		},
		TotalCountFunc: func(ctx context.Context) (int64, error) {
			calls["TotalCount"]++
			return total, nil
		},
		CountWhereFunc: func(ctx context.Context, field, value string) (int64, error) {
			calls["CountWhere"]++
			return unsatisfied, nil
		},
		PercentilesFunc: func(ctx context.Context, reqs ...store.PercentileRequest) (map[string]map[float64]float64, error) {
			calls["Percentiles"]++
			return map[string]map[float64]float64{}, nil
		},
		SegmentCountsFunc: func(ctx context.Context, c *segment.Classifier, limit int) (map[string]int64, error) {
			calls["SegmentCounts"]++
			return map[string]int64{
				string(segment.AtRisk):      atRisk,
				string(segment.Hibernating): total - atRisk,
			}, nil
		},
	}
}

func newEvaluator(t *testing.T, client AggregateClient, rules []AlertRule) *AlertEvaluator {
	t.Helper()
	logger := zap.NewNop()
	scorer := NewRFMScorer(client, store.RFMFields, nil, logger)
	e, err := NewAlertEvaluator(client, scorer, rules, logger)
	require.NoError(t, err)
	return e
}

func ptr(v float64) *float64 { return &v }

func TestEvaluate(t *testing.T) {
	ctx := context.Background()

	t.Run("all alerts fire", func(t *testing.T) {
		calls := map[string]int{}
		e := newEvaluator(t, fakeStore(ptr(3.2), 100, 15, 20, calls), nil)

		alerts, err := e.Evaluate(ctx)
		require.NoError(t, err)
		require.Len(t, alerts, 3)

		assert.Equal(t, "Low average rating", alerts[0].Title)
		assert.Equal(t, "Average rating is 3.20 (< 3.5)", alerts[0].Message)
		assert.Equal(t, "High unsatisfied rate", alerts[1].Title)
		assert.Equal(t, "15.0% of customers are unsatisfied (>10%)", alerts[1].Message)
		assert.Equal(t, "Large At-Risk group", alerts[2].Title)
		assert.Equal(t, "20 customers (20.0%) are At Risk (>15%)", alerts[2].Message)

		assert.Equal(t, 1, calls["TotalCount"], "total is read once per evaluation")
		assert.Equal(t, 1, calls["SegmentCounts"])
	})

	t.Run("nothing fires", func(t *testing.T) {
		e := newEvaluator(t, fakeStore(ptr(4.1), 100, 2, 5, map[string]int{}), nil)

		alerts, err := e.Evaluate(ctx)
		require.NoError(t, err)
		assert.Empty(t, alerts)
		assert.NotNil(t, alerts)
	})

	t.Run("empty store does not divide by zero", func(t *testing.T) {
		e := newEvaluator(t, fakeStore(nil, 0, 0, 0, map[string]int{}), nil)

		alerts, err := e.Evaluate(ctx)
		require.NoError(t, err)
		require.Len(t, alerts, 1, "missing average counts as 0.0")
		assert.Equal(t, "low_avg_rating", alerts[0].ID)
		assert.Equal(t, "Average rating is 0.00 (< 3.5)", alerts[0].Message)
	})

	t.Run("thresholds are exclusive", func(t *testing.T) {
		e := newEvaluator(t, fakeStore(ptr(3.5), 100, 10, 15, map[string]int{}), nil)

		alerts, err := e.Evaluate(ctx)
		require.NoError(t, err)
		assert.Empty(t, alerts)
	})

	t.Run("non-finite values never fire", func(t *testing.T) {
		e := newEvaluator(t, fakeStore(ptr(math.NaN()), 100, 0, 0, map[string]int{}), nil)

		alerts, err := e.Evaluate(ctx)
		require.NoError(t, err)
		assert.Empty(t, alerts)
	})

	t.Run("only referenced metrics are read", func(t *testing.T) {
		calls := map[string]int{}
		e := newEvaluator(t, fakeStore(ptr(3.0), 100, 0, 0, calls), DefaultAlertRules[:1])

		_, err := e.Evaluate(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"Average": 1}, calls)
	})

	t.Run("store failure", func(t *testing.T) {
		client := fakeStore(ptr(3.0), 100, 0, 0, map[string]int{})
		client.TotalCountFunc = func(ctx context.Context) (int64, error) {
			return 0, store.Retrieval("TotalCount", errors.New("connection refused"))
		}
		e := newEvaluator(t, client, nil)

		alerts, err := e.Evaluate(ctx)
		assert.ErrorIs(t, err, store.ErrRetrieval)
		assert.Nil(t, alerts)
	})
}

func TestCustomAlertRules(t *testing.T) {
	ctx := context.Background()
	client := fakeStore(ptr(4.0), 40, 30, 0, map[string]int{})
	client.CountWhereFunc = func(ctx context.Context, field, value string) (int64, error) {
		assert.Equal(t, store.FieldMembershipType, field)
		assert.Equal(t, "Bronze", value)
		return 30, nil
	}

	e := newEvaluator(t, client, []AlertRule{{
		ID:        "bronze_heavy",
		Title:     "Bronze-heavy base",
		Metric:    "pct:membership_type=Bronze",
		Op:        ">",
		Threshold: 50,
		Template:  `{{.Count}} of {{.Total}} customers are Bronze`,
	}})

	alerts, err := e.Evaluate(ctx)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "30 of 40 customers are Bronze", alerts[0].Message)
	assert.Equal(t, 75.0, alerts[0].Value)
}

func TestCompileRules(t *testing.T) {
	valid := AlertRule{ID: "x", Metric: MetricAvgRating, Op: "<", Template: "ok"}

	cases := []struct {
		name   string
		mutate func(r *AlertRule)
	}{
		{"missing id", func(r *AlertRule) { r.ID = "" }},
		{"bad operator", func(r *AlertRule) { r.Op = ">=" }},
		{"unknown metric", func(r *AlertRule) { r.Metric = "median_rating" }},
		{"unknown metric kind", func(r *AlertRule) { r.Metric = "p90:age" }},
		{"bad field", func(r *AlertRule) { r.Metric = "avg:total spend" }},
		{"share without value", func(r *AlertRule) { r.Metric = "pct:gender" }},
		{"unknown segment", func(r *AlertRule) { r.Metric = "segment_pct:Whales" }},
		{"bad template", func(r *AlertRule) { r.Template = "{{.Value" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := valid
			tc.mutate(&r)
			_, err := compileRules([]AlertRule{r})
			assert.ErrorIs(t, err, ErrInvalidAlertRule)
		})
	}

	t.Run("duplicate id", func(t *testing.T) {
		_, err := compileRules([]AlertRule{valid, valid})
		assert.ErrorIs(t, err, ErrInvalidAlertRule)
	})

	t.Run("defaults compile", func(t *testing.T) {
		rules, err := compileRules(DefaultAlertRules)
		require.NoError(t, err)
		assert.Len(t, rules, 3)
	})
}
