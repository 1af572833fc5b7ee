package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/godilite/rfm-insights/internal/segment"
	"github.com/godilite/rfm-insights/internal/service/mocks"
	"github.com/godilite/rfm-insights/internal/store"
	"github.com/godilite/rfm-insights/internal/store/memstore"
	"github.com/godilite/rfm-insights/internal/store/storetest"
)

type recordingPublisher struct {
	mu      sync.Mutex
	batches [][]Alert
	err     error
}

func (p *recordingPublisher) Publish(ctx context.Context, alerts []Alert) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, alerts)
	return p.err
}

func newDashboard(t *testing.T, client AggregateClient, opts ...DashboardOption) *Dashboard {
	t.Helper()
	d, err := NewDashboard(client, zaptest.NewLogger(t), opts...)
	require.NoError(t, err)
	return d
}

func TestNewDashboard(t *testing.T) {
	t.Run("nil client panics", func(t *testing.T) {
		assert.Panics(t, func() {
			_, _ = NewDashboard(nil, zap.NewNop())
		})
	})

	t.Run("nil logger gets default", func(t *testing.T) {
		d, err := NewDashboard(&mocks.MockAggregateClient{}, nil)
		require.NoError(t, err)
		assert.NotNil(t, d.logger)
		assert.Equal(t, defaultStoreTimeout, d.timeout)
	})

	t.Run("duplicate extension query", func(t *testing.T) {
		_, err := NewDashboard(&mocks.MockAggregateClient{}, zap.NewNop(), WithExtensions(Extensions{
			Queries: []QuerySpec{DefaultQueries[0]},
		}))
		assert.ErrorIs(t, err, ErrInvalidQuery)
	})

	t.Run("duplicate extension alert", func(t *testing.T) {
		_, err := NewDashboard(&mocks.MockAggregateClient{}, zap.NewNop(), WithExtensions(Extensions{
			Alerts: []AlertRule{DefaultAlertRules[0]},
		}))
		assert.ErrorIs(t, err, ErrInvalidAlertRule)
	})
}

func TestKPIs(t *testing.T) {
	ctx := context.Background()

	t.Run("memory store", func(t *testing.T) {
		d := newDashboard(t, memstore.FromCustomers(storetest.Customers()))

		k, err := d.KPIs(ctx)
		require.NoError(t, err)
		assert.Equal(t, KPIs{Total: 10, AvgRating: 3.5, UnsatisfiedCount: 2}, k)
	})

	t.Run("empty store", func(t *testing.T) {
		d := newDashboard(t, memstore.New())

		k, err := d.KPIs(ctx)
		require.NoError(t, err)
		assert.Equal(t, KPIs{}, k)
	})

	t.Run("one failing fetch fails the call", func(t *testing.T) {
		client := &mocks.MockAggregateClient{
			TotalCountFunc: func(ctx context.Context) (int64, error) { return 10, nil },
			AverageFunc: func(ctx context.Context, field string) (*float64, error) {
				return nil, store.Retrieval("Average", errors.New("connection refused"))
			},
			CountWhereFunc: func(ctx context.Context, field, value string) (int64, error) {
				assert.Equal(t, store.FieldSatisfactionLevel, field)
				assert.Equal(t, "Unsatisfied", value)
				return 1, nil
			},
		}
		d := newDashboard(t, client)

		_, err := d.KPIs(ctx)
		assert.ErrorIs(t, err, store.ErrRetrieval)
		assert.Contains(t, err.Error(), "average rating")
	})

	t.Run("store timeout applies", func(t *testing.T) {
		client := &mocks.MockAggregateClient{
			TotalCountFunc: func(ctx context.Context) (int64, error) {
				<-ctx.Done()
				return 0, store.Retrieval("TotalCount", ctx.Err())
			},
			AverageFunc:    func(ctx context.Context, field string) (*float64, error) { return nil, nil },
			CountWhereFunc: func(ctx context.Context, field, value string) (int64, error) { return 0, nil },
		}
		d := newDashboard(t, client, WithStoreTimeout(10*time.Millisecond))

		_, err := d.KPIs(ctx)
		assert.ErrorIs(t, err, store.ErrRetrieval)
		assert.Contains(t, err.Error(), context.DeadlineExceeded.Error())
	})
}

func TestRunQuery(t *testing.T) {
	ctx := context.Background()
	d := newDashboard(t, memstore.FromCustomers(storetest.Customers()))

	t.Run("catalog order", func(t *testing.T) {
		assert.Equal(t, []string{
			"Average age by membership",
			"Total spend by membership",
			"Average rating by gender",
			"Average items purchased by membership",
			"Count of customers by satisfaction level",
		}, d.Queries())
	})

	t.Run("metric rows sorted by value", func(t *testing.T) {
		res, err := d.RunQuery(ctx, "Total spend by membership")
		require.NoError(t, err)
		assert.Equal(t, QueryMetric, res.Kind)
		assert.Equal(t, []QueryRow{
			{Key: "Bronze", Value: 2700},
			{Key: "Silver", Value: 2200},
			{Key: "Gold", Value: 600},
		}, res.Rows)
	})

	t.Run("terms rows sorted by count then key", func(t *testing.T) {
		res, err := d.RunQuery(ctx, "Count of customers by satisfaction level")
		require.NoError(t, err)
		assert.Equal(t, QueryTerms, res.Kind)
		assert.Equal(t, []QueryRow{
			{Key: "Satisfied", Value: 5},
			{Key: "Neutral", Value: 3},
			{Key: "Unsatisfied", Value: 2},
		}, res.Rows)
	})

	t.Run("unknown query", func(t *testing.T) {
		_, err := d.RunQuery(ctx, "Average shoe size")
		assert.ErrorIs(t, err, ErrUnknownQuery)
	})

	t.Run("limit reaches the store", func(t *testing.T) {
		client := &mocks.MockAggregateClient{
			MetricByGroupFunc: func(ctx context.Context, metricField string, agg store.AggKind, groupField string, limit int) (map[string]float64, error) {
				assert.Equal(t, store.FieldAge, metricField)
				assert.Equal(t, store.AggAvg, agg)
				assert.Equal(t, store.FieldMembershipType, groupField)
				assert.Equal(t, DefaultQueryLimit, limit)
				return map[string]float64{}, nil
			},
		}
		res, err := newDashboard(t, client).RunQuery(ctx, "Average age by membership")
		require.NoError(t, err)
		assert.Empty(t, res.Rows)
	})
}

func TestDashboardSegments(t *testing.T) {
	d := newDashboard(t, memstore.FromCustomers(storetest.Customers()))

	rows, err := d.Segments(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 5)

	var total int64
	for i, r := range rows {
		total += r.Count
		if i > 0 {
			assert.GreaterOrEqual(t, rows[i-1].Count, r.Count)
		}
	}
	assert.EqualValues(t, 10, total)
	assert.Equal(t, segment.AtRisk, rows[0].Segment, "ties break by name")
}

func TestCheckAlerts(t *testing.T) {
	ctx := context.Background()

	t.Run("fired alerts are published", func(t *testing.T) {
		pub := &recordingPublisher{}
		d := newDashboard(t, fakeStore(ptr(3.2), 100, 15, 20, map[string]int{}), WithPublisher(pub))

		alerts, err := d.CheckAlerts(ctx)
		require.NoError(t, err)
		assert.Len(t, alerts, 3)
		require.Len(t, pub.batches, 1)
		assert.Equal(t, alerts, pub.batches[0])
	})

	t.Run("nothing fired publishes nothing", func(t *testing.T) {
		pub := &recordingPublisher{}
		d := newDashboard(t, fakeStore(ptr(4.1), 100, 2, 5, map[string]int{}), WithPublisher(pub))

		alerts, err := d.CheckAlerts(ctx)
		require.NoError(t, err)
		assert.Empty(t, alerts)
		assert.Empty(t, pub.batches)
	})

	t.Run("publish failure does not fail the check", func(t *testing.T) {
		pub := &recordingPublisher{err: errors.New("broker down")}
		d := newDashboard(t, fakeStore(ptr(3.0), 100, 0, 0, map[string]int{}), WithPublisher(pub))

		alerts, err := d.CheckAlerts(ctx)
		require.NoError(t, err)
		assert.Len(t, alerts, 1)
	})

	t.Run("extension rules run after the defaults", func(t *testing.T) {
		d := newDashboard(t, fakeStore(ptr(4.2), 100, 0, 0, map[string]int{}), WithExtensions(Extensions{
			Alerts: []AlertRule{{
				ID:        "high_rating",
				Title:     "High rating",
				Metric:    MetricAvgRating,
				Op:        ">",
				Threshold: 4,
				Template:  `rating {{printf "%.1f" .Value}}`,
			}},
		}))

		alerts, err := d.CheckAlerts(ctx)
		require.NoError(t, err)
		require.Len(t, alerts, 1)
		assert.Equal(t, "rating 4.2", alerts[0].Message)
	})
}

func TestLoadExtensions(t *testing.T) {
	t.Run("empty path", func(t *testing.T) {
		ext, err := LoadExtensions("")
		require.NoError(t, err)
		assert.Empty(t, ext.Queries)
		assert.Empty(t, ext.Alerts)
	})

	t.Run("yaml file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "catalog.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
queries:
  - name: Max spend by city
    kind: metric
    metric_field: total_spend
    agg: max
    group_field: city
alerts:
  - id: many_bronze
    title: Many Bronze members
    metric: pct:membership_type=Bronze
    op: ">"
    threshold: 40
    template: "{{.Count}} Bronze members"
`), 0o600))

		ext, err := LoadExtensions(path)
		require.NoError(t, err)
		require.Len(t, ext.Queries, 1)
		assert.Equal(t, QuerySpec{Name: "Max spend by city", Kind: QueryMetric, MetricField: "total_spend", Agg: store.AggMax, GroupField: "city"}, ext.Queries[0])
		require.Len(t, ext.Alerts, 1)
		assert.Equal(t, 40.0, ext.Alerts[0].Threshold)

		d := newDashboard(t, memstore.FromCustomers(storetest.Customers()), WithExtensions(ext))
		assert.Len(t, d.Queries(), 6)

		res, err := d.RunQuery(context.Background(), "Max spend by city")
		require.NoError(t, err)
		assert.Equal(t, []QueryRow{{Key: "Houston", Value: 1000}}, res.Rows)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadExtensions(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("queries: [unterminated"), 0o600))
		_, err := LoadExtensions(path)
		assert.Error(t, err)
	})
}

func TestNewCatalog(t *testing.T) {
	cases := []struct {
		name string
		spec QuerySpec
	}{
		{"missing name", QuerySpec{Kind: QueryTerms, GroupField: "city"}},
		{"bad group field", QuerySpec{Name: "x", Kind: QueryTerms, GroupField: "city name"}},
		{"unknown kind", QuerySpec{Name: "x", Kind: "histogram", GroupField: "city"}},
		{"metric without field", QuerySpec{Name: "x", Kind: QueryMetric, Agg: store.AggAvg, GroupField: "city"}},
		{"bad aggregation", QuerySpec{Name: "x", Kind: QueryMetric, MetricField: "age", Agg: "median", GroupField: "city"}},
		{"negative limit", QuerySpec{Name: "x", Kind: QueryTerms, GroupField: "city", Limit: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewCatalog(tc.spec)
			assert.ErrorIs(t, err, ErrInvalidQuery)
		})
	}

	t.Run("zero limit defaults", func(t *testing.T) {
		c, err := NewCatalog(QuerySpec{Name: "x", Kind: QueryTerms, GroupField: "city"})
		require.NoError(t, err)
		q, ok := c.Lookup("x")
		require.True(t, ok)
		assert.Equal(t, DefaultQueryLimit, q.Limit)
	})
}
