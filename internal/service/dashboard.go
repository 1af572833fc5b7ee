package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/godilite/rfm-insights/internal/store"
)

const defaultStoreTimeout = 5 * time.Second

type dashboardOptions struct {
	ext       Extensions
	publisher AlertPublisher
	timeout   time.Duration
}

type DashboardOption func(*dashboardOptions)

// WithExtensions appends queries and alert rules after the built-in ones.
func WithExtensions(ext Extensions) DashboardOption {
	return func(o *dashboardOptions) { o.ext = ext }
}

func WithPublisher(p AlertPublisher) DashboardOption {
	return func(o *dashboardOptions) { o.publisher = p }
}

func WithStoreTimeout(d time.Duration) DashboardOption {
	return func(o *dashboardOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// Dashboard serves the KPIs, predefined queries, segment distribution and
// alerts of the customer base.
type Dashboard struct {
	client    AggregateClient
	catalog   *Catalog
	scorer    *RFMScorer
	alerts    *AlertEvaluator
	publisher AlertPublisher
	timeout   time.Duration
	logger    *zap.Logger
}

// NewDashboard creates a Dashboard instance.
func NewDashboard(client AggregateClient, logger *zap.Logger, opts ...DashboardOption) (*Dashboard, error) {
	if client == nil {
		panic("client must not be nil")
	}
	if logger == nil {
		l, _ := zap.NewProduction()
		logger = l
	}
	o := &dashboardOptions{timeout: defaultStoreTimeout}
	for _, opt := range opts {
		opt(o)
	}

	queries := append(append([]QuerySpec{}, DefaultQueries...), o.ext.Queries...)
	catalog, err := NewCatalog(queries...)
	if err != nil {
		return nil, err
	}

	scorer := NewRFMScorer(client, store.RFMFields, nil, logger.Named("rfm"))
	rules := append(append([]AlertRule{}, DefaultAlertRules...), o.ext.Alerts...)
	alerts, err := NewAlertEvaluator(client, scorer, rules, logger.Named("alerts"))
	if err != nil {
		return nil, err
	}

	return &Dashboard{
		client:    client,
		catalog:   catalog,
		scorer:    scorer,
		alerts:    alerts,
		publisher: o.publisher,
		timeout:   o.timeout,
		logger:    logger,
	}, nil
}

// KPIs fetches the headline numbers concurrently.
func (d *Dashboard) KPIs(ctx context.Context) (KPIs, error) {
	dbCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var k KPIs
	g, gctx := errgroup.WithContext(dbCtx)
	g.Go(func() error {
		n, err := d.client.TotalCount(gctx)
		if err != nil {
			return fmt.Errorf("total count: %w", err)
		}
		k.Total = n
		return nil
	})
	g.Go(func() error {
		avg, err := d.client.Average(gctx, store.FieldAverageRating)
		if err != nil {
			return fmt.Errorf("average rating: %w", err)
		}
		if avg != nil {
			k.AvgRating = *avg
		}
		return nil
	})
	g.Go(func() error {
		n, err := d.client.CountWhere(gctx, store.FieldSatisfactionLevel, "Unsatisfied")
		if err != nil {
			return fmt.Errorf("unsatisfied count: %w", err)
		}
		k.UnsatisfiedCount = n
		return nil
	})
	if err := g.Wait(); err != nil {
		return KPIs{}, err
	}

	d.logger.Info("fetched kpis",
		zap.Int64("total", k.Total),
		zap.Float64("avg_rating", k.AvgRating),
		zap.Int64("unsatisfied", k.UnsatisfiedCount))
	return k, nil
}

// Queries lists the predefined query names in catalog order.
func (d *Dashboard) Queries() []string {
	return d.catalog.Names()
}

// RunQuery executes a predefined query. Rows are sorted by value descending.
func (d *Dashboard) RunQuery(ctx context.Context, name string) (QueryResult, error) {
	q, ok := d.catalog.Lookup(name)
	if !ok {
		return QueryResult{}, fmt.Errorf("%w: %q", ErrUnknownQuery, name)
	}

	dbCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var rows []QueryRow
	switch q.Kind {
	case QueryTerms:
		counts, err := d.client.CountByTerms(dbCtx, q.GroupField, q.Limit)
		if err != nil {
			return QueryResult{}, fmt.Errorf("query %q: %w", name, err)
		}
		rows = make([]QueryRow, 0, len(counts))
		for k, n := range counts {
			rows = append(rows, QueryRow{Key: k, Value: float64(n)})
		}
	case QueryMetric:
		values, err := d.client.MetricByGroup(dbCtx, q.MetricField, q.Agg, q.GroupField, q.Limit)
		if err != nil {
			return QueryResult{}, fmt.Errorf("query %q: %w", name, err)
		}
		rows = make([]QueryRow, 0, len(values))
		for k, v := range values {
			rows = append(rows, QueryRow{Key: k, Value: v})
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Value != rows[j].Value {
			return rows[i].Value > rows[j].Value
		}
		return rows[i].Key < rows[j].Key
	})

	d.logger.Info("ran query", zap.String("query", name), zap.Int("rows", len(rows)))
	return QueryResult{Name: q.Name, Kind: q.Kind, Rows: rows}, nil
}

// Segments returns the segment distribution sorted by count descending.
func (d *Dashboard) Segments(ctx context.Context) ([]SegmentRow, error) {
	dbCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	dist, err := d.scorer.Segments(dbCtx)
	if err != nil {
		return nil, err
	}
	return dist.Sorted(), nil
}

// CheckAlerts evaluates the alert rules and publishes whatever fired.
// Publication failures are logged and do not fail the evaluation.
func (d *Dashboard) CheckAlerts(ctx context.Context) ([]Alert, error) {
	dbCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	alerts, err := d.alerts.Evaluate(dbCtx)
	if err != nil {
		return nil, err
	}

	if len(alerts) > 0 && d.publisher != nil {
		start := time.Now()
		if err := d.publisher.Publish(ctx, alerts); err != nil {
			d.logger.Warn("failed to publish alerts", zap.Int("alerts", len(alerts)), zap.Error(err))
		} else {
			d.logger.Info("published alerts", zap.Int("alerts", len(alerts)), zap.Duration("took", time.Since(start)))
		}
	}
	return alerts, nil
}
