package service

import (
	"context"

	"github.com/godilite/rfm-insights/internal/segment"
	"github.com/godilite/rfm-insights/internal/store"
)

// AggregateClient defines the aggregate queries the service issues against
// the customer store.
type AggregateClient interface {
	Average(ctx context.Context, field string) (*float64, error)
	TotalCount(ctx context.Context) (int64, error)
	CountWhere(ctx context.Context, field, value string) (int64, error)
	CountByTerms(ctx context.Context, field string, limit int) (map[string]int64, error)
	MetricByGroup(ctx context.Context, metricField string, agg store.AggKind, groupField string, limit int) (map[string]float64, error)
	Percentiles(ctx context.Context, reqs ...store.PercentileRequest) (map[string]map[float64]float64, error)
	SegmentCounts(ctx context.Context, c *segment.Classifier, limit int) (map[string]int64, error)
}

// AlertPublisher delivers fired alerts to downstream subscribers.
type AlertPublisher interface {
	Publish(ctx context.Context, alerts []Alert) error
}
