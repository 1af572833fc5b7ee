package mocks

import (
	"context"
	"errors"

	"github.com/godilite/rfm-insights/internal/segment"
	"github.com/godilite/rfm-insights/internal/store"
)

// MockAggregateClient is a mock implementation of the AggregateClient interface
// for testing the service layer.
type MockAggregateClient struct {
	AverageFunc       func(ctx context.Context, field string) (*float64, error)
	TotalCountFunc    func(ctx context.Context) (int64, error)
	CountWhereFunc    func(ctx context.Context, field, value string) (int64, error)
	CountByTermsFunc  func(ctx context.Context, field string, limit int) (map[string]int64, error)
	MetricByGroupFunc func(ctx context.Context, metricField string, agg store.AggKind, groupField string, limit int) (map[string]float64, error)
	PercentilesFunc   func(ctx context.Context, reqs ...store.PercentileRequest) (map[string]map[float64]float64, error)
	SegmentCountsFunc func(ctx context.Context, c *segment.Classifier, limit int) (map[string]int64, error)
}

func (m *MockAggregateClient) Average(ctx context.Context, field string) (*float64, error) {
	if m.AverageFunc != nil {
		return m.AverageFunc(ctx, field)
	}
	return nil, errors.New("AverageFunc not implemented")
}

func (m *MockAggregateClient) TotalCount(ctx context.Context) (int64, error) {
	if m.TotalCountFunc != nil {
		return m.TotalCountFunc(ctx)
	}
	return 0, errors.New("TotalCountFunc not implemented")
}

func (m *MockAggregateClient) CountWhere(ctx context.Context, field, value string) (int64, error) {
	if m.CountWhereFunc != nil {
		return m.CountWhereFunc(ctx, field, value)
	}
	return 0, errors.New("CountWhereFunc not implemented")
}

func (m *MockAggregateClient) CountByTerms(ctx context.Context, field string, limit int) (map[string]int64, error) {
	if m.CountByTermsFunc != nil {
		return m.CountByTermsFunc(ctx, field, limit)
	}
	return nil, errors.New("CountByTermsFunc not implemented")
}

func (m *MockAggregateClient) MetricByGroup(ctx context.Context, metricField string, agg store.AggKind, groupField string, limit int) (map[string]float64, error) {
	if m.MetricByGroupFunc != nil {
		return m.MetricByGroupFunc(ctx, metricField, agg, groupField, limit)
	}
	return nil, errors.New("MetricByGroupFunc not implemented")
}

func (m *MockAggregateClient) Percentiles(ctx context.Context, reqs ...store.PercentileRequest) (map[string]map[float64]float64, error) {
	if m.PercentilesFunc != nil {
		return m.PercentilesFunc(ctx, reqs...)
	}
	return nil, errors.New("PercentilesFunc not implemented")
}

func (m *MockAggregateClient) SegmentCounts(ctx context.Context, c *segment.Classifier, limit int) (map[string]int64, error) {
	if m.SegmentCountsFunc != nil {
		return m.SegmentCountsFunc(ctx, c, limit)
	}
	return nil, errors.New("SegmentCountsFunc not implemented")
}
