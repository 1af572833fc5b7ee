package mocks

import (
	"context"
	"errors"

	"github.com/godilite/rfm-insights/internal/service"
)

// MockDashboard is a mock implementation of the Dashboard interface for
// testing the transport layers.
type MockDashboard struct {
	KPIsFunc        func(ctx context.Context) (service.KPIs, error)
	QueriesFunc     func() []string
	RunQueryFunc    func(ctx context.Context, name string) (service.QueryResult, error)
	SegmentsFunc    func(ctx context.Context) ([]service.SegmentRow, error)
	CheckAlertsFunc func(ctx context.Context) ([]service.Alert, error)
}

func (m *MockDashboard) KPIs(ctx context.Context) (service.KPIs, error) {
	if m.KPIsFunc != nil {
		return m.KPIsFunc(ctx)
	}
	return service.KPIs{}, errors.New("KPIsFunc not implemented")
}

func (m *MockDashboard) Queries() []string {
	if m.QueriesFunc != nil {
		return m.QueriesFunc()
	}
	return nil
}

func (m *MockDashboard) RunQuery(ctx context.Context, name string) (service.QueryResult, error) {
	if m.RunQueryFunc != nil {
		return m.RunQueryFunc(ctx, name)
	}
	return service.QueryResult{}, errors.New("RunQueryFunc not implemented")
}

func (m *MockDashboard) Segments(ctx context.Context) ([]service.SegmentRow, error) {
	if m.SegmentsFunc != nil {
		return m.SegmentsFunc(ctx)
	}
	return nil, errors.New("SegmentsFunc not implemented")
}

func (m *MockDashboard) CheckAlerts(ctx context.Context) ([]service.Alert, error) {
	if m.CheckAlertsFunc != nil {
		return m.CheckAlertsFunc(ctx)
	}
	return nil, errors.New("CheckAlertsFunc not implemented")
}
