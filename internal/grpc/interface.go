package grpc

import (
	"context"

	"github.com/godilite/rfm-insights/internal/service"
)

// Dashboard is the service the gRPC handlers expose.
type Dashboard interface {
	KPIs(ctx context.Context) (service.KPIs, error)
	Queries() []string
	RunQuery(ctx context.Context, name string) (service.QueryResult, error)
	Segments(ctx context.Context) ([]service.SegmentRow, error)
	CheckAlerts(ctx context.Context) ([]service.Alert, error)
}
