package grpc

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	pb "github.com/godilite/rfm-insights/api/v1"
	"github.com/godilite/rfm-insights/internal/service"
	"github.com/godilite/rfm-insights/internal/store"
)

const defaultGRPCTimeout = 10 * time.Second

const (
	keyKPIs     = "grpc:kpis"
	keySegments = "grpc:segments"
	keyAlerts   = "grpc:alerts"
	keyQuery    = "grpc:query:"
)

type GRPCHandlers struct {
	pb.UnimplementedInsightsServer
	dashboard Dashboard
	logger    *zap.Logger
	sfGroup   singleflight.Group
	timeout   time.Duration
}

// NewGRPCHandlers initializes the gRPC handlers.
func NewGRPCHandlers(dashboard Dashboard, logger *zap.Logger, timeout time.Duration) *GRPCHandlers {
	if dashboard == nil {
		panic("nil Dashboard provided to NewGRPCHandlers")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = defaultGRPCTimeout
	}
	return &GRPCHandlers{
		dashboard: dashboard,
		logger:    logger.Named("grpc-handler"),
		timeout:   timeout,
	}
}

func (s *GRPCHandlers) handleError(ctx context.Context, op string, err error) error {
	switch ctx.Err() {
	case context.Canceled:
		s.logger.Warn("request canceled", zap.String("op", op))
		return status.Error(codes.Canceled, "request canceled")
	case context.DeadlineExceeded:
		s.logger.Warn("request timeout", zap.String("op", op))
		return status.Error(codes.DeadlineExceeded, "request timed out")
	}

	switch {
	case errors.Is(err, service.ErrUnknownQuery):
		s.logger.Info("unknown query", zap.String("op", op), zap.Error(err))
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		s.logger.Warn("store timeout", zap.String("op", op), zap.Error(err))
		return status.Error(codes.DeadlineExceeded, "store timed out")
	case errors.Is(err, store.ErrRetrieval):
		s.logger.Error("store failure", zap.String("op", op), zap.Error(err))
		return status.Error(codes.Unavailable, "store unavailable")
	default:
		s.logger.Error("unexpected error", zap.String("op", op), zap.Error(err))
		return status.Errorf(codes.Internal, "%s failed: %v", op, err)
	}
}

func (s *GRPCHandlers) encode(op string, fields map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		s.logger.Error("failed to encode response", zap.String("op", op), zap.Error(err))
		return nil, status.Errorf(codes.Internal, "%s: encode response: %v", op, err)
	}
	return out, nil
}

func (s *GRPCHandlers) GetKPIs(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	k, err := Coalesce(ctx, &s.sfGroup, keyKPIs, s.timeout, s.logger, s.dashboard.KPIs)
	if err != nil {
		return nil, s.handleError(ctx, "GetKPIs", err)
	}
	return s.encode("GetKPIs", map[string]any{
		"total":             k.Total,
		"avg_rating":        k.AvgRating,
		"unsatisfied_count": k.UnsatisfiedCount,
	})
}

func (s *GRPCHandlers) ListQueries(context.Context, *emptypb.Empty) (*structpb.ListValue, error) {
	names := s.dashboard.Queries()
	values := make([]any, len(names))
	for i, n := range names {
		values[i] = n
	}
	out, err := structpb.NewList(values)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "ListQueries: encode response: %v", err)
	}
	return out, nil
}

func (s *GRPCHandlers) RunQuery(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	name := strings.TrimSpace(req.GetValue())
	if name == "" {
		return nil, status.Error(codes.InvalidArgument, "query name is required")
	}

	res, err := Coalesce(ctx, &s.sfGroup, keyQuery+name, s.timeout, s.logger, func(fetchCtx context.Context) (service.QueryResult, error) {
		return s.dashboard.RunQuery(fetchCtx, name)
	})
	if err != nil {
		return nil, s.handleError(ctx, "RunQuery", err)
	}

	rows := make([]any, len(res.Rows))
	for i, r := range res.Rows {
		rows[i] = map[string]any{"key": r.Key, "value": r.Value}
	}
	return s.encode("RunQuery", map[string]any{
		"name": res.Name,
		"kind": string(res.Kind),
		"rows": rows,
	})
}

func (s *GRPCHandlers) GetSegments(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	segs, err := Coalesce(ctx, &s.sfGroup, keySegments, s.timeout, s.logger, s.dashboard.Segments)
	if err != nil {
		return nil, s.handleError(ctx, "GetSegments", err)
	}

	var total int64
	rows := make([]any, len(segs))
	for i, sc := range segs {
		total += sc.Count
		rows[i] = map[string]any{"segment": string(sc.Segment), "count": sc.Count}
	}
	return s.encode("GetSegments", map[string]any{
		"segments": rows,
		"total":    total,
	})
}

func (s *GRPCHandlers) CheckAlerts(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	alerts, err := Coalesce(ctx, &s.sfGroup, keyAlerts, s.timeout, s.logger, s.dashboard.CheckAlerts)
	if err != nil {
		return nil, s.handleError(ctx, "CheckAlerts", err)
	}

	rows := make([]any, len(alerts))
	for i, a := range alerts {
		rows[i] = map[string]any{
			"id":        a.ID,
			"title":     a.Title,
			"message":   a.Message,
			"value":     a.Value,
			"threshold": a.Threshold,
		}
	}
	return s.encode("CheckAlerts", map[string]any{"alerts": rows})
}
