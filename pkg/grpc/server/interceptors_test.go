package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

func TestLoggingInterceptor(t *testing.T) {
	info := &grpc.UnaryServerInfo{FullMethod: "/rfm.insights.v1.Insights/GetKPIs"}

	t.Run("successful request", func(t *testing.T) {
		core, logs := observer.New(zap.InfoLevel)
		interceptor := LoggingInterceptor(zap.New(core))

		ctx := peer.NewContext(context.Background(), &peer.Peer{
			Addr: &net.TCPAddr{IP: net.IPv4(10, 0, 0, 7), Port: 40000},
		})
		resp, err := interceptor(ctx, "req", info, func(ctx context.Context, req any) (any, error) {
			return "ok", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "ok", resp)

		entries := logs.All()
		require.Len(t, entries, 1)
		assert.Equal(t, "gRPC request completed", entries[0].Message)
		assert.Equal(t, "10.0.0.7:40000", entries[0].ContextMap()["peer"])
	})

	t.Run("client errors log at warn", func(t *testing.T) {
		core, logs := observer.New(zap.InfoLevel)
		interceptor := LoggingInterceptor(zap.New(core))

		_, err := interceptor(context.Background(), "req", info, func(ctx context.Context, req any) (any, error) {
			return nil, status.Error(codes.NotFound, "unknown query")
		})
		assert.Equal(t, codes.NotFound, status.Code(err))

		entries := logs.All()
		require.Len(t, entries, 1)
		assert.Equal(t, zap.WarnLevel, entries[0].Level)
		assert.Equal(t, "unknown", entries[0].ContextMap()["peer"])
	})

	t.Run("server errors log at error", func(t *testing.T) {
		core, logs := observer.New(zap.InfoLevel)
		interceptor := LoggingInterceptor(zap.New(core))

		_, err := interceptor(context.Background(), "req", info, func(ctx context.Context, req any) (any, error) {
			return nil, status.Error(codes.Unavailable, "store unavailable")
		})
		assert.Equal(t, codes.Unavailable, status.Code(err))
		assert.Equal(t, zap.ErrorLevel, logs.All()[0].Level)
	})
}

func TestRecoveryInterceptor(t *testing.T) {
	interceptor := RecoveryInterceptor(zaptest.NewLogger(t))
	info := &grpc.UnaryServerInfo{FullMethod: "/rfm.insights.v1.Insights/GetSegments"}

	resp, err := interceptor(context.Background(), "req", info, func(ctx context.Context, req any) (any, error) {
		panic("nil map")
	})
	assert.Nil(t, resp)
	assert.Equal(t, codes.Internal, status.Code(err))

	resp, err = interceptor(context.Background(), "req", info, func(ctx context.Context, req any) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
}

func TestNewRejectsInvalidPort(t *testing.T) {
	_, err := New(WithPort(70000))
	assert.Error(t, err)

	_, err = New(WithPort(-1))
	assert.Error(t, err)
}

func TestServerHealth(t *testing.T) {
	server, err := New(
		WithPort(0),
		WithLogger(zaptest.NewLogger(t)),
		WithLogging(true),
		WithReflection(true),
	)
	require.NoError(t, err)
	defer func() { _ = server.Shutdown(context.Background()) }()

	server.RegisterServiceWithHealth("rfm.insights.v1.Insights", func(s *grpc.Server) {})
	server.Start()

	conn, err := grpc.NewClient(server.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	healthClient := healthpb.NewHealthClient(conn)
	resp, err := healthClient.Check(ctx, &healthpb.HealthCheckRequest{}, grpc.WaitForReady(true))
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)

	resp, err = healthClient.Check(ctx, &healthpb.HealthCheckRequest{Service: "rfm.insights.v1.Insights"})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)

	server.SetServiceHealth("rfm.insights.v1.Insights", healthpb.HealthCheckResponse_NOT_SERVING)
	resp, err = healthClient.Check(ctx, &healthpb.HealthCheckRequest{Service: "rfm.insights.v1.Insights"})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status)
}
