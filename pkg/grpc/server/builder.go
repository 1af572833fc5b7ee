package server

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	health "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"
)

type Option func(*Options)

type Options struct {
	port              int
	logger            *zap.Logger
	reflection        bool
	logging           bool
	recovery          bool
	maxConnectionIdle time.Duration
	interceptors      []grpc.UnaryServerInterceptor
}

func WithPort(port int) Option {
	return func(o *Options) { o.port = port }
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) { o.logger = logger }
}

func WithReflection(enabled bool) Option {
	return func(o *Options) { o.reflection = enabled }
}

// WithLogging adds LoggingInterceptor to the chain.
func WithLogging(enabled bool) Option {
	return func(o *Options) { o.logging = enabled }
}

// WithRecovery controls RecoveryInterceptor, which is on by default.
func WithRecovery(enabled bool) Option {
	return func(o *Options) { o.recovery = enabled }
}

// WithMaxConnectionIdle closes client connections idle for longer than d.
func WithMaxConnectionIdle(d time.Duration) Option {
	return func(o *Options) { o.maxConnectionIdle = d }
}

// WithUnaryInterceptors appends interceptors after the built-in ones.
func WithUnaryInterceptors(interceptors ...grpc.UnaryServerInterceptor) Option {
	return func(o *Options) { o.interceptors = append(o.interceptors, interceptors...) }
}

// Server owns a gRPC server, its listener and the standard health service.
type Server struct {
	grpcServer *grpc.Server
	lis        net.Listener
	health     *health.Server
	logger     *zap.Logger
}

// New binds the listener and builds the server. Port 0 picks a free port,
// see Addr.
func New(opts ...Option) (*Server, error) {
	options := &Options{
		port:              50051,
		recovery:          true,
		maxConnectionIdle: 15 * time.Minute,
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.port < 0 || options.port > 65535 {
		return nil, fmt.Errorf("invalid port %d: must be between 0 and 65535", options.port)
	}
	logger := options.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var chain []grpc.UnaryServerInterceptor
	if options.recovery {
		chain = append(chain, RecoveryInterceptor(logger))
	}
	if options.logging {
		chain = append(chain, LoggingInterceptor(logger))
	}
	chain = append(chain, options.interceptors...)

	serverOpts := []grpc.ServerOption{
		grpc.KeepaliveParams(keepalive.ServerParameters{MaxConnectionIdle: options.maxConnectionIdle}),
	}
	if len(chain) > 0 {
		serverOpts = append(serverOpts, grpc.ChainUnaryInterceptor(chain...))
	}

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", options.port))
	if err != nil {
		return nil, fmt.Errorf("failed to listen on port %d: %w", options.port, err)
	}

	gs := grpc.NewServer(serverOpts...)
	if options.reflection {
		reflection.Register(gs)
	}
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	return &Server{
		grpcServer: gs,
		lis:        lis,
		health:     hs,
		logger:     logger.Named("grpc-server"),
	}, nil
}

// RegisterServiceWithHealth registers a service and marks it SERVING.
func (s *Server) RegisterServiceWithHealth(serviceName string, register func(s *grpc.Server)) {
	register(s.grpcServer)
	if serviceName == "" {
		return
	}
	s.health.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
	s.logger.Info("registered service", zap.String("service", serviceName))
}

func (s *Server) SetServiceHealth(serviceName string, status healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus(serviceName, status)
	s.logger.Info("service health changed",
		zap.String("service", serviceName),
		zap.String("status", status.String()))
}

// Start serves in a goroutine and returns immediately.
func (s *Server) Start() {
	s.logger.Info("gRPC server starting", zap.String("addr", s.lis.Addr().String()))
	go func() {
		if err := s.grpcServer.Serve(s.lis); err != nil {
			s.logger.Error("gRPC server failed", zap.Error(err))
		}
	}()
}

// Shutdown marks every service NOT_SERVING and drains in-flight calls,
// forcing a stop when ctx expires first.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("gRPC server shutting down")
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("gRPC server stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("forced shutdown due to timeout")
		s.grpcServer.Stop()
		return ctx.Err()
	}
}

// Close releases the listener of a server that was never started.
func (s *Server) Close() error {
	return s.lis.Close()
}

func (s *Server) Addr() net.Addr {
	return s.lis.Addr()
}
