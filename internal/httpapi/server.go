// Package httpapi serves the dashboard over JSON HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Options struct {
	port        int
	logger      *zap.Logger
	corsOrigins []string
}

type Option func(*Options)

func WithPort(port int) Option {
	return func(o *Options) { o.port = port }
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) { o.logger = logger }
}

func WithCORSOrigins(origins ...string) Option {
	return func(o *Options) { o.corsOrigins = origins }
}

// NewRouter builds the gin engine with middleware and routes.
func NewRouter(dashboard Dashboard, logger *zap.Logger, corsOrigins []string) *gin.Engine {
	if dashboard == nil {
		panic("nil Dashboard provided to NewRouter")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(RequestLogger(logger))
	router.Use(Recovery(logger))
	router.Use(CORS(corsOrigins))

	h := &handlers{dashboard: dashboard}
	api := router.Group("/api")
	api.GET("/health", h.health)
	api.GET("/kpis", h.kpis)
	api.GET("/queries", h.queries)
	api.GET("/queries/:name", h.runQuery)
	api.GET("/segments", h.segments)
	api.GET("/alerts", h.alerts)

	return router
}

type Server struct {
	srv    *http.Server
	lis    net.Listener
	logger *zap.Logger
}

// New binds the listener so the address is known before Start.
func New(dashboard Dashboard, opts ...Option) (*Server, error) {
	options := &Options{
		port:   8080,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.port < 0 || options.port > 65535 {
		return nil, fmt.Errorf("invalid port %d: must be between 0 and 65535", options.port)
	}

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", options.port))
	if err != nil {
		return nil, fmt.Errorf("failed to listen on port %d: %w", options.port, err)
	}

	logger := options.logger.Named("http-server")
	return &Server{
		srv: &http.Server{
			Handler:      NewRouter(dashboard, logger, options.corsOrigins),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		lis:    lis,
		logger: logger,
	}, nil
}

// Start serves in a goroutine and returns immediately.
func (s *Server) Start() {
	s.logger.Info("HTTP server starting", zap.String("addr", s.lis.Addr().String()))
	go func() {
		if err := s.srv.Serve(s.lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server failed", zap.Error(err))
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("HTTP server shutting down")
	return s.srv.Shutdown(ctx)
}

func (s *Server) Addr() net.Addr {
	return s.lis.Addr()
}
