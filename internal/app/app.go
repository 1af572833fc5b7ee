package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	pb "github.com/godilite/rfm-insights/api/v1"
	"github.com/godilite/rfm-insights/internal/config"
	handler "github.com/godilite/rfm-insights/internal/grpc"
	"github.com/godilite/rfm-insights/internal/httpapi"
	"github.com/godilite/rfm-insights/internal/notify"
	"github.com/godilite/rfm-insights/internal/service"
	"github.com/godilite/rfm-insights/pkg/broker"
	grpcsrv "github.com/godilite/rfm-insights/pkg/grpc/server"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	logger     *zap.Logger
	store      Store
	redis      *redis.Client
	kafka      *notify.KafkaPublisher
	grpcServer *grpcsrv.Server
	httpServer *httpapi.Server
	watcher    *service.AlertWatcher
}

func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *App, err error) {
	app := &App{logger: logger}
	defer func() {
		if err != nil {
			app.close(context.Background())
		}
	}()

	app.store, err = OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	ext, err := service.LoadExtensions(cfg.CatalogFile)
	if err != nil {
		return nil, fmt.Errorf("catalog extensions: %w", err)
	}

	opts := []service.DashboardOption{
		service.WithExtensions(ext),
		service.WithStoreTimeout(cfg.StoreTimeout),
	}
	publishers, err := app.openPublishers(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if len(publishers) > 0 {
		opts = append(opts, service.WithPublisher(publishers))
	}

	dashboard, err := service.NewDashboard(app.store, logger.Named("dashboard"), opts...)
	if err != nil {
		return nil, fmt.Errorf("dashboard init failed: %w", err)
	}

	grpcHandlers := handler.NewGRPCHandlers(dashboard, logger, 2*cfg.StoreTimeout)

	app.grpcServer, err = grpcsrv.New(
		grpcsrv.WithPort(cfg.GRPCPort),
		grpcsrv.WithLogger(logger),
		grpcsrv.WithReflection(cfg.GRPCReflectionEnabled),
		grpcsrv.WithLogging(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC server: %w", err)
	}
	app.grpcServer.RegisterServiceWithHealth(pb.ServiceName, func(s *grpc.Server) {
		pb.RegisterInsightsServer(s, grpcHandlers)
	})

	app.httpServer, err = httpapi.New(dashboard,
		httpapi.WithPort(cfg.HTTPPort),
		httpapi.WithLogger(logger),
		httpapi.WithCORSOrigins(cfg.CORSOrigins...),
	)
	if err != nil {
		_ = app.grpcServer.Close()
		return nil, fmt.Errorf("failed to create HTTP server: %w", err)
	}

	app.watcher = service.NewAlertWatcher(dashboard, cfg.AlertWatchInterval, logger)
	return app, nil
}

func (a *App) openPublishers(ctx context.Context, cfg *config.Config) (notify.Multi, error) {
	var publishers notify.Multi

	if cfg.RedisAddr != "" {
		client, err := broker.NewRedis(ctx, broker.WithAddress(cfg.RedisAddr))
		if err != nil {
			return nil, fmt.Errorf("redis init failed: %w", err)
		}
		a.redis = client
		publishers = append(publishers, notify.NewRedisPublisher(client, cfg.RedisAlertChannel, a.logger.Named("notify.redis")))
		a.logger.Info("Redis alert channel configured",
			zap.String("addr", cfg.RedisAddr),
			zap.String("channel", cfg.RedisAlertChannel))
	}

	if len(cfg.KafkaBrokers) > 0 {
		writer, err := broker.NewKafkaWriter(
			broker.WithBrokers(cfg.KafkaBrokers...),
			broker.WithTopic(cfg.KafkaAlertTopic),
		)
		if err != nil {
			return nil, fmt.Errorf("kafka init failed: %w", err)
		}
		a.kafka = notify.NewKafkaPublisher(writer, a.logger.Named("notify.kafka"))
		publishers = append(publishers, a.kafka)
		a.logger.Info("Kafka alert topic configured",
			zap.Strings("brokers", cfg.KafkaBrokers),
			zap.String("topic", cfg.KafkaAlertTopic))
	}

	return publishers, nil
}

// GRPCAddr and HTTPAddr report the bound listeners.
func (a *App) GRPCAddr() net.Addr { return a.grpcServer.Addr() }
func (a *App) HTTPAddr() net.Addr { return a.httpServer.Addr() }

// Run starts the servers and the alert watcher and blocks until ctx is done,
// then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("application starting")

	a.grpcServer.Start()
	a.httpServer.Start()

	watchCtx, stopWatch := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := a.watcher.Run(watchCtx); err != nil {
			a.logger.Error("alert watcher stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	a.logger.Info("application shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	stopWatch()
	wg.Wait()

	var errs []error
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := a.grpcServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("grpc shutdown: %w", err))
	}
	a.close(shutdownCtx)

	if shutdownCtx.Err() == context.DeadlineExceeded {
		a.logger.Warn("shutdown completed but deadline exceeded")
	} else {
		a.logger.Info("graceful shutdown completed successfully")
	}

	_ = a.logger.Sync()
	return errors.Join(errs...)
}

func (a *App) close(ctx context.Context) {
	if a.kafka != nil {
		if err := a.kafka.Close(); err != nil {
			a.logger.Error("kafka shutdown error", zap.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis shutdown error", zap.Error(err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(ctx); err != nil {
			a.logger.Error("store shutdown error", zap.Error(err))
		}
	}
}
