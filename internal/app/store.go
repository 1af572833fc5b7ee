package app

import (
	"context"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/godilite/rfm-insights/internal/config"
	"github.com/godilite/rfm-insights/internal/service"
	"github.com/godilite/rfm-insights/internal/store"
	"github.com/godilite/rfm-insights/internal/store/memstore"
	"github.com/godilite/rfm-insights/internal/store/mongostore"
	"github.com/godilite/rfm-insights/internal/store/sqlstore"
	dbbuilder "github.com/godilite/rfm-insights/pkg/database"
)

// Store is a customer store the dashboard can read and the loader can fill.
type Store interface {
	service.AggregateClient
	InsertCustomers(ctx context.Context, customers []store.Customer) error
	Close(ctx context.Context) error
}

// OpenStore connects to the backend named by cfg.StoreDriver. SQL tables
// are created when missing.
func OpenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		logger.Warn("using in-memory store; data is lost on exit")
		return memstore.New(), nil

	case config.DriverMongo:
		s, err := mongostore.Connect(ctx,
			mongostore.WithURI(cfg.StoreDSN),
			mongostore.WithDatabase(cfg.MongoDatabase),
			mongostore.WithCollection(cfg.StoreTable),
		)
		if err != nil {
			return nil, fmt.Errorf("mongo store init failed: %w", err)
		}
		logger.Info("Mongo store connected",
			zap.String("database", cfg.MongoDatabase),
			zap.String("collection", cfg.StoreTable))
		return s, nil

	case config.DriverSQLite, config.DriverMySQL, config.DriverPostgres:
		dialect, err := sqlstore.DialectFor(cfg.StoreDriver)
		if err != nil {
			return nil, err
		}
		db, err := dbbuilder.Open(ctx,
			dbbuilder.WithDriver(cfg.StoreDriver),
			dbbuilder.WithDataSource(cfg.StoreDSN),
		)
		if err != nil {
			return nil, fmt.Errorf("database init failed: %w", err)
		}
		s, err := sqlstore.New(db, sqlstore.WithDialect(dialect), sqlstore.WithTable(cfg.StoreTable))
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		if err := s.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		logger.Info("Database pool initialized",
			zap.String("driver", cfg.StoreDriver),
			zap.String("table", cfg.StoreTable))
		return s, nil
	}
	return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
}
