package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/godilite/rfm-insights/internal/app"
	"github.com/godilite/rfm-insights/internal/config"
	"github.com/godilite/rfm-insights/internal/importer"
)

func main() {
	exitCode := 0
	defer func() { os.Exit(exitCode) }()

	_ = godotenv.Load(".env")

	file := flag.String("file", "", "path to the customer behaviour CSV")
	batch := flag.Int("batch", 500, "rows per insert batch")
	quiet := flag.Bool("q", false, "hide the progress bar")
	flag.Parse()

	if *file == "" {
		log.Fatalf("Usage: loader --file customers.csv [--batch 500] [-q]")
	}

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.StoreDriver == config.DriverMemory {
		log.Fatalf("The memory store does not persist; set STORE_DRIVER to a database")
	}

	logger, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	f, err := os.Open(*file)
	if err != nil {
		logger.Fatal("Failed to open CSV", zap.Error(err))
	}
	defer f.Close()

	st, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open store", zap.Error(err))
	}
	defer st.Close(context.Background())

	opts := []importer.Option{importer.WithBatchSize(*batch), importer.WithLogger(logger)}
	if !*quiet {
		size := int64(-1)
		if info, err := f.Stat(); err == nil {
			size = info.Size()
		}
		opts = append(opts, importer.WithProgress(os.Stderr, size))
	}

	res, err := importer.Import(ctx, f, st, opts...)
	if err != nil {
		logger.Error("Import failed", zap.Error(err), zap.Int("imported", res.Imported))
		exitCode = 1
		return
	}
	logger.Info("Import complete",
		zap.String("file", *file),
		zap.String("driver", cfg.StoreDriver),
		zap.Int("imported", res.Imported),
		zap.Int("skipped", res.Skipped))
}
