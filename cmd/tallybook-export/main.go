package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	catalogpostgres "github.com/tallybook/tallybook/internal/catalog/postgres"
	"github.com/tallybook/tallybook/internal/config"
	"github.com/tallybook/tallybook/internal/observability"
	"github.com/tallybook/tallybook/internal/replica"
	s3store "github.com/tallybook/tallybook/internal/storage/s3"
)

func main() {
	once := flag.Bool("once", false, "run a single export and exit")
	flag.Parse()

	cfg, err := config.LoadFromEnv("tallybook-export")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	db, err := catalogpostgres.Open(context.Background(), catalogpostgres.DBConfig{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	store, err := s3store.New(context.Background(), s3store.Config{
		Endpoint:         cfg.ObjectStore.Endpoint,
		Region:           cfg.ObjectStore.Region,
		Bucket:           cfg.ObjectStore.Bucket,
		AccessKeyID:      cfg.ObjectStore.AccessKeyID,
		SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
		UseSSL:           cfg.ObjectStore.UseSSL,
		Prefix:           cfg.ObjectStore.Prefix,
		AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
	})
	if err != nil {
		logger.Error("failed to initialize object store", slog.Any("error", err))
		os.Exit(1)
	}

	exporter := &replica.Exporter{
		DB:          db,
		ObjectStore: store,
		Config: replica.Config{
			Prefix:    cfg.Replica.Prefix,
			Interval:  cfg.Replica.ExportInterval,
			BatchSize: cfg.Replica.BatchSize,
		},
		Logger: logger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *once {
		summary, err := exporter.ExportOnce(ctx)
		if err != nil {
			logger.Error("replica export failed", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("replica export finished", slog.String("run_id", summary.RunID), slog.Any("rows", summary.RowCounts()))
		return
	}

	logger.Info("replica exporter started", slog.Duration("interval", cfg.Replica.ExportInterval))
	if err := exporter.Run(ctx); err != nil {
		logger.Error("replica exporter failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("replica exporter stopped")
}
