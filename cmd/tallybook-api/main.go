package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tallybook/tallybook/internal/api"
	"github.com/tallybook/tallybook/internal/assistant"
	"github.com/tallybook/tallybook/internal/auth"
	catalogpostgres "github.com/tallybook/tallybook/internal/catalog/postgres"
	"github.com/tallybook/tallybook/internal/config"
	"github.com/tallybook/tallybook/internal/ledger"
	ledgerduckdb "github.com/tallybook/tallybook/internal/ledger/duckdb"
	ledgerpostgres "github.com/tallybook/tallybook/internal/ledger/postgres"
	"github.com/tallybook/tallybook/internal/llm"
	"github.com/tallybook/tallybook/internal/observability"
	"github.com/tallybook/tallybook/internal/query"
	s3store "github.com/tallybook/tallybook/internal/storage/s3"
)

func main() {
	cfg, err := config.LoadFromEnv("tallybook-api")
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

	companies := catalogpostgres.NewRepository(db)
	readiness := []api.ReadinessCheck{companies.HealthCheck}

	var source ledger.Source
	switch cfg.Ledger.Source {
	case config.LedgerSourceReplica:
		objectStore, err := s3store.New(context.Background(), s3store.Config{
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
		replica, err := ledgerduckdb.Open(objectStore, ledgerduckdb.Options{
			Prefix:          cfg.Replica.Prefix,
			RefreshInterval: cfg.Ledger.RefreshInterval,
		})
		if err != nil {
			logger.Error("failed to open replica source", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = replica.Close() }()
		source = replica
		readiness = append(readiness, api.CheckObjectStoreConfig(cfg), objectStore.HealthCheck, replica.HealthCheck)
	default:
		primary := ledgerpostgres.NewSource(db)
		source = primary
		readiness = append(readiness, primary.HealthCheck)
	}
	logger.Info("ledger source selected", slog.String("source", cfg.Ledger.Source))

	deps := api.Dependencies{
		Logger:            logger,
		Companies:         companies,
		Readiness:         api.CombineReadinessChecks(readiness...),
		DependencyTimeout: time.Second,
	}
	if cfg.AI.Enabled {
		model, err := llm.NewOpenAIClient(llm.OpenAIConfig{
			BaseURL:     cfg.AI.BaseURL,
			APIKey:      cfg.AI.APIKey,
			Model:       cfg.AI.Model,
			Temperature: cfg.AI.Temperature,
			MaxTokens:   cfg.AI.MaxTokens,
			Timeout:     cfg.AI.Timeout,
		})
		if err != nil {
			logger.Error("failed to initialize language model client", slog.Any("error", err))
			os.Exit(1)
		}
		executor := query.NewExecutor(source, logger, cfg.Assistant.QueryDeadline)
		deps.Assistant = assistant.NewService(model, executor, logger, assistant.Config{
			MaxQuestionLength: cfg.Assistant.MaxQuestionLength,
			AnswerRowLimit:    cfg.Assistant.AnswerRowLimit,
		})
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address), slog.Bool("assistant_enabled", cfg.AI.Enabled))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
