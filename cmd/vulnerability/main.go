package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/fire-vulnerability-service/internal/adapter/csvtable"
	"github.com/couchcryptid/fire-vulnerability-service/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/fire-vulnerability-service/internal/adapter/kafka"
	"github.com/couchcryptid/fire-vulnerability-service/internal/adapter/store"
	"github.com/couchcryptid/fire-vulnerability-service/internal/config"
	"github.com/couchcryptid/fire-vulnerability-service/internal/observability"
	"github.com/couchcryptid/fire-vulnerability-service/internal/pipeline"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	criteria, err := config.LoadCriteria(cfg.CriteriaPath)
	if err != nil {
		logger.Error("failed to load criteria", "path", cfg.CriteriaPath, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reader := csvtable.NewReader(cfg.MetricsTablePath, cfg.MetricsTableEncoding, cfg.DistrictColumn, criteria)
	scorer := pipeline.NewCachedScorer(pipeline.EngineScorer{}, cfg.ScoreCacheSize, metrics)
	opts := []pipeline.Option{pipeline.WithRefreshInterval(cfg.RefreshInterval)}

	// Kafka sink (feature-flagged via KAFKA_ENABLED / KAFKA_BROKERS).
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		opts = append(opts, pipeline.WithLoader("kafka", writer))
		logger.Info("kafka sink enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaSinkTopic)
	} else {
		logger.Info("kafka sink disabled")
	}

	// Run-history store (enabled by STORE_DRIVER).
	var history *store.Store
	var runHistory httpadapter.RunHistory
	if cfg.StoreDriver != "" {
		history, err = store.Open(ctx, store.Driver(cfg.StoreDriver), cfg.StoreDSN)
		if err != nil {
			logger.Error("failed to open store", "driver", cfg.StoreDriver, "error", err)
			os.Exit(1)
		}
		runHistory = history
		opts = append(opts, pipeline.WithLoader("store", history))
		logger.Info("run history enabled", "driver", cfg.StoreDriver)
	}

	p := pipeline.New(reader, scorer, criteria, logger, metrics, opts...)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, runHistory, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start scoring pipeline.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if history != nil {
		if err := history.Close(); err != nil {
			logger.Error("store close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
