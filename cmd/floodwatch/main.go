package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/flood-risk-service/internal/adapter/classifier"
	"github.com/couchcryptid/flood-risk-service/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/flood-risk-service/internal/adapter/kafka"
	"github.com/couchcryptid/flood-risk-service/internal/adapter/video"
	"github.com/couchcryptid/flood-risk-service/internal/config"
	"github.com/couchcryptid/flood-risk-service/internal/flow"
	"github.com/couchcryptid/flood-risk-service/internal/observability"
	"github.com/couchcryptid/flood-risk-service/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	classifierClient := classifier.NewClient(cfg.ClassifierURL, cfg.ClassifierTimeout, logger, metrics)
	opener := video.NewOpener(cfg.FFmpegPath, logger)
	estimator := flow.NewEstimator(flow.DefaultConfig())

	analyzer := pipeline.New(opener, classifierClient, estimator, logger, metrics)

	// Report publishing is feature-flagged via KAFKA_BROKERS / KAFKA_ENABLED.
	var publisher httpadapter.ReportPublisher
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger, metrics)
		publisher = writer
		logger.Info("kafka report publishing enabled", "topic", cfg.KafkaReportsTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("kafka report publishing disabled")
	}

	srv := httpadapter.NewServer(cfg, analyzer, classifierClient, publisher, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
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

	logger.Info("shutdown complete")
}
