package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	"github.com/domicilios/geocoding-service/internal/adapter/googleplaces"
	httpadapter "github.com/domicilios/geocoding-service/internal/adapter/http"
	kafkaadapter "github.com/domicilios/geocoding-service/internal/adapter/kafka"
	"github.com/domicilios/geocoding-service/internal/adapter/nominatim"
	"github.com/domicilios/geocoding-service/internal/config"
	"github.com/domicilios/geocoding-service/internal/geocoder"
	"github.com/domicilios/geocoding-service/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	// Both adapters are always constructed; each one checks its own
	// credential lazily at call time (missing ones surface as
	// configuration errors, and the resolver routes around them).
	nominatimClient := nominatim.NewClient(cfg.NominatimEmail, cfg.NominatimReferer, cfg.RequestTimeout, metrics, logger)
	googleClient := googleplaces.NewClient(cfg.GoogleAPIKey, cfg.RequestTimeout, metrics, logger)
	logger.Info("providers configured",
		"nominatim", cfg.NominatimEmail != "",
		"google", cfg.GoogleAPIKey != "",
		"forced_provider", string(cfg.ForcedProvider),
	)

	// Analytics publishing is feature-flagged via KAFKA_BROKERS.
	var sink geocoder.ActivitySink
	var publisher *kafkaadapter.Publisher
	if cfg.AnalyticsEnabled() {
		publisher = kafkaadapter.NewPublisher(cfg, clockwork.NewRealClock(), metrics, logger)
		sink = publisher
		logger.Info("activity publishing enabled", "topic", cfg.AnalyticsTopic, "batch_size", cfg.AnalyticsBatchSize)
	} else {
		logger.Info("activity publishing disabled")
	}

	client := geocoder.New(geocoder.Params{
		Nominatim:           nominatimClient,
		Google:              googleClient,
		ForcedProvider:      cfg.ForcedProvider,
		NominatimConfigured: cfg.NominatimEmail != "",
		GoogleConfigured:    cfg.GoogleAPIKey != "",
		DefaultMaxResults:   cfg.DefaultMaxResults,
		Sink:                sink,
		Metrics:             metrics,
		Logger:              logger,
	})

	srv := httpadapter.NewServer(cfg.HTTPAddr, client, logger)

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
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("activity publisher close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
