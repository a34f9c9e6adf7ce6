// Package main provides the entrypoint for the station fetch worker.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/seoulmetro/stationinfo/internal/api/response"
	"github.com/seoulmetro/stationinfo/internal/config"
	"github.com/seoulmetro/stationinfo/internal/provider/resilience"
	"github.com/seoulmetro/stationinfo/internal/subway"
	"github.com/seoulmetro/stationinfo/internal/subway/seoul"
	"github.com/seoulmetro/stationinfo/internal/telemetry"
	"github.com/seoulmetro/stationinfo/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "stationinfo-worker"

	cfg, err := config.Load()
	if err != nil {
		zerolog.New(os.Stderr).Fatal().Err(err).Msg("failed to load configuration")
	}

	log := cfg.Logger(os.Stdout, serviceName, Version)
	log.Info().Str("build_time", BuildTime).Msg("starting station fetch worker")

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.OTelEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	registry := resilience.NewRegistry()
	client, err := seoul.NewClient(seoul.ClientConfig{
		APIKey:   cfg.APIKey,
		BaseURL:  cfg.BaseURL,
		Format:   cfg.Format,
		Timeout:  cfg.HTTPTimeout,
		Registry: registry,
		Metrics:  tp.Providers,
		Logger:   log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create seoul client")
	}

	service := subway.NewService(subway.ServiceConfig{
		Provider:  client,
		Logger:    log,
		CacheTTL:  cfg.CacheTTL,
		CacheSize: cfg.CacheSize,
		Metrics:   tp.Providers,
	})

	job := worker.NewFetchJob(worker.FetchJobConfig{
		Config:  worker.DefaultFetchConfig(),
		Logger:  log,
		Fetcher: service,
	})
	dispatcher := worker.NewDispatcher(worker.DispatcherConfig{
		Job:           job,
		Invalidator:   service,
		HealthFetcher: client,
		Logger:        log,
	})

	// Liveness for the container platform.
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]interface{}{
			"status":    "healthy",
			"version":   Version,
			"providers": registry.Snapshot(),
			"fetch":     job.MetricsSnapshot(),
		})
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health check server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		runWorker(ctx, cfg, dispatcher, job, log)
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down worker")
	<-done

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}

// runWorker consumes Pub/Sub jobs when a subscription is configured and
// otherwise fetches on a fixed interval.
func runWorker(ctx context.Context, cfg *config.Config, dispatcher *worker.Dispatcher, job *worker.FetchJob, log zerolog.Logger) {
	if cfg.PubSubProjectID == "" || cfg.PubSubSubscription == "" {
		log.Info().Dur("interval", cfg.WorkerInterval).Msg("no subscription configured, fetching on a ticker")
		job.RunEvery(ctx, cfg.WorkerInterval)
		return
	}

	handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
		ProjectID:        cfg.PubSubProjectID,
		SubscriptionName: cfg.PubSubSubscription,
		Dispatcher:       dispatcher,
		Logger:           log,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to create pubsub handler, fetching on a ticker")
		job.RunEvery(ctx, cfg.WorkerInterval)
		return
	}
	defer func() {
		if err := handler.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close pubsub client")
		}
	}()

	if err := handler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("pubsub handler stopped")
	}
}
