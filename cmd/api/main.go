// Package main provides the entrypoint for the station info API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/seoulmetro/stationinfo/internal/api"
	"github.com/seoulmetro/stationinfo/internal/api/middleware"
	"github.com/seoulmetro/stationinfo/internal/config"
	"github.com/seoulmetro/stationinfo/internal/provider/resilience"
	"github.com/seoulmetro/stationinfo/internal/subway"
	"github.com/seoulmetro/stationinfo/internal/subway/seoul"
	"github.com/seoulmetro/stationinfo/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const (
	serviceName   = "stationinfo-api"
	drainTimeout  = 30 * time.Second
	flushTimeout  = 5 * time.Second
	writeHeadroom = 15 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zerolog.New(os.Stderr).Fatal().Err(err).Msg("failed to load configuration")
	}
	log := cfg.Logger(os.Stdout, serviceName, Version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error().Err(err).Msg("api stopped with error")
		stop()
		os.Exit(1) //nolint:gocritic // deferred cleanup already ran inside run
	}
	log.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	log.Info().Str("build_time", BuildTime).Msg("starting station info API")

	if err := cfg.Validate(); err != nil {
		return err
	}

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.OTelEnabled,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
		defer cancel()
		if err := tp.Shutdown(flushCtx); err != nil {
			log.Warn().Err(err).Msg("telemetry flush failed")
		}
	}()
	if tp.Exporting() {
		log.Info().Str("otlp_endpoint", cfg.OTLPEndpoint).Msg("exporting telemetry")
	}

	httpMetrics, err := middleware.NewMetrics()
	if err != nil {
		return fmt.Errorf("http metrics: %w", err)
	}

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
		return err
	}

	service := subway.NewService(subway.ServiceConfig{
		Provider:  client,
		Logger:    log,
		CacheTTL:  cfg.CacheTTL,
		CacheSize: cfg.CacheSize,
		Metrics:   tp.Providers,
	})
	log.Info().
		Str("provider", service.ProviderName()).
		Dur("cache_ttl", cfg.CacheTTL).
		Int("cache_size", cfg.CacheSize).
		Msg("station service ready")

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: api.NewRouter(api.RouterConfig{
			Version:     Version,
			BuildTime:   BuildTime,
			Logger:      log,
			ServiceName: serviceName,
			Metrics:     httpMetrics,
			Service:     service,
			Registry:    registry,
			RequireTLS:  cfg.RequireTLS,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.HTTPTimeout + writeHeadroom,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("server listening")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")
	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drainTimeout)
	defer cancel()
	if err := server.Shutdown(drainCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
