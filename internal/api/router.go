// Package api provides the HTTP API for the station info service.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/seoulmetro/stationinfo/internal/api/handler"
	"github.com/seoulmetro/stationinfo/internal/api/middleware"
	"github.com/seoulmetro/stationinfo/internal/provider/resilience"
	"github.com/seoulmetro/stationinfo/internal/subway"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics
	Service     *subway.Service
	Registry    *resilience.Registry
	RequireTLS  bool
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "stationinfo-api"
	}

	// RequestID and Tracing run first so the logger and problem bodies see
	// both identifiers. RealIP must precede the rate limiters.
	r.Use(middleware.RequestID, middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(
		middleware.Logger(cfg.Logger),
		middleware.Recovery,
		chimiddleware.RealIP,
		middleware.SecurityHeaders,
		middleware.RequireTLS(cfg.RequireTLS),
	)

	var cache handler.CacheStats
	if cfg.Service != nil {
		cache = cfg.Service
	}
	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Registry, cache)

	lookupRateLimit := middleware.RateLimitByIP(middleware.LookupRateLimit)     // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit) // 100 req/min

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(standardRateLimit).Get("/status", opsHandler.SystemStatus)
		})

		if cfg.Service == nil {
			return
		}
		subwayHandler := handler.NewSubwayHandler(cfg.Service)

		r.With(standardRateLimit).Get("/lines", subwayHandler.ListLines)

		// Station data endpoints may reach the upstream API on a cache miss.
		r.Group(func(r chi.Router) {
			r.Use(lookupRateLimit)
			r.Get("/stations", subwayHandler.ListStations)
			r.Get("/distances", subwayHandler.ListDistances)
			r.Get("/lines/{lineId}/stations", subwayHandler.LineStations)
		})
	})

	return r
}
