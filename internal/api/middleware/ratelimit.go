package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/seoulmetro/stationinfo/internal/api/models"
)

// RateLimitConfig holds configuration for rate limiting.
type RateLimitConfig struct {
	RequestLimit int
	WindowLength time.Duration

	// PerEndpoint counts each route separately for a client instead of
	// sharing one budget across the group.
	PerEndpoint bool
}

var (
	// LookupRateLimit guards routes that can reach the upstream open-data
	// API. Its daily quota is shared by every client, so one budget covers
	// all lookup routes.
	LookupRateLimit = RateLimitConfig{
		RequestLimit: 30,
		WindowLength: time.Minute,
	}

	// StandardRateLimit guards routes answered locally.
	StandardRateLimit = RateLimitConfig{
		RequestLimit: 100,
		WindowLength: time.Minute,
		PerEndpoint:  true,
	}
)

// RateLimitByIP limits requests per client IP. Run it after chi's RealIP so
// proxied clients are told apart.
func RateLimitByIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	keys := []httprate.KeyFunc{httprate.KeyByRealIP}
	if cfg.PerEndpoint {
		keys = append(keys, httprate.KeyByEndpoint)
	}
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(keys...),
		httprate.WithLimitHandler(tooManyRequests(cfg.WindowLength)),
	)
}

// tooManyRequests answers with a problem document. Retry-After is the whole
// window since httprate does not expose when the counter resets.
func tooManyRequests(window time.Duration) http.HandlerFunc {
	seconds := strconv.Itoa(max(1, int(window.Round(time.Second)/time.Second)))

	return func(w http.ResponseWriter, r *http.Request) {
		p := models.NewTooManyRequests(GetRequestID(r.Context()), "Rate limit exceeded. Please try again later.")
		p.Instance = r.URL.Path

		w.Header().Set("Retry-After", seconds)
		p.Write(w)
	}
}
