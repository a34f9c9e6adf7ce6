package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seoulmetro/stationinfo/internal/api/middleware"
	"github.com/seoulmetro/stationinfo/internal/api/models"
)

// hit sends one GET for path from addr and returns the recorder.
func hit(h http.Handler, path, addr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
	req.RemoteAddr = addr
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func limited(cfg middleware.RateLimitConfig) http.Handler {
	return middleware.RequestID(middleware.RateLimitByIP(cfg)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))
}

func TestRateLimitByIP(t *testing.T) {
	tests := []struct {
		name  string
		cfg   middleware.RateLimitConfig
		calls []struct{ path, addr string }
		want  []int
	}{
		{
			name: "within limit",
			cfg:  middleware.RateLimitConfig{RequestLimit: 2, WindowLength: time.Minute},
			calls: []struct{ path, addr string }{
				{"/v1/stations", "10.0.0.1:1"},
				{"/v1/stations", "10.0.0.1:2"},
			},
			want: []int{200, 200},
		},
		{
			name: "shared budget across routes",
			cfg:  middleware.RateLimitConfig{RequestLimit: 2, WindowLength: time.Minute},
			calls: []struct{ path, addr string }{
				{"/v1/stations", "10.0.0.1:1"},
				{"/v1/distances", "10.0.0.1:1"},
				{"/v1/lines/7/stations", "10.0.0.1:1"},
			},
			want: []int{200, 200, 429},
		},
		{
			name: "per endpoint budget",
			cfg:  middleware.RateLimitConfig{RequestLimit: 1, WindowLength: time.Minute, PerEndpoint: true},
			calls: []struct{ path, addr string }{
				{"/v1/lines", "10.0.0.1:1"},
				{"/v1/ops/status", "10.0.0.1:1"},
				{"/v1/lines", "10.0.0.1:1"},
			},
			want: []int{200, 200, 429},
		},
		{
			name: "clients counted separately",
			cfg:  middleware.RateLimitConfig{RequestLimit: 1, WindowLength: time.Minute},
			calls: []struct{ path, addr string }{
				{"/v1/stations", "172.16.0.1:1"},
				{"/v1/stations", "172.16.0.2:1"},
				{"/v1/stations", "172.16.0.1:1"},
			},
			want: []int{200, 200, 429},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := limited(tt.cfg)
			for i, c := range tt.calls {
				assert.Equal(t, tt.want[i], hit(h, c.path, c.addr).Code, "call %d", i+1)
			}
		})
	}
}

func TestRateLimitByIP_Problem(t *testing.T) {
	h := limited(middleware.RateLimitConfig{RequestLimit: 1, WindowLength: 30 * time.Second})

	require.Equal(t, http.StatusOK, hit(h, "/v1/stations", "203.0.113.1:1").Code)
	rec := hit(h, "/v1/stations", "203.0.113.1:1")

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))

	var p models.Problem
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&p))
	assert.Equal(t, models.ProblemTypeTooManyRequests, p.Type)
	assert.Equal(t, "/v1/stations", p.Instance)
	assert.NotEmpty(t, p.TraceID)
}

func TestRateLimitByIP_SubSecondWindow(t *testing.T) {
	h := limited(middleware.RateLimitConfig{RequestLimit: 1, WindowLength: 200 * time.Millisecond})

	hit(h, "/", "10.0.0.9:1")
	rec := hit(h, "/", "10.0.0.9:1")

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestDefaultRateLimitConfigs(t *testing.T) {
	assert.Equal(t, middleware.RateLimitConfig{RequestLimit: 30, WindowLength: time.Minute}, middleware.LookupRateLimit)
	assert.Equal(t, middleware.RateLimitConfig{RequestLimit: 100, WindowLength: time.Minute, PerEndpoint: true}, middleware.StandardRateLimit)
}
