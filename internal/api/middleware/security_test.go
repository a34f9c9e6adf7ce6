package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/seoulmetro/stationinfo/internal/api/middleware"
)

func TestSecurityHeaders(t *testing.T) {
	tests := []struct {
		name         string
		cacheControl string
		want         string
	}{
		{"default no-store", "", "no-store"},
		{"handler cache policy kept", "public, max-age=3600", "public, max-age=3600"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := middleware.SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				if tt.cacheControl != "" {
					w.Header().Set("Cache-Control", tt.cacheControl)
				}
				_, _ = w.Write([]byte("{}"))
			}))

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/lines", http.NoBody))

			got := rec.Header()
			assert.Equal(t, tt.want, got.Get("Cache-Control"))
			assert.Equal(t, "nosniff", got.Get("X-Content-Type-Options"))
			assert.Equal(t, "DENY", got.Get("X-Frame-Options"))
			assert.Equal(t, "max-age=31536000; includeSubDomains", got.Get("Strict-Transport-Security"))
			assert.Equal(t, "default-src 'none'; frame-ancestors 'none'", got.Get("Content-Security-Policy"))
			assert.Equal(t, "no-referrer", got.Get("Referrer-Policy"))
		})
	}
}

func TestRequireTLS(t *testing.T) {
	tests := []struct {
		name    string
		enabled bool
		proto   string
		want    int
	}{
		{"off, proxied http", false, "http", http.StatusOK},
		{"on, proxied http", true, "http", http.StatusForbidden},
		{"on, proxied https", true, "https", http.StatusOK},
		{"on, direct", true, "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := middleware.RequireTLS(tt.enabled)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

			req := httptest.NewRequest(http.MethodGet, "/v1/stations", http.NoBody)
			if tt.proto != "" {
				req.Header.Set("X-Forwarded-Proto", tt.proto)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want != http.StatusForbidden {
				return
			}
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
			body := rec.Body.String()
			assert.Contains(t, body, `"title":"TLS required"`)
			assert.Contains(t, body, `"instance":"/v1/stations"`)
		})
	}
}
