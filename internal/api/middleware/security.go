package middleware

import (
	"net/http"

	"github.com/seoulmetro/stationinfo/internal/api/models"
)

// securityHeaders are set on every response. The API serves JSON only, so
// the content security policy forbids everything.
var securityHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Strict-Transport-Security", "max-age=31536000; includeSubDomains"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"Referrer-Policy", "no-referrer"},
}

// SecurityHeaders adds the fixed security headers and defaults
// Cache-Control to no-store. Handlers that serve cacheable station data
// overwrite Cache-Control themselves.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		for _, kv := range securityHeaders {
			h.Set(kv[0], kv[1])
		}
		if h.Get("Cache-Control") == "" {
			h.Set("Cache-Control", "no-store")
		}
		next.ServeHTTP(w, r)
	})
}

// RequireTLS rejects requests that a proxy reports as plain HTTP with a 403
// problem. Requests without X-Forwarded-Proto reached the server directly
// and pass. A disabled check returns next unchanged.
func RequireTLS(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if proto := r.Header.Get("X-Forwarded-Proto"); r.TLS == nil && proto != "" && proto != "https" {
				p := models.KindTLSRequired.New(GetRequestID(r.Context()), "This endpoint requires HTTPS")
				p.Instance = r.URL.Path
				p.Write(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
