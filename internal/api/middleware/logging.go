package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// quietPrefix marks health check routes logged at debug level on success.
const quietPrefix = "/v1/ops/"

// Logger logs one line per request and stores a request-scoped logger in the
// context for handlers (see zerolog.Ctx). Place it after RequestID and
// Tracing so their identifiers are attached.
func Logger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			fields := log.With().Str("request_id", GetRequestID(r.Context()))
			if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
				fields = fields.
					Str("trace_id", sc.TraceID().String()).
					Str("span_id", sc.SpanID().String())
			}
			reqLog := fields.Logger()

			rec := recorderFor(w)
			r = r.WithContext(reqLog.WithContext(r.Context()))
			next.ServeHTTP(rec, r)

			levelFor(reqLog, rec.statusCode, r.URL.Path).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("route", routePattern(r)).
				Str("query", r.URL.RawQuery).
				Int("status", rec.statusCode).
				Int64("bytes", rec.written).
				Dur("duration", time.Since(start)).
				Str("remote_addr", r.RemoteAddr).
				Str("user_agent", r.UserAgent()).
				Msg("request completed")
		})
	}
}

func levelFor(log zerolog.Logger, status int, path string) *zerolog.Event {
	switch {
	case status >= http.StatusInternalServerError:
		return log.Error()
	case status >= http.StatusBadRequest:
		return log.Warn()
	case strings.HasPrefix(path, quietPrefix):
		return log.Debug()
	default:
		return log.Info()
	}
}
