package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// Metrics records HTTP server instruments labelled by method, route and
// status.
type Metrics struct {
	duration metric.Float64Histogram
	requests metric.Int64Counter
	inFlight metric.Int64UpDownCounter
	size     metric.Int64Histogram
}

// NewMetrics registers the instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	return NewMetricsWithMeter(otel.Meter(instrumentation))
}

// NewMetricsWithMeter registers the instruments on meter.
func NewMetricsWithMeter(meter metric.Meter) (*Metrics, error) {
	var (
		m    Metrics
		errs []error
		err  error
	)

	m.duration, err = meter.Float64Histogram("http.server.request.duration",
		metric.WithDescription("Duration of HTTP server requests"), metric.WithUnit("s"))
	errs = append(errs, err)

	m.requests, err = meter.Int64Counter("http.server.request.total",
		metric.WithDescription("HTTP server requests served"), metric.WithUnit("{request}"))
	errs = append(errs, err)

	m.inFlight, err = meter.Int64UpDownCounter("http.server.active_requests",
		metric.WithDescription("HTTP server requests in progress"), metric.WithUnit("{request}"))
	errs = append(errs, err)

	m.size, err = meter.Int64Histogram("http.server.response.body.size",
		metric.WithDescription("Size of HTTP server response bodies"), metric.WithUnit("By"))
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &m, nil
}

// Middleware records one observation per request. The route label is the
// chi pattern, so path parameters such as {lineId} share a series.
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			method := metric.WithAttributes(semconv.HTTPRequestMethodKey.String(r.Method))

			m.inFlight.Add(r.Context(), 1, method)
			rec := recorderFor(w)
			defer func() {
				ctx := context.WithoutCancel(r.Context())
				m.inFlight.Add(ctx, -1, method)

				labels := []attribute.KeyValue{
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.HTTPRoute(routePattern(r)),
					semconv.HTTPResponseStatusCode(rec.statusCode),
				}
				if rec.statusCode >= http.StatusBadRequest {
					labels = append(labels, attribute.Bool("error", true))
				}
				set := metric.WithAttributeSet(attribute.NewSet(labels...))

				m.duration.Record(ctx, time.Since(start).Seconds(), set)
				m.requests.Add(ctx, 1, set)
				m.size.Record(ctx, rec.written, set)
			}()

			next.ServeHTTP(rec, r)
		})
	}
}
