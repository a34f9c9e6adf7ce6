package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const providerMeterName = "github.com/seoulmetro/stationinfo/internal/telemetry"

// Outcome classifies the result of one provider call.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeDomain    Outcome = "domain_error"
	OutcomeSchema    Outcome = "schema_mismatch"
	OutcomeEmpty     Outcome = "empty_response"
	OutcomeTransport Outcome = "transport_error"
	OutcomeDecode    Outcome = "decode_error"
)

// ProviderMetrics holds metrics for external provider calls.
type ProviderMetrics struct {
	requestDuration metric.Float64Histogram
	requestTotal    metric.Int64Counter
	recordsTotal    metric.Int64Counter
	cacheHits       metric.Int64Counter
	cacheMisses     metric.Int64Counter
}

// NewProviderMetrics creates metrics for monitoring external provider calls
// using the global meter provider.
func NewProviderMetrics() (*ProviderMetrics, error) {
	meter := otel.Meter(providerMeterName)

	requestDuration, err := meter.Float64Histogram(
		"provider.request.duration",
		metric.WithDescription("Duration of provider requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	requestTotal, err := meter.Int64Counter(
		"provider.request.total",
		metric.WithDescription("Total number of provider requests by outcome"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	recordsTotal, err := meter.Int64Counter(
		"provider.records.total",
		metric.WithDescription("Total number of validated records returned by providers"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, err
	}

	cacheHits, err := meter.Int64Counter(
		"provider.cache.hits",
		metric.WithDescription("Number of provider responses served from cache"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, err
	}

	cacheMisses, err := meter.Int64Counter(
		"provider.cache.misses",
		metric.WithDescription("Number of provider lookups that missed the cache"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, err
	}

	return &ProviderMetrics{
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		recordsTotal:    recordsTotal,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
	}, nil
}

// RecordRequest records one provider call. A nil receiver is a no-op.
func (m *ProviderMetrics) RecordRequest(provider, endpoint string, duration time.Duration, outcome Outcome, records int) {
	if m == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("provider.name", provider),
		attribute.String("provider.endpoint", endpoint),
		attribute.String("provider.outcome", string(outcome)),
	}
	if outcome != OutcomeSuccess {
		attrs = append(attrs, attribute.Bool("error", true))
	}

	// Background context so cancelled requests are still counted.
	ctx := context.Background()
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.requestTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	if records > 0 {
		m.recordsTotal.Add(ctx, int64(records), metric.WithAttributes(attrs[:2]...))
	}
}

// RecordCacheHit records a response served from cache. A nil receiver is a no-op.
func (m *ProviderMetrics) RecordCacheHit(provider, kind string) {
	if m == nil {
		return
	}
	m.cacheHits.Add(context.Background(), 1, metric.WithAttributes(cacheAttrs(provider, kind)...))
}

// RecordCacheMiss records a lookup that had to reach the provider.
func (m *ProviderMetrics) RecordCacheMiss(provider, kind string) {
	if m == nil {
		return
	}
	m.cacheMisses.Add(context.Background(), 1, metric.WithAttributes(cacheAttrs(provider, kind)...))
}

func cacheAttrs(provider, kind string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("provider.name", provider),
		attribute.String("cache.kind", kind),
	}
}
