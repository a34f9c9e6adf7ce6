// Package telemetry sets up OpenTelemetry export and owns the instruments
// recorded around calls to the Seoul Open Data API.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

const (
	defaultSampleRatio    = 1.0
	defaultExportInterval = 15 * time.Second
)

// Config selects whether and where telemetry is exported.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	// Enabled turns on OTLP/gRPC export to OTLPEndpoint. When false the
	// global no-op providers stay in place.
	Enabled      bool
	OTLPEndpoint string

	// SampleRatio applies to root spans. Out of range values mean 1.
	SampleRatio float64

	// ExportInterval is the metric push period. Zero means 15s.
	ExportInterval time.Duration
}

// Provider is the result of Init. Call Shutdown before exit to flush.
type Provider struct {
	// Providers records upstream call and cache metrics.
	Providers *ProviderMetrics

	closers []func(context.Context) error
}

// Exporting reports whether spans and metrics leave the process.
func (p *Provider) Exporting() bool {
	return len(p.closers) > 0
}

// Shutdown flushes pending telemetry and stops the exporters, newest first.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		errs = append(errs, p.closers[i](ctx))
	}
	p.closers = nil
	return errors.Join(errs...)
}

// Init installs the global tracer provider, meter provider and W3C
// propagators, then creates the provider metrics on top of them.
func Init(ctx context.Context, cfg Config) (*Provider, error) {
	p := &Provider{}
	if cfg.Enabled {
		if err := p.export(ctx, cfg); err != nil {
			_ = p.Shutdown(ctx)
			return nil, err
		}
	}

	metrics, err := NewProviderMetrics()
	if err != nil {
		_ = p.Shutdown(ctx)
		return nil, fmt.Errorf("provider metrics: %w", err)
	}
	p.Providers = metrics
	return p, nil
}

func (p *Provider) export(ctx context.Context, cfg Config) error {
	if cfg.SampleRatio <= 0 || cfg.SampleRatio > 1 {
		cfg.SampleRatio = defaultSampleRatio
	}
	if cfg.ExportInterval <= 0 {
		cfg.ExportInterval = defaultExportInterval
	}

	res, err := resource.New(ctx,
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("telemetry resource: %w", err)
	}

	spans, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return fmt.Errorf("trace exporter: %w", err)
	}
	tracers := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(spans),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	)
	p.closers = append(p.closers, tracers.Shutdown)

	points, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return fmt.Errorf("metric exporter: %w", err)
	}
	meters := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(points, sdkmetric.WithInterval(cfg.ExportInterval))),
		sdkmetric.WithResource(res),
	)
	p.closers = append(p.closers, meters.Shutdown)

	otel.SetTracerProvider(tracers)
	otel.SetMeterProvider(meters)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return nil
}
