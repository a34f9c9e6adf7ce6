// Package seoul provides a client for the Seoul Open Data Plaza subway APIs:
// the station directory and the inter-station distance table.
package seoul

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/seoulmetro/stationinfo/internal/provider/resilience"
	"github.com/seoulmetro/stationinfo/internal/subway"
	"github.com/seoulmetro/stationinfo/internal/telemetry"
)

const (
	// DefaultBaseURL is the base URL for the Seoul Open Data Plaza API.
	DefaultBaseURL = "http://openapi.seoul.go.kr:8088"

	// DefaultFormat is the only response format the client understands.
	DefaultFormat = "json"

	// DefaultTimeout bounds a single upstream request.
	DefaultTimeout = 10 * time.Second

	// ProviderName identifies this provider.
	ProviderName = "seoul"

	tracerName   = "github.com/seoulmetro/stationinfo/internal/subway/seoul"
	maxBodyBytes = 16 << 20
)

// ClientConfig holds configuration for the Seoul API client.
type ClientConfig struct {
	// APIKey is the Open Data Plaza access key (required).
	APIKey string

	// BaseURL is the API base URL (defaults to DefaultBaseURL).
	BaseURL string

	// Format is the response format path segment (defaults to DefaultFormat).
	Format string

	// HTTPClient is the HTTP client to use (must implement HTTPDoer).
	// If nil, a resilient client without retries is created.
	HTTPClient HTTPDoer

	// Timeout for individual API requests (default: 10s).
	Timeout time.Duration

	// Registry records provider health for the default HTTP client (optional).
	Registry *resilience.Registry

	// Metrics records per-call outcomes (optional).
	Metrics *telemetry.ProviderMetrics

	// Logger for request and record logging.
	Logger zerolog.Logger

	// LogRecords writes one log line per parsed record.
	LogRecords bool
}

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a Seoul Open Data Plaza subway API client.
type Client struct {
	baseURL    string
	apiKey     string
	format     string
	httpClient HTTPDoer
	metrics    *telemetry.ProviderMetrics
	logger     zerolog.Logger
	logRecords bool
	tracer     trace.Tracer
}

// NewClient creates a new Seoul API client. The configuration is validated
// immediately; errors wrap subway.ErrConfiguration.
func NewClient(cfg ClientConfig) (*Client, error) {
	if err := ValidateAPIKey(cfg.APIKey); err != nil {
		return nil, err
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if u, err := url.Parse(baseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, configError("base URL must be absolute, got %q", baseURL)
	}

	format := cfg.Format
	if format == "" {
		format = DefaultFormat
	}
	if format != DefaultFormat {
		return nil, configError("unsupported response format %q", format)
	}

	if cfg.Timeout < 0 {
		return nil, configError("timeout must be positive, got %s", cfg.Timeout)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		breaker := resilience.DefaultCircuitBreakerConfig(ProviderName)
		breaker.OnStateChange = resilience.LogStateChanges(cfg.Logger)

		rc := resilience.DefaultClientConfig(ProviderName)
		rc.Timeout = timeout
		rc.CircuitBreaker = &breaker
		rc.Registry = cfg.Registry
		httpClient = resilience.NewClient(rc)
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     cfg.APIKey,
		format:     format,
		httpClient: httpClient,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger.With().Str("provider", ProviderName).Logger(),
		logRecords: cfg.LogRecords,
		tracer:     otel.Tracer(tracerName),
	}, nil
}

// ValidateAPIKey checks that key can be embedded as a single path segment.
func ValidateAPIKey(key string) error {
	if key == "" {
		return configError("access key is required")
	}
	if strings.Contains(key, "/") {
		return configError("access key must not contain '/'")
	}
	if strings.IndexFunc(key, unicode.IsSpace) >= 0 {
		return configError("access key must not contain whitespace")
	}
	return nil
}

func configError(format string, args ...any) error {
	return &subway.Error{
		Provider: ProviderName,
		Code:     "CONFIGURATION",
		Message:  fmt.Sprintf(format, args...),
		Err:      subway.ErrConfiguration,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// URL builds the request URL for an endpoint and query.
func (c *Client) URL(ep Endpoint, q Query) (string, error) {
	return BuildURL(c.baseURL, c.apiKey, c.format, ep, q)
}

// Fetch performs one GET and decodes the body as a JSON object.
// An empty body yields a nil Payload and no error.
func (c *Client) Fetch(ctx context.Context, rawURL string) (Payload, error) {
	c.logger.Debug().Str("url", c.redact(rawURL)).Msg("requesting")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, c.transportError("REQUEST", "create request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.transportError("NETWORK", "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes)) //nolint:errcheck // draining
		return nil, c.transportError(fmt.Sprintf("HTTP_%d", resp.StatusCode),
			"unexpected status "+resp.Status, nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, c.transportError("READ", "read response body", err)
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, nil
	}

	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &subway.Error{
			Provider: ProviderName,
			Code:     "INVALID_JSON",
			Message:  "decode response body",
			Err:      fmt.Errorf("%w: %w", subway.ErrDecode, err),
		}
	}

	return payload, nil
}

func (c *Client) transportError(code, msg string, cause error) error {
	err := subway.ErrTransport
	if cause != nil {
		err = fmt.Errorf("%w: %w", subway.ErrTransport, c.scrub(cause))
	}
	return &subway.Error{
		Provider: ProviderName,
		Code:     code,
		Message:  msg,
		Err:      err,
	}
}

// scrub removes the access key from errors that embed the request URL.
func (c *Client) scrub(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &url.Error{Op: urlErr.Op, URL: c.redact(urlErr.URL), Err: urlErr.Err}
	}
	return err
}

func (c *Client) redact(s string) string {
	return strings.ReplaceAll(s, "/"+c.apiKey+"/", "/***/")
}

// GetStations fetches one window of the station directory.
func (c *Client) GetStations(ctx context.Context, q subway.StationQuery) (*subway.Envelope[subway.Station], error) {
	env, err := call(ctx, c, StationSearch, Query{
		Start:       q.Start,
		End:         q.End,
		StationCode: q.StationCode,
		StationName: q.StationName,
		LineNumber:  q.Line,
	}, ParseStations)
	if err == nil && c.logRecords {
		LogStations(c.logger, env.Records)
	}
	return env, err
}

// GetDistances fetches one window of the distance table.
func (c *Client) GetDistances(ctx context.Context, q subway.DistanceQuery) (*subway.Envelope[subway.Distance], error) {
	env, err := call(ctx, c, StationDistance, Query{
		Start:       q.Start,
		End:         q.End,
		StationName: q.StationName,
		LineNumber:  q.Line,
	}, ParseDistances)
	if err == nil && c.logRecords {
		LogDistances(c.logger, env.Records)
	}
	return env, err
}

func call[T any](ctx context.Context, c *Client, ep Endpoint, q Query, parse func(Payload) (*subway.Envelope[T], error)) (*subway.Envelope[T], error) {
	ctx, span := c.tracer.Start(ctx, "seoul."+ep.Name(),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("provider.endpoint", ep.Name()),
			attribute.Int("provider.window.start", q.Start),
			attribute.Int("provider.window.end", q.End),
		),
	)
	defer span.End()

	start := time.Now()

	rawURL, err := c.URL(ep, q)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	payload, err := c.Fetch(ctx, rawURL)
	if err != nil {
		c.finish(span, ep, start, err, 0)
		return nil, withEndpoint(err, ep)
	}

	env, err := parse(payload)
	if err != nil {
		c.finish(span, ep, start, err, 0)
		return nil, err
	}

	c.finish(span, ep, start, nil, env.Len())
	span.SetAttributes(
		attribute.Int("provider.records", env.Len()),
		attribute.Int("provider.total_count", env.TotalCount),
	)
	return env, nil
}

func (c *Client) finish(span trace.Span, ep Endpoint, start time.Time, err error, records int) {
	outcome := outcomeOf(err)
	c.metrics.RecordRequest(ProviderName, ep.Name(), time.Since(start), outcome, records)
	span.SetAttributes(attribute.String("provider.outcome", string(outcome)))

	switch outcome {
	case telemetry.OutcomeSuccess:
	case telemetry.OutcomeDomain:
		span.SetAttributes(attribute.String("provider.result_code", subway.ResultCode(err)))
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, string(outcome))
	}
}

func outcomeOf(err error) telemetry.Outcome {
	switch {
	case err == nil:
		return telemetry.OutcomeSuccess
	case errors.Is(err, subway.ErrDomain):
		return telemetry.OutcomeDomain
	case errors.Is(err, subway.ErrSchemaMismatch):
		return telemetry.OutcomeSchema
	case errors.Is(err, subway.ErrEmptyResponse):
		return telemetry.OutcomeEmpty
	case errors.Is(err, subway.ErrDecode):
		return telemetry.OutcomeDecode
	default:
		return telemetry.OutcomeTransport
	}
}

func withEndpoint(err error, ep Endpoint) error {
	var e *subway.Error
	if errors.As(err, &e) && e.Endpoint == "" {
		e.Endpoint = ep.Name()
	}
	return err
}
