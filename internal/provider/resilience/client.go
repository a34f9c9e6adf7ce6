package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned without contacting the upstream while the
// breaker is open or the half-open trial quota is used up.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// ClientConfig configures a Client.
type ClientConfig struct {
	// Name is the provider name used by the breaker and the registry.
	Name string

	// Timeout bounds each HTTP attempt. Default: 10s.
	Timeout time.Duration

	// MaxRetries is the number of extra attempts after a 5xx or network
	// failure. Default: 0, a single attempt.
	MaxRetries uint64

	// InitialInterval and MaxInterval shape the exponential backoff between
	// attempts. Defaults: 100ms and 5s.
	InitialInterval time.Duration
	MaxInterval     time.Duration

	// CircuitBreaker overrides DefaultCircuitBreakerConfig(Name).
	CircuitBreaker *CircuitBreakerConfig

	// Transport overrides http.DefaultTransport.
	Transport http.RoundTripper

	// Registry, when set, receives the outcome of every call.
	Registry *Registry
}

// DefaultClientConfig returns a single-attempt configuration for name.
func DefaultClientConfig(name string) ClientConfig {
	breaker := DefaultCircuitBreakerConfig(name)
	return ClientConfig{
		Name:            name,
		Timeout:         10 * time.Second,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		CircuitBreaker:  &breaker,
	}
}

// Client sends HTTP requests through a circuit breaker.
type Client struct {
	name     string
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker[*http.Response]
	registry *Registry

	maxRetries      uint64
	initialInterval time.Duration
	maxInterval     time.Duration
}

// NewClient creates a Client and registers it with cfg.Registry.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 5 * time.Second
	}

	breaker := DefaultCircuitBreakerConfig(cfg.Name)
	if cfg.CircuitBreaker != nil {
		breaker = *cfg.CircuitBreaker
	}

	c := &Client{
		name:            cfg.Name,
		http:            &http.Client{Timeout: cfg.Timeout, Transport: cfg.Transport},
		breaker:         NewCircuitBreaker[*http.Response](breaker), //nolint:bodyclose // type param, not response
		registry:        cfg.Registry,
		maxRetries:      cfg.MaxRetries,
		initialInterval: cfg.InitialInterval,
		maxInterval:     cfg.MaxInterval,
	}
	if c.registry != nil {
		c.registry.Register(c.name, c)
	}
	return c
}

// Name returns the provider name.
func (c *Client) Name() string {
	return c.name
}

// Do sends req. A 5xx response counts as a breaker failure but is still
// returned with a nil error so the caller can inspect the status. Network
// failures are returned as errors; an open breaker yields ErrCircuitOpen.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.DoWithContext(req.Context(), req)
}

// DoWithContext is Do with an explicit context for the attempts.
func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	var last *http.Response

	attempt := func() error {
		resp, err := c.breaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // returned to caller
			resp, err := c.http.Do(req.Clone(ctx))
			if err != nil {
				return nil, err
			}
			if resp.StatusCode >= http.StatusInternalServerError {
				return resp, &ServerError{StatusCode: resp.StatusCode}
			}
			return resp, nil
		})

		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return backoff.Permanent(fmt.Errorf("%s: %w", c.name, ErrCircuitOpen))
		case err != nil && resp != nil:
			discard(last)
			last = resp
			return err
		case err != nil:
			return err
		}
		discard(last)
		last = resp
		return nil
	}

	err := backoff.Retry(attempt, c.policy(ctx))
	if err != nil {
		c.record(err)
		if last != nil {
			return last, nil
		}
		return nil, err
	}

	c.record(nil)
	return last, nil
}

func (c *Client) policy(ctx context.Context) backoff.BackOffContext {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.initialInterval
	bo.MaxInterval = c.maxInterval
	bo.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(bo, c.maxRetries), ctx)
}

func (c *Client) record(err error) {
	if c.registry == nil {
		return
	}
	if err != nil {
		c.registry.RecordFailure(c.name, err)
		return
	}
	c.registry.RecordSuccess(c.name)
}

// discard drains and closes a response superseded by a later attempt.
func discard(resp *http.Response) {
	if resp == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10)) //nolint:errcheck // draining
	resp.Body.Close()
}

// ServerError is the breaker failure recorded for a 5xx response.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("upstream returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// CircuitBreakerState returns the breaker's current state.
func (c *Client) CircuitBreakerState() gobreaker.State {
	return c.breaker.State()
}

// CircuitBreakerCounts returns the breaker's counts for the current generation.
func (c *Client) CircuitBreakerCounts() gobreaker.Counts {
	return c.breaker.Counts()
}
