package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Provider status values reported by Health.Status.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusFail     = "fail"
)

// Health is a point-in-time view of one upstream provider.
type Health struct {
	Name    string          `json:"name"`
	State   gobreaker.State `json:"-"`
	Circuit string          `json:"circuit"`

	// ConsecutiveFailures survives breaker state changes; it resets only on
	// a successful call.
	ConsecutiveFailures uint32 `json:"consecutive_failures"`
	Requests            uint64 `json:"requests"`
	Failures            uint64 `json:"failures"`

	LastSuccessAt *time.Time `json:"last_success_at,omitempty"`
	LastFailureAt *time.Time `json:"last_failure_at,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
}

// Status maps the circuit state to ok, degraded or fail.
func (h Health) Status() string {
	switch h.State {
	case gobreaker.StateOpen:
		return StatusFail
	case gobreaker.StateHalfOpen:
		return StatusDegraded
	default:
		return StatusOK
	}
}

// Available reports whether calls to the provider are currently let through.
func (h Health) Available() bool {
	return h.State != gobreaker.StateOpen
}

// breakerState is implemented by Client.
type breakerState interface {
	CircuitBreakerState() gobreaker.State
}

type tracked struct {
	breaker breakerState

	requests    uint64
	failures    uint64
	streak      uint32
	lastSuccess time.Time
	lastFailure time.Time
	lastError   string
}

// Registry tracks the outcome of calls to each registered provider.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]*tracked
	now       func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]*tracked),
		now:       time.Now,
	}
}

// Register starts tracking a client under name. Registering the same name
// again replaces the client and clears its history.
func (r *Registry) Register(name string, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = &tracked{breaker: client}
}

// Forget stops tracking name.
func (r *Registry) Forget(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.providers, name)
}

// RecordSuccess records a successful call. Unknown names are ignored.
func (r *Registry) RecordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.providers[name]
	if !ok {
		return
	}
	p.requests++
	p.streak = 0
	p.lastSuccess = r.now()
}

// RecordFailure records a failed call. Unknown names are ignored.
func (r *Registry) RecordFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.providers[name]
	if !ok {
		return
	}
	p.requests++
	p.failures++
	p.streak++
	p.lastFailure = r.now()
	if err != nil {
		p.lastError = err.Error()
	}
}

// Health returns the current view of one provider.
func (r *Registry) Health(name string) (Health, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return Health{}, false
	}
	return p.snapshot(name), true
}

// Snapshot returns every provider's health, sorted by name.
func (r *Registry) Snapshot() []Health {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Health, 0, len(r.providers))
	for name, p := range r.providers {
		out = append(out, p.snapshot(name))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Unavailable returns the sorted names of providers whose circuit is open.
func (r *Registry) Unavailable() []string {
	var names []string
	for _, h := range r.Snapshot() {
		if !h.Available() {
			names = append(names, h.Name)
		}
	}
	return names
}

// Names returns the registered provider names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (p *tracked) snapshot(name string) Health {
	state := gobreaker.StateClosed
	if p.breaker != nil {
		state = p.breaker.CircuitBreakerState()
	}
	h := Health{
		Name:                name,
		State:               state,
		Circuit:             state.String(),
		ConsecutiveFailures: p.streak,
		Requests:            p.requests,
		Failures:            p.failures,
		LastError:           p.lastError,
	}
	if !p.lastSuccess.IsZero() {
		t := p.lastSuccess
		h.LastSuccessAt = &t
	}
	if !p.lastFailure.IsZero() {
		t := p.lastFailure
		h.LastFailureAt = &t
	}
	return h
}
