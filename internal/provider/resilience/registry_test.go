package resilience_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seoulmetro/stationinfo/internal/provider/resilience"
)

func registered(names ...string) *resilience.Registry {
	registry := resilience.NewRegistry()
	for _, name := range names {
		cfg := resilience.DefaultClientConfig(name)
		cfg.Registry = registry
		resilience.NewClient(cfg)
	}
	return registry
}

func TestRegistry_NewClientRegisters(t *testing.T) {
	registry := registered("seoul")

	h, ok := registry.Health("seoul")
	require.True(t, ok)
	assert.Equal(t, "seoul", h.Name)
	assert.Equal(t, gobreaker.StateClosed, h.State)
	assert.Equal(t, "closed", h.Circuit)
	assert.Equal(t, resilience.StatusOK, h.Status())
	assert.True(t, h.Available())
	assert.Nil(t, h.LastSuccessAt)
	assert.Nil(t, h.LastFailureAt)
}

func TestRegistry_UnknownProvider(t *testing.T) {
	registry := resilience.NewRegistry()

	registry.RecordSuccess("missing")
	registry.RecordFailure("missing", errors.New("boom"))

	_, ok := registry.Health("missing")
	assert.False(t, ok)
	assert.Empty(t, registry.Snapshot())
}

func TestRegistry_Forget(t *testing.T) {
	registry := registered("seoul", "realtime")

	registry.Forget("seoul")

	assert.Equal(t, []string{"realtime"}, registry.Names())
}

func TestRegistry_StreakResetsOnSuccess(t *testing.T) {
	registry := registered("seoul")

	registry.RecordFailure("seoul", errors.New("upstream returned 502 Bad Gateway"))
	registry.RecordFailure("seoul", nil)

	h, _ := registry.Health("seoul")
	assert.Equal(t, uint32(2), h.ConsecutiveFailures)
	assert.Equal(t, "upstream returned 502 Bad Gateway", h.LastError, "nil error keeps the previous message")

	registry.RecordSuccess("seoul")

	h, _ = registry.Health("seoul")
	assert.Zero(t, h.ConsecutiveFailures)
	assert.Equal(t, uint64(3), h.Requests)
	assert.Equal(t, uint64(2), h.Failures)
	assert.NotNil(t, h.LastSuccessAt)
}

func TestRegistry_SnapshotIsSorted(t *testing.T) {
	registry := registered("seoul", "arrivals", "metro")

	var names []string
	for _, h := range registry.Snapshot() {
		names = append(names, h.Name)
	}
	assert.Equal(t, []string{"arrivals", "metro", "seoul"}, names)
	assert.Equal(t, names, registry.Names())
	assert.Empty(t, registry.Unavailable())
}

func TestHealth_Status(t *testing.T) {
	tests := []struct {
		state     gobreaker.State
		status    string
		available bool
	}{
		{gobreaker.StateClosed, resilience.StatusOK, true},
		{gobreaker.StateHalfOpen, resilience.StatusDegraded, true},
		{gobreaker.StateOpen, resilience.StatusFail, false},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			h := resilience.Health{State: tt.state}
			assert.Equal(t, tt.status, h.Status())
			assert.Equal(t, tt.available, h.Available())
		})
	}
}

func TestHealth_JSON(t *testing.T) {
	registry := registered("seoul")
	registry.RecordFailure("seoul", errors.New("timeout"))

	h, _ := registry.Health("seoul")
	data, err := json.Marshal(h)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "closed", out["circuit"])
	assert.Equal(t, "timeout", out["last_error"])
	assert.EqualValues(t, 1, out["consecutive_failures"])
	assert.NotContains(t, out, "State")
	assert.NotContains(t, out, "last_success_at")
}
