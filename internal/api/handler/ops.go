// Package handler provides HTTP handlers for the station info API.
package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/seoulmetro/stationinfo/internal/api/models"
	"github.com/seoulmetro/stationinfo/internal/api/response"
	"github.com/seoulmetro/stationinfo/internal/provider/resilience"
)

// CacheStats reports the size of the response cache.
type CacheStats interface {
	CachedEntries() int
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	registry  *resilience.Registry
	cache     CacheStats
}

// NewOpsHandler creates a new OpsHandler. registry and cache may be nil.
func NewOpsHandler(version, buildTime string, registry *resilience.Registry, cache CacheStats) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		registry:  registry,
		cache:     cache,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check. The service is
// not ready while a provider's circuit is open.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	}

	if h.registry != nil {
		if failing := h.registry.Unavailable(); len(failing) > 0 {
			response.ServiceUnavailable(w, r, "providers unavailable: "+strings.Join(failing, ", "), retryAfterSeconds)
			return
		}
	}

	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - provider and subsystem status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(time.Now()),
		Subsystems: []models.SubsystemStatus{},
		Providers:  []models.ProviderStatus{},
	}

	if h.cache != nil {
		detail := strconv.Itoa(h.cache.CachedEntries()) + " entries"
		status.Subsystems = append(status.Subsystems, models.SubsystemStatus{
			Name:   "response-cache",
			Status: models.HealthStatusOK,
			Detail: &detail,
		})
	}

	if h.registry != nil {
		for _, p := range h.registry.Snapshot() {
			ps := models.ProviderStatus{
				Provider:            p.Name,
				Status:              models.HealthStatusFromProvider(p.Status()),
				CircuitState:        p.Circuit,
				ConsecutiveFailures: p.ConsecutiveFailures,
				Requests:            p.Requests,
				Failures:            p.Failures,
			}
			if p.LastSuccessAt != nil {
				ps.LastSuccessAt = models.TimestampPtr(*p.LastSuccessAt)
			}
			if p.LastFailureAt != nil {
				ps.LastFailureAt = models.TimestampPtr(*p.LastFailureAt)
			}
			if p.LastError != "" {
				msg := p.LastError
				ps.Message = &msg
			}
			status.Providers = append(status.Providers, ps)
			status.Status = status.Status.Worse(ps.Status)
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}
