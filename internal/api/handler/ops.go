// Package handler holds the HTTP handlers of the linewatch API.
package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/linewatch/linewatch/internal/api/models"
	"github.com/linewatch/linewatch/internal/api/response"
	"github.com/linewatch/linewatch/internal/provider/resilience"
	"github.com/linewatch/linewatch/internal/topology"
	"github.com/linewatch/linewatch/internal/transit"
)

// RefreshReporter exposes the statistics of the latest snapshot computation.
type RefreshReporter interface {
	LastRefresh() *transit.RefreshStats
}

// OpsConfig wires the operational endpoints.
type OpsConfig struct {
	Version   string
	BuildTime string
	Topology  *topology.Repository
	Registry  *resilience.Registry
	Refreshes RefreshReporter
	Now       func() time.Time
}

// OpsHandler serves health, readiness and status.
type OpsHandler struct {
	cfg OpsConfig
}

// NewOpsHandler creates an OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	if cfg.Registry == nil {
		cfg.Registry = resilience.GlobalRegistry
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &OpsHandler{cfg: cfg}
}

// HealthCheck handles GET /v1/ops/health. It only reports that the process
// is serving.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.cfg.Now()),
		Details: map[string]any{
			"version":   h.cfg.Version,
			"buildTime": h.cfg.BuildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready. Without a topology nothing can
// be served. An open upstream breaker still allows serving (empty or cached
// snapshots) and is reported as degraded.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.cfg.Now()),
	}

	if h.cfg.Topology == nil || h.cfg.Topology.StationCount() == 0 {
		health.Status = models.HealthStatusFail
		health.Details = map[string]any{"topology": "not loaded"}
		response.JSON(w, r, http.StatusServiceUnavailable, health)
		return
	}

	if !h.cfg.Registry.Healthy() {
		health.Status = models.HealthStatusDegraded
		health.Details = map[string]any{"upstream": "circuit open"}
	}
	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	now := h.cfg.Now()
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(now),
		Subsystems: []models.SubsystemStatus{h.topologyStatus()},
		Providers:  make([]models.ProviderStatus, 0),
	}

	for _, p := range h.cfg.Registry.GetAllHealth() {
		ps := providerStatus(p)
		status.Providers = append(status.Providers, ps)
		status.Status = worst(status.Status, ps.Status)
	}
	status.Status = worst(status.Status, status.Subsystems[0].Status)

	if h.cfg.Refreshes != nil {
		if last := h.cfg.Refreshes.LastRefresh(); last != nil {
			status.Snapshot = &models.SnapshotStatus{
				ComputedAt:   models.Timestamp(last.ComputedAt),
				AgeSeconds:   now.Sub(last.ComputedAt).Seconds(),
				DurationMs:   last.Duration.Milliseconds(),
				Stations:     last.Stations,
				Observations: last.Observations,
				Vehicles:     last.Vehicles,
			}
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) topologyStatus() models.SubsystemStatus {
	if h.cfg.Topology == nil {
		detail := "not loaded"
		return models.SubsystemStatus{Name: "topology", Status: models.HealthStatusFail, Detail: &detail}
	}
	detail := fmt.Sprintf("%d lines, %d stations", h.cfg.Topology.LineCount(), h.cfg.Topology.StationCount())
	return models.SubsystemStatus{Name: "topology", Status: models.HealthStatusOK, Detail: &detail}
}

func providerStatus(p *resilience.ProviderHealth) models.ProviderStatus {
	ps := models.ProviderStatus{
		Provider:            p.Name,
		Status:              models.HealthStatusOK,
		CircuitState:        p.CircuitState.String(),
		ConsecutiveFailures: p.Counts.ConsecutiveFailures,
	}
	switch {
	case p.IsUnhealthy():
		ps.Status = models.HealthStatusFail
	case p.IsDegraded():
		ps.Status = models.HealthStatusDegraded
	}
	if p.LastSuccessAt != nil {
		ts := models.Timestamp(*p.LastSuccessAt)
		ps.LastSuccessAt = &ts
	}
	if p.LastFailureAt != nil {
		ts := models.Timestamp(*p.LastFailureAt)
		ps.LastFailureAt = &ts
	}
	if p.LastError != "" {
		msg := p.LastError
		ps.Message = &msg
	}
	return ps
}

var severity = map[models.HealthStatus]int{
	models.HealthStatusOK:       0,
	models.HealthStatusDegraded: 1,
	models.HealthStatusFail:     2,
}

func worst(a, b models.HealthStatus) models.HealthStatus {
	if severity[b] > severity[a] {
		return b
	}
	return a
}
