package worker

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/linewatch/linewatch/internal/api/middleware"
	"github.com/linewatch/linewatch/internal/api/models"
	"github.com/linewatch/linewatch/internal/api/response"
)

// NewHealthRouter serves the worker's health check endpoints:
//
//	GET /health  200 while refreshes succeed, 503 once they are stale
//	GET /metrics refresh counters as JSON
func NewHealthRouter(job *RefreshJob, version string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		body := models.Health{
			Status:  models.HealthStatusOK,
			Time:    models.Timestamp(job.now()),
			Details: map[string]any{"version": version},
		}
		status := http.StatusOK
		if err := job.HealthCheck(); err != nil {
			body.Status = models.HealthStatusFail
			body.Details["error"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		response.JSON(w, r, status, body)
	})

	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		m := job.MetricsSnapshot()
		m["time"] = job.now().UTC().Format(time.RFC3339)
		response.JSON(w, r, http.StatusOK, m)
	})

	return r
}
