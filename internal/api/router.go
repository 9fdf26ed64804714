// Package api assembles the HTTP API of linewatch.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/linewatch/linewatch/internal/api/handler"
	"github.com/linewatch/linewatch/internal/api/middleware"
	"github.com/linewatch/linewatch/internal/api/response"
	"github.com/linewatch/linewatch/internal/provider/resilience"
	"github.com/linewatch/linewatch/internal/topology"
)

// Snapshots is what the router needs from the transit service.
type Snapshots interface {
	handler.SnapshotSource
	handler.RefreshReporter
}

// RouterConfig holds the router dependencies.
type RouterConfig struct {
	Version     string
	BuildTime   string
	ServiceName string
	Logger      zerolog.Logger
	Metrics     *middleware.Metrics

	Topology  *topology.Repository
	Snapshots Snapshots
	Registry  *resilience.Registry

	CORSAllowedOrigins []string
	RequireTLS         bool

	// Rate limits default to middleware.PollingRateLimit and
	// middleware.StandardRateLimit.
	VehiclesRateLimit *middleware.RateLimitConfig
	LinesRateLimit    *middleware.RateLimitConfig

	Now func() time.Time
}

// NewRouter creates the chi router with every API route.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "linewatch-api"
	}
	vehiclesLimit := middleware.PollingRateLimit
	if cfg.VehiclesRateLimit != nil {
		vehiclesLimit = *cfg.VehiclesRateLimit
	}
	linesLimit := middleware.StandardRateLimit
	if cfg.LinesRateLimit != nil {
		linesLimit = *cfg.LinesRateLimit
	}

	// Order matters: the request ID must exist before anything logs or traces.
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	}
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Topology:  cfg.Topology,
		Registry:  cfg.Registry,
		Refreshes: cfg.Snapshots,
		Now:       cfg.Now,
	})
	vehiclesHandler := handler.NewVehiclesHandler(cfg.Snapshots, cfg.Topology, cfg.Logger)
	linesHandler := handler.NewLinesHandler(cfg.Topology)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, r, "no such endpoint")
	})

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		r.With(middleware.RateLimitByIP(vehiclesLimit)).Get("/vehicles", vehiclesHandler.List)

		r.Route("/lines", func(r chi.Router) {
			r.Use(middleware.RateLimitByIP(linesLimit))
			r.Get("/", linesHandler.List)
			r.Get("/{lineId}", linesHandler.Get)
		})
	})

	return r
}
