package transit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/linewatch/linewatch/internal/transit"

// ServiceConfig holds configuration for the snapshot service.
type ServiceConfig struct {
	Sampler     *Sampler
	Synthesizer *Synthesizer

	// Cache defaults to a MemoryCache with the default TTL.
	Cache SnapshotCache

	Metrics *Metrics
	Logger  zerolog.Logger
}

// Service produces the vehicle snapshot: cache check, then sample,
// synthesize and deduplicate on a miss.
type Service struct {
	sampler     *Sampler
	synthesizer *Synthesizer
	cache       SnapshotCache
	metrics     *Metrics
	logger      zerolog.Logger
	tracer      trace.Tracer

	mu   sync.RWMutex
	last *RefreshStats
}

// RefreshStats describes the most recent recomputation.
type RefreshStats struct {
	ComputedAt   time.Time
	Duration     time.Duration
	Stations     int
	Observations int
	Vehicles     int
}

// NewService creates a snapshot service.
func NewService(cfg ServiceConfig) *Service {
	c := cfg.Cache
	if c == nil {
		c = NewMemoryCache(MemoryCacheConfig{})
	}

	return &Service{
		sampler:     cfg.Sampler,
		synthesizer: cfg.Synthesizer,
		cache:       c,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		tracer:      otel.Tracer(tracerName),
	}
}

// Snapshot returns the cached snapshot when fresh, otherwise recomputes it.
// Upstream failures never surface here; an outage yields an empty snapshot.
// The only error is the context's.
func (s *Service) Snapshot(ctx context.Context) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if snap, ok := s.cache.Get(ctx); ok {
		s.metrics.recordCache(ctx, true)
		return &Result{Snapshot: snap, Cached: true}, nil
	}
	s.metrics.recordCache(ctx, false)

	snap, err := s.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	return &Result{Snapshot: snap, Cached: false}, nil
}

// Refresh recomputes the snapshot and stores it regardless of freshness.
// When ctx hits its deadline mid-sampling, the stations that answered in time
// still make up the snapshot. Cancellation aborts without storing anything.
func (s *Service) Refresh(ctx context.Context) (*Snapshot, error) {
	ctx, span := s.tracer.Start(ctx, "transit.Refresh")
	defer span.End()

	start := time.Now()
	observations := s.sampler.Sample(ctx)
	if err := ctx.Err(); err != nil {
		if !errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		// Stations cut off by the deadline count as failed ones; what the
		// others returned is still published.
		s.logger.Warn().
			Int("observations", len(observations)).
			Msg("sampling deadline reached, publishing partial snapshot")
		ctx = context.WithoutCancel(ctx)
	}

	vehicles := Deduplicate(s.synthesizer.Synthesize(observations))
	snap := s.cache.Set(ctx, vehicles)

	stats := &RefreshStats{
		ComputedAt:   snap.ComputedAt,
		Duration:     time.Since(start),
		Stations:     len(s.sampler.StationCodes()),
		Observations: len(observations),
		Vehicles:     len(vehicles),
	}
	s.mu.Lock()
	s.last = stats
	s.mu.Unlock()

	s.metrics.recordSnapshot(ctx, len(vehicles))
	span.SetAttributes(
		attribute.Int("transit.stations", stats.Stations),
		attribute.Int("transit.observations", stats.Observations),
		attribute.Int("transit.vehicles", stats.Vehicles),
	)

	s.logger.Info().
		Int("stations", stats.Stations).
		Int("observations", stats.Observations).
		Int("vehicles", stats.Vehicles).
		Dur("duration", stats.Duration).
		Msg("snapshot refreshed")

	return snap, nil
}

// Invalidate drops the cached snapshot.
func (s *Service) Invalidate(ctx context.Context) {
	s.cache.Invalidate(ctx)
}

// LastRefresh returns statistics of the latest recomputation done by this
// process, or nil if none happened yet.
func (s *Service) LastRefresh() *RefreshStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}
