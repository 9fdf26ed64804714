package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/linewatch/linewatch/internal/transit"
)

// ErrStale is returned by HealthCheck when no recent refresh succeeded.
var ErrStale = errors.New("snapshot is stale")

// Refresher recomputes and stores the snapshot.
type Refresher interface {
	Refresh(ctx context.Context) (*transit.Snapshot, error)
}

// RefreshJob recomputes the snapshot on demand or on a schedule.
type RefreshJob struct {
	config    RefreshConfig
	refresher Refresher
	logger    zerolog.Logger
	now       func() time.Time

	// Refreshes from the ticker and from Pub/Sub must not overlap.
	runMu sync.Mutex

	metricsMu sync.RWMutex
	metrics   RefreshMetrics
}

// RefreshMetrics tracks refresh job statistics.
type RefreshMetrics struct {
	TotalRefreshes      int64
	SuccessfulRefreshes int64
	FailedRefreshes     int64
	LastRefreshAt       time.Time
	LastSuccessAt       time.Time
	LastRefreshDuration time.Duration
	LastVehicles        int
	LastError           string
}

// RefreshJobConfig holds the dependencies of a RefreshJob.
type RefreshJobConfig struct {
	Config    RefreshConfig
	Refresher Refresher
	Logger    zerolog.Logger
	Now       func() time.Time
}

// NewRefreshJob creates a refresh job.
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &RefreshJob{
		config:    cfg.Config.withDefaults(),
		refresher: cfg.Refresher,
		logger:    cfg.Logger,
		now:       now,
	}
}

// RefreshResult is the outcome of one refresh.
type RefreshResult struct {
	StartTime time.Time
	Duration  time.Duration
	Vehicles  int
	Err       error
}

// Run performs one refresh bounded by the configured timeout.
func (j *RefreshJob) Run(ctx context.Context) *RefreshResult {
	j.runMu.Lock()
	defer j.runMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	start := j.now()
	snap, err := j.refresher.Refresh(ctx)
	result := &RefreshResult{StartTime: start, Duration: j.now().Sub(start), Err: err}
	if err == nil {
		result.Vehicles = len(snap.Vehicles)
	}

	j.updateMetrics(result)

	if err != nil {
		j.logger.Error().Err(err).Dur("duration", result.Duration).Msg("snapshot refresh failed")
	} else {
		j.logger.Debug().Int("vehicles", result.Vehicles).Dur("duration", result.Duration).Msg("snapshot refreshed")
	}
	return result
}

// Start refreshes immediately and then on every interval until ctx is done.
func (j *RefreshJob) Start(ctx context.Context) {
	j.logger.Info().Dur("interval", j.config.Interval).Msg("starting refresh loop")

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	j.Run(ctx)
	for {
		select {
		case <-ctx.Done():
			j.logger.Info().Msg("refresh loop stopped")
			return
		case <-ticker.C:
			j.Run(ctx)
		}
	}
}

// HealthCheck fails when the last successful refresh is older than the
// configured staleness bound.
func (j *RefreshJob) HealthCheck() error {
	m := j.GetMetrics()
	if m.LastSuccessAt.IsZero() {
		return fmt.Errorf("%w: no successful refresh yet", ErrStale)
	}
	if age := j.now().Sub(m.LastSuccessAt); age > j.config.StaleAfter {
		return fmt.Errorf("%w: last success %s ago", ErrStale, age.Round(time.Second))
	}
	return nil
}

func (j *RefreshJob) updateMetrics(result *RefreshResult) {
	j.metricsMu.Lock()
	defer j.metricsMu.Unlock()

	j.metrics.TotalRefreshes++
	j.metrics.LastRefreshAt = result.StartTime
	j.metrics.LastRefreshDuration = result.Duration
	if result.Err != nil {
		j.metrics.FailedRefreshes++
		j.metrics.LastError = result.Err.Error()
		return
	}
	j.metrics.SuccessfulRefreshes++
	j.metrics.LastSuccessAt = result.StartTime
	j.metrics.LastVehicles = result.Vehicles
	j.metrics.LastError = ""
}

// GetMetrics returns a copy of the current metrics.
func (j *RefreshJob) GetMetrics() RefreshMetrics {
	j.metricsMu.RLock()
	defer j.metricsMu.RUnlock()
	return j.metrics
}

// MetricsSnapshot returns the metrics as a JSON-friendly map.
func (j *RefreshJob) MetricsSnapshot() map[string]any {
	m := j.GetMetrics()
	return map[string]any{
		"total_refreshes":       m.TotalRefreshes,
		"successful_refreshes":  m.SuccessfulRefreshes,
		"failed_refreshes":      m.FailedRefreshes,
		"last_refresh_at":       m.LastRefreshAt,
		"last_success_at":       m.LastSuccessAt,
		"last_refresh_duration": m.LastRefreshDuration.String(),
		"last_vehicles":         m.LastVehicles,
		"last_error":            m.LastError,
	}
}
