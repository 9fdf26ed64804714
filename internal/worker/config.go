// Package worker keeps the shared snapshot cache warm in the background so
// API requests rarely pay for a recomputation.
package worker

import "time"

// RefreshConfig holds the schedule of the refresh job.
type RefreshConfig struct {
	// Interval between scheduled refreshes. It should be shorter than the
	// cache TTL so readers keep hitting a fresh snapshot.
	Interval time.Duration

	// Timeout bounds one refresh, including the whole sampler fan-out.
	Timeout time.Duration

	// StaleAfter is how old the last successful refresh may be before the
	// health check fails. Zero means three intervals.
	StaleAfter time.Duration
}

// DefaultRefreshConfig returns a schedule suited to the default 20s TTL.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Interval: 15 * time.Second,
		Timeout:  10 * time.Second,
	}
}

func (c RefreshConfig) withDefaults() RefreshConfig {
	d := DefaultRefreshConfig()
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = 3 * c.Interval
	}
	return c
}
