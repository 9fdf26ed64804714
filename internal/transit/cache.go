package transit

import (
	"context"
	"sync"
	"time"
)

// SnapshotCache holds the most recent snapshot.
type SnapshotCache interface {
	// Get returns the snapshot if it is still fresh.
	Get(ctx context.Context) (*Snapshot, bool)

	// Set stores the vehicles stamped with the current time and returns
	// the stored snapshot.
	Set(ctx context.Context, vehicles []VehiclePosition) *Snapshot

	// Invalidate drops the stored snapshot.
	Invalidate(ctx context.Context)
}

// MemoryCacheConfig holds configuration for the in-process cache.
type MemoryCacheConfig struct {
	// TTL defaults to 20 seconds.
	TTL time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

// MemoryCache is a single-slot in-process cache. Concurrent misses are not
// coalesced; each caller recomputes and the last Set wins.
type MemoryCache struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.RWMutex
	snapshot *Snapshot
}

// NewMemoryCache creates an empty in-process cache.
func NewMemoryCache(cfg MemoryCacheConfig) *MemoryCache {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &MemoryCache{ttl: ttl, now: now}
}

// Get returns the snapshot while now - computedAt < TTL.
func (c *MemoryCache) Get(_ context.Context) (*Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.snapshot == nil || c.now().Sub(c.snapshot.ComputedAt) >= c.ttl {
		return nil, false
	}
	return c.snapshot, true
}

// Set overwrites the slot.
func (c *MemoryCache) Set(_ context.Context, vehicles []VehiclePosition) *Snapshot {
	snap := &Snapshot{Vehicles: vehicles, ComputedAt: c.now()}

	c.mu.Lock()
	c.snapshot = snap
	c.mu.Unlock()

	return snap
}

// Invalidate empties the slot.
func (c *MemoryCache) Invalidate(_ context.Context) {
	c.mu.Lock()
	c.snapshot = nil
	c.mu.Unlock()
}
