package transit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	redisstore "github.com/eko/gocache/store/redis/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultSnapshotKey is the redis key holding the shared snapshot.
const DefaultSnapshotKey = "linewatch:snapshot"

// RedisCacheConfig holds configuration for the shared cache.
type RedisCacheConfig struct {
	// Store backs the cache. Use NewRedisStore for a redis client.
	Store store.StoreInterface

	// Key defaults to DefaultSnapshotKey.
	Key string

	// TTL defaults to 20 seconds.
	TTL time.Duration

	// Now defaults to time.Now.
	Now func() time.Time

	Logger zerolog.Logger
}

// RedisCache shares one snapshot between API replicas and the worker.
// Store errors are logged and reported as misses.
type RedisCache struct {
	cache  *cache.Cache[string]
	key    string
	ttl    time.Duration
	now    func() time.Time
	logger zerolog.Logger
}

// NewRedisStore wraps a redis client as a cache store whose entries expire
// after ttl.
func NewRedisStore(client *redis.Client, ttl time.Duration) store.StoreInterface {
	return redisstore.NewRedis(client, store.WithExpiration(ttl))
}

// NewRedisCache creates a cache over the configured store.
func NewRedisCache(cfg RedisCacheConfig) *RedisCache {
	key := cfg.Key
	if key == "" {
		key = DefaultSnapshotKey
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &RedisCache{
		cache:  cache.New[string](cfg.Store),
		key:    key,
		ttl:    ttl,
		now:    now,
		logger: cfg.Logger,
	}
}

// Get returns the shared snapshot while it is fresh. Freshness is checked
// against ComputedAt as well as the store's own expiry.
func (c *RedisCache) Get(ctx context.Context) (*Snapshot, bool) {
	raw, err := c.cache.Get(ctx, c.key)
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Debug().Err(err).Str("key", c.key).Msg("snapshot cache read missed")
		}
		return nil, false
	}
	if raw == "" {
		return nil, false
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		c.logger.Warn().Err(err).Str("key", c.key).Msg("discarding undecodable snapshot")
		return nil, false
	}
	if c.now().Sub(snap.ComputedAt) >= c.ttl {
		return nil, false
	}
	if snap.Vehicles == nil {
		snap.Vehicles = []VehiclePosition{}
	}
	return &snap, true
}

// Set stores the snapshot. A failed write is logged; the snapshot is still
// returned to the caller.
func (c *RedisCache) Set(ctx context.Context, vehicles []VehiclePosition) *Snapshot {
	snap := &Snapshot{Vehicles: vehicles, ComputedAt: c.now()}

	data, err := json.Marshal(snap)
	if err != nil {
		c.logger.Error().Err(err).Msg("encoding snapshot")
		return snap
	}
	if err := c.cache.Set(ctx, c.key, string(data), store.WithExpiration(c.ttl)); err != nil {
		c.logger.Warn().Err(err).Str("key", c.key).Msg("snapshot cache write failed")
	}
	return snap
}

// Invalidate deletes the shared snapshot.
func (c *RedisCache) Invalidate(ctx context.Context) {
	if err := c.cache.Delete(ctx, c.key); err != nil {
		c.logger.Warn().Err(err).Str("key", c.key).Msg("snapshot cache delete failed")
	}
}
