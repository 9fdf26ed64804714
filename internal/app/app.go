// Package app assembles the snapshot pipeline from configuration. The API
// server, the worker and the CLI share it so they compute identical
// snapshots.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/linewatch/linewatch/internal/config"
	"github.com/linewatch/linewatch/internal/database"
	"github.com/linewatch/linewatch/internal/provider/resilience"
	"github.com/linewatch/linewatch/internal/topology"
	"github.com/linewatch/linewatch/internal/transit"
	"github.com/linewatch/linewatch/internal/transit/upstream"
)

// App holds the assembled pipeline.
type App struct {
	Topology *topology.Repository
	Service  *transit.Service
	Registry *resilience.Registry
	Targets  []topology.StationRef

	// RefreshTimeout bounds one refresh of every sampled station.
	RefreshTimeout time.Duration

	closers []func() error
}

// Close releases the cache connection, if any.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// LoadTopology reads the network from the configured source. The database
// pool is only held for the duration of the load.
func LoadTopology(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*topology.Repository, error) {
	var (
		repo *topology.Repository
		err  error
	)

	switch cfg.Topology.Source {
	case config.TopologySourcePostgres:
		pool, connErr := database.Connect(ctx, cfg.Database)
		if connErr != nil {
			return nil, fmt.Errorf("connecting to topology database: %w", connErr)
		}
		defer pool.Close()
		repo, err = topology.LoadPostgres(ctx, pool)
	default:
		repo, err = topology.LoadFile(cfg.Topology.File)
	}
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("source", cfg.Topology.Source).
		Int("lines", repo.LineCount()).
		Int("stations", repo.StationCount()).
		Msg("topology loaded")
	return repo, nil
}

// NewCache returns the configured snapshot cache and a function releasing
// its resources.
func NewCache(cfg *config.Config, logger zerolog.Logger) (transit.SnapshotCache, func() error) {
	if cfg.Cache.Backend != config.CacheBackendRedis {
		return transit.NewMemoryCache(transit.MemoryCacheConfig{TTL: cfg.Cache.TTL}), func() error { return nil }
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Cache.RedisAddress,
		Password: cfg.Cache.RedisPassword,
		DB:       cfg.Cache.RedisDB,
	})
	logger.Info().Str("address", cfg.Cache.RedisAddress).Msg("using redis snapshot cache")

	c := transit.NewRedisCache(transit.RedisCacheConfig{
		Store:  transit.NewRedisStore(client, cfg.Cache.TTL),
		TTL:    cfg.Cache.TTL,
		Logger: logger,
	})
	return c, client.Close
}

// NewUpstreamClient builds the arrivals client with the configured timeout
// and retry budget, registered in registry. Each station path trips its own
// breaker.
func NewUpstreamClient(cfg *config.Config, registry *resilience.Registry, logger zerolog.Logger) *upstream.Client {
	rc := resilience.DefaultClientConfig(upstream.ProviderName)
	rc.Timeout = cfg.Upstream.Timeout
	rc.MaxRetries = cfg.Upstream.MaxRetries
	rc.Registry = registry
	rc.BreakerKey = resilience.KeyByPath
	cb := resilience.DefaultCircuitBreakerConfig(upstream.ProviderName)
	cb.OnStateChange = resilience.LogStateChange(logger)
	rc.CircuitBreaker = &cb

	return upstream.NewClient(upstream.ClientConfig{
		BaseURL:    cfg.Upstream.BaseURL,
		APIKey:     cfg.Upstream.APIKey,
		HTTPClient: resilience.NewClient(rc),
		Logger:     logger,
	})
}

// RefreshTimeout bounds one full refresh over the given number of station
// queries: each concurrency wave may spend the whole retry budget of a
// hanging station.
func RefreshTimeout(cfg *config.Config, stations int) time.Duration {
	concurrency := max(cfg.Sampler.Concurrency, 1)
	waves := max((stations+concurrency-1)/concurrency, 1)

	retries := time.Duration(cfg.Upstream.MaxRetries)
	backoffCap := resilience.DefaultClientConfig(upstream.ProviderName).MaxInterval
	perStation := cfg.Upstream.Timeout*(retries+1) + backoffCap*retries

	return time.Duration(waves) * perStation
}

// New loads the topology and wires sampler, synthesizer, cache and service.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	repo, err := LoadTopology(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return Assemble(cfg, repo, nil, logger)
}

// Assemble wires the pipeline around an already loaded topology. A nil
// provider selects the configured upstream client.
func Assemble(cfg *config.Config, repo *topology.Repository, provider transit.ArrivalsProvider, logger zerolog.Logger) (*App, error) {
	targets, err := cfg.Sampler.Targets(repo)
	if err != nil {
		return nil, err
	}

	registry := resilience.NewRegistry()
	if provider == nil {
		if cfg.Upstream.BaseURL == "" {
			return nil, errors.New("UPSTREAM_BASE_URL is required")
		}
		provider = NewUpstreamClient(cfg, registry, logger)
	}

	metrics, err := transit.NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("creating transit metrics: %w", err)
	}

	cache, closeCache := NewCache(cfg, logger)

	sampler := transit.NewSampler(transit.SamplerConfig{
		Provider:       provider,
		Targets:        targets,
		MaxConcurrency: cfg.Sampler.Concurrency,
		Metrics:        metrics,
		Logger:         logger,
	})
	synthesizer := transit.NewSynthesizer(transit.SynthesizerConfig{
		Topology:       repo,
		MaxETA:         cfg.Engine.MaxETAMinutes,
		SegmentMinutes: cfg.Engine.SegmentMinutes,
		Logger:         logger,
	})

	logger.Info().
		Str("mode", cfg.Sampler.Mode).
		Int("targets", len(targets)).
		Int("stations", len(sampler.StationCodes())).
		Str("cache", cfg.Cache.Backend).
		Msg("snapshot pipeline ready")

	return &App{
		Topology: repo,
		Service: transit.NewService(transit.ServiceConfig{
			Sampler:     sampler,
			Synthesizer: synthesizer,
			Cache:       cache,
			Metrics:     metrics,
			Logger:      logger,
		}),
		Registry:       registry,
		Targets:        targets,
		RefreshTimeout: RefreshTimeout(cfg, len(sampler.StationCodes())),
		closers:        []func() error{closeCache},
	}, nil
}
