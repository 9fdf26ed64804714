// Package config reads the process configuration from the environment.
// A .env file in the working directory is loaded first when present.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/linewatch/linewatch/internal/database"
	"github.com/linewatch/linewatch/internal/topology"
	"github.com/linewatch/linewatch/internal/transit"
)

// Topology sources.
const (
	TopologySourceFile     = "file"
	TopologySourcePostgres = "postgres"
)

// Sampler modes.
const (
	SamplerModeStrategic  = "strategic"
	SamplerModeExhaustive = "exhaustive"
)

// Cache backends.
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// Config is the full process configuration.
type Config struct {
	Port     string
	Env      string
	LogLevel zerolog.Level

	Topology  TopologyConfig
	Upstream  UpstreamConfig
	Sampler   SamplerConfig
	Engine    EngineConfig
	Cache     CacheConfig
	Telemetry TelemetryConfig
	Database  database.Config
	PubSub    PubSubConfig

	CORSAllowedOrigins []string
	RequireTLS         bool
	WorkerInterval     time.Duration
}

// TopologyConfig selects where the network is loaded from.
type TopologyConfig struct {
	Source string
	File   string
}

// UpstreamConfig configures the arrivals API client.
type UpstreamConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries uint64
}

// SamplerConfig selects which stations are queried each cycle.
type SamplerConfig struct {
	Mode        string
	Stride      int
	Stations    []topology.StationRef
	Concurrency int
}

// EngineConfig holds the synthesis parameters.
type EngineConfig struct {
	MaxETAMinutes  float64
	SegmentMinutes float64
}

// CacheConfig selects and configures the snapshot cache.
type CacheConfig struct {
	Backend       string
	TTL           time.Duration
	RedisAddress  string
	RedisPassword string
	RedisDB       int
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled     bool
	Endpoint    string
	SampleRatio float64
}

// PubSubConfig configures the worker's trigger subscription.
type PubSubConfig struct {
	ProjectID    string
	Subscription string
}

// Load reads .env (if present) and then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from environment variables and validates it.
func FromEnv() (*Config, error) {
	p := &parser{}

	retries := p.int("UPSTREAM_MAX_RETRIES", 1)
	if retries < 0 {
		p.fail("UPSTREAM_MAX_RETRIES", strconv.Itoa(retries), errors.New("must not be negative"))
		retries = 0
	}

	cfg := &Config{
		Port:     getEnvOrDefault("APP_PORT", "8080"),
		Env:      getEnvOrDefault("APP_ENV", "development"),
		LogLevel: p.level("LOG_LEVEL", zerolog.InfoLevel),

		Topology: TopologyConfig{
			Source: getEnvOrDefault("TOPOLOGY_SOURCE", TopologySourceFile),
			File:   getEnvOrDefault("TOPOLOGY_FILE", "data/topology.yaml"),
		},
		Upstream: UpstreamConfig{
			BaseURL:    os.Getenv("UPSTREAM_BASE_URL"),
			APIKey:     os.Getenv("UPSTREAM_API_KEY"),
			Timeout:    p.duration("UPSTREAM_TIMEOUT", 4*time.Second),
			MaxRetries: uint64(retries),
		},
		Sampler: SamplerConfig{
			Mode:        getEnvOrDefault("SAMPLER_MODE", SamplerModeStrategic),
			Stride:      p.int("SAMPLER_STRIDE", 3),
			Stations:    p.stationRefs("SAMPLER_STATIONS"),
			Concurrency: p.int("SAMPLER_CONCURRENCY", transit.DefaultSamplerConcurrency),
		},
		Engine: EngineConfig{
			MaxETAMinutes:  p.float("MAX_ETA_MINUTES", transit.DefaultMaxETA),
			SegmentMinutes: p.float("SEGMENT_MINUTES", transit.DefaultSegmentMinutes),
		},
		Cache: CacheConfig{
			Backend:       getEnvOrDefault("CACHE_BACKEND", CacheBackendMemory),
			TTL:           p.duration("CACHE_TTL", transit.DefaultCacheTTL),
			RedisAddress:  getEnvOrDefault("REDIS_ADDRESS", "localhost:6379"),
			RedisPassword: os.Getenv("REDIS_PASSWORD"),
			RedisDB:       p.int("REDIS_DB", 0),
		},
		Telemetry: TelemetryConfig{
			Enabled:     p.bool("OTEL_ENABLED", false),
			Endpoint:    getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			SampleRatio: p.float("OTEL_SAMPLE_RATIO", 1),
		},
		Database: databaseFromEnv(p),
		PubSub: PubSubConfig{
			ProjectID:    os.Getenv("PUBSUB_PROJECT_ID"),
			Subscription: getEnvOrDefault("PUBSUB_SUBSCRIPTION", "linewatch-refresh"),
		},

		CORSAllowedOrigins: splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*")),
		RequireTLS:         p.bool("REQUIRE_TLS", false),
		WorkerInterval:     p.duration("WORKER_INTERVAL", 15*time.Second),
	}

	if p.err != nil {
		return nil, p.err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func databaseFromEnv(p *parser) database.Config {
	d := database.DefaultConfig()
	return database.Config{
		URL:             os.Getenv("DATABASE_URL"),
		Host:            getEnvOrDefault("DB_HOST", d.Host),
		Port:            p.int("DB_PORT", d.Port),
		User:            getEnvOrDefault("DB_USER", d.User),
		Password:        getEnvOrDefault("DB_PASSWORD", d.Password),
		Database:        getEnvOrDefault("DB_NAME", d.Database),
		SSLMode:         getEnvOrDefault("DB_SSL_MODE", d.SSLMode),
		MaxOpenConns:    p.int("DB_MAX_OPEN_CONNS", d.MaxOpenConns),
		MaxIdleConns:    p.int("DB_MAX_IDLE_CONNS", d.MaxIdleConns),
		ConnMaxLifetime: p.duration("DB_CONN_MAX_LIFETIME", d.ConnMaxLifetime),
	}
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	var errs []error

	switch c.Topology.Source {
	case TopologySourceFile:
		if c.Topology.File == "" {
			errs = append(errs, errors.New("TOPOLOGY_FILE is required for the file source"))
		}
	case TopologySourcePostgres:
	default:
		errs = append(errs, fmt.Errorf("TOPOLOGY_SOURCE: unknown source %q", c.Topology.Source))
	}

	switch c.Sampler.Mode {
	case SamplerModeStrategic, SamplerModeExhaustive:
	default:
		errs = append(errs, fmt.Errorf("SAMPLER_MODE: unknown mode %q", c.Sampler.Mode))
	}
	if c.Sampler.Stride < 1 {
		errs = append(errs, errors.New("SAMPLER_STRIDE must be at least 1"))
	}
	if c.Sampler.Concurrency < 1 {
		errs = append(errs, errors.New("SAMPLER_CONCURRENCY must be at least 1"))
	}

	if c.Engine.MaxETAMinutes <= 0 {
		errs = append(errs, errors.New("MAX_ETA_MINUTES must be positive"))
	}
	if c.Engine.SegmentMinutes <= 0 {
		errs = append(errs, errors.New("SEGMENT_MINUTES must be positive"))
	}

	switch c.Cache.Backend {
	case CacheBackendMemory, CacheBackendRedis:
	default:
		errs = append(errs, fmt.Errorf("CACHE_BACKEND: unknown backend %q", c.Cache.Backend))
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, errors.New("CACHE_TTL must be positive"))
	}
	if c.Upstream.Timeout <= 0 {
		errs = append(errs, errors.New("UPSTREAM_TIMEOUT must be positive"))
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		errs = append(errs, errors.New("OTEL_SAMPLE_RATIO must be within [0, 1]"))
	}
	if c.WorkerInterval <= 0 {
		errs = append(errs, errors.New("WORKER_INTERVAL must be positive"))
	}

	return errors.Join(errs...)
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Targets returns the stations to sample: the explicit SAMPLER_STATIONS list
// when given, otherwise every station or the computed strategic subset.
func (c SamplerConfig) Targets(repo *topology.Repository) ([]topology.StationRef, error) {
	if len(c.Stations) > 0 {
		if err := repo.Resolve(c.Stations); err != nil {
			return nil, fmt.Errorf("SAMPLER_STATIONS: %w", err)
		}
		return c.Stations, nil
	}
	if c.Mode == SamplerModeExhaustive {
		return repo.Exhaustive(), nil
	}
	return repo.Strategic(c.Stride), nil
}

// Logger builds the root logger with the service name and version.
func (c *Config) Logger(service, version string) zerolog.Logger {
	return zerolog.New(os.Stdout).
		Level(c.LogLevel).
		With().
		Timestamp().
		Str("service", service).
		Str("version", version).
		Logger()
}

// parser collects the first parse error so FromEnv can report it once.
type parser struct {
	err error
}

func (p *parser) fail(key, value string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("%s: invalid value %q: %w", key, value, err)
	}
}

func (p *parser) int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return n
}

func (p *parser) float(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return f
}

func (p *parser) bool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return b
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return d
}

func (p *parser) level(key string, def zerolog.Level) zerolog.Level {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	l, err := zerolog.ParseLevel(strings.ToLower(v))
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return l
}

func (p *parser) stationRefs(key string) []topology.StationRef {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	refs, err := topology.ParseStationRefs(v)
	if err != nil {
		p.fail(key, v, err)
		return nil
	}
	return refs
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
