package transit

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/linewatch/linewatch/internal/transit"

// Metrics holds the engine's instruments. A nil *Metrics records nothing.
type Metrics struct {
	stationDuration metric.Float64Histogram
	stationFailures metric.Int64Counter
	vehicles        metric.Int64Histogram
	cacheHits       metric.Int64Counter
	cacheMisses     metric.Int64Counter
}

// NewMetrics creates the instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	stationDuration, err := meter.Float64Histogram(
		"transit.sampler.station.duration",
		metric.WithDescription("Duration of one station arrivals query in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	stationFailures, err := meter.Int64Counter(
		"transit.sampler.station.failures",
		metric.WithDescription("Station arrivals queries that failed"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		return nil, err
	}

	vehicles, err := meter.Int64Histogram(
		"transit.snapshot.vehicles",
		metric.WithDescription("Vehicles in each computed snapshot"),
		metric.WithUnit("{vehicle}"),
	)
	if err != nil {
		return nil, err
	}

	cacheHits, err := meter.Int64Counter(
		"transit.cache.hit",
		metric.WithDescription("Snapshot requests served from cache"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	cacheMisses, err := meter.Int64Counter(
		"transit.cache.miss",
		metric.WithDescription("Snapshot requests that recomputed"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		stationDuration: stationDuration,
		stationFailures: stationFailures,
		vehicles:        vehicles,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
	}, nil
}

func (m *Metrics) recordStation(ctx context.Context, code string, d time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("station", code))
	m.stationDuration.Record(ctx, d.Seconds(), attrs)
	if err != nil {
		m.stationFailures.Add(ctx, 1, attrs)
	}
}

func (m *Metrics) recordSnapshot(ctx context.Context, vehicles int) {
	if m == nil {
		return
	}
	m.vehicles.Record(ctx, int64(vehicles))
}

func (m *Metrics) recordCache(ctx context.Context, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Add(ctx, 1)
		return
	}
	m.cacheMisses.Add(ctx, 1)
}
