package transit_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/require"

	"github.com/linewatch/linewatch/internal/geo"
	"github.com/linewatch/linewatch/internal/provider/resilience"
	"github.com/linewatch/linewatch/internal/topology"
	"github.com/linewatch/linewatch/internal/transit"
	"github.com/linewatch/linewatch/internal/transit/upstream"
)

func eta(v float64) *float64 { return &v }

// abcTopology is L1 A(0,0) B(0,1) C(0,2) plus L2 sharing station B.
func abcTopology(t *testing.T) *topology.Repository {
	t.Helper()
	repo, err := topology.NewRepository([]topology.Line{
		{
			ID: "L1",
			Stations: []topology.Station{
				{Code: "A", Name: "A", Coordinate: geo.Coordinate{Lat: 0, Lon: 0}},
				{Code: "B", Name: "B", Coordinate: geo.Coordinate{Lat: 0, Lon: 1}},
				{Code: "C", Name: "C", Coordinate: geo.Coordinate{Lat: 0, Lon: 2}},
			},
		},
		{
			ID: "L2",
			Stations: []topology.Station{
				{Code: "B", Name: "B", Coordinate: geo.Coordinate{Lat: 0, Lon: 1}},
				{Code: "D", Name: "D", Coordinate: geo.Coordinate{Lat: 1, Lon: 1}},
			},
		},
	})
	require.NoError(t, err)
	return repo
}

// stubProvider returns canned arrivals per station code.
type stubProvider struct {
	mu       sync.Mutex
	arrivals map[string][]transit.Arrival
	failing  map[string]bool
	calls    map[string]int
}

func newStubProvider() *stubProvider {
	return &stubProvider{
		arrivals: make(map[string][]transit.Arrival),
		failing:  make(map[string]bool),
		calls:    make(map[string]int),
	}
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Arrivals(_ context.Context, code string) ([]transit.Arrival, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[code]++
	if p.failing[code] {
		return nil, errors.New("upstream timeout")
	}
	return p.arrivals[code], nil
}

func (p *stubProvider) totalCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		n += c
	}
	return n
}

// newArrivalsClient returns the real arrivals client against baseURL with
// one retry and short backoff. The breaker opens on the second consecutive
// failure so tests reach it in a few cycles.
func newArrivalsClient(baseURL string, registry *resilience.Registry) (*upstream.Client, *resilience.Client) {
	cb := resilience.DefaultCircuitBreakerConfig(upstream.ProviderName)
	cb.ReadyToTrip = func(counts gobreaker.Counts) bool { return counts.ConsecutiveFailures >= 2 }

	rc := resilience.DefaultClientConfig(upstream.ProviderName)
	rc.Timeout = 5 * time.Second
	rc.InitialInterval = time.Millisecond
	rc.MaxInterval = 5 * time.Millisecond
	rc.CircuitBreaker = &cb
	rc.Registry = registry
	rc.BreakerKey = resilience.KeyByPath
	httpClient := resilience.NewClient(rc)

	return upstream.NewClient(upstream.ClientConfig{
		BaseURL:    baseURL,
		HTTPClient: httpClient,
		Logger:     zerolog.Nop(),
	}), httpClient
}
