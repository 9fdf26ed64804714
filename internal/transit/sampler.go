package transit

import (
	"context"
	"slices"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"github.com/linewatch/linewatch/internal/topology"
)

// DefaultSamplerConcurrency bounds the parallel upstream queries.
const DefaultSamplerConcurrency = 16

// SamplerConfig holds configuration for the arrival sampler.
type SamplerConfig struct {
	Provider ArrivalsProvider

	// Targets are the (line, station) pairs to sample. Stations shared by
	// several targets are queried once.
	Targets []topology.StationRef

	// MaxConcurrency bounds in-flight queries (default 16).
	MaxConcurrency int

	Metrics *Metrics
	Logger  zerolog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Sampler queries the provider once per distinct station code and flattens
// the results into observations.
type Sampler struct {
	provider       ArrivalsProvider
	codes          []string
	linesByCode    map[string][]string
	maxConcurrency int
	metrics        *Metrics
	logger         zerolog.Logger
	now            func() time.Time
}

// NewSampler creates a sampler for the given targets.
func NewSampler(cfg SamplerConfig) *Sampler {
	maxConcurrency := cfg.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultSamplerConcurrency
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	linesByCode := make(map[string][]string)
	for _, ref := range cfg.Targets {
		lines := linesByCode[ref.StationCode]
		if !slices.Contains(lines, ref.LineID) {
			linesByCode[ref.StationCode] = append(lines, ref.LineID)
		}
	}
	codes := make([]string, 0, len(linesByCode))
	for code := range linesByCode {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	return &Sampler{
		provider:       cfg.Provider,
		codes:          codes,
		linesByCode:    linesByCode,
		maxConcurrency: maxConcurrency,
		metrics:        cfg.Metrics,
		logger:         cfg.Logger,
		now:            now,
	}
}

// StationCodes returns the distinct codes queried per cycle.
func (s *Sampler) StationCodes() []string {
	return s.codes
}

// Sample queries every station concurrently and waits for all of them.
// A failing station is logged and contributes nothing; Sample never fails.
func (s *Sampler) Sample(ctx context.Context) []Observation {
	p := pool.NewWithResults[[]Observation]().WithMaxGoroutines(s.maxConcurrency)

	for _, code := range s.codes {
		p.Go(func() []Observation {
			return s.sampleStation(ctx, code)
		})
	}

	var observations []Observation
	for _, batch := range p.Wait() {
		observations = append(observations, batch...)
	}
	return observations
}

func (s *Sampler) sampleStation(ctx context.Context, code string) []Observation {
	start := time.Now()
	arrivals, err := s.provider.Arrivals(ctx, code)
	s.metrics.recordStation(ctx, code, time.Since(start), err)

	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("provider", s.provider.Name()).
			Str("station", code).
			Msg("station query failed")
		return nil
	}

	sampledAt := s.now()
	lines := s.linesByCode[code]

	observations := make([]Observation, 0, len(arrivals))
	for _, a := range arrivals {
		lineID := a.LineID
		if lineID == "" {
			if len(lines) != 1 {
				s.logger.Debug().
					Str("station", code).
					Strs("lines", lines).
					Msg("dropping arrival without line at shared station")
				continue
			}
			lineID = lines[0]
		}

		observations = append(observations, Observation{
			StationCode:  code,
			LineID:       lineID,
			Destination:  a.Destination,
			ETAMinutes:   a.ETAMinutes,
			Platform:     a.Platform,
			Wagons:       a.Wagons,
			TripDuration: a.TripDuration,
			SampledAt:    sampledAt,
		})
	}
	return observations
}
