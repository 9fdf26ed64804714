package transit

import (
	"github.com/rs/zerolog"

	"github.com/linewatch/linewatch/internal/geo"
	"github.com/linewatch/linewatch/internal/topology"
)

// SynthesizerConfig holds configuration for the position synthesizer.
type SynthesizerConfig struct {
	Topology *topology.Repository

	// MaxETA is the tracking horizon in minutes (default 10). An ETA equal
	// to it is kept.
	MaxETA float64

	// SegmentMinutes is the assumed travel time between adjacent stations
	// (default 3).
	SegmentMinutes float64

	Logger zerolog.Logger
}

// Synthesizer estimates where a vehicle is from an arrival observation.
type Synthesizer struct {
	topology       *topology.Repository
	maxETA         float64
	segmentMinutes float64
	logger         zerolog.Logger
}

// NewSynthesizer creates a synthesizer.
func NewSynthesizer(cfg SynthesizerConfig) *Synthesizer {
	maxETA := cfg.MaxETA
	if maxETA <= 0 {
		maxETA = DefaultMaxETA
	}
	segment := cfg.SegmentMinutes
	if segment <= 0 {
		segment = DefaultSegmentMinutes
	}

	return &Synthesizer{
		topology:       cfg.Topology,
		maxETA:         maxETA,
		segmentMinutes: segment,
		logger:         cfg.Logger,
	}
}

// Relevant reports whether the observation describes a trackable vehicle:
// an ETA is present, not negative and within the horizon.
func (s *Synthesizer) Relevant(o Observation) bool {
	if o.ETAMinutes == nil {
		return false
	}
	eta := *o.ETAMinutes
	return eta >= 0 && eta <= s.maxETA
}

// Synthesize converts the relevant observations into positions. Observations
// that do not resolve against the topology are skipped.
func (s *Synthesizer) Synthesize(observations []Observation) []VehiclePosition {
	positions := make([]VehiclePosition, 0, len(observations))
	for i := range observations {
		if !s.Relevant(observations[i]) {
			continue
		}
		if p, ok := s.Position(observations[i]); ok {
			positions = append(positions, p)
		}
	}
	return positions
}

// Position estimates the vehicle position for one observation. It does not
// apply the horizon filter; a missing ETA is treated as zero.
func (s *Synthesizer) Position(o Observation) (VehiclePosition, bool) {
	line, ok := s.topology.GetLine(o.LineID)
	if !ok {
		s.logger.Debug().Str("line", o.LineID).Msg("observation for unknown line")
		return VehiclePosition{}, false
	}

	stationIdx, ok := line.StationIndex(o.StationCode)
	if !ok {
		s.logger.Debug().
			Str("line", o.LineID).
			Str("station", o.StationCode).
			Msg("observation for unknown station")
		return VehiclePosition{}, false
	}

	next := &line.Stations[stationIdx]
	prev := &line.Stations[previousIndex(line, stationIdx, o.Destination)]

	var eta float64
	if o.ETAMinutes != nil {
		eta = *o.ETAMinutes
	}

	progress := 1.0
	coord := next.Coordinate
	if eta > 0 {
		progress = geo.Clamp(1-eta/s.segmentMinutes, 0, 1)
		coord = geo.Lerp(prev.Coordinate, next.Coordinate, progress)
	}

	pos := VehiclePosition{
		LineID:          line.ID,
		VehicleKey:      VehicleKey(line.ID, o.Destination, o.Platform, next.Code),
		Destination:     o.Destination,
		NextStationCode: next.Code,
		Progress:        progress,
		ETAMinutes:      eta,
		Coordinate:      coord,
		Platform:        o.Platform,
		Wagons:          o.Wagons,
	}
	if prev != next {
		code := prev.Code
		bearing := geo.Bearing(prev.Coordinate, next.Coordinate)
		pos.PreviousStationCode = &code
		pos.Bearing = &bearing
	}
	return pos, true
}

// previousIndex infers the station the vehicle is coming from. It returns
// stationIdx itself when the direction is unknown or the vehicle is at the
// terminal it is heading away from.
func previousIndex(line *topology.Line, stationIdx int, destination string) int {
	destIdx, ok := line.MatchDestination(destination)
	if !ok {
		return stationIdx
	}

	switch {
	case destIdx > stationIdx && stationIdx > 0:
		return stationIdx - 1
	case destIdx < stationIdx && stationIdx < line.LastIndex():
		return stationIdx + 1
	default:
		return stationIdx
	}
}

// VehicleKey identifies a vehicle across sampling cycles: line, destination
// and the platform, or the next station when no platform is reported.
func VehicleKey(lineID, destination, platform, nextStationCode string) string {
	discriminator := platform
	if discriminator == "" {
		discriminator = nextStationCode
	}
	return lineID + "|" + destination + "|" + discriminator
}
