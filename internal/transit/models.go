// Package transit turns per-station arrival samples into estimated vehicle
// positions along the rail topology.
package transit

import (
	"context"
	"errors"
	"time"

	"github.com/linewatch/linewatch/internal/geo"
)

// Transit errors.
var (
	ErrProviderUnavailable = errors.New("arrivals provider unavailable")
	ErrUpstreamStatus      = errors.New("unexpected upstream status")
)

// Defaults for the synthesis parameters.
const (
	// DefaultMaxETA is the tracking horizon in minutes. Arrivals farther out
	// are not considered active vehicles.
	DefaultMaxETA = 10.0

	// DefaultSegmentMinutes is the assumed travel time between adjacent
	// stations. It is a uniform approximation, not a measured duration.
	DefaultSegmentMinutes = 3.0

	// DefaultCacheTTL is how long a computed snapshot is served.
	DefaultCacheTTL = 20 * time.Second
)

// Arrival is one record returned by the provider for a station.
type Arrival struct {
	// LineID is empty when the provider omits it.
	LineID string

	// Destination is the free text direction label.
	Destination string

	// ETAMinutes is nil when the provider did not send an estimate.
	ETAMinutes *float64

	Platform     string
	Wagons       *int
	TripDuration *float64
}

// ArrivalsProvider returns the upcoming arrivals at a station.
type ArrivalsProvider interface {
	Arrivals(ctx context.Context, stationCode string) ([]Arrival, error)

	// Name returns the provider name for logging.
	Name() string
}

// Observation is an arrival scoped to the station it was sampled at.
// StationCode is the station the vehicle is approaching.
type Observation struct {
	StationCode  string
	LineID       string
	Destination  string
	ETAMinutes   *float64
	Platform     string
	Wagons       *int
	TripDuration *float64
	SampledAt    time.Time
}

// VehiclePosition is the estimated position of one in-service vehicle.
type VehiclePosition struct {
	LineID      string `json:"lineId"`
	VehicleKey  string `json:"vehicleKey"`
	Destination string `json:"destination"`

	// PreviousStationCode is nil when direction could not be inferred or the
	// vehicle is approaching a terminal.
	PreviousStationCode *string `json:"previousStationCode,omitempty"`
	NextStationCode     string  `json:"nextStationCode"`

	// Progress is the fraction of the segment from previous to next covered.
	Progress   float64        `json:"progress"`
	ETAMinutes float64        `json:"etaMinutes"`
	Coordinate geo.Coordinate `json:"coordinate"`

	// Bearing is the direction of travel in degrees, nil when the previous
	// station is unknown.
	Bearing *float64 `json:"bearing,omitempty"`

	Platform string `json:"platform,omitempty"`
	Wagons   *int   `json:"wagons,omitempty"`
}

// Snapshot is the cached unit: the whole deduplicated vehicle list.
type Snapshot struct {
	Vehicles   []VehiclePosition `json:"vehicles"`
	ComputedAt time.Time         `json:"computedAt"`
}

// Filter returns the vehicles of one line. An empty line id returns all.
func (s *Snapshot) Filter(lineID string) []VehiclePosition {
	if lineID == "" {
		return s.Vehicles
	}
	out := make([]VehiclePosition, 0)
	for i := range s.Vehicles {
		if s.Vehicles[i].LineID == lineID {
			out = append(out, s.Vehicles[i])
		}
	}
	return out
}

// Result is a snapshot together with where it came from.
type Result struct {
	Snapshot *Snapshot
	Cached   bool
}
