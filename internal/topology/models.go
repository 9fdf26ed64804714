// Package topology holds the static rail network: ordered stations per line
// with their coordinates. It is loaded once at startup and read-only afterwards.
package topology

import (
	"errors"
	"strings"

	"github.com/linewatch/linewatch/internal/geo"
)

// Topology errors.
var (
	ErrInvalidTopology = errors.New("invalid topology")
	ErrLineNotFound    = errors.New("line not found")
	ErrStationNotFound = errors.New("station not found")
)

// Station is a stop on a line.
type Station struct {
	// Code is the stable identifier used by the arrivals provider.
	// Unique within a line, may repeat across lines at interchanges.
	Code string

	// Name is the display name. Destination labels are matched against it.
	Name string

	Coordinate geo.Coordinate
}

// Line is an ordered sequence of stations. Adjacent entries are physically
// adjacent stops.
type Line struct {
	ID    string
	Name  string
	Color string

	Stations []Station

	index map[string]int // station code -> position
}

// StationIndex returns the position of the station with the given code.
func (l *Line) StationIndex(code string) (int, bool) {
	i, ok := l.index[code]
	return i, ok
}

// Station returns the station with the given code.
func (l *Line) Station(code string) (*Station, bool) {
	i, ok := l.index[code]
	if !ok {
		return nil, false
	}
	return &l.Stations[i], true
}

// LastIndex returns the index of the terminal at the end of the sequence.
func (l *Line) LastIndex() int {
	return len(l.Stations) - 1
}

// MatchDestination returns the index of the first station, in line order,
// whose name contains the destination label or is contained in it.
// Matching is case-sensitive. An empty label never matches.
func (l *Line) MatchDestination(destination string) (int, bool) {
	if destination == "" {
		return 0, false
	}
	for i := range l.Stations {
		name := l.Stations[i].Name
		if name == "" {
			continue
		}
		if strings.Contains(destination, name) || strings.Contains(name, destination) {
			return i, true
		}
	}
	return 0, false
}

// Coordinates returns the station coordinates in line order.
func (l *Line) Coordinates() []geo.Coordinate {
	coords := make([]geo.Coordinate, len(l.Stations))
	for i := range l.Stations {
		coords[i] = l.Stations[i].Coordinate
	}
	return coords
}

// StationRef identifies a station on a specific line.
type StationRef struct {
	LineID      string
	StationCode string
}

func (r StationRef) String() string {
	return r.LineID + ":" + r.StationCode
}
