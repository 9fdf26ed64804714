package topology

import (
	"fmt"
	"sort"
	"strings"
)

// Repository is the immutable, process-wide view of the network.
// All methods are safe for concurrent use.
type Repository struct {
	lines map[string]*Line
	order []string
}

// NewRepository validates the lines and builds the per-line station indexes.
func NewRepository(lines []Line) (*Repository, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: no lines", ErrInvalidTopology)
	}

	r := &Repository{
		lines: make(map[string]*Line, len(lines)),
		order: make([]string, 0, len(lines)),
	}

	for i := range lines {
		line := lines[i]
		if err := validateLine(&line); err != nil {
			return nil, err
		}
		if _, dup := r.lines[line.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate line %q", ErrInvalidTopology, line.ID)
		}

		stations := make([]Station, len(line.Stations))
		copy(stations, line.Stations)
		line.Stations = stations
		line.index = make(map[string]int, len(stations))
		for idx := range stations {
			line.index[stations[idx].Code] = idx
		}

		r.lines[line.ID] = &line
		r.order = append(r.order, line.ID)
	}

	sort.Strings(r.order)
	return r, nil
}

func validateLine(line *Line) error {
	if strings.TrimSpace(line.ID) == "" {
		return fmt.Errorf("%w: line without id", ErrInvalidTopology)
	}
	if len(line.Stations) == 0 {
		return fmt.Errorf("%w: line %s has no stations", ErrInvalidTopology, line.ID)
	}

	seen := make(map[string]struct{}, len(line.Stations))
	for _, s := range line.Stations {
		if s.Code == "" {
			return fmt.Errorf("%w: line %s has a station without code", ErrInvalidTopology, line.ID)
		}
		if _, dup := seen[s.Code]; dup {
			return fmt.Errorf("%w: line %s repeats station %s", ErrInvalidTopology, line.ID, s.Code)
		}
		if !s.Coordinate.Valid() {
			return fmt.Errorf("%w: station %s on line %s has coordinate out of range", ErrInvalidTopology, s.Code, line.ID)
		}
		seen[s.Code] = struct{}{}
	}
	return nil
}

// GetLine returns the line with the given id.
func (r *Repository) GetLine(lineID string) (*Line, bool) {
	l, ok := r.lines[lineID]
	return l, ok
}

// GetStation returns a station of a line by code.
func (r *Repository) GetStation(lineID, code string) (*Station, bool) {
	l, ok := r.lines[lineID]
	if !ok {
		return nil, false
	}
	return l.Station(code)
}

// AllLines returns every line ordered by id.
func (r *Repository) AllLines() []*Line {
	lines := make([]*Line, 0, len(r.order))
	for _, id := range r.order {
		lines = append(lines, r.lines[id])
	}
	return lines
}

// LineCount returns the number of lines.
func (r *Repository) LineCount() int {
	return len(r.lines)
}

// StationCount returns the number of (line, station) pairs.
func (r *Repository) StationCount() int {
	n := 0
	for _, l := range r.lines {
		n += len(l.Stations)
	}
	return n
}

// LinesServing returns the ids of the lines that stop at the station code.
func (r *Repository) LinesServing(code string) []string {
	var ids []string
	for _, id := range r.order {
		if _, ok := r.lines[id].index[code]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// Resolve checks that every reference points at a known station.
func (r *Repository) Resolve(refs []StationRef) error {
	for _, ref := range refs {
		if _, ok := r.GetLine(ref.LineID); !ok {
			return fmt.Errorf("%w: %s", ErrLineNotFound, ref.LineID)
		}
		if _, ok := r.GetStation(ref.LineID, ref.StationCode); !ok {
			return fmt.Errorf("%w: %s", ErrStationNotFound, ref)
		}
	}
	return nil
}
