package topology

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/linewatch/linewatch/internal/geo"
)

// Topology file shape. YAML is a superset of JSON so the same decoder
// reads both.
//
//	L1:
//	  name: Linea 1
//	  color: "#E1251B"
//	  stations:
//	    - {code: SP, name: San Pablo, lat: -33.4447, lon: -70.7236}
type lineDoc struct {
	ID       string       `yaml:"id"`
	Name     string       `yaml:"name"`
	Color    string       `yaml:"color"`
	Stations []stationDoc `yaml:"stations"`
}

// Coordinates are pointers so a missing lat or lon is told apart from 0.
type stationDoc struct {
	Code string   `yaml:"code"`
	Name string   `yaml:"name"`
	Lat  *float64 `yaml:"lat"`
	Lon  *float64 `yaml:"lon"`
}

// LoadFile reads a topology file from disk.
func LoadFile(path string) (*Repository, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading topology file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a topology document.
func Parse(data []byte) (*Repository, error) {
	var docs map[string]lineDoc
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTopology, err)
	}

	lines := make([]Line, 0, len(docs))
	for key, doc := range docs {
		id := doc.ID
		if id == "" {
			id = key
		}
		if id != key {
			return nil, fmt.Errorf("%w: line key %q does not match id %q", ErrInvalidTopology, key, id)
		}

		line := Line{
			ID:       id,
			Name:     doc.Name,
			Color:    doc.Color,
			Stations: make([]Station, 0, len(doc.Stations)),
		}
		for _, s := range doc.Stations {
			if s.Lat == nil || s.Lon == nil {
				return nil, fmt.Errorf("%w: station %q on line %q has no coordinates", ErrInvalidTopology, s.Code, id)
			}
			line.Stations = append(line.Stations, Station{
				Code:       s.Code,
				Name:       s.Name,
				Coordinate: geo.Coordinate{Lat: *s.Lat, Lon: *s.Lon},
			})
		}
		lines = append(lines, line)
	}

	return NewRepository(lines)
}
