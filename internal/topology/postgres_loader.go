package topology

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/linewatch/linewatch/internal/geo"
)

// Querier is the subset of pgxpool.Pool used to load the topology.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const loadTopologyQuery = `
	SELECT l.id, l.name, l.color, s.code, s.name, s.lat, s.lon
	FROM lines l
	JOIN line_stations s ON s.line_id = l.id
	ORDER BY l.id, s.position`

// LoadPostgres reads the topology from the lines and line_stations tables.
func LoadPostgres(ctx context.Context, q Querier) (*Repository, error) {
	rows, err := q.Query(ctx, loadTopologyQuery)
	if err != nil {
		return nil, fmt.Errorf("querying topology: %w", err)
	}
	defer rows.Close()

	var lines []Line
	var current *Line

	for rows.Next() {
		var (
			lineID, lineName, color string
			code, name              string
			lat, lon                float64
		)
		if err := rows.Scan(&lineID, &lineName, &color, &code, &name, &lat, &lon); err != nil {
			return nil, fmt.Errorf("scanning topology row: %w", err)
		}

		if current == nil || current.ID != lineID {
			lines = append(lines, Line{ID: lineID, Name: lineName, Color: color})
			current = &lines[len(lines)-1]
		}
		current.Stations = append(current.Stations, Station{
			Code:       code,
			Name:       name,
			Coordinate: geo.Coordinate{Lat: lat, Lon: lon},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating topology rows: %w", err)
	}

	return NewRepository(lines)
}
