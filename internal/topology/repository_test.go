package topology_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linewatch/linewatch/internal/geo"
	"github.com/linewatch/linewatch/internal/topology"
)

func testLines() []topology.Line {
	return []topology.Line{
		{
			ID:   "L2",
			Name: "Line 2",
			Stations: []topology.Station{
				{Code: "X", Name: "Xeno", Coordinate: geo.Coordinate{Lat: 1, Lon: 0}},
				{Code: "B", Name: "Bravo", Coordinate: geo.Coordinate{Lat: 0, Lon: 1}},
			},
		},
		{
			ID:   "L1",
			Name: "Line 1",
			Stations: []topology.Station{
				{Code: "A", Name: "Alpha", Coordinate: geo.Coordinate{Lat: 0, Lon: 0}},
				{Code: "B", Name: "Bravo", Coordinate: geo.Coordinate{Lat: 0, Lon: 1}},
				{Code: "C", Name: "Charlie", Coordinate: geo.Coordinate{Lat: 0, Lon: 2}},
			},
		},
	}
}

func TestNewRepository(t *testing.T) {
	repo, err := topology.NewRepository(testLines())
	require.NoError(t, err)

	assert.Equal(t, 2, repo.LineCount())
	assert.Equal(t, 5, repo.StationCount())

	lines := repo.AllLines()
	require.Len(t, lines, 2)
	assert.Equal(t, "L1", lines[0].ID)
	assert.Equal(t, "L2", lines[1].ID)

	line, ok := repo.GetLine("L1")
	require.True(t, ok)
	idx, ok := line.StationIndex("C")
	require.True(t, ok)
	assert.Equal(t, 2, idx)
	assert.Equal(t, 2, line.LastIndex())

	st, ok := repo.GetStation("L2", "X")
	require.True(t, ok)
	assert.Equal(t, "Xeno", st.Name)

	_, ok = repo.GetStation("L1", "X")
	assert.False(t, ok)
	_, ok = repo.GetStation("L9", "A")
	assert.False(t, ok)
	_, ok = repo.GetLine("L9")
	assert.False(t, ok)
}

func TestNewRepository_CopiesInput(t *testing.T) {
	lines := testLines()
	repo, err := topology.NewRepository(lines)
	require.NoError(t, err)

	lines[1].Stations[0].Name = "Mutated"

	st, ok := repo.GetStation("L1", "A")
	require.True(t, ok)
	assert.Equal(t, "Alpha", st.Name)
}

func TestNewRepository_Invalid(t *testing.T) {
	valid := geo.Coordinate{Lat: 0, Lon: 0}

	tests := []struct {
		name  string
		lines []topology.Line
	}{
		{
			name:  "no lines",
			lines: nil,
		},
		{
			name:  "empty line id",
			lines: []topology.Line{{ID: " ", Stations: []topology.Station{{Code: "A", Coordinate: valid}}}},
		},
		{
			name:  "no stations",
			lines: []topology.Line{{ID: "L1"}},
		},
		{
			name:  "station without code",
			lines: []topology.Line{{ID: "L1", Stations: []topology.Station{{Coordinate: valid}}}},
		},
		{
			name: "duplicate station",
			lines: []topology.Line{{ID: "L1", Stations: []topology.Station{
				{Code: "A", Coordinate: valid},
				{Code: "A", Coordinate: valid},
			}}},
		},
		{
			name:  "coordinate out of range",
			lines: []topology.Line{{ID: "L1", Stations: []topology.Station{{Code: "A", Coordinate: geo.Coordinate{Lat: 95}}}}},
		},
		{
			name: "duplicate line",
			lines: []topology.Line{
				{ID: "L1", Stations: []topology.Station{{Code: "A", Coordinate: valid}}},
				{ID: "L1", Stations: []topology.Station{{Code: "B", Coordinate: valid}}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := topology.NewRepository(tt.lines)
			require.Error(t, err)
			assert.ErrorIs(t, err, topology.ErrInvalidTopology)
		})
	}
}

func TestRepository_LinesServing(t *testing.T) {
	repo, err := topology.NewRepository(testLines())
	require.NoError(t, err)

	assert.Equal(t, []string{"L1", "L2"}, repo.LinesServing("B"))
	assert.Equal(t, []string{"L1"}, repo.LinesServing("A"))
	assert.Empty(t, repo.LinesServing("Z"))
}

func TestRepository_Resolve(t *testing.T) {
	repo, err := topology.NewRepository(testLines())
	require.NoError(t, err)

	require.NoError(t, repo.Resolve([]topology.StationRef{{LineID: "L1", StationCode: "A"}}))

	err = repo.Resolve([]topology.StationRef{{LineID: "L9", StationCode: "A"}})
	assert.ErrorIs(t, err, topology.ErrLineNotFound)

	err = repo.Resolve([]topology.StationRef{{LineID: "L1", StationCode: "X"}})
	assert.ErrorIs(t, err, topology.ErrStationNotFound)
}

func TestLine_MatchDestination(t *testing.T) {
	repo, err := topology.NewRepository(testLines())
	require.NoError(t, err)
	line, _ := repo.GetLine("L1")

	tests := []struct {
		name        string
		destination string
		wantIdx     int
		wantOK      bool
	}{
		{name: "exact name", destination: "Charlie", wantIdx: 2, wantOK: true},
		{name: "label contains name", destination: "to Alpha terminal", wantIdx: 0, wantOK: true},
		{name: "name contains label", destination: "ravo", wantIdx: 1, wantOK: true},
		{name: "case sensitive", destination: "charlie", wantOK: false},
		{name: "empty label", destination: "", wantOK: false},
		{name: "unknown", destination: "Nowhere", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, ok := line.MatchDestination(tt.destination)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantIdx, idx)
			}
		})
	}
}

func TestLine_MatchDestination_FirstInLineOrder(t *testing.T) {
	repo, err := topology.NewRepository([]topology.Line{{
		ID: "L1",
		Stations: []topology.Station{
			{Code: "P", Name: "Plaza", Coordinate: geo.Coordinate{}},
			{Code: "PN", Name: "Plaza Norte", Coordinate: geo.Coordinate{Lat: 1}},
		},
	}})
	require.NoError(t, err)
	line, _ := repo.GetLine("L1")

	idx, ok := line.MatchDestination("Plaza Norte")
	require.True(t, ok)
	assert.Equal(t, 0, idx)
}

func TestStrategic(t *testing.T) {
	stations := make([]topology.Station, 0, 8)
	for i, code := range []string{"S0", "S1", "S2", "S3", "S4", "S5", "S6", "S7"} {
		stations = append(stations, topology.Station{Code: code, Coordinate: geo.Coordinate{Lat: float64(i)}})
	}
	repo, err := topology.NewRepository([]topology.Line{{ID: "L1", Stations: stations}})
	require.NoError(t, err)

	refs := repo.Strategic(3)
	codes := make([]string, 0, len(refs))
	for _, r := range refs {
		assert.Equal(t, "L1", r.LineID)
		codes = append(codes, r.StationCode)
	}
	assert.Equal(t, []string{"S0", "S3", "S6", "S7"}, codes)

	assert.Len(t, repo.Strategic(1), 8)
	assert.Len(t, repo.Strategic(0), 8)
	assert.Len(t, repo.Exhaustive(), 8)
}

func TestParseStationRefs(t *testing.T) {
	refs, err := topology.ParseStationRefs(" L1:A, L2:B ,")
	require.NoError(t, err)
	assert.Equal(t, []topology.StationRef{
		{LineID: "L1", StationCode: "A"},
		{LineID: "L2", StationCode: "B"},
	}, refs)
	assert.Equal(t, "L1:A", refs[0].String())

	_, err = topology.ParseStationRefs("L1")
	assert.Error(t, err)
	_, err = topology.ParseStationRefs("L1:")
	assert.Error(t, err)
}
