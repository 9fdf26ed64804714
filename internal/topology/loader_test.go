package topology_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linewatch/linewatch/internal/topology"
)

const sampleTopology = `
L1:
  name: Line 1
  color: "#E1251B"
  stations:
    - {code: A, name: Alpha, lat: 0, lon: 0}
    - {code: B, name: Bravo, lat: 0, lon: 1}
    - {code: C, name: Charlie, lat: 0, lon: 2}
L2:
  id: L2
  name: Line 2
  stations:
    - {code: B, name: Bravo, lat: 0, lon: 1}
    - {code: D, name: Delta, lat: 1, lon: 1}
`

func TestParse(t *testing.T) {
	repo, err := topology.Parse([]byte(sampleTopology))
	require.NoError(t, err)

	assert.Equal(t, 2, repo.LineCount())

	line, ok := repo.GetLine("L1")
	require.True(t, ok)
	assert.Equal(t, "Line 1", line.Name)
	assert.Equal(t, "#E1251B", line.Color)
	require.Len(t, line.Stations, 3)
	assert.Equal(t, "C", line.Stations[2].Code)
	assert.InDelta(t, 2.0, line.Stations[2].Coordinate.Lon, 1e-9)
}

func TestParse_JSON(t *testing.T) {
	repo, err := topology.Parse([]byte(`{"L1":{"stations":[{"code":"A","name":"Alpha","lat":1,"lon":2}]}}`))
	require.NoError(t, err)

	st, ok := repo.GetStation("L1", "A")
	require.True(t, ok)
	assert.InDelta(t, 1.0, st.Coordinate.Lat, 1e-9)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "malformed", doc: "L1: ["},
		{name: "id mismatch", doc: "L1:\n  id: L2\n  stations:\n    - {code: A, lat: 0, lon: 0}\n"},
		{name: "empty", doc: ""},
		{name: "bad latitude", doc: "L1:\n  stations:\n    - {code: A, lat: 120, lon: 0}\n"},
		{name: "missing latitude", doc: "L1:\n  stations:\n    - {code: A, lon: 0}\n"},
		{name: "missing longitude", doc: "L1:\n  stations:\n    - {code: A, lat: 0}\n"},
		{name: "null coordinates", doc: `{"L1":{"stations":[{"code":"A","lat":null,"lon":null}]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := topology.Parse([]byte(tt.doc))
			assert.ErrorIs(t, err, topology.ErrInvalidTopology)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "topology.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleTopology), 0o600))

	repo, err := topology.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 5, repo.StationCount())

	_, err = topology.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadFile_Bundled(t *testing.T) {
	repo, err := topology.LoadFile("../../data/topology.yaml")
	require.NoError(t, err)

	assert.Equal(t, []string{"L1", "L2"}, repo.LinesServing("LH"))
}
