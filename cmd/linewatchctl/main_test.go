package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTopology = `
L1:
  name: Line 1
  stations:
    - {code: A, name: Alpha, lat: 0, lon: 0}
    - {code: B, name: Bravo, lat: 0, lon: 1}
    - {code: C, name: Charlie, lat: 0, lon: 2}
    - {code: D, name: Delta, lat: 0, lon: 3}
    - {code: E, name: Echo, lat: 0, lon: 4}
`

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "topology.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testTopology), 0o600))

	var out, errOut bytes.Buffer
	a := newApp()
	a.Writer = &out
	a.ErrWriter = &errOut

	err := a.Run(append([]string{"linewatchctl", "--topology", path}, args...))
	return out.String(), err
}

func TestTopologyValidate(t *testing.T) {
	out, err := runCLI(t, "topology", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Alpha -> Echo")
	assert.Contains(t, out, "ok: 1 lines, 5 stations")
}

func TestTopologyTargets(t *testing.T) {
	out, err := runCLI(t, "topology", "targets", "--mode", "exhaustive")
	require.NoError(t, err)
	assert.Contains(t, out, "L1:C\tCharlie")
	assert.Contains(t, out, "5 targets")

	_, err = runCLI(t, "topology", "targets", "--mode", "random")
	assert.Error(t, err)
}

func TestSnapshot_RequiresUpstream(t *testing.T) {
	t.Setenv("UPSTREAM_BASE_URL", "")
	_, err := runCLI(t, "snapshot")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UPSTREAM_BASE_URL")
}
