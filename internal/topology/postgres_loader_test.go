package topology_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linewatch/linewatch/internal/topology"
)

type fakeRows struct {
	rows [][]any
	pos  int
	err  error
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Values() ([]any, error) {
	return r.rows[r.pos-1], nil
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.pos-1]
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = row[i].(string)
		case *float64:
			*p = row[i].(float64)
		default:
			return errors.New("unsupported scan target")
		}
	}
	return nil
}

type fakeQuerier struct {
	rows *fakeRows
	err  error
}

func (q *fakeQuerier) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
	if q.err != nil {
		return nil, q.err
	}
	return q.rows, nil
}

func TestLoadPostgres(t *testing.T) {
	q := &fakeQuerier{rows: &fakeRows{rows: [][]any{
		{"L1", "Line 1", "#f00", "A", "Alpha", 0.0, 0.0},
		{"L1", "Line 1", "#f00", "B", "Bravo", 0.0, 1.0},
		{"L1", "Line 1", "#f00", "C", "Charlie", 0.0, 2.0},
		{"L2", "Line 2", "#ff0", "B", "Bravo", 0.0, 1.0},
		{"L2", "Line 2", "#ff0", "D", "Delta", 1.0, 1.0},
	}}}

	repo, err := topology.LoadPostgres(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, 2, repo.LineCount())
	l1, ok := repo.GetLine("L1")
	require.True(t, ok)
	require.Len(t, l1.Stations, 3)
	assert.Equal(t, "#f00", l1.Color)
	assert.Equal(t, []string{"A", "B", "C"}, []string{l1.Stations[0].Code, l1.Stations[1].Code, l1.Stations[2].Code})

	l2, ok := repo.GetLine("L2")
	require.True(t, ok)
	assert.Len(t, l2.Stations, 2)
}

func TestLoadPostgres_Errors(t *testing.T) {
	_, err := topology.LoadPostgres(context.Background(), &fakeQuerier{err: errors.New("connection refused")})
	assert.ErrorContains(t, err, "connection refused")

	_, err = topology.LoadPostgres(context.Background(), &fakeQuerier{rows: &fakeRows{err: errors.New("boom")}})
	assert.ErrorContains(t, err, "boom")

	_, err = topology.LoadPostgres(context.Background(), &fakeQuerier{rows: &fakeRows{}})
	assert.ErrorIs(t, err, topology.ErrInvalidTopology)
}
