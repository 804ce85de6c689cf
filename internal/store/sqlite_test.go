package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/poi-harvester/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_CreateAndGetRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "beijing", "charging-stations")
	require.NoError(t, err)
	require.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "beijing", got.Group)
	assert.Equal(t, "charging-stations", got.Task)
	assert.Equal(t, model.RunStatusRunning, got.Status)
	assert.Nil(t, got.Summary)
}

func TestSQLite_GetRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetRun(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrRunNotFound))
}

func TestSQLite_CompleteRun_SummaryRoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "beijing", "cafes")
	require.NoError(t, err)

	summary := &model.RunSummary{
		Items:         42,
		Duplicates:    7,
		Dropped:       1,
		TilesSearched: 19,
		TilesFailed:   2,
		Outputs:       map[string]string{"csv": "/tmp/out/cafes.csv"},
	}
	require.NoError(t, st.CompleteRun(ctx, run.ID, summary))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	require.NotNil(t, got.Summary)
	assert.Equal(t, summary, got.Summary)
}

func TestSQLite_FailRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "beijing", "cafes")
	require.NoError(t, err)
	require.NoError(t, st.FailRun(ctx, run.ID, "daily quota exhausted"))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
	assert.Equal(t, "daily quota exhausted", got.Error)
}

func TestSQLite_CompleteRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.CompleteRun(context.Background(), "missing", &model.RunSummary{})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrRunNotFound))
}

func TestSQLite_ListRuns_Filters(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	r1, err := st.CreateRun(ctx, "beijing", "cafes")
	require.NoError(t, err)
	_, err = st.CreateRun(ctx, "beijing", "schools")
	require.NoError(t, err)
	_, err = st.CreateRun(ctx, "shanghai", "cafes")
	require.NoError(t, err)

	require.NoError(t, st.CompleteRun(ctx, r1.ID, &model.RunSummary{Items: 1}))

	all, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	complete, err := st.ListRuns(ctx, RunFilter{Status: model.RunStatusComplete})
	require.NoError(t, err)
	require.Len(t, complete, 1)
	assert.Equal(t, r1.ID, complete[0].ID)

	beijing, err := st.ListRuns(ctx, RunFilter{Group: "beijing"})
	require.NoError(t, err)
	assert.Len(t, beijing, 2)

	limited, err := st.ListRuns(ctx, RunFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestSQLite_TileFailures_RoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "beijing", "cafes")
	require.NoError(t, err)

	failures := []model.TileFailure{
		{Index: 4, Boundary: "1,2|3,4|1,2", Fatal: false, Reason: "retries exhausted"},
		{Index: 9, Boundary: "5,6|7,8|5,6", Fatal: true, Reason: "quota exhausted"},
	}
	require.NoError(t, st.RecordTileFailures(ctx, run.ID, failures))

	got, err := st.ListTileFailures(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, failures, got)
}

func TestSQLite_RecordTileFailures_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.RecordTileFailures(context.Background(), "any", nil))
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "dsn")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}

func TestOpen_DefaultsToSQLite(t *testing.T) {
	st, err := Open(context.Background(), "", filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	_, ok := st.(*SQLiteStore)
	assert.True(t, ok)
}
