package goaldb

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/goal-distance/internal/goal"
	"github.com/banshee-data/goal-distance/internal/testutil"
	"github.com/banshee-data/goal-distance/internal/timeutil"
)

var epoch = time.Date(2026, 4, 2, 12, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) (*DB, *timeutil.MockClock) {
	t.Helper()
	testutil.MuteLogs(t)

	clock := timeutil.NewMockClock(epoch)
	db, err := OpenWithClock(filepath.Join(t.TempDir(), "goal.db"), clock)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, clock
}

func TestOpen_MigratesToLatest(t *testing.T) {
	db, _ := setupTestDB(t)

	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	// Running again is a no-op.
	require.NoError(t, db.MigrateUp())
}

func TestMigrateDown(t *testing.T) {
	db, _ := setupTestDB(t)

	require.NoError(t, db.MigrateDown())
	version, _, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	var n int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='goal_estimates'`).Scan(&n)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRecordAndListEstimates(t *testing.T) {
	db, clock := setupTestDB(t)

	runID, err := db.StartRun("synthetic")
	require.NoError(t, err)
	assert.Len(t, runID, 36)

	angle := -14.75
	clock.Advance(time.Second)
	require.NoError(t, db.RecordEstimate(runID, 2, goal.Estimate{
		Distance: 2.5, RawDistance: 2.5, Angle: &angle, Samples: 120, Inliers: 118,
	}))
	clock.Advance(time.Second)
	require.NoError(t, db.RecordEstimate(runID, 1, goal.Estimate{
		Distance: 6, RawDistance: 7.2, FitErr: goal.ErrTooFewPoints,
	}))

	got, err := db.ListEstimates(runID)
	require.NoError(t, err)
	require.Len(t, got, 2)

	first := -14.75
	want := []EstimateRecord{
		{RunID: runID, Seq: 1, RecordedAt: epoch.Add(2 * time.Second).UnixNano(), Distance: 6, RawDistance: 7.2, FitError: goal.ErrTooFewPoints.Error()},
		{RunID: runID, Seq: 2, RecordedAt: epoch.Add(time.Second).UnixNano(), Distance: 2.5, RawDistance: 2.5, Angle: &first, Samples: 120, Inliers: 118},
	}
	ignoreID := cmp.FilterPath(func(p cmp.Path) bool { return p.Last().String() == ".ID" }, cmp.Ignore())
	if diff := cmp.Diff(want, got, ignoreID); diff != "" {
		t.Errorf("ListEstimates mismatch (-want +got):\n%s", diff)
	}

	run, err := db.GetRun(runID)
	require.NoError(t, err)
	assert.Equal(t, 2, run.EstimateCount)
	assert.Equal(t, "synthetic", run.Source)
	assert.Nil(t, run.FinishedAt)

	clock.Advance(time.Second)
	require.NoError(t, db.FinishRun(runID))
	run, err = db.GetRun(runID)
	require.NoError(t, err)
	require.NotNil(t, run.FinishedAt)
	assert.Equal(t, epoch.Add(3*time.Second).UnixNano(), *run.FinishedAt)
}

func TestUnknownRun(t *testing.T) {
	db, _ := setupTestDB(t)

	err := db.RecordEstimate("missing", 1, goal.Estimate{Distance: 1})
	assert.True(t, errors.Is(err, ErrUnknownRun))
	assert.True(t, errors.Is(db.FinishRun("missing"), ErrUnknownRun))
	_, err = db.GetRun("missing")
	assert.True(t, errors.Is(err, ErrUnknownRun))

	got, err := db.ListEstimates("missing")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRunsAreIsolated(t *testing.T) {
	db, _ := setupTestDB(t)

	a, err := db.StartRun("synthetic")
	require.NoError(t, err)
	b, err := db.StartRun("synthetic")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	require.NoError(t, db.RecordEstimate(a, 1, goal.Estimate{Distance: 1}))
	got, err := db.ListEstimates(b)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPruneBefore(t *testing.T) {
	db, clock := setupTestDB(t)

	old, err := db.StartRun("synthetic")
	require.NoError(t, err)
	require.NoError(t, db.RecordEstimate(old, 1, goal.Estimate{Distance: 1}))

	clock.Advance(time.Hour)
	recent, err := db.StartRun("synthetic")
	require.NoError(t, err)

	n, err := db.PruneBefore(epoch.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = db.GetRun(old)
	assert.True(t, errors.Is(err, ErrUnknownRun))
	got, err := db.ListEstimates(old)
	require.NoError(t, err)
	assert.Empty(t, got, "estimates cascade with their run")

	_, err = db.GetRun(recent)
	assert.NoError(t, err)
}
