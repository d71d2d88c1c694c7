package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/goal-distance/internal/config"
	"github.com/banshee-data/goal-distance/internal/frames"
	"github.com/banshee-data/goal-distance/internal/goaldb"
	"github.com/banshee-data/goal-distance/internal/hub"
	"github.com/banshee-data/goal-distance/internal/testutil"
)

func testOptions(t *testing.T, sock *hub.MockUDPSocket) options {
	t.Helper()
	testutil.MuteLogs(t)

	tuning := config.EmptyTuningConfig()
	session := tuning.SessionConfig()
	session.ReceiveTimeout = time.Millisecond

	synth := frames.DefaultSyntheticConfig()
	synth.MaxFrames = 3
	return options{
		tuning:    tuning,
		session:   session,
		seed:      9,
		units:     "m",
		source:    "synthetic",
		synthetic: synth,
		sockets:   hub.NewMockUDPSocketFactory(sock),
	}
}

func TestFlagDefaults(t *testing.T) {
	assert.Equal(t, "synthetic", *source)
	assert.Equal(t, int64(-1), *seed)
	assert.Equal(t, time.Duration(-1), *statsInterval)
	assert.Equal(t, "m", *unitsFlag)
	assert.Equal(t, 2.5, *synthDistance)
	assert.False(t, *showVersion)
}

func TestResolveOptions_Defaults(t *testing.T) {
	opts, err := resolveOptions()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8091", opts.session.HubAddr)
	assert.Equal(t, int64(0), opts.seed)
	assert.Equal(t, 10*time.Second, opts.statsInterval)
	assert.Equal(t, 15.0, opts.synthetic.TiltDegrees)
}

func TestRun_PublishesAndRecords(t *testing.T) {
	sock := hub.NewMockUDPSocket(nil)
	opts := testOptions(t, sock)
	opts.dbPath = filepath.Join(t.TempDir(), "estimates.db")

	require.NoError(t, run(context.Background(), opts))

	var types []string
	for _, p := range sock.SentPackets() {
		m, err := hub.Decode(p.Data)
		require.NoError(t, err)
		types = append(types, m.Type)
	}
	assert.Equal(t, []string{
		hub.TypeSubscribe, hub.TypeMessage, hub.TypeMessage, hub.TypeMessage, hub.TypeUnsubscribe,
	}, types)
	assert.True(t, sock.Closed)

	db, err := goaldb.Open(opts.dbPath)
	require.NoError(t, err)
	defer db.Close()

	var runID string
	require.NoError(t, db.QueryRow(`SELECT run_id FROM goal_runs`).Scan(&runID))
	recs, err := db.ListEstimates(runID)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	for _, rec := range recs {
		assert.InDelta(t, 2.5, rec.Distance, 0.05)
		require.NotNil(t, rec.Angle)
		assert.InDelta(t, -15, *rec.Angle, 2)
	}

	r, err := db.GetRun(runID)
	require.NoError(t, err)
	assert.NotNil(t, r.FinishedAt)
	assert.Equal(t, 3, r.EstimateCount)
}

func TestRun_RejectsMismatchedStream(t *testing.T) {
	opts := testOptions(t, hub.NewMockUDPSocket(nil))
	width := 640
	opts.tuning = &config.TuningConfig{ImageWidth: &width}

	err := run(context.Background(), opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "synthetic stream is 1280x720")
}

func TestRun_UnknownSource(t *testing.T) {
	opts := testOptions(t, hub.NewMockUDPSocket(nil))
	opts.source = "realsense"

	err := run(context.Background(), opts)
	assert.ErrorContains(t, err, "unknown frame source")
}
