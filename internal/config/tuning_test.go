package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/goal-distance/internal/goal"
	"github.com/banshee-data/goal-distance/internal/hub"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestEmptyTuningConfig_Defaults(t *testing.T) {
	cfg := EmptyTuningConfig()

	if diff := cmp.Diff(goal.DefaultConfig(), cfg.EstimatorConfig()); diff != "" {
		t.Errorf("EstimatorConfig() mismatch (-want +got):\n%s", diff)
	}
	if cfg.GetRansacSeed() != 0 {
		t.Errorf("GetRansacSeed() = %d, want 0", cfg.GetRansacSeed())
	}
	if cfg.GetReceiveTimeout() != 0 {
		t.Errorf("GetReceiveTimeout() = %v, want 0", cfg.GetReceiveTimeout())
	}
	if cfg.GetStatsInterval() != 10*time.Second {
		t.Errorf("GetStatsInterval() = %v, want 10s", cfg.GetStatsInterval())
	}

	s := cfg.SessionConfig()
	assert.Equal(t, "127.0.0.1:8091", s.HubAddr)
	assert.Equal(t, "127.0.0.1:8096", s.LocalAddr)
	assert.Equal(t, []string{hub.TopicGoalDistance}, s.Topics)
	assert.Equal(t, hub.TopicGoalDistanceClose, s.CloseTopic)
}

func TestDefaultsFileMatchesBuiltins(t *testing.T) {
	fromFile := MustLoadDefaultConfig()
	if diff := cmp.Diff(DefaultTuningConfig(), fromFile); diff != "" {
		t.Errorf("%s drifted from built-in defaults (-builtin +file):\n%s", DefaultConfigPath, diff)
	}
}

func TestLoadTuningConfig_Partial(t *testing.T) {
	path := writeConfig(t, "partial.json", `{
  "roi": {"x": 100, "y": 200, "width": 40, "height": 10},
  "ransac_max_trials": 20,
  "ransac_seed": 42,
  "plane_axes": [0, 2],
  "receive_timeout": "250ms",
  "topics": ["goal_distance", "debug"]
}`)

	cfg, err := LoadTuningConfig(path)
	require.NoError(t, err)

	est := cfg.EstimatorConfig()
	assert.Equal(t, goal.Region{X: 100, Y: 200, Width: 40, Height: 10}, est.ROI)
	assert.Equal(t, 20, est.Fit.MaxTrials)
	assert.Equal(t, goal.Plane{A: goal.AxisX, B: goal.AxisZ}, est.Sampler.Plane)
	assert.Equal(t, goal.DefaultExpandMargins(), est.Expand, "omitted fields keep defaults")
	assert.Equal(t, int64(42), cfg.GetRansacSeed())

	s := cfg.SessionConfig()
	assert.Equal(t, 250*time.Millisecond, s.ReceiveTimeout)
	assert.Equal(t, []string{"goal_distance", "debug"}, s.Topics)
}

func TestLoadTuningConfig_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{"extension", "cfg.yaml", `{}`, ".json extension"},
		{"syntax", "cfg.json", `{"roi":`, "parse config JSON"},
		{"empty roi", "cfg.json", `{"roi": {"x": 1, "y": 1, "width": 0, "height": 5}}`, "roi must be non-empty"},
		{"roi outside image", "cfg.json", `{"roi": {"x": 1270, "y": 1, "width": 30, "height": 5}}`, "outside"},
		{"negative margin", "cfg.json", `{"mask_margins": {"left": -1, "right": 0, "top": 0, "bottom": 0}}`, "mask_margins"},
		{"one axis", "cfg.json", `{"plane_axes": [1]}`, "plane_axes"},
		{"repeated axis", "cfg.json", `{"plane_axes": [2, 2]}`, "plane axes must differ"},
		{"clamp order", "cfg.json", `{"min_distance": 3, "max_distance": 2}`, "distance clamp"},
		{"trials", "cfg.json", `{"ransac_max_trials": 0}`, "max trials"},
		{"timeout syntax", "cfg.json", `{"receive_timeout": "soon"}`, "receive_timeout"},
		{"negative interval", "cfg.json", `{"stats_interval": "-1s"}`, "stats_interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadTuningConfig(writeConfig(t, tt.file, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadTuningConfig_Missing(t *testing.T) {
	_, err := LoadTuningConfig(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestLoadTuningConfig_TooLarge(t *testing.T) {
	body := `{"topics": ["` + strings.Repeat("x", 1024*1024) + `"]}`
	_, err := LoadTuningConfig(writeConfig(t, "big.json", body))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestGetDurations_FallBackOnParseError(t *testing.T) {
	bad := "bogus"
	cfg := &TuningConfig{ReceiveTimeout: &bad, StatsInterval: &bad}
	assert.Equal(t, time.Duration(0), cfg.GetReceiveTimeout())
	assert.Equal(t, 10*time.Second, cfg.GetStatsInterval())
}

func TestGetTopics_ReturnsCopy(t *testing.T) {
	cfg := &TuningConfig{Topics: []string{"a"}}
	got := cfg.GetTopics()
	got[0] = "b"
	assert.Equal(t, "a", cfg.Topics[0])
}
