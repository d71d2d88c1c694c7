package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/goal-distance/internal/goal"
	"github.com/banshee-data/goal-distance/internal/hub"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig holds the estimator and hub parameters. Every field is
// optional; the Get* accessors fall back to built-in defaults, so partial
// files are safe.
type TuningConfig struct {
	// Region of interest and stream size
	ROI         *goal.Region `json:"roi,omitempty"`
	ImageWidth  *int         `json:"image_width,omitempty"`
	ImageHeight *int         `json:"image_height,omitempty"`

	// Distance clamp and band
	MinDistance   *float64 `json:"min_distance,omitempty"`
	MaxDistance   *float64 `json:"max_distance,omitempty"`
	BandHalfWidth *float64 `json:"band_half_width,omitempty"`

	// Windows, in pixel-metres (divided by distance)
	ExpandMargins *goal.Margins `json:"expand_margins,omitempty"`
	MaskMargins   *goal.Margins `json:"mask_margins,omitempty"`

	// Sampling
	RowStride *float64 `json:"row_stride,omitempty"`
	ColStride *float64 `json:"col_stride,omitempty"`
	PlaneAxes []int    `json:"plane_axes,omitempty"` // vertex component indices, 0=x 1=y 2=z

	// RANSAC
	RansacMaxTrials         *int     `json:"ransac_max_trials,omitempty"`
	RansacResidualThreshold *float64 `json:"ransac_residual_threshold,omitempty"`
	RansacSeed              *int64   `json:"ransac_seed,omitempty"` // 0 seeds from the clock

	// Hub
	HubAddr        *string  `json:"hub_addr,omitempty"`
	LocalAddr      *string  `json:"local_addr,omitempty"`
	Topics         []string `json:"topics,omitempty"`
	CloseTopic     *string  `json:"close_topic,omitempty"`
	ReceiveTimeout *string  `json:"receive_timeout,omitempty"` // duration string; "0s" blocks

	// Diagnostics
	StatsInterval *string `json:"stats_interval,omitempty"` // duration string like "10s"
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrInt64(v int64) *int64       { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated
// from the built-in defaults.
func DefaultTuningConfig() *TuningConfig {
	e := EmptyTuningConfig()
	roi := e.GetROI()
	expand := e.GetExpandMargins()
	mask := e.GetMaskMargins()
	plane := e.GetPlane()
	return &TuningConfig{
		ROI:                     &roi,
		ImageWidth:              ptrInt(e.GetImageWidth()),
		ImageHeight:             ptrInt(e.GetImageHeight()),
		MinDistance:             ptrFloat64(e.GetMinDistance()),
		MaxDistance:             ptrFloat64(e.GetMaxDistance()),
		BandHalfWidth:           ptrFloat64(e.GetBandHalfWidth()),
		ExpandMargins:           &expand,
		MaskMargins:             &mask,
		RowStride:               ptrFloat64(e.GetRowStride()),
		ColStride:               ptrFloat64(e.GetColStride()),
		PlaneAxes:               []int{int(plane.A), int(plane.B)},
		RansacMaxTrials:         ptrInt(e.GetRansacMaxTrials()),
		RansacResidualThreshold: ptrFloat64(e.GetRansacResidualThreshold()),
		RansacSeed:              ptrInt64(e.GetRansacSeed()),
		HubAddr:                 ptrString(e.GetHubAddr()),
		LocalAddr:               ptrString(e.GetLocalAddr()),
		Topics:                  e.GetTopics(),
		CloseTopic:              ptrString(e.GetCloseTopic()),
		ReceiveTimeout:          ptrString(e.GetReceiveTimeout().String()),
		StatsInterval:           ptrString(e.GetStatsInterval().String()),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file must have a .json extension and be under 1MB. Fields omitted
// from the file keep their defaults.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents. Panics if the file cannot be loaded; intended
// for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks the values that are set.
func (c *TuningConfig) Validate() error {
	if c.ImageWidth != nil && *c.ImageWidth <= 0 {
		return fmt.Errorf("image_width must be positive, got %d", *c.ImageWidth)
	}
	if c.ImageHeight != nil && *c.ImageHeight <= 0 {
		return fmt.Errorf("image_height must be positive, got %d", *c.ImageHeight)
	}
	if c.ROI != nil {
		if c.ROI.Empty() {
			return fmt.Errorf("roi must be non-empty, got %v", *c.ROI)
		}
		if c.ROI.X < 0 || c.ROI.Y < 0 ||
			c.ROI.MaxX() > c.GetImageWidth() || c.ROI.MaxY() > c.GetImageHeight() {
			return fmt.Errorf("roi %v lies outside the %dx%d image", *c.ROI, c.GetImageWidth(), c.GetImageHeight())
		}
	}
	for _, m := range []struct {
		name string
		v    *goal.Margins
	}{{"expand_margins", c.ExpandMargins}, {"mask_margins", c.MaskMargins}} {
		if m.v != nil && (m.v.Left < 0 || m.v.Right < 0 || m.v.Top < 0 || m.v.Bottom < 0) {
			return fmt.Errorf("%s must be non-negative, got %+v", m.name, *m.v)
		}
	}
	if c.PlaneAxes != nil && len(c.PlaneAxes) != 2 {
		return fmt.Errorf("plane_axes must have two entries, got %v", c.PlaneAxes)
	}
	for _, d := range []struct {
		name string
		v    *string
	}{{"receive_timeout", c.ReceiveTimeout}, {"stats_interval", c.StatsInterval}} {
		if d.v == nil || *d.v == "" {
			continue
		}
		dur, err := time.ParseDuration(*d.v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", d.name, *d.v, err)
		}
		if dur < 0 {
			return fmt.Errorf("%s must be non-negative, got %s", d.name, dur)
		}
	}
	return c.EstimatorConfig().Validate()
}

// EstimatorConfig assembles the estimator configuration.
func (c *TuningConfig) EstimatorConfig() goal.Config {
	return goal.Config{
		ROI:         c.GetROI(),
		MinDistance: c.GetMinDistance(),
		MaxDistance: c.GetMaxDistance(),
		Expand:      c.GetExpandMargins(),
		Mask:        c.GetMaskMargins(),
		Sampler: goal.SamplerConfig{
			RowStride:     c.GetRowStride(),
			ColStride:     c.GetColStride(),
			BandHalfWidth: c.GetBandHalfWidth(),
			Plane:         c.GetPlane(),
		},
		Fit: goal.LineFitConfig{
			MaxTrials:         c.GetRansacMaxTrials(),
			ResidualThreshold: c.GetRansacResidualThreshold(),
		},
	}
}

// SessionConfig assembles the hub session configuration.
func (c *TuningConfig) SessionConfig() hub.SessionConfig {
	s := hub.DefaultSessionConfig()
	s.HubAddr = c.GetHubAddr()
	s.LocalAddr = c.GetLocalAddr()
	s.Topics = c.GetTopics()
	s.CloseTopic = c.GetCloseTopic()
	s.ReceiveTimeout = c.GetReceiveTimeout()
	return s
}

// GetROI returns the roi value or the default.
func (c *TuningConfig) GetROI() goal.Region {
	if c.ROI == nil {
		return goal.DefaultConfig().ROI
	}
	return *c.ROI
}

// GetImageWidth returns the image_width value or the default.
func (c *TuningConfig) GetImageWidth() int {
	if c.ImageWidth == nil {
		return 1280
	}
	return *c.ImageWidth
}

// GetImageHeight returns the image_height value or the default.
func (c *TuningConfig) GetImageHeight() int {
	if c.ImageHeight == nil {
		return 720
	}
	return *c.ImageHeight
}

// GetMinDistance returns the min_distance value or the default.
func (c *TuningConfig) GetMinDistance() float64 {
	if c.MinDistance == nil {
		return 0.1
	}
	return *c.MinDistance
}

// GetMaxDistance returns the max_distance value or the default.
func (c *TuningConfig) GetMaxDistance() float64 {
	if c.MaxDistance == nil {
		return 6.0
	}
	return *c.MaxDistance
}

// GetBandHalfWidth returns the band_half_width value or the default.
func (c *TuningConfig) GetBandHalfWidth() float64 {
	if c.BandHalfWidth == nil {
		return goal.DefaultSamplerConfig().BandHalfWidth
	}
	return *c.BandHalfWidth
}

// GetExpandMargins returns the expand_margins value or the default.
func (c *TuningConfig) GetExpandMargins() goal.Margins {
	if c.ExpandMargins == nil {
		return goal.DefaultExpandMargins()
	}
	return *c.ExpandMargins
}

// GetMaskMargins returns the mask_margins value or the default.
func (c *TuningConfig) GetMaskMargins() goal.Margins {
	if c.MaskMargins == nil {
		return goal.DefaultMaskMargins()
	}
	return *c.MaskMargins
}

// GetRowStride returns the row_stride value or the default.
func (c *TuningConfig) GetRowStride() float64 {
	if c.RowStride == nil {
		return goal.DefaultSamplerConfig().RowStride
	}
	return *c.RowStride
}

// GetColStride returns the col_stride value or the default.
func (c *TuningConfig) GetColStride() float64 {
	if c.ColStride == nil {
		return goal.DefaultSamplerConfig().ColStride
	}
	return *c.ColStride
}

// GetPlane returns the plane_axes value or the default (Y, Z) plane.
func (c *TuningConfig) GetPlane() goal.Plane {
	if len(c.PlaneAxes) != 2 {
		return goal.DefaultPlane()
	}
	return goal.Plane{A: goal.Axis(c.PlaneAxes[0]), B: goal.Axis(c.PlaneAxes[1])}
}

// GetRansacMaxTrials returns the ransac_max_trials value or the default.
func (c *TuningConfig) GetRansacMaxTrials() int {
	if c.RansacMaxTrials == nil {
		return goal.DefaultLineFitConfig().MaxTrials
	}
	return *c.RansacMaxTrials
}

// GetRansacResidualThreshold returns the ransac_residual_threshold value or the default.
func (c *TuningConfig) GetRansacResidualThreshold() float64 {
	if c.RansacResidualThreshold == nil {
		return goal.DefaultLineFitConfig().ResidualThreshold
	}
	return *c.RansacResidualThreshold
}

// GetRansacSeed returns the ransac_seed value or the default.
func (c *TuningConfig) GetRansacSeed() int64 {
	if c.RansacSeed == nil {
		return 0
	}
	return *c.RansacSeed
}

// GetHubAddr returns the hub_addr value or the default.
func (c *TuningConfig) GetHubAddr() string {
	if c.HubAddr == nil || *c.HubAddr == "" {
		return hub.DefaultSessionConfig().HubAddr
	}
	return *c.HubAddr
}

// GetLocalAddr returns the local_addr value or the default.
func (c *TuningConfig) GetLocalAddr() string {
	if c.LocalAddr == nil || *c.LocalAddr == "" {
		return hub.DefaultSessionConfig().LocalAddr
	}
	return *c.LocalAddr
}

// GetTopics returns the topics value or the default.
func (c *TuningConfig) GetTopics() []string {
	if len(c.Topics) == 0 {
		return []string{hub.TopicGoalDistance}
	}
	return append([]string(nil), c.Topics...)
}

// GetCloseTopic returns the close_topic value or the default.
func (c *TuningConfig) GetCloseTopic() string {
	if c.CloseTopic == nil || *c.CloseTopic == "" {
		return hub.TopicGoalDistanceClose
	}
	return *c.CloseTopic
}

// GetReceiveTimeout parses and returns the ReceiveTimeout as a time.Duration.
func (c *TuningConfig) GetReceiveTimeout() time.Duration {
	if c.ReceiveTimeout == nil || *c.ReceiveTimeout == "" {
		return 0 // default: block until a datagram arrives
	}
	d, err := time.ParseDuration(*c.ReceiveTimeout)
	if err != nil {
		return 0
	}
	return d
}

// GetStatsInterval parses and returns the StatsInterval as a time.Duration.
func (c *TuningConfig) GetStatsInterval() time.Duration {
	if c.StatsInterval == nil || *c.StatsInterval == "" {
		return 10 * time.Second
	}
	d, err := time.ParseDuration(*c.StatsInterval)
	if err != nil {
		return 10 * time.Second
	}
	return d
}
