// Package goal estimates the distance and planar angle of a goal from an
// aligned depth frame.
//
// Per frame: the ROI's average depth gives the distance, which is clamped
// and used to size an expanded window and a masking window around the ROI.
// The expanded window is sampled on a distance-dependent stride grid, points
// outside a radial band around the distance are discarded, and a RANSAC line
// fit over the survivors yields the angle.
package goal

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/banshee-data/goal-distance/internal/monitoring"
)

// Config gathers the estimator parameters. DefaultConfig returns the
// values tuned for a 1280x720 RealSense stream.
type Config struct {
	ROI         Region
	MinDistance float64
	MaxDistance float64
	Expand      Margins
	Mask        Margins
	Sampler     SamplerConfig
	Fit         LineFitConfig
}

// DefaultConfig returns the field defaults.
func DefaultConfig() Config {
	return Config{
		ROI:         Region{X: 680, Y: 350, Width: 30, Height: 20},
		MinDistance: 0.1,
		MaxDistance: 6.0,
		Expand:      DefaultExpandMargins(),
		Mask:        DefaultMaskMargins(),
		Sampler:     DefaultSamplerConfig(),
		Fit:         DefaultLineFitConfig(),
	}
}

// Validate checks the parameters that would otherwise cause silent misbehaviour.
func (c Config) Validate() error {
	if c.ROI.Empty() {
		return fmt.Errorf("roi must be non-empty, got %v", c.ROI)
	}
	if c.MinDistance <= 0 || c.MaxDistance <= c.MinDistance {
		return fmt.Errorf("distance clamp must satisfy 0 < min < max, got [%g, %g]", c.MinDistance, c.MaxDistance)
	}
	if c.Sampler.RowStride <= 0 || c.Sampler.ColStride <= 0 {
		return fmt.Errorf("stride numerators must be positive, got (%g, %g)", c.Sampler.RowStride, c.Sampler.ColStride)
	}
	if c.Sampler.BandHalfWidth <= 0 {
		return fmt.Errorf("band half width must be positive, got %g", c.Sampler.BandHalfWidth)
	}
	if err := c.Sampler.Plane.Validate(); err != nil {
		return err
	}
	if c.Fit.MaxTrials < 1 {
		return fmt.Errorf("max trials must be at least 1, got %d", c.Fit.MaxTrials)
	}
	if c.Fit.ResidualThreshold <= 0 {
		return fmt.Errorf("residual threshold must be positive, got %g", c.Fit.ResidualThreshold)
	}
	return nil
}

// Estimate is the per-frame result.
type Estimate struct {
	// Distance is the clamped ROI distance in metres.
	Distance float64
	// Angle is in degrees in the hub frame; nil when no line could be fitted.
	Angle *float64

	RawDistance float64
	Windows     Windows
	Samples     int
	Inliers     int
	FitErr      error
}

// Estimator turns frames into estimates. It is not safe for concurrent
// use: the consensus sampler's random source is shared across calls.
type Estimator struct {
	cfg Config
	rng *rand.Rand
}

// NewEstimator builds an estimator. A zero seed draws one from the clock.
func NewEstimator(cfg Config, seed int64) *Estimator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	//nolint:gosec
	return &Estimator{cfg: cfg, rng: rand.New(rand.NewSource(seed))}
}

// Config returns the estimator parameters.
func (e *Estimator) Config() Config { return e.cfg }

// Estimate runs the pipeline on f. ErrInvalidFrame and ErrZeroDistance mean
// the frame must be skipped; a failed line fit is not an error and is
// reported as a nil Angle with FitErr set.
func (e *Estimator) Estimate(f *Frame) (Estimate, error) {
	if !f.Valid() {
		return Estimate{}, ErrInvalidFrame
	}

	raw := f.AverageDistance(e.cfg.ROI)
	if raw == 0 {
		return Estimate{RawDistance: raw}, ErrZeroDistance
	}
	dist := clampFloat(raw, e.cfg.MinDistance, e.cfg.MaxDistance)

	windows, err := BuildWindows(e.cfg.ROI, e.cfg.Expand, e.cfg.Mask, dist, f.Width, f.Height)
	if err != nil {
		return Estimate{RawDistance: raw}, err
	}

	points := SamplePoints(f, windows, dist, e.cfg.Sampler)
	est := Estimate{
		Distance:    dist,
		RawDistance: raw,
		Windows:     windows,
		Samples:     len(points),
	}

	line, err := FitLine(points, e.cfg.Fit, e.rng)
	if err != nil {
		est.FitErr = err
		if !errors.Is(err, ErrTooFewPoints) {
			monitoring.Logf("frame %d: line fit failed: %v", f.Seq, err)
		}
		return est, nil
	}
	angle := GoalAngle(line.Model.Direction)
	est.Angle = &angle
	est.Inliers = line.InlierCount
	return est, nil
}
