package frames

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"
	"sync"

	"github.com/banshee-data/goal-distance/internal/timeutil"
)

// SyntheticConfig describes the scene a SyntheticSource renders: a planar
// target facing the camera at Distance metres, tilted by TiltDegrees about
// the camera's horizontal axis, so that in the (Y, Z) plane the target is
// the line Z = Distance + tan(tilt)*Y.
type SyntheticConfig struct {
	Intrinsics  Intrinsics
	DepthScale  float64
	Distance    float64
	TiltDegrees float64

	// NoiseStdDev is Gaussian depth noise in metres.
	NoiseStdDev float64
	// OutlierFraction of pixels get a uniformly random depth scale factor
	// in [0.5, 1.5).
	OutlierFraction float64

	// FailEvery marks every Nth frame set corrupt (0 disables).
	FailEvery int
	// DropColorEvery delivers every Nth frame set without colour (0 disables).
	DropColorEvery int
	// MaxFrames ends the stream with io.EOF after that many sets (0 = unlimited).
	MaxFrames int

	Seed  int64
	Clock timeutil.Clock
}

// DefaultSyntheticConfig returns a target at 2.5 m tilted by 15 degrees.
func DefaultSyntheticConfig() SyntheticConfig {
	return SyntheticConfig{
		Intrinsics:  RealSenseIntrinsics(),
		DepthScale:  0.001,
		Distance:    2.5,
		TiltDegrees: 15,
		NoiseStdDev: 0.002,
		Seed:        1,
	}
}

// Validate checks the scene parameters.
func (c SyntheticConfig) Validate() error {
	if err := c.Intrinsics.Validate(); err != nil {
		return err
	}
	if c.DepthScale <= 0 {
		return fmt.Errorf("depth scale must be positive, got %g", c.DepthScale)
	}
	if c.Distance <= 0 {
		return fmt.Errorf("distance must be positive, got %g", c.Distance)
	}
	if math.Abs(c.TiltDegrees) >= 80 {
		return fmt.Errorf("tilt must be within (-80, 80) degrees, got %g", c.TiltDegrees)
	}
	if c.OutlierFraction < 0 || c.OutlierFraction > 1 {
		return fmt.Errorf("outlier fraction must be in [0, 1], got %g", c.OutlierFraction)
	}
	if c.NoiseStdDev < 0 {
		return fmt.Errorf("noise must be non-negative, got %g", c.NoiseStdDev)
	}
	return nil
}

// SyntheticSource renders frames of a SyntheticConfig scene. It stands in
// for a camera in the binary's demo mode and in end-to-end tests.
type SyntheticSource struct {
	cfg   SyntheticConfig
	clock timeutil.Clock

	mu      sync.Mutex
	rng     *rand.Rand
	seq     uint64
	stopped bool
}

// NewSyntheticSource validates cfg and builds a source.
func NewSyntheticSource(cfg SyntheticConfig) (*SyntheticSource, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("synthetic source: %w", err)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &SyntheticSource{
		cfg:   cfg,
		clock: clock,
		//nolint:gosec
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// WaitForFrames renders the next frame set.
func (s *SyntheticSource) WaitForFrames(ctx context.Context) (*RawFrames, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil, ErrSourceStopped
	}
	if s.cfg.MaxFrames > 0 && s.seq >= uint64(s.cfg.MaxFrames) {
		return nil, io.EOF
	}
	s.seq++

	raw := &RawFrames{
		Seq:        s.seq,
		Timestamp:  s.clock.Now(),
		Width:      s.cfg.Intrinsics.Width,
		Height:     s.cfg.Intrinsics.Height,
		DepthScale: s.cfg.DepthScale,
		HasColor:   true,
		Depth:      s.render(),
	}
	if s.cfg.FailEvery > 0 && s.seq%uint64(s.cfg.FailEvery) == 0 {
		raw.Corrupt = true
	}
	if s.cfg.DropColorEvery > 0 && s.seq%uint64(s.cfg.DropColorEvery) == 0 {
		raw.HasColor = false
	}
	return raw, nil
}

// NewAligner returns a deprojecting aligner for the scene intrinsics.
func (s *SyntheticSource) NewAligner() Aligner {
	return DeprojectAligner{Intrinsics: s.cfg.Intrinsics}
}

// Stop ends the stream.
func (s *SyntheticSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	return nil
}

// Frames returns how many frame sets have been delivered.
func (s *SyntheticSource) Frames() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// render must be called with s.mu held.
func (s *SyntheticSource) render() []uint16 {
	in := s.cfg.Intrinsics
	slope := math.Tan(s.cfg.TiltDegrees * math.Pi / 180)
	depth := make([]uint16, in.Width*in.Height)

	for y := 0; y < in.Height; y++ {
		// Each row is a ray fan with Y/Z = t; intersect with Z = D + slope*Y.
		t := (float64(y) - in.Ppy) / in.Fy
		denom := 1 - slope*t
		if denom <= 0.05 {
			continue
		}
		z := s.cfg.Distance / denom

		row := depth[y*in.Width : (y+1)*in.Width]
		for x := range row {
			d := z
			if s.cfg.NoiseStdDev > 0 {
				d += s.rng.NormFloat64() * s.cfg.NoiseStdDev
			}
			if s.cfg.OutlierFraction > 0 && s.rng.Float64() < s.cfg.OutlierFraction {
				d *= 0.5 + s.rng.Float64()
			}
			row[x] = toRawDepth(d, s.cfg.DepthScale)
		}
	}
	return depth
}

func toRawDepth(metres, scale float64) uint16 {
	v := math.Round(metres / scale)
	if v <= 0 {
		return 0
	}
	if v > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(v)
}
