package goal

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
)

// Axis indexes a component of a vertex.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

func (a Axis) of(v r3.Vector) float64 {
	switch a {
	case AxisX:
		return v.X
	case AxisY:
		return v.Y
	default:
		return v.Z
	}
}

// Plane selects the two vertex components that survive projection into
// the 2D fitting plane. The default keeps Y and Z: the fit runs in the
// plane spanned by the camera's vertical axis and its depth axis, which is
// also what makes the radial distance comparable to the ROI distance.
type Plane struct {
	A Axis `json:"a"`
	B Axis `json:"b"`
}

// DefaultPlane returns the (Y, Z) plane.
func DefaultPlane() Plane { return Plane{A: AxisY, B: AxisZ} }

// Validate rejects out-of-range or repeated axes.
func (p Plane) Validate() error {
	if p.A < AxisX || p.A > AxisZ || p.B < AxisX || p.B > AxisZ {
		return fmt.Errorf("plane axes must be in [0,2], got (%d,%d)", p.A, p.B)
	}
	if p.A == p.B {
		return fmt.Errorf("plane axes must differ, got (%d,%d)", p.A, p.B)
	}
	return nil
}

// Project drops the unused component of v.
func (p Plane) Project(v r3.Vector) r2.Point {
	return r2.Point{X: p.A.of(v), Y: p.B.of(v)}
}

// SamplerConfig controls the strided walk and the distance band.
type SamplerConfig struct {
	// RowStride and ColStride are divided by the distance and rounded up to
	// obtain the step in pixels; far targets are sampled more coarsely.
	RowStride float64
	ColStride float64
	// BandHalfWidth bounds |radial - dist| for a point to be kept.
	BandHalfWidth float64
	Plane         Plane
}

// DefaultSamplerConfig returns the sampler settings used in the field.
func DefaultSamplerConfig() SamplerConfig {
	return SamplerConfig{
		RowStride:     6,
		ColStride:     12,
		BandHalfWidth: 0.3,
		Plane:         DefaultPlane(),
	}
}

// Strides returns the row and column steps at dist. Both are at least one.
func (c SamplerConfig) Strides(dist float64) (row, col int) {
	row = int(math.Ceil(c.RowStride / dist))
	col = int(math.Ceil(c.ColStride / dist))
	if row < 1 {
		row = 1
	}
	if col < 1 {
		col = 1
	}
	return row, col
}

// SamplePoints walks the expanded window of f on the stride grid and
// returns the projected points whose radial distance lies strictly inside
// (dist-band, dist+band). Vertices inside the masking window read as the
// origin, as if the map had been zeroed there. The frame is not modified.
func SamplePoints(f *Frame, w Windows, dist float64, cfg SamplerConfig) []r2.Point {
	win := w.Expanded.Clip(f.Width, f.Height)
	if win.Empty() || dist <= 0 {
		return nil
	}

	rowStep, colStep := cfg.Strides(dist)
	lo, hi := dist-cfg.BandHalfWidth, dist+cfg.BandHalfWidth

	var out []r2.Point
	for y := win.Y; y < win.MaxY(); y += rowStep {
		for x := win.X; x < win.MaxX(); x += colStep {
			var v r3.Vector
			if !w.Mask.Contains(x, y) {
				v = f.Vertex(x, y)
			}
			p := cfg.Plane.Project(v)
			r := p.Norm()
			if r > lo && r < hi {
				out = append(out, p)
			}
		}
	}
	return out
}
