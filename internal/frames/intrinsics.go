package frames

import (
	"fmt"

	"github.com/golang/geo/r3"

	"github.com/banshee-data/goal-distance/internal/goal"
)

// Intrinsics is a pinhole camera model for the colour stream the depth is
// aligned to.
type Intrinsics struct {
	Width  int
	Height int
	Fx     float64
	Fy     float64
	Ppx    float64
	Ppy    float64
}

// RealSenseIntrinsics returns the factory calibration of a D4xx colour
// stream at 1280x720.
func RealSenseIntrinsics() Intrinsics {
	return Intrinsics{
		Width:  1280,
		Height: 720,
		Fx:     906.0663452148438,
		Fy:     905.1234741210938,
		Ppx:    646.94970703125,
		Ppy:    374.4667663574219,
	}
}

// Validate rejects models that cannot deproject.
func (in Intrinsics) Validate() error {
	if in.Width <= 0 || in.Height <= 0 {
		return fmt.Errorf("intrinsics size must be positive, got %dx%d", in.Width, in.Height)
	}
	if in.Fx <= 0 || in.Fy <= 0 {
		return fmt.Errorf("focal lengths must be positive, got fx=%g fy=%g", in.Fx, in.Fy)
	}
	return nil
}

// PixelToPoint deprojects pixel (px, py) at depth metres into camera space.
func (in Intrinsics) PixelToPoint(px, py, depth float64) r3.Vector {
	return r3.Vector{
		X: depth * (px - in.Ppx) / in.Fx,
		Y: depth * (py - in.Ppy) / in.Fy,
		Z: depth,
	}
}

// DeprojectAligner computes vertices by deprojecting each depth pixel
// through the colour intrinsics. It assumes the depth stream is already
// registered to the colour stream, as the RealSense align block produces.
type DeprojectAligner struct {
	Intrinsics Intrinsics
}

// Align implements Aligner.
func (a DeprojectAligner) Align(raw *RawFrames) (*goal.Frame, error) {
	if raw == nil {
		return nil, fmt.Errorf("align: nil frame set")
	}
	if raw.Corrupt {
		return nil, fmt.Errorf("align frame %d: %w", raw.Seq, ErrVerticesUnavailable)
	}
	in := a.Intrinsics
	if raw.Width != in.Width || raw.Height != in.Height {
		return nil, fmt.Errorf("align frame %d: size %dx%d does not match intrinsics %dx%d",
			raw.Seq, raw.Width, raw.Height, in.Width, in.Height)
	}
	if len(raw.Depth) != raw.Width*raw.Height {
		return nil, fmt.Errorf("align frame %d: depth has %d pixels, want %d",
			raw.Seq, len(raw.Depth), raw.Width*raw.Height)
	}

	vertices := make([]r3.Vector, len(raw.Depth))
	for y := 0; y < raw.Height; y++ {
		for x := 0; x < raw.Width; x++ {
			i := y*raw.Width + x
			d := raw.Depth[i]
			if d == 0 {
				continue
			}
			vertices[i] = in.PixelToPoint(float64(x), float64(y), float64(d)*raw.DepthScale)
		}
	}

	return &goal.Frame{
		Seq:        raw.Seq,
		Timestamp:  raw.Timestamp,
		Width:      raw.Width,
		Height:     raw.Height,
		Depth:      raw.Depth,
		DepthScale: raw.DepthScale,
		Vertices:   vertices,
		HasColor:   raw.HasColor,
	}, nil
}
