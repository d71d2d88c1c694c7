package goal

import (
	"time"

	"github.com/golang/geo/r3"
)

// Frame is one aligned depth + vertex snapshot. Depth and Vertices are
// row-major with Width*Height entries. A Frame is produced once per loop
// iteration and not retained afterwards.
type Frame struct {
	Seq       uint64
	Timestamp time.Time

	Width  int
	Height int

	// Depth holds raw sensor depth units (z16).
	Depth []uint16
	// DepthScale converts raw depth units to metres.
	DepthScale float64
	// Vertices is the point cloud aligned to the colour image, in metres:
	// X lateral, Y lateral (down), Z depth.
	Vertices []r3.Vector
	// HasColor reports whether the colour frame arrived with this depth frame.
	HasColor bool
}

// Valid reports whether the frame carries everything the estimator reads.
func (f *Frame) Valid() bool {
	if f == nil || f.Width <= 0 || f.Height <= 0 || !f.HasColor {
		return false
	}
	n := f.Width * f.Height
	return len(f.Depth) == n && len(f.Vertices) == n
}

// Bounds returns the full image as a Region.
func (f *Frame) Bounds() Region {
	return Region{Width: f.Width, Height: f.Height}
}

// Vertex returns the vertex at pixel (x, y).
func (f *Frame) Vertex(x, y int) r3.Vector {
	return f.Vertices[y*f.Width+x]
}

// AverageDistance returns the mean depth inside r, converted to metres.
// Invalid (zero) depth pixels are counted like any other so the average
// matches what the sensor reports for the whole rectangle. An empty
// intersection with the image yields zero.
func (f *Frame) AverageDistance(r Region) float64 {
	r = r.Clip(f.Width, f.Height)
	if r.Empty() {
		return 0
	}
	var sum uint64
	for y := r.Y; y < r.MaxY(); y++ {
		row := f.Depth[y*f.Width : (y+1)*f.Width]
		for x := r.X; x < r.MaxX(); x++ {
			sum += uint64(row[x])
		}
	}
	mean := float64(sum) / float64(r.Width*r.Height)
	return mean * f.DepthScale
}
