package goal

import (
	"github.com/golang/geo/r3"
)

const pixelPitch = 0.002 // metres between neighbouring vertices

// tiltedFrame renders a frame with uniform raw depth whose vertices lie on
// a plane tilted about the X axis: in the (Y, Z) sampling plane every vertex
// sits on the line Z = dist + slope*Y, where dist = rawDepth*scale.
func tiltedFrame(width, height int, rawDepth uint16, scale, slope float64) *Frame {
	f := &Frame{
		Width:      width,
		Height:     height,
		DepthScale: scale,
		HasColor:   true,
		Depth:      make([]uint16, width*height),
		Vertices:   make([]r3.Vector, width*height),
	}
	dist := float64(rawDepth) * scale
	for y := 0; y < height; y++ {
		vy := float64(y-height/2) * pixelPitch
		for x := 0; x < width; x++ {
			i := y*width + x
			f.Depth[i] = rawDepth
			f.Vertices[i] = r3.Vector{
				X: float64(x-width/2) * pixelPitch,
				Y: vy,
				Z: dist + slope*vy,
			}
		}
	}
	return f
}

// uniformFrame returns a frame where every vertex is v and every depth is raw.
func uniformFrame(width, height int, raw uint16, scale float64, v r3.Vector) *Frame {
	f := &Frame{
		Width:      width,
		Height:     height,
		DepthScale: scale,
		HasColor:   true,
		Depth:      make([]uint16, width*height),
		Vertices:   make([]r3.Vector, width*height),
	}
	for i := range f.Depth {
		f.Depth[i] = raw
		f.Vertices[i] = v
	}
	return f
}
