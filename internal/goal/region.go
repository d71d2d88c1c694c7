package goal

import "fmt"

// Region is an axis-aligned pixel rectangle. X and Y are the top-left
// corner; the rectangle covers columns [X, X+Width) and rows [Y, Y+Height).
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// MaxX returns the exclusive right edge.
func (r Region) MaxX() int { return r.X + r.Width }

// MaxY returns the exclusive bottom edge.
func (r Region) MaxY() int { return r.Y + r.Height }

// Empty reports whether the region covers no pixels.
func (r Region) Empty() bool { return r.Width <= 0 || r.Height <= 0 }

// Contains reports whether pixel (x, y) lies inside the region.
func (r Region) Contains(x, y int) bool {
	return x >= r.X && x < r.MaxX() && y >= r.Y && y < r.MaxY()
}

// Clip returns the part of r that lies inside a width x height image.
func (r Region) Clip(width, height int) Region {
	return regionFromEdges(
		clampInt(r.X, 0, width),
		clampInt(r.Y, 0, height),
		clampInt(r.MaxX(), 0, width),
		clampInt(r.MaxY(), 0, height),
	)
}

func (r Region) String() string {
	return fmt.Sprintf("[%d,%d %dx%d]", r.X, r.Y, r.Width, r.Height)
}

// regionFromEdges builds a region from its edges. Inverted edges collapse to
// an empty region anchored at the left/top edge.
func regionFromEdges(minX, minY, maxX, maxY int) Region {
	w := maxX - minX
	if w < 0 {
		w = 0
	}
	h := maxY - minY
	if h < 0 {
		h = 0
	}
	return Region{X: minX, Y: minY, Width: w, Height: h}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
