package goal

// Margins are pixel offsets measured at a distance of one length unit. The
// applied offset is margin/dist: a target of fixed physical size covers
// fewer pixels the further away it is, so the window shrinks with distance.
type Margins struct {
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
}

// PixelMargins are Margins resolved at a concrete distance, truncated
// toward zero.
type PixelMargins struct {
	Left, Right, Top, Bottom int
}

// DefaultExpandMargins returns the margins of the sampling window.
func DefaultExpandMargins() Margins {
	return Margins{Left: 50, Right: 500, Top: 250, Bottom: 250}
}

// DefaultMaskMargins returns the margins of the excluded window. The region
// it covers around the ROI is left out of the line fit.
func DefaultMaskMargins() Margins {
	return Margins{Left: 50, Right: 400, Top: 60, Bottom: 60}
}

// At resolves the margins at dist. dist must be positive; callers check
// for zero before building any window.
func (m Margins) At(dist float64) PixelMargins {
	return PixelMargins{
		Left:   int(m.Left / dist),
		Right:  int(m.Right / dist),
		Top:    int(m.Top / dist),
		Bottom: int(m.Bottom / dist),
	}
}

// Windows holds the two per-frame regions derived from the ROI.
type Windows struct {
	// Expanded bounds the vertices the sampler walks.
	Expanded Region
	// Mask is zeroed out of the vertex map before sampling.
	Mask Region
}

// ExpandRegion grows roi by m resolved at dist and clamps every edge into a
// width x height image.
func ExpandRegion(roi Region, m Margins, dist float64, width, height int) Region {
	px := m.At(dist)
	return regionFromEdges(
		clampInt(roi.X-px.Left, 0, width),
		clampInt(roi.Y-px.Top, 0, height),
		clampInt(roi.MaxX()+px.Right, 0, width),
		clampInt(roi.MaxY()+px.Bottom, 0, height),
	)
}

// BuildWindows derives the expanded and masking windows for a target at
// dist. It returns ErrZeroDistance without evaluating any margin when dist
// is not positive.
func BuildWindows(roi Region, expand, mask Margins, dist float64, width, height int) (Windows, error) {
	if dist <= 0 {
		return Windows{}, ErrZeroDistance
	}
	return Windows{
		Expanded: ExpandRegion(roi, expand, dist, width, height),
		Mask:     ExpandRegion(roi, mask, dist, width, height),
	}, nil
}
