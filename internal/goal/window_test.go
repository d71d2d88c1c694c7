package goal

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarginsAt_ExactArithmeticAtTwoPointFive(t *testing.T) {
	got := DefaultExpandMargins().At(2.5)
	assert.Equal(t, PixelMargins{Left: 20, Right: 200, Top: 100, Bottom: 100}, got)

	mask := DefaultMaskMargins().At(2.5)
	assert.Equal(t, PixelMargins{Left: 20, Right: 160, Top: 24, Bottom: 24}, mask)
}

func TestMarginsAt_Truncates(t *testing.T) {
	// 50/3 = 16.67, 500/3 = 166.67, 250/3 = 83.33
	got := DefaultExpandMargins().At(3)
	assert.Equal(t, PixelMargins{Left: 16, Right: 166, Top: 83, Bottom: 83}, got)
}

func TestMargins_NonNegativeAndMonotonic(t *testing.T) {
	for _, m := range []Margins{DefaultExpandMargins(), DefaultMaskMargins()} {
		prev := m.At(0.1)
		for d := 0.1; d <= 6.0; d += 0.05 {
			cur := m.At(d)
			assert.GreaterOrEqual(t, cur.Left, 0)
			assert.GreaterOrEqual(t, cur.Right, 0)
			assert.GreaterOrEqual(t, cur.Top, 0)
			assert.GreaterOrEqual(t, cur.Bottom, 0)

			assert.LessOrEqual(t, cur.Left, prev.Left, "left margin grew at %g", d)
			assert.LessOrEqual(t, cur.Right, prev.Right, "right margin grew at %g", d)
			assert.LessOrEqual(t, cur.Top, prev.Top, "top margin grew at %g", d)
			assert.LessOrEqual(t, cur.Bottom, prev.Bottom, "bottom margin grew at %g", d)
			prev = cur
		}
	}
}

func TestBuildWindows_StaysInsideImage(t *testing.T) {
	roi := DefaultConfig().ROI
	const width, height = 1280, 720

	for d := 0.1; d <= 6.0; d += 0.1 {
		w, err := BuildWindows(roi, DefaultExpandMargins(), DefaultMaskMargins(), d, width, height)
		require.NoError(t, err)

		for _, r := range []Region{w.Expanded, w.Mask} {
			assert.GreaterOrEqual(t, r.X, 0)
			assert.GreaterOrEqual(t, r.Y, 0)
			assert.LessOrEqual(t, r.MaxX(), width)
			assert.LessOrEqual(t, r.MaxY(), height)
		}
		// The masking window never reaches past the sampling window.
		assert.GreaterOrEqual(t, w.Mask.X, w.Expanded.X)
		assert.LessOrEqual(t, w.Mask.MaxX(), w.Expanded.MaxX())
	}
}

func TestBuildWindows_TwoPointFiveMetres(t *testing.T) {
	roi := Region{X: 680, Y: 350, Width: 30, Height: 20}
	w, err := BuildWindows(roi, DefaultExpandMargins(), DefaultMaskMargins(), 2.5, 1280, 720)
	require.NoError(t, err)

	assert.Equal(t, Region{X: 660, Y: 250, Width: 250, Height: 220}, w.Expanded)
	assert.Equal(t, Region{X: 660, Y: 326, Width: 210, Height: 68}, w.Mask)
}

func TestBuildWindows_ClampsAtCloseRange(t *testing.T) {
	roi := Region{X: 680, Y: 350, Width: 30, Height: 20}
	w, err := BuildWindows(roi, DefaultExpandMargins(), DefaultMaskMargins(), 0.1, 1280, 720)
	require.NoError(t, err)

	// 500/0.1 and 250/0.1 overshoot every edge except the left one.
	left := 680 - int(50/0.1)
	assert.Equal(t, Region{X: left, Y: 0, Width: 1280 - left, Height: 720}, w.Expanded)
}

func TestBuildWindows_ZeroDistance(t *testing.T) {
	w, err := BuildWindows(Region{X: 1, Y: 1, Width: 1, Height: 1}, DefaultExpandMargins(), DefaultMaskMargins(), 0, 10, 10)
	assert.True(t, errors.Is(err, ErrZeroDistance))
	assert.Equal(t, Windows{}, w)
}

func TestRegion_Clip(t *testing.T) {
	tests := []struct {
		name string
		in   Region
		want Region
	}{
		{"inside", Region{X: 1, Y: 2, Width: 3, Height: 4}, Region{X: 1, Y: 2, Width: 3, Height: 4}},
		{"overhangs right and bottom", Region{X: 8, Y: 8, Width: 5, Height: 5}, Region{X: 8, Y: 8, Width: 2, Height: 2}},
		{"negative origin", Region{X: -3, Y: -3, Width: 5, Height: 5}, Region{X: 0, Y: 0, Width: 2, Height: 2}},
		{"fully outside", Region{X: 20, Y: 20, Width: 5, Height: 5}, Region{X: 10, Y: 10, Width: 0, Height: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Clip(10, 10))
		})
	}
}

func TestRegion_Contains(t *testing.T) {
	r := Region{X: 2, Y: 3, Width: 2, Height: 2}
	assert.True(t, r.Contains(2, 3))
	assert.True(t, r.Contains(3, 4))
	assert.False(t, r.Contains(4, 4))
	assert.False(t, r.Contains(2, 5))
	assert.False(t, Region{}.Contains(0, 0))
}
