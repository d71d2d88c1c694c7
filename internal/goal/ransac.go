package goal

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/mat"
)

// LineModel is a 2D line through Origin with unit Direction.
type LineModel struct {
	Origin    r2.Point
	Direction r2.Point
}

// Residual returns the perpendicular distance from p to the line.
func (m LineModel) Residual(p r2.Point) float64 {
	return math.Abs(p.Sub(m.Origin).Cross(m.Direction))
}

// LineFitConfig bounds the consensus search.
type LineFitConfig struct {
	MaxTrials         int
	ResidualThreshold float64
}

// DefaultLineFitConfig returns five trials with a 0.1 m residual threshold.
func DefaultLineFitConfig() LineFitConfig {
	return LineFitConfig{MaxTrials: 5, ResidualThreshold: 0.1}
}

// LineEstimate is the outcome of FitLine.
type LineEstimate struct {
	Model LineModel
	// Inliers[i] reports whether points[i] agreed with the best trial.
	Inliers     []bool
	InlierCount int
}

// Outliers returns the points rejected by the fit.
func (e *LineEstimate) Outliers(points []r2.Point) []r2.Point {
	var out []r2.Point
	for i, in := range e.Inliers {
		if !in {
			out = append(out, points[i])
		}
	}
	return out
}

// FitLine fits a line to points by random sample consensus. Each trial
// draws two distinct points, counts the points within the residual
// threshold of the line through them, and the trial with the most inliers
// wins (lower squared residual sum breaks ties). The winning direction is
// then refined by total least squares over its inliers.
//
// The direction is canonical: X >= 0, and Y > 0 when X is zero.
func FitLine(points []r2.Point, cfg LineFitConfig, rng *rand.Rand) (est *LineEstimate, err error) {
	if len(points) < 2 {
		return nil, ErrTooFewPoints
	}
	defer func() {
		if r := recover(); r != nil {
			est = nil
			err = fmt.Errorf("%w: %v", ErrNumerical, r)
		}
	}()

	trials := cfg.MaxTrials
	if trials < 1 {
		trials = 1
	}

	var (
		best      []bool
		bestCount = -1
		bestSSE   = math.Inf(1)
		mask      = make([]bool, len(points))
	)
	for t := 0; t < trials; t++ {
		i, j := sampleTwo(rng, len(points))
		model, ok := lineThrough(points[i], points[j])
		if !ok {
			continue
		}

		count := 0
		sse := 0.0
		for k, p := range points {
			res := model.Residual(p)
			mask[k] = res < cfg.ResidualThreshold
			if mask[k] {
				count++
				sse += res * res
			}
		}
		if count > bestCount || (count == bestCount && sse < bestSSE) {
			bestCount = count
			bestSSE = sse
			best = append(best[:0], mask...)
		}
	}
	if bestCount < 0 {
		return nil, ErrDegenerateSample
	}

	model, err := refineLine(points, best)
	if err != nil {
		return nil, err
	}
	return &LineEstimate{Model: model, Inliers: best, InlierCount: bestCount}, nil
}

// sampleTwo draws two distinct indices in [0, n). n must be at least 2.
func sampleTwo(rng *rand.Rand, n int) (int, int) {
	i := rng.Intn(n)
	j := rng.Intn(n - 1)
	if j >= i {
		j++
	}
	return i, j
}

func lineThrough(a, b r2.Point) (LineModel, bool) {
	d := b.Sub(a)
	if d.Norm() < 1e-12 {
		return LineModel{}, false
	}
	return LineModel{
		Origin:    a.Add(b).Mul(0.5),
		Direction: canonicalDirection(d.Normalize()),
	}, true
}

// refineLine returns the total-least-squares line through the selected
// points: the centroid and the first right singular vector of the centred
// coordinates.
func refineLine(points []r2.Point, selected []bool) (LineModel, error) {
	var n int
	var centroid r2.Point
	for i, p := range points {
		if selected[i] {
			centroid = centroid.Add(p)
			n++
		}
	}
	if n < 2 {
		return LineModel{}, ErrTooFewPoints
	}
	centroid = centroid.Mul(1 / float64(n))

	centred := mat.NewDense(n, 2, nil)
	row := 0
	for i, p := range points {
		if !selected[i] {
			continue
		}
		centred.Set(row, 0, p.X-centroid.X)
		centred.Set(row, 1, p.Y-centroid.Y)
		row++
	}

	var svd mat.SVD
	if ok := svd.Factorize(centred, mat.SVDThin); !ok {
		return LineModel{}, ErrNumerical
	}
	var v mat.Dense
	svd.VTo(&v)

	dir := r2.Point{X: v.At(0, 0), Y: v.At(1, 0)}
	norm := dir.Norm()
	if norm == 0 || math.IsNaN(norm) {
		return LineModel{}, ErrNumerical
	}
	return LineModel{
		Origin:    centroid,
		Direction: canonicalDirection(dir.Mul(1 / norm)),
	}, nil
}

func canonicalDirection(d r2.Point) r2.Point {
	if d.X < 0 || (d.X == 0 && d.Y < 0) {
		return d.Mul(-1)
	}
	return d
}
