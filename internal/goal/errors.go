package goal

import "errors"

var (
	// ErrInvalidFrame is returned for frames with missing depth, vertex or
	// colour data. Such frames are skipped without publishing.
	ErrInvalidFrame = errors.New("goal: frame is missing depth, vertex or colour data")
	// ErrZeroDistance is returned when the ROI average distance is zero.
	ErrZeroDistance = errors.New("goal: measured distance is zero")
	// ErrTooFewPoints is returned when fewer than two points reach the line fit.
	ErrTooFewPoints = errors.New("goal: too few points for a line fit")
	// ErrDegenerateSample is returned when no trial produced a usable line.
	ErrDegenerateSample = errors.New("goal: every sample was degenerate")
	// ErrNumerical is returned when the least-squares refinement fails.
	ErrNumerical = errors.New("goal: numerical failure in line refinement")
)
