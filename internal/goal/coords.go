package goal

import (
	"math"

	"github.com/golang/geo/r2"
)

// SensorToHub maps a vector from the sampling plane into the frame the hub
// consumers expect. The sampling plane's second axis grows away from the
// hub's positive rotation sense, so it is inverted; the first axis is kept.
// This flip is intentional and is the only place the convention lives.
func SensorToHub(p r2.Point) r2.Point {
	return r2.Point{X: p.X, Y: -p.Y}
}

// HeadingDegrees returns the counter-clockwise angle of p from the +X axis.
func HeadingDegrees(p r2.Point) float64 {
	return math.Atan2(p.Y, p.X) * 180 / math.Pi
}

// GoalAngle converts a fitted line direction into the published angle.
func GoalAngle(direction r2.Point) float64 {
	return HeadingDegrees(SensorToHub(direction))
}
