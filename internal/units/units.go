// Package units provides shared constants and conversions for length units
package units

import (
	"strconv"
	"strings"
)

// Unit constants
const (
	Metres      = "m"
	Centimetres = "cm"
	Millimetres = "mm"
	Feet        = "ft"
	Inches      = "in"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{Metres, Centimetres, Millimetres, Feet, Inches}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// ConvertLength converts a length in metres to the target units.
// Estimates are computed and published in metres.
func ConvertLength(metres float64, targetUnits string) float64 {
	switch targetUnits {
	case Centimetres:
		return metres * 100
	case Millimetres:
		return metres * 1000
	case Feet:
		return metres / 0.3048
	case Inches:
		return metres / 0.0254
	case Metres:
		return metres
	default:
		return metres // default to metres if unknown unit
	}
}

// FormatLength renders metres in the target units with the unit suffix.
func FormatLength(metres float64, targetUnits string) string {
	if !IsValid(targetUnits) {
		targetUnits = Metres
	}
	prec := 3
	switch targetUnits {
	case Centimetres, Inches:
		prec = 1
	case Millimetres:
		prec = 0
	}
	return strconv.FormatFloat(ConvertLength(metres, targetUnits), 'f', prec, 64) + " " + targetUnits
}
