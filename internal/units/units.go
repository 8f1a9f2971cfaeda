// Package units provides shared constants and validation for distance units
package units

// Unit constants
const (
	CM = "cm"
	M  = "m"
	IN = "in"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{CM, M, IN}

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
	return "cm, m, in"
}

// ConvertDistance converts a distance from centimeters to the target units.
// The pipeline stores distances in cm.
func ConvertDistance(distanceCm float64, targetUnits string) float64 {
	switch targetUnits {
	case M:
		return distanceCm / 100
	case IN:
		return distanceCm / 2.54
	case CM:
		return distanceCm // no conversion needed
	default:
		return distanceCm // default to cm if unknown unit
	}
}
