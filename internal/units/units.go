// Package units provides shared constants and validation for speed units.
package units

// Unit constants
const (
	KMH = "kmh"
	MPH = "mph"
	MPS = "mps"
)

// ValidUnits contains all valid unit values.
var ValidUnits = []string{KMH, MPH, MPS}

// IsValid checks if the given unit is in the list of valid units.
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages.
func GetValidUnitsString() string {
	return "kmh, mph, mps"
}

// ConvertSpeed converts a speed from kilometres per hour to the target units.
// Telemetry feeds and the database carry speeds in km/h.
func ConvertSpeed(speedKmh float64, targetUnits string) float64 {
	switch targetUnits {
	case MPH:
		return speedKmh * 0.621371 // km/h to mph
	case MPS:
		return speedKmh / 3.6 // km/h to m/s
	case KMH:
		return speedKmh // no conversion needed
	default:
		return speedKmh // default to km/h if unknown unit
	}
}
