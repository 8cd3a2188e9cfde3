// Package units provides shared constants and conversions for IMU units.
// Decoded IMU samples carry acceleration in g and angular rate in deg/s.
package units

import "math"

// Acceleration units.
const (
	G    = "g"
	MPS2 = "mps2"
)

// Angular rate units.
const (
	DPS   = "dps"
	RADPS = "radps"
)

// StandardGravity is one g in m/s².
const StandardGravity = 9.80665

// ValidAccelUnits contains all valid acceleration unit values.
var ValidAccelUnits = []string{G, MPS2}

// ValidRateUnits contains all valid angular rate unit values.
var ValidRateUnits = []string{DPS, RADPS}

// IsValidAccel checks if the given unit is a known acceleration unit.
func IsValidAccel(unit string) bool { return contains(ValidAccelUnits, unit) }

// IsValidRate checks if the given unit is a known angular rate unit.
func IsValidRate(unit string) bool { return contains(ValidRateUnits, unit) }

// ConvertAccel converts an acceleration in g to the target units.
// Unknown units leave the value in g.
func ConvertAccel(g float64, target string) float64 {
	switch target {
	case MPS2:
		return g * StandardGravity
	default:
		return g
	}
}

// ConvertRate converts an angular rate in deg/s to the target units.
// Unknown units leave the value in deg/s.
func ConvertRate(dps float64, target string) float64 {
	switch target {
	case RADPS:
		return dps * math.Pi / 180
	default:
		return dps
	}
}

// Label returns the printable symbol for a unit constant.
func Label(unit string) string {
	switch unit {
	case MPS2:
		return "m/s²"
	case DPS:
		return "deg/s"
	case RADPS:
		return "rad/s"
	default:
		return unit
	}
}

func contains(list []string, v string) bool {
	for _, u := range list {
		if u == v {
			return true
		}
	}
	return false
}
