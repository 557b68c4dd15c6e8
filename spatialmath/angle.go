package spatialmath

import (
	"math"

	"github.com/gridbot/gridbot/utils"
)

const twoPi = 2 * math.Pi

// NormalizeRadians wraps an angle into [0, 2π).
func NormalizeRadians(angle float64) float64 {
	ret := math.Mod(angle, twoPi)
	if ret < 0 {
		ret += twoPi
	}
	// tiny negative inputs round up to exactly 2π
	if ret >= twoPi {
		ret = 0
	}
	return ret
}

// NormalizeDegrees wraps an angle into [0, 360).
func NormalizeDegrees(angle float64) float64 {
	return utils.ModAngDeg(angle)
}

// ShortestRadians returns the signed rotation in (−π, π] that takes heading from to heading to.
// A half turn is always reported as +π.
func ShortestRadians(from, to float64) float64 {
	d := math.Mod(to-from, twoPi)
	if d <= -math.Pi {
		d += twoPi
	} else if d > math.Pi {
		d -= twoPi
	}
	return d
}

// ShortestDegrees is ShortestRadians in degrees, with range (−180, 180].
func ShortestDegrees(from, to float64) float64 {
	d := math.Mod(to-from, 360)
	if d <= -180 {
		d += 360
	} else if d > 180 {
		d -= 360
	}
	return d
}

// CCWAngleBetween returns how far one must rotate counter-clockwise from `from` to reach `to`,
// in [0, 2π).
func CCWAngleBetween(from, to float64) float64 {
	return NormalizeRadians(to - from)
}

// PolarToCompassDegrees converts a counter-clockwise-from-+x angle in degrees to a
// clockwise-from-+y one.
func PolarToCompassDegrees(polar float64) float64 {
	return NormalizeDegrees(90 - polar)
}

// CompassToPolarDegrees is the inverse of PolarToCompassDegrees.
func CompassToPolarDegrees(compass float64) float64 {
	return NormalizeDegrees(90 - compass)
}

// ToRadians converts an absolute angle expressed in cs to polar radians in [0, 2π).
func ToRadians(angle float64, cs CoordinateSystem) float64 {
	switch cs {
	case PolarDegrees:
		return NormalizeRadians(utils.DegToRad(angle))
	case CompassDegrees:
		return NormalizeRadians(utils.DegToRad(CompassToPolarDegrees(angle)))
	case Cartesian, PolarRadians:
	}
	return NormalizeRadians(angle)
}

// FromRadians converts an absolute polar angle in radians to cs.
func FromRadians(angle float64, cs CoordinateSystem) float64 {
	angle = NormalizeRadians(angle)
	switch cs {
	case PolarDegrees:
		return NormalizeDegrees(utils.RadToDeg(angle))
	case CompassDegrees:
		return PolarToCompassDegrees(utils.RadToDeg(angle))
	case Cartesian, PolarRadians:
	}
	return angle
}

// RotationToRadians converts a relative rotation expressed in cs to counter-clockwise radians.
// Compass rotations are clockwise-positive, so their sign flips.
func RotationToRadians(rotation float64, cs CoordinateSystem) float64 {
	switch cs {
	case PolarDegrees:
		return utils.DegToRad(rotation)
	case CompassDegrees:
		return -utils.DegToRad(rotation)
	case Cartesian, PolarRadians:
	}
	return rotation
}

// RotationToCompassDegrees converts a relative rotation expressed in cs to clockwise-positive
// degrees, the unit the wheels are driven in.
func RotationToCompassDegrees(rotation float64, cs CoordinateSystem) float64 {
	switch cs {
	case PolarDegrees:
		return -rotation
	case Cartesian, PolarRadians:
		return -utils.RadToDeg(rotation)
	case CompassDegrees:
	}
	return rotation
}
