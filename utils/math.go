// Package utils contains small math and concurrency helpers shared across gridbot packages.
package utils

import "math"

// DegToRad converts degrees to radians.
func DegToRad(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// RadToDeg converts radians to degrees.
func RadToDeg(radians float64) float64 {
	return radians * 180 / math.Pi
}

// AngleDiffDeg returns the closest difference from the two given
// angles. The arguments are commutative.
func AngleDiffDeg(a1, a2 float64) float64 {
	return float64(180) - math.Abs(math.Abs(ModAngDeg(a1)-ModAngDeg(a2))-float64(180))
}

// ModAngDeg wraps an angle in degrees into [0, 360).
func ModAngDeg(ang float64) float64 {
	ret := math.Mod(math.Mod(ang, 360)+360, 360)
	if ret >= 360 {
		return 0
	}
	return ret
}

// Clamp restricts v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
