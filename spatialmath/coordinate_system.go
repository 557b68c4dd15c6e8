// Package spatialmath defines the 2D pose every gridbot component reads and writes, and the
// angle conventions used to talk about it.
package spatialmath

import (
	"fmt"

	"github.com/pkg/errors"
)

// CoordinateSystem names a convention for expressing a position or an angle.
//
// Positions may be given as Cartesian (x, y) or as polar (r, θ) with θ in radians or degrees.
// Angles given in CompassDegrees start at +y and grow clockwise; every other system measures
// from +x counter-clockwise. Cartesian angles are radians.
type CoordinateSystem int

const (
	// Cartesian is (x, y) for positions and polar radians for angles.
	Cartesian CoordinateSystem = iota
	// PolarRadians is (r, θ) with θ in radians, counter-clockwise from +x.
	PolarRadians
	// PolarDegrees is (r, θ) with θ in degrees, counter-clockwise from +x.
	PolarDegrees
	// CompassDegrees is (r, θ) with θ in degrees, clockwise from +y.
	CompassDegrees
)

var coordinateSystemNames = map[CoordinateSystem]string{
	Cartesian:      "cartesian",
	PolarRadians:   "polar_rad",
	PolarDegrees:   "polar_deg",
	CompassDegrees: "compass_deg",
}

func (cs CoordinateSystem) String() string {
	if name, ok := coordinateSystemNames[cs]; ok {
		return name
	}
	return fmt.Sprintf("coordinate_system(%d)", int(cs))
}

// CoordinateSystemFromString parses the names produced by String.
func CoordinateSystemFromString(s string) (CoordinateSystem, error) {
	for cs, name := range coordinateSystemNames {
		if name == s {
			return cs, nil
		}
	}
	return Cartesian, errors.Errorf("unknown coordinate system %q", s)
}

// InDegrees reports whether angles in this system are expressed in degrees.
func (cs CoordinateSystem) InDegrees() bool {
	return cs == PolarDegrees || cs == CompassDegrees
}
