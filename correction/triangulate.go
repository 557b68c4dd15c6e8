package correction

import (
	"math"

	"github.com/golang/geo/r2"

	"github.com/gridbot/gridbot/spatialmath"
)

// Triangulate recovers the pose from the headings (polar radians) at which the light sensor
// crossed the two grid lines through corner during one counter-clockwise turn. The robot must
// sit in the quadrant below and left of corner, and the crossings must alternate vertical,
// horizontal, vertical, horizontal starting with the vertical line.
//
// The sensor is lightRadius from the center of rotation at lightAngle radians from the heading.
// current is the estimated heading when the turn ended; the corrected heading is current shifted
// by the average of the errors measured on the two lines.
func Triangulate(crossings [4]float64, current float64, corner r2.Point, lightRadius, lightAngle float64) spatialmath.Snapshot {
	halfY := spatialmath.CCWAngleBetween(crossings[0], crossings[2]) / 2
	halfX := spatialmath.CCWAngleBetween(crossings[1], crossings[3]) / 2

	x := -lightRadius * math.Cos(halfY)
	y := -lightRadius * math.Cos(halfX)

	// where the sensor, not the heading, pointed at the first crossing of each line
	yOrient := spatialmath.NormalizeRadians(crossings[0] + lightAngle)
	xOrient := spatialmath.NormalizeRadians(crossings[1] + lightAngle)

	errY := spatialmath.ShortestRadians(0, 2*math.Pi-yOrient-halfY)
	errX := spatialmath.ShortestRadians(0, math.Pi/2-xOrient-halfX)

	return spatialmath.Snapshot{
		X:       corner.X + x,
		Y:       corner.Y + y,
		Heading: spatialmath.NormalizeRadians(current + (errY+errX)/2),
	}
}
