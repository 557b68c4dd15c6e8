// Package localization finds the robot's pose at the start of a run by backing into the two
// walls of its starting corner.
package localization

import (
	"fmt"
	"math"

	"github.com/pkg/errors"

	"github.com/gridbot/gridbot/field"
	"github.com/gridbot/gridbot/robot"
	"github.com/gridbot/gridbot/spatialmath"
)

// Wall names one of the two walls meeting at a corner, as seen from the corner looking into the
// field.
type Wall int

const (
	// LeftWall is on the left looking out of the corner.
	LeftWall Wall = iota
	// RightWall is on the right looking out of the corner.
	RightWall
)

func (w Wall) String() string {
	if w == LeftWall {
		return "left"
	}
	return "right"
}

// Other returns the wall across the corner.
func (w Wall) Other() Wall {
	if w == LeftWall {
		return RightWall
	}
	return LeftWall
}

// Axis is a coordinate axis.
type Axis int

// Axes.
const (
	AxisX Axis = iota
	AxisY
)

func (a Axis) String() string {
	if a == AxisX {
		return "x"
	}
	return "y"
}

// A Snap is what backing squarely into a wall tells the robot: one coordinate and the heading.
type Snap struct {
	Axis    Axis
	Value   float64
	Heading float64
}

func (s Snap) String() string {
	return fmt.Sprintf("%s=%.2f θ=%.0f°", s.Axis, s.Value, spatialmath.FromRadians(s.Heading, spatialmath.PolarDegrees))
}

// Apply overwrites the snapped coordinate and the heading of pose.
func (s Snap) Apply(pose *spatialmath.Pose) {
	pose.Update(func(x, y, _ float64) (float64, float64, float64) {
		if s.Axis == AxisX {
			return s.Value, y, s.Heading
		}
		return x, s.Value, s.Heading
	})
}

// SnapFor returns the snap for a robot whose rear bumper touches wall of corner. Corners are
// numbered counter-clockwise from the bottom left; the robot faces away from the wall.
func SnapFor(corner int, wall Wall, dims field.Dimensions, body robot.Body) (Snap, error) {
	near := -dims.TileWidth + body.BumperToCenter
	far := float64(dims.MapDimension-1)*dims.TileWidth - body.BumperToCenter

	// each corner's left wall is the previous corner's right wall
	snaps := []Snap{
		{AxisX, near, 0},
		{AxisY, near, math.Pi / 2},
		{AxisX, far, math.Pi},
		{AxisY, far, 3 * math.Pi / 2},
	}
	if corner < field.BottomLeft || corner > field.TopLeft {
		return Snap{}, errors.Errorf("starting corner must be between 1 and 4, got %d", corner)
	}
	i := corner - 1
	if wall == RightWall {
		i = corner % 4
	}
	return snaps[i], nil
}
