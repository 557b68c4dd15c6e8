// Package sensor defines the sensing devices the robot decides with: two ultrasonic range
// finders, a downward light sensor and a forward color sensor.
package sensor

import (
	"context"

	"github.com/lucasb-eyer/go-colorful"
)

// A DistanceSensor measures the distance to the nearest surface in front of it.
type DistanceSensor interface {
	Name() string
	// Distance returns the range in centimeters.
	Distance(ctx context.Context) (float64, error)
}

// A LightSensor measures reflected light intensity, in [0, 1].
type LightSensor interface {
	Name() string
	Intensity(ctx context.Context) (float64, error)
}

// A ColorSensor reads the color of the surface directly in front of it.
type ColorSensor interface {
	Name() string
	Color(ctx context.Context) (colorful.Color, error)
}

// IsGreenDominant reports whether the green channel is strictly brighter than both the red and
// blue channels. Target blocks are green; everything else the robot bumps into is not.
func IsGreenDominant(c colorful.Color) bool {
	return c.G > c.R && c.G > c.B
}
