// Package fake implements sensors that look at a simulated scene from a mount point on the robot.
package fake

import (
	"context"
	"math"
	"sync"

	"github.com/golang/geo/r2"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/gridbot/gridbot/components/sensor"
	"github.com/gridbot/gridbot/spatialmath"
)

// Scene is what the fake sensors observe.
type Scene interface {
	// Range returns the distance from origin to the first surface along the polar heading.
	Range(origin r2.Point, heading float64) float64
	// Reflectance returns the floor intensity at p, in [0, 1].
	Reflectance(p r2.Point) float64
	// SurfaceColor returns the color of the first surface within reach along the heading, or
	// black when there is none.
	SurfaceColor(origin r2.Point, heading, reach float64) colorful.Color
}

// PoseFunc returns the true pose of the robot carrying a sensor.
type PoseFunc func() spatialmath.Snapshot

// Mount places a sensor on the robot. Forward and Left are offsets from the center of rotation
// in centimeters; Angle is the direction the sensor faces relative to the heading, in radians.
type Mount struct {
	Forward float64
	Left    float64
	Angle   float64
}

// Place returns where the sensor is and which way it faces for a robot at s.
func (m Mount) Place(s spatialmath.Snapshot) (r2.Point, float64) {
	sin, cos := math.Sincos(s.Heading)
	origin := r2.Point{
		X: s.X + m.Forward*cos - m.Left*sin,
		Y: s.Y + m.Forward*sin + m.Left*cos,
	}
	return origin, spatialmath.NormalizeRadians(s.Heading + m.Angle)
}

// MaxRange is the farthest a DistanceSensor reports, in centimeters.
const MaxRange = 255.

// DistanceSensor is a raw range finder. Every glitchEvery-th reading returns glitchValue
// instead of the true range, like a lost echo.
type DistanceSensor struct {
	name  string
	scene Scene
	pose  PoseFunc
	mount Mount

	mu          sync.Mutex
	readings    int
	glitchEvery int
	glitchValue float64
}

var _ sensor.DistanceSensor = &DistanceSensor{}

// NewDistanceSensor returns a range finder at mount.
func NewDistanceSensor(name string, scene Scene, pose PoseFunc, mount Mount) *DistanceSensor {
	return &DistanceSensor{name: name, scene: scene, pose: pose, mount: mount}
}

// SetGlitch makes every n-th reading return value. Zero turns glitches off.
func (s *DistanceSensor) SetGlitch(n int, value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.glitchEvery = n
	s.glitchValue = value
}

// Name returns the sensor name.
func (s *DistanceSensor) Name() string {
	return s.name
}

// Distance returns the range in centimeters.
func (s *DistanceSensor) Distance(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	s.readings++
	glitch := s.glitchEvery > 0 && s.readings%s.glitchEvery == 0
	value := s.glitchValue
	s.mu.Unlock()
	if glitch {
		return value, nil
	}
	origin, heading := s.mount.Place(s.pose())
	return math.Min(s.scene.Range(origin, heading), MaxRange), nil
}

// LightSensor reads floor reflectance directly below its mount.
type LightSensor struct {
	name  string
	scene Scene
	pose  PoseFunc
	mount Mount
}

var _ sensor.LightSensor = &LightSensor{}

// NewLightSensor returns a downward light sensor at mount.
func NewLightSensor(name string, scene Scene, pose PoseFunc, mount Mount) *LightSensor {
	return &LightSensor{name: name, scene: scene, pose: pose, mount: mount}
}

// Name returns the sensor name.
func (s *LightSensor) Name() string {
	return s.name
}

// Intensity returns the reflectance under the sensor.
func (s *LightSensor) Intensity(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	origin, _ := s.mount.Place(s.pose())
	return s.scene.Reflectance(origin), nil
}

// ColorSensor reads the color of whatever is within reach in front of it.
type ColorSensor struct {
	name  string
	scene Scene
	pose  PoseFunc
	mount Mount
	reach float64
}

var _ sensor.ColorSensor = &ColorSensor{}

// NewColorSensor returns a forward color sensor at mount that sees surfaces up to reach cm away.
func NewColorSensor(name string, scene Scene, pose PoseFunc, mount Mount, reach float64) *ColorSensor {
	return &ColorSensor{name: name, scene: scene, pose: pose, mount: mount, reach: reach}
}

// Name returns the sensor name.
func (s *ColorSensor) Name() string {
	return s.name
}

// Color returns the color in front of the sensor.
func (s *ColorSensor) Color(ctx context.Context) (colorful.Color, error) {
	if err := ctx.Err(); err != nil {
		return colorful.Color{}, err
	}
	origin, heading := s.mount.Place(s.pose())
	return s.scene.SurfaceColor(origin, heading, s.reach), nil
}
