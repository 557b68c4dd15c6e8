package inject

import (
	"context"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/gridbot/gridbot/components/sensor"
)

// DistanceSensor is an injected range finder.
type DistanceSensor struct {
	sensor.DistanceSensor
	name         string
	DistanceFunc func(ctx context.Context) (float64, error)
}

// NewDistanceSensor returns a new injected range finder.
func NewDistanceSensor(name string) *DistanceSensor {
	return &DistanceSensor{name: name}
}

// Name returns the name of the sensor.
func (s *DistanceSensor) Name() string {
	return s.name
}

// Distance calls the injected Distance or the real version.
func (s *DistanceSensor) Distance(ctx context.Context) (float64, error) {
	if s.DistanceFunc == nil {
		return s.DistanceSensor.Distance(ctx)
	}
	return s.DistanceFunc(ctx)
}

// LightSensor is an injected light sensor.
type LightSensor struct {
	sensor.LightSensor
	name          string
	IntensityFunc func(ctx context.Context) (float64, error)
}

// NewLightSensor returns a new injected light sensor.
func NewLightSensor(name string) *LightSensor {
	return &LightSensor{name: name}
}

// Name returns the name of the sensor.
func (s *LightSensor) Name() string {
	return s.name
}

// Intensity calls the injected Intensity or the real version.
func (s *LightSensor) Intensity(ctx context.Context) (float64, error) {
	if s.IntensityFunc == nil {
		return s.LightSensor.Intensity(ctx)
	}
	return s.IntensityFunc(ctx)
}

// ColorSensor is an injected color sensor.
type ColorSensor struct {
	sensor.ColorSensor
	name      string
	ColorFunc func(ctx context.Context) (colorful.Color, error)
}

// NewColorSensor returns a new injected color sensor.
func NewColorSensor(name string) *ColorSensor {
	return &ColorSensor{name: name}
}

// Name returns the name of the sensor.
func (s *ColorSensor) Name() string {
	return s.name
}

// Color calls the injected Color or the real version.
func (s *ColorSensor) Color(ctx context.Context) (colorful.Color, error) {
	if s.ColorFunc == nil {
		return s.ColorSensor.Color(ctx)
	}
	return s.ColorFunc(ctx)
}
