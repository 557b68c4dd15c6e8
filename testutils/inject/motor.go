package inject

import (
	"context"

	"github.com/gridbot/gridbot/components/motor"
)

// Motor is an injected motor.
type Motor struct {
	motor.Motor
	name                string
	SetSpeedFunc        func(ctx context.Context, degsPerSec float64) error
	SetAccelerationFunc func(ctx context.Context, degsPerSec2 float64) error
	RotateFunc          func(ctx context.Context, degrees float64) error
	ForwardFunc         func(ctx context.Context) error
	BackwardFunc        func(ctx context.Context) error
	StopFunc            func(ctx context.Context, brake bool) error
	IsMovingFunc        func(ctx context.Context) (bool, error)
	PositionFunc        func(ctx context.Context) (float64, error)
	SpeedFunc           func(ctx context.Context) (float64, error)
}

// NewMotor returns a new injected motor.
func NewMotor(name string) *Motor {
	return &Motor{name: name}
}

// Name returns the name of the motor.
func (m *Motor) Name() string {
	return m.name
}

// SetSpeed calls the injected SetSpeed or the real version.
func (m *Motor) SetSpeed(ctx context.Context, degsPerSec float64) error {
	if m.SetSpeedFunc == nil {
		return m.Motor.SetSpeed(ctx, degsPerSec)
	}
	return m.SetSpeedFunc(ctx, degsPerSec)
}

// SetAcceleration calls the injected SetAcceleration or the real version.
func (m *Motor) SetAcceleration(ctx context.Context, degsPerSec2 float64) error {
	if m.SetAccelerationFunc == nil {
		return m.Motor.SetAcceleration(ctx, degsPerSec2)
	}
	return m.SetAccelerationFunc(ctx, degsPerSec2)
}

// Rotate calls the injected Rotate or the real version.
func (m *Motor) Rotate(ctx context.Context, degrees float64) error {
	if m.RotateFunc == nil {
		return m.Motor.Rotate(ctx, degrees)
	}
	return m.RotateFunc(ctx, degrees)
}

// Forward calls the injected Forward or the real version.
func (m *Motor) Forward(ctx context.Context) error {
	if m.ForwardFunc == nil {
		return m.Motor.Forward(ctx)
	}
	return m.ForwardFunc(ctx)
}

// Backward calls the injected Backward or the real version.
func (m *Motor) Backward(ctx context.Context) error {
	if m.BackwardFunc == nil {
		return m.Motor.Backward(ctx)
	}
	return m.BackwardFunc(ctx)
}

// Stop calls the injected Stop or the real version.
func (m *Motor) Stop(ctx context.Context, brake bool) error {
	if m.StopFunc == nil {
		return m.Motor.Stop(ctx, brake)
	}
	return m.StopFunc(ctx, brake)
}

// IsMoving calls the injected IsMoving or the real version.
func (m *Motor) IsMoving(ctx context.Context) (bool, error) {
	if m.IsMovingFunc == nil {
		return m.Motor.IsMoving(ctx)
	}
	return m.IsMovingFunc(ctx)
}

// Position calls the injected Position or the real version.
func (m *Motor) Position(ctx context.Context) (float64, error) {
	if m.PositionFunc == nil {
		return m.Motor.Position(ctx)
	}
	return m.PositionFunc(ctx)
}

// Speed calls the injected Speed or the real version.
func (m *Motor) Speed(ctx context.Context) (float64, error) {
	if m.SpeedFunc == nil {
		return m.Motor.Speed(ctx)
	}
	return m.SpeedFunc(ctx)
}
