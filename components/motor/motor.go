// Package motor defines the regulated motors that turn the wheels, close the gripper and raise
// the lift.
package motor

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.viam.com/utils"
)

// A Motor is a speed-regulated motor with a tachometer. Speeds are in degrees per second,
// accelerations in degrees per second squared and positions in degrees of shaft rotation.
//
// Rotate example:
//
//	// Turn the left wheel one revolution backwards, then wait for it.
//	if err := left.Rotate(ctx, -360); err != nil {
//		return err
//	}
//	return motor.WaitForStop(ctx, 10*time.Millisecond, left)
type Motor interface {
	// Name returns the name the motor was created with.
	Name() string

	// SetSpeed sets the speed used by every later motion command.
	SetSpeed(ctx context.Context, degsPerSec float64) error

	// SetAcceleration sets the ramp used when the speed changes.
	SetAcceleration(ctx context.Context, degsPerSec2 float64) error

	// Rotate turns the shaft by a relative angle and returns without waiting. A negative angle
	// runs backwards. A new command replaces the one in progress.
	Rotate(ctx context.Context, degrees float64) error

	// Forward runs the motor forward until stopped.
	Forward(ctx context.Context) error

	// Backward runs the motor backward until stopped.
	Backward(ctx context.Context) error

	// Stop stops the motor. With brake set the shaft is held, otherwise it coasts.
	Stop(ctx context.Context, brake bool) error

	// IsMoving reports whether a command is still being executed.
	IsMoving(ctx context.Context) (bool, error)

	// Position returns the tachometer count in degrees since the motor was created.
	Position(ctx context.Context) (float64, error)

	// Speed returns the speed last set with SetSpeed.
	Speed(ctx context.Context) (float64, error)
}

// CheckSpeed checks if the input speed is too slow or fast and returns a warning and/or error.
func CheckSpeed(degsPerSec, max float64) (string, error) {
	switch speed := math.Abs(degsPerSec); {
	case speed < 0.1:
		return "motor speed is nearly 0 deg_per_sec", ErrZeroSpeed
	case max > 0 && speed > max-0.1:
		return fmt.Sprintf("motor speed is nearly the max deg_per_sec (%f)", max), nil
	default:
		return "", nil
	}
}

// GetSign returns the sign of the float as a helper for getting
// the intended direction of travel of a motor.
func GetSign(x float64) float64 {
	if x == 0 {
		return 0
	}
	if math.Signbit(x) {
		return -1.0
	}
	return 1.0
}

// WaitForStop polls the motors every pollTime until none of them is moving.
func WaitForStop(ctx context.Context, pollTime time.Duration, motors ...Motor) error {
	for {
		anyMoving := false
		for _, m := range motors {
			moving, err := m.IsMoving(ctx)
			if err != nil {
				return NewMotorError(m.Name(), err)
			}
			anyMoving = anyMoving || moving
		}
		if !anyMoving {
			return nil
		}
		if !utils.SelectContextOrWait(ctx, pollTime) {
			return ctx.Err()
		}
	}
}

// RotateAndWait turns m by degrees and blocks until it stops.
func RotateAndWait(ctx context.Context, m Motor, degrees float64, pollTime time.Duration) error {
	if err := m.Rotate(ctx, degrees); err != nil {
		return NewMotorError(m.Name(), err)
	}
	return WaitForStop(ctx, pollTime, m)
}
