package motor

import "github.com/pkg/errors"

// ErrZeroSpeed is returned for a request to move a motor at zero speed (i.e., moving the motor
// without moving the motor).
var ErrZeroSpeed = errors.New("cannot move motor at a speed that is nearly 0")

// NewMotorError wraps err with the name of the motor that produced it.
func NewMotorError(motorName string, err error) error {
	return errors.Wrapf(err, "motor %s", motorName)
}

// NewNegativeSpeedError returns an error for a speed below zero. Direction is carried by the
// command, never by the speed.
func NewNegativeSpeedError(motorName string, speed float64) error {
	return errors.Errorf("motor %s: speed must not be negative, got %.1f", motorName, speed)
}
