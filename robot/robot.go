// Package robot holds what every task on the robot shares: its physical dimensions, the mission
// state flags and the signal channel to the operator.
package robot

import (
	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// Body describes the chassis. Lengths are in centimeters.
type Body struct {
	WheelRadius float64 `json:"wheel_radius"`
	Track       float64 `json:"track"`
	// BumperToCenter is how far the rear bumper sits behind the center of rotation.
	BumperToCenter float64 `json:"bumper_to_center"`
	// RangeToCenter is how far the front range finder sits ahead of the center of rotation.
	RangeToCenter float64 `json:"range_to_center"`
	// LightToCenter and LightAngleDeg place the downward light sensor in polar form around the
	// center, the angle measured counter-clockwise from the heading.
	LightToCenter float64 `json:"light_to_center"`
	LightAngleDeg float64 `json:"light_angle_deg"`
}

// DefaultBody returns the dimensions of the competition chassis.
func DefaultBody() Body {
	return Body{
		WheelRadius:    2.03,
		Track:          11.05,
		BumperToCenter: 9.1,
		RangeToCenter:  20.1,
		LightToCenter:  15.8,
		LightAngleDeg:  -34,
	}
}

// Validate ensures all parts of the config are valid.
func (b *Body) Validate(path string) error {
	if b.WheelRadius <= 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "wheel_radius")
	}
	if b.Track <= 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "track")
	}
	if b.BumperToCenter < 0 || b.RangeToCenter < 0 || b.LightToCenter < 0 {
		return utils.NewConfigValidationError(path, errors.New("sensor and bumper offsets must not be negative"))
	}
	return nil
}
