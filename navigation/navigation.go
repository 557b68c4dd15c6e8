// Package navigation turns pose-relative motion requests into wheel commands.
package navigation

import (
	"context"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/gridbot/gridbot/spatialmath"
)

// ErrInterrupted is returned by a blocking motion whose wait was ended by Interrupt or by a
// newer blocking command. The newer command owns the wheels from then on.
var ErrInterrupted = errors.New("motion interrupted")

// Wheel selects one of the two drive wheels.
type Wheel int

const (
	// LeftWheel is the wheel on the +90° side of the heading.
	LeftWheel Wheel = iota
	// RightWheel is the wheel on the −90° side of the heading.
	RightWheel
)

func (w Wheel) String() string {
	if w == LeftWheel {
		return "left"
	}
	return "right"
}

// A Navigator moves the robot relative to its pose estimate. Every procedure on the robot talks
// to the wheels through one Navigator.
//
// Commands with a blocking argument return once the wheels stop when it is set, and immediately
// after issuing the wheel commands otherwise.
type Navigator interface {
	// Pose returns the pose estimate motions are planned from.
	Pose() *spatialmath.Pose

	// RotateBy turns in place by a relative angle expressed in cs.
	RotateBy(ctx context.Context, angle float64, cs spatialmath.CoordinateSystem, blocking bool) error

	// TurnTo turns in place the short way to an absolute heading expressed in cs.
	TurnTo(ctx context.Context, angle float64, cs spatialmath.CoordinateSystem, blocking bool) error

	// TravelDistance drives straight along the heading. A negative distance backs up.
	TravelDistance(ctx context.Context, distance float64, blocking bool) error

	// TravelTo turns to face target, always waiting for the turn, then drives the distance to it.
	// It records target as the destination and marks the robot as travelling; a blocking call
	// clears the mark when it arrives.
	TravelTo(ctx context.Context, target r2.Point, blocking bool) error

	// Spin turns in place at speed until stopped.
	Spin(ctx context.Context, speed float64, ccw bool) error

	// Forward drives straight ahead at speed until stopped.
	Forward(ctx context.Context, speed float64) error

	// DriveWheels runs both wheels forward at their own speeds until stopped.
	DriveWheels(ctx context.Context, leftSpeed, rightSpeed float64) error

	// RotateWheel turns one wheel by degrees at the current speed.
	RotateWheel(ctx context.Context, wheel Wheel, degrees float64, blocking bool) error

	// Stop brakes both wheels.
	Stop(ctx context.Context) error

	// IsMoving reports whether either wheel is moving.
	IsMoving(ctx context.Context) (bool, error)

	// WaitForMotion blocks until both wheels stop.
	WaitForMotion(ctx context.Context) error

	// IsTravelling reports whether a TravelTo is in progress.
	IsTravelling() bool

	// SetTravelling overrides the travelling mark.
	SetTravelling(travelling bool)

	// Destination returns the target of the last TravelTo.
	Destination() r2.Point

	// Interrupt ends any blocking wait in progress, clears the travelling mark and stops the
	// wheels.
	Interrupt(ctx context.Context) error

	// WaitUntilNear blocks until the pose is within tolerance of p.
	WaitUntilNear(ctx context.Context, p r2.Point, tolerance float64) error
}

// Config holds the fixed speed profiles of a Driver. Speeds are wheel degrees per second.
type Config struct {
	ForwardSpeed float64 `json:"forward_speed"`
	TurnSpeed    float64 `json:"turn_speed"`
	Acceleration float64 `json:"acceleration"`
	PollMs       int     `json:"poll_ms"`
}

// DefaultConfig returns the speeds the competition robot was tuned with.
func DefaultConfig() Config {
	return Config{
		ForwardSpeed: 200,
		TurnSpeed:    140,
		Acceleration: 400,
		PollMs:       10,
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.ForwardSpeed <= 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "forward_speed")
	}
	if cfg.TurnSpeed <= 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "turn_speed")
	}
	if cfg.Acceleration <= 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "acceleration")
	}
	if cfg.PollMs <= 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "poll_ms")
	}
	return nil
}
