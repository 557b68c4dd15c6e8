package inject

import (
	"context"

	"github.com/golang/geo/r2"

	"github.com/gridbot/gridbot/navigation"
	"github.com/gridbot/gridbot/spatialmath"
)

// Navigator is an injected navigator.
type Navigator struct {
	navigation.Navigator
	PoseFunc           func() *spatialmath.Pose
	RotateByFunc       func(ctx context.Context, angle float64, cs spatialmath.CoordinateSystem, blocking bool) error
	TurnToFunc         func(ctx context.Context, angle float64, cs spatialmath.CoordinateSystem, blocking bool) error
	TravelDistanceFunc func(ctx context.Context, distance float64, blocking bool) error
	TravelToFunc       func(ctx context.Context, target r2.Point, blocking bool) error
	SpinFunc           func(ctx context.Context, speed float64, ccw bool) error
	ForwardFunc        func(ctx context.Context, speed float64) error
	DriveWheelsFunc    func(ctx context.Context, leftSpeed, rightSpeed float64) error
	RotateWheelFunc    func(ctx context.Context, wheel navigation.Wheel, degrees float64, blocking bool) error
	StopFunc           func(ctx context.Context) error
	IsMovingFunc       func(ctx context.Context) (bool, error)
	WaitForMotionFunc  func(ctx context.Context) error
	IsTravellingFunc   func() bool
	SetTravellingFunc  func(travelling bool)
	DestinationFunc    func() r2.Point
	InterruptFunc      func(ctx context.Context) error
	WaitUntilNearFunc  func(ctx context.Context, p r2.Point, tolerance float64) error
}

// NewNavigator returns a new injected navigator wrapping nav, which may be nil.
func NewNavigator(nav navigation.Navigator) *Navigator {
	return &Navigator{Navigator: nav}
}

// Pose calls the injected Pose or the real version.
func (n *Navigator) Pose() *spatialmath.Pose {
	if n.PoseFunc == nil {
		return n.Navigator.Pose()
	}
	return n.PoseFunc()
}

// RotateBy calls the injected RotateBy or the real version.
func (n *Navigator) RotateBy(ctx context.Context, angle float64, cs spatialmath.CoordinateSystem, blocking bool) error {
	if n.RotateByFunc == nil {
		return n.Navigator.RotateBy(ctx, angle, cs, blocking)
	}
	return n.RotateByFunc(ctx, angle, cs, blocking)
}

// TurnTo calls the injected TurnTo or the real version.
func (n *Navigator) TurnTo(ctx context.Context, angle float64, cs spatialmath.CoordinateSystem, blocking bool) error {
	if n.TurnToFunc == nil {
		return n.Navigator.TurnTo(ctx, angle, cs, blocking)
	}
	return n.TurnToFunc(ctx, angle, cs, blocking)
}

// TravelDistance calls the injected TravelDistance or the real version.
func (n *Navigator) TravelDistance(ctx context.Context, distance float64, blocking bool) error {
	if n.TravelDistanceFunc == nil {
		return n.Navigator.TravelDistance(ctx, distance, blocking)
	}
	return n.TravelDistanceFunc(ctx, distance, blocking)
}

// TravelTo calls the injected TravelTo or the real version.
func (n *Navigator) TravelTo(ctx context.Context, target r2.Point, blocking bool) error {
	if n.TravelToFunc == nil {
		return n.Navigator.TravelTo(ctx, target, blocking)
	}
	return n.TravelToFunc(ctx, target, blocking)
}

// Spin calls the injected Spin or the real version.
func (n *Navigator) Spin(ctx context.Context, speed float64, ccw bool) error {
	if n.SpinFunc == nil {
		return n.Navigator.Spin(ctx, speed, ccw)
	}
	return n.SpinFunc(ctx, speed, ccw)
}

// Forward calls the injected Forward or the real version.
func (n *Navigator) Forward(ctx context.Context, speed float64) error {
	if n.ForwardFunc == nil {
		return n.Navigator.Forward(ctx, speed)
	}
	return n.ForwardFunc(ctx, speed)
}

// DriveWheels calls the injected DriveWheels or the real version.
func (n *Navigator) DriveWheels(ctx context.Context, leftSpeed, rightSpeed float64) error {
	if n.DriveWheelsFunc == nil {
		return n.Navigator.DriveWheels(ctx, leftSpeed, rightSpeed)
	}
	return n.DriveWheelsFunc(ctx, leftSpeed, rightSpeed)
}

// RotateWheel calls the injected RotateWheel or the real version.
func (n *Navigator) RotateWheel(ctx context.Context, wheel navigation.Wheel, degrees float64, blocking bool) error {
	if n.RotateWheelFunc == nil {
		return n.Navigator.RotateWheel(ctx, wheel, degrees, blocking)
	}
	return n.RotateWheelFunc(ctx, wheel, degrees, blocking)
}

// Stop calls the injected Stop or the real version.
func (n *Navigator) Stop(ctx context.Context) error {
	if n.StopFunc == nil {
		return n.Navigator.Stop(ctx)
	}
	return n.StopFunc(ctx)
}

// IsMoving calls the injected IsMoving or the real version.
func (n *Navigator) IsMoving(ctx context.Context) (bool, error) {
	if n.IsMovingFunc == nil {
		return n.Navigator.IsMoving(ctx)
	}
	return n.IsMovingFunc(ctx)
}

// WaitForMotion calls the injected WaitForMotion or the real version.
func (n *Navigator) WaitForMotion(ctx context.Context) error {
	if n.WaitForMotionFunc == nil {
		return n.Navigator.WaitForMotion(ctx)
	}
	return n.WaitForMotionFunc(ctx)
}

// IsTravelling calls the injected IsTravelling or the real version.
func (n *Navigator) IsTravelling() bool {
	if n.IsTravellingFunc == nil {
		return n.Navigator.IsTravelling()
	}
	return n.IsTravellingFunc()
}

// SetTravelling calls the injected SetTravelling or the real version.
func (n *Navigator) SetTravelling(travelling bool) {
	if n.SetTravellingFunc == nil {
		n.Navigator.SetTravelling(travelling)
		return
	}
	n.SetTravellingFunc(travelling)
}

// Destination calls the injected Destination or the real version.
func (n *Navigator) Destination() r2.Point {
	if n.DestinationFunc == nil {
		return n.Navigator.Destination()
	}
	return n.DestinationFunc()
}

// Interrupt calls the injected Interrupt or the real version.
func (n *Navigator) Interrupt(ctx context.Context) error {
	if n.InterruptFunc == nil {
		return n.Navigator.Interrupt(ctx)
	}
	return n.InterruptFunc(ctx)
}

// WaitUntilNear calls the injected WaitUntilNear or the real version.
func (n *Navigator) WaitUntilNear(ctx context.Context, p r2.Point, tolerance float64) error {
	if n.WaitUntilNearFunc == nil {
		return n.Navigator.WaitUntilNear(ctx, p, tolerance)
	}
	return n.WaitUntilNearFunc(ctx, p, tolerance)
}
