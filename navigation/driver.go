package navigation

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"github.com/gridbot/gridbot/components/motor"
	"github.com/gridbot/gridbot/logging"
	"github.com/gridbot/gridbot/operation"
	"github.com/gridbot/gridbot/robot"
	"github.com/gridbot/gridbot/spatialmath"
	"github.com/gridbot/gridbot/utils"
)

// Driver is a Navigator for a two-wheeled differential drive.
type Driver struct {
	left, right motor.Motor
	body        robot.Body
	pose        *spatialmath.Pose
	cfg         Config
	poll        time.Duration
	logger      logging.Logger

	opMgr      operation.SingleOperationManager
	travelling atomic.Bool

	destMu      sync.Mutex
	destination r2.Point
}

var _ Navigator = &Driver{}

// NewDriver returns a driver that plans from pose and drives left and right.
func NewDriver(left, right motor.Motor, body robot.Body, pose *spatialmath.Pose, cfg Config, logger logging.Logger) *Driver {
	return &Driver{
		left:   left,
		right:  right,
		body:   body,
		pose:   pose,
		cfg:    cfg,
		poll:   time.Duration(cfg.PollMs) * time.Millisecond,
		logger: logger,
	}
}

// Pose returns the pose estimate.
func (d *Driver) Pose() *spatialmath.Pose {
	return d.pose
}

// wheelDegrees is how far a wheel turns to roll distance, truncated to whole degrees.
func (d *Driver) wheelDegrees(distance float64) float64 {
	return math.Trunc(180 * distance / (math.Pi * d.body.WheelRadius))
}

// spinDegrees is how far each wheel turns, in opposite directions, to turn the chassis in place
// by a clockwise angle in degrees.
func (d *Driver) spinDegrees(clockwiseDeg float64) float64 {
	return d.wheelDegrees(math.Pi * d.body.Track * clockwiseDeg / 360)
}

func (d *Driver) both(ctx context.Context, leftFn, rightFn func(context.Context, motor.Motor) error) error {
	_, err := utils.RunInParallel(ctx, []utils.SimpleFunc{
		func(ctx context.Context) error {
			return wrap(d.left, leftFn(ctx, d.left))
		},
		func(ctx context.Context) error {
			return wrap(d.right, rightFn(ctx, d.right))
		},
	})
	return err
}

func wrap(m motor.Motor, err error) error {
	if err == nil {
		return nil
	}
	return motor.NewMotorError(m.Name(), err)
}

func (d *Driver) setProfile(ctx context.Context, speed float64) error {
	set := func(ctx context.Context, m motor.Motor) error {
		return multierr.Combine(
			m.SetAcceleration(ctx, d.cfg.Acceleration),
			m.SetSpeed(ctx, speed),
		)
	}
	return d.both(ctx, set, set)
}

// RotateBy turns in place by angle.
func (d *Driver) RotateBy(ctx context.Context, angle float64, cs spatialmath.CoordinateSystem, blocking bool) error {
	clockwise := spatialmath.RotationToCompassDegrees(angle, cs)
	wheel := d.spinDegrees(clockwise)
	d.logger.CDebugf(ctx, "rotating %.1f° clockwise (%.0f° per wheel)", clockwise, wheel)
	if err := d.setProfile(ctx, d.cfg.TurnSpeed); err != nil {
		return err
	}
	if err := d.both(ctx,
		func(ctx context.Context, m motor.Motor) error { return m.Rotate(ctx, wheel) },
		func(ctx context.Context, m motor.Motor) error { return m.Rotate(ctx, -wheel) },
	); err != nil {
		return err
	}
	if blocking {
		return d.wait(ctx)
	}
	return nil
}

// TurnTo turns the short way to an absolute heading.
func (d *Driver) TurnTo(ctx context.Context, angle float64, cs spatialmath.CoordinateSystem, blocking bool) error {
	return d.RotateBy(ctx, d.pose.DirectionTo(angle, cs), cs, blocking)
}

// TravelDistance drives straight for distance centimeters.
func (d *Driver) TravelDistance(ctx context.Context, distance float64, blocking bool) error {
	wheel := d.wheelDegrees(distance)
	if err := d.setProfile(ctx, d.cfg.ForwardSpeed); err != nil {
		return err
	}
	rotate := func(ctx context.Context, m motor.Motor) error { return m.Rotate(ctx, wheel) }
	if err := d.both(ctx, rotate, rotate); err != nil {
		return err
	}
	if blocking {
		return d.wait(ctx)
	}
	return nil
}

// TravelTo turns toward target and drives to it. A failed travel is no longer travelling; an
// interrupted one leaves the mark to whoever interrupted it.
func (d *Driver) TravelTo(ctx context.Context, target r2.Point, blocking bool) (err error) {
	d.travelling.Store(true)
	defer func() {
		if err != nil && !errors.Is(err, ErrInterrupted) {
			d.travelling.Store(false)
		}
	}()
	if err := d.Stop(ctx); err != nil {
		return err
	}
	d.destMu.Lock()
	d.destination = target
	d.destMu.Unlock()

	distance := d.pose.DistanceTo(target)
	turn := d.pose.AngleTo(target, spatialmath.CompassDegrees)
	d.logger.CDebugw(ctx, "travelling", "from", d.pose.Snapshot().String(), "to", target, "distance", distance)
	if err := d.RotateBy(ctx, turn, spatialmath.CompassDegrees, true); err != nil {
		return err
	}
	if err := d.TravelDistance(ctx, distance, blocking); err != nil {
		return err
	}
	if blocking {
		d.travelling.Store(false)
	}
	return nil
}

// Spin turns in place until stopped.
func (d *Driver) Spin(ctx context.Context, speed float64, ccw bool) error {
	if err := d.setProfile(ctx, speed); err != nil {
		return err
	}
	back := func(ctx context.Context, m motor.Motor) error { return m.Backward(ctx) }
	fwd := func(ctx context.Context, m motor.Motor) error { return m.Forward(ctx) }
	if ccw {
		return d.both(ctx, back, fwd)
	}
	return d.both(ctx, fwd, back)
}

// Forward drives ahead until stopped.
func (d *Driver) Forward(ctx context.Context, speed float64) error {
	return d.DriveWheels(ctx, speed, speed)
}

// DriveWheels runs both wheels forward, each at its own speed.
func (d *Driver) DriveWheels(ctx context.Context, leftSpeed, rightSpeed float64) error {
	run := func(speed float64) func(context.Context, motor.Motor) error {
		return func(ctx context.Context, m motor.Motor) error {
			if err := m.SetSpeed(ctx, speed); err != nil {
				return err
			}
			return m.Forward(ctx)
		}
	}
	return d.both(ctx, run(leftSpeed), run(rightSpeed))
}

// RotateWheel turns a single wheel.
func (d *Driver) RotateWheel(ctx context.Context, wheel Wheel, degrees float64, blocking bool) error {
	m := d.left
	if wheel == RightWheel {
		m = d.right
	}
	if err := m.Rotate(ctx, degrees); err != nil {
		return motor.NewMotorError(m.Name(), err)
	}
	if blocking {
		return d.wait(ctx)
	}
	return nil
}

// Stop brakes both wheels.
func (d *Driver) Stop(ctx context.Context) error {
	stop := func(ctx context.Context, m motor.Motor) error { return m.Stop(ctx, true) }
	return d.both(ctx, stop, stop)
}

// IsMoving reports whether either wheel is moving.
func (d *Driver) IsMoving(ctx context.Context) (bool, error) {
	for _, m := range []motor.Motor{d.left, d.right} {
		moving, err := m.IsMoving(ctx)
		if err != nil {
			return false, motor.NewMotorError(m.Name(), err)
		}
		if moving {
			return true, nil
		}
	}
	return false, nil
}

// WaitForMotion blocks until both wheels stop.
func (d *Driver) WaitForMotion(ctx context.Context) error {
	return d.wait(ctx)
}

// wait blocks until the wheels stop. The wait is an operation: a later blocking command or an
// Interrupt ends it with ErrInterrupted, and the wheels are left to whoever ended it. Only when
// the caller's own context is cancelled are the wheels stopped here.
func (d *Driver) wait(ctx context.Context) error {
	caller := ctx
	err := d.opMgr.WaitTillStopped(ctx, d.poll, func(stopCtx context.Context) error {
		if caller.Err() == nil {
			return nil
		}
		return d.Stop(stopCtx)
	}, d.left, d.right)
	if err != nil && errors.Is(err, context.Canceled) && caller.Err() == nil {
		return ErrInterrupted
	}
	return err
}

// IsTravelling reports whether a TravelTo is in progress.
func (d *Driver) IsTravelling() bool {
	return d.travelling.Load()
}

// SetTravelling overrides the travelling mark.
func (d *Driver) SetTravelling(travelling bool) {
	d.travelling.Store(travelling)
}

// Destination returns the target of the last TravelTo.
func (d *Driver) Destination() r2.Point {
	d.destMu.Lock()
	defer d.destMu.Unlock()
	return d.destination
}

// Interrupt ends the blocking wait in progress, if any, and stops the wheels.
func (d *Driver) Interrupt(ctx context.Context) error {
	d.opMgr.CancelRunning(ctx)
	d.travelling.Store(false)
	return d.Stop(ctx)
}

// WaitUntilNear polls the pose until it is within tolerance of p.
func (d *Driver) WaitUntilNear(ctx context.Context, p r2.Point, tolerance float64) error {
	for d.pose.DistanceTo(p) > tolerance {
		if !goutils.SelectContextOrWait(ctx, d.poll) {
			return ctx.Err()
		}
	}
	return nil
}
