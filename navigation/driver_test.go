package navigation_test

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.viam.com/test"

	"github.com/gridbot/gridbot/field"
	"github.com/gridbot/gridbot/logging"
	"github.com/gridbot/gridbot/navigation"
	"github.com/gridbot/gridbot/odometry"
	"github.com/gridbot/gridbot/robot"
	"github.com/gridbot/gridbot/simulation"
	"github.com/gridbot/gridbot/spatialmath"
	"github.com/gridbot/gridbot/testutils"
	"github.com/gridbot/gridbot/testutils/inject"
)

func TestMain(m *testing.M) {
	testutils.VerifyTestMain(m)
}

// recordingMotor accepts every command and remembers the last rotation and speed. It reports
// motion until stopped when moving is set.
type recordingMotor struct {
	*inject.Motor
	mu       sync.Mutex
	rotation float64
	speed    float64
	forward  bool
	backward bool
	stops    int
	moving   atomic.Bool
}

func newRecordingMotor(name string) *recordingMotor {
	r := &recordingMotor{Motor: inject.NewMotor(name)}
	r.SetSpeedFunc = func(ctx context.Context, degsPerSec float64) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.speed = degsPerSec
		return nil
	}
	r.SetAccelerationFunc = func(ctx context.Context, degsPerSec2 float64) error {
		return nil
	}
	r.RotateFunc = func(ctx context.Context, degrees float64) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.rotation = degrees
		return nil
	}
	r.ForwardFunc = func(ctx context.Context) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.forward = true
		return nil
	}
	r.BackwardFunc = func(ctx context.Context) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.backward = true
		return nil
	}
	r.StopFunc = func(ctx context.Context, brake bool) error {
		r.mu.Lock()
		r.stops++
		r.mu.Unlock()
		r.moving.Store(false)
		return nil
	}
	r.IsMovingFunc = func(ctx context.Context) (bool, error) {
		return r.moving.Load(), nil
	}
	return r
}

func (r *recordingMotor) last() (rotation, speed float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rotation, r.speed
}

func (r *recordingMotor) stopCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stops
}

func newTestDriver(t *testing.T) (*navigation.Driver, *recordingMotor, *recordingMotor) {
	t.Helper()
	left, right := newRecordingMotor("left"), newRecordingMotor("right")
	d := navigation.NewDriver(left, right, robot.DefaultBody(), spatialmath.NewPose(0, 0, 0), navigation.DefaultConfig(), logging.NewTestLogger(t))
	return d, left, right
}

func TestWheelCommands(t *testing.T) {
	ctx := context.Background()
	d, left, right := newTestDriver(t)

	// a quarter turn counter-clockwise runs the left wheel backwards
	test.That(t, d.RotateBy(ctx, 90, spatialmath.PolarDegrees, false), test.ShouldBeNil)
	l, speed := left.last()
	r, _ := right.last()
	test.That(t, l, test.ShouldEqual, -244.)
	test.That(t, r, test.ShouldEqual, 244.)
	test.That(t, speed, test.ShouldEqual, 140.)

	test.That(t, d.RotateBy(ctx, math.Pi/2, spatialmath.Cartesian, false), test.ShouldBeNil)
	l, _ = left.last()
	test.That(t, l, test.ShouldEqual, -244.)

	test.That(t, d.RotateBy(ctx, 90, spatialmath.CompassDegrees, false), test.ShouldBeNil)
	l, _ = left.last()
	test.That(t, l, test.ShouldEqual, 244.)

	test.That(t, d.TravelDistance(ctx, 30, false), test.ShouldBeNil)
	l, speed = left.last()
	r, _ = right.last()
	test.That(t, l, test.ShouldEqual, 846.)
	test.That(t, r, test.ShouldEqual, 846.)
	test.That(t, speed, test.ShouldEqual, 200.)

	test.That(t, d.TravelDistance(ctx, -30, false), test.ShouldBeNil)
	l, _ = left.last()
	test.That(t, l, test.ShouldEqual, -846.)

	test.That(t, d.DriveWheels(ctx, 125, 50), test.ShouldBeNil)
	_, ls := left.last()
	_, rs := right.last()
	test.That(t, ls, test.ShouldEqual, 125.)
	test.That(t, rs, test.ShouldEqual, 50.)

	test.That(t, d.Spin(ctx, 30, true), test.ShouldBeNil)
	test.That(t, left.backward, test.ShouldBeTrue)
	test.That(t, right.forward, test.ShouldBeTrue)

	test.That(t, d.RotateWheel(ctx, navigation.RightWheel, -90, false), test.ShouldBeNil)
	r, _ = right.last()
	test.That(t, r, test.ShouldEqual, -90.)
}

func TestTurnToUsesPose(t *testing.T) {
	ctx := context.Background()
	d, left, _ := newTestDriver(t)
	d.Pose().SetHeading(math.Pi, spatialmath.Cartesian)

	// from west to north is a quarter turn clockwise
	test.That(t, d.TurnTo(ctx, 0, spatialmath.CompassDegrees, false), test.ShouldBeNil)
	l, _ := left.last()
	test.That(t, l, test.ShouldEqual, 244.)
}

func TestTravelToMarksTravelling(t *testing.T) {
	ctx := context.Background()
	d, left, right := newTestDriver(t)
	target := r2.Point{X: 0, Y: 30}

	test.That(t, d.TravelTo(ctx, target, false), test.ShouldBeNil)
	test.That(t, d.IsTravelling(), test.ShouldBeTrue)
	test.That(t, d.Destination(), test.ShouldResemble, target)
	l, _ := left.last()
	test.That(t, l, test.ShouldEqual, 846.)
	test.That(t, left.stopCount(), test.ShouldEqual, 1)
	test.That(t, right.stopCount(), test.ShouldEqual, 1)

	test.That(t, d.TravelTo(ctx, r2.Point{}, true), test.ShouldBeNil)
	test.That(t, d.IsTravelling(), test.ShouldBeFalse)
	test.That(t, d.Destination(), test.ShouldResemble, r2.Point{})

	d.SetTravelling(true)
	test.That(t, d.IsTravelling(), test.ShouldBeTrue)
}

func TestFailedTravelIsNotTravelling(t *testing.T) {
	t.Run("motor error", func(t *testing.T) {
		d, left, _ := newTestDriver(t)
		left.RotateFunc = func(ctx context.Context, degrees float64) error {
			return errors.New("stalled")
		}
		err := d.TravelTo(context.Background(), r2.Point{X: 0, Y: 30}, false)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "stalled")
		test.That(t, d.IsTravelling(), test.ShouldBeFalse)
	})

	t.Run("cancelled", func(t *testing.T) {
		d, left, _ := newTestDriver(t)
		left.IsMovingFunc = func(ctx context.Context) (bool, error) {
			return true, nil
		}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		test.That(t, d.TravelTo(ctx, r2.Point{X: 0, Y: 30}, true), test.ShouldNotBeNil)
		test.That(t, d.IsTravelling(), test.ShouldBeFalse)
	})
}

func TestInterruptEndsWait(t *testing.T) {
	ctx := context.Background()
	d, left, right := newTestDriver(t)
	left.moving.Store(true)
	right.moving.Store(true)
	d.SetTravelling(true)

	errCh := make(chan error, 1)
	go func() {
		errCh <- d.WaitForMotion(ctx)
	}()
	for !navigation.OpRunning(d) {
		time.Sleep(time.Millisecond)
	}
	test.That(t, d.Interrupt(ctx), test.ShouldBeNil)
	err := <-errCh
	test.That(t, errors.Is(err, navigation.ErrInterrupted), test.ShouldBeTrue)
	test.That(t, d.IsTravelling(), test.ShouldBeFalse)
	moving, err := d.IsMoving(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, moving, test.ShouldBeFalse)
}

func TestCancelledWaitStopsWheels(t *testing.T) {
	d, left, right := newTestDriver(t)
	left.moving.Store(true)
	right.moving.Store(true)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- d.WaitForMotion(ctx)
	}()
	for !navigation.OpRunning(d) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	err := <-errCh
	test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
	test.That(t, left.stopCount(), test.ShouldEqual, 1)
	test.That(t, right.stopCount(), test.ShouldEqual, 1)
}

func TestWaitUntilNear(t *testing.T) {
	d, _, _ := newTestDriver(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	test.That(t, d.WaitUntilNear(ctx, r2.Point{X: 1}, 2), test.ShouldBeNil)
	err := d.WaitUntilNear(ctx, r2.Point{X: 10}, 2)
	test.That(t, errors.Is(err, context.DeadlineExceeded), test.ShouldBeTrue)
}

func TestConfigValidate(t *testing.T) {
	cfg := navigation.DefaultConfig()
	test.That(t, cfg.Validate("driver"), test.ShouldBeNil)
	cfg.TurnSpeed = 0
	test.That(t, cfg.Validate("driver").Error(), test.ShouldContainSubstring, "turn_speed")
}

func TestTravelToInSimulation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	logger := logging.NewTestLogger(t)
	body := robot.DefaultBody()

	simCfg := simulation.DefaultConfig()
	simCfg.StartX, simCfg.StartY, simCfg.StartHeadingDeg = 0, 0, 0
	simCfg.TickMs = 1
	world := simulation.NewWorld(simCfg, field.DefaultDimensions(), body, clock.New(), logger)
	left, right, _, _ := world.Motors()

	pose := spatialmath.NewPose(0, 0, 0)
	odo, err := odometry.NewOdometer(ctx, left, right, body, pose, time.Millisecond, clock.New(), logger)
	test.That(t, err, test.ShouldBeNil)
	odo.Start()
	defer odo.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		world.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	d := navigation.NewDriver(left, right, body, pose, navigation.DefaultConfig(), logger)
	target := r2.Point{X: 30.48, Y: 30.48}
	test.That(t, d.TravelTo(ctx, target, true), test.ShouldBeNil)

	truth := world.TruePose()
	test.That(t, truth.Point().Sub(target).Norm(), test.ShouldBeLessThan, 1.5)
	test.That(t, math.Abs(spatialmath.ShortestRadians(truth.Heading, math.Pi/4)), test.ShouldBeLessThan, 0.05)
	test.That(t, d.IsTravelling(), test.ShouldBeFalse)
}
