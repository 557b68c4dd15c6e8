package localization

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r2"
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

func TestSnapFor(t *testing.T) {
	dims := field.DefaultDimensions()
	body := robot.DefaultBody()
	near := -dims.TileWidth + body.BumperToCenter
	far := 11*dims.TileWidth - body.BumperToCenter

	for _, tc := range []struct {
		corner int
		wall   Wall
		snap   Snap
	}{
		{1, LeftWall, Snap{AxisX, near, 0}},
		{1, RightWall, Snap{AxisY, near, math.Pi / 2}},
		{2, LeftWall, Snap{AxisY, near, math.Pi / 2}},
		{2, RightWall, Snap{AxisX, far, math.Pi}},
		{3, LeftWall, Snap{AxisX, far, math.Pi}},
		{3, RightWall, Snap{AxisY, far, 3 * math.Pi / 2}},
		{4, LeftWall, Snap{AxisY, far, 3 * math.Pi / 2}},
		{4, RightWall, Snap{AxisX, near, 0}},
	} {
		s, err := SnapFor(tc.corner, tc.wall, dims, body)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, s.Axis, test.ShouldEqual, tc.snap.Axis)
		test.That(t, s.Value, test.ShouldAlmostEqual, tc.snap.Value)
		test.That(t, s.Heading, test.ShouldAlmostEqual, tc.snap.Heading)
	}

	_, err := SnapFor(0, LeftWall, dims, body)
	test.That(t, err, test.ShouldBeError, "starting corner must be between 1 and 4, got 0")
	_, err = SnapFor(5, RightWall, dims, body)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestSnapApply(t *testing.T) {
	pose := spatialmath.NewPose(3, 4, 1)
	Snap{AxisY, -21.38, math.Pi / 2}.Apply(pose)
	test.That(t, pose.X(), test.ShouldEqual, 3)
	test.That(t, pose.Y(), test.ShouldAlmostEqual, -21.38)
	test.That(t, pose.Heading(spatialmath.Cartesian), test.ShouldAlmostEqual, math.Pi/2)
	test.That(t, Snap{AxisX, 1, 0}.String(), test.ShouldEqual, "x=1.00 θ=0°")
	test.That(t, LeftWall.Other(), test.ShouldEqual, RightWall)
	test.That(t, RightWall.Other().String(), test.ShouldEqual, "left")
}

func TestSnapApplyIsAtomic(t *testing.T) {
	pose := spatialmath.NewPose(10, 0, 0)
	near := Snap{AxisX, 10, 0}
	far := Snap{AxisX, 20, math.Pi}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 5000; i++ {
			far.Apply(pose)
			near.Apply(pose)
		}
	}()

	torn := 0
	for i := 0; i < 5000; i++ {
		s := pose.Snapshot()
		if (s.X == 10) != (s.Heading == 0) {
			torn++
		}
	}
	wg.Wait()
	test.That(t, torn, test.ShouldEqual, 0)
	test.That(t, pose.X(), test.ShouldEqual, 10)
}

type call struct {
	name  string
	value float64
}

// scriptedRobot spins in fixed steps while IsMoving is polled and records every other command.
type scriptedRobot struct {
	pose     *spatialmath.Pose
	nav      *inject.Navigator
	front    *inject.DistanceSensor
	side     *inject.DistanceSensor
	signaler *inject.Signaler
	calls    []call
	signals  []robot.Signal
	spinning int
}

func newScriptedRobot(sideRange float64) *scriptedRobot {
	r := &scriptedRobot{pose: spatialmath.NewPose(0, 0, 0)}
	const steps = 72
	step := 2 * math.Pi / steps

	r.nav = inject.NewNavigator(nil)
	r.nav.PoseFunc = func() *spatialmath.Pose { return r.pose }
	r.nav.RotateByFunc = func(ctx context.Context, angle float64, cs spatialmath.CoordinateSystem, blocking bool) error {
		if !blocking {
			r.spinning = steps
			return nil
		}
		r.calls = append(r.calls, call{"rotate", spatialmath.RotationToRadians(angle, cs)})
		return nil
	}
	r.nav.IsMovingFunc = func(ctx context.Context) (bool, error) {
		if r.spinning == 0 {
			return false, nil
		}
		r.spinning--
		r.pose.SetHeading(r.pose.Heading(spatialmath.Cartesian)+step, spatialmath.Cartesian)
		return true, nil
	}
	r.nav.TurnToFunc = func(ctx context.Context, angle float64, cs spatialmath.CoordinateSystem, blocking bool) error {
		r.calls = append(r.calls, call{"turn", spatialmath.ToRadians(angle, cs)})
		return nil
	}
	r.nav.TravelDistanceFunc = func(ctx context.Context, distance float64, blocking bool) error {
		r.calls = append(r.calls, call{"travel", distance})
		return nil
	}

	// the nearest wall is straight behind the starting heading, 5cm from the sensor
	r.front = inject.NewDistanceSensor("front")
	readings := 0
	r.front.DistanceFunc = func(ctx context.Context) (float64, error) {
		readings++
		if readings == 3 {
			return 0.5, nil
		}
		h := r.pose.Heading(spatialmath.Cartesian)
		return 5 + 20*(1+math.Cos(h)), nil
	}
	r.side = inject.NewDistanceSensor("side")
	r.side.DistanceFunc = func(ctx context.Context) (float64, error) {
		return sideRange, nil
	}
	r.signaler = inject.NewSignaler()
	r.signaler.SignalFunc = func(ctx context.Context, s robot.Signal) {
		r.signals = append(r.signals, s)
	}
	return r
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.SpinDelayMs = 1
	return cfg
}

func TestLocalizeLeftWallFirst(t *testing.T) {
	logger := logging.NewTestLogger(t)
	dims := field.DefaultDimensions()
	body := robot.DefaultBody()
	r := newScriptedRobot(100)
	state := robot.NewState(r2.Point{})

	l := NewLocalizer(r.nav, r.front, r.side, body, dims, field.BottomLeft, state, r.signaler, testConfig(), logger)
	test.That(t, l.Phase(), test.ShouldEqual, PhaseIdle)
	test.That(t, l.Localize(context.Background()), test.ShouldBeNil)
	test.That(t, l.Phase(), test.ShouldEqual, PhaseDone)

	backup := 5 - body.BumperToCenter + body.RangeToCenter + 12
	test.That(t, r.calls, test.ShouldHaveLength, 6)
	test.That(t, r.calls[0].name, test.ShouldEqual, "turn")
	test.That(t, math.Abs(spatialmath.ShortestRadians(r.calls[0].value, 0)), test.ShouldBeLessThan, 1e-9)
	test.That(t, r.calls[1], test.ShouldResemble, call{"travel", -backup})
	test.That(t, r.calls[2], test.ShouldResemble, call{"travel", 6})
	test.That(t, r.calls[3].name, test.ShouldEqual, "rotate")
	test.That(t, r.calls[3].value, test.ShouldAlmostEqual, math.Pi/2)
	test.That(t, r.calls[4], test.ShouldResemble, call{"travel", -backup})
	test.That(t, r.calls[5], test.ShouldResemble, call{"travel", 10})

	// the scripted robot never moves, so the pose is exactly the two snaps
	near := -dims.TileWidth + body.BumperToCenter
	test.That(t, r.pose.X(), test.ShouldAlmostEqual, near)
	test.That(t, r.pose.Y(), test.ShouldAlmostEqual, near)
	test.That(t, r.pose.Heading(spatialmath.Cartesian), test.ShouldAlmostEqual, math.Pi/2)

	test.That(t, r.signals, test.ShouldResemble, []robot.Signal{robot.SignalLocalized})
	test.That(t, state.Localizing(), test.ShouldBeFalse)
}

func TestLocalizeRightWallFirst(t *testing.T) {
	logger := logging.NewTestLogger(t)
	dims := field.DefaultDimensions()
	body := robot.DefaultBody()
	r := newScriptedRobot(12)
	state := robot.NewState(r2.Point{})

	l := NewLocalizer(r.nav, r.front, r.side, body, dims, field.TopRight, state, r.signaler, testConfig(), logger)
	test.That(t, l.Localize(context.Background()), test.ShouldBeNil)

	test.That(t, r.calls[3].name, test.ShouldEqual, "rotate")
	test.That(t, r.calls[3].value, test.ShouldAlmostEqual, -math.Pi/2)

	// corner 3: the right wall is the top one, then the left is the far side wall
	far := 11*dims.TileWidth - body.BumperToCenter
	test.That(t, r.pose.X(), test.ShouldAlmostEqual, far)
	test.That(t, r.pose.Y(), test.ShouldAlmostEqual, far)
	test.That(t, r.pose.Heading(spatialmath.Cartesian), test.ShouldAlmostEqual, math.Pi)
}

func TestLocalizeErrors(t *testing.T) {
	logger := logging.NewTestLogger(t)
	dims := field.DefaultDimensions()
	body := robot.DefaultBody()

	t.Run("bad corner", func(t *testing.T) {
		r := newScriptedRobot(100)
		l := NewLocalizer(r.nav, r.front, r.side, body, dims, 7, robot.NewState(r2.Point{}), r.signaler, testConfig(), logger)
		err := l.Localize(context.Background())
		test.That(t, err, test.ShouldBeError, "starting corner must be between 1 and 4, got 7")
		test.That(t, r.calls, test.ShouldBeEmpty)
	})

	t.Run("nothing in range", func(t *testing.T) {
		r := newScriptedRobot(100)
		r.front.DistanceFunc = func(ctx context.Context) (float64, error) { return 0, nil }
		state := robot.NewState(r2.Point{})
		l := NewLocalizer(r.nav, r.front, r.side, body, dims, 1, state, r.signaler, testConfig(), logger)
		err := l.Localize(context.Background())
		test.That(t, err, test.ShouldBeError, "no wall in range during scan")
		test.That(t, l.Phase(), test.ShouldEqual, PhaseScan)
		test.That(t, state.Localizing(), test.ShouldBeTrue)
		test.That(t, r.signals, test.ShouldBeEmpty)
	})

	t.Run("cancelled", func(t *testing.T) {
		r := newScriptedRobot(100)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		l := NewLocalizer(r.nav, r.front, r.side, body, dims, 1, robot.NewState(r2.Point{}), r.signaler, testConfig(), logger)
		test.That(t, l.Localize(ctx), test.ShouldBeError, context.Canceled)
	})
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	test.That(t, cfg.Validate("localization"), test.ShouldBeNil)
	cfg.Backoff = -1
	test.That(t, cfg.Validate("localization"), test.ShouldNotBeNil)
}

func TestLocalizeInSimulation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	logger := logging.NewTestLogger(t)
	body := robot.DefaultBody()
	dims := field.DefaultDimensions()

	simCfg := simulation.DefaultConfig()
	simCfg.TickMs = 1
	world := simulation.NewWorld(simCfg, dims, body, clock.New(), logger)
	left, right, _, _ := world.Motors()
	sensors := world.NewSensors()

	// the robot believes it starts at the origin facing +x; the world disagrees
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

	nav := navigation.NewDriver(left, right, body, pose, navigation.DefaultConfig(), logger)
	state := robot.NewState(r2.Point{})
	l := NewLocalizer(nav, sensors.Front, sensors.Side, body, dims, field.BottomLeft, state,
		robot.NewLogSignaler(logger), DefaultConfig(), logger)
	test.That(t, l.Localize(ctx), test.ShouldBeNil)

	truth := world.TruePose()
	test.That(t, math.Abs(pose.X()-truth.X), test.ShouldBeLessThan, 2.5)
	test.That(t, math.Abs(pose.Y()-truth.Y), test.ShouldBeLessThan, 2.5)
	test.That(t, math.Abs(spatialmath.ShortestRadians(pose.Heading(spatialmath.Cartesian), truth.Heading)),
		test.ShouldBeLessThan, 0.08)
	test.That(t, state.Localizing(), test.ShouldBeFalse)
}
