package simulation

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r2"
	"go.viam.com/test"
	gotestutils "go.viam.com/utils/testutils"

	"github.com/gridbot/gridbot/components/sensor"
	"github.com/gridbot/gridbot/field"
	"github.com/gridbot/gridbot/logging"
	"github.com/gridbot/gridbot/robot"
)

const tile = 30.48

func newTestWorld(t *testing.T, cfg Config) *World {
	t.Helper()
	return NewWorld(cfg, field.DefaultDimensions(), robot.DefaultBody(), clock.NewMock(), logging.NewTestLogger(t))
}

func startAt(x, y, headingDeg float64) Config {
	cfg := DefaultConfig()
	cfg.StartX, cfg.StartY, cfg.StartHeadingDeg = x, y, headingDeg
	return cfg
}

func TestStepStraightAndSpin(t *testing.T) {
	ctx := context.Background()
	w := newTestWorld(t, startAt(tile, tile, 0))
	body := robot.DefaultBody()

	test.That(t, w.Left.SetSpeed(ctx, 360), test.ShouldBeNil)
	test.That(t, w.Right.SetSpeed(ctx, 360), test.ShouldBeNil)
	test.That(t, w.Left.Forward(ctx), test.ShouldBeNil)
	test.That(t, w.Right.Forward(ctx), test.ShouldBeNil)
	w.Step(time.Second)

	p := w.TruePose()
	test.That(t, p.X, test.ShouldAlmostEqual, tile+2*math.Pi*body.WheelRadius)
	test.That(t, p.Y, test.ShouldAlmostEqual, tile)
	test.That(t, p.Heading, test.ShouldAlmostEqual, 0.)

	// left back, right forward turns counter-clockwise
	test.That(t, w.Left.Rotate(ctx, -90), test.ShouldBeNil)
	test.That(t, w.Right.Rotate(ctx, 90), test.ShouldBeNil)
	w.Step(time.Second)
	arc := math.Pi * body.WheelRadius * 90 / 180
	p2 := w.TruePose()
	test.That(t, p2.Heading, test.ShouldAlmostEqual, 2*arc/body.Track)
	test.That(t, p2.X, test.ShouldAlmostEqual, p.X)
	test.That(t, p2.Y, test.ShouldAlmostEqual, p.Y)

	moving, err := w.Left.IsMoving(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, moving, test.ShouldBeFalse)
}

func TestWallClamp(t *testing.T) {
	ctx := context.Background()
	w := newTestWorld(t, startAt(-tile/2, tile, 0))
	test.That(t, w.Left.SetSpeed(ctx, 900), test.ShouldBeNil)
	test.That(t, w.Right.SetSpeed(ctx, 900), test.ShouldBeNil)
	test.That(t, w.Left.Backward(ctx), test.ShouldBeNil)
	test.That(t, w.Right.Backward(ctx), test.ShouldBeNil)
	for i := 0; i < 10; i++ {
		w.Step(100 * time.Millisecond)
	}
	test.That(t, w.TruePose().X, test.ShouldAlmostEqual, -tile+robot.DefaultBody().BumperToCenter)
}

func TestRangeAndColor(t *testing.T) {
	cfg := startAt(0, 0, 0)
	cfg.Blocks = []Block{
		{Center: r2.Point{X: 50, Y: 0}, Side: 5, Green: true},
		{Center: r2.Point{X: 0, Y: 60}, Side: 5},
	}
	w := newTestWorld(t, cfg)

	test.That(t, w.Range(r2.Point{}, 0), test.ShouldAlmostEqual, 47.5)
	test.That(t, w.Range(r2.Point{}, math.Pi/2), test.ShouldAlmostEqual, 57.5)
	// facing the left wall
	test.That(t, w.Range(r2.Point{}, math.Pi), test.ShouldAlmostEqual, tile)
	// looking down past both blocks
	test.That(t, w.Range(r2.Point{}, -math.Pi/2), test.ShouldAlmostEqual, tile)

	test.That(t, sensor.IsGreenDominant(w.SurfaceColor(r2.Point{X: 45}, 0, 6)), test.ShouldBeTrue)
	test.That(t, sensor.IsGreenDominant(w.SurfaceColor(r2.Point{X: 0, Y: 55}, math.Pi/2, 6)), test.ShouldBeFalse)
	test.That(t, w.SurfaceColor(r2.Point{X: 0, Y: 55}, math.Pi/2, 6), test.ShouldNotResemble, w.SurfaceColor(r2.Point{}, math.Pi/2, 6))
	test.That(t, sensor.IsGreenDominant(w.SurfaceColor(r2.Point{X: -tile + 3}, math.Pi, 6)), test.ShouldBeFalse)
}

func TestReflectance(t *testing.T) {
	w := newTestWorld(t, DefaultConfig())
	test.That(t, w.Reflectance(r2.Point{X: tile / 2, Y: tile / 2}), test.ShouldEqual, 0.6)
	test.That(t, w.Reflectance(r2.Point{X: tile + 0.5, Y: tile / 2}), test.ShouldEqual, 0.12)
	test.That(t, w.Reflectance(r2.Point{X: tile / 2, Y: 0}), test.ShouldEqual, 0.12)
	// the wall line is not a grid line
	test.That(t, w.Reflectance(r2.Point{X: -tile, Y: tile / 2}), test.ShouldEqual, 0.6)
}

func TestGrip(t *testing.T) {
	ctx := context.Background()
	body := robot.DefaultBody()
	cfg := startAt(tile, tile, 0)
	cfg.Blocks = []Block{{Center: r2.Point{X: tile - body.BumperToCenter - 4, Y: tile}, Side: 5, Green: true}}
	w := newTestWorld(t, cfg)

	test.That(t, w.Grip.SetSpeed(ctx, 240), test.ShouldBeNil)
	test.That(t, w.Grip.Rotate(ctx, 240), test.ShouldBeNil)
	w.Step(time.Second)
	test.That(t, w.Holding(), test.ShouldBeTrue)

	test.That(t, w.Left.SetSpeed(ctx, 360), test.ShouldBeNil)
	test.That(t, w.Right.SetSpeed(ctx, 360), test.ShouldBeNil)
	test.That(t, w.Left.Rotate(ctx, 360), test.ShouldBeNil)
	test.That(t, w.Right.Rotate(ctx, 360), test.ShouldBeNil)
	w.Step(time.Second)
	moved := w.Blocks()[0].Center
	test.That(t, moved.X, test.ShouldAlmostEqual, w.TruePose().X-body.BumperToCenter-heldOffset)

	test.That(t, w.Grip.Rotate(ctx, -190), test.ShouldBeNil)
	w.Step(time.Second)
	test.That(t, w.Holding(), test.ShouldBeFalse)
	test.That(t, w.Blocks()[0].Center, test.ShouldResemble, moved)
}

func TestRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	mock := clock.NewMock()
	w := NewWorld(startAt(tile, tile, 0), field.DefaultDimensions(), robot.DefaultBody(), mock, logging.NewTestLogger(t))
	test.That(t, w.Left.SetSpeed(ctx, 100), test.ShouldBeNil)
	test.That(t, w.Left.Forward(ctx), test.ShouldBeNil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()
	var pos float64
	for i := 0; i < 1000 && pos == 0; i++ {
		mock.Add(5 * time.Millisecond)
		var err error
		pos, err = w.Left.Position(ctx)
		test.That(t, err, test.ShouldBeNil)
	}
	test.That(t, pos, test.ShouldBeGreaterThan, 0)

	// once ticking, every tick of the clock is exactly one tick of simulated time: 5 ms at
	// 100 deg/s turns the wheel half a degree
	time.Sleep(20 * time.Millisecond)
	start, err := w.Left.Position(ctx)
	test.That(t, err, test.ShouldBeNil)
	for i := 1; i <= 10; i++ {
		mock.Add(5 * time.Millisecond)
		want := start + 0.5*float64(i)
		gotestutils.WaitForAssertion(t, func(tb testing.TB) {
			tb.Helper()
			pos, err := w.Left.Position(ctx)
			test.That(tb, err, test.ShouldBeNil)
			test.That(tb, pos, test.ShouldAlmostEqual, want)
		})
	}
	cancel()
	<-done
}

func TestSensorsMounted(t *testing.T) {
	ctx := context.Background()
	w := newTestWorld(t, startAt(8*tile, 8*tile, 0))
	s := w.NewSensors()

	front, err := s.Front.Distance(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, front, test.ShouldAlmostEqual, 3*tile-robot.DefaultBody().RangeToCenter)

	side, err := s.Side.Distance(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, side, test.ShouldAlmostEqual, 3*tile)

	// the light sensor sits between grid lines
	i, err := s.Down.Intensity(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, i, test.ShouldEqual, 0.6)
	test.That(t, s.Color.Name(), test.ShouldEqual, "color")
}

func TestForCorner(t *testing.T) {
	dims := field.DefaultDimensions()
	cfg := DefaultConfig()
	test.That(t, cfg.ForCorner(field.BottomLeft, dims), test.ShouldResemble, cfg)

	br := cfg.ForCorner(field.BottomRight, dims)
	test.That(t, br.StartX, test.ShouldAlmostEqual, 10*tile+4)
	test.That(t, br.StartY, test.ShouldAlmostEqual, -6)
	test.That(t, br.StartHeadingDeg, test.ShouldAlmostEqual, 180)

	tr := cfg.ForCorner(field.TopRight, dims)
	test.That(t, tr.StartX, test.ShouldAlmostEqual, 10*tile+6)
	test.That(t, tr.StartY, test.ShouldAlmostEqual, 10*tile+4)
	test.That(t, tr.StartHeadingDeg, test.ShouldAlmostEqual, 270)

	tl := cfg.ForCorner(field.TopLeft, dims)
	test.That(t, tl.StartX, test.ShouldAlmostEqual, -4)
	test.That(t, tl.StartY, test.ShouldAlmostEqual, 10*tile+6)
	test.That(t, tl.StartHeadingDeg, test.ShouldAlmostEqual, 0)
}
