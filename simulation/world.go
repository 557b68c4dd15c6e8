// Package simulation is a physics-free model of the playing field: walls, floor grid lines and
// blocks, with a robot whose true pose follows its simulated wheel motors.
package simulation

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r2"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/gridbot/gridbot/components/motor"
	fakemotor "github.com/gridbot/gridbot/components/motor/fake"
	"github.com/gridbot/gridbot/components/sensor"
	fakesensor "github.com/gridbot/gridbot/components/sensor/fake"
	"github.com/gridbot/gridbot/field"
	"github.com/gridbot/gridbot/logging"
	"github.com/gridbot/gridbot/robot"
	"github.com/gridbot/gridbot/spatialmath"
)

const (
	maxRange      = 255.
	colorReach    = 6.
	gripClosedDeg = 120.
	heldOffset    = 3.
)

var wallColor = colorful.Color{R: 0.45, G: 0.4, B: 0.35}

// Block is a cube on the field.
type Block struct {
	Center r2.Point `json:"center"`
	Side   float64  `json:"side"`
	// Green blocks are targets; anything else is an obstacle.
	Green bool `json:"green"`
}

func (b Block) color() colorful.Color {
	if b.Green {
		return colorful.Color{R: 0.08, G: 0.35, B: 0.1}
	}
	return colorful.Color{R: 0.1, G: 0.15, B: 0.4}
}

func (b Block) rect() r2.Rect {
	return r2.RectFromCenterSize(b.Center, r2.Point{X: b.Side, Y: b.Side})
}

// Config describes a simulated field.
type Config struct {
	Blocks []Block `json:"blocks"`
	// Start is the true starting pose; the robot itself believes it is at the origin.
	StartX          float64 `json:"start_x"`
	StartY          float64 `json:"start_y"`
	StartHeadingDeg float64 `json:"start_heading_deg"`

	LineWidth        float64 `json:"line_width"`
	FloorReflectance float64 `json:"floor_reflectance"`
	LineReflectance  float64 `json:"line_reflectance"`

	TickMs int `json:"tick_ms"`
}

// DefaultConfig starts the robot in corner tile 1 near the grid intersection, facing +y, with no
// blocks. The range finder clears every wall while it spins there.
func DefaultConfig() Config {
	return Config{
		StartX:           -6,
		StartY:           -4,
		StartHeadingDeg:  90,
		LineWidth:        1.5,
		FloorReflectance: 0.6,
		LineReflectance:  0.12,
		TickMs:           5,
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.TickMs <= 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "tick_ms")
	}
	for i, b := range cfg.Blocks {
		if b.Side <= 0 {
			return utils.NewConfigValidationError(path, errors.Errorf("block %d has no size", i))
		}
	}
	return nil
}

// ForCorner moves the configured start, given for corner 1, into the given starting corner by
// turning it about the field center. Blocks stay where they are.
func (cfg Config) ForCorner(corner int, dims field.Dimensions) Config {
	if corner <= field.BottomLeft || corner > field.TopLeft {
		return cfg
	}
	center := float64(dims.MapDimension-2) * dims.TileWidth / 2
	turn := float64(corner-1) * math.Pi / 2
	sin, cos := math.Sincos(turn)
	x, y := cfg.StartX-center, cfg.StartY-center
	cfg.StartX = center + x*cos - y*sin
	cfg.StartY = center + x*sin + y*cos
	cfg.StartHeadingDeg = spatialmath.NormalizeDegrees(cfg.StartHeadingDeg + float64(corner-1)*90)
	return cfg
}

// World owns the true state of the field. Wheel, grip and lift motors only move when the world
// steps; the robot's true pose is integrated from the wheel rotations of each step.
type World struct {
	cfg    Config
	dims   field.Dimensions
	body   robot.Body
	logger logging.Logger
	clk    clock.Clock

	Left, Right, Grip, Lift *fakemotor.Motor

	mu     sync.Mutex
	pose   spatialmath.Snapshot
	blocks []Block
	held   int
}

// NewWorld builds a world for a robot with the given body.
func NewWorld(cfg Config, dims field.Dimensions, body robot.Body, clk clock.Clock, logger logging.Logger) *World {
	if clk == nil {
		clk = clock.New()
	}
	w := &World{
		cfg:    cfg,
		dims:   dims,
		body:   body,
		logger: logger,
		clk:    clk,
		Left:   fakemotor.NewMotor("left", logger.Sublogger("left")),
		Right:  fakemotor.NewMotor("right", logger.Sublogger("right")),
		Grip:   fakemotor.NewMotor("grip", logger.Sublogger("grip")),
		Lift:   fakemotor.NewMotor("lift", logger.Sublogger("lift")),
		pose: spatialmath.Snapshot{
			X:       cfg.StartX,
			Y:       cfg.StartY,
			Heading: spatialmath.ToRadians(cfg.StartHeadingDeg, spatialmath.PolarDegrees),
		},
		blocks: append([]Block(nil), cfg.Blocks...),
		held:   -1,
	}
	return w
}

// Motors returns the wheel, grip and lift motors.
func (w *World) Motors() (left, right, grip, lift motor.Motor) {
	return w.Left, w.Right, w.Grip, w.Lift
}

// TruePose returns where the robot really is.
func (w *World) TruePose() spatialmath.Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pose
}

// Blocks returns the blocks at their current positions.
func (w *World) Blocks() []Block {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Block(nil), w.blocks...)
}

// Holding reports whether a block is in the gripper.
func (w *World) Holding() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.held >= 0
}

// Run steps the world every tick until ctx is done. Simulated time runs at the clock's pace,
// since the robot's sensors and wait loops do too.
func (w *World) Run(ctx context.Context) {
	tick := time.Duration(w.cfg.TickMs) * time.Millisecond
	ticker := w.clk.Ticker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Step(tick)
		}
	}
}

// Step advances every motor by dt and moves the robot accordingly. The robot is a disc of
// bumper radius and cannot leave the field.
func (w *World) Step(dt time.Duration) {
	left := w.Left.Step(dt)
	right := w.Right.Step(dt)
	w.Grip.Step(dt)
	w.Lift.Step(dt)

	ctx := context.Background()
	grip, err := w.Grip.Position(ctx)
	if err != nil {
		w.logger.Errorw("cannot read grip position", "error", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	dl := math.Pi * w.body.WheelRadius * left / 180
	dr := math.Pi * w.body.WheelRadius * right / 180
	d := (dl + dr) / 2
	dtheta := (dr - dl) / w.body.Track
	mid := w.pose.Heading + dtheta/2
	w.pose.X += d * math.Cos(mid)
	w.pose.Y += d * math.Sin(mid)
	w.pose.Heading = spatialmath.NormalizeRadians(w.pose.Heading + dtheta)

	lo := -w.dims.TileWidth + w.body.BumperToCenter
	hi := float64(w.dims.MapDimension-1)*w.dims.TileWidth - w.body.BumperToCenter
	w.pose.X = math.Max(lo, math.Min(hi, w.pose.X))
	w.pose.Y = math.Max(lo, math.Min(hi, w.pose.Y))

	w.updateGripLocked(grip)
}

// updateGripLocked picks up the block behind the robot when the gripper closes and drops it when
// the gripper opens. A held block travels behind the bumper.
func (w *World) updateGripLocked(grip float64) {
	behind := w.pose.Project(-(w.body.BumperToCenter + heldOffset))
	switch {
	case w.held < 0 && grip >= gripClosedDeg:
		best, bestDist := -1, math.Inf(1)
		for i, b := range w.blocks {
			if d := b.Center.Sub(behind).Norm(); d < b.Side+heldOffset && d < bestDist {
				best, bestDist = i, d
			}
		}
		if best >= 0 {
			w.held = best
			w.logger.Debugw("block picked up", "block", best)
		}
	case w.held >= 0 && grip < gripClosedDeg:
		w.logger.Debugw("block released", "block", w.held, "at", behind)
		w.held = -1
	}
	if w.held >= 0 {
		w.blocks[w.held].Center = behind
	}
}

// Range returns the distance from origin to the first wall or block along heading.
func (w *World) Range(origin r2.Point, heading float64) float64 {
	d, _ := w.cast(origin, heading)
	return d
}

// cast returns the distance to the first surface hit and the index of the block hit, or -1 for a
// wall or nothing.
func (w *World) cast(origin r2.Point, heading float64) (float64, int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	dir := r2.Point{X: math.Cos(heading), Y: math.Sin(heading)}
	best, hit := maxRange, -1

	lo := -w.dims.TileWidth
	hi := float64(w.dims.MapDimension-1) * w.dims.TileWidth
	walls := r2.RectFromPoints(r2.Point{X: lo, Y: lo}, r2.Point{X: hi, Y: hi})
	// a sensor pushed through a wall reads as touching it
	if !walls.ContainsPoint(origin) {
		return 0, -1
	}
	if t, ok := slab(origin, dir, walls, true); ok && t < best {
		best = t
	}
	for i, b := range w.blocks {
		if i == w.held {
			continue
		}
		if t, ok := slab(origin, dir, b.rect(), false); ok && t < best {
			best, hit = t, i
		}
	}
	return best, hit
}

// slab intersects a ray with an axis aligned rectangle. With exit set it returns where the ray
// leaves the rectangle, otherwise where it enters.
func slab(origin, dir r2.Point, r r2.Rect, exit bool) (float64, bool) {
	tMin, tMax := math.Inf(-1), math.Inf(1)
	axes := []struct{ o, d, lo, hi float64 }{
		{origin.X, dir.X, r.X.Lo, r.X.Hi},
		{origin.Y, dir.Y, r.Y.Lo, r.Y.Hi},
	}
	for _, a := range axes {
		if math.Abs(a.d) < 1e-12 {
			if a.o < a.lo || a.o > a.hi {
				return 0, false
			}
			continue
		}
		t1, t2 := (a.lo-a.o)/a.d, (a.hi-a.o)/a.d
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tMin = math.Max(tMin, t1)
		tMax = math.Min(tMax, t2)
	}
	if tMin > tMax || tMax < 0 {
		return 0, false
	}
	if exit {
		return tMax, true
	}
	if tMin < 0 {
		return 0, true
	}
	return tMin, true
}

// Reflectance returns how bright the floor is at p: dark on a grid line, bright elsewhere.
func (w *World) Reflectance(p r2.Point) float64 {
	tile := w.dims.TileWidth
	half := w.cfg.LineWidth / 2
	onLine := func(v float64) bool {
		k := math.Round(v / tile)
		return k >= 0 && k <= float64(w.dims.MapDimension-2) && math.Abs(v-k*tile) <= half
	}
	if onLine(p.X) || onLine(p.Y) {
		return w.cfg.LineReflectance
	}
	return w.cfg.FloorReflectance
}

// SurfaceColor returns the color of the first surface within reach along heading.
func (w *World) SurfaceColor(origin r2.Point, heading, reach float64) colorful.Color {
	d, hit := w.cast(origin, heading)
	if d > reach {
		return colorful.Color{}
	}
	if hit < 0 {
		return wallColor
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.blocks[hit].color()
}

// Sensors are the robot's sensors looking at a world.
type Sensors struct {
	Front sensor.DistanceSensor
	Side  sensor.DistanceSensor
	Down  sensor.LightSensor
	Color sensor.ColorSensor
}

// NewSensors mounts raw sensors on the robot: the range finder and color sensor on the front
// face, the side range finder looking left and the light sensor where the body places it.
func (w *World) NewSensors() Sensors {
	light := spatialmath.ToRadians(w.body.LightAngleDeg, spatialmath.PolarDegrees)
	sin, cos := math.Sincos(light)
	return Sensors{
		Front: fakesensor.NewDistanceSensor("front", w, w.TruePose,
			fakesensor.Mount{Forward: w.body.RangeToCenter}),
		Side: fakesensor.NewDistanceSensor("side", w, w.TruePose,
			fakesensor.Mount{Angle: math.Pi / 2}),
		Down: fakesensor.NewLightSensor("down", w, w.TruePose,
			fakesensor.Mount{Forward: w.body.LightToCenter * cos, Left: w.body.LightToCenter * sin}),
		Color: fakesensor.NewColorSensor("color", w, w.TruePose,
			fakesensor.Mount{Forward: w.body.RangeToCenter}, colorReach),
	}
}
