package localization

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	goutils "go.viam.com/utils"

	"github.com/gridbot/gridbot/components/sensor"
	"github.com/gridbot/gridbot/field"
	"github.com/gridbot/gridbot/logging"
	"github.com/gridbot/gridbot/navigation"
	"github.com/gridbot/gridbot/robot"
	"github.com/gridbot/gridbot/spatialmath"
)

// Phase is a step of the localization routine.
type Phase int32

// Phases, in the order they run.
const (
	PhaseIdle Phase = iota
	PhaseScan
	PhaseApproachFirstWall
	PhaseSnapFirstWall
	PhaseReposition
	PhaseApproachSecondWall
	PhaseSnapSecondWall
	PhaseDone
)

var phaseNames = map[Phase]string{
	PhaseIdle:               "idle",
	PhaseScan:               "scan",
	PhaseApproachFirstWall:  "approach_first_wall",
	PhaseSnapFirstWall:      "snap_first_wall",
	PhaseReposition:         "reposition",
	PhaseApproachSecondWall: "approach_second_wall",
	PhaseSnapSecondWall:     "snap_second_wall",
	PhaseDone:               "done",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return "unknown"
}

// Config tunes the wall approach.
type Config struct {
	// Overshoot is how much further than the measured gap the robot backs up, to square itself
	// against the wall.
	Overshoot float64 `json:"overshoot_cm"`
	// Backoff is how far the robot pulls away from the first wall before turning.
	Backoff float64 `json:"backoff_cm"`
	// Clearance is how far the robot pulls away from the second wall when done.
	Clearance   float64 `json:"clearance_cm"`
	SpinDelayMs int     `json:"spin_delay_ms"`
}

// DefaultConfig returns the distances used on the competition field.
func DefaultConfig() Config {
	return Config{Overshoot: 12, Backoff: 6, Clearance: 10, SpinDelayMs: 100}
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.Overshoot < 0 || cfg.Backoff < 0 || cfg.Clearance < 0 || cfg.SpinDelayMs < 0 {
		return goutils.NewConfigValidationError(path, errors.New("localization distances and delays must not be negative"))
	}
	return nil
}

// minValidRange drops echoes from the robot's own body.
const minValidRange = 1

type rangeSample struct {
	distance float64
	heading  float64
}

// A Localizer sets the pose from the walls of the starting corner. The robot must start inside
// the corner tile with both of the corner's walls in range of the front sensor.
type Localizer struct {
	nav      navigation.Navigator
	front    sensor.DistanceSensor
	side     sensor.DistanceSensor
	body     robot.Body
	dims     field.Dimensions
	corner   int
	state    *robot.State
	signaler robot.Signaler
	cfg      Config
	logger   logging.Logger

	phase atomic.Int32
}

// NewLocalizer returns a localizer for a robot starting in corner.
func NewLocalizer(
	nav navigation.Navigator,
	front, side sensor.DistanceSensor,
	body robot.Body,
	dims field.Dimensions,
	corner int,
	state *robot.State,
	signaler robot.Signaler,
	cfg Config,
	logger logging.Logger,
) *Localizer {
	return &Localizer{
		nav:      nav,
		front:    front,
		side:     side,
		body:     body,
		dims:     dims,
		corner:   corner,
		state:    state,
		signaler: signaler,
		cfg:      cfg,
		logger:   logger,
	}
}

// Phase returns the step in progress.
func (l *Localizer) Phase() Phase {
	return Phase(l.phase.Load())
}

func (l *Localizer) enter(ctx context.Context, p Phase) {
	l.phase.Store(int32(p))
	l.logger.CDebugw(ctx, "localization", "phase", p.String(), "pose", l.nav.Pose().Snapshot().String())
}

// Localize runs the whole routine and clears the localizing flag when done. The pose is only
// written by the two snaps.
func (l *Localizer) Localize(ctx context.Context) error {
	if _, err := SnapFor(l.corner, LeftWall, l.dims, l.body); err != nil {
		return err
	}

	l.enter(ctx, PhaseScan)
	closest, err := l.scan(ctx)
	if err != nil {
		return err
	}
	l.logger.CDebugf(ctx, "closest wall %.1fcm away at %.0f°",
		closest.distance, spatialmath.FromRadians(closest.heading, spatialmath.PolarDegrees))

	// the bumper is on the back, so face away from the wall and reverse into it
	l.enter(ctx, PhaseApproachFirstWall)
	backup := closest.distance - l.body.BumperToCenter + l.body.RangeToCenter + l.cfg.Overshoot
	if err := l.nav.TurnTo(ctx, closest.heading+math.Pi, spatialmath.Cartesian, true); err != nil {
		return err
	}
	if err := l.nav.TravelDistance(ctx, -backup, true); err != nil {
		return err
	}

	l.enter(ctx, PhaseSnapFirstWall)
	side, err := l.side.Distance(ctx)
	if err != nil {
		return errors.Wrapf(err, "sensor %s", l.side.Name())
	}
	// a wall close on the left means the one behind is the corner's right wall
	wall := LeftWall
	if side < l.dims.TileWidth {
		wall = RightWall
	}
	if err := l.snap(ctx, wall); err != nil {
		return err
	}

	l.enter(ctx, PhaseReposition)
	if err := l.nav.TravelDistance(ctx, l.cfg.Backoff, true); err != nil {
		return err
	}
	turn := math.Pi / 2
	if wall == RightWall {
		turn = -turn
	}
	if err := l.nav.RotateBy(ctx, turn, spatialmath.Cartesian, true); err != nil {
		return err
	}

	l.enter(ctx, PhaseApproachSecondWall)
	if err := l.nav.TravelDistance(ctx, -backup, true); err != nil {
		return err
	}

	l.enter(ctx, PhaseSnapSecondWall)
	if err := l.snap(ctx, wall.Other()); err != nil {
		return err
	}

	l.signaler.Signal(ctx, robot.SignalLocalized)
	if err := l.nav.TravelDistance(ctx, l.cfg.Clearance, true); err != nil {
		return err
	}
	l.state.SetLocalizing(false)
	l.enter(ctx, PhaseDone)
	return nil
}

// scan turns a full circle and returns the closest range seen and the heading it was seen at.
func (l *Localizer) scan(ctx context.Context) (rangeSample, error) {
	if err := l.nav.RotateBy(ctx, 360, spatialmath.PolarDegrees, false); err != nil {
		return rangeSample{}, err
	}
	if !goutils.SelectContextOrWait(ctx, time.Duration(l.cfg.SpinDelayMs)*time.Millisecond) {
		return rangeSample{}, ctx.Err()
	}

	var closest rangeSample
	found := false
	for {
		if err := ctx.Err(); err != nil {
			return rangeSample{}, err
		}
		moving, err := l.nav.IsMoving(ctx)
		if err != nil {
			return rangeSample{}, err
		}
		if !moving {
			break
		}
		d, err := l.front.Distance(ctx)
		if err != nil {
			return rangeSample{}, errors.Wrapf(err, "sensor %s", l.front.Name())
		}
		if d <= minValidRange {
			continue
		}
		if !found || d < closest.distance {
			closest = rangeSample{distance: d, heading: l.nav.Pose().Heading(spatialmath.Cartesian)}
			found = true
		}
	}
	if !found {
		return rangeSample{}, errors.New("no wall in range during scan")
	}
	return closest, nil
}

func (l *Localizer) snap(ctx context.Context, wall Wall) error {
	s, err := SnapFor(l.corner, wall, l.dims, l.body)
	if err != nil {
		return err
	}
	s.Apply(l.nav.Pose())
	l.logger.CDebugw(ctx, "snapped to wall", "wall", wall.String(), "snap", s.String())
	return nil
}
