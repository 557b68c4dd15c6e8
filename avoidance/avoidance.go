// Package avoidance watches the path ahead while the robot travels and takes over the wheels to
// get around whatever blocks it.
//
// Green blocks are targets and are only skirted. Anything else is followed along its side, using
// the side range finder, until the robot faces its original heading again; travel then resumes
// toward the destination the driver last recorded.
package avoidance

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/gridbot/gridbot/components/sensor"
	"github.com/gridbot/gridbot/logging"
	"github.com/gridbot/gridbot/navigation"
	"github.com/gridbot/gridbot/robot"
	"github.com/gridbot/gridbot/spatialmath"
	"github.com/gridbot/gridbot/utils"
)

// Outcome is what one check of the path ahead led to.
type Outcome int

// Outcomes.
const (
	// Clear means nothing was done.
	Clear Outcome = iota
	// Skirted means a target block was in the way and the robot stepped around it.
	Skirted
	// Avoided means an obstacle was followed around.
	Avoided
)

func (o Outcome) String() string {
	switch o {
	case Clear:
		return "clear"
	case Skirted:
		return "skirted"
	case Avoided:
		return "avoided"
	}
	return "unknown"
}

// Config tunes the monitor. Distances are centimeters, speeds wheel degrees per second.
type Config struct {
	PollMs int `json:"poll_ms"`
	// TriggerDistance is the front range at which the robot stops.
	TriggerDistance float64 `json:"trigger_cm"`
	// ApproachDistance is how close the robot gets before reading the color.
	ApproachDistance float64 `json:"approach_cm"`

	SkirtTurnDeg float64 `json:"skirt_turn_deg"`
	SkirtAdvance float64 `json:"skirt_advance_cm"`

	// Side ranges below NearDistance slow the outer wheel to MinSpeed, ranges above FarDistance
	// speed it up to MaxSpeed. The inner wheel always runs halfway between.
	NearDistance float64 `json:"near_cm"`
	FarDistance  float64 `json:"far_cm"`
	MinSpeed     float64 `json:"min_speed"`
	MaxSpeed     float64 `json:"max_speed"`

	// HeadingToleranceDeg is how close to the original heading the robot must come back to
	// end the episode.
	HeadingToleranceDeg float64 `json:"heading_tolerance_deg"`
}

// DefaultConfig returns the tuning used on the competition field.
func DefaultConfig() Config {
	return Config{
		PollMs:              10,
		TriggerDistance:     10,
		ApproachDistance:    4,
		SkirtTurnDeg:        30,
		SkirtAdvance:        8,
		NearDistance:        10,
		FarDistance:         30,
		MinSpeed:            50,
		MaxSpeed:            200,
		HeadingToleranceDeg: 25,
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.PollMs <= 0 {
		return goutils.NewConfigValidationFieldRequiredError(path, "poll_ms")
	}
	if cfg.TriggerDistance <= 0 {
		return goutils.NewConfigValidationFieldRequiredError(path, "trigger_cm")
	}
	if cfg.ApproachDistance >= cfg.TriggerDistance {
		return goutils.NewConfigValidationError(path, errors.New("approach_cm must be less than trigger_cm"))
	}
	if cfg.NearDistance >= cfg.FarDistance {
		return goutils.NewConfigValidationError(path, errors.New("near_cm must be less than far_cm"))
	}
	if cfg.MinSpeed <= 0 || cfg.MaxSpeed < cfg.MinSpeed {
		return goutils.NewConfigValidationError(path, errors.New("speeds must satisfy 0 < min_speed <= max_speed"))
	}
	return nil
}

// FollowSpeeds returns the left and right wheel speeds for one wall-following step, given the
// range to the obstacle on the left.
func (cfg Config) FollowSpeeds(side float64) (left, right float64) {
	mid := (cfg.MinSpeed + cfg.MaxSpeed) / 2
	switch {
	case side > cfg.FarDistance:
		return mid, cfg.MaxSpeed
	case side < cfg.NearDistance:
		return mid, cfg.MinSpeed
	default:
		return mid, mid
	}
}

// Monitor is the avoidance task.
type Monitor struct {
	nav      navigation.Navigator
	front    sensor.DistanceSensor
	side     sensor.DistanceSensor
	color    sensor.ColorSensor
	state    *robot.State
	signaler robot.Signaler
	cfg      Config
	clk      clock.Clock
	logger   logging.Logger

	workersMu sync.Mutex
	workers   *utils.StoppableWorkers
}

// NewMonitor returns a monitor for the robot driven by nav.
func NewMonitor(
	nav navigation.Navigator,
	front, side sensor.DistanceSensor,
	color sensor.ColorSensor,
	state *robot.State,
	signaler robot.Signaler,
	cfg Config,
	clk clock.Clock,
	logger logging.Logger,
) *Monitor {
	if clk == nil {
		clk = clock.New()
	}
	return &Monitor{
		nav:      nav,
		front:    front,
		side:     side,
		color:    color,
		state:    state,
		signaler: signaler,
		cfg:      cfg,
		clk:      clk,
		logger:   logger,
	}
}

func (m *Monitor) poll() time.Duration {
	return time.Duration(m.cfg.PollMs) * time.Millisecond
}

// Start runs Check every poll period in the background until Close.
func (m *Monitor) Start() {
	m.workersMu.Lock()
	defer m.workersMu.Unlock()
	if m.workers != nil {
		return
	}
	m.workers = utils.NewStoppableWorkers(func(ctx context.Context) {
		err := utils.RunPeriodically(ctx, m.clk, m.poll(), func(ctx context.Context) (bool, error) {
			outcome, err := m.Check(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return true, nil
				}
				m.state.SetAvoiding(false)
				m.logger.Warnw("avoidance check failed", "error", err)
				return false, nil
			}
			if outcome != Clear {
				m.logger.Infow("path cleared", "outcome", outcome.String(), "pose", m.nav.Pose().Snapshot().String())
			}
			return false, nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			m.logger.Errorw("avoidance monitor stopped", "error", err)
		}
	})
}

// Close stops the background task and waits for it to exit.
func (m *Monitor) Close() {
	m.workersMu.Lock()
	defer m.workersMu.Unlock()
	if m.workers != nil {
		m.workers.Stop()
	}
}

// Check looks ahead once and handles whatever is there. Nothing is read while the robot is not
// travelling or while it is scanning for blocks.
func (m *Monitor) Check(ctx context.Context) (Outcome, error) {
	if !m.nav.IsTravelling() || m.state.Searching() || m.state.Avoiding() {
		return Clear, nil
	}
	d, err := m.front.Distance(ctx)
	if err != nil {
		return Clear, errors.Wrapf(err, "sensor %s", m.front.Name())
	}
	if d > m.cfg.TriggerDistance {
		return Clear, nil
	}

	m.state.SetAvoiding(true)
	defer m.state.SetAvoiding(false)

	if err := m.nav.Stop(ctx); err != nil {
		return Clear, err
	}
	if err := m.nav.TravelDistance(ctx, math.Min(d, m.cfg.TriggerDistance)-m.cfg.ApproachDistance, true); err != nil {
		return Clear, err
	}
	c, err := m.color.Color(ctx)
	if err != nil {
		return Clear, errors.Wrapf(err, "sensor %s", m.color.Name())
	}
	if sensor.IsGreenDominant(c) {
		m.logger.CDebugw(ctx, "target block in the way", "range", d, "color", c.Hex())
		return Skirted, m.skirt(ctx)
	}
	m.logger.CDebugw(ctx, "obstacle in the way", "range", d, "color", c.Hex())
	return Avoided, m.follow(ctx)
}

// skirt steps around a target block with a fixed turn, advance and counter-turn.
func (m *Monitor) skirt(ctx context.Context) error {
	if err := m.nav.RotateBy(ctx, -m.cfg.SkirtTurnDeg, spatialmath.PolarDegrees, true); err != nil {
		return err
	}
	if err := m.nav.TravelDistance(ctx, m.cfg.SkirtAdvance, true); err != nil {
		return err
	}
	if err := m.nav.RotateBy(ctx, 2*m.cfg.SkirtTurnDeg, spatialmath.PolarDegrees, true); err != nil {
		return err
	}
	return m.resume(ctx)
}

// follow keeps the obstacle on the left and drives around it until the robot faces the way it
// was going when it stopped.
func (m *Monitor) follow(ctx context.Context) error {
	pose := m.nav.Pose()
	original := pose.Heading(spatialmath.PolarDegrees)
	if err := m.nav.Interrupt(ctx); err != nil {
		return err
	}
	m.signaler.Signal(ctx, robot.SignalObstacle)
	if err := m.nav.RotateBy(ctx, -90, spatialmath.PolarDegrees, true); err != nil {
		return err
	}

	for math.Abs(spatialmath.ShortestDegrees(pose.Heading(spatialmath.PolarDegrees), original)) > m.cfg.HeadingToleranceDeg {
		side, err := m.side.Distance(ctx)
		if err != nil {
			return errors.Wrapf(err, "sensor %s", m.side.Name())
		}
		left, right := m.cfg.FollowSpeeds(side)
		if err := m.nav.DriveWheels(ctx, left, right); err != nil {
			return err
		}
		if !goutils.SelectContextOrWait(ctx, m.poll()) {
			return ctx.Err()
		}

		front, err := m.front.Distance(ctx)
		if err != nil {
			return errors.Wrapf(err, "sensor %s", m.front.Name())
		}
		if front < m.cfg.TriggerDistance {
			m.logger.CDebugf(ctx, "blocked again %.1fcm ahead while following", front)
			if err := m.nav.Stop(ctx); err != nil {
				return err
			}
			if err := m.nav.RotateBy(ctx, -90, spatialmath.PolarDegrees, true); err != nil {
				return err
			}
		}
	}
	m.signaler.Signal(ctx, robot.SignalObstacle)
	return m.resume(ctx)
}

// resume heads for the last destination without waiting, so the monitor keeps watching.
func (m *Monitor) resume(ctx context.Context) error {
	if err := m.nav.Stop(ctx); err != nil {
		return err
	}
	return m.nav.TravelTo(ctx, m.nav.Destination(), false)
}
