// Package search runs the mission once the robot knows where it is: scan a sector of the field
// from the search point, drive to whatever shows up, bump it to read its color, and carry green
// blocks back to the tower at the stack point until the tower is complete.
package search

import (
	"context"
	"math"
	"time"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	goutils "go.viam.com/utils"

	"github.com/gridbot/gridbot/components/motor"
	"github.com/gridbot/gridbot/components/sensor"
	"github.com/gridbot/gridbot/field"
	"github.com/gridbot/gridbot/logging"
	"github.com/gridbot/gridbot/navigation"
	"github.com/gridbot/gridbot/robot"
	"github.com/gridbot/gridbot/spatialmath"
)

// Phase is a state of the search.
type Phase int32

// Phases.
const (
	PhaseIdle Phase = iota
	PhaseTravelToSearchPoint
	PhaseCorrect
	PhaseOrient
	PhaseScan
	PhaseRelocate
	PhaseTrack
	PhaseClassify
	PhaseCapture
	PhaseReject
	PhaseComplete
)

var phaseNames = map[Phase]string{
	PhaseIdle:                "idle",
	PhaseTravelToSearchPoint: "travel_to_search_point",
	PhaseCorrect:             "correct",
	PhaseOrient:              "orient",
	PhaseScan:                "scan",
	PhaseRelocate:            "relocate",
	PhaseTrack:               "track",
	PhaseClassify:            "classify",
	PhaseCapture:             "capture",
	PhaseReject:              "reject",
	PhaseComplete:            "complete",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return "unknown"
}

// Config tunes the search. Distances are centimeters, angles polar degrees and speeds motor
// degrees per second.
type Config struct {
	PollMs       int     `json:"poll_ms"`
	ScanSpeed    float64 `json:"scan_speed"`
	ForwardSpeed float64 `json:"forward_speed"`

	// SearchCap is the longest range that counts as seeing something.
	SearchCap float64 `json:"search_cap_cm"`
	// CaptureDistance is the range at which tracking stops and the block is bumped.
	CaptureDistance float64 `json:"capture_cm"`
	// LostDriftDeg is how far the heading may drift from the last sighting before the candidate
	// is given up.
	LostDriftDeg float64 `json:"lost_drift_deg"`
	// NudgeDeg is the turn away from a sighting inside a zone or near a wall.
	NudgeDeg float64 `json:"nudge_deg"`
	// RejectOffsetDeg is added to the last sighting heading when scanning resumes after a
	// rejected block or a placed one.
	RejectOffsetDeg float64 `json:"reject_offset_deg"`
	// SectorMarginDeg is how close to a sector edge counts as reaching it.
	SectorMarginDeg float64 `json:"sector_margin_deg"`
	// BumpDeg is the turn into a block that brings the color sensor onto it.
	BumpDeg float64 `json:"bump_deg"`

	// A relocation first probes diagonally into the field, then along the sector start. Ranges
	// below the probe distances count as blocked.
	DiagonalProbe  float64 `json:"diagonal_probe_cm"`
	StartProbe     float64 `json:"start_probe_cm"`
	MaxRelocations int     `json:"max_relocations"`
	// ArrivalTolerance is how close to a destination counts as there after an avoidance episode.
	ArrivalTolerance float64 `json:"arrival_tolerance_cm"`

	GripSpeed        float64 `json:"grip_speed"`
	LiftSpeed        float64 `json:"lift_speed"`
	GripAcceleration float64 `json:"grip_acceleration"`
	GripCloseDeg     float64 `json:"grip_close_deg"`
	GripReleaseDeg   float64 `json:"grip_release_deg"`
	// OrientWheelDeg turns each wheel in turn to square the block behind the bumper.
	OrientWheelDeg float64 `json:"orient_wheel_deg"`
	// PlaceClearance is how far the robot pulls away from a placed block.
	PlaceClearance float64 `json:"place_clearance_cm"`

	TowerPresets []TowerPreset `json:"tower_presets"`
}

// DefaultConfig returns the tuning used on the competition field.
func DefaultConfig() Config {
	return Config{
		PollMs:           50,
		ScanSpeed:        30,
		ForwardSpeed:     200,
		SearchCap:        70,
		CaptureDistance:  5,
		LostDriftDeg:     25,
		NudgeDeg:         25,
		RejectOffsetDeg:  25,
		SectorMarginDeg:  5,
		BumpDeg:          7,
		DiagonalProbe:    50,
		StartProbe:       70,
		MaxRelocations:   1,
		ArrivalTolerance: 2,
		GripSpeed:        100,
		LiftSpeed:        300,
		GripAcceleration: 400,
		GripCloseDeg:     240,
		GripReleaseDeg:   190,
		OrientWheelDeg:   -90,
		PlaceClearance:   3,
		TowerPresets:     DefaultTowerPresets(),
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.PollMs <= 0 {
		return goutils.NewConfigValidationFieldRequiredError(path, "poll_ms")
	}
	if cfg.ScanSpeed <= 0 || cfg.ForwardSpeed <= 0 || cfg.GripSpeed <= 0 || cfg.LiftSpeed <= 0 {
		return goutils.NewConfigValidationError(path, errors.New("speeds must be positive"))
	}
	if cfg.CaptureDistance <= 0 || cfg.SearchCap <= cfg.CaptureDistance {
		return goutils.NewConfigValidationError(path,
			errors.Errorf("need 0 < capture_cm < search_cap_cm, got %v and %v", cfg.CaptureDistance, cfg.SearchCap))
	}
	if cfg.GripReleaseDeg > cfg.GripCloseDeg {
		return goutils.NewConfigValidationError(path, errors.New("grip_release_deg must not exceed grip_close_deg"))
	}
	if len(cfg.TowerPresets) < robot.MaxTowerHeight {
		return goutils.NewConfigValidationError(path,
			errors.Errorf("need %d tower presets, got %d", robot.MaxTowerHeight, len(cfg.TowerPresets)))
	}
	return nil
}

// A Corrector re-anchors the pose on the floor grid next to anchor.
type Corrector interface {
	Run(ctx context.Context, anchor, corner r2.Point, speed float64) (spatialmath.Snapshot, error)
}

// Result summarizes a search run.
type Result struct {
	Captured    int
	Rejected    int
	Relocations int
	// Complete is set when the tower was finished.
	Complete bool
}

// motion is what the wheels were last told to do while scanning.
type motion int

const (
	motionNone motion = iota
	motionSpin
	motionForward
)

// manipulatorPoll is how often the grip and lift motors are polled while waiting on them.
const manipulatorPoll = 10 * time.Millisecond

// A Searcher runs the search. It must only be run once, from one goroutine.
type Searcher struct {
	nav       navigation.Navigator
	front     sensor.DistanceSensor
	color     sensor.ColorSensor
	grip      motor.Motor
	lift      motor.Motor
	geometry  *field.Geometry
	body      robot.Body
	state     *robot.State
	corrector Corrector
	signaler  robot.Signaler
	cfg       Config
	logger    logging.Logger

	phase atomic.Int32
	trail Trail

	sector      field.Sector
	ccw         bool
	lastHeading float64
	result      Result
}

// Deps are the parts of the robot a Searcher drives and reads.
type Deps struct {
	Nav   navigation.Navigator
	Front sensor.DistanceSensor
	Color sensor.ColorSensor
	Grip  motor.Motor
	Lift  motor.Motor
	// Corrector may be nil to skip drift correction.
	Corrector Corrector
	Signaler  robot.Signaler
}

// NewSearcher returns a searcher for the field described by geometry.
func NewSearcher(
	deps Deps,
	geometry *field.Geometry,
	body robot.Body,
	state *robot.State,
	cfg Config,
	logger logging.Logger,
) *Searcher {
	return &Searcher{
		nav:       deps.Nav,
		front:     deps.Front,
		color:     deps.Color,
		grip:      deps.Grip,
		lift:      deps.Lift,
		corrector: deps.Corrector,
		signaler:  deps.Signaler,
		geometry:  geometry,
		body:      body,
		state:     state,
		cfg:       cfg,
		logger:    logger,
		sector:    field.SectorFor(state.SearchPoint(), geometry.MapCenter),
	}
}

// Phase returns the state the search is in.
func (s *Searcher) Phase() Phase {
	return Phase(s.phase.Load())
}

// Trail returns the search points relocated to so far.
func (s *Searcher) Trail() []r2.Point {
	return s.trail.Outbound()
}

func (s *Searcher) enter(ctx context.Context, p Phase) {
	if Phase(s.phase.Swap(int32(p))) == p {
		return
	}
	s.logger.CDebugw(ctx, "search", "phase", p.String(), "pose", s.nav.Pose().Snapshot().String())
}

func (s *Searcher) poll() time.Duration {
	return time.Duration(s.cfg.PollMs) * time.Millisecond
}

// Run searches until the tower is complete or ctx is cancelled. Finishing the tower is not an
// error; the result reports it.
func (s *Searcher) Run(ctx context.Context) (Result, error) {
	if err := s.setupManipulators(ctx); err != nil {
		return s.result, err
	}

	s.enter(ctx, PhaseTravelToSearchPoint)
	if err := s.goTo(ctx, s.state.SearchPoint()); err != nil {
		return s.result, err
	}

	if s.corrector != nil {
		s.enter(ctx, PhaseCorrect)
		if _, err := s.corrector.Run(ctx, s.geometry.CorrectionAnchor, s.geometry.CorrectionCorner, s.cfg.ForwardSpeed); err != nil {
			if ctx.Err() != nil {
				return s.result, err
			}
			// a failed correction leaves the pose as it was
			s.logger.Warnw("drift correction skipped", "error", err)
		}
		if err := s.goTo(ctx, s.state.SearchPoint()); err != nil {
			return s.result, err
		}
	}

	s.enter(ctx, PhaseOrient)
	s.logger.Infow("searching", "sector", s.sector.String(), "from", s.state.SearchPoint())
	if err := s.nav.TurnTo(ctx, s.sector.StartDeg, spatialmath.PolarDegrees, true); err != nil {
		return s.result, err
	}
	s.lastHeading = s.sector.StartDeg

	for {
		if err := s.scan(ctx); err != nil {
			return s.result, err
		}
		green, err := s.classify(ctx)
		if err != nil {
			return s.result, err
		}
		if !green {
			if err := s.reject(ctx); err != nil {
				return s.result, err
			}
			continue
		}
		complete, err := s.capture(ctx)
		if err != nil {
			return s.result, err
		}
		if complete {
			s.enter(ctx, PhaseComplete)
			s.state.SetSearching(false)
			s.signaler.Signal(ctx, robot.SignalMissionComplete)
			s.result.Complete = true
			return s.result, nil
		}
	}
}

func (s *Searcher) setupManipulators(ctx context.Context) error {
	for _, m := range []struct {
		motor motor.Motor
		speed float64
	}{{s.grip, s.cfg.GripSpeed}, {s.lift, s.cfg.LiftSpeed}} {
		if err := m.motor.SetAcceleration(ctx, s.cfg.GripAcceleration); err != nil {
			return motor.NewMotorError(m.motor.Name(), err)
		}
		if err := m.motor.SetSpeed(ctx, m.speed); err != nil {
			return motor.NewMotorError(m.motor.Name(), err)
		}
	}
	return nil
}

// goTo travels to p with the avoidance monitor watching. If the monitor takes over, it resumes
// toward p itself; goTo waits for that to finish.
func (s *Searcher) goTo(ctx context.Context, p r2.Point) error {
	s.state.SetSearching(false)
	err := s.nav.TravelTo(ctx, p, true)
	for errors.Is(err, navigation.ErrInterrupted) {
		s.logger.CDebugw(ctx, "travel taken over", "destination", p)
		for s.state.Avoiding() {
			if !goutils.SelectContextOrWait(ctx, s.poll()) {
				return ctx.Err()
			}
		}
		err = s.nav.WaitForMotion(ctx)
		if err == nil && s.nav.Pose().DistanceTo(p) > s.cfg.ArrivalTolerance {
			err = s.nav.TravelTo(ctx, p, true)
		}
	}
	if err != nil {
		return err
	}
	s.nav.SetTravelling(false)
	return nil
}

// sweepProgress is how far heading is past the sector start. Headings within the margin before
// the start are negative.
func (s *Searcher) sweepProgress(heading float64) float64 {
	p := spatialmath.NormalizeDegrees(heading - s.sector.StartDeg)
	if p > 360-s.cfg.SectorMarginDeg {
		p -= 360
	}
	return p
}

// scan turns through the sector and tracks candidates until one is within capture distance. The
// wheels are stopped when it returns.
func (s *Searcher) scan(ctx context.Context) error {
	s.enter(ctx, PhaseScan)
	s.state.SetSearching(true)
	s.ccw = true
	seen := false
	current := motionNone
	pose := s.nav.Pose()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		d, err := s.front.Distance(ctx)
		if err != nil {
			return errors.Wrapf(err, "sensor %s", s.front.Name())
		}
		heading := pose.Heading(spatialmath.PolarDegrees)

		if d < s.cfg.CaptureDistance {
			s.logger.CDebugw(ctx, "close enough to bump", "range", d, "heading", heading)
			return s.nav.Stop(ctx)
		}

		if d <= s.cfg.SearchCap {
			p := ProjectSighting(pose.Snapshot(), d)
			switch ClassifySighting(p, s.geometry) {
			case SightingCandidate:
				if !seen {
					s.enter(ctx, PhaseTrack)
					s.logger.CDebugw(ctx, "candidate", "at", p, "range", d)
				}
				seen = true
				s.lastHeading = heading
				if current != motionForward {
					if err := s.nav.Forward(ctx, s.cfg.ForwardSpeed); err != nil {
						return err
					}
					current = motionForward
				}
				if !goutils.SelectContextOrWait(ctx, s.poll()) {
					return ctx.Err()
				}
				continue
			case SightingZone:
				s.logger.CDebugw(ctx, "sighting inside a zone", "at", p)
				if err := s.nudge(ctx); err != nil {
					return err
				}
				seen, current = false, motionNone
				s.enter(ctx, PhaseScan)
				continue
			case SightingWall:
				if !seen {
					if err := s.nudge(ctx); err != nil {
						return err
					}
					current = motionNone
					continue
				}
				// the candidate led toward a wall; look the other way
				s.ccw = !s.ccw
				seen, current = false, motionNone
				s.enter(ctx, PhaseScan)
			}
		} else if seen && AngularDrift(heading, s.lastHeading) > s.cfg.LostDriftDeg {
			s.logger.CDebugw(ctx, "candidate lost", "heading", heading, "last seen", s.lastHeading)
			s.ccw = !s.ccw
			seen, current = false, motionNone
			s.enter(ctx, PhaseScan)
		}

		progress := s.sweepProgress(heading)
		switch {
		case s.ccw && progress > s.sector.Width()-s.cfg.SectorMarginDeg:
			if s.result.Relocations < s.cfg.MaxRelocations {
				if err := s.relocate(ctx); err != nil {
					return err
				}
				seen = false
			} else {
				s.ccw = false
			}
			current = motionNone
		case !s.ccw && progress < s.cfg.SectorMarginDeg:
			s.ccw = true
			current = motionNone
		}

		if current != motionSpin {
			if err := s.nav.Spin(ctx, s.cfg.ScanSpeed, s.ccw); err != nil {
				return err
			}
			current = motionSpin
		}
		if !goutils.SelectContextOrWait(ctx, s.poll()) {
			return ctx.Err()
		}
	}
}

// nudge turns a little further in the scan direction, past something not worth tracking.
func (s *Searcher) nudge(ctx context.Context) error {
	if err := s.nav.Stop(ctx); err != nil {
		return err
	}
	turn := s.cfg.NudgeDeg
	if !s.ccw {
		turn = -turn
	}
	return s.nav.RotateBy(ctx, turn, spatialmath.PolarDegrees, true)
}

// relocate probes the field, moves the search point and goes there, facing the sector start.
func (s *Searcher) relocate(ctx context.Context) error {
	s.enter(ctx, PhaseRelocate)
	if err := s.nav.Stop(ctx); err != nil {
		return err
	}
	probe := func(heading, threshold float64) (bool, error) {
		if err := s.nav.TurnTo(ctx, heading, spatialmath.PolarDegrees, true); err != nil {
			return false, err
		}
		d, err := s.front.Distance(ctx)
		if err != nil {
			return false, errors.Wrapf(err, "sensor %s", s.front.Name())
		}
		return d < threshold, nil
	}

	diagonalBlocked, err := probe(s.sector.StartDeg+45, s.cfg.DiagonalProbe)
	if err != nil {
		return err
	}
	startBlocked := false
	if diagonalBlocked {
		if startBlocked, err = probe(s.sector.StartDeg, s.cfg.StartProbe); err != nil {
			return err
		}
	}

	from := s.state.SearchPoint()
	next, err := Relocate(s.sector.Corner, from, s.geometry.Dimensions.TileWidth, diagonalBlocked, startBlocked)
	if err != nil {
		return err
	}
	s.state.SetSearchPoint(next)
	s.trail.Append(next)
	s.result.Relocations++
	s.logger.Infow("search point relocated", "from", from, "to", next,
		"diagonal_blocked", diagonalBlocked, "start_blocked", startBlocked)

	if err := s.goTo(ctx, next); err != nil {
		return err
	}
	if err := s.nav.TurnTo(ctx, s.sector.StartDeg+s.cfg.SectorMarginDeg, spatialmath.PolarDegrees, true); err != nil {
		return err
	}
	s.ccw = true
	s.state.SetSearching(true)
	s.enter(ctx, PhaseScan)
	return nil
}

// classify turns into the object in the scan direction and reads its color.
func (s *Searcher) classify(ctx context.Context) (bool, error) {
	s.enter(ctx, PhaseClassify)
	bump := s.cfg.BumpDeg
	if !s.ccw {
		bump = -bump
	}
	if err := s.nav.RotateBy(ctx, bump, spatialmath.PolarDegrees, true); err != nil {
		return false, err
	}
	c, err := s.color.Color(ctx)
	if err != nil {
		return false, errors.Wrapf(err, "sensor %s", s.color.Name())
	}
	green := sensor.IsGreenDominant(c)
	s.logger.CDebugw(ctx, "bumped", "color", c.Hex(), "green", green)
	return green, nil
}

// reject backs away from a non-target and resumes scanning from the search point, a little past
// where it was seen.
func (s *Searcher) reject(ctx context.Context) error {
	s.enter(ctx, PhaseReject)
	s.result.Rejected++
	if err := s.nav.TravelDistance(ctx, -s.body.BumperToCenter, true); err != nil {
		return err
	}
	return s.returnToSearchPoint(ctx)
}

func (s *Searcher) returnToSearchPoint(ctx context.Context) error {
	if err := s.goTo(ctx, s.state.SearchPoint()); err != nil {
		return err
	}
	return s.nav.TurnTo(ctx, s.lastHeading+s.cfg.RejectOffsetDeg, spatialmath.PolarDegrees, true)
}

// capture picks up the block in front of the robot, places it on the tower and comes back. It
// reports whether that completed the tower.
func (s *Searcher) capture(ctx context.Context) (bool, error) {
	s.enter(ctx, PhaseCapture)
	preset, err := PresetFor(s.cfg.TowerPresets, s.state.TowerHeight())
	if err != nil {
		return false, err
	}
	s.state.SetHoldingBlock(true)
	s.signaler.Signal(ctx, robot.SignalBlockFound)
	if err := s.resetLift(ctx); err != nil {
		return false, err
	}

	// the gripper is at the back: turn around and reverse onto the block
	if err := s.nav.TravelDistance(ctx, -1, true); err != nil {
		return false, err
	}
	if err := s.nav.RotateBy(ctx, 180, spatialmath.PolarDegrees, true); err != nil {
		return false, err
	}
	if err := s.nav.TravelDistance(ctx, -math.Abs(s.body.BumperToCenter-s.body.RangeToCenter)-2, true); err != nil {
		return false, err
	}
	wheels := []navigation.Wheel{navigation.RightWheel, navigation.LeftWheel}
	if !s.ccw {
		wheels[0], wheels[1] = wheels[1], wheels[0]
	}
	for _, w := range wheels {
		if err := s.nav.RotateWheel(ctx, w, s.cfg.OrientWheelDeg, true); err != nil {
			return false, err
		}
	}
	if err := motor.RotateAndWait(ctx, s.grip, s.cfg.GripCloseDeg, manipulatorPoll); err != nil {
		return false, err
	}
	if err := s.lift.Rotate(ctx, preset.LiftDeg); err != nil {
		return false, motor.NewMotorError(s.lift.Name(), err)
	}
	s.state.SetLiftPosition(preset.LiftDeg)

	for _, p := range s.trail.Inbound() {
		if err := s.goTo(ctx, p); err != nil {
			return false, err
		}
	}
	if err := s.goTo(ctx, s.geometry.StackPoint); err != nil {
		return false, err
	}
	if err := s.place(ctx, preset); err != nil {
		return false, err
	}
	for _, p := range s.trail.Outbound() {
		if err := s.goTo(ctx, p); err != nil {
			return false, err
		}
	}
	if err := s.returnToSearchPoint(ctx); err != nil {
		return false, err
	}

	s.state.SetHoldingBlock(false)
	height := s.state.IncrementTowerHeight()
	s.result.Captured++
	s.logger.Infow("block placed", "tower_height", height)
	return height >= robot.MaxTowerHeight, nil
}

// place backs the held block onto the tower and lets go of it.
func (s *Searcher) place(ctx context.Context, preset TowerPreset) error {
	if err := s.nav.TurnTo(ctx, s.sector.StartDeg, spatialmath.PolarDegrees, true); err != nil {
		return err
	}
	if err := s.nav.RotateBy(ctx, preset.StackTurnDeg, spatialmath.PolarDegrees, true); err != nil {
		return err
	}
	half := s.geometry.Dimensions.HalfTile()
	if err := s.nav.TravelDistance(ctx, -math.Hypot(half, half), true); err != nil {
		return err
	}
	if err := motor.RotateAndWait(ctx, s.lift, preset.UnliftDeg, manipulatorPoll); err != nil {
		return err
	}
	s.state.SetLiftPosition(preset.LiftDeg + preset.UnliftDeg)
	if err := motor.RotateAndWait(ctx, s.grip, -s.cfg.GripReleaseDeg, manipulatorPoll); err != nil {
		return err
	}
	if err := s.nav.TravelDistance(ctx, s.cfg.PlaceClearance, true); err != nil {
		return err
	}
	if err := s.resetLift(ctx); err != nil {
		return err
	}
	return motor.RotateAndWait(ctx, s.grip, -(s.cfg.GripCloseDeg - s.cfg.GripReleaseDeg), manipulatorPoll)
}

// resetLift brings the lift back to its rest position.
func (s *Searcher) resetLift(ctx context.Context) error {
	pos := s.state.LiftPosition()
	if pos == 0 {
		return nil
	}
	if err := motor.RotateAndWait(ctx, s.lift, -pos, manipulatorPoll); err != nil {
		return err
	}
	s.state.SetLiftPosition(0)
	return nil
}
