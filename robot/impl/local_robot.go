// Package robotimpl assembles a complete robot from a config: the simulated world and its
// motors and sensors, the position estimator, the motion driver, and the procedures and tasks
// that use them.
package robotimpl

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/gridbot/gridbot/avoidance"
	"github.com/gridbot/gridbot/components/sensor"
	"github.com/gridbot/gridbot/config"
	"github.com/gridbot/gridbot/correction"
	"github.com/gridbot/gridbot/field"
	"github.com/gridbot/gridbot/localization"
	"github.com/gridbot/gridbot/logging"
	"github.com/gridbot/gridbot/navigation"
	"github.com/gridbot/gridbot/odometry"
	"github.com/gridbot/gridbot/robot"
	"github.com/gridbot/gridbot/search"
	"github.com/gridbot/gridbot/simulation"
	"github.com/gridbot/gridbot/spatialmath"
	"github.com/gridbot/gridbot/telemetry"
	"github.com/gridbot/gridbot/utils"
)

// LocalRobot is every part of one robot, built once and shared by reference.
type LocalRobot struct {
	cfg      *config.Config
	geometry *field.Geometry
	logger   logging.Logger
	opts     options

	world     *simulation.World
	state     *robot.State
	signaler  robot.Signaler
	odometer  *odometry.Odometer
	driver    *navigation.Driver
	localizer *localization.Localizer
	monitor   *avoidance.Monitor
	searcher  *search.Searcher
	csv       *telemetry.CSVLogger
	display   *telemetry.Display

	mu      sync.Mutex
	workers *utils.StoppableWorkers
	running bool
	closed  bool
}

// New returns a robot built from cfg for the field described by geometry. Nothing moves until
// Run.
func New(
	ctx context.Context,
	cfg *config.Config,
	geometry *field.Geometry,
	logger logging.Logger,
	opts ...Option,
) (_ *LocalRobot, err error) {
	var rOpts options
	for _, opt := range opts {
		opt.apply(&rOpts)
	}
	if rOpts.signaler == nil {
		rOpts.signaler = robot.NewLogSignaler(logger.Sublogger("signal"))
	}
	if rOpts.displayOut == nil {
		rOpts.displayOut = os.Stdout
	}
	clk := rOpts.clk

	r := &LocalRobot{
		cfg:      cfg,
		geometry: geometry,
		logger:   logger,
		opts:     rOpts,
		state:    robot.NewState(geometry.SearchPoint),
		signaler: rOpts.signaler,
	}

	simCfg := cfg.Simulation.ForCorner(geometry.StartingCorner, cfg.Field)
	r.world = simulation.NewWorld(simCfg, cfg.Field, cfg.Body, clk, logger.Sublogger("world"))
	left, right, grip, lift := r.world.Motors()
	raw := r.world.NewSensors()
	front := sensor.NewMedianFilter(raw.Front, cfg.RangeFilter)
	side := sensor.NewMedianFilter(raw.Side, cfg.RangeFilter)

	// the robot believes it starts at the origin until it has localized
	pose := spatialmath.NewPose(0, 0, 0)
	period := time.Duration(cfg.Odometry.PeriodMs) * time.Millisecond
	r.odometer, err = odometry.NewOdometer(ctx, left, right, cfg.Body, pose, period, clk, logger.Sublogger("odometer"))
	if err != nil {
		return nil, err
	}
	r.driver = navigation.NewDriver(left, right, cfg.Body, pose, cfg.Navigation, logger.Sublogger("driver"))

	r.localizer = localization.NewLocalizer(r.driver, front, side, cfg.Body, cfg.Field, geometry.StartingCorner,
		r.state, r.signaler, cfg.Localization, logger.Sublogger("localization"))
	r.monitor = avoidance.NewMonitor(r.driver, front, side, raw.Color, r.state, r.signaler, cfg.Avoidance, clk,
		logger.Sublogger("avoidance"))

	deps := search.Deps{
		Nav:      r.driver,
		Front:    front,
		Color:    raw.Color,
		Grip:     grip,
		Lift:     lift,
		Signaler: r.signaler,
	}
	if cfg.Correction.Enabled {
		deps.Corrector = correction.NewCorrector(r.driver, raw.Down, cfg.Body, r.signaler, cfg.Correction, clk,
			logger.Sublogger("correction"))
	}
	r.searcher = search.NewSearcher(deps, geometry, cfg.Body, r.state, cfg.Search, logger.Sublogger("search"))

	telemetryLogger := logger.Sublogger("telemetry")
	if cfg.Telemetry.Dir != "" {
		r.csv, err = telemetry.NewCSVLogger(cfg.Telemetry.Dir, r, cfg.Telemetry.CSVPeriod(), clk, telemetryLogger)
		if err != nil {
			return nil, err
		}
		telemetryLogger.Infow("logging telemetry", "path", r.csv.Path(), "run_id", r.csv.RunID().String())
	}
	if cfg.Telemetry.Display {
		r.display = telemetry.NewDisplay(rOpts.displayOut, r, cfg.Telemetry.DisplayPeriod(), clk, telemetryLogger)
	}

	logger.Infow("robot ready",
		"team", cfg.TeamNumber,
		"role", geometry.Role.String(),
		"corner", geometry.StartingCorner,
		"search_point", geometry.SearchPoint,
	)
	return r, nil
}

// State returns the shared state of the robot.
func (r *LocalRobot) State() *robot.State {
	return r.state
}

// Navigator returns the motion driver.
func (r *LocalRobot) Navigator() navigation.Navigator {
	return r.driver
}

// World returns the simulated world the robot runs in.
func (r *LocalRobot) World() *simulation.World {
	return r.world
}

// Entry samples the robot for telemetry.
func (r *LocalRobot) Entry() telemetry.Entry {
	phase := r.searcher.Phase().String()
	if r.state.Localizing() {
		phase = r.localizer.Phase().String()
	}
	now := time.Now()
	if r.opts.clk != nil {
		now = r.opts.clk.Now()
	}
	return telemetry.Entry{
		Time:         now,
		Pose:         r.driver.Pose().Snapshot(),
		Phase:        phase,
		TowerHeight:  r.state.TowerHeight(),
		Localizing:   r.state.Localizing(),
		Searching:    r.state.Searching(),
		Avoiding:     r.state.Avoiding(),
		HoldingBlock: r.state.HoldingBlock(),
	}
}

// Run starts the background tasks, localizes, and searches until the tower is complete or ctx is
// done. A robot can only run once.
func (r *LocalRobot) Run(ctx context.Context) (search.Result, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return search.Result{}, errors.New("robot is closed")
	}
	if r.running {
		r.mu.Unlock()
		return search.Result{}, errors.New("robot is already running")
	}
	r.running = true
	r.workers = utils.NewStoppableWorkers(r.world.Run)
	r.mu.Unlock()

	r.odometer.Start()
	if r.csv != nil {
		r.csv.Start()
	}
	if r.display != nil {
		r.display.Start()
	}

	r.signaler.Signal(ctx, robot.SignalReady)
	if err := r.localizer.Localize(ctx); err != nil {
		return search.Result{}, multierr.Combine(errors.Wrap(err, "localization failed"), r.stopWheels())
	}
	r.logger.Infow("localized", "pose", r.driver.Pose().Snapshot().String())

	r.monitor.Start()
	result, err := r.searcher.Run(ctx)
	if err != nil {
		err = errors.Wrap(err, "search failed")
	}
	r.logger.Infow("run over",
		"captured", result.Captured,
		"rejected", result.Rejected,
		"relocations", result.Relocations,
		"complete", result.Complete,
	)
	return result, multierr.Combine(err, r.stopWheels())
}

func (r *LocalRobot) stopWheels() error {
	//nolint:contextcheck
	return r.driver.Stop(context.Background())
}

// Close stops every task, stops the wheels and releases the telemetry log.
func (r *LocalRobot) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	r.monitor.Close()
	if r.display != nil {
		r.display.Close()
	}
	err := r.driver.Stop(ctx)
	r.odometer.Close()
	if r.workers != nil {
		r.workers.Stop()
	}
	if r.csv != nil {
		err = multierr.Combine(err, r.csv.Close())
	}
	return err
}
