package correction

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"github.com/gridbot/gridbot/components/sensor"
	"github.com/gridbot/gridbot/logging"
	"github.com/gridbot/gridbot/navigation"
	"github.com/gridbot/gridbot/robot"
	"github.com/gridbot/gridbot/spatialmath"
	rutils "github.com/gridbot/gridbot/utils"
)

// ErrCrossingCount is returned when a turn did not cross exactly four lines. The pose is left as
// it was.
var ErrCrossingCount = errors.New("expected exactly 4 line crossings")

const expectedCrossings = 4

// Config tunes the line detector and the correction routine.
type Config struct {
	// Enabled runs the routine before the first search.
	Enabled       bool    `json:"enabled"`
	PeriodMs      int     `json:"period_ms"`
	WindowSize    int     `json:"window_size"`
	RiseThreshold float64 `json:"rise_threshold"`
	FallThreshold float64 `json:"fall_threshold"`
	// PrepareAdvance is how far to drive on after the line that ends a prepare step.
	PrepareAdvance float64 `json:"prepare_advance_cm"`
	// SpinStartDeg is the polar heading the 360° turn starts from. The first line the sensor meets
	// from there must be the vertical one.
	SpinStartDeg float64 `json:"spin_start_deg"`
}

// DefaultConfig returns the tuning found on the competition floor.
func DefaultConfig() Config {
	return Config{
		PeriodMs:       50,
		WindowSize:     20,
		RiseThreshold:  70,
		FallThreshold:  -30,
		PrepareAdvance: 7,
		SpinStartDeg:   -115,
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.PeriodMs <= 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "period_ms")
	}
	if cfg.WindowSize < 2 {
		return utils.NewConfigValidationError(path, errors.Errorf("window_size must be at least 2, got %d", cfg.WindowSize))
	}
	if cfg.RiseThreshold <= 0 || cfg.FallThreshold >= 0 {
		return utils.NewConfigValidationError(path,
			errors.New("rise_threshold must be positive and fall_threshold negative"))
	}
	return nil
}

// A Corrector runs drift correction with one light sensor.
type Corrector struct {
	nav      navigation.Navigator
	light    sensor.LightSensor
	body     robot.Body
	signaler robot.Signaler
	cfg      Config
	clk      clock.Clock
	logger   logging.Logger
}

// NewCorrector returns a corrector that moves with nav and overwrites nav's pose.
func NewCorrector(
	nav navigation.Navigator,
	light sensor.LightSensor,
	body robot.Body,
	signaler robot.Signaler,
	cfg Config,
	clk clock.Clock,
	logger logging.Logger,
) *Corrector {
	if clk == nil {
		clk = clock.New()
	}
	return &Corrector{
		nav:      nav,
		light:    light,
		body:     body,
		signaler: signaler,
		cfg:      cfg,
		clk:      clk,
		logger:   logger,
	}
}

func (c *Corrector) period() time.Duration {
	return time.Duration(c.cfg.PeriodMs) * time.Millisecond
}

func (c *Corrector) detector() *LineDetector {
	return NewLineDetector(c.cfg.WindowSize, c.cfg.RiseThreshold, c.cfg.FallThreshold)
}

// Correct samples the light sensor while a turn started by the caller is in progress, and
// overwrites the pose once the wheels stop. corner is the grid intersection the robot turns next
// to.
func (c *Corrector) Correct(ctx context.Context, corner r2.Point) (spatialmath.Snapshot, error) {
	pose := c.nav.Pose()
	detector := c.detector()
	var crossings []float64

	err := rutils.RunPeriodically(ctx, c.clk, c.period(), func(ctx context.Context) (bool, error) {
		intensity, err := c.light.Intensity(ctx)
		if err != nil {
			return false, errors.Wrapf(err, "sensor %s", c.light.Name())
		}
		if heading, ok := detector.Add(intensity, pose.Heading(spatialmath.Cartesian)); ok {
			crossings = append(crossings, heading)
			c.logger.CDebugf(ctx, "line %d crossed at %.1f°", len(crossings), rutils.RadToDeg(heading))
			c.signaler.Signal(ctx, robot.SignalLineCrossed)
		}
		moving, err := c.nav.IsMoving(ctx)
		if err != nil {
			return false, err
		}
		return !moving, nil
	})
	if err != nil {
		return spatialmath.Snapshot{}, err
	}

	if len(crossings) != expectedCrossings {
		c.signaler.Signal(ctx, robot.SignalCorrectionFailed)
		return pose.Snapshot(), errors.Wrapf(ErrCrossingCount, "got %d", len(crossings))
	}

	var four [expectedCrossings]float64
	copy(four[:], crossings)
	corrected := Triangulate(four, pose.Heading(spatialmath.Cartesian), corner,
		c.body.LightToCenter, rutils.DegToRad(c.body.LightAngleDeg))
	c.logger.Infow("pose corrected", "from", pose.Snapshot().String(), "to", corrected.String())
	pose.Set(corrected.X, corrected.Y, corrected.Heading)
	return corrected, nil
}

// Prepare drives straight ahead until the light sensor crosses one line, then drives on
// PrepareAdvance centimeters. speed is the forward wheel speed.
func (c *Corrector) Prepare(ctx context.Context, speed float64) error {
	if err := c.nav.Stop(ctx); err != nil {
		return err
	}
	if err := c.nav.Forward(ctx, speed); err != nil {
		return err
	}
	detector := c.detector()
	err := rutils.RunPeriodically(ctx, c.clk, c.period(), func(ctx context.Context) (bool, error) {
		intensity, err := c.light.Intensity(ctx)
		if err != nil {
			return false, errors.Wrapf(err, "sensor %s", c.light.Name())
		}
		_, crossed := detector.Add(intensity, c.nav.Pose().Heading(spatialmath.Cartesian))
		return crossed, nil
	})
	if err != nil {
		return multierr.Combine(err, c.nav.Stop(ctx))
	}
	c.signaler.Signal(ctx, robot.SignalLineCrossed)
	return c.nav.TravelDistance(ctx, c.cfg.PrepareAdvance, true)
}

// Run is the whole routine: go to anchor, square up on the two lines through corner by
// crossing each once, then turn a full circle over the intersection and correct.
//
// corner must be up and to the right of anchor, less than a tile away on each axis.
func (c *Corrector) Run(ctx context.Context, anchor, corner r2.Point, speed float64) (spatialmath.Snapshot, error) {
	if err := c.nav.TravelTo(ctx, anchor, true); err != nil {
		return spatialmath.Snapshot{}, err
	}
	// north crosses the horizontal line, then a little south of east the vertical one
	for _, heading := range []float64{90, 350} {
		if err := c.nav.TurnTo(ctx, heading, spatialmath.PolarDegrees, true); err != nil {
			return spatialmath.Snapshot{}, err
		}
		if err := c.Prepare(ctx, speed); err != nil {
			return spatialmath.Snapshot{}, err
		}
	}
	if err := c.nav.TurnTo(ctx, c.cfg.SpinStartDeg, spatialmath.PolarDegrees, true); err != nil {
		return spatialmath.Snapshot{}, err
	}
	if err := c.nav.RotateBy(ctx, 360, spatialmath.PolarDegrees, false); err != nil {
		return spatialmath.Snapshot{}, err
	}
	return c.Correct(ctx, corner)
}
