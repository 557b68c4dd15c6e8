// Package odometry implements dead reckoning: the pose estimate integrated from wheel rotation.
package odometry

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/gridbot/gridbot/components/motor"
	"github.com/gridbot/gridbot/logging"
	"github.com/gridbot/gridbot/robot"
	"github.com/gridbot/gridbot/spatialmath"
	"github.com/gridbot/gridbot/utils"
)

// DefaultPeriod is how often the pose is updated.
const DefaultPeriod = 25 * time.Millisecond

// Odometer integrates the tachometers of the two drive motors into a pose. While it runs it is
// the only writer of the pose, except during localization and drift correction.
type Odometer struct {
	left, right motor.Motor
	body        robot.Body
	pose        *spatialmath.Pose
	period      time.Duration
	clk         clock.Clock
	logger      logging.Logger

	mu                  sync.Mutex
	lastLeft, lastRight float64

	workersMu sync.Mutex
	workers   *utils.StoppableWorkers
}

// NewOdometer returns an odometer that writes into pose. The current tachometer readings are the
// starting point; rotation before this call is not counted.
func NewOdometer(
	ctx context.Context,
	left, right motor.Motor,
	body robot.Body,
	pose *spatialmath.Pose,
	period time.Duration,
	clk clock.Clock,
	logger logging.Logger,
) (*Odometer, error) {
	if period <= 0 {
		period = DefaultPeriod
	}
	if clk == nil {
		clk = clock.New()
	}
	o := &Odometer{
		left:   left,
		right:  right,
		body:   body,
		pose:   pose,
		period: period,
		clk:    clk,
		logger: logger,
	}
	l, r, err := o.readTachometers(ctx)
	if err != nil {
		return nil, err
	}
	o.lastLeft, o.lastRight = l, r
	return o, nil
}

// Pose returns the pose being estimated.
func (o *Odometer) Pose() *spatialmath.Pose {
	return o.pose
}

// Start runs Update every period in the background until Close.
func (o *Odometer) Start() {
	o.workersMu.Lock()
	defer o.workersMu.Unlock()
	if o.workers != nil {
		return
	}
	o.workers = utils.NewStoppableWorkers(func(ctx context.Context) {
		err := utils.RunPeriodically(ctx, o.clk, o.period, func(ctx context.Context) (bool, error) {
			if err := o.Update(ctx); err != nil && ctx.Err() == nil {
				o.logger.CDebugf(ctx, "skipping odometry cycle: %v", err)
			}
			return false, nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			o.logger.Errorw("odometer stopped", "error", err)
		}
	})
}

// Close stops the background task and waits for it to exit.
func (o *Odometer) Close() {
	o.workersMu.Lock()
	defer o.workersMu.Unlock()
	if o.workers != nil {
		o.workers.Stop()
	}
}

// Update runs one integration cycle. The displacement is applied along the heading held before
// this cycle's rotation.
func (o *Odometer) Update(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	l, r, err := o.readTachometers(ctx)
	if err != nil {
		return err
	}

	dl := math.Pi * o.body.WheelRadius * (l - o.lastLeft) / 180
	dr := math.Pi * o.body.WheelRadius * (r - o.lastRight) / 180
	o.lastLeft, o.lastRight = l, r

	o.pose.Integrate((dl+dr)/2, (dr-dl)/o.body.Track)
	return nil
}

func (o *Odometer) readTachometers(ctx context.Context) (float64, float64, error) {
	l, errL := o.left.Position(ctx)
	if errL != nil {
		errL = motor.NewMotorError(o.left.Name(), errL)
	}
	r, errR := o.right.Position(ctx)
	if errR != nil {
		errR = motor.NewMotorError(o.right.Name(), errR)
	}
	return l, r, multierr.Combine(errL, errR)
}
