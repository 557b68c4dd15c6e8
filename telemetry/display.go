package telemetry

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/gridbot/gridbot/logging"
	"github.com/gridbot/gridbot/spatialmath"
	"github.com/gridbot/gridbot/utils"
)

// Render draws e as a one-row table.
func Render(e Entry) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"X", "Y", "θ", "Phase", "Tower", "Flags"})
	t.AppendRow(table.Row{
		fmt.Sprintf("%.1f", e.Pose.X),
		fmt.Sprintf("%.1f", e.Pose.Y),
		fmt.Sprintf("%.0f°", spatialmath.FromRadians(e.Pose.Heading, spatialmath.PolarDegrees)),
		e.Phase,
		e.TowerHeight,
		e.Flags(),
	})
	return t.Render()
}

// Display redraws the robot's state on a writer every period.
type Display struct {
	out      io.Writer
	provider Provider
	period   time.Duration
	clk      clock.Clock
	logger   logging.Logger

	workersMu sync.Mutex
	workers   *utils.StoppableWorkers
}

// NewDisplay returns a display that writes to out.
func NewDisplay(out io.Writer, provider Provider, period time.Duration, clk clock.Clock, logger logging.Logger) *Display {
	if clk == nil {
		clk = clock.New()
	}
	return &Display{out: out, provider: provider, period: period, clk: clk, logger: logger}
}

// Refresh draws the current state once.
func (d *Display) Refresh() error {
	_, err := fmt.Fprintln(d.out, Render(d.provider.Entry()))
	return err
}

// Start refreshes in the background until Close. A failing writer stops the display but nothing
// else.
func (d *Display) Start() {
	d.workersMu.Lock()
	defer d.workersMu.Unlock()
	if d.workers != nil {
		return
	}
	d.workers = utils.NewStoppableWorkers(func(ctx context.Context) {
		err := utils.RunPeriodically(ctx, d.clk, d.period, func(ctx context.Context) (bool, error) {
			return false, d.Refresh()
		})
		if err != nil && ctx.Err() == nil {
			d.logger.Warnw("display stopped", "error", err)
		}
	})
}

// Close stops the display.
func (d *Display) Close() {
	d.workersMu.Lock()
	defer d.workersMu.Unlock()
	if d.workers != nil {
		d.workers.Stop()
	}
}
