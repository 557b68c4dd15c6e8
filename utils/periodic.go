package utils

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
)

// PeriodicFunc is one cycle of a periodic task. Returning done ends the loop.
type PeriodicFunc func(ctx context.Context) (done bool, err error)

// RunPeriodically calls f once per period until f reports done, f fails or ctx is cancelled.
// Each cycle sleeps only for the remainder of the period. A cycle that overruns the period is
// followed immediately by the next one; missed cycles are not made up.
func RunPeriodically(ctx context.Context, clk clock.Clock, period time.Duration, f PeriodicFunc) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := clk.Now()
		done, err := f(ctx)
		if err != nil || done {
			return err
		}

		remaining := period - clk.Since(start)
		if remaining <= 0 {
			continue
		}
		timer := clk.Timer(remaining)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
