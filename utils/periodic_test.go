package utils

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"
)

func TestRunPeriodically(t *testing.T) {
	t.Run("stops when done", func(t *testing.T) {
		calls := 0
		err := RunPeriodically(context.Background(), clock.New(), time.Millisecond, func(ctx context.Context) (bool, error) {
			calls++
			return calls == 3, nil
		})
		test.That(t, err, test.ShouldBeNil)
		test.That(t, calls, test.ShouldEqual, 3)
	})

	t.Run("stops on error", func(t *testing.T) {
		err := RunPeriodically(context.Background(), clock.New(), time.Millisecond, func(ctx context.Context) (bool, error) {
			return false, errors.New("sensor gone")
		})
		test.That(t, err, test.ShouldBeError, errors.New("sensor gone"))
	})

	t.Run("cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		var calls atomic.Int32
		workers := NewStoppableWorkersWithContext(ctx, func(ctx context.Context) {
			//nolint:errcheck
			RunPeriodically(ctx, clock.New(), time.Hour, func(ctx context.Context) (bool, error) {
				calls.Add(1)
				return false, nil
			})
		})
		for calls.Load() == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel()
		workers.Stop()
		test.That(t, calls.Load(), test.ShouldEqual, 1)
	})

	t.Run("sleeps for the remainder of the period", func(t *testing.T) {
		mock := clock.NewMock()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var calls atomic.Int32
		errCh := make(chan error, 1)
		go func() {
			errCh <- RunPeriodically(ctx, mock, 25*time.Millisecond, func(ctx context.Context) (bool, error) {
				calls.Add(1)
				mock.Add(10 * time.Millisecond)
				return calls.Load() == 3, nil
			})
		}()

		for calls.Load() < 1 {
			time.Sleep(time.Millisecond)
		}
		// Each cycle consumes 10ms of its 25ms period. Advance the remaining 15ms until the loop
		// finishes.
		for calls.Load() < 3 {
			mock.Add(15 * time.Millisecond)
			time.Sleep(time.Millisecond)
		}
		test.That(t, <-errCh, test.ShouldBeNil)
		test.That(t, calls.Load(), test.ShouldEqual, 3)
	})

	t.Run("overrun starts the next cycle immediately", func(t *testing.T) {
		mock := clock.NewMock()
		calls := 0
		err := RunPeriodically(context.Background(), mock, 25*time.Millisecond, func(ctx context.Context) (bool, error) {
			calls++
			mock.Add(40 * time.Millisecond)
			return calls == 5, nil
		})
		test.That(t, err, test.ShouldBeNil)
		test.That(t, calls, test.ShouldEqual, 5)
	})
}

func TestStoppableWorkers(t *testing.T) {
	var running atomic.Int32
	workers := NewStoppableWorkers(func(ctx context.Context) {
		running.Add(1)
		<-ctx.Done()
		running.Add(-1)
	})
	for running.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	workers.Stop()
	test.That(t, running.Load(), test.ShouldEqual, 0)
	workers.Stop()

	workers.AddWorkers(func(ctx context.Context) { running.Add(1) })
	test.That(t, running.Load(), test.ShouldEqual, 0)
	test.That(t, workers.Context().Err(), test.ShouldNotBeNil)
}

func TestAngleHelpers(t *testing.T) {
	test.That(t, AngleDiffDeg(10, 350), test.ShouldAlmostEqual, 20)
	test.That(t, AngleDiffDeg(350, 10), test.ShouldAlmostEqual, 20)
	test.That(t, AngleDiffDeg(370, 0), test.ShouldAlmostEqual, 10)
	test.That(t, ModAngDeg(-90), test.ShouldAlmostEqual, 270)
	test.That(t, ModAngDeg(720), test.ShouldAlmostEqual, 0)
	test.That(t, Clamp(12, 0, 10), test.ShouldEqual, 10.)
	test.That(t, RadToDeg(DegToRad(33)), test.ShouldAlmostEqual, 33)
}
