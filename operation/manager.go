// Package operation makes actuator commands preemptible: starting a new command cancels the one
// in flight.
package operation

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.viam.com/utils"
)

// SingleOperationManager ensures only 1 operation is happening a time.
// An operation can be nested, so if there is already an operation in progress,
// it can have sub-operations without an issue.
type SingleOperationManager struct {
	mu        sync.Mutex
	currentOp *anOp
}

// CancelRunning cancels the current operation unless it's mine.
func (sm *SingleOperationManager) CancelRunning(ctx context.Context) {
	if ctx.Value(somCtxKeySingleOp) != nil {
		return
	}
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.cancelInLock(ctx)
}

// OpRunning returns if there is a current operation.
func (sm *SingleOperationManager) OpRunning() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.currentOp != nil
}

type somCtxKey byte

const somCtxKeySingleOp = somCtxKey(iota)

// New creates a new operation, cancels previous, returns a new context and function to call when done.
func (sm *SingleOperationManager) New(ctx context.Context) (context.Context, func()) {
	// handle nested ops
	if ctx.Value(somCtxKeySingleOp) != nil {
		return ctx, func() {}
	}

	sm.mu.Lock()

	// first cancel any old operation
	sm.cancelInLock(ctx)

	theOp := &anOp{}

	ctx = context.WithValue(ctx, somCtxKeySingleOp, theOp)

	theOp.ctx, theOp.cancelFunc = context.WithCancel(ctx)
	sm.currentOp = theOp
	sm.mu.Unlock()

	return theOp.ctx, func() {
		sm.mu.Lock()
		if theOp == sm.currentOp {
			sm.currentOp = nil
		}
		sm.mu.Unlock()
		theOp.cancelFunc()
	}
}

// NewTimedWaitOp returns true if it finished, false if cancelled.
// If there are other operations pending, this will cancel them.
func (sm *SingleOperationManager) NewTimedWaitOp(ctx context.Context, dur time.Duration) bool {
	ctx, finish := sm.New(ctx)
	defer finish()

	return utils.SelectContextOrWait(ctx, dur)
}

// Mover is anything that can report whether it is still in motion.
type Mover interface {
	IsMoving(ctx context.Context) (bool, error)
}

// WaitTillStopped polls every pollTime until none of the movers report motion. If the wait is
// cancelled by a newer operation, stop is called so the actuators are not left running.
func (sm *SingleOperationManager) WaitTillStopped(
	ctx context.Context,
	pollTime time.Duration,
	stop func(context.Context) error,
	movers ...Mover,
) (err error) {
	ctx, finish := sm.New(ctx)
	defer finish()

	defer func() {
		if !errors.Is(ctx.Err(), context.Canceled) || stop == nil {
			return
		}
		sm.mu.Lock()
		superseded := sm.currentOp != nil && sm.currentOp != ctx.Value(somCtxKeySingleOp)
		sm.mu.Unlock()
		if !superseded {
			//nolint:contextcheck
			err = multierr.Combine(err, stop(context.Background()))
		}
	}()

	return sm.WaitForSuccess(
		ctx,
		pollTime,
		func(ctx context.Context) (bool, error) {
			for _, m := range movers {
				moving, err := m.IsMoving(ctx)
				if err != nil {
					return false, err
				}
				if moving {
					return false, nil
				}
			}
			return true, nil
		},
	)
}

// WaitForSuccess will call testFunc every pollTime until it returns true or an error.
func (sm *SingleOperationManager) WaitForSuccess(
	ctx context.Context,
	pollTime time.Duration,
	testFunc func(ctx context.Context) (bool, error),
) error {
	ctx, finish := sm.New(ctx)
	defer finish()

	for {
		res, err := testFunc(ctx)
		if err != nil {
			return err
		}
		if res {
			return nil
		}

		if !utils.SelectContextOrWait(ctx, pollTime) {
			return ctx.Err()
		}
	}
}

func (sm *SingleOperationManager) cancelInLock(ctx context.Context) {
	myOp := ctx.Value(somCtxKeySingleOp)
	op := sm.currentOp

	if op == nil || myOp == op {
		return
	}

	op.cancelFunc()

	sm.currentOp = nil
}

type anOp struct {
	ctx        context.Context
	cancelFunc context.CancelFunc
}
