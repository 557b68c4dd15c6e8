package utils

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
)

// SimpleFunc is for RunInParallel.
type SimpleFunc func(ctx context.Context) error

// RunInParallel runs all functions in parallel, return is elapsed time and an error. The first
// failure cancels the context handed to the others.
func RunInParallel(ctx context.Context, fs []SimpleFunc) (time.Duration, error) {
	start := time.Now()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup

	var bigError error
	var bigErrorMutex sync.Mutex
	storeError := func(err error) {
		bigErrorMutex.Lock()
		defer bigErrorMutex.Unlock()
		if bigError == nil || !errors.Is(err, context.Canceled) {
			bigError = multierr.Combine(bigError, err)
		}
	}

	helper := func(f SimpleFunc) {
		defer func() {
			if thePanic := recover(); thePanic != nil {
				storeError(fmt.Errorf("got panic running something in parallel: %v", thePanic))
				cancel()
			}
			wg.Done()
		}()
		if err := f(ctx); err != nil {
			storeError(err)
			cancel()
		}
	}

	for _, f := range fs {
		wg.Add(1)
		go helper(f)
	}

	wg.Wait()
	return time.Since(start), bigError
}

// FloatFunc is for GetInParallel.
type FloatFunc func(ctx context.Context) (float64, error)

// GetInParallel runs all functions in parallel, return is elapsed time, a list of floats in the
// order of the functions, and an error.
func GetInParallel(ctx context.Context, fs []FloatFunc) (time.Duration, []float64, error) {
	results := make([]float64, len(fs))
	simple := make([]SimpleFunc, 0, len(fs))
	for i, f := range fs {
		i, f := i, f
		simple = append(simple, func(ctx context.Context) error {
			value, err := f(ctx)
			if err != nil {
				return err
			}
			results[i] = value
			return nil
		})
	}
	elapsed, err := RunInParallel(ctx, simple)
	return elapsed, results, err
}
