package runner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var ErrManagerAlreadyStarted = errors.New("runner manager already started")

// Runner is a long running task that returns when its context is cancelled.
type Runner func(ctx context.Context) error

type RunnerManager interface {
	Add(runner ...Runner) error
	Run(ctx context.Context) error
}

// runnerManager runs all runners in parallel. The first runner to return
// cancels the others.
type runnerManager struct {
	runners []Runner
	lock    sync.Mutex
	running atomic.Bool
}

// NewRunnerManager creates a new RunnerManager.
func NewRunnerManager(runners ...Runner) RunnerManager {
	return &runnerManager{
		runners: runners,
	}
}

// Add adds runners before the manager is started.
func (r *runnerManager) Add(runner ...Runner) error {
	if r.running.Load() {
		return ErrManagerAlreadyStarted
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	r.runners = append(r.runners, runner...)
	return nil
}

// Run blocks until all runners returned and joins their errors.
// Cancellation errors are dropped since they only reflect the shutdown.
func (r *runnerManager) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrManagerAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.lock.Lock()
	runners := append([]Runner{}, r.runners...)
	r.lock.Unlock()

	errCh := make(chan error, len(runners))
	for _, runner := range runners {
		go func(runner Runner) {
			defer cancel()

			err := runner(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				errCh <- err
				return
			}
			errCh <- nil
		}(runner)
	}

	errs := make([]error, 0, len(runners))
	for range runners {
		if err := <-errCh; err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
