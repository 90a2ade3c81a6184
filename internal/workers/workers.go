// Package workers manages the node's background worker goroutines — the C6
// dispatcher loop — stopping them cleanly on shutdown and reporting whatever
// teardown errors they returned.
package workers

import (
	"context"
	"sync"

	"go.uber.org/multierr"
	goutils "go.viam.com/utils"
)

// Worker runs for the lifetime of the node; ctx is canceled when Stop is
// called. A non-nil return is folded into Stop's combined error alongside
// every other worker's.
type Worker func(context.Context) error

// StoppableWorkers is a collection of goroutines that can be stopped at a
// later time, aggregating their teardown errors.
type StoppableWorkers interface {
	AddWorkers(...Worker)
	Stop() error
	Context() context.Context
}

// stoppableWorkersImpl is the implementation of StoppableWorkers. The linter will complain if you
// try to make a copy of something that contains a sync.WaitGroup (and returning a value at the end
// of New() would make a copy of it), so we do everything through the StoppableWorkers interface to
// avoid making copies (since interfaces do everything by pointer).
type stoppableWorkersImpl struct {
	mu                      sync.Mutex
	cancelCtx               context.Context
	cancelFunc              func()
	activeBackgroundWorkers sync.WaitGroup
	teardownErr             error
}

// New runs the given workers in separate goroutines. They can be stopped
// later via Stop.
func New(workers ...Worker) StoppableWorkers {
	cancelCtx, cancelFunc := context.WithCancel(context.Background())
	sw := &stoppableWorkersImpl{cancelCtx: cancelCtx, cancelFunc: cancelFunc}
	sw.AddWorkers(workers...)
	return sw
}

// AddWorkers starts up additional goroutines for each worker passed in. If you call this after
// calling Stop(), it will return immediately without starting any new goroutines.
func (sw *stoppableWorkersImpl) AddWorkers(workers ...Worker) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.cancelCtx.Err() != nil { // We've already stopped everything.
		return
	}

	sw.activeBackgroundWorkers.Add(len(workers))
	for _, w := range workers {
		w := w
		goutils.PanicCapturingGo(func() {
			defer sw.activeBackgroundWorkers.Done()
			if err := w(sw.cancelCtx); err != nil {
				sw.mu.Lock()
				sw.teardownErr = multierr.Append(sw.teardownErr, err)
				sw.mu.Unlock()
			}
		})
	}
}

// Stop cancels every worker's context, waits for them all to return, and
// reports the combined error of whichever workers returned one.
func (sw *stoppableWorkersImpl) Stop() error {
	sw.mu.Lock()
	sw.cancelFunc()
	sw.mu.Unlock()

	sw.activeBackgroundWorkers.Wait()

	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.teardownErr
}

// Context gets the context the workers are checking on. Using this function is expected to be
// rare: usually you shouldn't need to interact with the context directly.
func (sw *stoppableWorkersImpl) Context() context.Context {
	return sw.cancelCtx
}
