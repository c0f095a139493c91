package service

import (
	"context"
	"sync"
	"time"
)

// supervisor owns one run of a RunFunc. stop cancels the run context once;
// the platform loop decides how long to wait for the run to return.
type supervisor struct {
	runFunc RunFunc
	timeout time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped bool
	done    chan error
}

func newSupervisor(runFunc RunFunc) *supervisor {
	return &supervisor{
		runFunc: runFunc,
		timeout: stopTimeout,
		done:    make(chan error, 1),
	}
}

// start launches runFunc with a cancellable child of ctx. A stop requested
// before start cancels the run immediately.
func (s *supervisor) start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.cancel = cancel
	if s.stopped {
		cancel()
	}
	s.mu.Unlock()

	go func() {
		s.done <- s.runFunc(ctx)
	}()
}

// exited yields the run error once runFunc returns.
func (s *supervisor) exited() <-chan error {
	return s.done
}

// started reports whether start has been called.
func (s *supervisor) started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// stop cancels the run context. Only the first call has an effect.
func (s *supervisor) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.stopped = true
	if s.cancel != nil {
		s.cancel()
	}
}
