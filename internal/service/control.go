package service

import (
	"context"
	"time"

	"locationagent/internal/logger"
)

// PauseFunc is called when the service manager pauses (true) or continues
// (false) the service. The agent maps it to STOP and START of tracking.
type PauseFunc func(paused bool)

// Option configures a Service.
type Option func(*options)

type options struct {
	onPause PauseFunc
}

// WithPauseHandler lets the service manager pause and continue tracking.
// Only the Windows service honours it; on Linux tracking is driven by the
// command signals instead.
func WithPauseHandler(fn PauseFunc) Option {
	return func(o *options) { o.onPause = fn }
}

func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// controlState is the state reported back to the service manager.
type controlState int

const (
	stateStartPending controlState = iota
	stateRunning
	statePaused
	stateStopPending
	stateStopped
)

func (s controlState) String() string {
	switch s {
	case stateStartPending:
		return "start-pending"
	case stateRunning:
		return "running"
	case statePaused:
		return "paused"
	case stateStopPending:
		return "stop-pending"
	default:
		return "stopped"
	}
}

// control is a request from the service manager.
type control int

const (
	controlUnknown control = iota
	controlInterrogate
	controlStop
	controlPause
	controlContinue
)

// interrogateEcho separates the two answers to an interrogate request.
// Some service managers miss a single immediate reply.
const interrogateEcho = 100 * time.Millisecond

// controlLoop runs the supervised RunFunc and answers service-manager
// requests until it returns. The first stop request cancels the run; a
// second one, or the stop timeout, abandons the wait and returns nil.
type controlLoop[R any] struct {
	sup      *supervisor
	requests <-chan R
	classify func(R) control
	report   func(controlState)
	onPause  PauseFunc
}

func (l *controlLoop[R]) run() error {
	log := logger.WithComponent("service-control")

	l.report(stateStartPending)
	l.sup.start(context.Background())
	state := stateRunning
	l.report(state)
	log.Info().Str("service", Name).Msg("Service started")

	for {
		select {
		case err := <-l.sup.exited():
			if err != nil {
				log.Error().Err(err).Msg("Agent exited with error")
			}
			l.report(stateStopped)
			return err

		case req := <-l.requests:
			switch l.classify(req) {
			case controlInterrogate:
				l.interrogate(state)

			case controlPause:
				if state != stateRunning || l.onPause == nil {
					continue
				}
				log.Info().Msg("Service paused, stopping tracking")
				l.onPause(true)
				state = statePaused
				l.report(state)

			case controlContinue:
				if state != statePaused {
					continue
				}
				log.Info().Msg("Service continued, starting tracking")
				l.onPause(false)
				state = stateRunning
				l.report(state)

			case controlStop:
				log.Info().Msg("Received stop request from service manager")
				return l.drain()

			default:
				log.Warn().Msg("Unexpected service control request")
			}
		}
	}
}

// drain stops the run and waits for it.
func (l *controlLoop[R]) drain() error {
	log := logger.WithComponent("service-control")

	l.report(stateStopPending)
	l.sup.stop()

	timeout := time.NewTimer(l.sup.timeout)
	defer timeout.Stop()

	for {
		select {
		case err := <-l.sup.exited():
			l.report(stateStopped)
			return err

		case req := <-l.requests:
			switch l.classify(req) {
			case controlStop:
				log.Warn().Msg("Received second stop request, forcing exit")
				l.report(stateStopped)
				return nil
			case controlInterrogate:
				l.interrogate(stateStopPending)
			}

		case <-timeout.C:
			log.Warn().Dur("timeout", l.sup.timeout).Msg("Timeout waiting for agent to stop")
			l.report(stateStopped)
			return nil
		}
	}
}

func (l *controlLoop[R]) interrogate(state controlState) {
	l.report(state)
	time.Sleep(interrogateEcho)
	l.report(state)
}
