//go:build windows

package service

import (
	"context"

	"golang.org/x/sys/windows/svc"
)

// WindowsService runs the agent under the Service Control Manager, or
// directly when started from a console. Pause and Continue from the SCM
// stop and restart tracking when a pause handler is configured.
type WindowsService struct {
	sup     *supervisor
	onPause PauseFunc
}

// NewService creates a new platform-specific service.
func NewService(runFunc RunFunc, opts ...Option) Service {
	o := applyOptions(opts)
	return &WindowsService{
		sup:     newSupervisor(runFunc),
		onPause: o.onPause,
	}
}

// Run starts the service.
func (s *WindowsService) Run(ctx context.Context) error {
	if !s.IsService() {
		s.sup.start(ctx)
		return <-s.sup.exited()
	}
	return svc.Run(Name, s)
}

// Stop requests the service to stop.
func (s *WindowsService) Stop() error {
	s.sup.stop()
	return nil
}

// IsService returns true if running as a Windows service.
func (s *WindowsService) IsService() bool {
	isService, err := svc.IsWindowsService()
	if err != nil {
		return false
	}
	return isService
}

// Execute implements the svc.Handler interface.
func (s *WindowsService) Execute(args []string, r <-chan svc.ChangeRequest, changes chan<- svc.Status) (svcSpecificEC bool, exitCode uint32) {
	loop := &controlLoop[svc.ChangeRequest]{
		sup:      s.sup,
		requests: r,
		classify: classifyChangeRequest,
		report: func(st controlState) {
			changes <- svc.Status{State: scmState(st), Accepts: s.accepts(st)}
		},
		onPause: s.onPause,
	}
	if err := loop.run(); err != nil {
		return true, 1
	}
	return false, 0
}

func (s *WindowsService) accepts(st controlState) svc.Accepted {
	if st != stateRunning && st != statePaused {
		return 0
	}
	a := svc.AcceptStop | svc.AcceptShutdown
	if s.onPause != nil {
		a |= svc.AcceptPauseAndContinue
	}
	return a
}

func classifyChangeRequest(c svc.ChangeRequest) control {
	switch c.Cmd {
	case svc.Interrogate:
		return controlInterrogate
	case svc.Stop, svc.Shutdown:
		return controlStop
	case svc.Pause:
		return controlPause
	case svc.Continue:
		return controlContinue
	default:
		return controlUnknown
	}
}

func scmState(st controlState) svc.State {
	switch st {
	case stateStartPending:
		return svc.StartPending
	case stateRunning:
		return svc.Running
	case statePaused:
		return svc.Paused
	case stateStopPending:
		return svc.StopPending
	default:
		return svc.Stopped
	}
}
