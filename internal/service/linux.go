//go:build !windows

package service

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"locationagent/internal/logger"
)

// LinuxService runs the agent until SIGINT or SIGTERM. A second signal
// abandons the graceful shutdown.
type LinuxService struct {
	sup    *supervisor
	notify func(c chan<- os.Signal, sig ...os.Signal)
	stop   func(c chan<- os.Signal)
}

// NewService creates a new platform-specific service. Options only matter
// under the Windows service manager.
func NewService(runFunc RunFunc, opts ...Option) Service {
	_ = applyOptions(opts)
	return &LinuxService{
		sup:    newSupervisor(runFunc),
		notify: signal.Notify,
		stop:   signal.Stop,
	}
}

// Run starts runFunc and waits for it to return or for a shutdown signal.
func (s *LinuxService) Run(ctx context.Context) error {
	log := logger.WithComponent("linux-service")

	sigChan := make(chan os.Signal, 2)
	s.notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer s.stop(sigChan)

	s.sup.start(ctx)
	defer s.sup.stop()
	log.Info().Msg("Service started")

	select {
	case err := <-s.sup.exited():
		return err

	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		s.sup.stop()
	}

	timeout := time.NewTimer(s.sup.timeout)
	defer timeout.Stop()

	select {
	case err := <-s.sup.exited():
		return err
	case sig := <-sigChan:
		log.Warn().Str("signal", sig.String()).Msg("Received second signal, forcing exit")
		return nil
	case <-timeout.C:
		log.Warn().Dur("timeout", s.sup.timeout).Msg("Timeout waiting for agent to stop")
		return nil
	}
}

// Stop cancels the run context. Only the first call has an effect.
func (s *LinuxService) Stop() error {
	s.sup.stop()
	return nil
}

// IsService reports whether stdin is not a terminal, which is the case
// under systemd.
func (s *LinuxService) IsService() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) == 0
}
