//go:build !windows

package command

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"locationagent/internal/logger"
)

// SignalSource maps SIGUSR1 to START and SIGUSR2 to STOP.
type SignalSource struct{}

// NewSignalSource creates a signal command source.
func NewSignalSource() *SignalSource {
	return &SignalSource{}
}

func (s *SignalSource) Name() string { return "signal" }

// Run forwards signals until ctx is done.
func (s *SignalSource) Run(ctx context.Context, sink Sink) error {
	log := logger.WithComponent("command-signal")

	sigCh := make(chan os.Signal, 4)
	signal.Notify(sigCh, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig := <-sigCh:
			log.Debug().Str("signal", sig.String()).Msg("Received command signal")
			switch sig {
			case syscall.SIGUSR1:
				sink(Start)
			case syscall.SIGUSR2:
				sink(Stop)
			}
		}
	}
}
