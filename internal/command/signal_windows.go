//go:build windows

package command

import (
	"context"

	"locationagent/internal/logger"
)

// SignalSource is a no-op on Windows, which has no user signals.
type SignalSource struct{}

// NewSignalSource creates a signal command source.
func NewSignalSource() *SignalSource {
	return &SignalSource{}
}

func (s *SignalSource) Name() string { return "signal" }

func (s *SignalSource) Run(ctx context.Context, sink Sink) error {
	log := logger.WithComponent("command-signal")
	log.Debug().Msg("Signal commands are not supported on Windows")
	<-ctx.Done()
	return nil
}
