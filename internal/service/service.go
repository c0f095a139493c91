// Package service runs the agent as a foreground process, a systemd unit or
// a Windows service.
package service

import (
	"context"
	"time"
)

// Name is the service and event source name.
const Name = "LocationAgent"

// stopTimeout bounds how long a stop request waits for the run function.
const stopTimeout = 30 * time.Second

// Service runs a RunFunc under the platform's service manager.
type Service interface {
	// Run starts the service. It blocks until the service is stopped.
	Run(ctx context.Context) error

	// Stop requests the service to stop.
	Stop() error

	// IsService returns true if running under a service manager.
	IsService() bool
}

// RunFunc is the agent body. It must return once ctx is cancelled.
type RunFunc func(ctx context.Context) error
