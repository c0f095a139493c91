package command

import (
	"context"
	"sync"
	"sync/atomic"

	"locationagent/internal/logger"
)

// DefaultQueueSize is used when NewDispatcher is given a non-positive size.
const DefaultQueueSize = 16

// Controller is the target of dispatched commands.
type Controller interface {
	Start(ctx context.Context) error
	Stop() error
}

// Dispatcher queues commands and applies them in order on one worker.
type Dispatcher struct {
	ctrl    Controller
	queue   chan Command
	dropped atomic.Int64
}

// NewDispatcher creates a dispatcher with a queue of the given size.
func NewDispatcher(ctrl Controller, size int) *Dispatcher {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Dispatcher{
		ctrl:  ctrl,
		queue: make(chan Command, size),
	}
}

// Submit enqueues cmd without blocking. Unknown commands are ignored and a
// full queue drops the command. It reports whether cmd was queued.
func (d *Dispatcher) Submit(cmd Command) bool {
	log := logger.WithComponent("command")

	if cmd == Unknown {
		log.Debug().Msg("Ignoring unknown command")
		return false
	}

	select {
	case d.queue <- cmd:
		return true
	default:
		d.dropped.Add(1)
		log.Warn().Str("command", cmd.String()).Msg("Command queue full, dropping command")
		return false
	}
}

// Dropped returns the number of commands dropped on a full queue.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Run applies queued commands until ctx is done. Commands still queued at
// that point are discarded.
func (d *Dispatcher) Run(ctx context.Context) {
	log := logger.WithComponent("command")
	log.Info().Msg("Command dispatcher started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Command dispatcher stopped")
			return
		case cmd := <-d.queue:
			d.apply(ctx, cmd)
		}
	}
}

func (d *Dispatcher) apply(ctx context.Context, cmd Command) {
	log := logger.WithComponent("command")

	var err error
	switch cmd {
	case Start:
		err = d.ctrl.Start(ctx)
	case Stop:
		err = d.ctrl.Stop()
	}
	if err != nil {
		log.Error().Err(err).Str("command", cmd.String()).Msg("Command failed")
		return
	}
	log.Info().Str("command", cmd.String()).Msg("Command applied")
}

// Serve runs the dispatcher together with the given sources until ctx is
// done, then waits for the sources to return.
func (d *Dispatcher) Serve(ctx context.Context, sources ...Source) {
	log := logger.WithComponent("command")
	sink := func(cmd Command) { d.Submit(cmd) }

	var wg sync.WaitGroup
	for _, src := range sources {
		wg.Add(1)
		go func(src Source) {
			defer wg.Done()
			if err := src.Run(ctx, sink); err != nil {
				log.Error().Err(err).Str("source", src.Name()).Msg("Command source failed")
			}
		}(src)
	}

	d.Run(ctx)
	wg.Wait()
}
