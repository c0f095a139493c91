package provider

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"locationagent/internal/location"
)

// Batcher collects fixes reported by a device and hands them to onBatch at
// most once per interval. Empty intervals produce no call. A failure
// reported with Fail is passed to onError after the pending fixes are
// flushed, and the batcher stops.
//
// Callbacks run on the batcher's own goroutine. None starts after Halt.
type Batcher struct {
	clock    clock.Clock
	interval time.Duration
	onBatch  func([]location.Fix)
	onError  func(error)

	mu      sync.Mutex
	pending []location.Fix
	errCh   chan error
	done    chan struct{}

	cbMu       sync.Mutex
	started    bool
	halted     bool
	inCallback bool
}

// NewBatcher creates a batcher. A nil clock means the wall clock.
func NewBatcher(clk clock.Clock, interval time.Duration, onBatch func([]location.Fix), onError func(error)) *Batcher {
	if clk == nil {
		clk = clock.New()
	}
	return &Batcher{
		clock:    clk,
		interval: interval,
		onBatch:  onBatch,
		onError:  onError,
		errCh:    make(chan error, 1),
		done:     make(chan struct{}),
	}
}

// Add queues a fix for the next flush.
func (b *Batcher) Add(f location.Fix) {
	b.mu.Lock()
	b.pending = append(b.pending, f)
	b.mu.Unlock()
}

// Fail reports a fatal device error. Only the first one is kept.
func (b *Batcher) Fail(err error) {
	select {
	case b.errCh <- err:
	default:
	}
}

// Start arms the flush ticker and runs the batcher until stop is closed.
func (b *Batcher) Start(stop <-chan struct{}) {
	ticker := b.clock.Ticker(b.interval)
	b.cbMu.Lock()
	b.started = true
	b.cbMu.Unlock()
	go b.run(ticker, stop)
}

// Halt prevents any further callback. Unless it is called from inside a
// callback, it then waits for the batcher goroutine to exit, so the stop
// channel passed to Start must already be closed.
func (b *Batcher) Halt() {
	b.cbMu.Lock()
	b.halted = true
	wait := b.started && !b.inCallback
	b.cbMu.Unlock()

	if wait {
		<-b.done
	}
}

// Done is closed when the batcher goroutine has exited.
func (b *Batcher) Done() <-chan struct{} {
	return b.done
}

func (b *Batcher) run(ticker *clock.Ticker, stop <-chan struct{}) {
	defer close(b.done)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			b.flush()
		case err := <-b.errCh:
			b.flush()
			if b.onError != nil {
				b.deliver(func() { b.onError(err) })
			}
			return
		}
	}
}

func (b *Batcher) flush() {
	b.mu.Lock()
	batch := b.pending
	b.pending = nil
	b.mu.Unlock()

	if len(batch) == 0 || b.onBatch == nil {
		return
	}
	b.deliver(func() { b.onBatch(batch) })
}

// deliver runs a callback unless the batcher has been halted.
func (b *Batcher) deliver(fn func()) {
	b.cbMu.Lock()
	if b.halted {
		b.cbMu.Unlock()
		return
	}
	b.inCallback = true
	b.cbMu.Unlock()

	defer func() {
		b.cbMu.Lock()
		b.inCallback = false
		b.cbMu.Unlock()
	}()
	fn()
}
