package location

import (
	"context"
	"errors"
	"sync"
	"time"

	"locationagent/internal/logger"
)

// DefaultBufferSize bounds the fixes queued between provider and consumer.
const DefaultBufferSize = 64

// State is the lifecycle state of a Stream.
type State int

const (
	Unopened State = iota
	Active
	Closed
)

func (s State) String() string {
	switch s {
	case Unopened:
		return "unopened"
	case Active:
		return "active"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// CloseReason records why a Stream entered Closed.
type CloseReason int

const (
	ReasonNone CloseReason = iota
	ReasonPreconditionFailed
	ReasonCancelled
	ReasonProviderError
)

func (r CloseReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonPreconditionFailed:
		return "precondition failed"
	case ReasonCancelled:
		return "cancelled"
	case ReasonProviderError:
		return "provider error"
	default:
		return "unknown"
	}
}

// Stream is one subscription to a Provider, consumed by a single reader
// through Next. It owns the provider Handle and releases it exactly once.
type Stream struct {
	provider Provider
	bufSize  int

	mu         sync.Mutex
	state      State
	reason     CloseReason
	err        error
	handle     Handle
	subscribed bool
	pending    []Fix
	dropped    int
	stopCtx    func() bool

	notify   chan struct{}
	done     chan struct{}
	released chan struct{}
}

func newStream(p Provider, bufSize int) *Stream {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	return &Stream{
		provider: p,
		bufSize:  bufSize,
		state:    Unopened,
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
		released: make(chan struct{}),
	}
}

// subscribe moves the stream from Unopened to Active and registers with the
// provider. Batches arriving before Subscribe returns are accepted.
func (s *Stream) subscribe(interval time.Duration) error {
	s.mu.Lock()
	s.state = Active
	s.mu.Unlock()

	h, err := s.provider.Subscribe(interval, s.deliver, s.fail)
	if err != nil {
		perr := &ProviderError{Provider: s.provider.Name(), Err: err}
		s.close(ReasonProviderError, perr)
		return perr
	}

	s.mu.Lock()
	if s.state == Closed {
		// onError fired before Subscribe returned; the handle was never recorded.
		s.mu.Unlock()
		s.unsubscribe(h)
		return s.Err()
	}
	s.handle = h
	s.subscribed = true
	s.mu.Unlock()
	return nil
}

// deliver is the provider's batch callback. Only the newest fix of a batch
// is queued; it never blocks beyond the queue mutex.
func (s *Stream) deliver(batch []Fix) {
	if len(batch) == 0 {
		return
	}
	latest := batch[len(batch)-1]

	s.mu.Lock()
	if s.state != Active {
		s.mu.Unlock()
		return
	}
	overflow := len(s.pending) >= s.bufSize
	if overflow {
		copy(s.pending, s.pending[1:])
		s.pending = s.pending[:len(s.pending)-1]
		s.dropped++
	}
	s.pending = append(s.pending, latest)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}

	if overflow {
		log := logger.WithComponent("location-stream")
		log.Warn().
			Str("provider", s.provider.Name()).
			Int("buffer", s.bufSize).
			Msg("Consumer is behind, dropped oldest queued fix")
	}
}

// fail is the provider's error callback.
func (s *Stream) fail(err error) {
	if err == nil {
		return
	}
	s.close(ReasonProviderError, &ProviderError{Provider: s.provider.Name(), Err: err})
}

// Next returns the next fix in arrival order. It blocks until a fix is
// available, the stream closes, or ctx is done. After Cancel it returns
// ErrStreamClosed; after a provider failure it returns the *ProviderError.
func (s *Stream) Next(ctx context.Context) (Fix, error) {
	for {
		s.mu.Lock()
		if s.state == Closed {
			err := s.err
			s.mu.Unlock()
			return Fix{}, err
		}
		if len(s.pending) > 0 {
			f := s.pending[0]
			copy(s.pending, s.pending[1:])
			s.pending = s.pending[:len(s.pending)-1]
			s.mu.Unlock()
			return f, nil
		}
		s.mu.Unlock()

		select {
		case <-s.notify:
		case <-s.done:
		case <-ctx.Done():
			return Fix{}, ctx.Err()
		}
	}
}

// Each calls fn for every fix until the stream is cancelled or ctx is done,
// in which case it returns nil. A provider failure is returned as is.
func (s *Stream) Each(ctx context.Context, fn func(Fix)) error {
	for {
		f, err := s.Next(ctx)
		if err != nil {
			if errors.Is(err, ErrStreamClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		fn(f)
	}
}

// Cancel closes the stream and unregisters from the provider before
// returning. Calling it again is a no-op that waits for the first release.
func (s *Stream) Cancel() {
	s.close(ReasonCancelled, ErrStreamClosed)
}

func (s *Stream) close(reason CloseReason, err error) {
	s.mu.Lock()
	if s.state == Closed {
		s.mu.Unlock()
		<-s.released
		return
	}
	s.state = Closed
	s.reason = reason
	s.err = err
	s.pending = nil
	h, release := s.handle, s.subscribed
	s.subscribed = false
	stop := s.stopCtx
	s.stopCtx = nil
	close(s.done)
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	if release {
		s.unsubscribe(h)
	}
	close(s.released)

	if reason == ReasonProviderError {
		log := logger.WithComponent("location-stream")
		log.Error().Err(err).Msg("Location stream closed by provider failure")
	}
}

func (s *Stream) unsubscribe(h Handle) {
	if err := s.provider.Unsubscribe(h); err != nil {
		log := logger.WithComponent("location-stream")
		log.Warn().
			Err(err).
			Str("provider", s.provider.Name()).
			Uint64("handle", uint64(h)).
			Msg("Failed to unsubscribe from provider")
	}
}

// bindContext cancels the stream once ctx is done.
func (s *Stream) bindContext(ctx context.Context) {
	stop := context.AfterFunc(ctx, s.Cancel)
	s.mu.Lock()
	if s.state == Closed {
		s.mu.Unlock()
		stop()
		return
	}
	s.stopCtx = stop
	s.mu.Unlock()
}

// State returns the current lifecycle state.
func (s *Stream) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Reason returns why the stream closed, or ReasonNone while it is open.
func (s *Stream) Reason() CloseReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// Err returns the terminal error, nil while the stream is open.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Dropped returns how many queued fixes were discarded because the consumer fell behind.
func (s *Stream) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Done is closed when the stream enters Closed.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}
