// Package tracking drives a location stream into the status display while
// the agent is started.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"locationagent/internal/display"
	"locationagent/internal/location"
	"locationagent/internal/logger"
)

// ErrTornDown is returned by Start after Teardown.
var ErrTornDown = errors.New("tracking controller torn down")

const retractTimeout = 5 * time.Second

// Opener opens location streams. *location.Client implements it.
type Opener interface {
	Open(ctx context.Context, interval time.Duration) (*location.Stream, error)
}

// State is the controller's service state.
type State int

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

// RetryPolicy decides what happens after a failed open or a provider failure.
type RetryPolicy int

const (
	// RetryNever leaves the controller running without a subscription.
	RetryNever RetryPolicy = iota
	// RetryInterval re-attempts the open every Options.RetryEvery.
	RetryInterval
)

func (p RetryPolicy) String() string {
	if p == RetryInterval {
		return "interval"
	}
	return "never"
}

// ParseRetryPolicy parses "never" or "interval". Empty means never.
func ParseRetryPolicy(s string) (RetryPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "never":
		return RetryNever, nil
	case "interval":
		return RetryInterval, nil
	default:
		return RetryNever, fmt.Errorf("unknown retry policy: %q", s)
	}
}

// Options configures a Controller. Zero fields take DefaultOptions values.
type Options struct {
	Interval    time.Duration
	Title       string
	RetryPolicy RetryPolicy
	RetryEvery  time.Duration
	Clock       clock.Clock
}

// DefaultOptions returns the controller defaults.
func DefaultOptions() Options {
	return Options{
		Interval:    10 * time.Second,
		Title:       "Tracking location...",
		RetryPolicy: RetryNever,
		RetryEvery:  30 * time.Second,
		Clock:       clock.New(),
	}
}

// Controller owns at most one live location stream and mirrors its fixes
// into a single status artifact. Start, Stop and Teardown are idempotent.
type Controller struct {
	opener  Opener
	display display.Display
	opts    Options

	mu       sync.Mutex
	state    State
	tornDown bool
	statusID display.ID
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	smu     sync.Mutex
	stream  *location.Stream
	lastErr error
}

// New creates a stopped controller.
func New(opener Opener, d display.Display, opts Options) *Controller {
	def := DefaultOptions()
	if opts.Interval <= 0 {
		opts.Interval = def.Interval
	}
	if opts.Title == "" {
		opts.Title = def.Title
	}
	if opts.RetryEvery <= 0 {
		opts.RetryEvery = def.RetryEvery
	}
	if opts.Clock == nil {
		opts.Clock = def.Clock
	}
	return &Controller{
		opener:  opener,
		display: d,
		opts:    opts,
	}
}

// Start publishes the status artifact and then opens the location stream.
// A failed open is logged and recorded in LastError; the controller still
// becomes Running. Only a display failure is returned.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tornDown {
		return ErrTornDown
	}
	if c.state == Running {
		return nil
	}

	log := logger.WithComponent("tracking")

	id, err := c.display.Publish(ctx, c.opts.Title, initialStatusText)
	if err != nil {
		log.Error().Err(err).Msg("Failed to publish tracking status")
		return fmt.Errorf("publish status: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.statusID = id
	c.cancel = cancel
	c.state = Running

	log.Info().
		Dur("interval", c.opts.Interval).
		Str("retry", c.opts.RetryPolicy.String()).
		Msg("Tracking started")

	s := c.open(runCtx, id)

	var retry *clock.Ticker
	if c.opts.RetryPolicy == RetryInterval {
		retry = c.opts.Clock.Ticker(c.opts.RetryEvery)
	}
	if s != nil || retry != nil {
		c.wg.Add(1)
		go c.run(runCtx, id, s, retry)
	}
	return nil
}

// Stop releases the stream, waits for the consumer and retracts the status.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopLocked()
}

// Teardown stops the controller for good. Later Start calls return
// ErrTornDown.
func (c *Controller) Teardown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tornDown {
		return
	}
	c.tornDown = true

	log := logger.WithComponent("tracking")
	if err := c.stopLocked(); err != nil {
		log.Warn().Err(err).Msg("Teardown could not retract status")
	}
	log.Info().Msg("Tracking controller torn down")
}

func (c *Controller) stopLocked() error {
	if c.state != Running {
		return nil
	}

	log := logger.WithComponent("tracking")

	c.cancel()
	c.wg.Wait()
	c.cancel = nil
	c.state = Stopped

	ctx, cancel := context.WithTimeout(context.Background(), retractTimeout)
	defer cancel()
	err := c.display.Retract(ctx, c.statusID)
	c.statusID = ""

	log.Info().Msg("Tracking stopped")
	if err != nil {
		return fmt.Errorf("retract status: %w", err)
	}
	return nil
}

// open opens a stream and records the outcome. On failure the status text
// shows why and nil is returned.
func (c *Controller) open(ctx context.Context, id display.ID) *location.Stream {
	log := logger.WithComponent("tracking")

	s, err := c.opener.Open(ctx, c.opts.Interval)
	c.smu.Lock()
	c.stream = s
	c.lastErr = err
	c.smu.Unlock()

	if err == nil {
		return s
	}

	text := unavailableText
	if reason, ok := location.PreconditionOf(err); ok {
		text = waitingText(reason)
		log.Warn().Str("reason", reason.String()).Msg("Location tracking not possible")
	} else {
		log.Error().Err(err).Msg("Failed to open location stream")
	}
	c.show(ctx, id, text)
	return nil
}

// run consumes s until it ends. With a retry ticker it keeps re-opening
// until ctx is done. The stream is always released before run returns.
func (c *Controller) run(ctx context.Context, id display.ID, s *location.Stream, retry *clock.Ticker) {
	defer c.wg.Done()
	if retry != nil {
		defer retry.Stop()
	}

	log := logger.WithComponent("tracking")

	for {
		if s != nil {
			err := s.Each(ctx, func(f location.Fix) {
				c.show(ctx, id, FormatStatus(f))
			})
			s.Cancel()

			c.smu.Lock()
			c.stream = nil
			if err != nil {
				c.lastErr = err
			}
			c.smu.Unlock()

			if err == nil {
				return
			}
			log.Error().Err(err).Msg("Location stream failed")
			c.show(ctx, id, unavailableText)
			s = nil
		}

		if retry == nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-retry.C:
		}
		s = c.open(ctx, id)
	}
}

func (c *Controller) show(ctx context.Context, id display.ID, text string) {
	if err := c.display.Update(ctx, id, text); err != nil && ctx.Err() == nil {
		log := logger.WithComponent("tracking")
		log.Warn().Err(err).Str("text", text).Msg("Failed to update tracking status")
	}
}

// State returns the current service state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsRunning returns whether the controller is running.
func (c *Controller) IsRunning() bool {
	return c.State() == Running
}

// HasSubscription reports whether a live stream is currently held.
func (c *Controller) HasSubscription() bool {
	c.smu.Lock()
	defer c.smu.Unlock()
	return c.stream != nil && c.stream.State() == location.Active
}

// LastError returns the error from the most recent open attempt or stream
// failure, or nil.
func (c *Controller) LastError() error {
	c.smu.Lock()
	defer c.smu.Unlock()
	return c.lastErr
}
