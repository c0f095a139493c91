package location

import (
	"context"
	"time"

	"locationagent/internal/logger"
)

// Client opens location streams after checking authorization and source
// availability.
type Client struct {
	Provider   Provider
	Authorizer Authorizer
	Sources    SourceChecker

	// BufferSize bounds the per-stream hand-off queue. Zero means DefaultBufferSize.
	BufferSize int
}

// NewClient creates a Client from its collaborators.
func NewClient(p Provider, auth Authorizer, sources SourceChecker) *Client {
	return &Client{
		Provider:   p,
		Authorizer: auth,
		Sources:    sources,
	}
}

// Open checks the preconditions, in order, and then subscribes once to the
// provider asking for updates every interval. A failed check returns a
// *PreconditionError and nothing is subscribed. The stream is cancelled when
// ctx is done.
func (c *Client) Open(ctx context.Context, interval time.Duration) (*Stream, error) {
	if interval <= 0 {
		return nil, ErrInvalidInterval
	}

	log := logger.WithComponent("location-client")
	s := newStream(c.Provider, c.BufferSize)

	if c.Authorizer == nil || !c.Authorizer.HasPositioningAuthorization(ctx) {
		return nil, c.reject(s, MissingAuthorization)
	}
	if c.Sources == nil || !c.Sources.IsAnyPositioningSourceEnabled(ctx) {
		return nil, c.reject(s, NoProviderEnabled)
	}

	if err := s.subscribe(interval); err != nil {
		log.Error().
			Err(err).
			Str("provider", c.Provider.Name()).
			Msg("Failed to subscribe to location provider")
		return nil, err
	}
	s.bindContext(ctx)

	log.Info().
		Str("provider", c.Provider.Name()).
		Dur("interval", interval).
		Msg("Location stream opened")
	return s, nil
}

func (c *Client) reject(s *Stream, reason Precondition) error {
	err := &PreconditionError{Reason: reason}
	s.close(ReasonPreconditionFailed, err)

	log := logger.WithComponent("location-client")
	log.Warn().Str("reason", reason.String()).Msg("Location stream not opened")
	return err
}
