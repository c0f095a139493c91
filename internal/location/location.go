// Package location adapts callback-based positioning providers into
// cancellable, single-consumer streams of position fixes.
package location

import (
	"context"
	"time"
)

// Fix is one reported geographic position.
type Fix struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	CapturedAt time.Time `json:"capturedAt"`

	Altitude float64 `json:"altitude,omitempty"` // Meters
	Accuracy float64 `json:"accuracy,omitempty"` // Horizontal meters, 0 = unknown
	Source   string  `json:"source,omitempty"`
}

// Handle identifies one registration with a Provider.
type Handle uint64

// Provider is the platform positioning source.
//
// Subscribe registers the callbacks and asks for updates no more often than
// interval. onBatch may be invoked from any goroutine, on the provider's own
// schedule. onError reports a fatal condition; no further batches follow it.
// No callback starts after Unsubscribe returns. Unsubscribe may be called
// from inside a callback.
type Provider interface {
	Name() string
	Subscribe(interval time.Duration, onBatch func([]Fix), onError func(error)) (Handle, error)
	Unsubscribe(h Handle) error
}

// Authorizer answers whether the agent may read the device position.
type Authorizer interface {
	HasPositioningAuthorization(ctx context.Context) bool
}

// SourceChecker answers whether any positioning source (satellite or
// network based) is currently enabled.
type SourceChecker interface {
	IsAnyPositioningSourceEnabled(ctx context.Context) bool
}

// AuthorizerFunc adapts a function to the Authorizer interface.
type AuthorizerFunc func(ctx context.Context) bool

// HasPositioningAuthorization calls f(ctx).
func (f AuthorizerFunc) HasPositioningAuthorization(ctx context.Context) bool { return f(ctx) }

// SourceCheckerFunc adapts a function to the SourceChecker interface.
type SourceCheckerFunc func(ctx context.Context) bool

// IsAnyPositioningSourceEnabled calls f(ctx).
func (f SourceCheckerFunc) IsAnyPositioningSourceEnabled(ctx context.Context) bool { return f(ctx) }
