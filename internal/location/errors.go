package location

import (
	"errors"
	"fmt"
)

var (
	// ErrPreconditionFailed matches every *PreconditionError via errors.Is.
	ErrPreconditionFailed = errors.New("location precondition failed")

	// ErrStreamClosed is returned by Next once the stream has been cancelled.
	ErrStreamClosed = errors.New("location stream closed")

	// ErrInvalidInterval is returned by Open for a non-positive interval.
	ErrInvalidInterval = errors.New("location update interval must be positive")
)

// Precondition names a check that must pass before subscribing.
type Precondition int

const (
	MissingAuthorization Precondition = iota + 1
	NoProviderEnabled
)

func (p Precondition) String() string {
	switch p {
	case MissingAuthorization:
		return "missing location authorization"
	case NoProviderEnabled:
		return "no location source enabled"
	default:
		return "unknown precondition"
	}
}

// PreconditionError reports a failed open-time check. Nothing was subscribed.
type PreconditionError struct {
	Reason Precondition
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("location: %s", e.Reason)
}

// Is makes errors.Is(err, ErrPreconditionFailed) true.
func (e *PreconditionError) Is(target error) bool {
	return target == ErrPreconditionFailed
}

// ProviderError is a fatal failure reported by (or while subscribing to) a provider.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("location provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// PreconditionOf extracts the failed precondition from err, if any.
func PreconditionOf(err error) (Precondition, bool) {
	var pe *PreconditionError
	if errors.As(err, &pe) {
		return pe.Reason, true
	}
	return 0, false
}
