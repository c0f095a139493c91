package location

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/goleak"

	"locationagent/internal/logger"
)

func init() {
	_ = logger.Init(logger.Config{Level: "disabled"})
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestOpen_MissingAuthorization(t *testing.T) {
	p := newFakeProvider()
	checks := &countingChecks{authorized: false, enabled: true}
	c := NewClient(p, checks.authorizer(), checks.sources())

	s, err := c.Open(context.Background(), 10*time.Second)
	if s != nil {
		t.Fatal("expected nil stream on precondition failure")
	}
	if !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("expected ErrPreconditionFailed, got %v", err)
	}
	if reason, ok := PreconditionOf(err); !ok || reason != MissingAuthorization {
		t.Errorf("reason = %v, want MissingAuthorization", reason)
	}
	if subs, _, _ := p.counts(); subs != 0 {
		t.Errorf("expected no Subscribe call, got %d", subs)
	}
	if checks.sourceCalls != 0 {
		t.Errorf("source check must not run after authorization fails, ran %d times", checks.sourceCalls)
	}
}

func TestOpen_NoProviderEnabled(t *testing.T) {
	p := newFakeProvider()
	checks := &countingChecks{authorized: true, enabled: false}
	c := NewClient(p, checks.authorizer(), checks.sources())

	_, err := c.Open(context.Background(), 10*time.Second)
	if reason, ok := PreconditionOf(err); !ok || reason != NoProviderEnabled {
		t.Fatalf("expected NoProviderEnabled, got %v", err)
	}
	if checks.authCalls != 1 || checks.sourceCalls != 1 {
		t.Errorf("expected one call to each check, got auth=%d sources=%d", checks.authCalls, checks.sourceCalls)
	}
	if subs, _, _ := p.counts(); subs != 0 {
		t.Errorf("expected no Subscribe call, got %d", subs)
	}
}

func TestOpen_NilCollaboratorsFailClosed(t *testing.T) {
	p := newFakeProvider()
	c := NewClient(p, nil, nil)

	_, err := c.Open(context.Background(), time.Second)
	if reason, _ := PreconditionOf(err); reason != MissingAuthorization {
		t.Errorf("expected MissingAuthorization with nil authorizer, got %v", err)
	}
}

func TestOpen_InvalidInterval(t *testing.T) {
	p := newFakeProvider()
	checks := &countingChecks{authorized: true, enabled: true}
	c := NewClient(p, checks.authorizer(), checks.sources())

	for _, d := range []time.Duration{0, -time.Second} {
		if _, err := c.Open(context.Background(), d); !errors.Is(err, ErrInvalidInterval) {
			t.Errorf("Open(%v): expected ErrInvalidInterval, got %v", d, err)
		}
	}
	if checks.authCalls != 0 {
		t.Error("checks should not run for an invalid interval")
	}
}

func TestOpen_SubscribesOnceWithInterval(t *testing.T) {
	p := newFakeProvider()
	checks := &countingChecks{authorized: true, enabled: true}
	c := NewClient(p, checks.authorizer(), checks.sources())

	s, err := c.Open(context.Background(), 10*time.Second)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Cancel()

	subs, _, live := p.counts()
	if subs != 1 || live != 1 {
		t.Fatalf("expected 1 subscription, got subscribes=%d live=%d", subs, live)
	}
	if p.intervals[0] != 10*time.Second {
		t.Errorf("interval = %v, want 10s", p.intervals[0])
	}
	if s.State() != Active {
		t.Errorf("state = %v, want active", s.State())
	}
}

func TestOpen_SubscribeErrorIsProviderError(t *testing.T) {
	p := newFakeProvider()
	p.subscribeErr = errors.New("device busy")
	checks := &countingChecks{authorized: true, enabled: true}
	c := NewClient(p, checks.authorizer(), checks.sources())

	_, err := c.Open(context.Background(), time.Second)
	var perr *ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ProviderError, got %v", err)
	}
	if errors.Is(err, ErrPreconditionFailed) {
		t.Error("subscribe failure must not look like a precondition failure")
	}
	if _, unsubs, _ := p.counts(); unsubs != 0 {
		t.Errorf("nothing was subscribed, expected 0 unsubscribes, got %d", unsubs)
	}
}

func TestOpen_ErrorDuringSubscribeReleasesHandle(t *testing.T) {
	p := newFakeProvider()
	p.hook = func(_ func([]Fix), onError func(error)) {
		onError(errors.New("antenna fault"))
	}
	checks := &countingChecks{authorized: true, enabled: true}
	c := NewClient(p, checks.authorizer(), checks.sources())

	_, err := c.Open(context.Background(), time.Second)
	var perr *ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ProviderError, got %v", err)
	}
	if _, unsubs, live := p.counts(); unsubs != 1 || live != 0 {
		t.Errorf("expected handle released once, got unsubscribes=%d live=%d", unsubs, live)
	}
}

func TestOpen_ContextCancelReleasesSubscription(t *testing.T) {
	p := newFakeProvider()
	checks := &countingChecks{authorized: true, enabled: true}
	c := NewClient(p, checks.authorizer(), checks.sources())

	ctx, cancel := context.WithCancel(context.Background())
	s, err := c.Open(ctx, time.Second)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	cancel()

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("stream not closed after owning context was cancelled")
	}
	// Cancel waits for the release started by the context.
	s.Cancel()

	if _, unsubs, live := p.counts(); unsubs != 1 || live != 0 {
		t.Errorf("expected exactly one unsubscribe, got unsubscribes=%d live=%d", unsubs, live)
	}
	if s.Reason() != ReasonCancelled {
		t.Errorf("reason = %v, want cancelled", s.Reason())
	}
}
