package location

import (
	"context"
	"errors"
	"sync"
	"time"
)

// fakeProvider records subscriptions and lets tests drive the callbacks.
type fakeProvider struct {
	mu           sync.Mutex
	next         Handle
	live         map[Handle]bool
	intervals    []time.Duration
	subscribes   int
	unsubscribes int
	subscribeErr error

	// callbacks of the most recent subscription, kept after unsubscribe
	// so tests can simulate late provider callbacks.
	onBatch func([]Fix)
	onError func(error)

	// hook runs inside Subscribe before it returns.
	hook func(onBatch func([]Fix), onError func(error))
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{live: make(map[Handle]bool)}
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Subscribe(interval time.Duration, onBatch func([]Fix), onError func(error)) (Handle, error) {
	p.mu.Lock()
	p.subscribes++
	p.intervals = append(p.intervals, interval)
	if p.subscribeErr != nil {
		err := p.subscribeErr
		p.mu.Unlock()
		return 0, err
	}
	p.next++
	h := p.next
	p.live[h] = true
	p.onBatch = onBatch
	p.onError = onError
	hook := p.hook
	p.mu.Unlock()

	if hook != nil {
		hook(onBatch, onError)
	}
	return h, nil
}

func (p *fakeProvider) Unsubscribe(h Handle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unsubscribes++
	if !p.live[h] {
		return errors.New("unknown handle")
	}
	delete(p.live, h)
	return nil
}

func (p *fakeProvider) emit(batch ...Fix) {
	p.mu.Lock()
	cb := p.onBatch
	p.mu.Unlock()
	if cb != nil {
		cb(batch)
	}
}

func (p *fakeProvider) raise(err error) {
	p.mu.Lock()
	cb := p.onError
	p.mu.Unlock()
	if cb != nil {
		cb(err)
	}
}

func (p *fakeProvider) counts() (subscribes, unsubscribes, live int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.subscribes, p.unsubscribes, len(p.live)
}

type countingChecks struct {
	mu          sync.Mutex
	authorized  bool
	enabled     bool
	authCalls   int
	sourceCalls int
}

func (c *countingChecks) authorizer() Authorizer {
	return AuthorizerFunc(func(_ context.Context) bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.authCalls++
		return c.authorized
	})
}

func (c *countingChecks) sources() SourceChecker {
	return SourceCheckerFunc(func(_ context.Context) bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.sourceCalls++
		return c.enabled
	})
}

func fixAt(lat, lon float64) Fix {
	return Fix{Latitude: lat, Longitude: lon, CapturedAt: time.Unix(1700000000, 0)}
}
