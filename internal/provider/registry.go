// Package provider implements location.Provider on top of real and
// simulated positioning sources.
package provider

import (
	"errors"
	"sync"

	"locationagent/internal/location"
)

// ErrUnknownHandle is returned when unsubscribing a handle that is not live.
var ErrUnknownHandle = errors.New("unknown subscription handle")

// feed is the per-subscription state shared by all providers. Workers in wg
// never invoke the subscriber's callbacks; only the batcher does. shutdown
// may therefore be called from inside a callback.
type feed struct {
	stop    chan struct{}
	once    sync.Once
	batcher *Batcher
	closeFn func() error
	wg      sync.WaitGroup
}

func newFeed(b *Batcher, closeFn func() error) *feed {
	return &feed{stop: make(chan struct{}), batcher: b, closeFn: closeFn}
}

func (f *feed) stopping() bool {
	select {
	case <-f.stop:
		return true
	default:
		return false
	}
}

// shutdown stops the feed, releases its device and waits for its workers.
// No callback starts once it returns, and the batcher has exited unless
// shutdown was called from one of its callbacks.
func (f *feed) shutdown() error {
	var err error
	f.once.Do(func() {
		close(f.stop)
		if f.closeFn != nil {
			err = f.closeFn()
		}
		f.wg.Wait()
		if f.batcher != nil {
			f.batcher.Halt()
		}
	})
	return err
}

type registry struct {
	mu    sync.Mutex
	next  location.Handle
	feeds map[location.Handle]*feed
}

func (r *registry) add(f *feed) location.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.feeds == nil {
		r.feeds = make(map[location.Handle]*feed)
	}
	r.next++
	r.feeds[r.next] = f
	return r.next
}

func (r *registry) remove(h location.Handle) (*feed, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.feeds[h]
	if !ok {
		return nil, ErrUnknownHandle
	}
	delete(r.feeds, h)
	return f, nil
}

func (r *registry) unsubscribe(h location.Handle) error {
	f, err := r.remove(h)
	if err != nil {
		return err
	}
	return f.shutdown()
}

// live returns the number of registered subscriptions.
func (r *registry) live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.feeds)
}

func (r *registry) closeAll() {
	r.mu.Lock()
	feeds := r.feeds
	r.feeds = nil
	r.mu.Unlock()

	for _, f := range feeds {
		_ = f.shutdown()
	}
}
