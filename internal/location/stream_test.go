package location

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func openActive(t *testing.T, p *fakeProvider) *Stream {
	t.Helper()
	checks := &countingChecks{authorized: true, enabled: true}
	c := NewClient(p, checks.authorizer(), checks.sources())
	s, err := c.Open(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return s
}

func nextWithin(t *testing.T, s *Stream, d time.Duration) (Fix, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return s.Next(ctx)
}

func TestStream_EmitsOnlyLastFixOfBatch(t *testing.T) {
	p := newFakeProvider()
	s := openActive(t, p)
	defer s.Cancel()

	f1, f2, f3 := fixAt(1, 1), fixAt(2, 2), fixAt(3, 3)
	p.emit(f1, f2, f3)

	got, err := nextWithin(t, s, time.Second)
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if got != f3 {
		t.Errorf("got %+v, want last fix of batch %+v", got, f3)
	}

	if _, err := nextWithin(t, s, 50*time.Millisecond); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected exactly one emission per batch, second Next returned %v", err)
	}
}

func TestStream_EmptyBatchEmitsNothing(t *testing.T) {
	p := newFakeProvider()
	s := openActive(t, p)
	defer s.Cancel()

	p.emit()

	if _, err := nextWithin(t, s, 50*time.Millisecond); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected no emission for an empty batch, got %v", err)
	}
}

func TestStream_PreservesArrivalOrder(t *testing.T) {
	p := newFakeProvider()
	s := openActive(t, p)
	defer s.Cancel()

	for i := 1; i <= 5; i++ {
		p.emit(fixAt(0, 0), fixAt(float64(i), float64(i)))
	}

	for i := 1; i <= 5; i++ {
		got, err := nextWithin(t, s, time.Second)
		if err != nil {
			t.Fatalf("Next #%d failed: %v", i, err)
		}
		if got.Latitude != float64(i) {
			t.Errorf("Next #%d latitude = %v, want %d", i, got.Latitude, i)
		}
	}
}

func TestStream_NextWaitsForDelivery(t *testing.T) {
	p := newFakeProvider()
	s := openActive(t, p)
	defer s.Cancel()

	result := make(chan Fix, 1)
	go func() {
		f, err := nextWithin(t, s, 2*time.Second)
		if err == nil {
			result <- f
		}
		close(result)
	}()

	time.Sleep(20 * time.Millisecond)
	p.emit(fixAt(7, 8))

	f, ok := <-result
	if !ok {
		t.Fatal("Next returned without a fix")
	}
	if f.Latitude != 7 || f.Longitude != 8 {
		t.Errorf("got %+v", f)
	}
}

func TestStream_CancelUnsubscribesExactlyOnce(t *testing.T) {
	p := newFakeProvider()
	s := openActive(t, p)

	s.Cancel()
	s.Cancel()

	if _, unsubs, live := p.counts(); unsubs != 1 || live != 0 {
		t.Errorf("expected one unsubscribe and no live handle, got unsubscribes=%d live=%d", unsubs, live)
	}
	if s.State() != Closed || s.Reason() != ReasonCancelled {
		t.Errorf("state=%v reason=%v, want closed/cancelled", s.State(), s.Reason())
	}
	if _, err := s.Next(context.Background()); !errors.Is(err, ErrStreamClosed) {
		t.Errorf("Next after Cancel = %v, want ErrStreamClosed", err)
	}
}

func TestStream_CallbackAfterCancelIsDropped(t *testing.T) {
	p := newFakeProvider()
	s := openActive(t, p)

	s.Cancel()
	// The provider fires a callback it had already scheduled.
	p.emit(fixAt(10.1234, 20.5678))

	if _, err := s.Next(context.Background()); !errors.Is(err, ErrStreamClosed) {
		t.Errorf("late callback must be dropped, Next returned %v", err)
	}
}

func TestStream_CancelDiscardsQueuedFixes(t *testing.T) {
	p := newFakeProvider()
	s := openActive(t, p)

	p.emit(fixAt(1, 1))
	p.emit(fixAt(2, 2))
	s.Cancel()

	if _, err := s.Next(context.Background()); !errors.Is(err, ErrStreamClosed) {
		t.Errorf("queued fixes must not be drained after Cancel, got %v", err)
	}
}

func TestStream_CancelUnblocksNext(t *testing.T) {
	p := newFakeProvider()
	s := openActive(t, p)

	errCh := make(chan error, 1)
	go func() {
		_, err := s.Next(context.Background())
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	s.Cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrStreamClosed) {
			t.Errorf("expected ErrStreamClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Next did not return after Cancel")
	}
}

func TestStream_ProviderErrorClosesStream(t *testing.T) {
	p := newFakeProvider()
	s := openActive(t, p)

	p.raise(errors.New("receiver lost"))

	_, err := s.Next(context.Background())
	var perr *ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ProviderError, got %v", err)
	}
	if perr.Provider != "fake" {
		t.Errorf("provider = %q, want fake", perr.Provider)
	}
	if s.Reason() != ReasonProviderError {
		t.Errorf("reason = %v, want provider error", s.Reason())
	}

	s.Cancel()
	if _, unsubs, live := p.counts(); unsubs != 1 || live != 0 {
		t.Errorf("expected one unsubscribe after provider error + cancel, got unsubscribes=%d live=%d", unsubs, live)
	}
}

func TestStream_OverflowDropsOldest(t *testing.T) {
	p := newFakeProvider()
	checks := &countingChecks{authorized: true, enabled: true}
	c := NewClient(p, checks.authorizer(), checks.sources())
	c.BufferSize = 2

	s, err := c.Open(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Cancel()

	p.emit(fixAt(1, 1))
	p.emit(fixAt(2, 2))
	p.emit(fixAt(3, 3))

	if s.Dropped() != 1 {
		t.Errorf("Dropped = %d, want 1", s.Dropped())
	}
	for _, want := range []float64{2, 3} {
		f, err := nextWithin(t, s, time.Second)
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if f.Latitude != want {
			t.Errorf("latitude = %v, want %v", f.Latitude, want)
		}
	}
}

func TestStream_ConcurrentCancelAndDelivery(t *testing.T) {
	for i := 0; i < 50; i++ {
		p := newFakeProvider()
		s := openActive(t, p)

		var wg sync.WaitGroup
		wg.Add(3)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				p.emit(fixAt(float64(j), 0))
			}
		}()
		go func() {
			defer wg.Done()
			s.Cancel()
		}()
		go func() {
			defer wg.Done()
			s.Cancel()
		}()
		wg.Wait()

		if _, unsubs, live := p.counts(); unsubs != 1 || live != 0 {
			t.Fatalf("iteration %d: unsubscribes=%d live=%d", i, unsubs, live)
		}
		if _, err := s.Next(context.Background()); !errors.Is(err, ErrStreamClosed) {
			t.Fatalf("iteration %d: fix delivered after close: %v", i, err)
		}
	}
}

func TestStream_EachStopsOnCancel(t *testing.T) {
	p := newFakeProvider()
	s := openActive(t, p)

	var mu sync.Mutex
	var seen []Fix
	done := make(chan error, 1)
	go func() {
		done <- s.Each(context.Background(), func(f Fix) {
			mu.Lock()
			seen = append(seen, f)
			mu.Unlock()
		})
	}()

	p.emit(fixAt(1, 2))
	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		n := len(seen)
		mu.Unlock()
		if n == 1 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	s.Cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Each returned %v on cancel, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Each did not return after Cancel")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 {
		t.Errorf("saw %d fixes, want 1", len(seen))
	}
}

func TestStream_EachReturnsProviderError(t *testing.T) {
	p := newFakeProvider()
	s := openActive(t, p)
	defer s.Cancel()

	go p.raise(errors.New("gpsd went away"))

	err := s.Each(context.Background(), func(Fix) {})
	var perr *ProviderError
	if !errors.As(err, &perr) {
		t.Errorf("expected *ProviderError from Each, got %v", err)
	}
}

func TestStateStrings(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{Unopened.String(), "unopened"},
		{Active.String(), "active"},
		{Closed.String(), "closed"},
		{ReasonCancelled.String(), "cancelled"},
		{ReasonPreconditionFailed.String(), "precondition failed"},
		{MissingAuthorization.String(), "missing location authorization"},
		{NoProviderEnabled.String(), "no location source enabled"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}
