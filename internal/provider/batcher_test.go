package provider

import (
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/goleak"

	"locationagent/internal/location"
	"locationagent/internal/logger"
)

func init() {
	_ = logger.Init(logger.Config{Level: "disabled"})
}

// checkLeaks fails t if goroutines started during the test outlive it.
// gpsd sessions keep a library reader goroutine until the socket drains, so
// leak checks are scoped per test.
func checkLeaks(t *testing.T) func() {
	opt := goleak.IgnoreCurrent()
	return func() { goleak.VerifyNone(t, opt) }
}

// sink collects callbacks on channels.
type sink struct {
	batches chan []location.Fix
	errs    chan error
}

func newSink() *sink {
	return &sink{
		batches: make(chan []location.Fix, 16),
		errs:    make(chan error, 4),
	}
}

func (s *sink) onBatch(b []location.Fix) { s.batches <- b }
func (s *sink) onError(err error)        { s.errs <- err }

func (s *sink) nextBatch(t *testing.T) []location.Fix {
	t.Helper()
	select {
	case b := <-s.batches:
		return b
	case <-time.After(2 * time.Second):
		t.Fatal("no batch delivered")
		return nil
	}
}

func (s *sink) noBatch(t *testing.T) {
	t.Helper()
	select {
	case b := <-s.batches:
		t.Fatalf("unexpected batch %+v", b)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBatcher_FlushesOncePerInterval(t *testing.T) {
	defer checkLeaks(t)()
	mock := clock.NewMock()
	s := newSink()
	b := NewBatcher(mock, 10*time.Second, s.onBatch, s.onError)
	stop := make(chan struct{})
	b.Start(stop)
	defer func() {
		close(stop)
		<-b.Done()
	}()

	b.Add(location.Fix{Latitude: 1})
	b.Add(location.Fix{Latitude: 2})
	b.Add(location.Fix{Latitude: 3})

	mock.Add(5 * time.Second)
	s.noBatch(t)

	mock.Add(5 * time.Second)
	batch := s.nextBatch(t)
	if len(batch) != 3 || batch[2].Latitude != 3 {
		t.Errorf("batch = %+v, want three fixes in order", batch)
	}
}

func TestBatcher_SkipsEmptyIntervals(t *testing.T) {
	defer checkLeaks(t)()
	mock := clock.NewMock()
	s := newSink()
	b := NewBatcher(mock, time.Second, s.onBatch, s.onError)
	stop := make(chan struct{})
	b.Start(stop)
	defer func() {
		close(stop)
		<-b.Done()
	}()

	mock.Add(3 * time.Second)
	s.noBatch(t)
}

func TestBatcher_FailFlushesThenReportsError(t *testing.T) {
	defer checkLeaks(t)()
	mock := clock.NewMock()
	s := newSink()
	b := NewBatcher(mock, time.Minute, s.onBatch, s.onError)
	stop := make(chan struct{})
	defer close(stop)
	b.Start(stop)

	b.Add(location.Fix{Latitude: 9})
	boom := errors.New("boom")
	b.Fail(boom)
	b.Fail(errors.New("second error is dropped"))

	if batch := s.nextBatch(t); len(batch) != 1 {
		t.Errorf("pending fixes not flushed before error: %+v", batch)
	}
	select {
	case err := <-s.errs:
		if !errors.Is(err, boom) {
			t.Errorf("onError got %v, want boom", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("onError not called")
	}

	select {
	case <-b.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("batcher did not stop after failure")
	}
}

func TestBatcher_StopEndsGoroutine(t *testing.T) {
	defer checkLeaks(t)()
	b := NewBatcher(clock.NewMock(), time.Second, nil, nil)
	stop := make(chan struct{})
	b.Start(stop)
	close(stop)

	select {
	case <-b.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("batcher still running after stop")
	}
}

func TestBatcher_HaltStopsCallbacksAndJoins(t *testing.T) {
	defer checkLeaks(t)()
	mock := clock.NewMock()
	s := newSink()
	b := NewBatcher(mock, time.Second, s.onBatch, s.onError)
	stop := make(chan struct{})
	b.Start(stop)

	b.Add(location.Fix{Latitude: 1})
	close(stop)
	b.Halt()

	select {
	case <-b.Done():
	default:
		t.Fatal("Halt returned before the batcher goroutine exited")
	}
	mock.Add(time.Second)
	s.noBatch(t)
}

func TestBatcher_HaltFromCallbackDoesNotBlock(t *testing.T) {
	defer checkLeaks(t)()
	mock := clock.NewMock()
	stop := make(chan struct{})
	halted := make(chan struct{})

	var b *Batcher
	b = NewBatcher(mock, time.Second, func([]location.Fix) {
		close(stop)
		b.Halt()
		close(halted)
	}, nil)
	b.Start(stop)
	b.Add(location.Fix{Latitude: 1})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mock.Add(time.Second)
		select {
		case <-halted:
			<-b.Done()
			return
		case <-time.After(20 * time.Millisecond):
		}
	}
	t.Fatal("Halt from inside a callback blocked")
}

func TestBatcher_NoErrorCallbackAfterHalt(t *testing.T) {
	s := newSink()
	b := NewBatcher(clock.NewMock(), time.Minute, s.onBatch, s.onError)
	b.Halt()

	stop := make(chan struct{})
	defer close(stop)
	b.Start(stop)
	b.Fail(errors.New("late failure"))

	select {
	case <-b.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("batcher did not stop after failure")
	}
	select {
	case err := <-s.errs:
		t.Errorf("onError called after Halt: %v", err)
	default:
	}
}
