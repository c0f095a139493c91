//go:build !windows

package command

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"testing"
	"time"
)

// signalUntil raises sig until the source reports want.
func signalUntil(t *testing.T, out chanSink, sig syscall.Signal, want Command) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if err := syscall.Kill(syscall.Getpid(), sig); err != nil {
			t.Fatal(err)
		}
		select {
		case got := <-out:
			if got == want {
				return
			}
		case <-time.After(50 * time.Millisecond):
		}
	}
	t.Fatalf("%v never produced %v", sig, want)
}

func TestSignalSource(t *testing.T) {
	// Keep SIGUSR1/2 from terminating the test binary before Run registers.
	guard := make(chan os.Signal, 16)
	signal.Notify(guard, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(guard)

	src := NewSignalSource()
	out := make(chanSink, 64)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- src.Run(ctx, out.sink) }()

	signalUntil(t, out, syscall.SIGUSR2, Stop)
	signalUntil(t, out, syscall.SIGUSR1, Start)

	cancel()
	if err := <-errCh; err != nil {
		t.Errorf("Run returned %v", err)
	}
}
