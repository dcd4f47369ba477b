package main

import (
	"os"
	osSignal "os/signal"
	"syscall"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func restoreSignals(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		signalNotify = osSignal.Notify
		signalStop = osSignal.Stop
	})
}

func TestSignalContextCancelsOnSignal(t *testing.T) {
	restoreSignals(t)

	signalNotify = func(ch chan<- os.Signal, sig ...os.Signal) {
		go func() {
			ch <- syscall.SIGTERM
		}()
	}
	signalStop = func(chan<- os.Signal) {}

	ctx, cancel := signalContext(zaptest.NewLogger(t))
	defer cancel()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatalf("expected context to be cancelled by signal")
	}
}

func TestSignalContextCancelStopsNotification(t *testing.T) {
	restoreSignals(t)

	var registered chan<- os.Signal
	signalNotify = func(ch chan<- os.Signal, sig ...os.Signal) {
		registered = ch
	}
	var stopped chan<- os.Signal
	signalStop = func(ch chan<- os.Signal) {
		stopped = ch
	}

	ctx, cancel := signalContext(zaptest.NewLogger(t))
	cancel()

	if ctx.Err() == nil {
		t.Fatalf("expected context to be cancelled")
	}
	if registered == nil || stopped != registered {
		t.Fatalf("expected cancel to stop signal delivery on the registered channel")
	}
}
