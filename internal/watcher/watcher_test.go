package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

// touchUntil rewrites path until done is closed or the deadline passes.
// fsnotify registration races with the first write, so a single write is not enough.
func touchUntil(t *testing.T, path string, done <-chan struct{}) {
	t.Helper()

	deadline := time.After(5 * time.Second)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		if err := os.WriteFile(path, []byte("enable_stats: true\n"), 0o644); err != nil {
			t.Fatalf("write settings file: %v", err)
		}
		select {
		case <-done:
			return
		case <-deadline:
			t.Fatalf("reload was not triggered")
		case <-ticker.C:
		}
	}
}

func startWatcher(t *testing.T, w *Watcher) (context.CancelFunc, <-chan error) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.Run(ctx)
	}()
	t.Cleanup(cancel)
	return cancel, errCh
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	reloaded := make(chan struct{})
	var once atomic.Bool

	w := New(path, func() error {
		if once.CompareAndSwap(false, true) {
			close(reloaded)
		}
		return nil
	}, zaptest.NewLogger(t), WithRateLimit(100, 10), WithSettleWindow(10*time.Millisecond))

	cancel, errCh := startWatcher(t, w)
	touchUntil(t, path, reloaded)

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after cancellation")
	}
}

func TestWatcherKeepsRunningAfterReloadError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	secondCall := make(chan struct{})
	var calls atomic.Int32

	w := New(path, func() error {
		switch calls.Add(1) {
		case 1:
			return errors.New("bad settings")
		case 2:
			close(secondCall)
		}
		return nil
	}, zaptest.NewLogger(t), WithRateLimit(100, 10), WithSettleWindow(10*time.Millisecond))

	startWatcher(t, w)
	touchUntil(t, path, secondCall)
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")
	var calls atomic.Int32

	w := New(path, func() error {
		calls.Add(1)
		return nil
	}, zaptest.NewLogger(t), WithRateLimit(100, 10), WithSettleWindow(10*time.Millisecond))

	startWatcher(t, w)
	time.Sleep(100 * time.Millisecond)
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0o644); err != nil {
			t.Fatalf("write other file: %v", err)
		}
	}
	time.Sleep(200 * time.Millisecond)

	if n := calls.Load(); n != 0 {
		t.Fatalf("expected no reloads, got %d", n)
	}
}

func TestWatcherCoalescesBurstOfWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	ready := make(chan struct{})
	var armed atomic.Bool
	var calls atomic.Int32
	var last atomic.Value

	w := New(path, func() error {
		if armed.CompareAndSwap(false, true) {
			close(ready)
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		last.Store(string(data))
		calls.Add(1)
		return nil
	}, zaptest.NewLogger(t), WithRateLimit(100, 10), WithSettleWindow(100*time.Millisecond))

	startWatcher(t, w)
	touchUntil(t, path, ready)
	time.Sleep(500 * time.Millisecond)
	calls.Store(0)

	for i := 0; i < 20; i++ {
		if err := os.WriteFile(path, []byte("max_pending_packets: "+strconv.Itoa(i)+"\n"), 0o644); err != nil {
			t.Fatalf("write settings file: %v", err)
		}
	}
	time.Sleep(time.Second)

	if n := calls.Load(); n < 1 || n > 2 {
		t.Fatalf("expected the burst to collapse into one reload, got %d", n)
	}
	if got, _ := last.Load().(string); got != "max_pending_packets: 19\n" {
		t.Fatalf("expected final contents to be reloaded, got %q", got)
	}
}

func TestWatcherMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "settings.yaml")
	w := New(path, func() error { return nil }, nil)

	if err := w.Run(context.Background()); err == nil {
		t.Fatalf("expected error for missing directory")
	}
}

func TestNewReloadLimiterDefaults(t *testing.T) {
	limiter := newReloadLimiter(0, 0)
	if limiter.Burst() != defaultReloadBurst {
		t.Fatalf("expected burst %d, got %d", defaultReloadBurst, limiter.Burst())
	}
	if float64(limiter.Limit()) != defaultReloadsPerSecond {
		t.Fatalf("expected limit %v, got %v", defaultReloadsPerSecond, limiter.Limit())
	}
}
