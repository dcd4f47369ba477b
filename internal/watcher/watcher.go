// Package watcher re-runs a reload callback whenever a settings file changes.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultReloadsPerSecond = 1.0
	defaultReloadBurst      = 1
	defaultSettleWindow     = 100 * time.Millisecond
)

// Option configures a Watcher.
type Option func(*Watcher)

// WithRateLimit bounds how often reload runs. Non-positive values fall back to
// one reload per second with a burst of one.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(w *Watcher) {
		w.limiter = newReloadLimiter(perSecond, burst)
	}
}

// WithSettleWindow sets how long the file must stay quiet before a burst of
// changes is reloaded once.
func WithSettleWindow(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.settle = d
		}
	}
}

// Watcher observes a single file through its parent directory so that editors
// replacing the file via rename are still picked up.
type Watcher struct {
	path    string
	reload  func() error
	logger  *zap.Logger
	limiter *rate.Limiter
	settle  time.Duration
}

// New creates a Watcher for path. reload is called after every relevant change.
func New(path string, reload func() error, logger *zap.Logger, opts ...Option) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Watcher{
		path:    filepath.Clean(path),
		reload:  reload,
		logger:  logger,
		limiter: newReloadLimiter(defaultReloadsPerSecond, defaultReloadBurst),
		settle:  defaultSettleWindow,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run blocks until ctx is cancelled. Reload failures are logged and do not
// stop the watch.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer fw.Close()

	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.logger.Info("watching settings file", zap.String("path", w.path))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			if err := w.limiter.Wait(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("wait for reload slot: %w", err)
			}
			if !w.drain(ctx, fw.Events) {
				return nil
			}
			w.logger.Info("settings file changed",
				zap.String("path", w.path),
				zap.String("op", event.Op.String()),
			)
			if err := w.reload(); err != nil {
				w.logger.Error("reload failed", zap.Error(err))
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				w.logger.Warn("file watcher overflowed, some events were lost")
				continue
			}
			w.logger.Warn("file watcher error", zap.Error(err))
		}
	}
}

// drain swallows events until the settle window passes without a relevant one,
// so a burst of writes costs a single reload of the final contents. It
// returns false when ctx is cancelled or the event channel closes.
func (w *Watcher) drain(ctx context.Context, events <-chan fsnotify.Event) bool {
	timer := time.NewTimer(w.settle)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case event, ok := <-events:
			if !ok {
				return false
			}
			if !w.relevant(event) {
				continue
			}
			timer.Reset(w.settle)
		case <-timer.C:
			return true
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}

func newReloadLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		perSecond = defaultReloadsPerSecond
	}
	if burst <= 0 {
		burst = defaultReloadBurst
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}
