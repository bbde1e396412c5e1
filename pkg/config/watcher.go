package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounceInterval is how long the watcher waits for writes to settle
// before reloading.
const DefaultDebounceInterval = 250 * time.Millisecond

// Watcher reloads the global configuration when the configuration file
// changes. It watches the file's directory rather than the file, so
// editors that replace the file by rename are handled.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	debounce *Debouncer
	onReload func() error

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWatcher creates a watcher for the configuration file at path. A nil
// onReload reloads the global singleton with ReloadConfig.
func NewWatcher(path string, debounce time.Duration, onReload func() error) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("configuration path is required for watching")
	}
	if debounce <= 0 {
		debounce = DefaultDebounceInterval
	}
	if onReload == nil {
		onReload = func() error { return ReloadConfig(path) }
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve configuration path %q: %w", path, err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		path:     abs,
		watcher:  fw,
		logger:   slog.Default().With("component", "config.watcher"),
		debounce: NewDebouncer(debounce),
		onReload: onReload,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Watch blocks until ctx is cancelled or Stop is called, reloading the
// configuration after each settled burst of changes. A failed reload keeps
// the previous configuration.
func (w *Watcher) Watch(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	defer close(w.doneCh)

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %q: %w", filepath.Dir(w.path), err)
	}

	w.logger.Info("configuration watcher started",
		"path", w.path,
		"debounce_ms", w.debounce.interval.Milliseconds(),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("configuration watcher stopped")
			return nil

		case <-w.stopCh:
			w.logger.Info("configuration watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !w.relevant(event) {
				continue
			}

			w.logger.Debug("configuration file event",
				"path", event.Name,
				"op", event.Op.String(),
			)

			w.debounce.Trigger(func() {
				if err := w.onReload(); err != nil {
					w.logger.Error("configuration reload failed, keeping previous configuration",
						"error", err,
					)
					return
				}
				w.logger.Info("configuration reloaded", "path", w.path)
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("configuration watcher error", "error", err)
		}
	}
}

// Stop ends Watch and releases the underlying watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	running := w.running
	w.running = false
	w.mu.Unlock()

	if running {
		close(w.stopCh)
		<-w.doneCh
	}

	w.debounce.Stop()

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	name, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	return name == w.path
}

// Debouncer collects rapid events and runs the last callback only after a
// quiet period.
type Debouncer struct {
	interval time.Duration

	mu       sync.Mutex
	timer    *time.Timer
	callback func()
	stopped  bool
}

// NewDebouncer creates a new debouncer.
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{interval: interval}
}

// Trigger schedules callback to run after the interval, replacing any
// callback that has not run yet.
func (d *Debouncer) Trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	d.callback = callback
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, func() {
		d.mu.Lock()
		cb := d.callback
		d.callback = nil
		stopped := d.stopped
		d.mu.Unlock()

		if cb != nil && !stopped {
			cb()
		}
	})
}

// Stop cancels any pending callback. Later triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.callback = nil
}
