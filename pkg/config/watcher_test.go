package config

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, "upstream:\n  base_url: \"http://first/v1\"\n")

	reloaded := make(chan struct{}, 4)
	w, err := NewWatcher(path, 20*time.Millisecond, func() error {
		reloaded <- struct{}{}
		return nil
	})
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx) }()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(path, []byte("upstream:\n  base_url: \"http://second/v1\"\n"), 0644); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}

	select {
	case <-reloaded:
	case <-time.After(5 * time.Second):
		t.Fatal("expected reload after write")
	}

	if err := w.Stop(); err != nil {
		t.Errorf("Stop returned error: %v", err)
	}
	if err := <-done; err != nil {
		t.Errorf("Watch returned error: %v", err)
	}
}

func TestWatcher_RequiresPath(t *testing.T) {
	if _, err := NewWatcher("", 0, nil); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestDebouncer_CoalescesTriggers(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	defer d.Stop()

	var calls int32
	for i := 0; i < 5; i++ {
		d.Trigger(func() { atomic.AddInt32(&calls, 1) })
	}

	time.Sleep(200 * time.Millisecond)
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected 1 call, got %d", got)
	}
}

func TestDebouncer_StopCancelsPending(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)

	var calls int32
	d.Trigger(func() { atomic.AddInt32(&calls, 1) })
	d.Stop()
	d.Trigger(func() { atomic.AddInt32(&calls, 1) })

	time.Sleep(150 * time.Millisecond)
	if got := atomic.LoadInt32(&calls); got != 0 {
		t.Errorf("expected no calls after Stop, got %d", got)
	}
}
