package session

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultKey is used when a caller supplies no session identifier.
const DefaultKey = "default"

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	// IdleTTL is how long an idle session is kept. Zero keeps sessions for
	// the process lifetime.
	IdleTTL time.Duration

	// SweepSchedule is a cron expression (e.g. "@every 5m") for evicting idle
	// sessions. Empty disables scheduled sweeping.
	SweepSchedule string

	// OnSizeChange, if set, is called with the number of sessions after every
	// insertion or eviction.
	OnSizeChange func(n int)
}

// Registry maps caller-supplied identifiers to independent sessions.
type Registry struct {
	notifier StopNotifier
	opts     RegistryOptions
	logger   *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session

	cron    *cron.Cron
	running bool
}

// NewRegistry creates an empty registry. Sessions it creates send stop
// notifications through notifier.
func NewRegistry(notifier StopNotifier, opts RegistryOptions) *Registry {
	return &Registry{
		notifier: notifier,
		opts:     opts,
		logger:   slog.Default().With("component", "session.registry"),
		sessions: make(map[string]*Session),
	}
}

// Get returns the session for key, creating it if needed. An empty key maps
// to DefaultKey.
func (r *Registry) Get(key string) *Session {
	if key == "" {
		key = DefaultKey
	}

	r.mu.Lock()
	s, ok := r.sessions[key]
	if !ok {
		s = New(key, r.notifier)
		r.sessions[key] = s
	}
	s.touch()
	n := len(r.sessions)
	r.mu.Unlock()

	if !ok {
		r.logger.Debug("session created", "session", key)
		r.sizeChanged(n)
	}
	return s
}

// Lookup returns the session for key without creating it.
func (r *Registry) Lookup(key string) (*Session, bool) {
	if key == "" {
		key = DefaultKey
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[key]
	return s, ok
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep removes sessions that have been idle longer than IdleTTL as of now.
// Running sessions are never removed. It returns the number evicted.
func (r *Registry) Sweep(now time.Time) int {
	if r.opts.IdleTTL <= 0 {
		return 0
	}

	r.mu.Lock()
	evicted := 0
	for key, s := range r.sessions {
		if s.Running() {
			continue
		}
		if now.Sub(s.LastUsed()) > r.opts.IdleTTL {
			delete(r.sessions, key)
			evicted++
		}
	}
	n := len(r.sessions)
	r.mu.Unlock()

	if evicted > 0 {
		r.logger.Info("evicted idle sessions", "evicted", evicted, "remaining", n)
		r.sizeChanged(n)
	}
	return evicted
}

// Start schedules Sweep according to SweepSchedule. It is a no-op when no
// schedule is configured.
func (r *Registry) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running || r.opts.SweepSchedule == "" {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(r.opts.SweepSchedule, func() {
		r.Sweep(time.Now())
	}); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", r.opts.SweepSchedule, err)
	}
	c.Start()

	r.cron = c
	r.running = true
	r.logger.Info("session sweeper started",
		"schedule", r.opts.SweepSchedule,
		"idle_ttl", r.opts.IdleTTL.String(),
	)
	return nil
}

// Stop halts scheduled sweeping and waits for a running sweep to finish.
func (r *Registry) Stop() {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.running = false
	r.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
		r.logger.Info("session sweeper stopped")
	}
}

func (r *Registry) sizeChanged(n int) {
	if r.opts.OnSizeChange != nil {
		r.opts.OnSizeChange(n)
	}
}
