package config

import (
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
)

var (
	current atomic.Pointer[Config]

	// reloadMu serialises Initialize and ReloadConfig so overrides and the
	// restart check see a consistent previous value.
	reloadMu  sync.Mutex
	overrides []func(*Config)
	initOnce  sync.Once
)

// Initialize loads the configuration at path, applies environment and
// registered overrides, and stores it as the process configuration. Only the
// first call has an effect.
func Initialize(path string) error {
	var initErr error

	initOnce.Do(func() {
		reloadMu.Lock()
		defer reloadMu.Unlock()

		cfg, err := LoadConfigWithEnvOverrides(path)
		if err != nil {
			initErr = err
			return
		}
		applyOverrides(cfg)
		current.Store(cfg)
	})

	return initErr
}

// GetConfig returns the process configuration, or nil before Initialize
// succeeds. Callers must treat the returned value as read-only; a reload
// swaps in a new instance rather than mutating it.
func GetConfig() *Config {
	return current.Load()
}

// SetConfig replaces the process configuration. It is meant for tests.
func SetConfig(cfg *Config) {
	current.Store(cfg)
}

// MustGetConfig is GetConfig for callers that cannot run without one.
func MustGetConfig() *Config {
	cfg := GetConfig()
	if cfg == nil {
		panic("configuration not initialized: call Initialize first")
	}
	return cfg
}

// AddOverride registers fn to adjust every configuration loaded by
// Initialize or ReloadConfig. Command-line flags use it so a reload does not
// discard them.
func AddOverride(fn func(*Config)) {
	reloadMu.Lock()
	defer reloadMu.Unlock()

	overrides = append(overrides, fn)
	if cfg := current.Load(); cfg != nil {
		next := *cfg
		fn(&next)
		current.Store(&next)
	}
}

// ReloadConfig loads path again and swaps it in if it is valid. On error the
// previous configuration stays in place. Settings outside the relay section
// are swapped too but only take effect after a restart; they are logged.
func ReloadConfig(path string) error {
	reloadMu.Lock()
	defer reloadMu.Unlock()

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		return fmt.Errorf("failed to reload configuration: %w", err)
	}
	applyOverrides(cfg)

	if prev := current.Load(); prev != nil {
		if sections := RestartRequired(prev, cfg); len(sections) > 0 {
			slog.Warn("configuration sections changed that need a restart",
				"sections", sections,
			)
		}
	}

	current.Store(cfg)
	return nil
}

// RestartRequired lists the top-level sections that differ between prev and
// next and are only read at startup.
func RestartRequired(prev, next *Config) []string {
	var changed []string
	check := func(name string, a, b any) {
		if !reflect.DeepEqual(a, b) {
			changed = append(changed, name)
		}
	}

	prevProxy, nextProxy := prev.Proxy, next.Proxy
	prevProxy.MaxRequestBytes, nextProxy.MaxRequestBytes = 0, 0
	check("proxy", prevProxy, nextProxy)
	check("upstream", prev.Upstream, next.Upstream)
	check("sessions.idle_ttl", prev.Sessions.IdleTTL, next.Sessions.IdleTTL)
	check("sessions.sweep_schedule", prev.Sessions.SweepSchedule, next.Sessions.SweepSchedule)
	check("telemetry", prev.Telemetry, next.Telemetry)
	check("security", prev.Security, next.Security)
	return changed
}

func applyOverrides(cfg *Config) {
	for _, fn := range overrides {
		fn(cfg)
	}
}
