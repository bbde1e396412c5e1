// Package config provides configuration management for the relay.
//
// This package handles loading, validating, and managing configuration from
// YAML files with environment variable overrides.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("config.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention DIFYRELAY_SECTION_FIELD.
// For example:
//
//   - DIFYRELAY_PROXY_LISTEN_ADDRESS overrides proxy.listen_address
//   - DIFYRELAY_UPSTREAM_API_KEY overrides upstream.api_key
//   - DIFYRELAY_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// # Configuration Precedence
//
// Configuration values are applied in the following order (later overrides earlier):
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Singleton and Hot Reload
//
// The process-wide configuration is managed through Initialize, GetConfig
// and ReloadConfig. A Watcher calls ReloadConfig when the file changes:
//
//	w, err := config.NewWatcher(path, 0, nil)
//	if err != nil {
//	    return err
//	}
//	go w.Watch(ctx)
//	defer w.Stop()
//
// Only the relay section is re-read per request; listener, upstream and
// session settings need a restart.
//
// # Example Configuration
//
//	proxy:
//	  listen_address: "0.0.0.0:8080"
//	upstream:
//	  base_url: "https://dify.example.com/v1"
//	  api_key: "app-..."
//	relay:
//	  default_model: "o3-mini"
//	  reset_command: "clear"
//	sessions:
//	  idle_ttl: "24h"
//	  sweep_schedule: "@every 5m"
//	telemetry:
//	  logging:
//	    level: "info"
//	    format: "json"
package config
