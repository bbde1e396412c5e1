package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"mercator-hq/difyrelay/pkg/cli"
	"mercator-hq/difyrelay/pkg/config"
	"mercator-hq/difyrelay/pkg/relay"
	"mercator-hq/difyrelay/pkg/server"
	"mercator-hq/difyrelay/pkg/session"
	"mercator-hq/difyrelay/pkg/telemetry/logging"
	"mercator-hq/difyrelay/pkg/telemetry/metrics"
	"mercator-hq/difyrelay/pkg/telemetry/tracing"
	"mercator-hq/difyrelay/pkg/upstream"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the relay server",
	Long: `Start the relay server with the specified configuration.

The server listens on the configured address and relays chat completion
requests to the configured Dify application.

Examples:
  # Start with default config
  difyrelay run

  # Start with custom config
  difyrelay run --config /etc/difyrelay/config.yaml

  # Override listen address
  difyrelay run --listen 0.0.0.0:8080

  # Validate config without starting server
  difyrelay run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	// Load configuration
	if err := config.Initialize(cfgFile); err != nil {
		printConfigErrors(cmd, err)
		return cli.NewCommandError("run", cli.ErrInvalidConfig)
	}
	config.AddOverride(applyRunFlags)
	cfg := config.GetConfig()

	logger, err := logging.Setup(logging.FromConfig(cfg.Telemetry.Logging))
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}

	if runFlags.dryRun {
		fmt.Fprintln(out, "✓ Configuration valid")
		return nil
	}

	printBanner(cmd, cfg)

	ctx, stop := cli.ShutdownContext(context.Background())
	defer stop()

	if cfgFile != "" {
		cli.OnReloadSignal(ctx, func() {
			if err := config.ReloadConfig(cfgFile); err != nil {
				logger.Error("configuration reload failed, keeping previous configuration", "error", err)
				return
			}
			logger.Info("configuration reloaded", "path", cfgFile, "trigger", "SIGHUP")
		})
	}

	tracer, err := tracing.New(&cfg.Telemetry.Tracing, tracing.WithServiceVersion(Version))
	if err != nil {
		return cli.NewCommandError("run", fmt.Errorf("failed to initialize tracing: %w", err))
	}
	defer shutdownTracer(tracer)

	var collector *metrics.Collector
	if cfg.Telemetry.Metrics.Enabled {
		collector = metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
	}

	client := upstream.NewClient(upstream.Config{
		BaseURL:            cfg.Upstream.BaseURL,
		APIKey:             cfg.Upstream.APIKey,
		User:               cfg.Upstream.User,
		Timeout:            cfg.Upstream.Timeout,
		MaxRetries:         cfg.Upstream.MaxRetries,
		StopTimeout:        cfg.Upstream.StopTimeout,
		InsecureSkipVerify: cfg.Upstream.InsecureSkipVerify,
		MaxIdleConns:       cfg.Upstream.MaxIdleConns,
		IdleConnTimeout:    cfg.Upstream.IdleConnTimeout,
		Tracer:             tracer,
	})
	defer client.Close()
	fmt.Fprintf(out, "✓ Upstream: %s\n", cfg.Upstream.BaseURL)

	registry := session.NewRegistry(client, session.RegistryOptions{
		IdleTTL:       cfg.Sessions.IdleTTL,
		SweepSchedule: cfg.Sessions.SweepSchedule,
		OnSizeChange:  collector.SetActiveSessions,
	})
	if err := registry.Start(); err != nil {
		return cli.NewConfigError("sessions.sweep_schedule", err.Error())
	}
	defer registry.Stop()

	pipeline := relay.NewPipeline(client, relay.Options{
		Metrics: collector,
		Tracer:  tracer,
	})

	if cfg.Watch && cfgFile != "" {
		watcher, err := config.NewWatcher(cfgFile, 0, nil)
		if err != nil {
			return cli.NewCommandError("run", err)
		}
		go func() {
			if err := watcher.Watch(ctx); err != nil {
				logger.Error("configuration watcher failed", "error", err)
			}
		}()
		defer watcher.Stop()
		fmt.Fprintf(out, "✓ Watching %s for changes\n", cfgFile)
	}

	srv := server.NewServer(&cfg.Proxy, &cfg.Security, &cfg.Telemetry.Metrics, server.Dependencies{
		Pipeline: pipeline,
		Sessions: registry,
		Upstream: client,
		Metrics:  collector,
		Tracer:   tracer,
		Config:   config.GetConfig,
	})

	fmt.Fprintln(out)
	fmt.Fprintf(out, "✓ Server listening on %s\n", cfg.Proxy.ListenAddress)
	fmt.Fprintf(out, "✓ Health endpoint: http://%s/health\n", cfg.Proxy.ListenAddress)
	if collector != nil {
		fmt.Fprintf(out, "✓ Metrics endpoint: http://%s%s\n", cfg.Proxy.ListenAddress, cfg.Telemetry.Metrics.Path)
	}
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")

	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}

	fmt.Fprintln(out, "✓ Server stopped")
	return nil
}

// applyRunFlags applies command-line overrides. It is registered with the
// config package so reloads keep them.
func applyRunFlags(cfg *config.Config) {
	if runFlags.listenAddress != "" {
		cfg.Proxy.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
}

func printBanner(cmd *cobra.Command, cfg *config.Config) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "difyrelay v%s\n", Version)
	if cfgFile != "" {
		fmt.Fprintf(out, "Loading configuration from: %s\n", cfgFile)
	}
	fmt.Fprintln(out, "✓ Configuration loaded")

	slog.Debug("relay settings",
		"default_model", cfg.Relay.DefaultModel,
		"reset_command", cfg.Relay.ResetCommand,
		"session_header", cfg.Sessions.Header,
	)
	if cfg.Telemetry.Tracing.Enabled {
		slog.Debug("tracing enabled", "endpoint", cfg.Telemetry.Tracing.Endpoint)
	}
}

func shutdownTracer(tracer *tracing.Tracer) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tracer.Shutdown(ctx); err != nil {
		slog.Warn("failed to flush traces", "error", err)
	}
}
