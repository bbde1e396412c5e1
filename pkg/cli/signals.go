package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// ShutdownContext returns a context that is cancelled on the first SIGINT or
// SIGTERM. A second signal exits the process with status 1 without waiting
// for open streams to drain. The returned stop function releases the signal
// subscription.
func ShutdownContext(parent context.Context) (context.Context, context.CancelFunc) {
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := shutdownOnSignals(parent, sigs, os.Exit)
	return ctx, func() {
		signal.Stop(sigs)
		cancel()
	}
}

func shutdownOnSignals(parent context.Context, sigs <-chan os.Signal, exit func(int)) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	go func() {
		select {
		case sig := <-sigs:
			slog.Info("shutdown signal received, draining", "signal", sig.String())
			cancel()
		case <-done:
			return
		}

		select {
		case sig := <-sigs:
			slog.Warn("second signal received, exiting immediately", "signal", sig.String())
			exit(1)
		case <-done:
		}
	}()

	return ctx, func() {
		select {
		case <-done:
		default:
			close(done)
		}
		cancel()
	}
}

// OnReloadSignal calls reload each time the process receives SIGHUP, until
// ctx is done.
func OnReloadSignal(ctx context.Context, reload func()) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGHUP)
	go reloadOnSignals(ctx, sigs, reload, func() { signal.Stop(sigs) })
}

func reloadOnSignals(ctx context.Context, sigs <-chan os.Signal, reload func(), stop func()) {
	defer stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-sigs:
			reload()
		}
	}
}
