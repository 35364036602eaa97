package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// SetupSignalHandler creates a context that is canceled on SIGINT or SIGTERM.
// A second signal terminates the process with ExitFailure.
func SetupSignalHandler() context.Context {
	return setupSignalHandler(os.Exit)
}

func setupSignalHandler(exit func(int)) context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, shutdownSignals...)

	go func() {
		sig := <-sigChan
		slog.Info("received signal, shutting down", "signal", sig.String())
		cancel()

		sig = <-sigChan
		slog.Warn("received second signal, exiting immediately", "signal", sig.String())
		exit(ExitFailure)
	}()

	return ctx
}
