package runtime

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// ShutdownSignals are the signals booking-service drains on when none are given.
var ShutdownSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}

// SignalContext is cancelled when parent is done or one of sigs arrives. The
// received signal is logged so drain-triggered shutdowns show up in the log.
// The returned stop releases the signal handler.
func SignalContext(parent context.Context, logger *slog.Logger, sigs ...os.Signal) (context.Context, context.CancelFunc) {
	if len(sigs) == 0 {
		sigs = ShutdownSignals
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(parent)
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)
	go func() {
		defer signal.Stop(ch)
		select {
		case sig := <-ch:
			logger.Info("shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
