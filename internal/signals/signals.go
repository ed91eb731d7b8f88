// Package signals turns SIGTERM/SIGINT into context cancellation, so a
// long-running queue worker loop (spec.md §4.3) or daemon shuts down
// cleanly instead of leaving a lock or checkpoint stranded mid-operation.
// Grounded in the teacher's cmd/bd daemon_event_loop.go /
// daemon_server.go, which both wire os/signal.Notify the same way for the
// daemon's own shutdown handling.
package signals

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/railyard/railyard/internal/logging"
	"github.com/railyard/railyard/internal/railyarderr"
)

// WithCancelOnSignal returns a context that's cancelled on SIGINT or
// SIGTERM, and a stop function the caller must invoke (typically via
// defer) to release the signal.Notify registration. The handler is
// installed either way, but if SIGINT or SIGTERM was already being
// ignored by the embedding process (e.g. a daemonized parent that set
// SIG_IGN before exec'ing this binary), that's logged at Warn and
// returned as a railyarderr.CodeSignalSetup error rather than silently
// overridden, per spec.md §5/§9 — the caller decides whether that
// matters for its deployment.
func WithCancelOnSignal(parent context.Context) (context.Context, func(), error) {
	ctx, cancel := context.WithCancel(parent)

	var setupErr error
	if signal.Ignored(syscall.SIGINT) || signal.Ignored(syscall.SIGTERM) {
		setupErr = railyarderr.Wrap(railyarderr.ClassSystem, railyarderr.CodeSignalSetup,
			"SIGINT or SIGTERM was already being ignored by the embedding process", nil).
			WithSuggestion("this process overrode the ignore and installed its own handler")
		logging.WithComponent("signals").Warn().Msg(setupErr.Error())
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		select {
		case sig := <-sigCh:
			logging.WithComponent("signals").Info().Str("signal", sig.String()).Msg("received shutdown signal")
			cancel()
		case <-done:
		}
	}()

	stop := func() {
		signal.Stop(sigCh)
		close(done)
		cancel()
	}
	return ctx, stop, setupErr
}
