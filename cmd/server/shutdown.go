package main

import (
	"context"
	"log/slog"
)

type server interface {
	Shutdown(ctx context.Context) error
}

// shutdown drains srv, then stops the event publisher and waits for the
// running background workers until ctx expires.
func shutdown(ctx context.Context, srv server, stopPublisher context.CancelFunc, workers <-chan struct{}, running int, log *slog.Logger) error {
	err := srv.Shutdown(ctx)
	stopPublisher()
	for ; running > 0; running-- {
		select {
		case <-workers:
		case <-ctx.Done():
			log.Warn("background workers did not stop in time", "remaining", running)
			return err
		}
	}
	return err
}
