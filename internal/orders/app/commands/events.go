package commands

import (
	"context"
	"log/slog"
)

// publish sends a post-commit event. Failures are logged and never
// returned, the state change has already been committed.
func publish(ctx context.Context, logger *slog.Logger, event string, fn func(ctx context.Context) error) {
	if err := fn(ctx); err != nil {
		logger.WarnContext(ctx, "failed to publish event", "event", event, "error", err)
	}
}
