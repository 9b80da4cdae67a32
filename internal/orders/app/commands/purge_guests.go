package commands

import (
	"context"
	"log/slog"
	"time"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

// PurgeGuestsCommand removes stale guests that never placed an order or
// converted. A zero Retention uses domain.DefaultGuestRetention.
type PurgeGuestsCommand struct {
	Retention time.Duration
	Now       time.Time
}

type PurgeGuestsCommandHandler struct {
	tx     ports.TxManager
	logger *slog.Logger
}

func NewPurgeGuestsCommandHandler(tx ports.TxManager, logger *slog.Logger) *PurgeGuestsCommandHandler {
	return &PurgeGuestsCommandHandler{tx: tx, logger: logger}
}

func (h *PurgeGuestsCommandHandler) Handle(ctx context.Context, cmd PurgeGuestsCommand) (int, error) {
	retention := cmd.Retention
	if retention <= 0 {
		retention = domain.DefaultGuestRetention
	}
	now := cmd.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	cutoff := now.Add(-retention)

	var purged int
	err := h.tx.InTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		var err error
		purged, err = tx.Guests().PurgeUnconverted(ctx, cutoff)
		return err
	})
	if err != nil {
		return 0, err
	}

	h.logger.InfoContext(ctx, "stale guests purged", "count", purged, "cutoff", cutoff)
	return purged, nil
}
