package commands

import (
	"context"
	"log/slog"
	"time"

	"github.com/dejobratic/storefront/internal/orders/app/queries"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

// CancelOrderCommand cancels an order and returns committed stock to the catalog.
type CancelOrderCommand struct {
	OrderRef string
	Identity domain.Identity
}

func (c CancelOrderCommand) Validate() error {
	if err := requireAdmin(c.Identity); err != nil {
		return err
	}
	_, err := domain.ParseOrderRef(c.OrderRef)
	return err
}

type CancelOrderCommandHandler struct {
	tx     ports.TxManager
	events ports.EventBus
	logger *slog.Logger
}

func NewCancelOrderCommandHandler(tx ports.TxManager, events ports.EventBus, logger *slog.Logger) *CancelOrderCommandHandler {
	return &CancelOrderCommandHandler{tx: tx, events: events, logger: logger}
}

func (h *CancelOrderCommandHandler) Handle(ctx context.Context, cmd CancelOrderCommand) (*domain.Order, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	ref, _ := domain.ParseOrderRef(cmd.OrderRef)

	var order *domain.Order
	err := h.tx.InTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		var err error
		order, err = queries.FindOrder(ctx, tx.Orders(), ref)
		if err != nil {
			return err
		}
		return cancelInTx(ctx, tx, order, time.Now().UTC())
	})
	if err != nil {
		return nil, err
	}

	h.logger.InfoContext(ctx, "order cancelled", "order_id", order.ID, "order_number", order.OrderNumber)
	publish(ctx, h.logger, "order.cancelled", func(ctx context.Context) error {
		return h.events.PublishOrderCancelled(ctx, *order)
	})

	return order, nil
}

// cancelInTx restores exactly what the order took from stock, if anything,
// and moves it to Cancelled.
func cancelInTx(ctx context.Context, tx ports.Tx, order *domain.Order, now time.Time) error {
	if err := order.TransitionTo(domain.StatusCancelled, now); err != nil {
		return err
	}
	if order.StockCommitted {
		for _, item := range order.Items {
			if err := tx.Catalog().RestoreStock(ctx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}
		order.StockCommitted = false
	}
	return tx.Orders().Update(ctx, *order)
}
