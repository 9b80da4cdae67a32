package commands

import (
	"context"
	"log/slog"
	"time"

	"github.com/dejobratic/storefront/internal/orders/app/queries"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

// UpdateOrderStatusCommand is the admin status change. Cancellation is routed
// through the cancel flow so stock is restored.
type UpdateOrderStatusCommand struct {
	OrderRef string
	Status   string
	Identity domain.Identity
}

func (c UpdateOrderStatusCommand) Validate() error {
	if err := requireAdmin(c.Identity); err != nil {
		return err
	}
	if _, err := domain.ParseOrderRef(c.OrderRef); err != nil {
		return err
	}
	status, ok := domain.ParseOrderStatus(c.Status)
	if !ok {
		return domain.NewValidationError("unknown order status", map[string]string{"status": c.Status})
	}
	switch status {
	case domain.StatusPaid:
		return domain.NewValidationError("orders become Paid only through payment verification", map[string]string{"status": c.Status})
	case domain.StatusRefunded:
		return domain.NewValidationError("orders become Refunded only through a refund", map[string]string{"status": c.Status})
	}
	return nil
}

type UpdateOrderStatusCommandHandler struct {
	tx     ports.TxManager
	cancel *CancelOrderCommandHandler
	logger *slog.Logger
}

func NewUpdateOrderStatusCommandHandler(tx ports.TxManager, cancel *CancelOrderCommandHandler, logger *slog.Logger) *UpdateOrderStatusCommandHandler {
	return &UpdateOrderStatusCommandHandler{tx: tx, cancel: cancel, logger: logger}
}

func (h *UpdateOrderStatusCommandHandler) Handle(ctx context.Context, cmd UpdateOrderStatusCommand) (*domain.Order, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	status, _ := domain.ParseOrderStatus(cmd.Status)
	if status == domain.StatusCancelled {
		return h.cancel.Handle(ctx, CancelOrderCommand{OrderRef: cmd.OrderRef, Identity: cmd.Identity})
	}

	ref, _ := domain.ParseOrderRef(cmd.OrderRef)

	var order *domain.Order
	err := h.tx.InTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		var err error
		order, err = queries.FindOrder(ctx, tx.Orders(), ref)
		if err != nil {
			return err
		}
		if err := order.TransitionTo(status, time.Now().UTC()); err != nil {
			return err
		}
		return tx.Orders().Update(ctx, *order)
	})
	if err != nil {
		return nil, err
	}

	h.logger.InfoContext(ctx, "order status updated", "order_id", order.ID, "status", order.Status)
	return order, nil
}
