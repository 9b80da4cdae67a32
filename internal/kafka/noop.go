package kafka

import (
	"context"
	"log/slog"

	"github.com/dejobratic/storefront/internal/orders/domain"
)

// NoopEventBus logs events instead of sending them. Used when no brokers are configured.
type NoopEventBus struct {
	logger *slog.Logger
}

func NewNoopEventBus(logger *slog.Logger) *NoopEventBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoopEventBus{logger: logger}
}

func (n *NoopEventBus) PublishOrderPlaced(ctx context.Context, order domain.Order) error {
	n.logger.DebugContext(ctx, "event::"+EventOrderPlaced, "order_id", order.ID, "order_number", order.OrderNumber)
	return nil
}

func (n *NoopEventBus) PublishPaymentCaptured(ctx context.Context, order domain.Order, payment domain.Payment) error {
	n.logger.DebugContext(ctx, "event::"+EventPaymentCaptured, "order_id", order.ID, "payment_id", payment.ID)
	return nil
}

func (n *NoopEventBus) PublishOrderCancelled(ctx context.Context, order domain.Order) error {
	n.logger.DebugContext(ctx, "event::"+EventOrderCancelled, "order_id", order.ID)
	return nil
}

func (n *NoopEventBus) PublishPaymentRefunded(ctx context.Context, payment domain.Payment, refund domain.Refund) error {
	n.logger.DebugContext(ctx, "event::"+EventPaymentRefunded, "payment_id", payment.ID, "refund_id", refund.GatewayRefundID)
	return nil
}

func (n *NoopEventBus) PublishPaymentCaptureFailed(ctx context.Context, order domain.Order, payment domain.Payment, reason string) error {
	n.logger.WarnContext(ctx, "event::"+EventPaymentCaptureFailed, "order_id", order.ID, "payment_id", payment.ID, "reason", reason)
	return nil
}
