package ports

import (
	"context"

	"github.com/dejobratic/storefront/internal/orders/domain"
)

// EventBus defines the contract for publishing order lifecycle events.
// Publishing happens after commit and never rolls back the state change.
type EventBus interface {
	PublishOrderPlaced(ctx context.Context, order domain.Order) error
	PublishPaymentCaptured(ctx context.Context, order domain.Order, payment domain.Payment) error
	PublishOrderCancelled(ctx context.Context, order domain.Order) error
	PublishPaymentRefunded(ctx context.Context, payment domain.Payment, refund domain.Refund) error
	PublishPaymentCaptureFailed(ctx context.Context, order domain.Order, payment domain.Payment, reason string) error
}
