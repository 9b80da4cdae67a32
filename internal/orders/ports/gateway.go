package ports

import (
	"context"

	"github.com/dejobratic/storefront/internal/orders/domain"
)

// RemoteOrderRequest is the intent created at the gateway before the customer pays.
type RemoteOrderRequest struct {
	AmountMinor int64
	Currency    domain.Currency
	Receipt     string
	Notes       map[string]string
}

type RemoteOrder struct {
	ID          string
	AmountMinor int64
	Currency    domain.Currency
	Status      string
}

type RemotePayment struct {
	ID          string
	OrderID     string
	Method      string
	Status      string
	AmountMinor int64
}

type RemoteRefund struct {
	ID          string
	AmountMinor int64
	Status      string
}

// PaymentGateway wraps the external payment processor. Failures are
// reported as *domain.GatewayError.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, req RemoteOrderRequest) (*RemoteOrder, error)
	VerifySignature(gatewayOrderID, gatewayPaymentID, signature string) bool
	FetchPayment(ctx context.Context, gatewayPaymentID string) (*RemotePayment, error)
	CreateRefund(ctx context.Context, gatewayPaymentID string, amountMinor int64, notes map[string]string) (*RemoteRefund, error)
}
