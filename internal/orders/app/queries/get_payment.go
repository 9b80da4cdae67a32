package queries

import (
	"context"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

type GetPaymentQuery struct {
	PaymentID string
	Identity  domain.Identity
}

// GetPaymentQueryHandler returns a payment to its owner. Payments owned by
// someone else are reported as missing.
type GetPaymentQueryHandler struct {
	tx ports.TxManager
}

func NewGetPaymentQueryHandler(tx ports.TxManager) *GetPaymentQueryHandler {
	return &GetPaymentQueryHandler{tx: tx}
}

func (h *GetPaymentQueryHandler) Handle(ctx context.Context, query GetPaymentQuery) (*domain.Payment, error) {
	var payment *domain.Payment
	err := h.tx.View(ctx, func(ctx context.Context, tx ports.Tx) error {
		var err error
		payment, err = tx.Payments().GetByID(ctx, query.PaymentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !payment.AccessibleBy(query.Identity) {
		return nil, domain.NotFound("payment", query.PaymentID)
	}
	return payment, nil
}
