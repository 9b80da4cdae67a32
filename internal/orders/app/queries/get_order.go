package queries

import (
	"context"
	"fmt"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

// GetOrderQuery looks an order up by native id, order number or UUID.
type GetOrderQuery struct {
	Ref      string
	Identity domain.Identity
}

// GetOrderQueryHandler executes GetOrderQuery and returns the order if the caller may see it.
type GetOrderQueryHandler struct {
	tx ports.TxManager
}

func NewGetOrderQueryHandler(tx ports.TxManager) *GetOrderQueryHandler {
	return &GetOrderQueryHandler{tx: tx}
}

func (h *GetOrderQueryHandler) Handle(ctx context.Context, query GetOrderQuery) (*domain.Order, error) {
	ref, err := domain.ParseOrderRef(query.Ref)
	if err != nil {
		return nil, err
	}

	var order *domain.Order
	err = h.tx.View(ctx, func(ctx context.Context, tx ports.Tx) error {
		order, err = FindOrder(ctx, tx.Orders(), ref)
		return err
	})
	if err != nil {
		return nil, err
	}

	if !order.AccessibleBy(query.Identity) {
		return nil, domain.ErrUnauthorized
	}
	return order, nil
}

// FindOrder dispatches a classified reference to the matching lookup.
func FindOrder(ctx context.Context, orders ports.OrderRepository, ref domain.OrderRef) (*domain.Order, error) {
	switch ref.Kind {
	case domain.OrderRefByNumber:
		return orders.GetByNumber(ctx, ref.Value)
	case domain.OrderRefByUUID:
		return orders.GetByUUID(ctx, ref.Value)
	case domain.OrderRefByID:
		return orders.GetByID(ctx, ref.Value)
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidOrderRef, ref.Value)
	}
}
