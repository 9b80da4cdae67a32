package queries

import (
	"context"
	"errors"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

type GetCartQuery struct {
	Identity domain.Identity
}

type CartQueryHandler struct {
	tx ports.TxManager
}

func NewCartQueryHandler(tx ports.TxManager) *CartQueryHandler {
	return &CartQueryHandler{tx: tx}
}

func (h *CartQueryHandler) Handle(ctx context.Context, query GetCartQuery) (*domain.CartView, error) {
	if !query.Identity.IsRegistered() {
		return nil, domain.ErrUnauthorized
	}

	var view domain.CartView
	err := h.tx.View(ctx, func(ctx context.Context, tx ports.Tx) error {
		cart, err := tx.Carts().Get(ctx, query.Identity.UserID)
		if err != nil {
			return err
		}
		view, err = PriceCart(ctx, tx, *cart)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// PriceCart loads the products in the cart and prices it. Products deleted
// since they were added are left out of the view.
func PriceCart(ctx context.Context, tx ports.Tx, cart domain.Cart) (domain.CartView, error) {
	products := make(map[string]domain.Product, len(cart.Items))
	for _, item := range cart.Items {
		product, err := tx.Catalog().FindProduct(ctx, item.ProductID)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return domain.CartView{}, err
		}
		products[product.ID] = *product
	}
	return domain.PriceCart(cart, products), nil
}
