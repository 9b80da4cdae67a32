package memory

import (
	"context"

	"github.com/dejobratic/storefront/internal/orders/domain"
)

type cartStore struct {
	state *state
}

func (s *cartStore) Get(_ context.Context, userID string) (*domain.Cart, error) {
	cart, ok := s.state.carts[userID]
	if !ok {
		return &domain.Cart{UserID: userID, Items: []domain.CartItem{}}, nil
	}
	copy := cloneCart(cart)
	return &copy, nil
}

func (s *cartStore) Save(_ context.Context, cart domain.Cart) error {
	if _, ok := s.state.users[cart.UserID]; !ok {
		return domain.NotFound("user", cart.UserID)
	}
	s.state.carts[cart.UserID] = cloneCart(cart)
	return nil
}

func (s *cartStore) Delete(_ context.Context, userID string) error {
	delete(s.state.carts, userID)
	return nil
}
