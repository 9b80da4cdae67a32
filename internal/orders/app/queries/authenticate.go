package queries

import (
	"context"
	"errors"

	"github.com/dejobratic/storefront/internal/apikey"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

// AuthenticateQueryHandler resolves a bearer API key to its user. Unknown and
// mismatched keys both report ErrUnauthorized.
type AuthenticateQueryHandler struct {
	tx ports.TxManager
}

func NewAuthenticateQueryHandler(tx ports.TxManager) *AuthenticateQueryHandler {
	return &AuthenticateQueryHandler{tx: tx}
}

func (h *AuthenticateQueryHandler) Handle(ctx context.Context, key string) (*domain.User, error) {
	if key == "" {
		return nil, domain.ErrUnauthorized
	}

	var user *domain.User
	err := h.tx.View(ctx, func(ctx context.Context, tx ports.Tx) error {
		var err error
		user, err = tx.Users().GetByAPIKeyLookup(ctx, apikey.Lookup(key))
		return err
	})
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if !apikey.Verify(user.APIKeyHash, key) {
		return nil, domain.ErrUnauthorized
	}
	return user, nil
}
