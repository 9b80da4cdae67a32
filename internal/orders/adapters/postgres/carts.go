package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dejobratic/storefront/internal/database"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/jackc/pgx/v5"
)

type cartStore struct {
	q    querier
	lock bool
}

// Get reads the user's cart. In a write transaction an empty row is created
// first so the row lock also covers a cart that did not exist yet.
func (s *cartStore) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	if s.lock {
		_, err := s.q.Exec(ctx, `
			INSERT INTO carts (user_id, items, updated_at)
			VALUES ($1, '[]', NOW())
			ON CONFLICT (user_id) DO NOTHING
		`, userID)
		if err != nil {
			if database.IsForeignKeyViolation(err) {
				return nil, domain.NotFound("user", userID)
			}
			return nil, fmt.Errorf("ensure cart: %w", err)
		}
	}

	query := `SELECT items, updated_at FROM carts WHERE user_id = $1` + forUpdate(s.lock)

	var (
		cart  = domain.Cart{UserID: userID}
		items []byte
	)
	err := s.q.QueryRow(ctx, query, userID).Scan(&items, &cart.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			cart.Items = []domain.CartItem{}
			return &cart, nil
		}
		return nil, fmt.Errorf("select cart: %w", err)
	}
	if err := json.Unmarshal(items, &cart.Items); err != nil {
		return nil, fmt.Errorf("decode cart items: %w", err)
	}
	return &cart, nil
}

func (s *cartStore) Save(ctx context.Context, cart domain.Cart) error {
	items := cart.Items
	if items == nil {
		items = []domain.CartItem{}
	}
	doc, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode cart items: %w", err)
	}

	query := `
		INSERT INTO carts (user_id, items, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET items = EXCLUDED.items, updated_at = EXCLUDED.updated_at
	`

	if _, err := s.q.Exec(ctx, query, cart.UserID, doc, cart.UpdatedAt); err != nil {
		if database.IsForeignKeyViolation(err) {
			return domain.NotFound("user", cart.UserID)
		}
		if database.IsUniqueViolation(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("upsert cart: %w", err)
	}
	return nil
}

func (s *cartStore) Delete(ctx context.Context, userID string) error {
	if _, err := s.q.Exec(ctx, `DELETE FROM carts WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}
