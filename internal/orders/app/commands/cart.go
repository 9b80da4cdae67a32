package commands

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/dejobratic/storefront/internal/orders/app/queries"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

type CartItemCommand struct {
	ProductID string
	Quantity  int
	Identity  domain.Identity
}

type RemoveCartItemCommand struct {
	ProductID string
	Identity  domain.Identity
}

type ClearCartCommand struct {
	Identity domain.Identity
}

// SyncCartCommand merges a basket kept by the client before sign-in into the
// saved cart.
type SyncCartCommand struct {
	Items    []OrderLine
	Identity domain.Identity
}

// CartCommandHandler edits the saved cart of a registered customer. Every
// operation returns the cart priced against the current catalog.
type CartCommandHandler struct {
	tx     ports.TxManager
	logger *slog.Logger
}

func NewCartCommandHandler(tx ports.TxManager, logger *slog.Logger) *CartCommandHandler {
	return &CartCommandHandler{tx: tx, logger: logger}
}

func (h *CartCommandHandler) AddItem(ctx context.Context, cmd CartItemCommand) (*domain.CartView, error) {
	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return nil, domain.NewValidationError("product_id is required", map[string]string{"product_id": "required"})
	}
	return h.edit(ctx, cmd.Identity, func(ctx context.Context, tx ports.Tx, cart *domain.Cart) error {
		if _, err := tx.Catalog().FindProduct(ctx, productID); err != nil {
			return err
		}
		return cart.Add(productID, cmd.Quantity)
	})
}

func (h *CartCommandHandler) SetItemQuantity(ctx context.Context, cmd CartItemCommand) (*domain.CartView, error) {
	return h.edit(ctx, cmd.Identity, func(_ context.Context, _ ports.Tx, cart *domain.Cart) error {
		return cart.SetQuantity(cmd.ProductID, cmd.Quantity)
	})
}

func (h *CartCommandHandler) RemoveItem(ctx context.Context, cmd RemoveCartItemCommand) (*domain.CartView, error) {
	return h.edit(ctx, cmd.Identity, func(_ context.Context, _ ports.Tx, cart *domain.Cart) error {
		if !cart.Remove(cmd.ProductID) {
			return domain.NotFound("cart item", cmd.ProductID)
		}
		return nil
	})
}

func (h *CartCommandHandler) Clear(ctx context.Context, cmd ClearCartCommand) (*domain.CartView, error) {
	return h.edit(ctx, cmd.Identity, func(_ context.Context, _ ports.Tx, cart *domain.Cart) error {
		cart.Clear()
		return nil
	})
}

// Sync folds the client's lines into the saved cart. Lines for products that
// no longer exist or with no quantity are dropped, and merged lines are
// capped rather than rejected.
func (h *CartCommandHandler) Sync(ctx context.Context, cmd SyncCartCommand) (*domain.CartView, error) {
	var skipped int
	view, err := h.edit(ctx, cmd.Identity, func(ctx context.Context, tx ports.Tx, cart *domain.Cart) error {
		skipped = 0
		for _, line := range mergeLines(cmd.Items) {
			if line.ProductID == "" || line.Quantity <= 0 {
				skipped++
				continue
			}
			if _, err := tx.Catalog().FindProduct(ctx, line.ProductID); err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					skipped++
					continue
				}
				return err
			}
			cart.Merge(line.ProductID, line.Quantity)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.logger.InfoContext(ctx, "cart synced", "user_id", cmd.Identity.UserID, "lines", len(view.Items), "skipped", skipped)
	return view, nil
}

// edit applies change to the locked cart and saves it in one transaction.
func (h *CartCommandHandler) edit(
	ctx context.Context,
	identity domain.Identity,
	change func(ctx context.Context, tx ports.Tx, cart *domain.Cart) error,
) (*domain.CartView, error) {
	if !identity.IsRegistered() {
		return nil, domain.ErrUnauthorized
	}

	var view domain.CartView
	err := h.tx.InTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		cart, err := tx.Carts().Get(ctx, identity.UserID)
		if err != nil {
			return err
		}
		if err := change(ctx, tx, cart); err != nil {
			return err
		}
		cart.UpdatedAt = time.Now().UTC()
		if err := tx.Carts().Save(ctx, *cart); err != nil {
			return err
		}
		view, err = queries.PriceCart(ctx, tx, *cart)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}
