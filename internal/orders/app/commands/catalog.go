package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/shopspring/decimal"
)

type CreateProductCommand struct {
	Name         string
	Description  string
	Image        string
	Category     string
	Price        decimal.Decimal
	CountInStock int
	Featured     bool
	Identity     domain.Identity
}

// UpdateProductCommand changes catalog details. Nil fields are left as they are.
type UpdateProductCommand struct {
	ProductID   string
	Name        *string
	Description *string
	Image       *string
	Category    *string
	Price       *decimal.Decimal
	Featured    *bool
	Identity    domain.Identity
}

type SetStockCommand struct {
	ProductID    string
	CountInStock int
	Identity     domain.Identity
}

// CatalogCommandHandler serves the admin catalog operations.
type CatalogCommandHandler struct {
	tx     ports.TxManager
	logger *slog.Logger
}

func NewCatalogCommandHandler(tx ports.TxManager, logger *slog.Logger) *CatalogCommandHandler {
	return &CatalogCommandHandler{tx: tx, logger: logger}
}

func (h *CatalogCommandHandler) CreateProduct(ctx context.Context, cmd CreateProductCommand) (*domain.Product, error) {
	if err := requireAdmin(cmd.Identity); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	product := domain.Product{
		ID:           domain.NewID(),
		Name:         strings.TrimSpace(cmd.Name),
		Description:  strings.TrimSpace(cmd.Description),
		Image:        strings.TrimSpace(cmd.Image),
		Category:     strings.TrimSpace(cmd.Category),
		Price:        cmd.Price,
		CountInStock: cmd.CountInStock,
		Featured:     cmd.Featured,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := product.Validate(); err != nil {
		return nil, err
	}

	err := h.tx.InTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		return tx.Catalog().Create(ctx, product)
	})
	if err != nil {
		return nil, err
	}

	h.logger.InfoContext(ctx, "product created", "product_id", product.ID, "name", product.Name)
	return &product, nil
}

func (h *CatalogCommandHandler) UpdateProduct(ctx context.Context, cmd UpdateProductCommand) (*domain.Product, error) {
	if err := requireAdmin(cmd.Identity); err != nil {
		return nil, err
	}

	var product *domain.Product
	err := h.tx.InTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		var err error
		product, err = tx.Catalog().FindProduct(ctx, cmd.ProductID)
		if err != nil {
			return err
		}
		if cmd.Name != nil {
			product.Name = strings.TrimSpace(*cmd.Name)
		}
		if cmd.Description != nil {
			product.Description = strings.TrimSpace(*cmd.Description)
		}
		if cmd.Image != nil {
			product.Image = strings.TrimSpace(*cmd.Image)
		}
		if cmd.Category != nil {
			product.Category = strings.TrimSpace(*cmd.Category)
		}
		if cmd.Price != nil {
			product.Price = *cmd.Price
		}
		if cmd.Featured != nil {
			product.Featured = *cmd.Featured
		}
		if err := product.Validate(); err != nil {
			return err
		}
		product.UpdatedAt = time.Now().UTC()
		return tx.Catalog().Update(ctx, *product)
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

// SetStock overwrites the stock counter, used for restocking and stocktakes.
func (h *CatalogCommandHandler) SetStock(ctx context.Context, cmd SetStockCommand) (*domain.Product, error) {
	if err := requireAdmin(cmd.Identity); err != nil {
		return nil, err
	}
	if cmd.CountInStock < 0 {
		return nil, domain.NewValidationError("count_in_stock cannot be negative", map[string]string{
			"count_in_stock": "must be zero or more",
		})
	}

	var product *domain.Product
	err := h.tx.InTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		if err := tx.Catalog().SetStock(ctx, cmd.ProductID, cmd.CountInStock); err != nil {
			return err
		}
		var err error
		product, err = tx.Catalog().FindProduct(ctx, cmd.ProductID)
		return err
	})
	if err != nil {
		return nil, err
	}

	h.logger.InfoContext(ctx, "stock updated", "product_id", product.ID, "count_in_stock", product.CountInStock)
	return product, nil
}
