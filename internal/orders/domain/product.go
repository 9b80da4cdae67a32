package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultLowStockThreshold marks products that need restocking.
const DefaultLowStockThreshold = 5

// Product is a catalog entry with a live stock counter.
type Product struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Image        string          `json:"image,omitempty"`
	Category     string          `json:"category,omitempty"`
	Price        decimal.Decimal `json:"price"`
	CountInStock int             `json:"count_in_stock"`
	Featured     bool            `json:"featured"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Validate ensures the product adheres to catalog constraints.
func (p Product) Validate() error {
	fields := map[string]string{}
	if strings.TrimSpace(p.Name) == "" {
		fields["name"] = "name is required"
	}
	if !p.Price.IsPositive() {
		fields["price"] = "price must be positive"
	}
	if p.CountInStock < 0 {
		fields["count_in_stock"] = "count_in_stock cannot be negative"
	}
	if len(fields) > 0 {
		return NewValidationError("invalid product", fields)
	}
	return nil
}

func (p Product) HasStock(quantity int) bool {
	return quantity <= p.CountInStock
}

func (p Product) IsLowStock(threshold int) bool {
	return p.CountInStock < threshold
}
