package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

type catalog struct {
	state *state
}

func (c *catalog) Create(_ context.Context, product domain.Product) error {
	if _, ok := c.state.products[product.ID]; ok {
		return domain.ErrConflict
	}
	c.state.products[product.ID] = product
	return nil
}

func (c *catalog) FindProduct(_ context.Context, id string) (*domain.Product, error) {
	product, ok := c.state.products[id]
	if !ok {
		return nil, domain.NotFound("product", id)
	}
	return &product, nil
}

func (c *catalog) List(_ context.Context, filter ports.ProductFilter) ([]domain.Product, error) {
	offset := filter.Normalize()
	search := strings.ToLower(strings.TrimSpace(filter.Search))

	var result []domain.Product
	for _, product := range c.state.products {
		if filter.Category != "" && product.Category != filter.Category {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(product.Name), search) &&
			!strings.Contains(strings.ToLower(product.Description), search) {
			continue
		}
		if filter.MinPrice != nil && product.Price.LessThan(*filter.MinPrice) {
			continue
		}
		if filter.MaxPrice != nil && product.Price.GreaterThan(*filter.MaxPrice) {
			continue
		}
		if filter.FeaturedOnly && !product.Featured {
			continue
		}
		if filter.LowStockBelow > 0 && !product.IsLowStock(filter.LowStockBelow) {
			continue
		}
		result = append(result, product)
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		switch filter.Sort {
		case ports.SortNewest:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
		case ports.SortPriceAsc:
			if !a.Price.Equal(b.Price) {
				return a.Price.LessThan(b.Price)
			}
		case ports.SortPriceDesc:
			if !a.Price.Equal(b.Price) {
				return a.Price.GreaterThan(b.Price)
			}
		case ports.SortStockLowest:
			if a.CountInStock != b.CountInStock {
				return a.CountInStock < b.CountInStock
			}
		}
		if a.Name == b.Name {
			return a.ID < b.ID
		}
		return a.Name < b.Name
	})

	return paginate(result, offset, filter.PageSize), nil
}

func (c *catalog) DecrementStock(_ context.Context, id string, qty int) error {
	product, ok := c.state.products[id]
	if !ok {
		return domain.NotFound("product", id)
	}
	if product.CountInStock < qty {
		return &domain.InsufficientStockError{
			ProductID:   id,
			ProductName: product.Name,
			Available:   product.CountInStock,
			Requested:   qty,
		}
	}
	product.CountInStock -= qty
	product.UpdatedAt = time.Now().UTC()
	c.state.products[id] = product
	return nil
}

func (c *catalog) RestoreStock(_ context.Context, id string, qty int) error {
	product, ok := c.state.products[id]
	if !ok {
		return domain.NotFound("product", id)
	}
	product.CountInStock += qty
	product.UpdatedAt = time.Now().UTC()
	c.state.products[id] = product
	return nil
}

func (c *catalog) SetStock(_ context.Context, id string, count int) error {
	product, ok := c.state.products[id]
	if !ok {
		return domain.NotFound("product", id)
	}
	product.CountInStock = count
	product.UpdatedAt = time.Now().UTC()
	c.state.products[id] = product
	return nil
}

func (c *catalog) Update(_ context.Context, product domain.Product) error {
	existing, ok := c.state.products[product.ID]
	if !ok {
		return domain.NotFound("product", product.ID)
	}
	product.CountInStock = existing.CountInStock
	product.CreatedAt = existing.CreatedAt
	c.state.products[product.ID] = product
	return nil
}

func paginate[T any](items []T, offset, size int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + size
	if end > len(items) {
		end = len(items)
	}
	page := make([]T, end-offset)
	copy(page, items[offset:end])
	return page
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
