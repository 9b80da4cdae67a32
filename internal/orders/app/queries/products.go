package queries

import (
	"context"
	"strings"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/shopspring/decimal"
)

const (
	defaultShowcaseLimit = 8
	maxShowcaseLimit     = 50
)

type ListProductsQuery struct {
	Category string
	Search   string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Featured bool
	Sort     ports.ProductSort
	Page     int
	PageSize int
}

func (q ListProductsQuery) Validate() error {
	fields := map[string]string{}
	if q.MinPrice != nil && q.MinPrice.IsNegative() {
		fields["min_price"] = "must be zero or more"
	}
	if q.MaxPrice != nil && q.MaxPrice.IsNegative() {
		fields["max_price"] = "must be zero or more"
	}
	if q.MinPrice != nil && q.MaxPrice != nil && q.MinPrice.GreaterThan(*q.MaxPrice) {
		fields["min_price"] = "must not exceed max_price"
	}
	if len(fields) > 0 {
		return domain.NewValidationError("invalid price range", fields)
	}
	return nil
}

// SearchProductsQuery matches Query against product names and descriptions.
type SearchProductsQuery struct {
	Query    string
	Page     int
	PageSize int
}

// LowStockQuery lists products under Threshold units. Admin only.
type LowStockQuery struct {
	Threshold int
	Identity  domain.Identity
}

// CatalogQueryHandler serves product reads.
type CatalogQueryHandler struct {
	tx ports.TxManager
}

func NewCatalogQueryHandler(tx ports.TxManager) *CatalogQueryHandler {
	return &CatalogQueryHandler{tx: tx}
}

func (h *CatalogQueryHandler) ListProducts(ctx context.Context, query ListProductsQuery) ([]domain.Product, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	return h.list(ctx, ports.ProductFilter{
		Category:     query.Category,
		Search:       query.Search,
		MinPrice:     query.MinPrice,
		MaxPrice:     query.MaxPrice,
		FeaturedOnly: query.Featured,
		Sort:         query.Sort,
		Page:         query.Page,
		PageSize:     query.PageSize,
	})
}

func (h *CatalogQueryHandler) SearchProducts(ctx context.Context, query SearchProductsQuery) ([]domain.Product, error) {
	term := strings.TrimSpace(query.Query)
	if term == "" {
		return nil, domain.NewValidationError("search query is required", map[string]string{"q": "required"})
	}
	return h.list(ctx, ports.ProductFilter{Search: term, Page: query.Page, PageSize: query.PageSize})
}

// FeaturedProducts lists up to limit featured products, newest first.
func (h *CatalogQueryHandler) FeaturedProducts(ctx context.Context, limit int) ([]domain.Product, error) {
	return h.list(ctx, ports.ProductFilter{FeaturedOnly: true, Sort: ports.SortNewest, PageSize: showcaseLimit(limit)})
}

// NewArrivals lists the limit most recently added products.
func (h *CatalogQueryHandler) NewArrivals(ctx context.Context, limit int) ([]domain.Product, error) {
	return h.list(ctx, ports.ProductFilter{Sort: ports.SortNewest, PageSize: showcaseLimit(limit)})
}

func (h *CatalogQueryHandler) list(ctx context.Context, filter ports.ProductFilter) ([]domain.Product, error) {
	var products []domain.Product
	err := h.tx.View(ctx, func(ctx context.Context, tx ports.Tx) error {
		var err error
		products, err = tx.Catalog().List(ctx, filter)
		return err
	})
	return products, err
}

func showcaseLimit(limit int) int {
	if limit <= 0 {
		return defaultShowcaseLimit
	}
	return min(limit, maxShowcaseLimit)
}

func (h *CatalogQueryHandler) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var product *domain.Product
	err := h.tx.View(ctx, func(ctx context.Context, tx ports.Tx) error {
		var err error
		product, err = tx.Catalog().FindProduct(ctx, id)
		return err
	})
	return product, err
}

func (h *CatalogQueryHandler) LowStock(ctx context.Context, query LowStockQuery) ([]domain.Product, error) {
	if !query.Identity.IsAdmin() {
		return nil, domain.ErrUnauthorized
	}
	threshold := query.Threshold
	if threshold <= 0 {
		threshold = domain.DefaultLowStockThreshold
	}

	var products []domain.Product
	err := h.tx.View(ctx, func(ctx context.Context, tx ports.Tx) error {
		var err error
		products, err = tx.Catalog().List(ctx, ports.ProductFilter{LowStockBelow: threshold, PageSize: 100})
		return err
	})
	return products, err
}
