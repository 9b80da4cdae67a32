package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dejobratic/storefront/internal/database"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const productColumns = `id, name, description, image, category, price::text, count_in_stock, featured, created_at, updated_at`

// productOrder maps each sort onto a fixed ORDER BY clause.
var productOrder = map[ports.ProductSort]string{
	ports.SortByName:      "name, id",
	ports.SortNewest:      "created_at DESC, id",
	ports.SortPriceAsc:    "price, name, id",
	ports.SortPriceDesc:   "price DESC, name, id",
	ports.SortStockLowest: "count_in_stock, name, id",
}

type catalog struct {
	q    querier
	lock bool
}

func (c *catalog) Create(ctx context.Context, p domain.Product) error {
	query := `
		INSERT INTO products (id, name, description, image, category, price, count_in_stock, featured, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9, $10)
	`

	_, err := c.q.Exec(ctx, query,
		p.ID, p.Name, p.Description, p.Image, p.Category, p.Price.String(), p.CountInStock, p.Featured, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (c *catalog) FindProduct(ctx context.Context, id string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1` + forUpdate(c.lock)

	product, err := scanProduct(c.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound("product", id)
		}
		return nil, fmt.Errorf("select product: %w", err)
	}
	return product, nil
}

func (c *catalog) List(ctx context.Context, filter ports.ProductFilter) ([]domain.Product, error) {
	offset := filter.Normalize()

	order, ok := productOrder[filter.Sort]
	if !ok {
		order = productOrder[ports.SortByName]
	}

	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE ($1::text = '' OR category = $1::text)
		  AND ($2::int <= 0 OR count_in_stock < $2::int)
		  AND ($5::text = '' OR name ILIKE $5::text OR description ILIKE $5::text)
		  AND ($6::numeric IS NULL OR price >= $6::numeric)
		  AND ($7::numeric IS NULL OR price <= $7::numeric)
		  AND (NOT $8::bool OR featured)
		ORDER BY ` + order + `
		LIMIT $3 OFFSET $4
	`

	rows, err := c.q.Query(ctx, query,
		filter.Category, filter.LowStockBelow, filter.PageSize, offset,
		containsPattern(filter.Search), decimalArg(filter.MinPrice), decimalArg(filter.MaxPrice), filter.FeaturedOnly,
	)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	products := []domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

// DecrementStock is a conditional update, so concurrent buyers can never
// drive the counter below zero.
func (c *catalog) DecrementStock(ctx context.Context, id string, qty int) error {
	query := `
		UPDATE products
		SET count_in_stock = count_in_stock - $2, updated_at = NOW()
		WHERE id = $1 AND count_in_stock >= $2
	`

	tag, err := c.q.Exec(ctx, query, id, qty)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var (
		name      string
		available int
	)
	err = c.q.QueryRow(ctx, `SELECT name, count_in_stock FROM products WHERE id = $1`, id).Scan(&name, &available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.NotFound("product", id)
		}
		return fmt.Errorf("select stock: %w", err)
	}
	return &domain.InsufficientStockError{ProductID: id, ProductName: name, Available: available, Requested: qty}
}

func (c *catalog) RestoreStock(ctx context.Context, id string, qty int) error {
	return c.exec(ctx, id, `UPDATE products SET count_in_stock = count_in_stock + $2, updated_at = NOW() WHERE id = $1`, qty)
}

func (c *catalog) SetStock(ctx context.Context, id string, count int) error {
	return c.exec(ctx, id, `UPDATE products SET count_in_stock = $2, updated_at = NOW() WHERE id = $1`, count)
}

func (c *catalog) Update(ctx context.Context, p domain.Product) error {
	query := `
		UPDATE products
		SET name = $2, description = $3, image = $4, category = $5, price = $6::numeric, featured = $7, updated_at = $8
		WHERE id = $1
	`

	tag, err := c.q.Exec(ctx, query, p.ID, p.Name, p.Description, p.Image, p.Category, p.Price.String(), p.Featured, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("product", p.ID)
	}
	return nil
}

func (c *catalog) exec(ctx context.Context, id, query string, n int) error {
	tag, err := c.q.Exec(ctx, query, id, n)
	if err != nil {
		return fmt.Errorf("update stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("product", id)
	}
	return nil
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var (
		p     domain.Product
		price string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Image, &p.Category, &price, &p.CountInStock, &p.Featured, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("parse price: %w", err)
	}
	return &p, nil
}

// containsPattern builds an ILIKE pattern matching s anywhere, with the
// pattern metacharacters in s escaped.
func containsPattern(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return "%" + likeEscaper.Replace(s) + "%"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func decimalArg(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}
