package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dejobratic/storefront/internal/database"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const orderColumns = `
	id, order_number, uuid, order_type, user_id, guest_id, guest_info, items, shipping_address,
	total_price::text, status, payment_status, payment_method, payment_id, stock_committed,
	paid_at, delivered_at, created_at, updated_at`

type orderRepository struct {
	q    querier
	lock bool
}

func (r *orderRepository) Create(ctx context.Context, o domain.Order) error {
	doc, err := encodeOrder(o)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO orders (
			id, order_number, uuid, order_type, user_id, guest_id, guest_info, items, shipping_address,
			total_price, status, payment_status, payment_method, payment_id, stock_committed,
			paid_at, delivered_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::numeric, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`

	_, err = r.q.Exec(ctx, query,
		o.ID, o.OrderNumber, o.UUID, o.OrderType, nullable(o.UserID), nullable(o.GuestID),
		doc.guestInfo, doc.items, doc.shipping, o.TotalPrice.String(), o.Status, o.PaymentStatus,
		o.PaymentMethod, o.PaymentID, o.StockCommitted, o.PaidAt, o.DeliveredAt, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			if database.ConstraintName(err) == "orders_pkey" {
				return domain.ErrConflict
			}
			return domain.ErrDuplicateOrderNumber
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *orderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.getBy(ctx, "id", id)
}

func (r *orderRepository) GetByNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	return r.getBy(ctx, "order_number", orderNumber)
}

func (r *orderRepository) GetByUUID(ctx context.Context, uuid string) (*domain.Order, error) {
	return r.getBy(ctx, "uuid", uuid)
}

func (r *orderRepository) getBy(ctx context.Context, column, value string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE ` + column + ` = $1` + forUpdate(r.lock)

	order, err := scanOrder(r.q.QueryRow(ctx, query, value))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound("order", value)
		}
		return nil, fmt.Errorf("select order: %w", err)
	}
	return order, nil
}

func (r *orderRepository) List(ctx context.Context, filter ports.ListFilter) ([]domain.Order, error) {
	offset := filter.Normalize()

	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE ($1::text IS NULL OR status = $1)
		  AND ($2::text IS NULL OR order_type = $2)
		  AND ($3::text = '' OR user_id = $3)
		  AND ($4::text = '' OR guest_id = $4)
		ORDER BY created_at DESC, id
		LIMIT $5 OFFSET $6
	`

	var status, orderType *string
	if filter.Status != nil {
		s := string(*filter.Status)
		status = &s
	}
	if filter.OrderType != nil {
		t := string(*filter.OrderType)
		orderType = &t
	}

	rows, err := r.q.Query(ctx, query, status, orderType, filter.UserID, filter.GuestID, filter.PageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := []domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, nil
}

func (r *orderRepository) Update(ctx context.Context, o domain.Order) error {
	doc, err := encodeOrder(o)
	if err != nil {
		return err
	}

	query := `
		UPDATE orders
		SET order_type = $2, user_id = $3, guest_id = $4, guest_info = $5, status = $6, payment_status = $7,
		    payment_method = $8, payment_id = $9, stock_committed = $10, paid_at = $11, delivered_at = $12,
		    updated_at = $13
		WHERE id = $1
	`

	tag, err := r.q.Exec(ctx, query,
		o.ID, o.OrderType, nullable(o.UserID), nullable(o.GuestID), doc.guestInfo, o.Status, o.PaymentStatus,
		o.PaymentMethod, o.PaymentID, o.StockCommitted, o.PaidAt, o.DeliveredAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("order", o.ID)
	}
	return nil
}

func (r *orderRepository) ReassignGuestOrders(ctx context.Context, guestID, userID string) (int, error) {
	query := `
		UPDATE orders
		SET user_id = $2, guest_id = NULL, order_type = $3, updated_at = NOW()
		WHERE guest_id = $1
	`

	tag, err := r.q.Exec(ctx, query, guestID, userID, domain.OrderTypeRegistered)
	if err != nil {
		return 0, fmt.Errorf("reassign guest orders: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

type orderDocument struct {
	guestInfo []byte
	items     []byte
	shipping  []byte
}

func encodeOrder(o domain.Order) (orderDocument, error) {
	var (
		doc orderDocument
		err error
	)
	if o.GuestInfo != nil {
		if doc.guestInfo, err = json.Marshal(o.GuestInfo); err != nil {
			return doc, fmt.Errorf("encode guest info: %w", err)
		}
	}
	if doc.items, err = json.Marshal(o.Items); err != nil {
		return doc, fmt.Errorf("encode items: %w", err)
	}
	if o.ShippingAddress != nil {
		if doc.shipping, err = json.Marshal(o.ShippingAddress); err != nil {
			return doc, fmt.Errorf("encode shipping address: %w", err)
		}
	}
	return doc, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o                          domain.Order
		userID, guestID            *string
		guestInfo, items, shipping []byte
		total                      string
	)
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.UUID, &o.OrderType, &userID, &guestID, &guestInfo, &items, &shipping,
		&total, &o.Status, &o.PaymentStatus, &o.PaymentMethod, &o.PaymentID, &o.StockCommitted,
		&o.PaidAt, &o.DeliveredAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	o.UserID = derefString(userID)
	o.GuestID = derefString(guestID)
	if o.TotalPrice, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("parse total price: %w", err)
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	if len(guestInfo) > 0 {
		o.GuestInfo = &domain.GuestContact{}
		if err := json.Unmarshal(guestInfo, o.GuestInfo); err != nil {
			return nil, fmt.Errorf("decode guest info: %w", err)
		}
	}
	if len(shipping) > 0 {
		o.ShippingAddress = &domain.ShippingAddress{}
		if err := json.Unmarshal(shipping, o.ShippingAddress); err != nil {
			return nil, fmt.Errorf("decode shipping address: %w", err)
		}
	}
	return &o, nil
}
