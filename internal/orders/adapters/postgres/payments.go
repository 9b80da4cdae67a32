package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dejobratic/storefront/internal/database"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const paymentColumns = `
	id, order_id, payment_type, user_id, guest_id, guest_info, gateway_order_id, gateway_payment_id,
	gateway_signature, amount::text, currency, status, method, receipt, notes, refunds,
	paid_at, created_at, updated_at`

type paymentRepository struct {
	q    querier
	lock bool
}

func (r *paymentRepository) Create(ctx context.Context, p domain.Payment) error {
	doc, err := encodePayment(p)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO payments (
			id, order_id, payment_type, user_id, guest_id, guest_info, gateway_order_id, gateway_payment_id,
			gateway_signature, amount, currency, status, method, receipt, notes, refunds,
			paid_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::numeric, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`

	_, err = r.q.Exec(ctx, query,
		p.ID, p.OrderID, p.PaymentType, nullable(p.UserID), nullable(p.GuestID), doc.guestInfo,
		nullable(p.GatewayOrderID), nullable(p.GatewayPaymentID), p.GatewaySignature, p.Amount.String(), p.Currency,
		p.Status, p.Method, p.Receipt, doc.notes, doc.refunds, p.PaidAt, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r *paymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	return r.getBy(ctx, "id", id)
}

func (r *paymentRepository) GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*domain.Payment, error) {
	return r.getBy(ctx, "gateway_order_id", gatewayOrderID)
}

func (r *paymentRepository) getBy(ctx context.Context, column, value string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE ` + column + ` = $1` + forUpdate(r.lock)

	payment, err := scanPayment(r.q.QueryRow(ctx, query, value))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound("payment", value)
		}
		return nil, fmt.Errorf("select payment: %w", err)
	}
	return payment, nil
}

func (r *paymentRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE order_id = $1 ORDER BY created_at` + forUpdate(r.lock)

	rows, err := r.q.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("query payments: %w", err)
	}
	defer rows.Close()

	payments := []domain.Payment{}
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, *payment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payments: %w", err)
	}
	return payments, nil
}

func (r *paymentRepository) Update(ctx context.Context, p domain.Payment) error {
	doc, err := encodePayment(p)
	if err != nil {
		return err
	}

	query := `
		UPDATE payments
		SET payment_type = $2, user_id = $3, guest_id = $4, guest_info = $5, gateway_payment_id = $6,
		    gateway_signature = $7, status = $8, method = $9, notes = $10, refunds = $11, paid_at = $12,
		    updated_at = $13, gateway_order_id = $14
		WHERE id = $1
	`

	tag, err := r.q.Exec(ctx, query,
		p.ID, p.PaymentType, nullable(p.UserID), nullable(p.GuestID), doc.guestInfo, nullable(p.GatewayPaymentID),
		p.GatewaySignature, p.Status, p.Method, doc.notes, doc.refunds, p.PaidAt, p.UpdatedAt,
		nullable(p.GatewayOrderID),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("update payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("payment", p.ID)
	}
	return nil
}

func (r *paymentRepository) ReassignGuestPayments(ctx context.Context, guestID, userID string) (int, error) {
	query := `
		UPDATE payments
		SET user_id = $2, guest_id = NULL, payment_type = $3, updated_at = NOW()
		WHERE guest_id = $1
	`

	tag, err := r.q.Exec(ctx, query, guestID, userID, domain.OrderTypeRegistered)
	if err != nil {
		return 0, fmt.Errorf("reassign guest payments: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

type paymentDocument struct {
	guestInfo []byte
	notes     []byte
	refunds   []byte
}

func encodePayment(p domain.Payment) (paymentDocument, error) {
	var (
		doc paymentDocument
		err error
	)
	if p.GuestInfo != nil {
		if doc.guestInfo, err = json.Marshal(p.GuestInfo); err != nil {
			return doc, fmt.Errorf("encode guest info: %w", err)
		}
	}

	notes := p.Notes
	if notes == nil {
		notes = map[string]string{}
	}
	if doc.notes, err = json.Marshal(notes); err != nil {
		return doc, fmt.Errorf("encode notes: %w", err)
	}

	refunds := p.Refunds
	if refunds == nil {
		refunds = []domain.Refund{}
	}
	if doc.refunds, err = json.Marshal(refunds); err != nil {
		return doc, fmt.Errorf("encode refunds: %w", err)
	}
	return doc, nil
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var (
		p                                                 domain.Payment
		userID, guestID, gatewayOrderID, gatewayPaymentID *string
		guestInfo, notes, refunds                         []byte
		amount                                            string
	)
	err := row.Scan(
		&p.ID, &p.OrderID, &p.PaymentType, &userID, &guestID, &guestInfo, &gatewayOrderID, &gatewayPaymentID,
		&p.GatewaySignature, &amount, &p.Currency, &p.Status, &p.Method, &p.Receipt, &notes, &refunds,
		&p.PaidAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.UserID = derefString(userID)
	p.GuestID = derefString(guestID)
	p.GatewayOrderID = derefString(gatewayOrderID)
	p.GatewayPaymentID = derefString(gatewayPaymentID)
	if p.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}
	if len(guestInfo) > 0 {
		p.GuestInfo = &domain.GuestContact{}
		if err := json.Unmarshal(guestInfo, p.GuestInfo); err != nil {
			return nil, fmt.Errorf("decode guest info: %w", err)
		}
	}
	if err := json.Unmarshal(notes, &p.Notes); err != nil {
		return nil, fmt.Errorf("decode notes: %w", err)
	}
	if err := json.Unmarshal(refunds, &p.Refunds); err != nil {
		return nil, fmt.Errorf("decode refunds: %w", err)
	}
	return &p, nil
}
