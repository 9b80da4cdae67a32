package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dejobratic/storefront/internal/orders/app/queries"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

// pendingPaymentTTL bounds how long a reservation blocks new attempts when
// the process that made it never finished.
const pendingPaymentTTL = 2 * time.Minute

// CreatePaymentOrderCommand opens a gateway order for a processing order.
type CreatePaymentOrderCommand struct {
	OrderRef string
	Identity domain.Identity
	Notes    map[string]string
}

func (c CreatePaymentOrderCommand) Validate() error {
	if _, err := domain.ParseOrderRef(c.OrderRef); err != nil {
		return err
	}
	return validateIdentity(c.Identity, false)
}

// PaymentOrderResult carries what a client needs to open the checkout widget.
type PaymentOrderResult struct {
	Payment      *domain.Payment
	Order        *domain.Order
	GatewayKeyID string
	Reused       bool
}

type CreatePaymentOrderCommandHandler struct {
	tx       ports.TxManager
	gateway  ports.PaymentGateway
	logger   *slog.Logger
	keyID    string
	currency domain.Currency
}

func NewCreatePaymentOrderCommandHandler(
	tx ports.TxManager,
	gateway ports.PaymentGateway,
	logger *slog.Logger,
	keyID string,
	currency domain.Currency,
) *CreatePaymentOrderCommandHandler {
	if !currency.Valid() {
		currency = domain.CurrencyINR
	}
	return &CreatePaymentOrderCommandHandler{
		tx:       tx,
		gateway:  gateway,
		logger:   logger,
		keyID:    keyID,
		currency: currency,
	}
}

func (h *CreatePaymentOrderCommandHandler) Handle(ctx context.Context, cmd CreatePaymentOrderCommand) (*PaymentOrderResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	ref, _ := domain.ParseOrderRef(cmd.OrderRef)

	payment, order, reused, err := h.reserve(ctx, ref, cmd)
	if err != nil {
		return nil, err
	}
	if reused {
		return &PaymentOrderResult{Payment: payment, Order: order, GatewayKeyID: h.keyID, Reused: true}, nil
	}

	amountMinor := domain.ToMinorUnits(payment.Amount)
	remote, err := h.gateway.CreateOrder(ctx, ports.RemoteOrderRequest{
		AmountMinor: amountMinor,
		Currency:    payment.Currency,
		Receipt:     payment.Receipt,
		Notes:       payment.Notes,
	})
	if err == nil && remote.AmountMinor != amountMinor {
		err = &domain.GatewayError{Op: "create order", Message: "gateway amount does not match order total"}
	}
	if err != nil {
		h.abandon(ctx, payment.ID, "gateway_order_failed")
		return nil, err
	}

	err = h.tx.InTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		current, err := tx.Payments().GetByID(ctx, payment.ID)
		if err != nil {
			return err
		}
		if current.Status != domain.PaymentPending {
			return fmt.Errorf("%w: payment reservation %s is %s", domain.ErrConflict, current.ID, current.Status)
		}
		current.GatewayOrderID = remote.ID
		current.Status = domain.PaymentCreated
		current.UpdatedAt = time.Now().UTC()
		if err := current.Validate(); err != nil {
			return err
		}
		if err := tx.Payments().Update(ctx, *current); err != nil {
			return err
		}
		payment = current
		return nil
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "gateway order opened but not recorded",
			"payment_id", payment.ID,
			"gateway_order_id", remote.ID,
			"error", err,
		)
		return nil, err
	}

	h.logger.InfoContext(ctx, "payment order created",
		"order_id", order.ID,
		"payment_id", payment.ID,
		"gateway_order_id", payment.GatewayOrderID,
	)

	return &PaymentOrderResult{Payment: payment, Order: order, GatewayKeyID: h.keyID}, nil
}

// reserve locks the order and either returns the open payment to reuse or
// records a pending payment that holds the order while the gateway is called.
func (h *CreatePaymentOrderCommandHandler) reserve(ctx context.Context, ref domain.OrderRef, cmd CreatePaymentOrderCommand) (*domain.Payment, *domain.Order, bool, error) {
	var (
		payment *domain.Payment
		order   *domain.Order
		reused  bool
	)
	err := h.tx.InTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		current, err := queries.FindOrder(ctx, tx.Orders(), ref)
		if err != nil {
			return err
		}
		if !current.AccessibleBy(cmd.Identity) {
			return domain.ErrUnauthorized
		}
		order = current

		open, err := payableState(ctx, tx.Payments(), *current)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if open != nil {
			if open.Status != domain.PaymentPending {
				payment, reused = open, true
				return nil
			}
			if now.Sub(open.CreatedAt) < pendingPaymentTTL {
				return fmt.Errorf("%w: payment order for %s is already being created", domain.ErrConflict, current.OrderNumber)
			}
			open.Status = domain.PaymentFailed
			open.Notes = withNote(open.Notes, "failure_reason", "reservation_expired")
			open.UpdatedAt = now
			if err := tx.Payments().Update(ctx, *open); err != nil {
				return err
			}
		}

		payment = h.newPayment(*current, cmd.Notes, now)
		if err := payment.Validate(); err != nil {
			return err
		}
		if err := tx.Payments().Create(ctx, *payment); err != nil {
			return err
		}
		current.PaymentID = payment.ID
		current.UpdatedAt = now
		return tx.Orders().Update(ctx, *current)
	})
	if err != nil {
		return nil, nil, false, err
	}
	return payment, order, reused, nil
}

func (h *CreatePaymentOrderCommandHandler) newPayment(order domain.Order, extra map[string]string, now time.Time) *domain.Payment {
	notes := map[string]string{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"order_type":   string(order.OrderType),
	}
	for k, v := range extra {
		notes[k] = v
	}

	payment := &domain.Payment{
		ID:          domain.NewID(),
		OrderID:     order.ID,
		PaymentType: order.OrderType,
		UserID:      order.UserID,
		GuestID:     order.GuestID,
		GuestInfo:   order.GuestInfo,
		Amount:      order.TotalPrice,
		Currency:    h.currency,
		Status:      domain.PaymentPending,
		Receipt:     domain.NewReceipt(order.ID, now),
		Notes:       notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if m, ok := domain.ParsePaymentMethod(order.PaymentMethod); ok {
		payment.Method = m
	}
	return payment
}

// abandon marks a reservation failed so the order can be paid again.
func (h *CreatePaymentOrderCommandHandler) abandon(ctx context.Context, paymentID, reason string) {
	ctx = context.WithoutCancel(ctx)
	err := h.tx.InTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		current, err := tx.Payments().GetByID(ctx, paymentID)
		if err != nil {
			return err
		}
		if current.Status != domain.PaymentPending {
			return nil
		}
		current.Status = domain.PaymentFailed
		current.Notes = withNote(current.Notes, "failure_reason", reason)
		current.UpdatedAt = time.Now().UTC()
		return tx.Payments().Update(ctx, *current)
	})
	if err != nil {
		h.logger.WarnContext(ctx, "could not release payment reservation", "payment_id", paymentID, "error", err)
	}
}

// payableState checks that the order can accept a payment and returns the
// open payment for it, if any. A pending payment is a reservation in flight.
func payableState(ctx context.Context, payments ports.PaymentRepository, order domain.Order) (*domain.Payment, error) {
	if order.PaymentStatus == domain.BillingPaid {
		return nil, domain.ErrAlreadyPaid
	}
	if order.Status != domain.StatusProcessing {
		return nil, &domain.TransitionError{From: order.Status, To: domain.StatusPaid}
	}

	existing, err := payments.ListByOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	var open *domain.Payment
	for i := range existing {
		switch existing[i].Status {
		case domain.PaymentPaid:
			return nil, domain.ErrAlreadyPaid
		case domain.PaymentPending, domain.PaymentCreated, domain.PaymentAttempted:
			if open == nil && existing[i].Amount.Equal(order.TotalPrice) {
				open = &existing[i]
			}
		}
	}
	return open, nil
}

func withNote(notes map[string]string, key, value string) map[string]string {
	if notes == nil {
		notes = map[string]string{}
	}
	notes[key] = value
	return notes
}
