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

// CreateRefundCommand refunds all or part of a captured payment. A nil
// Amount refunds whatever is still refundable.
type CreateRefundCommand struct {
	PaymentID string
	Amount    *decimal.Decimal
	Reason    string
	Identity  domain.Identity
}

func (c CreateRefundCommand) Validate() error {
	if err := requireAdmin(c.Identity); err != nil {
		return err
	}
	if strings.TrimSpace(c.PaymentID) == "" {
		return domain.NewValidationError("payment id is required", map[string]string{"payment_id": "required"})
	}
	if c.Amount != nil && !c.Amount.IsPositive() {
		return domain.NewValidationError("refund amount must be positive", map[string]string{"amount": "must be positive"})
	}
	return nil
}

type RefundResult struct {
	Payment *domain.Payment
	Order   *domain.Order
	Refund  domain.Refund
	Full    bool
}

type CreateRefundCommandHandler struct {
	tx      ports.TxManager
	gateway ports.PaymentGateway
	events  ports.EventBus
	logger  *slog.Logger
}

func NewCreateRefundCommandHandler(
	tx ports.TxManager,
	gateway ports.PaymentGateway,
	events ports.EventBus,
	logger *slog.Logger,
) *CreateRefundCommandHandler {
	return &CreateRefundCommandHandler{
		tx:      tx,
		gateway: gateway,
		events:  events,
		logger:  logger,
	}
}

func (h *CreateRefundCommandHandler) Handle(ctx context.Context, cmd CreateRefundCommand) (*RefundResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	payment, refund, err := h.reserve(ctx, cmd)
	if err != nil {
		return nil, err
	}

	notes := map[string]string{"payment_id": payment.ID, "order_id": payment.OrderID, "refund_id": refund.ID}
	if refund.Reason != "" {
		notes["reason"] = refund.Reason
	}

	remote, err := h.gateway.CreateRefund(ctx, payment.GatewayPaymentID, domain.ToMinorUnits(refund.Amount), notes)
	if err != nil {
		h.release(ctx, payment.ID, refund.ID)
		return nil, err
	}

	result := &RefundResult{}
	err = h.tx.InTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		current, err := tx.Payments().GetByID(ctx, payment.ID)
		if err != nil {
			return err
		}
		i := current.RefundIndex(refund.ID)
		if i < 0 {
			return domain.NotFound("refund", refund.ID)
		}

		now := time.Now().UTC()
		current.Refunds[i].GatewayRefundID = remote.ID
		current.Refunds[i].Status = settledStatus(remote.Status)
		current.UpdatedAt = now
		result.Refund = current.Refunds[i]

		order, err := tx.Orders().GetByID(ctx, current.OrderID)
		if err != nil {
			return err
		}

		if current.FullyRefunded() {
			result.Full = true
			current.Status = domain.PaymentRefunded
			order.PaymentStatus = domain.BillingRefunded
			order.UpdatedAt = now
			if order.CanTransitionTo(domain.StatusRefunded) {
				if err := order.TransitionTo(domain.StatusRefunded, now); err != nil {
					return err
				}
			}
			if err := tx.Orders().Update(ctx, *order); err != nil {
				return err
			}
		}

		if err := tx.Payments().Update(ctx, *current); err != nil {
			return err
		}
		result.Payment = current
		result.Order = order
		return nil
	})
	if err != nil {
		// The reservation stays in place so the amount cannot be refunded twice.
		h.logger.ErrorContext(ctx, "refund issued at gateway but not recorded",
			"payment_id", payment.ID,
			"refund_id", refund.ID,
			"gateway_refund_id", remote.ID,
			"error", err,
		)
		return nil, err
	}

	h.logger.InfoContext(ctx, "refund recorded",
		"payment_id", payment.ID,
		"amount", refund.Amount.String(),
		"full", result.Full,
	)
	publish(ctx, h.logger, "payment.refunded", func(ctx context.Context) error {
		return h.events.PublishPaymentRefunded(ctx, *result.Payment, result.Refund)
	})

	return result, nil
}

// reserve locks the payment and records the refund before the gateway is
// called, so concurrent refunds see each other's amounts.
func (h *CreateRefundCommandHandler) reserve(ctx context.Context, cmd CreateRefundCommand) (*domain.Payment, domain.Refund, error) {
	var (
		payment *domain.Payment
		refund  domain.Refund
	)
	err := h.tx.InTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		current, err := tx.Payments().GetByID(ctx, cmd.PaymentID)
		if err != nil {
			return err
		}
		amount, err := refundAmount(*current, cmd.Amount)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		refund = domain.Refund{
			ID:        domain.NewID(),
			Amount:    amount,
			Status:    domain.RefundReserved,
			Reason:    strings.TrimSpace(cmd.Reason),
			CreatedAt: now,
		}
		current.Refunds = append(current.Refunds, refund)
		current.UpdatedAt = now
		if err := tx.Payments().Update(ctx, *current); err != nil {
			return err
		}
		payment = current
		return nil
	})
	if err != nil {
		return nil, domain.Refund{}, err
	}
	return payment, refund, nil
}

// release frees a reservation the gateway rejected.
func (h *CreateRefundCommandHandler) release(ctx context.Context, paymentID, refundID string) {
	ctx = context.WithoutCancel(ctx)
	err := h.tx.InTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		current, err := tx.Payments().GetByID(ctx, paymentID)
		if err != nil {
			return err
		}
		i := current.RefundIndex(refundID)
		if i < 0 || current.Refunds[i].Status != domain.RefundReserved {
			return nil
		}
		current.Refunds[i].Status = domain.RefundFailed
		current.UpdatedAt = time.Now().UTC()
		return tx.Payments().Update(ctx, *current)
	})
	if err != nil {
		h.logger.WarnContext(ctx, "could not release refund reservation",
			"payment_id", paymentID,
			"refund_id", refundID,
			"error", err,
		)
	}
}

// settledStatus keeps a blank gateway status from reading as a reservation.
// A gateway "failed" matches RefundFailed and frees the amount again.
func settledStatus(status string) string {
	if status == "" || status == domain.RefundReserved {
		return "processed"
	}
	return status
}

// refundAmount resolves the requested amount against what the payment still allows.
func refundAmount(payment domain.Payment, requested *decimal.Decimal) (decimal.Decimal, error) {
	if !payment.Captured() {
		return decimal.Zero, domain.NewValidationError("only captured payments can be refunded", map[string]string{
			"status": string(payment.Status),
		})
	}

	refundable := payment.RefundableAmount()
	if !refundable.IsPositive() {
		return decimal.Zero, domain.NewValidationError("nothing left to refund", map[string]string{
			"amount": "payment is fully refunded or has refunds in progress",
		})
	}
	if requested == nil {
		return refundable, nil
	}
	if requested.GreaterThan(refundable) {
		return decimal.Zero, domain.NewValidationError("refund amount exceeds refundable amount", map[string]string{
			"amount": "must be at most " + refundable.StringFixed(2),
		})
	}
	return *requested, nil
}
