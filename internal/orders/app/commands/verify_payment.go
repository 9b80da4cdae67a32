package commands

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

// VerifyPaymentCommand confirms a gateway payment returned by the client.
type VerifyPaymentCommand struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
	Identity         domain.Identity
}

func (c VerifyPaymentCommand) Validate() error {
	fields := map[string]string{}
	if strings.TrimSpace(c.GatewayOrderID) == "" {
		fields["razorpay_order_id"] = "required"
	}
	if strings.TrimSpace(c.GatewayPaymentID) == "" {
		fields["razorpay_payment_id"] = "required"
	}
	if strings.TrimSpace(c.Signature) == "" {
		fields["razorpay_signature"] = "required"
	}
	if len(fields) > 0 {
		return domain.NewValidationError("missing payment verification fields", fields)
	}
	return validateIdentity(c.Identity, false)
}

// VerifyPaymentResult is returned for both first and repeated verification.
type VerifyPaymentResult struct {
	Order           *domain.Order
	Payment         *domain.Payment
	AlreadyVerified bool
}

type VerifyPaymentCommandHandler struct {
	tx      ports.TxManager
	gateway ports.PaymentGateway
	events  ports.EventBus
	logger  *slog.Logger
}

func NewVerifyPaymentCommandHandler(
	tx ports.TxManager,
	gateway ports.PaymentGateway,
	events ports.EventBus,
	logger *slog.Logger,
) *VerifyPaymentCommandHandler {
	return &VerifyPaymentCommandHandler{
		tx:      tx,
		gateway: gateway,
		events:  events,
		logger:  logger,
	}
}

func (h *VerifyPaymentCommandHandler) Handle(ctx context.Context, cmd VerifyPaymentCommand) (*VerifyPaymentResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var payment *domain.Payment
	err := h.tx.View(ctx, func(ctx context.Context, tx ports.Tx) error {
		var err error
		payment, err = accessiblePayment(ctx, tx.Payments(), cmd.GatewayOrderID, cmd.Identity)
		return err
	})
	if err != nil {
		return nil, err
	}

	if payment.Status == domain.PaymentPaid {
		return h.alreadyVerified(ctx, payment)
	}
	if err := verifiable(*payment); err != nil {
		return nil, err
	}

	if !h.gateway.VerifySignature(cmd.GatewayOrderID, cmd.GatewayPaymentID, cmd.Signature) {
		h.logger.WarnContext(ctx, "payment signature mismatch",
			"payment_id", payment.ID,
			"gateway_order_id", cmd.GatewayOrderID,
		)
		return nil, domain.ErrInvalidSignature
	}

	var method domain.PaymentMethod
	remote, err := h.gateway.FetchPayment(ctx, cmd.GatewayPaymentID)
	if err != nil {
		h.logger.WarnContext(ctx, "could not fetch payment details", "gateway_payment_id", cmd.GatewayPaymentID, "error", err)
	} else if m, ok := domain.ParsePaymentMethod(remote.Method); ok {
		method = m
	}

	var (
		order           *domain.Order
		alreadyVerified bool
	)
	err = h.tx.InTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		current, err := tx.Payments().GetByID(ctx, payment.ID)
		if err != nil {
			return err
		}
		if current.Status == domain.PaymentPaid {
			payment = current
			alreadyVerified = true
			return nil
		}
		if err := verifiable(*current); err != nil {
			return err
		}

		order, err = tx.Orders().GetByID(ctx, current.OrderID)
		if err != nil {
			return err
		}
		if order.PaymentStatus == domain.BillingPaid {
			return domain.ErrAlreadyPaid
		}

		now := time.Now().UTC()
		if !order.StockCommitted {
			for _, item := range order.Items {
				if err := tx.Catalog().DecrementStock(ctx, item.ProductID, item.Quantity); err != nil {
					return err
				}
			}
			order.StockCommitted = true
		}
		if err := order.TransitionTo(domain.StatusPaid, now); err != nil {
			return err
		}
		order.PaymentStatus = domain.BillingPaid
		order.PaymentID = current.ID
		order.PaidAt = &now

		current.Status = domain.PaymentPaid
		current.GatewayPaymentID = cmd.GatewayPaymentID
		current.GatewaySignature = cmd.Signature
		if method != "" {
			current.Method = method
		}
		current.PaidAt = &now
		current.UpdatedAt = now

		if err := tx.Payments().Update(ctx, *current); err != nil {
			return err
		}
		if err := tx.Orders().Update(ctx, *order); err != nil {
			return err
		}
		payment = current
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientStock) {
			h.strandCapture(ctx, payment.ID, cmd, method, err)
		}
		return nil, err
	}

	if alreadyVerified {
		return h.alreadyVerified(ctx, payment)
	}

	publish(ctx, h.logger, "payment.captured", func(ctx context.Context) error {
		return h.events.PublishPaymentCaptured(ctx, *order, *payment)
	})

	return &VerifyPaymentResult{Order: order, Payment: payment}, nil
}

// strandCapture records a capture that could not be applied to its order.
// The payment is marked failed with the gateway payment id kept, which leaves
// it refundable, and a capture_failed event is published for follow up.
func (h *VerifyPaymentCommandHandler) strandCapture(ctx context.Context, paymentID string, cmd VerifyPaymentCommand, method domain.PaymentMethod, cause error) {
	ctx = context.WithoutCancel(ctx)

	var (
		payment *domain.Payment
		order   *domain.Order
	)
	err := h.tx.InTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		current, err := tx.Payments().GetByID(ctx, paymentID)
		if err != nil {
			return err
		}
		if err := verifiable(*current); err != nil {
			return err
		}
		order, err = tx.Orders().GetByID(ctx, current.OrderID)
		if err != nil {
			return err
		}

		current.Status = domain.PaymentFailed
		current.GatewayPaymentID = cmd.GatewayPaymentID
		current.GatewaySignature = cmd.Signature
		if method != "" {
			current.Method = method
		}
		current.Notes = withNote(current.Notes, "failure_reason", "stock_unavailable_after_capture")
		current.Notes["action"] = "refund_required"
		current.UpdatedAt = time.Now().UTC()
		if err := tx.Payments().Update(ctx, *current); err != nil {
			return err
		}
		payment = current
		return nil
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "payment captured but stock ran out and the capture could not be recorded",
			"payment_id", paymentID,
			"gateway_payment_id", cmd.GatewayPaymentID,
			"cause", cause,
			"error", err,
		)
		return
	}

	h.logger.ErrorContext(ctx, "payment captured but stock ran out, refund required",
		"payment_id", payment.ID,
		"order_id", payment.OrderID,
		"gateway_payment_id", payment.GatewayPaymentID,
		"error", cause,
	)
	publish(ctx, h.logger, "payment.capture_failed", func(ctx context.Context) error {
		return h.events.PublishPaymentCaptureFailed(ctx, *order, *payment, "stock_unavailable_after_capture")
	})
}

func (h *VerifyPaymentCommandHandler) alreadyVerified(ctx context.Context, payment *domain.Payment) (*VerifyPaymentResult, error) {
	var order *domain.Order
	err := h.tx.View(ctx, func(ctx context.Context, tx ports.Tx) error {
		var err error
		order, err = tx.Orders().GetByID(ctx, payment.OrderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &VerifyPaymentResult{Order: order, Payment: payment, AlreadyVerified: true}, nil
}

func verifiable(payment domain.Payment) error {
	switch payment.Status {
	case domain.PaymentCreated, domain.PaymentAttempted:
		return nil
	default:
		return domain.NewValidationError("payment can no longer be verified", map[string]string{
			"status": string(payment.Status),
		})
	}
}

// accessiblePayment hides payments the caller does not own behind NotFound.
func accessiblePayment(ctx context.Context, payments ports.PaymentRepository, gatewayOrderID string, identity domain.Identity) (*domain.Payment, error) {
	payment, err := payments.GetByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		return nil, err
	}
	if !payment.AccessibleBy(identity) {
		return nil, domain.NotFound("payment", gatewayOrderID)
	}
	return payment, nil
}
