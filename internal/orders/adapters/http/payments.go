package http

import (
	"net/http"

	"github.com/dejobratic/storefront/internal/orders/app/commands"
	"github.com/dejobratic/storefront/internal/orders/app/queries"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/gin-gonic/gin"
)

func (h *Handler) createPaymentOrder(c *gin.Context) {
	var req createPaymentOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.service.CreatePaymentOrder(c.Request.Context(), commands.CreatePaymentOrderCommand{
		OrderRef: req.OrderID,
		Identity: callerIdentity(c, req.GuestInfo),
		Notes:    req.Notes,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	payment := result.Payment
	status := http.StatusCreated
	if result.Reused {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{
		"key_id":            result.GatewayKeyID,
		"razorpay_order_id": payment.GatewayOrderID,
		"amount":            domain.ToMinorUnits(payment.Amount),
		"currency":          payment.Currency,
		"receipt":           payment.Receipt,
		"payment_id":        payment.ID,
		"reused":            result.Reused,
		"order":             result.Order,
	})
}

func (h *Handler) verifyPayment(c *gin.Context) {
	var req verifyPaymentRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.service.VerifyPayment(c.Request.Context(), commands.VerifyPaymentCommand{
		GatewayOrderID:   req.GatewayOrderID,
		GatewayPaymentID: req.GatewayPaymentID,
		Signature:        req.Signature,
		Identity:         callerIdentity(c, req.GuestInfo),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	message := "payment verified"
	if result.AlreadyVerified {
		message = "payment already verified"
	}
	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"message":          message,
		"already_verified": result.AlreadyVerified,
		"order":            result.Order,
		"payment":          result.Payment,
	})
}

func (h *Handler) getPayment(c *gin.Context) {
	payment, err := h.service.GetPayment(c.Request.Context(), queries.GetPaymentQuery{
		PaymentID: c.Param("id"),
		Identity:  callerIdentity(c, guestFromHeaders(c)),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"payment":           payment,
		"refundable_amount": payment.RefundableAmount(),
	})
}

func (h *Handler) createRefund(c *gin.Context) {
	var req refundRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}

	result, err := h.service.CreateRefund(c.Request.Context(), commands.CreateRefundCommand{
		PaymentID: c.Param("id"),
		Amount:    req.Amount,
		Reason:    req.Reason,
		Identity:  identityFrom(c),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"refund":      result.Refund,
		"full_refund": result.Full,
		"payment":     result.Payment,
		"order":       result.Order,
	})
}
