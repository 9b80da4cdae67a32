package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/gin-gonic/gin"
)

type errorBody struct {
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Fields  map[string]string `json:"fields,omitempty"`
	Details map[string]any    `json:"details,omitempty"`
}

// statusFor maps a domain error to its HTTP status and machine code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "validation_failed"
	case errors.Is(err, domain.ErrInvalidOrderRef):
		return http.StatusBadRequest, "invalid_order_ref"
	case errors.Is(err, domain.ErrInvalidSignature):
		return http.StatusBadRequest, "invalid_signature"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden, "unauthorized"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrInsufficientStock):
		return http.StatusConflict, "insufficient_stock"
	case errors.Is(err, domain.ErrAlreadyPaid):
		return http.StatusConflict, "already_paid"
	case errors.Is(err, domain.ErrAlreadyVerified):
		return http.StatusConflict, "already_verified"
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrGateway):
		return http.StatusBadGateway, "gateway_error"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (h *Handler) writeError(c *gin.Context, err error) {
	status, code := statusFor(err)
	body := errorBody{Error: err.Error(), Code: code}

	var validation *domain.ValidationError
	var stock *domain.InsufficientStockError
	var gateway *domain.GatewayError
	switch {
	case errors.As(err, &validation):
		body.Error = validation.Message
		body.Fields = validation.Fields
	case errors.As(err, &stock):
		body.Details = map[string]any{
			"product_id":   stock.ProductID,
			"product_name": stock.ProductName,
			"available":    stock.Available,
			"requested":    stock.Requested,
		}
	case errors.Is(err, domain.ErrInvalidSignature):
		body.Error = "payment verification failed"
	case errors.As(err, &gateway):
		body.Error = "payment gateway error"
		if gateway.Message != "" {
			body.Error = gateway.Message
		}
		if h.development && gateway.Err != nil {
			body.Details = map[string]any{"cause": gateway.Err.Error()}
		}
	}

	if status == http.StatusForbidden && !identityFrom(c).IsRegistered() && identityFrom(c).Guest == nil {
		status = http.StatusUnauthorized
	}

	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(c.Request.Context(), "request failed",
			"route", c.FullPath(),
			"error", err,
		)
		if status == http.StatusInternalServerError && !h.development {
			body.Error = "internal server error"
		}
	} else {
		h.logger.DebugContext(c.Request.Context(), "request rejected",
			slog.String("route", c.FullPath()),
			slog.String("code", code),
		)
	}

	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Error: message, Code: "bad_request"})
}
