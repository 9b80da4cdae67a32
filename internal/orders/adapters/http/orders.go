package http

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/dejobratic/storefront/internal/orders/app/commands"
	"github.com/dejobratic/storefront/internal/orders/app/queries"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/gin-gonic/gin"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"
	jsonContentType   = "application/json; charset=utf-8"
)

func (h *Handler) createOrder(c *gin.Context) {
	ctx := c.Request.Context()

	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		badRequest(c, "unable to read request body")
		return
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(raw))

	var req createOrderRequest
	if !bindJSON(c, &req) {
		return
	}
	identity := callerIdentity(c, req.GuestInfo)

	key := strings.TrimSpace(c.GetHeader(idempotencyHeader))
	var scopedKey, requestHash string
	if key != "" {
		scopedKey = idempotencyScope(identity) + ":" + key
		sum := sha256.Sum256(raw)
		requestHash = hex.EncodeToString(sum[:])

		stored, err := h.service.ReserveIdempotencyKey(ctx, scopedKey, requestHash)
		if err != nil {
			h.writeError(c, err)
			return
		}
		if stored != nil {
			h.replay(c, *stored, requestHash)
			return
		}
	}

	order, err := h.service.CreateOrder(ctx, commands.CreateOrderCommand{
		Items:           toOrderLines(req.Items),
		FromCart:        req.FromCart,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		Identity:        identity,
		Session:         sessionMeta(c),
	})
	if err != nil {
		if scopedKey != "" {
			h.releaseIdempotencyKey(ctx, scopedKey)
		}
		h.writeError(c, err)
		return
	}

	body, err := json.Marshal(gin.H{"order": order})
	if err != nil {
		h.writeError(c, err)
		return
	}

	if scopedKey != "" {
		stored := ports.StoredResponse{
			StatusCode:  http.StatusCreated,
			Body:        body,
			OrderID:     order.ID,
			RequestHash: requestHash,
		}
		if err := h.service.CompleteIdempotencyKey(context.WithoutCancel(ctx), scopedKey, stored); err != nil {
			h.logger.WarnContext(ctx, "failed to store idempotent response",
				"order_id", order.ID,
				"error", err,
			)
		}
	}

	c.Data(http.StatusCreated, jsonContentType, body)
}

// replay answers a request whose key is already taken: the stored response
// when it belongs to the same payload, otherwise a conflict.
func (h *Handler) replay(c *gin.Context, stored ports.StoredResponse, requestHash string) {
	conflict := stored.InFlight() || (stored.RequestHash != "" && stored.RequestHash != requestHash)
	if h.metrics != nil {
		h.metrics.RecordIdempotentReplay(c.Request.Context(), conflict)
	}

	switch {
	case stored.RequestHash != "" && stored.RequestHash != requestHash:
		c.AbortWithStatusJSON(http.StatusConflict, errorBody{
			Error: "idempotency key reused with a different payload",
			Code:  "idempotency_conflict",
		})
	case stored.InFlight():
		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusConflict, errorBody{
			Error: "a request with this idempotency key is still being processed",
			Code:  "idempotency_in_progress",
		})
	default:
		c.Header(replayedHeader, "true")
		c.Data(stored.StatusCode, jsonContentType, stored.Body)
	}
}

func (h *Handler) releaseIdempotencyKey(ctx context.Context, key string) {
	if err := h.service.ReleaseIdempotencyKey(context.WithoutCancel(ctx), key); err != nil {
		h.logger.WarnContext(ctx, "failed to release idempotency key", "error", err)
	}
}

// idempotencyScope namespaces keys per caller so two customers cannot
// replay each other's responses.
func idempotencyScope(identity domain.Identity) string {
	switch {
	case identity.IsRegistered():
		return "user:" + identity.UserID
	case identity.Guest != nil:
		return "guest:" + domain.NormalizeEmail(identity.Guest.Email)
	default:
		return "anonymous"
	}
}

func (h *Handler) createRetailOrder(c *gin.Context) {
	var req createRetailOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	cmd := commands.CreateRetailOrderCommand{
		Items:         toOrderLines(req.Items),
		PaymentMethod: req.PaymentMethod,
		ExpectedTotal: req.TotalPrice,
		Identity:      identityFrom(c),
	}
	if req.Customer != nil {
		contact := req.Customer.toDomain()
		cmd.Customer = &contact
	}

	order, err := h.service.CreateRetailOrder(c.Request.Context(), cmd)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"order": order})
}

func (h *Handler) getOrder(c *gin.Context) {
	order, err := h.service.GetOrder(c.Request.Context(), queries.GetOrderQuery{
		Ref:      c.Param("ref"),
		Identity: callerIdentity(c, guestFromHeaders(c)),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

func (h *Handler) listMyOrders(c *gin.Context) {
	identity := identityFrom(c)
	h.respondOrderPage(c, queries.ListOrdersQuery{
		Identity: identity,
		UserID:   identity.UserID,
		Page:     queryInt(c, "page"),
		PageSize: queryInt(c, "page_size"),
	})
}

func (h *Handler) listOrders(c *gin.Context) {
	h.respondOrderPage(c, queries.ListOrdersQuery{
		Identity:  identityFrom(c),
		Status:    c.Query("status"),
		OrderType: c.Query("order_type"),
		UserID:    c.Query("user_id"),
		Page:      queryInt(c, "page"),
		PageSize:  queryInt(c, "page_size"),
	})
}

func (h *Handler) respondOrderPage(c *gin.Context, query queries.ListOrdersQuery) {
	page, err := h.service.ListOrders(c.Request.Context(), query)
	if err != nil {
		h.writeError(c, err)
		return
	}
	orders := page.Orders
	if orders == nil {
		orders = []domain.Order{}
	}
	c.JSON(http.StatusOK, gin.H{
		"orders":    orders,
		"page":      page.Page,
		"page_size": page.PageSize,
	})
}

func (h *Handler) trackGuestOrders(c *gin.Context) {
	var req trackOrdersRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.service.TrackGuestOrders(c.Request.Context(), queries.TrackGuestOrdersQuery{
		Email:    req.Email,
		Phone:    req.Phone,
		OrderRef: req.OrderID,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	orders := result.Orders
	if orders == nil {
		orders = []domain.Order{}
	}
	c.JSON(http.StatusOK, gin.H{
		"guest": gin.H{
			"guest_id":            result.Guest.GuestID,
			"name":                result.Guest.Name,
			"email":               result.Guest.Email,
			"can_convert_to_user": result.Guest.CanConvertToUser(),
		},
		"orders": orders,
	})
}

func (h *Handler) updateOrderStatus(c *gin.Context) {
	var req updateStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.service.UpdateOrderStatus(c.Request.Context(), commands.UpdateOrderStatusCommand{
		OrderRef: c.Param("ref"),
		Status:   req.Status,
		Identity: identityFrom(c),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

func (h *Handler) cancelOrder(c *gin.Context) {
	order, err := h.service.CancelOrder(c.Request.Context(), commands.CancelOrderCommand{
		OrderRef: c.Param("ref"),
		Identity: identityFrom(c),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}
