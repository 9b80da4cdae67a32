package http

import (
	"net/http"

	"github.com/dejobratic/storefront/internal/orders/app/commands"
	"github.com/gin-gonic/gin"
)

func (h *Handler) convertGuest(c *gin.Context) {
	var req convertGuestRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.service.LinkGuest(c.Request.Context(), commands.LinkGuestCommand{
		GuestID:  req.GuestID,
		UserID:   req.UserID,
		Identity: identityFrom(c),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"guest":          result.Guest,
		"orders_moved":   result.OrdersMoved,
		"payments_moved": result.PaymentsMoved,
	})
}

func (h *Handler) purgeGuests(c *gin.Context) {
	purged, err := h.service.PurgeGuests(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"purged": purged})
}
