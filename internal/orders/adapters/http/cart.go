package http

import (
	"net/http"

	"github.com/dejobratic/storefront/internal/orders/app/commands"
	"github.com/dejobratic/storefront/internal/orders/app/queries"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/gin-gonic/gin"
)

func (h *Handler) getCart(c *gin.Context) {
	cart, err := h.service.GetCart(c.Request.Context(), queries.GetCartQuery{Identity: identityFrom(c)})
	h.writeCart(c, http.StatusOK, cart, err)
}

func (h *Handler) addCartItem(c *gin.Context) {
	var req addCartItemRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	cart, err := h.service.AddCartItem(c.Request.Context(), commands.CartItemCommand{
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		Identity:  identityFrom(c),
	})
	h.writeCart(c, http.StatusOK, cart, err)
}

func (h *Handler) updateCartItem(c *gin.Context) {
	var req updateCartItemRequest
	if !bindJSON(c, &req) {
		return
	}

	cart, err := h.service.UpdateCartItem(c.Request.Context(), commands.CartItemCommand{
		ProductID: c.Param("productId"),
		Quantity:  *req.Quantity,
		Identity:  identityFrom(c),
	})
	h.writeCart(c, http.StatusOK, cart, err)
}

func (h *Handler) removeCartItem(c *gin.Context) {
	cart, err := h.service.RemoveCartItem(c.Request.Context(), commands.RemoveCartItemCommand{
		ProductID: c.Param("productId"),
		Identity:  identityFrom(c),
	})
	h.writeCart(c, http.StatusOK, cart, err)
}

func (h *Handler) clearCart(c *gin.Context) {
	cart, err := h.service.ClearCart(c.Request.Context(), commands.ClearCartCommand{Identity: identityFrom(c)})
	h.writeCart(c, http.StatusOK, cart, err)
}

func (h *Handler) syncCart(c *gin.Context) {
	var req syncCartRequest
	if !bindJSON(c, &req) {
		return
	}

	cart, err := h.service.SyncCart(c.Request.Context(), commands.SyncCartCommand{
		Items:    toOrderLines(req.Items),
		Identity: identityFrom(c),
	})
	h.writeCart(c, http.StatusOK, cart, err)
}

func (h *Handler) writeCart(c *gin.Context, status int, cart *domain.CartView, err error) {
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(status, gin.H{"cart": cart})
}
