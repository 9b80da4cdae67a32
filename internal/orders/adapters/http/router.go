package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dejobratic/storefront/internal/orders/app"
	"github.com/gin-gonic/gin"
)

// RouterOptions configures optional router behaviour.
type RouterOptions struct {
	// Development exposes internal error detail in responses.
	Development bool
	// RateLimiter guards the checkout endpoints when set.
	RateLimiter gin.HandlerFunc
	// Ready reports whether backing services are reachable.
	Ready             func(ctx context.Context) error
	LowStockThreshold int
}

// Handler exposes HTTP endpoints for the storefront checkout.
type Handler struct {
	service     *app.Service
	auth        Authenticator
	logger      *slog.Logger
	metrics     *Metrics
	development bool
	lowStock    int
}

// NewRouter builds the gin engine with every API route registered.
func NewRouter(service *app.Service, logger *slog.Logger, metrics *Metrics, opts RouterOptions) *gin.Engine {
	if !opts.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	h := &Handler{
		service:     service,
		auth:        service,
		logger:      logger,
		metrics:     metrics,
		development: opts.Development,
		lowStock:    opts.LowStockThreshold,
	}

	router := gin.New()
	router.Use(recovery(logger, opts.Development))
	router.Use(requestLogger(logger))
	if metrics != nil {
		router.Use(instrument(metrics))
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/readyz", func(c *gin.Context) {
		if opts.Ready != nil {
			if err := opts.Ready(c.Request.Context()); err != nil {
				logger.WarnContext(c.Request.Context(), "readiness check failed", "error", err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	limit := opts.RateLimiter
	if limit == nil {
		limit = func(c *gin.Context) { c.Next() }
	}

	api := router.Group("/api")
	api.Use(h.authenticate)
	{
		api.GET("/products", h.listProducts)
		api.GET("/products/search", h.searchProducts)
		api.GET("/products/featured", h.featuredProducts)
		api.GET("/products/new-arrivals", h.newArrivals)
		api.GET("/products/:id", h.getProduct)

		cart := api.Group("/cart", requireUser)
		cart.GET("", h.getCart)
		cart.POST("", h.addCartItem)
		cart.DELETE("", h.clearCart)
		cart.POST("/sync", h.syncCart)
		cart.PUT("/:productId", h.updateCartItem)
		cart.DELETE("/:productId", h.removeCartItem)

		api.POST("/orders", limit, h.createOrder)
		api.GET("/orders/my", requireUser, h.listMyOrders)
		api.GET("/orders/:ref", h.getOrder)
		api.POST("/orders/track", limit, h.trackGuestOrders)

		api.POST("/payments/create-order", limit, h.createPaymentOrder)
		api.POST("/payments/verify", limit, h.verifyPayment)
		api.GET("/payments/:id", h.getPayment)

		api.POST("/guests/convert-to-user", requireUser, h.convertGuest)
	}

	admin := api.Group("/admin")
	admin.Use(requireAdmin)
	{
		admin.POST("/orders/retail", h.createRetailOrder)
		admin.GET("/orders", h.listOrders)
		admin.PUT("/orders/:ref/status", h.updateOrderStatus)
		admin.POST("/orders/:ref/cancel", h.cancelOrder)

		admin.POST("/payments/:id/refund", h.createRefund)

		admin.POST("/products", h.createProduct)
		admin.GET("/products/low-stock", h.lowStockProducts)
		admin.PUT("/products/:id", h.updateProduct)
		admin.PUT("/products/:id/stock", h.setStock)

		admin.DELETE("/guests/cleanup", h.purgeGuests)
	}

	return router
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		badRequest(c, "invalid JSON payload: "+err.Error())
		return false
	}
	return true
}

func queryInt(c *gin.Context, name string) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return 0
	}
	return v
}
