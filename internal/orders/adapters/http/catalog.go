package http

import (
	"net/http"
	"strconv"

	"github.com/dejobratic/storefront/internal/orders/app/commands"
	"github.com/dejobratic/storefront/internal/orders/app/queries"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func (h *Handler) listProducts(c *gin.Context) {
	sort, ok := ports.ParseProductSort(c.Query("sort"))
	if !ok {
		badRequest(c, "sort must be one of name, newest, price_asc, price_desc, stock")
		return
	}
	minPrice, ok := queryDecimal(c, "min_price")
	if !ok {
		return
	}
	maxPrice, ok := queryDecimal(c, "max_price")
	if !ok {
		return
	}
	featured, _ := strconv.ParseBool(c.Query("featured"))

	products, err := h.service.ListProducts(c.Request.Context(), queries.ListProductsQuery{
		Category: c.Query("category"),
		Search:   c.Query("search"),
		MinPrice: minPrice,
		MaxPrice: maxPrice,
		Featured: featured,
		Sort:     sort,
		Page:     queryInt(c, "page"),
		PageSize: queryInt(c, "page_size"),
	})
	h.writeProducts(c, products, err)
}

func (h *Handler) searchProducts(c *gin.Context) {
	products, err := h.service.SearchProducts(c.Request.Context(), queries.SearchProductsQuery{
		Query:    c.Query("q"),
		Page:     queryInt(c, "page"),
		PageSize: queryInt(c, "page_size"),
	})
	h.writeProducts(c, products, err)
}

func (h *Handler) featuredProducts(c *gin.Context) {
	products, err := h.service.FeaturedProducts(c.Request.Context(), queryInt(c, "limit"))
	h.writeProducts(c, products, err)
}

func (h *Handler) newArrivals(c *gin.Context) {
	products, err := h.service.NewArrivals(c.Request.Context(), queryInt(c, "limit"))
	h.writeProducts(c, products, err)
}

func (h *Handler) writeProducts(c *gin.Context, products []domain.Product, err error) {
	if err != nil {
		h.writeError(c, err)
		return
	}
	if products == nil {
		products = []domain.Product{}
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

// queryDecimal parses an optional decimal query parameter, answering 400
// when it is malformed.
func queryDecimal(c *gin.Context, name string) (*decimal.Decimal, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		badRequest(c, name+" must be a number")
		return nil, false
	}
	return &d, true
}

func (h *Handler) getProduct(c *gin.Context) {
	product, err := h.service.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": product})
}

func (h *Handler) createProduct(c *gin.Context) {
	var req createProductRequest
	if !bindJSON(c, &req) {
		return
	}

	product, err := h.service.CreateProduct(c.Request.Context(), commands.CreateProductCommand{
		Name:         req.Name,
		Description:  req.Description,
		Image:        req.Image,
		Category:     req.Category,
		Price:        req.Price,
		CountInStock: req.CountInStock,
		Featured:     req.Featured,
		Identity:     identityFrom(c),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"product": product})
}

func (h *Handler) updateProduct(c *gin.Context) {
	var req updateProductRequest
	if !bindJSON(c, &req) {
		return
	}

	product, err := h.service.UpdateProduct(c.Request.Context(), commands.UpdateProductCommand{
		ProductID:   c.Param("id"),
		Name:        req.Name,
		Description: req.Description,
		Image:       req.Image,
		Category:    req.Category,
		Price:       req.Price,
		Featured:    req.Featured,
		Identity:    identityFrom(c),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": product})
}

func (h *Handler) setStock(c *gin.Context) {
	var req setStockRequest
	if !bindJSON(c, &req) {
		return
	}

	product, err := h.service.SetStock(c.Request.Context(), commands.SetStockCommand{
		ProductID:    c.Param("id"),
		CountInStock: *req.CountInStock,
		Identity:     identityFrom(c),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": product})
}

func (h *Handler) lowStockProducts(c *gin.Context) {
	threshold := queryInt(c, "threshold")
	if threshold <= 0 {
		threshold = h.lowStock
	}
	if threshold <= 0 {
		threshold = domain.DefaultLowStockThreshold
	}

	products, err := h.service.LowStock(c.Request.Context(), queries.LowStockQuery{
		Threshold: threshold,
		Identity:  identityFrom(c),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	if products == nil {
		products = []domain.Product{}
	}
	c.JSON(http.StatusOK, gin.H{"products": products, "threshold": threshold})
}
