package http

import (
	"strings"

	"github.com/dejobratic/storefront/internal/orders/app/commands"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/shopspring/decimal"
)

type guestContactRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

func (g guestContactRequest) toDomain() domain.GuestContact {
	return domain.GuestContact{
		Email: strings.TrimSpace(g.Email),
		Name:  strings.TrimSpace(g.Name),
		Phone: strings.TrimSpace(g.Phone),
	}
}

type orderItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func toOrderLines(items []orderItemRequest) []commands.OrderLine {
	lines := make([]commands.OrderLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, commands.OrderLine{ProductID: strings.TrimSpace(item.ProductID), Quantity: item.Quantity})
	}
	return lines
}

type createOrderRequest struct {
	Items           []orderItemRequest      `json:"items"`
	FromCart        bool                    `json:"from_cart"`
	ShippingAddress *domain.ShippingAddress `json:"shipping_address"`
	PaymentMethod   string                  `json:"payment_method"`
	GuestInfo       *guestContactRequest    `json:"guest_info"`
}

type createRetailOrderRequest struct {
	Items         []orderItemRequest   `json:"items" binding:"required"`
	PaymentMethod string               `json:"payment_method"`
	Customer      *guestContactRequest `json:"customer"`
	TotalPrice    *decimal.Decimal     `json:"total_price"`
}

type trackOrdersRequest struct {
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	OrderID string `json:"order_id"`
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type createPaymentOrderRequest struct {
	OrderID   string               `json:"order_id" binding:"required"`
	GuestInfo *guestContactRequest `json:"guest_info"`
	Notes     map[string]string    `json:"notes"`
}

type verifyPaymentRequest struct {
	GatewayOrderID   string               `json:"razorpay_order_id"`
	GatewayPaymentID string               `json:"razorpay_payment_id"`
	Signature        string               `json:"razorpay_signature"`
	GuestInfo        *guestContactRequest `json:"guest_info"`
}

type refundRequest struct {
	Amount *decimal.Decimal `json:"amount"`
	Reason string           `json:"reason"`
}

type convertGuestRequest struct {
	GuestID string `json:"guest_id" binding:"required"`
	UserID  string `json:"user_id"`
}

type createProductRequest struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Image        string          `json:"image"`
	Category     string          `json:"category"`
	Price        decimal.Decimal `json:"price"`
	CountInStock int             `json:"count_in_stock"`
	Featured     bool            `json:"featured"`
}

type updateProductRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Image       *string          `json:"image"`
	Category    *string          `json:"category"`
	Price       *decimal.Decimal `json:"price"`
	Featured    *bool            `json:"featured"`
}

type setStockRequest struct {
	CountInStock *int `json:"count_in_stock" binding:"required"`
}

type addCartItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity"`
}

type updateCartItemRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

// syncCartRequest carries the basket a client kept before signing in.
type syncCartRequest struct {
	Items []orderItemRequest `json:"items"`
}
