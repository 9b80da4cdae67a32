package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus captures the lifecycle of an order in the system.
type OrderStatus string

const (
	StatusProcessing OrderStatus = "Processing"
	StatusPaid       OrderStatus = "Paid"
	StatusShipped    OrderStatus = "Shipped"
	StatusDelivered  OrderStatus = "Delivered"
	StatusCancelled  OrderStatus = "Cancelled"
	StatusRefunded   OrderStatus = "Refunded"
)

var transitions = map[OrderStatus][]OrderStatus{
	StatusProcessing: {StatusPaid, StatusCancelled},
	StatusPaid:       {StatusShipped, StatusDelivered, StatusCancelled, StatusRefunded},
	StatusShipped:    {StatusDelivered, StatusCancelled, StatusRefunded},
}

// ParseOrderStatus accepts a status name in any letter case.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	for _, status := range []OrderStatus{
		StatusProcessing, StatusPaid, StatusShipped, StatusDelivered, StatusCancelled, StatusRefunded,
	} {
		if strings.EqualFold(string(status), strings.TrimSpace(s)) {
			return status, true
		}
	}
	return "", false
}

// BillingStatus is the payment state mirrored onto an order.
type BillingStatus string

const (
	BillingPending  BillingStatus = "pending"
	BillingPaid     BillingStatus = "paid"
	BillingFailed   BillingStatus = "failed"
	BillingRefunded BillingStatus = "refunded"
)

// OrderType discriminates who placed the order.
type OrderType string

const (
	OrderTypeRegistered OrderType = "registered"
	OrderTypeGuest      OrderType = "guest"
	OrderTypeRetail     OrderType = "retail"
)

// OrderItem is a line item with the product snapshot taken at order time.
type OrderItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Image     string          `json:"image,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type ShippingAddress struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

func (a ShippingAddress) Validate() error {
	fields := map[string]string{}
	if strings.TrimSpace(a.Address) == "" {
		fields["shipping_address.address"] = "address is required"
	}
	if strings.TrimSpace(a.City) == "" {
		fields["shipping_address.city"] = "city is required"
	}
	if strings.TrimSpace(a.PostalCode) == "" {
		fields["shipping_address.postal_code"] = "postal_code is required"
	}
	if strings.TrimSpace(a.Country) == "" {
		fields["shipping_address.country"] = "country is required"
	}
	if len(fields) > 0 {
		return NewValidationError("invalid shipping address", fields)
	}
	return nil
}

// Order represents a purchase managed by the system.
type Order struct {
	ID              string           `json:"id"`
	OrderNumber     string           `json:"order_number"`
	UUID            string           `json:"uuid"`
	OrderType       OrderType        `json:"order_type"`
	UserID          string           `json:"user_id,omitempty"`
	GuestID         string           `json:"guest_id,omitempty"`
	GuestInfo       *GuestContact    `json:"guest_info,omitempty"`
	Items           []OrderItem      `json:"items"`
	ShippingAddress *ShippingAddress `json:"shipping_address,omitempty"`
	TotalPrice      decimal.Decimal  `json:"total_price"`
	Status          OrderStatus      `json:"status"`
	PaymentStatus   BillingStatus    `json:"payment_status"`
	PaymentMethod   string           `json:"payment_method"`
	PaymentID       string           `json:"payment_id,omitempty"`
	StockCommitted  bool             `json:"stock_committed"`
	PaidAt          *time.Time       `json:"paid_at,omitempty"`
	DeliveredAt     *time.Time       `json:"delivered_at,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// ComputeTotal sums price times quantity over the line items.
func ComputeTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// Validate ensures the order adheres to business constraints.
func (o Order) Validate() error {
	if len(o.Items) == 0 {
		return NewValidationError("order must contain at least one item", map[string]string{"items": "required"})
	}
	for i, item := range o.Items {
		if item.Quantity <= 0 {
			return NewValidationError("item quantity must be positive", map[string]string{
				fmt.Sprintf("items[%d].quantity", i): "must be positive",
			})
		}
	}

	switch o.OrderType {
	case OrderTypeRegistered, OrderTypeRetail:
		if o.UserID == "" || o.GuestID != "" {
			return NewValidationError("order must reference exactly one user", nil)
		}
	case OrderTypeGuest:
		if o.GuestID == "" || o.UserID != "" || o.GuestInfo == nil {
			return NewValidationError("guest order must reference exactly one guest", nil)
		}
	default:
		return NewValidationError(fmt.Sprintf("unknown order type %q", o.OrderType), nil)
	}

	if o.OrderType != OrderTypeRetail {
		if o.ShippingAddress == nil {
			return NewValidationError("shipping address is required", map[string]string{"shipping_address": "required"})
		}
		if err := o.ShippingAddress.Validate(); err != nil {
			return err
		}
	}

	if !o.TotalPrice.Equal(ComputeTotal(o.Items)) {
		return NewValidationError("total price does not match line items", map[string]string{
			"total_price": ComputeTotal(o.Items).String(),
		})
	}
	return nil
}

// IsTerminal indicates whether the order is in a terminal state.
func (o Order) IsTerminal() bool {
	switch o.Status {
	case StatusDelivered, StatusCancelled, StatusRefunded:
		return true
	default:
		return false
	}
}

func (o Order) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range transitions[o.Status] {
		if allowed == next {
			return true
		}
	}
	return false
}

// TransitionTo moves the order to next, stamping delivery time when relevant.
func (o *Order) TransitionTo(next OrderStatus, now time.Time) error {
	if !o.CanTransitionTo(next) {
		return &TransitionError{From: o.Status, To: next}
	}
	o.Status = next
	o.UpdatedAt = now
	if next == StatusDelivered {
		delivered := now
		o.DeliveredAt = &delivered
	}
	return nil
}

// AccessibleBy reports whether the caller may read or act on the order.
func (o Order) AccessibleBy(id Identity) bool {
	if id.IsAdmin() {
		return true
	}
	if id.IsRegistered() {
		return o.UserID == id.UserID
	}
	if id.IsGuest() && o.GuestInfo != nil {
		return o.GuestInfo.Matches(id.Guest.Email, id.Guest.Phone)
	}
	return false
}
