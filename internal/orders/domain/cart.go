package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MaxLineQuantity bounds the units of one product in a cart or an order.
const MaxLineQuantity = 1000

type CartItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Cart is the saved basket of a registered customer. Items keep the order
// in which products were first added.
type Cart struct {
	UserID    string     `json:"user_id"`
	Items     []CartItem `json:"items"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Add puts qty more units of the product in the cart.
func (c *Cart) Add(productID string, qty int) error {
	if err := validateCartQuantity(qty); err != nil {
		return err
	}
	if i := c.index(productID); i >= 0 {
		total := c.Items[i].Quantity + qty
		if err := validateCartQuantity(total); err != nil {
			return err
		}
		c.Items[i].Quantity = total
		return nil
	}
	c.Items = append(c.Items, CartItem{ProductID: productID, Quantity: qty})
	return nil
}

// Merge adds qty units like Add but caps the line at MaxLineQuantity.
func (c *Cart) Merge(productID string, qty int) {
	if qty <= 0 {
		return
	}
	if i := c.index(productID); i >= 0 {
		c.Items[i].Quantity = min(c.Items[i].Quantity+qty, MaxLineQuantity)
		return
	}
	c.Items = append(c.Items, CartItem{ProductID: productID, Quantity: min(qty, MaxLineQuantity)})
}

// SetQuantity replaces the quantity of a product already in the cart.
func (c *Cart) SetQuantity(productID string, qty int) error {
	if err := validateCartQuantity(qty); err != nil {
		return err
	}
	i := c.index(productID)
	if i < 0 {
		return NotFound("cart item", productID)
	}
	c.Items[i].Quantity = qty
	return nil
}

// Remove drops the product and reports whether it was in the cart.
func (c *Cart) Remove(productID string) bool {
	i := c.index(productID)
	if i < 0 {
		return false
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	return true
}

func (c *Cart) Clear() {
	c.Items = nil
}

func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c Cart) index(productID string) int {
	productID = strings.TrimSpace(productID)
	for i, item := range c.Items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

func validateCartQuantity(qty int) error {
	if qty <= 0 || qty > MaxLineQuantity {
		return NewValidationError("quantity out of range", map[string]string{
			"quantity": fmt.Sprintf("must be between 1 and %d", MaxLineQuantity),
		})
	}
	return nil
}

// CartLine is a cart item priced against the current catalog.
type CartLine struct {
	ProductID    string          `json:"product_id"`
	Name         string          `json:"name"`
	Image        string          `json:"image,omitempty"`
	Price        decimal.Decimal `json:"price"`
	Quantity     int             `json:"quantity"`
	CountInStock int             `json:"count_in_stock"`
	LineTotal    decimal.Decimal `json:"line_total"`
}

// CartView is what a customer sees: priced lines and the running totals.
type CartView struct {
	Items     []CartLine      `json:"items"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"item_count"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// PriceCart joins the cart with its products. Items whose product is missing
// from products are left out.
func PriceCart(cart Cart, products map[string]Product) CartView {
	view := CartView{Items: []CartLine{}, Total: decimal.Zero, UpdatedAt: cart.UpdatedAt}
	for _, item := range cart.Items {
		product, ok := products[item.ProductID]
		if !ok {
			continue
		}
		line := CartLine{
			ProductID:    product.ID,
			Name:         product.Name,
			Image:        product.Image,
			Price:        product.Price,
			Quantity:     item.Quantity,
			CountInStock: product.CountInStock,
			LineTotal:    product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))),
		}
		view.Items = append(view.Items, line)
		view.Total = view.Total.Add(line.LineTotal)
		view.ItemCount += item.Quantity
	}
	return view
}
