package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the lifecycle of a gateway payment.
type PaymentStatus string

const (
	// PaymentPending reserves the order while the gateway order is being opened.
	PaymentPending   PaymentStatus = "pending"
	PaymentCreated   PaymentStatus = "created"
	PaymentAttempted PaymentStatus = "attempted"
	PaymentPaid      PaymentStatus = "paid"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCancelled PaymentStatus = "cancelled"
	PaymentRefunded  PaymentStatus = "refunded"
)

type PaymentMethod string

const (
	MethodCard       PaymentMethod = "card"
	MethodNetbanking PaymentMethod = "netbanking"
	MethodWallet     PaymentMethod = "wallet"
	MethodUPI        PaymentMethod = "upi"
	MethodEMI        PaymentMethod = "emi"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCard, MethodNetbanking, MethodWallet, MethodUPI, MethodEMI:
		return true
	}
	return false
}

type Currency string

const (
	CurrencyINR Currency = "INR"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
)

func (c Currency) Valid() bool {
	switch c {
	case CurrencyINR, CurrencyUSD, CurrencyEUR, CurrencyGBP:
		return true
	}
	return false
}

const maxReceiptLength = 40

var (
	MinPaymentAmount = decimal.NewFromInt(1)
	MaxPaymentAmount = decimal.NewFromInt(10_000_000)
)

// Local refund states. Any other status is the one reported by the gateway.
const (
	RefundReserved = "reserved"
	RefundFailed   = "failed"
)

// Refund is one refund issued against a captured payment.
type Refund struct {
	ID              string          `json:"id"`
	GatewayRefundID string          `json:"gateway_refund_id"`
	Amount          decimal.Decimal `json:"amount"`
	Status          string          `json:"status"`
	Reason          string          `json:"reason,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Payment tracks one gateway order created for an Order.
type Payment struct {
	ID               string            `json:"id"`
	OrderID          string            `json:"order_id"`
	PaymentType      OrderType         `json:"payment_type"`
	UserID           string            `json:"user_id,omitempty"`
	GuestID          string            `json:"guest_id,omitempty"`
	GuestInfo        *GuestContact     `json:"guest_info,omitempty"`
	GatewayOrderID   string            `json:"gateway_order_id"`
	GatewayPaymentID string            `json:"gateway_payment_id,omitempty"`
	GatewaySignature string            `json:"-"`
	Amount           decimal.Decimal   `json:"amount"`
	Currency         Currency          `json:"currency"`
	Status           PaymentStatus     `json:"status"`
	Method           PaymentMethod     `json:"method,omitempty"`
	Receipt          string            `json:"receipt"`
	Notes            map[string]string `json:"notes,omitempty"`
	Refunds          []Refund          `json:"refunds"`
	PaidAt           *time.Time        `json:"paid_at,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// Validate ensures the payment adheres to gateway constraints.
func (p Payment) Validate() error {
	fields := map[string]string{}
	if p.OrderID == "" {
		fields["order_id"] = "required"
	}
	if p.GatewayOrderID == "" && p.Status != PaymentPending {
		fields["gateway_order_id"] = "required"
	}
	if p.Amount.LessThan(MinPaymentAmount) || p.Amount.GreaterThan(MaxPaymentAmount) {
		fields["amount"] = fmt.Sprintf("must be between %s and %s", MinPaymentAmount, MaxPaymentAmount)
	}
	if !p.Currency.Valid() {
		fields["currency"] = "must be one of INR, USD, EUR, GBP"
	}
	if p.Method != "" && !p.Method.Valid() {
		fields["method"] = "must be one of card, netbanking, wallet, upi, emi"
	}
	if len(p.Receipt) > maxReceiptLength {
		fields["receipt"] = fmt.Sprintf("must be at most %d characters", maxReceiptLength)
	}
	if len(fields) > 0 {
		return NewValidationError("invalid payment", fields)
	}
	return nil
}

// Settled reports whether the gateway accepted the refund.
func (r Refund) Settled() bool {
	return r.Status != RefundReserved && r.Status != RefundFailed
}

// RefundedAmount sums the refunds the gateway has accepted.
func (p Payment) RefundedAmount() decimal.Decimal {
	total := decimal.Zero
	for _, r := range p.Refunds {
		if r.Settled() {
			total = total.Add(r.Amount)
		}
	}
	return total
}

// RefundableAmount is what is left once settled and in-flight refunds are taken out.
func (p Payment) RefundableAmount() decimal.Decimal {
	remaining := p.Amount
	for _, r := range p.Refunds {
		if r.Status != RefundFailed {
			remaining = remaining.Sub(r.Amount)
		}
	}
	return remaining
}

func (p Payment) FullyRefunded() bool {
	return p.RefundedAmount().GreaterThanOrEqual(p.Amount)
}

// Captured reports whether the gateway holds the customer's money, including
// captures that could not be applied to the order.
func (p Payment) Captured() bool {
	switch p.Status {
	case PaymentPaid:
		return true
	case PaymentFailed:
		return p.GatewayPaymentID != ""
	}
	return false
}

func (p Payment) RefundIndex(id string) int {
	for i, r := range p.Refunds {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// AccessibleBy reports whether the caller may read or act on the payment.
func (p Payment) AccessibleBy(id Identity) bool {
	if id.IsAdmin() {
		return true
	}
	if id.IsRegistered() {
		return p.UserID == id.UserID
	}
	if id.IsGuest() && p.GuestInfo != nil {
		return p.GuestInfo.Matches(id.Guest.Email, id.Guest.Phone)
	}
	return false
}

// NewReceipt derives a gateway receipt id from the order id and the clock.
func NewReceipt(orderID string, now time.Time) string {
	receipt := "rcpt_" + tail(orderID, 8) + "_" + tail(strconv.FormatInt(now.UnixMilli(), 10), 8)
	if len(receipt) > maxReceiptLength {
		receipt = receipt[:maxReceiptLength]
	}
	return receipt
}

// ToMinorUnits converts a major-unit amount into the gateway's integer representation.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	m := PaymentMethod(strings.ToLower(strings.TrimSpace(s)))
	return m, m.Valid()
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
