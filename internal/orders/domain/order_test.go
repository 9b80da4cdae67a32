package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/shopspring/decimal"
)

func validItems() []domain.OrderItem {
	return []domain.OrderItem{
		{ProductID: domain.NewID(), Name: "Linen shirt", Quantity: 2, UnitPrice: decimal.NewFromInt(100)},
		{ProductID: domain.NewID(), Name: "Canvas tote", Quantity: 1, UnitPrice: decimal.RequireFromString("49.50")},
	}
}

func validAddress() *domain.ShippingAddress {
	return &domain.ShippingAddress{Address: "1 Main St", City: "Pune", PostalCode: "411001", Country: "IN"}
}

func TestOrderValidate(t *testing.T) {
	items := validItems()
	total := domain.ComputeTotal(items)

	tests := []struct {
		name    string
		order   domain.Order
		wantErr bool
	}{
		{
			name: "valid registered order",
			order: domain.Order{
				OrderType:       domain.OrderTypeRegistered,
				UserID:          "user-1",
				Items:           items,
				ShippingAddress: validAddress(),
				TotalPrice:      total,
			},
		},
		{
			name: "valid guest order",
			order: domain.Order{
				OrderType:       domain.OrderTypeGuest,
				GuestID:         "guest-1",
				GuestInfo:       &domain.GuestContact{Email: "g@example.com", Phone: "555"},
				Items:           items,
				ShippingAddress: validAddress(),
				TotalPrice:      total,
			},
		},
		{
			name: "retail order without shipping address",
			order: domain.Order{
				OrderType:  domain.OrderTypeRetail,
				UserID:     "admin-1",
				Items:      items,
				TotalPrice: total,
			},
		},
		{
			name: "no items",
			order: domain.Order{
				OrderType:       domain.OrderTypeRegistered,
				UserID:          "user-1",
				ShippingAddress: validAddress(),
			},
			wantErr: true,
		},
		{
			name: "zero quantity",
			order: domain.Order{
				OrderType:       domain.OrderTypeRegistered,
				UserID:          "user-1",
				Items:           []domain.OrderItem{{ProductID: "p", Quantity: 0, UnitPrice: decimal.NewFromInt(1)}},
				ShippingAddress: validAddress(),
			},
			wantErr: true,
		},
		{
			name: "both user and guest",
			order: domain.Order{
				OrderType:       domain.OrderTypeRegistered,
				UserID:          "user-1",
				GuestID:         "guest-1",
				Items:           items,
				ShippingAddress: validAddress(),
				TotalPrice:      total,
			},
			wantErr: true,
		},
		{
			name: "guest order without contact snapshot",
			order: domain.Order{
				OrderType:       domain.OrderTypeGuest,
				GuestID:         "guest-1",
				Items:           items,
				ShippingAddress: validAddress(),
				TotalPrice:      total,
			},
			wantErr: true,
		},
		{
			name: "missing shipping address",
			order: domain.Order{
				OrderType:  domain.OrderTypeRegistered,
				UserID:     "user-1",
				Items:      items,
				TotalPrice: total,
			},
			wantErr: true,
		},
		{
			name: "total does not match items",
			order: domain.Order{
				OrderType:  domain.OrderTypeRetail,
				UserID:     "admin-1",
				Items:      items,
				TotalPrice: total.Add(decimal.NewFromInt(1)),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.order.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Order.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, domain.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestComputeTotal(t *testing.T) {
	got := domain.ComputeTotal(validItems())
	want := decimal.RequireFromString("249.50")
	if !got.Equal(want) {
		t.Errorf("ComputeTotal() = %s, want %s", got, want)
	}
}

func TestOrderIsTerminal(t *testing.T) {
	tests := []struct {
		name   string
		status domain.OrderStatus
		want   bool
	}{
		{"delivered is terminal", domain.StatusDelivered, true},
		{"cancelled is terminal", domain.StatusCancelled, true},
		{"refunded is terminal", domain.StatusRefunded, true},
		{"processing is not terminal", domain.StatusProcessing, false},
		{"paid is not terminal", domain.StatusPaid, false},
		{"shipped is not terminal", domain.StatusShipped, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := domain.Order{Status: tt.status}
			if got := order.IsTerminal(); got != tt.want {
				t.Errorf("Order.IsTerminal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOrderTransitionTo(t *testing.T) {
	tests := []struct {
		from domain.OrderStatus
		to   domain.OrderStatus
		ok   bool
	}{
		{domain.StatusProcessing, domain.StatusPaid, true},
		{domain.StatusProcessing, domain.StatusCancelled, true},
		{domain.StatusProcessing, domain.StatusShipped, false},
		{domain.StatusProcessing, domain.StatusRefunded, false},
		{domain.StatusPaid, domain.StatusShipped, true},
		{domain.StatusPaid, domain.StatusDelivered, true},
		{domain.StatusPaid, domain.StatusRefunded, true},
		{domain.StatusPaid, domain.StatusCancelled, true},
		{domain.StatusShipped, domain.StatusDelivered, true},
		{domain.StatusShipped, domain.StatusPaid, false},
		{domain.StatusDelivered, domain.StatusCancelled, false},
		{domain.StatusCancelled, domain.StatusPaid, false},
		{domain.StatusRefunded, domain.StatusPaid, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			order := domain.Order{Status: tt.from}
			now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

			err := order.TransitionTo(tt.to, now)

			if tt.ok {
				if err != nil {
					t.Fatalf("expected no error, got: %v", err)
				}
				if order.Status != tt.to {
					t.Errorf("expected status %s, got %s", tt.to, order.Status)
				}
				return
			}
			if !errors.Is(err, domain.ErrInvalidTransition) {
				t.Fatalf("expected ErrInvalidTransition, got: %v", err)
			}
			if order.Status != tt.from {
				t.Errorf("status changed on rejected transition: %s", order.Status)
			}
		})
	}

	t.Run("delivered stamps delivery time", func(t *testing.T) {
		order := domain.Order{Status: domain.StatusShipped}
		now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

		if err := order.TransitionTo(domain.StatusDelivered, now); err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if order.DeliveredAt == nil || !order.DeliveredAt.Equal(now) {
			t.Errorf("expected delivered_at %v, got %v", now, order.DeliveredAt)
		}
	})
}

func TestOrderAccessibleBy(t *testing.T) {
	registered := domain.Order{OrderType: domain.OrderTypeRegistered, UserID: "user-1"}
	guest := domain.Order{
		OrderType: domain.OrderTypeGuest,
		GuestID:   "guest-1",
		GuestInfo: &domain.GuestContact{Email: "Guest@Example.com", Phone: "5550100"},
	}

	tests := []struct {
		name     string
		order    domain.Order
		identity domain.Identity
		want     bool
	}{
		{"owner", registered, domain.Identity{UserID: "user-1", Role: domain.RoleCustomer}, true},
		{"other user", registered, domain.Identity{UserID: "user-2", Role: domain.RoleCustomer}, false},
		{"admin", registered, domain.Identity{UserID: "admin", Role: domain.RoleAdmin}, true},
		{"guest with matching contact", guest, domain.GuestIdentity(domain.GuestContact{Email: "guest@example.com", Phone: "5550100"}), true},
		{"guest with wrong phone", guest, domain.GuestIdentity(domain.GuestContact{Email: "guest@example.com", Phone: "5550199"}), false},
		{"guest reading registered order", registered, domain.GuestIdentity(domain.GuestContact{Email: "guest@example.com", Phone: "5550100"}), false},
		{"anonymous", guest, domain.Identity{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.order.AccessibleBy(tt.identity); got != tt.want {
				t.Errorf("AccessibleBy() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseOrderStatus(t *testing.T) {
	status, ok := domain.ParseOrderStatus("shipped")
	if !ok || status != domain.StatusShipped {
		t.Errorf("ParseOrderStatus(shipped) = %q, %v", status, ok)
	}
	if _, ok := domain.ParseOrderStatus("lost"); ok {
		t.Error("expected unknown status to be rejected")
	}
}
