package commands_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dejobratic/storefront/internal/orders/app/commands"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/shopspring/decimal"
)

func TestCreateOrder(t *testing.T) {
	t.Run("snapshots prices and defers stock for registered users", func(t *testing.T) {
		c := newCheckout(t)
		p1 := c.addProduct(t, "Lamp", 100, 5)

		order := c.placeOrder(t, domain.UserIdentity(customer), line(p1.ID, 2))

		if !order.TotalPrice.Equal(decimal.NewFromInt(200)) {
			t.Errorf("expected total 200, got %s", order.TotalPrice)
		}
		if order.Status != domain.StatusProcessing {
			t.Errorf("expected status %s, got %s", domain.StatusProcessing, order.Status)
		}
		if order.PaymentStatus != domain.BillingPending {
			t.Errorf("expected payment status pending, got %s", order.PaymentStatus)
		}
		if order.OrderType != domain.OrderTypeRegistered || order.UserID != customer.ID {
			t.Errorf("expected registered order for %s, got %s/%s", customer.ID, order.OrderType, order.UserID)
		}
		if order.StockCommitted {
			t.Error("expected stock not to be committed")
		}
		if got := c.stockOf(t, p1.ID); got != 5 {
			t.Errorf("expected stock 5, got %d", got)
		}
		if !domain.IsOrderNumber(order.OrderNumber) {
			t.Errorf("expected a valid order number, got %q", order.OrderNumber)
		}
		if len(c.events.placed) != 1 || c.events.placed[0] != order.ID {
			t.Errorf("expected order.placed event for %s, got %v", order.ID, c.events.placed)
		}
	})

	t.Run("later price changes do not touch placed orders", func(t *testing.T) {
		c := newCheckout(t)
		p1 := c.addProduct(t, "Lamp", 100, 5)
		order := c.placeOrder(t, domain.UserIdentity(customer), line(p1.ID, 2))

		newPrice := decimal.NewFromInt(150)
		_, err := c.catalog.UpdateProduct(context.Background(), commands.UpdateProductCommand{
			ProductID: p1.ID,
			Price:     &newPrice,
			Identity:  domain.UserIdentity(admin),
		})
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}

		stored := c.order(t, order.ID)
		if !stored.TotalPrice.Equal(decimal.NewFromInt(200)) {
			t.Errorf("expected total 200, got %s", stored.TotalPrice)
		}
		if !stored.Items[0].UnitPrice.Equal(decimal.NewFromInt(100)) {
			t.Errorf("expected unit price 100, got %s", stored.Items[0].UnitPrice)
		}
		if !domain.ComputeTotal(stored.Items).Equal(stored.TotalPrice) {
			t.Error("expected line items to sum to the total")
		}
	})

	t.Run("merges repeated lines before checking stock", func(t *testing.T) {
		c := newCheckout(t)
		p1 := c.addProduct(t, "Lamp", 100, 3)

		_, err := c.create.Handle(context.Background(), commands.CreateOrderCommand{
			Items:           []commands.OrderLine{line(p1.ID, 2), line(p1.ID, 2)},
			ShippingAddress: address,
			PaymentMethod:   "razorpay",
			Identity:        domain.UserIdentity(customer),
		})

		var stockErr *domain.InsufficientStockError
		if !errors.As(err, &stockErr) {
			t.Fatalf("expected InsufficientStockError, got: %v", err)
		}
		if stockErr.Available != 3 || stockErr.Requested != 4 {
			t.Errorf("expected available 3 requested 4, got %d/%d", stockErr.Available, stockErr.Requested)
		}
	})

	t.Run("creates guest record and snapshots contact", func(t *testing.T) {
		c := newCheckout(t)
		p1 := c.addProduct(t, "Lamp", 100, 5)

		first := c.placeOrder(t, domain.GuestIdentity(guest), line(p1.ID, 1))
		second := c.placeOrder(t, domain.GuestIdentity(guest), line(p1.ID, 1))

		if first.OrderType != domain.OrderTypeGuest {
			t.Errorf("expected guest order, got %s", first.OrderType)
		}
		if first.GuestID == "" || first.GuestID != second.GuestID {
			t.Errorf("expected both orders on one guest, got %q and %q", first.GuestID, second.GuestID)
		}
		if first.GuestInfo == nil || first.GuestInfo.Email != "guest@example.com" {
			t.Errorf("expected normalised guest email, got %+v", first.GuestInfo)
		}
	})

	t.Run("rejects unknown products", func(t *testing.T) {
		c := newCheckout(t)

		_, err := c.create.Handle(context.Background(), commands.CreateOrderCommand{
			Items:           []commands.OrderLine{line("65a1f0c2e4b0a1b2c3d4e5ff", 1)},
			ShippingAddress: address,
			PaymentMethod:   "razorpay",
			Identity:        domain.UserIdentity(customer),
		})

		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got: %v", err)
		}
	})

	t.Run("rejects malformed requests before touching the store", func(t *testing.T) {
		c := newCheckout(t)

		tests := []struct {
			name string
			cmd  commands.CreateOrderCommand
		}{
			{"no items", commands.CreateOrderCommand{ShippingAddress: address, PaymentMethod: "card", Identity: domain.UserIdentity(customer)}},
			{"zero quantity", commands.CreateOrderCommand{Items: []commands.OrderLine{line("x", 0)}, ShippingAddress: address, PaymentMethod: "card", Identity: domain.UserIdentity(customer)}},
			{"no address", commands.CreateOrderCommand{Items: []commands.OrderLine{line("x", 1)}, PaymentMethod: "card", Identity: domain.UserIdentity(customer)}},
			{"no payment method", commands.CreateOrderCommand{Items: []commands.OrderLine{line("x", 1)}, ShippingAddress: address, Identity: domain.UserIdentity(customer)}},
			{"guest without phone", commands.CreateOrderCommand{Items: []commands.OrderLine{line("x", 1)}, ShippingAddress: address, PaymentMethod: "card", Identity: domain.GuestIdentity(domain.GuestContact{Email: "a@b.c", Name: "A"})}},
			{"anonymous", commands.CreateOrderCommand{Items: []commands.OrderLine{line("x", 1)}, ShippingAddress: address, PaymentMethod: "card"}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := c.create.Handle(context.Background(), tt.cmd)
				if !errors.Is(err, domain.ErrValidation) {
					t.Errorf("expected ErrValidation, got: %v", err)
				}
			})
		}
	})

	t.Run("event bus failures do not fail the order", func(t *testing.T) {
		c := newCheckout(t)
		c.events.err = errors.New("broker down")
		p1 := c.addProduct(t, "Lamp", 100, 5)

		order := c.placeOrder(t, domain.UserIdentity(customer), line(p1.ID, 1))

		if order.ID == "" {
			t.Fatal("expected order to be created")
		}
	})
}

func TestCreateRetailOrder(t *testing.T) {
	t.Run("decrements immediately and marks paid", func(t *testing.T) {
		c := newCheckout(t)
		p1 := c.addProduct(t, "Lamp", 100, 5)

		order, err := c.create.HandleRetail(context.Background(), commands.CreateRetailOrderCommand{
			Items:    []commands.OrderLine{line(p1.ID, 2)},
			Identity: domain.UserIdentity(admin),
		})
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}

		if order.Status != domain.StatusPaid || order.PaymentStatus != domain.BillingPaid {
			t.Errorf("expected Paid/paid, got %s/%s", order.Status, order.PaymentStatus)
		}
		if order.OrderType != domain.OrderTypeRetail || !order.StockCommitted {
			t.Errorf("expected committed retail order, got %s committed=%v", order.OrderType, order.StockCommitted)
		}
		if order.PaymentMethod != "cash" {
			t.Errorf("expected default method cash, got %s", order.PaymentMethod)
		}
		if got := c.stockOf(t, p1.ID); got != 3 {
			t.Errorf("expected stock 3, got %d", got)
		}
	})

	t.Run("only admins may sell at the counter", func(t *testing.T) {
		c := newCheckout(t)
		p1 := c.addProduct(t, "Lamp", 100, 5)

		_, err := c.create.HandleRetail(context.Background(), commands.CreateRetailOrderCommand{
			Items:    []commands.OrderLine{line(p1.ID, 1)},
			Identity: domain.UserIdentity(customer),
		})

		if !errors.Is(err, domain.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got: %v", err)
		}
	})

	t.Run("rolls back every decrement when a later line fails", func(t *testing.T) {
		c := newCheckout(t)
		p1 := c.addProduct(t, "Lamp", 100, 5)
		p2 := c.addProduct(t, "Shade", 20, 1)

		_, err := c.create.HandleRetail(context.Background(), commands.CreateRetailOrderCommand{
			Items:    []commands.OrderLine{line(p1.ID, 2), line(p2.ID, 2)},
			Identity: domain.UserIdentity(admin),
		})

		if !errors.Is(err, domain.ErrInsufficientStock) {
			t.Fatalf("expected ErrInsufficientStock, got: %v", err)
		}
		if got := c.stockOf(t, p1.ID); got != 5 {
			t.Errorf("expected stock 5 after rollback, got %d", got)
		}
	})

	t.Run("rejects a mismatched expected total", func(t *testing.T) {
		c := newCheckout(t)
		p1 := c.addProduct(t, "Lamp", 100, 5)
		expected := decimal.NewFromInt(150)

		_, err := c.create.HandleRetail(context.Background(), commands.CreateRetailOrderCommand{
			Items:         []commands.OrderLine{line(p1.ID, 2)},
			ExpectedTotal: &expected,
			Identity:      domain.UserIdentity(admin),
		})

		if !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected ErrValidation, got: %v", err)
		}
		if got := c.stockOf(t, p1.ID); got != 5 {
			t.Errorf("expected stock 5, got %d", got)
		}
	})

	t.Run("concurrent sales never oversell", func(t *testing.T) {
		c := newCheckout(t)
		const stock, attempts, perOrder = 10, 8, 3
		p1 := c.addProduct(t, "Lamp", 100, stock)

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded int
			rejected  int
		)
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := c.create.HandleRetail(context.Background(), commands.CreateRetailOrderCommand{
					Items:    []commands.OrderLine{line(p1.ID, perOrder)},
					Identity: domain.UserIdentity(admin),
				})
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					succeeded++
				case errors.Is(err, domain.ErrInsufficientStock):
					rejected++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		if succeeded != stock/perOrder {
			t.Errorf("expected %d successful sales, got %d", stock/perOrder, succeeded)
		}
		if rejected != attempts-succeeded {
			t.Errorf("expected %d rejections, got %d", attempts-succeeded, rejected)
		}
		if got := c.stockOf(t, p1.ID); got != stock%perOrder {
			t.Errorf("expected remaining stock %d, got %d", stock%perOrder, got)
		}
	})
}
