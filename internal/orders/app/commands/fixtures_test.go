package commands_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/dejobratic/storefront/internal/orders/adapters/memory"
	"github.com/dejobratic/storefront/internal/orders/app/commands"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/shopspring/decimal"
)

const validSignature = "valid-signature"

var (
	customer = domain.User{ID: "65a1f0c2e4b0a1b2c3d4e501", Email: "ana@example.com", Name: "Ana", Role: domain.RoleCustomer, APIKeyLookup: "lookup-ana"}
	admin    = domain.User{ID: "65a1f0c2e4b0a1b2c3d4e502", Email: "ops@example.com", Name: "Ops", Role: domain.RoleAdmin, APIKeyLookup: "lookup-ops"}
	guest    = domain.GuestContact{Email: "Guest@Example.com", Name: "Gia", Phone: "+15550100"}
	address  = &domain.ShippingAddress{Address: "1 Main St", City: "Springfield", PostalCode: "12345", Country: "US"}
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockGateway struct {
	mu           sync.Mutex
	createFn     func(ctx context.Context, req ports.RemoteOrderRequest) (*ports.RemoteOrder, error)
	fetchFn      func(ctx context.Context, id string) (*ports.RemotePayment, error)
	refundFn     func(ctx context.Context, id string, amountMinor int64) (*ports.RemoteRefund, error)
	createdCalls int
	refundCalls  int
}

func (m *mockGateway) CreateOrder(ctx context.Context, req ports.RemoteOrderRequest) (*ports.RemoteOrder, error) {
	m.mu.Lock()
	m.createdCalls++
	n := m.createdCalls
	m.mu.Unlock()
	if m.createFn != nil {
		return m.createFn(ctx, req)
	}
	return &ports.RemoteOrder{
		ID:          fmt.Sprintf("order_gw%04d", n),
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
		Status:      "created",
	}, nil
}

func (m *mockGateway) VerifySignature(_, _, signature string) bool {
	return signature == validSignature
}

func (m *mockGateway) FetchPayment(ctx context.Context, id string) (*ports.RemotePayment, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx, id)
	}
	return &ports.RemotePayment{ID: id, Method: "upi", Status: "captured"}, nil
}

func (m *mockGateway) CreateRefund(ctx context.Context, id string, amountMinor int64, _ map[string]string) (*ports.RemoteRefund, error) {
	m.mu.Lock()
	m.refundCalls++
	n := m.refundCalls
	m.mu.Unlock()
	if m.refundFn != nil {
		return m.refundFn(ctx, id, amountMinor)
	}
	return &ports.RemoteRefund{ID: fmt.Sprintf("rfnd_%04d", n), AmountMinor: amountMinor, Status: "processed"}, nil
}

type recordingEventBus struct {
	mu        sync.Mutex
	placed    []string
	captured  []string
	cancelled []string
	refunded  []string
	stranded  []string
	err       error
}

func (b *recordingEventBus) PublishOrderPlaced(_ context.Context, order domain.Order) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.placed = append(b.placed, order.ID)
	return b.err
}

func (b *recordingEventBus) PublishPaymentCaptured(_ context.Context, order domain.Order, _ domain.Payment) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.captured = append(b.captured, order.ID)
	return b.err
}

func (b *recordingEventBus) PublishOrderCancelled(_ context.Context, order domain.Order) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cancelled = append(b.cancelled, order.ID)
	return b.err
}

func (b *recordingEventBus) PublishPaymentRefunded(_ context.Context, payment domain.Payment, _ domain.Refund) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refunded = append(b.refunded, payment.ID)
	return b.err
}

func (b *recordingEventBus) PublishPaymentCaptureFailed(_ context.Context, _ domain.Order, payment domain.Payment, _ string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stranded = append(b.stranded, payment.ID)
	return b.err
}

// checkout wires every command handler against one in-memory store.
type checkout struct {
	store   *memory.Store
	gateway *mockGateway
	events  *recordingEventBus

	create   *commands.CreateOrderCommandHandler
	payOrder *commands.CreatePaymentOrderCommandHandler
	verify   *commands.VerifyPaymentCommandHandler
	cancel   *commands.CancelOrderCommandHandler
	status   *commands.UpdateOrderStatusCommandHandler
	refund   *commands.CreateRefundCommandHandler
	link     *commands.LinkGuestCommandHandler
	purge    *commands.PurgeGuestsCommandHandler
	catalog  *commands.CatalogCommandHandler
	cart     *commands.CartCommandHandler
}

func newCheckout(t *testing.T) *checkout {
	t.Helper()

	store := memory.NewStore()
	gateway := &mockGateway{}
	events := &recordingEventBus{}
	logger := discardLogger()

	cancel := commands.NewCancelOrderCommandHandler(store, events, logger)
	c := &checkout{
		store:    store,
		gateway:  gateway,
		events:   events,
		create:   commands.NewCreateOrderCommandHandler(store, events, logger, domain.DefaultOrderNumberPrefix),
		payOrder: commands.NewCreatePaymentOrderCommandHandler(store, gateway, logger, "rzp_test_key", domain.CurrencyINR),
		verify:   commands.NewVerifyPaymentCommandHandler(store, gateway, events, logger),
		cancel:   cancel,
		status:   commands.NewUpdateOrderStatusCommandHandler(store, cancel, logger),
		refund:   commands.NewCreateRefundCommandHandler(store, gateway, events, logger),
		link:     commands.NewLinkGuestCommandHandler(store, logger),
		purge:    commands.NewPurgeGuestsCommandHandler(store, logger),
		catalog:  commands.NewCatalogCommandHandler(store, logger),
		cart:     commands.NewCartCommandHandler(store, logger),
	}

	err := store.InTx(context.Background(), func(ctx context.Context, tx ports.Tx) error {
		if err := tx.Users().Create(ctx, customer); err != nil {
			return err
		}
		return tx.Users().Create(ctx, admin)
	})
	if err != nil {
		t.Fatalf("expected no error seeding users, got: %v", err)
	}
	return c
}

func (c *checkout) addProduct(t *testing.T, name string, price int64, stock int) domain.Product {
	t.Helper()
	product, err := c.catalog.CreateProduct(context.Background(), commands.CreateProductCommand{
		Name:         name,
		Price:        decimal.NewFromInt(price),
		CountInStock: stock,
		Identity:     domain.UserIdentity(admin),
	})
	if err != nil {
		t.Fatalf("expected no error creating product, got: %v", err)
	}
	return *product
}

func (c *checkout) stockOf(t *testing.T, productID string) int {
	t.Helper()
	var stock int
	err := c.store.View(context.Background(), func(ctx context.Context, tx ports.Tx) error {
		p, err := tx.Catalog().FindProduct(ctx, productID)
		if err != nil {
			return err
		}
		stock = p.CountInStock
		return nil
	})
	if err != nil {
		t.Fatalf("expected no error reading stock, got: %v", err)
	}
	return stock
}

func (c *checkout) order(t *testing.T, id string) domain.Order {
	t.Helper()
	var order domain.Order
	err := c.store.View(context.Background(), func(ctx context.Context, tx ports.Tx) error {
		o, err := tx.Orders().GetByID(ctx, id)
		if err != nil {
			return err
		}
		order = *o
		return nil
	})
	if err != nil {
		t.Fatalf("expected no error reading order, got: %v", err)
	}
	return order
}

func (c *checkout) payments(t *testing.T, orderID string) []domain.Payment {
	t.Helper()
	var payments []domain.Payment
	err := c.store.View(context.Background(), func(ctx context.Context, tx ports.Tx) error {
		var err error
		payments, err = tx.Payments().ListByOrder(ctx, orderID)
		return err
	})
	if err != nil {
		t.Fatalf("expected no error listing payments, got: %v", err)
	}
	return payments
}

func (c *checkout) placeOrder(t *testing.T, identity domain.Identity, lines ...commands.OrderLine) *domain.Order {
	t.Helper()
	order, err := c.create.Handle(context.Background(), commands.CreateOrderCommand{
		Items:           lines,
		ShippingAddress: address,
		PaymentMethod:   "razorpay",
		Identity:        identity,
	})
	if err != nil {
		t.Fatalf("expected no error placing order, got: %v", err)
	}
	return order
}

// pay opens a gateway order and verifies it with a valid signature.
func (c *checkout) pay(t *testing.T, identity domain.Identity, orderID string) *commands.VerifyPaymentResult {
	t.Helper()
	ctx := context.Background()

	opened, err := c.payOrder.Handle(ctx, commands.CreatePaymentOrderCommand{OrderRef: orderID, Identity: identity})
	if err != nil {
		t.Fatalf("expected no error creating payment order, got: %v", err)
	}

	result, err := c.verify.Handle(ctx, commands.VerifyPaymentCommand{
		GatewayOrderID:   opened.Payment.GatewayOrderID,
		GatewayPaymentID: "pay_" + orderID[len(orderID)-6:],
		Signature:        validSignature,
		Identity:         identity,
	})
	if err != nil {
		t.Fatalf("expected no error verifying payment, got: %v", err)
	}
	return result
}

func line(productID string, qty int) commands.OrderLine {
	return commands.OrderLine{ProductID: productID, Quantity: qty}
}
