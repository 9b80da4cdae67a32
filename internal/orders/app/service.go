package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dejobratic/storefront/internal/orders/app/commands"
	"github.com/dejobratic/storefront/internal/orders/app/queries"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/metrics"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

// Options carries the settings the use cases need from configuration.
type Options struct {
	OrderNumberPrefix string
	GatewayKeyID      string
	Currency          domain.Currency
	GuestRetention    time.Duration
}

// Service bundles the checkout use cases for the API.
type Service struct {
	idemStore ports.IdempotencyStore
	retention time.Duration

	createOrder        commands.Handler[commands.CreateOrderCommand, *domain.Order]
	createRetailOrder  commands.Handler[commands.CreateRetailOrderCommand, *domain.Order]
	createPaymentOrder commands.Handler[commands.CreatePaymentOrderCommand, *commands.PaymentOrderResult]
	verifyPayment      commands.Handler[commands.VerifyPaymentCommand, *commands.VerifyPaymentResult]
	cancelOrder        commands.Handler[commands.CancelOrderCommand, *domain.Order]
	updateStatus       commands.Handler[commands.UpdateOrderStatusCommand, *domain.Order]
	createRefund       commands.Handler[commands.CreateRefundCommand, *commands.RefundResult]
	linkGuest          commands.Handler[commands.LinkGuestCommand, *commands.LinkGuestResult]
	purgeGuests        commands.Handler[commands.PurgeGuestsCommand, int]
	catalogCommands    *commands.CatalogCommandHandler
	cartCommands       *commands.CartCommandHandler

	getOrder     *queries.GetOrderQueryHandler
	listOrders   *queries.ListOrdersQueryHandler
	trackGuest   *queries.TrackGuestOrdersQueryHandler
	getPayment   *queries.GetPaymentQueryHandler
	catalogReads *queries.CatalogQueryHandler
	getCart      *queries.CartQueryHandler
	authenticate *queries.AuthenticateQueryHandler
}

// NewService wires required dependencies.
func NewService(
	tx ports.TxManager,
	gateway ports.PaymentGateway,
	events ports.EventBus,
	idem ports.IdempotencyStore,
	logger *slog.Logger,
	m *metrics.Metrics,
	opts Options,
) *Service {
	if opts.OrderNumberPrefix == "" {
		opts.OrderNumberPrefix = domain.DefaultOrderNumberPrefix
	}
	if opts.GuestRetention <= 0 {
		opts.GuestRetention = domain.DefaultGuestRetention
	}

	create := commands.NewCreateOrderCommandHandler(tx, events, logger, opts.OrderNumberPrefix)
	cancel := commands.NewCancelOrderCommandHandler(tx, events, logger)

	return &Service{
		idemStore: idem,
		retention: opts.GuestRetention,

		createOrder: commands.NewObservableHandler[commands.CreateOrderCommand, *domain.Order]("CreateOrder", create, logger, m).
			WithRecorder(recordOrderCreated(m)),
		createRetailOrder: commands.NewObservableHandler("CreateRetailOrder", create.RetailHandler(), logger, m).
			WithRecorder(recordOrderCreated(m)),
		createPaymentOrder: commands.NewObservableHandler[commands.CreatePaymentOrderCommand, *commands.PaymentOrderResult](
			"CreatePaymentOrder",
			commands.NewCreatePaymentOrderCommandHandler(tx, gateway, logger, opts.GatewayKeyID, opts.Currency),
			logger, m,
		),
		verifyPayment: commands.NewObservableHandler[commands.VerifyPaymentCommand, *commands.VerifyPaymentResult](
			"VerifyPayment",
			commands.NewVerifyPaymentCommandHandler(tx, gateway, events, logger),
			logger, m,
		).WithRecorder(func(ctx context.Context, result *commands.VerifyPaymentResult, err error, _ time.Duration) {
			m.RecordPaymentVerification(ctx, verificationOutcome(result, err))
			if errors.Is(err, domain.ErrInsufficientStock) {
				m.RecordStockRejection(ctx)
			}
		}),
		cancelOrder: commands.NewObservableHandler[commands.CancelOrderCommand, *domain.Order]("CancelOrder", cancel, logger, m),
		updateStatus: commands.NewObservableHandler[commands.UpdateOrderStatusCommand, *domain.Order](
			"UpdateOrderStatus",
			commands.NewUpdateOrderStatusCommandHandler(tx, cancel, logger),
			logger, m,
		),
		createRefund: commands.NewObservableHandler[commands.CreateRefundCommand, *commands.RefundResult](
			"CreateRefund",
			commands.NewCreateRefundCommandHandler(tx, gateway, events, logger),
			logger, m,
		).WithRecorder(func(ctx context.Context, result *commands.RefundResult, err error, _ time.Duration) {
			if err == nil {
				m.RecordRefund(ctx, result.Full)
			}
		}),
		linkGuest: commands.NewObservableHandler[commands.LinkGuestCommand, *commands.LinkGuestResult](
			"LinkGuest",
			commands.NewLinkGuestCommandHandler(tx, logger),
			logger, m,
		),
		purgeGuests: commands.NewObservableHandler[commands.PurgeGuestsCommand, int](
			"PurgeGuests",
			commands.NewPurgeGuestsCommandHandler(tx, logger),
			logger, m,
		).WithRecorder(func(ctx context.Context, purged int, err error, _ time.Duration) {
			if err == nil {
				m.RecordGuestsPurged(ctx, purged)
			}
		}),
		catalogCommands: commands.NewCatalogCommandHandler(tx, logger),
		cartCommands:    commands.NewCartCommandHandler(tx, logger),

		getOrder:     queries.NewGetOrderQueryHandler(tx),
		listOrders:   queries.NewListOrdersQueryHandler(tx),
		trackGuest:   queries.NewTrackGuestOrdersQueryHandler(tx),
		getPayment:   queries.NewGetPaymentQueryHandler(tx),
		catalogReads: queries.NewCatalogQueryHandler(tx),
		getCart:      queries.NewCartQueryHandler(tx),
		authenticate: queries.NewAuthenticateQueryHandler(tx),
	}
}

func recordOrderCreated(m *metrics.Metrics) func(context.Context, *domain.Order, error, time.Duration) {
	return func(ctx context.Context, order *domain.Order, err error, duration time.Duration) {
		m.RecordOrderCreationDuration(ctx, duration.Seconds())
		if err != nil {
			m.RecordOrderCreated(ctx, "unknown", false)
			if errors.Is(err, domain.ErrInsufficientStock) {
				m.RecordStockRejection(ctx)
			}
			return
		}
		m.RecordOrderCreated(ctx, string(order.OrderType), true)
	}
}

func verificationOutcome(result *commands.VerifyPaymentResult, err error) string {
	switch {
	case err == nil && result.AlreadyVerified:
		return "already_verified"
	case err == nil:
		return "verified"
	case errors.Is(err, domain.ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	default:
		return "failed"
	}
}

func (s *Service) CreateOrder(ctx context.Context, cmd commands.CreateOrderCommand) (*domain.Order, error) {
	return s.createOrder.Handle(ctx, cmd)
}

func (s *Service) CreateRetailOrder(ctx context.Context, cmd commands.CreateRetailOrderCommand) (*domain.Order, error) {
	return s.createRetailOrder.Handle(ctx, cmd)
}

func (s *Service) CreatePaymentOrder(ctx context.Context, cmd commands.CreatePaymentOrderCommand) (*commands.PaymentOrderResult, error) {
	return s.createPaymentOrder.Handle(ctx, cmd)
}

func (s *Service) VerifyPayment(ctx context.Context, cmd commands.VerifyPaymentCommand) (*commands.VerifyPaymentResult, error) {
	return s.verifyPayment.Handle(ctx, cmd)
}

func (s *Service) CancelOrder(ctx context.Context, cmd commands.CancelOrderCommand) (*domain.Order, error) {
	return s.cancelOrder.Handle(ctx, cmd)
}

func (s *Service) UpdateOrderStatus(ctx context.Context, cmd commands.UpdateOrderStatusCommand) (*domain.Order, error) {
	return s.updateStatus.Handle(ctx, cmd)
}

func (s *Service) CreateRefund(ctx context.Context, cmd commands.CreateRefundCommand) (*commands.RefundResult, error) {
	return s.createRefund.Handle(ctx, cmd)
}

func (s *Service) LinkGuest(ctx context.Context, cmd commands.LinkGuestCommand) (*commands.LinkGuestResult, error) {
	return s.linkGuest.Handle(ctx, cmd)
}

// PurgeGuests removes stale guests using the configured retention.
func (s *Service) PurgeGuests(ctx context.Context) (int, error) {
	return s.purgeGuests.Handle(ctx, commands.PurgeGuestsCommand{Retention: s.retention})
}

func (s *Service) CreateProduct(ctx context.Context, cmd commands.CreateProductCommand) (*domain.Product, error) {
	return s.catalogCommands.CreateProduct(ctx, cmd)
}

func (s *Service) UpdateProduct(ctx context.Context, cmd commands.UpdateProductCommand) (*domain.Product, error) {
	return s.catalogCommands.UpdateProduct(ctx, cmd)
}

func (s *Service) SetStock(ctx context.Context, cmd commands.SetStockCommand) (*domain.Product, error) {
	return s.catalogCommands.SetStock(ctx, cmd)
}

func (s *Service) AddCartItem(ctx context.Context, cmd commands.CartItemCommand) (*domain.CartView, error) {
	return s.cartCommands.AddItem(ctx, cmd)
}

func (s *Service) UpdateCartItem(ctx context.Context, cmd commands.CartItemCommand) (*domain.CartView, error) {
	return s.cartCommands.SetItemQuantity(ctx, cmd)
}

func (s *Service) RemoveCartItem(ctx context.Context, cmd commands.RemoveCartItemCommand) (*domain.CartView, error) {
	return s.cartCommands.RemoveItem(ctx, cmd)
}

func (s *Service) ClearCart(ctx context.Context, cmd commands.ClearCartCommand) (*domain.CartView, error) {
	return s.cartCommands.Clear(ctx, cmd)
}

func (s *Service) SyncCart(ctx context.Context, cmd commands.SyncCartCommand) (*domain.CartView, error) {
	return s.cartCommands.Sync(ctx, cmd)
}

func (s *Service) GetCart(ctx context.Context, query queries.GetCartQuery) (*domain.CartView, error) {
	return s.getCart.Handle(ctx, query)
}

func (s *Service) GetOrder(ctx context.Context, query queries.GetOrderQuery) (*domain.Order, error) {
	return s.getOrder.Handle(ctx, query)
}

func (s *Service) ListOrders(ctx context.Context, query queries.ListOrdersQuery) (*queries.OrderPage, error) {
	return s.listOrders.Handle(ctx, query)
}

func (s *Service) TrackGuestOrders(ctx context.Context, query queries.TrackGuestOrdersQuery) (*queries.GuestOrders, error) {
	return s.trackGuest.Handle(ctx, query)
}

func (s *Service) GetPayment(ctx context.Context, query queries.GetPaymentQuery) (*domain.Payment, error) {
	return s.getPayment.Handle(ctx, query)
}

func (s *Service) ListProducts(ctx context.Context, query queries.ListProductsQuery) ([]domain.Product, error) {
	return s.catalogReads.ListProducts(ctx, query)
}

func (s *Service) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return s.catalogReads.GetProduct(ctx, id)
}

func (s *Service) SearchProducts(ctx context.Context, query queries.SearchProductsQuery) ([]domain.Product, error) {
	return s.catalogReads.SearchProducts(ctx, query)
}

func (s *Service) FeaturedProducts(ctx context.Context, limit int) ([]domain.Product, error) {
	return s.catalogReads.FeaturedProducts(ctx, limit)
}

func (s *Service) NewArrivals(ctx context.Context, limit int) ([]domain.Product, error) {
	return s.catalogReads.NewArrivals(ctx, limit)
}

func (s *Service) LowStock(ctx context.Context, query queries.LowStockQuery) ([]domain.Product, error) {
	return s.catalogReads.LowStock(ctx, query)
}

// Authenticate resolves a bearer API key to the user it was issued to.
func (s *Service) Authenticate(ctx context.Context, key string) (*domain.User, error) {
	return s.authenticate.Handle(ctx, key)
}

// ReserveIdempotencyKey claims key before an order is placed. A non-nil
// result is the entry that already holds the key.
func (s *Service) ReserveIdempotencyKey(ctx context.Context, key, requestHash string) (*ports.StoredResponse, error) {
	return s.idemStore.Reserve(ctx, key, requestHash)
}

// CompleteIdempotencyKey stores the response replayed for later retries.
func (s *Service) CompleteIdempotencyKey(ctx context.Context, key string, response ports.StoredResponse) error {
	return s.idemStore.Complete(ctx, key, response)
}

// ReleaseIdempotencyKey frees a key whose request failed so it can be retried.
func (s *Service) ReleaseIdempotencyKey(ctx context.Context, key string) error {
	return s.idemStore.Release(ctx, key)
}
