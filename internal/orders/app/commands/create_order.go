package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/shopspring/decimal"
)

const (
	orderNumberAttempts  = 3
	orderNumberRetryWait = 5 * time.Millisecond
	retailPaymentMethod  = "cash"
)

// OrderLine is a product and quantity requested at checkout.
type OrderLine struct {
	ProductID string
	Quantity  int
}

// CreateOrderCommand places a standard order. Stock is validated but only
// decremented once payment is verified. With FromCart set the lines come from
// the caller's saved cart, which is emptied when the order is placed.
type CreateOrderCommand struct {
	Items           []OrderLine
	FromCart        bool
	ShippingAddress *domain.ShippingAddress
	PaymentMethod   string
	Identity        domain.Identity
	Session         domain.SessionMeta
}

func (c CreateOrderCommand) Validate() error {
	if c.FromCart {
		if !c.Identity.IsRegistered() {
			return domain.ErrUnauthorized
		}
		if len(c.Items) > 0 {
			return domain.NewValidationError("items and from_cart are mutually exclusive", map[string]string{
				"items": "must be empty when from_cart is set",
			})
		}
	} else if err := validateLines(c.Items); err != nil {
		return err
	}
	if c.ShippingAddress == nil {
		return domain.NewValidationError("shipping_address is required", map[string]string{"shipping_address": "required"})
	}
	if err := c.ShippingAddress.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.PaymentMethod) == "" {
		return domain.NewValidationError("payment_method is required", map[string]string{"payment_method": "required"})
	}
	return validateIdentity(c.Identity, true)
}

// CreateRetailOrderCommand records an in-person sale. Stock is decremented
// immediately and the order starts out paid.
type CreateRetailOrderCommand struct {
	Items         []OrderLine
	PaymentMethod string
	Customer      *domain.GuestContact
	ExpectedTotal *decimal.Decimal
	Identity      domain.Identity
}

func (c CreateRetailOrderCommand) Validate() error {
	if err := requireAdmin(c.Identity); err != nil {
		return err
	}
	if err := validateLines(c.Items); err != nil {
		return err
	}
	if c.ExpectedTotal != nil && !c.ExpectedTotal.IsPositive() {
		return domain.NewValidationError("total_price must be positive", map[string]string{"total_price": "must be positive"})
	}
	return nil
}

func validateLines(lines []OrderLine) error {
	if len(lines) == 0 {
		return domain.NewValidationError("order must contain at least one item", map[string]string{"items": "required"})
	}
	for i, line := range lines {
		if strings.TrimSpace(line.ProductID) == "" {
			return domain.NewValidationError("product_id is required", map[string]string{
				fmt.Sprintf("items[%d].product_id", i): "required",
			})
		}
		if line.Quantity <= 0 || line.Quantity > domain.MaxLineQuantity {
			return domain.NewValidationError("quantity out of range", map[string]string{
				fmt.Sprintf("items[%d].quantity", i): fmt.Sprintf("must be between 1 and %d", domain.MaxLineQuantity),
			})
		}
	}
	return nil
}

// mergeLines folds repeated products into one line so stock is checked against the combined quantity.
func mergeLines(lines []OrderLine) []OrderLine {
	merged := make([]OrderLine, 0, len(lines))
	index := make(map[string]int, len(lines))
	for _, line := range lines {
		id := strings.TrimSpace(line.ProductID)
		if i, ok := index[id]; ok {
			merged[i].Quantity += line.Quantity
			continue
		}
		index[id] = len(merged)
		merged = append(merged, OrderLine{ProductID: id, Quantity: line.Quantity})
	}
	return merged
}

type CreateOrderCommandHandler struct {
	tx     ports.TxManager
	events ports.EventBus
	logger *slog.Logger
	prefix string
}

func NewCreateOrderCommandHandler(
	tx ports.TxManager,
	events ports.EventBus,
	logger *slog.Logger,
	orderNumberPrefix string,
) *CreateOrderCommandHandler {
	return &CreateOrderCommandHandler{
		tx:     tx,
		events: events,
		logger: logger,
		prefix: orderNumberPrefix,
	}
}

func (h *CreateOrderCommandHandler) Handle(ctx context.Context, cmd CreateOrderCommand) (*domain.Order, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	draft := orderDraft{
		lines:           mergeLines(cmd.Items),
		shippingAddress: cmd.ShippingAddress,
		paymentMethod:   strings.TrimSpace(cmd.PaymentMethod),
		identity:        cmd.Identity,
		session:         cmd.Session,
		fromCart:        cmd.FromCart,
	}

	order, err := h.place(ctx, draft)
	if err != nil {
		return nil, err
	}

	publish(ctx, h.logger, "order.placed", func(ctx context.Context) error {
		return h.events.PublishOrderPlaced(ctx, *order)
	})

	return order, nil
}

// HandleRetail places a point-of-sale order.
func (h *CreateOrderCommandHandler) HandleRetail(ctx context.Context, cmd CreateRetailOrderCommand) (*domain.Order, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	method := strings.TrimSpace(cmd.PaymentMethod)
	if method == "" {
		method = retailPaymentMethod
	}

	draft := orderDraft{
		lines:         mergeLines(cmd.Items),
		paymentMethod: method,
		identity:      cmd.Identity,
		retail:        true,
		customer:      cmd.Customer,
		expectedTotal: cmd.ExpectedTotal,
	}

	order, err := h.place(ctx, draft)
	if err != nil {
		return nil, err
	}

	publish(ctx, h.logger, "order.placed", func(ctx context.Context) error {
		return h.events.PublishOrderPlaced(ctx, *order)
	})

	return order, nil
}

// RetailHandler adapts HandleRetail to the Handler interface.
func (h *CreateOrderCommandHandler) RetailHandler() Handler[CreateRetailOrderCommand, *domain.Order] {
	return retailHandler{h}
}

type retailHandler struct{ h *CreateOrderCommandHandler }

func (r retailHandler) Handle(ctx context.Context, cmd CreateRetailOrderCommand) (*domain.Order, error) {
	return r.h.HandleRetail(ctx, cmd)
}

type orderDraft struct {
	lines           []OrderLine
	shippingAddress *domain.ShippingAddress
	paymentMethod   string
	identity        domain.Identity
	session         domain.SessionMeta
	retail          bool
	customer        *domain.GuestContact
	expectedTotal   *decimal.Decimal
	fromCart        bool
}

// place persists the order in one transaction, retrying the whole unit of
// work when the generated order number collides.
func (h *CreateOrderCommandHandler) place(ctx context.Context, draft orderDraft) (*domain.Order, error) {
	var order domain.Order

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(orderNumberRetryWait), orderNumberAttempts),
		ctx,
	)

	err := backoff.Retry(func() error {
		err := h.tx.InTx(ctx, func(ctx context.Context, tx ports.Tx) error {
			if draft.fromCart {
				lines, err := cartLines(ctx, tx, draft.identity.UserID)
				if err != nil {
					return err
				}
				draft.lines = lines
			}
			placed, err := h.build(ctx, tx, draft)
			if err != nil {
				return err
			}
			if err := tx.Orders().Create(ctx, *placed); err != nil {
				return err
			}
			if draft.fromCart {
				if err := tx.Carts().Delete(ctx, draft.identity.UserID); err != nil {
					return err
				}
			}
			order = *placed
			return nil
		})
		if errors.Is(err, domain.ErrDuplicateOrderNumber) {
			h.logger.WarnContext(ctx, "order number collision, retrying")
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}, policy)
	if err != nil {
		return nil, err
	}

	return &order, nil
}

// cartLines reads the user's cart, locked, as order lines.
func cartLines(ctx context.Context, tx ports.Tx, userID string) ([]OrderLine, error) {
	cart, err := tx.Carts().Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart.IsEmpty() {
		return nil, domain.NewValidationError("cart is empty", map[string]string{"cart": "add items before checking out"})
	}
	lines := make([]OrderLine, 0, len(cart.Items))
	for _, item := range cart.Items {
		lines = append(lines, OrderLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	if err := validateLines(lines); err != nil {
		return nil, err
	}
	return mergeLines(lines), nil
}

func (h *CreateOrderCommandHandler) build(ctx context.Context, tx ports.Tx, draft orderDraft) (*domain.Order, error) {
	now := time.Now().UTC()

	items := make([]domain.OrderItem, 0, len(draft.lines))
	for _, line := range draft.lines {
		product, err := tx.Catalog().FindProduct(ctx, line.ProductID)
		if err != nil {
			return nil, err
		}

		if draft.retail {
			if err := tx.Catalog().DecrementStock(ctx, product.ID, line.Quantity); err != nil {
				return nil, err
			}
		} else if !product.HasStock(line.Quantity) {
			return nil, &domain.InsufficientStockError{
				ProductID:   product.ID,
				ProductName: product.Name,
				Available:   product.CountInStock,
				Requested:   line.Quantity,
			}
		}

		items = append(items, domain.OrderItem{
			ProductID: product.ID,
			Name:      product.Name,
			Image:     product.Image,
			Quantity:  line.Quantity,
			UnitPrice: product.Price,
		})
	}

	total := domain.ComputeTotal(items)
	if draft.expectedTotal != nil && !draft.expectedTotal.Equal(total) {
		return nil, domain.NewValidationError("total price does not match line items", map[string]string{
			"total_price": total.String(),
		})
	}

	number, err := domain.NewOrderNumber(h.prefix, now)
	if err != nil {
		return nil, err
	}

	order := domain.Order{
		ID:              domain.NewID(),
		OrderNumber:     number,
		UUID:            domain.NewOrderUUID(),
		Items:           items,
		ShippingAddress: draft.shippingAddress,
		TotalPrice:      total,
		PaymentMethod:   draft.paymentMethod,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if draft.retail {
		order.OrderType = domain.OrderTypeRetail
		order.UserID = draft.identity.UserID
		order.GuestInfo = draft.customer
		order.Status = domain.StatusPaid
		order.PaymentStatus = domain.BillingPaid
		order.StockCommitted = true
		order.PaidAt = &now
	} else {
		owner, err := resolveCustomer(ctx, tx, draft.identity, draft.session, now)
		if err != nil {
			return nil, err
		}
		order.OrderType = owner.orderType
		order.UserID = owner.userID
		order.GuestID = owner.guestID
		order.GuestInfo = owner.guestInfo
		order.Status = domain.StatusProcessing
		order.PaymentStatus = domain.BillingPending
	}

	if err := order.Validate(); err != nil {
		return nil, err
	}

	return &order, nil
}
