package memory

import (
	"context"
	"sort"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

type orderRepository struct {
	state *state
}

// Create stores a new order, enforcing unique order numbers and UUIDs.
func (r *orderRepository) Create(_ context.Context, order domain.Order) error {
	for _, existing := range r.state.orders {
		if existing.OrderNumber == order.OrderNumber || existing.UUID == order.UUID {
			return domain.ErrDuplicateOrderNumber
		}
	}
	if _, ok := r.state.orders[order.ID]; ok {
		return domain.ErrConflict
	}
	r.state.orders[order.ID] = cloneOrder(order)
	return nil
}

// GetByID fetches a single order by identifier.
func (r *orderRepository) GetByID(_ context.Context, id string) (*domain.Order, error) {
	order, ok := r.state.orders[id]
	if !ok {
		return nil, domain.NotFound("order", id)
	}
	copy := cloneOrder(order)
	return &copy, nil
}

func (r *orderRepository) GetByNumber(_ context.Context, orderNumber string) (*domain.Order, error) {
	return r.find(orderNumber, func(o domain.Order) bool { return o.OrderNumber == orderNumber })
}

func (r *orderRepository) GetByUUID(_ context.Context, uuid string) (*domain.Order, error) {
	return r.find(uuid, func(o domain.Order) bool { return o.UUID == uuid })
}

func (r *orderRepository) find(ref string, match func(domain.Order) bool) (*domain.Order, error) {
	for _, order := range r.state.orders {
		if match(order) {
			copy := cloneOrder(order)
			return &copy, nil
		}
	}
	return nil, domain.NotFound("order", ref)
}

// List returns orders respecting the provided filter, newest first. Pagination is 1-based.
func (r *orderRepository) List(_ context.Context, filter ports.ListFilter) ([]domain.Order, error) {
	offset := filter.Normalize()

	var result []domain.Order
	for _, order := range r.state.orders {
		if filter.Status != nil && order.Status != *filter.Status {
			continue
		}
		if filter.OrderType != nil && order.OrderType != *filter.OrderType {
			continue
		}
		if filter.UserID != "" && order.UserID != filter.UserID {
			continue
		}
		if filter.GuestID != "" && order.GuestID != filter.GuestID {
			continue
		}
		result = append(result, cloneOrder(order))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return paginate(result, offset, filter.PageSize), nil
}

// Update replaces a stored order.
func (r *orderRepository) Update(_ context.Context, order domain.Order) error {
	if _, ok := r.state.orders[order.ID]; !ok {
		return domain.NotFound("order", order.ID)
	}
	r.state.orders[order.ID] = cloneOrder(order)
	return nil
}

func (r *orderRepository) ReassignGuestOrders(_ context.Context, guestID, userID string) (int, error) {
	count := 0
	for id, order := range r.state.orders {
		if order.GuestID != guestID {
			continue
		}
		order.GuestID = ""
		order.UserID = userID
		order.OrderType = domain.OrderTypeRegistered
		r.state.orders[id] = order
		count++
	}
	return count, nil
}

type paymentRepository struct {
	state *state
}

func (r *paymentRepository) Create(_ context.Context, payment domain.Payment) error {
	if _, ok := r.state.payments[payment.ID]; ok {
		return domain.ErrConflict
	}
	if r.gatewayIDTaken(payment.ID, payment.GatewayOrderID, payment.GatewayPaymentID) {
		return domain.ErrConflict
	}
	r.state.payments[payment.ID] = clonePayment(payment)
	return nil
}

// gatewayIDTaken mirrors the unique indexes on the gateway identifiers. Blank ids never collide.
func (r *paymentRepository) gatewayIDTaken(self, gatewayOrderID, gatewayPaymentID string) bool {
	for id, other := range r.state.payments {
		if id == self {
			continue
		}
		if gatewayOrderID != "" && other.GatewayOrderID == gatewayOrderID {
			return true
		}
		if gatewayPaymentID != "" && other.GatewayPaymentID == gatewayPaymentID {
			return true
		}
	}
	return false
}

func (r *paymentRepository) GetByID(_ context.Context, id string) (*domain.Payment, error) {
	payment, ok := r.state.payments[id]
	if !ok {
		return nil, domain.NotFound("payment", id)
	}
	copy := clonePayment(payment)
	return &copy, nil
}

func (r *paymentRepository) GetByGatewayOrderID(_ context.Context, gatewayOrderID string) (*domain.Payment, error) {
	for _, payment := range r.state.payments {
		if gatewayOrderID != "" && payment.GatewayOrderID == gatewayOrderID {
			copy := clonePayment(payment)
			return &copy, nil
		}
	}
	return nil, domain.NotFound("payment", gatewayOrderID)
}

func (r *paymentRepository) ListByOrder(_ context.Context, orderID string) ([]domain.Payment, error) {
	var result []domain.Payment
	for _, payment := range r.state.payments {
		if payment.OrderID == orderID {
			result = append(result, clonePayment(payment))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (r *paymentRepository) Update(_ context.Context, payment domain.Payment) error {
	if _, ok := r.state.payments[payment.ID]; !ok {
		return domain.NotFound("payment", payment.ID)
	}
	if r.gatewayIDTaken(payment.ID, payment.GatewayOrderID, payment.GatewayPaymentID) {
		return domain.ErrConflict
	}
	r.state.payments[payment.ID] = clonePayment(payment)
	return nil
}

func (r *paymentRepository) ReassignGuestPayments(_ context.Context, guestID, userID string) (int, error) {
	count := 0
	for id, payment := range r.state.payments {
		if payment.GuestID != guestID {
			continue
		}
		payment.GuestID = ""
		payment.UserID = userID
		payment.PaymentType = domain.OrderTypeRegistered
		r.state.payments[id] = payment
		count++
	}
	return count, nil
}
