package queries

import (
	"context"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

// ListOrdersQuery lists orders. Customers only ever see their own orders;
// admins may filter by any owner.
type ListOrdersQuery struct {
	Identity  domain.Identity
	Status    string
	OrderType string
	UserID    string
	Page      int
	PageSize  int
}

type OrderPage struct {
	Orders   []domain.Order
	Page     int
	PageSize int
}

type ListOrdersQueryHandler struct {
	tx ports.TxManager
}

func NewListOrdersQueryHandler(tx ports.TxManager) *ListOrdersQueryHandler {
	return &ListOrdersQueryHandler{tx: tx}
}

func (h *ListOrdersQueryHandler) Handle(ctx context.Context, query ListOrdersQuery) (*OrderPage, error) {
	if !query.Identity.IsRegistered() {
		return nil, domain.ErrUnauthorized
	}

	filter := ports.ListFilter{Page: query.Page, PageSize: query.PageSize}
	if query.Status != "" {
		status, ok := domain.ParseOrderStatus(query.Status)
		if !ok {
			return nil, domain.NewValidationError("unknown order status", map[string]string{"status": query.Status})
		}
		filter.Status = &status
	}
	if query.OrderType != "" {
		orderType := domain.OrderType(query.OrderType)
		switch orderType {
		case domain.OrderTypeRegistered, domain.OrderTypeGuest, domain.OrderTypeRetail:
			filter.OrderType = &orderType
		default:
			return nil, domain.NewValidationError("unknown order type", map[string]string{"order_type": query.OrderType})
		}
	}

	if query.Identity.IsAdmin() {
		filter.UserID = query.UserID
	} else {
		filter.UserID = query.Identity.UserID
	}

	var orders []domain.Order
	err := h.tx.View(ctx, func(ctx context.Context, tx ports.Tx) error {
		var err error
		orders, err = tx.Orders().List(ctx, filter)
		return err
	})
	if err != nil {
		return nil, err
	}

	filter.Normalize()
	return &OrderPage{Orders: orders, Page: filter.Page, PageSize: filter.PageSize}, nil
}
