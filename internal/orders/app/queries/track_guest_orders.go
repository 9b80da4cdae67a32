package queries

import (
	"context"
	"strings"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

// TrackGuestOrdersQuery lets a guest find orders with the email and phone
// used at checkout. An optional OrderRef narrows the result to one order.
type TrackGuestOrdersQuery struct {
	Email    string
	Phone    string
	OrderRef string
}

type GuestOrders struct {
	Guest  domain.Guest
	Orders []domain.Order
}

type TrackGuestOrdersQueryHandler struct {
	tx ports.TxManager
}

func NewTrackGuestOrdersQueryHandler(tx ports.TxManager) *TrackGuestOrdersQueryHandler {
	return &TrackGuestOrdersQueryHandler{tx: tx}
}

func (h *TrackGuestOrdersQueryHandler) Handle(ctx context.Context, query TrackGuestOrdersQuery) (*GuestOrders, error) {
	fields := map[string]string{}
	if strings.TrimSpace(query.Email) == "" {
		fields["email"] = "required"
	}
	if strings.TrimSpace(query.Phone) == "" {
		fields["phone"] = "required"
	}
	if len(fields) > 0 {
		return nil, domain.NewValidationError("email and phone are required", fields)
	}

	var ref *domain.OrderRef
	if strings.TrimSpace(query.OrderRef) != "" {
		parsed, err := domain.ParseOrderRef(query.OrderRef)
		if err != nil {
			return nil, err
		}
		ref = &parsed
	}

	result := &GuestOrders{}
	err := h.tx.View(ctx, func(ctx context.Context, tx ports.Tx) error {
		guest, err := tx.Guests().FindActiveByEmail(ctx, query.Email)
		if err != nil {
			return err
		}
		if !guest.Contact().Matches(query.Email, query.Phone) {
			return domain.NotFound("guest", domain.NormalizeEmail(query.Email))
		}
		result.Guest = *guest

		if ref != nil {
			order, err := FindOrder(ctx, tx.Orders(), *ref)
			if err != nil {
				return err
			}
			if order.GuestID != guest.ID {
				return domain.NotFound("order", ref.Value)
			}
			result.Orders = []domain.Order{*order}
			return nil
		}

		result.Orders, err = tx.Orders().List(ctx, ports.ListFilter{GuestID: guest.ID, PageSize: 100})
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
