package commands

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

// customer is the owner attached to a new order.
type customer struct {
	orderType domain.OrderType
	userID    string
	guestID   string
	guestInfo *domain.GuestContact
}

// resolveCustomer maps the caller onto a registered user or a guest record.
func resolveCustomer(ctx context.Context, tx ports.Tx, identity domain.Identity, meta domain.SessionMeta, now time.Time) (customer, error) {
	if identity.IsRegistered() {
		return customer{orderType: domain.OrderTypeRegistered, userID: identity.UserID}, nil
	}
	if identity.Guest == nil {
		return customer{}, domain.ErrUnauthorized
	}

	guest, err := ResolveOrCreateGuest(ctx, tx.Guests(), *identity.Guest, meta, now)
	if err != nil {
		return customer{}, err
	}

	info := guest.Contact()
	return customer{orderType: domain.OrderTypeGuest, guestID: guest.ID, guestInfo: &info}, nil
}

// ResolveOrCreateGuest returns the active guest for the contact's email,
// refreshing its activity, or creates one.
func ResolveOrCreateGuest(ctx context.Context, guests ports.GuestRepository, contact domain.GuestContact, meta domain.SessionMeta, now time.Time) (*domain.Guest, error) {
	guest, err := guests.FindActiveByEmail(ctx, contact.Email)
	switch {
	case err == nil:
		guest.Touch(contact, meta, now)
		if err := guests.Update(ctx, *guest); err != nil {
			return nil, err
		}
		return guest, nil
	case errors.Is(err, domain.ErrNotFound):
		created := domain.NewGuest(contact, meta, now)
		if err := guests.Create(ctx, created); err != nil {
			return nil, err
		}
		return &created, nil
	default:
		return nil, err
	}
}

func validateIdentity(identity domain.Identity, requireName bool) error {
	if identity.IsRegistered() {
		return nil
	}
	if identity.Guest == nil {
		return domain.NewValidationError("guest_info is required for guest checkout", map[string]string{
			"guest_info": "required",
		})
	}
	return validateGuestContact(*identity.Guest, requireName)
}

func validateGuestContact(contact domain.GuestContact, requireName bool) error {
	fields := map[string]string{}
	email := strings.TrimSpace(contact.Email)
	if email == "" || !strings.Contains(email, "@") {
		fields["guest_info.email"] = "a valid email is required"
	}
	if strings.TrimSpace(contact.Phone) == "" {
		fields["guest_info.phone"] = "phone is required"
	}
	if requireName && strings.TrimSpace(contact.Name) == "" {
		fields["guest_info.name"] = "name is required"
	}
	if len(fields) > 0 {
		return domain.NewValidationError("invalid guest contact", fields)
	}
	return nil
}

func requireAdmin(identity domain.Identity) error {
	if identity.Role != domain.RoleAdmin || identity.UserID == "" {
		return domain.ErrUnauthorized
	}
	return nil
}
