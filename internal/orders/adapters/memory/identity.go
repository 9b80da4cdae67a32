package memory

import (
	"context"
	"time"

	"github.com/dejobratic/storefront/internal/orders/domain"
)

type guestRepository struct {
	state *state
}

func (r *guestRepository) Create(_ context.Context, guest domain.Guest) error {
	for _, existing := range r.state.guests {
		if existing.GuestID == guest.GuestID || (existing.IsActive && guest.IsActive && existing.Email == guest.Email) {
			return domain.ErrConflict
		}
	}
	r.state.guests[guest.ID] = guest
	return nil
}

func (r *guestRepository) FindActiveByEmail(_ context.Context, email string) (*domain.Guest, error) {
	email = domain.NormalizeEmail(email)
	for _, guest := range r.state.guests {
		if guest.IsActive && guest.Email == email {
			return &guest, nil
		}
	}
	return nil, domain.NotFound("guest", email)
}

func (r *guestRepository) GetByGuestID(_ context.Context, guestID string) (*domain.Guest, error) {
	for _, guest := range r.state.guests {
		if guest.GuestID == guestID {
			return &guest, nil
		}
	}
	return nil, domain.NotFound("guest", guestID)
}

func (r *guestRepository) Update(_ context.Context, guest domain.Guest) error {
	if _, ok := r.state.guests[guest.ID]; !ok {
		return domain.NotFound("guest", guest.GuestID)
	}
	r.state.guests[guest.ID] = guest
	return nil
}

// PurgeUnconverted deletes active, never-linked guests idle since before cutoff
// that have no orders.
func (r *guestRepository) PurgeUnconverted(_ context.Context, lastActiveBefore time.Time) (int, error) {
	withOrders := make(map[string]bool)
	for _, order := range r.state.orders {
		if order.GuestID != "" {
			withOrders[order.GuestID] = true
		}
	}

	count := 0
	for id, guest := range r.state.guests {
		if guest.AccountCreated || !guest.IsActive || withOrders[id] {
			continue
		}
		if guest.LastActivity.Before(lastActiveBefore) {
			delete(r.state.guests, id)
			count++
		}
	}
	return count, nil
}

type userRepository struct {
	state *state
}

func (r *userRepository) Create(_ context.Context, user domain.User) error {
	for _, existing := range r.state.users {
		if existing.ID == user.ID || existing.Email == user.Email || existing.APIKeyLookup == user.APIKeyLookup {
			return domain.ErrConflict
		}
	}
	r.state.users[user.ID] = user
	return nil
}

func (r *userRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	user, ok := r.state.users[id]
	if !ok {
		return nil, domain.NotFound("user", id)
	}
	return &user, nil
}

func (r *userRepository) GetByAPIKeyLookup(_ context.Context, lookup string) (*domain.User, error) {
	for _, user := range r.state.users {
		if user.APIKeyLookup == lookup {
			return &user, nil
		}
	}
	return nil, domain.NotFound("user", "api key")
}
