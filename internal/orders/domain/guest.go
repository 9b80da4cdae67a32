package domain

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// DefaultGuestRetention is how long an unconverted guest is kept.
const DefaultGuestRetention = 90 * 24 * time.Hour

// SessionMeta is the request context captured when a guest checks out.
type SessionMeta struct {
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// Guest is an unauthenticated customer keyed by email.
type Guest struct {
	ID             string      `json:"id"`
	GuestID        string      `json:"guest_id"`
	Email          string      `json:"email"`
	Name           string      `json:"name"`
	Phone          string      `json:"phone"`
	AccountCreated bool        `json:"account_created"`
	LinkedUserID   string      `json:"linked_user_id,omitempty"`
	IsActive       bool        `json:"is_active"`
	Session        SessionMeta `json:"session"`
	LastActivity   time.Time   `json:"last_activity"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// NewGuest builds an active guest for a first checkout.
func NewGuest(contact GuestContact, meta SessionMeta, now time.Time) Guest {
	return Guest{
		ID:           NewID(),
		GuestID:      NewGuestID(now),
		Email:        NormalizeEmail(contact.Email),
		Name:         strings.TrimSpace(contact.Name),
		Phone:        strings.TrimSpace(contact.Phone),
		IsActive:     true,
		Session:      meta,
		LastActivity: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NewGuestID returns the public identifier handed to guests.
func NewGuestID(now time.Time) string {
	id := ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy())
	return "guest_" + strings.ToLower(id.String())
}

func (g Guest) CanConvertToUser() bool {
	return !g.AccountCreated && g.IsActive
}

// Touch refreshes the activity timestamp and the latest contact details.
func (g *Guest) Touch(contact GuestContact, meta SessionMeta, now time.Time) {
	if name := strings.TrimSpace(contact.Name); name != "" {
		g.Name = name
	}
	if phone := strings.TrimSpace(contact.Phone); phone != "" {
		g.Phone = phone
	}
	if meta != (SessionMeta{}) {
		g.Session = meta
	}
	g.LastActivity = now
	g.UpdatedAt = now
}

// LinkTo marks the guest as converted into the given user account.
func (g *Guest) LinkTo(userID string, now time.Time) {
	g.AccountCreated = true
	g.IsActive = false
	g.LinkedUserID = userID
	g.UpdatedAt = now
}

// Contact returns the snapshot stored on orders and payments.
func (g Guest) Contact() GuestContact {
	return GuestContact{Email: g.Email, Name: g.Name, Phone: g.Phone}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
