package domain

import (
	"strings"
	"time"
)

type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleAdmin    Role = "ADMIN"
)

// User is a registered account authenticated by API key.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	APIKeyHash   string    `json:"-"`
	APIKeyLookup string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// GuestContact is the contact information a guest supplies at checkout.
type GuestContact struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Matches reports whether the supplied email and phone identify this contact.
func (c GuestContact) Matches(email, phone string) bool {
	if c.Email == "" || c.Phone == "" {
		return false
	}
	return NormalizeEmail(c.Email) == NormalizeEmail(email) &&
		strings.TrimSpace(c.Phone) == strings.TrimSpace(phone)
}

// Identity is the caller of an operation: a registered user or a guest.
type Identity struct {
	UserID string
	Email  string
	Role   Role
	Guest  *GuestContact
}

func UserIdentity(u User) Identity {
	return Identity{UserID: u.ID, Email: u.Email, Role: u.Role}
}

func GuestIdentity(contact GuestContact) Identity {
	return Identity{Guest: &contact}
}

func (i Identity) IsAdmin() bool {
	return i.UserID != "" && i.Role == RoleAdmin
}

func (i Identity) IsRegistered() bool {
	return i.UserID != ""
}

func (i Identity) IsGuest() bool {
	return i.UserID == "" && i.Guest != nil
}
