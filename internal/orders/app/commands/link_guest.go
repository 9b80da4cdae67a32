package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

// LinkGuestCommand converts a guest into a registered user by moving its
// orders and payments onto the account. Admins may link on behalf of UserID.
type LinkGuestCommand struct {
	GuestID  string
	UserID   string
	Identity domain.Identity
}

func (c LinkGuestCommand) Validate() error {
	if !c.Identity.IsRegistered() {
		return domain.ErrUnauthorized
	}
	if strings.TrimSpace(c.GuestID) == "" {
		return domain.NewValidationError("guest_id is required", map[string]string{"guest_id": "required"})
	}
	if c.UserID != "" && c.UserID != c.Identity.UserID && !c.Identity.IsAdmin() {
		return domain.ErrUnauthorized
	}
	return nil
}

func (c LinkGuestCommand) targetUser() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.Identity.UserID
}

type LinkGuestResult struct {
	Guest         *domain.Guest
	OrdersMoved   int
	PaymentsMoved int
}

type LinkGuestCommandHandler struct {
	tx     ports.TxManager
	logger *slog.Logger
}

func NewLinkGuestCommandHandler(tx ports.TxManager, logger *slog.Logger) *LinkGuestCommandHandler {
	return &LinkGuestCommandHandler{tx: tx, logger: logger}
}

func (h *LinkGuestCommandHandler) Handle(ctx context.Context, cmd LinkGuestCommand) (*LinkGuestResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	userID := cmd.targetUser()
	result := &LinkGuestResult{}

	err := h.tx.InTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		user, err := tx.Users().GetByID(ctx, userID)
		if err != nil {
			return err
		}

		guest, err := tx.Guests().GetByGuestID(ctx, strings.TrimSpace(cmd.GuestID))
		if err != nil {
			return err
		}

		if !cmd.Identity.IsAdmin() && domain.NormalizeEmail(user.Email) != guest.Email {
			return domain.ErrUnauthorized
		}

		switch {
		case guest.LinkedUserID == user.ID:
			// Already converted, re-running only sweeps stragglers.
		case guest.LinkedUserID != "":
			return domain.ErrConflict
		case !guest.CanConvertToUser():
			return domain.NewValidationError("guest cannot be converted to a user", map[string]string{"guest_id": guest.GuestID})
		default:
			guest.LinkTo(user.ID, time.Now().UTC())
			if err := tx.Guests().Update(ctx, *guest); err != nil {
				return err
			}
		}

		if result.OrdersMoved, err = tx.Orders().ReassignGuestOrders(ctx, guest.ID, user.ID); err != nil {
			return err
		}
		if result.PaymentsMoved, err = tx.Payments().ReassignGuestPayments(ctx, guest.ID, user.ID); err != nil {
			return err
		}
		result.Guest = guest
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.logger.InfoContext(ctx, "guest linked to user",
		"guest_id", result.Guest.GuestID,
		"user_id", userID,
		"orders_moved", result.OrdersMoved,
		"payments_moved", result.PaymentsMoved,
	)
	return result, nil
}
