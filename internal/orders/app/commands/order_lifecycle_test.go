package commands_test

import (
	"context"
	"testing"
	"time"

	"github.com/dejobratic/storefront/internal/orders/app/commands"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCancelOrder(t *testing.T) {
	ctx := context.Background()
	asAdmin := domain.UserIdentity(admin)

	t.Run("restores exactly the committed quantities", func(t *testing.T) {
		c := newCheckout(t)
		p1 := c.addProduct(t, "Lamp", 100, 5)
		p2 := c.addProduct(t, "Shade", 20, 4)
		order := c.placeOrder(t, domain.UserIdentity(customer), line(p1.ID, 2), line(p2.ID, 3))
		c.pay(t, domain.UserIdentity(customer), order.ID)
		require.Equal(t, 3, c.stockOf(t, p1.ID))
		require.Equal(t, 1, c.stockOf(t, p2.ID))

		cancelled, err := c.cancel.Handle(ctx, commands.CancelOrderCommand{OrderRef: order.OrderNumber, Identity: asAdmin})
		require.NoError(t, err)

		assert.Equal(t, domain.StatusCancelled, cancelled.Status)
		assert.False(t, cancelled.StockCommitted)
		assert.Equal(t, 5, c.stockOf(t, p1.ID))
		assert.Equal(t, 4, c.stockOf(t, p2.ID))
		assert.Equal(t, []string{order.ID}, c.events.cancelled)
	})

	t.Run("leaves stock alone for uncommitted orders", func(t *testing.T) {
		c := newCheckout(t)
		p1 := c.addProduct(t, "Lamp", 100, 5)
		order := c.placeOrder(t, domain.UserIdentity(customer), line(p1.ID, 2))

		_, err := c.cancel.Handle(ctx, commands.CancelOrderCommand{OrderRef: order.ID, Identity: asAdmin})
		require.NoError(t, err)

		assert.Equal(t, 5, c.stockOf(t, p1.ID))
	})

	t.Run("cannot cancel twice", func(t *testing.T) {
		c := newCheckout(t)
		p1 := c.addProduct(t, "Lamp", 100, 5)
		order, err := c.create.HandleRetail(ctx, commands.CreateRetailOrderCommand{
			Items:    []commands.OrderLine{line(p1.ID, 2)},
			Identity: asAdmin,
		})
		require.NoError(t, err)

		_, err = c.cancel.Handle(ctx, commands.CancelOrderCommand{OrderRef: order.ID, Identity: asAdmin})
		require.NoError(t, err)
		_, err = c.cancel.Handle(ctx, commands.CancelOrderCommand{OrderRef: order.ID, Identity: asAdmin})

		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		assert.Equal(t, 5, c.stockOf(t, p1.ID))
	})

	t.Run("is admin only", func(t *testing.T) {
		c := newCheckout(t)
		p1 := c.addProduct(t, "Lamp", 100, 5)
		order := c.placeOrder(t, domain.UserIdentity(customer), line(p1.ID, 2))

		_, err := c.cancel.Handle(ctx, commands.CancelOrderCommand{OrderRef: order.ID, Identity: domain.UserIdentity(customer)})
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})
}

func TestUpdateOrderStatus(t *testing.T) {
	ctx := context.Background()
	asAdmin := domain.UserIdentity(admin)

	t.Run("walks a paid order to delivered", func(t *testing.T) {
		c := newCheckout(t)
		p1 := c.addProduct(t, "Lamp", 100, 5)
		order := c.placeOrder(t, domain.UserIdentity(customer), line(p1.ID, 1))
		c.pay(t, domain.UserIdentity(customer), order.ID)

		shipped, err := c.status.Handle(ctx, commands.UpdateOrderStatusCommand{OrderRef: order.ID, Status: "Shipped", Identity: asAdmin})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusShipped, shipped.Status)

		delivered, err := c.status.Handle(ctx, commands.UpdateOrderStatusCommand{OrderRef: order.UUID, Status: "delivered", Identity: asAdmin})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusDelivered, delivered.Status)
		assert.NotNil(t, delivered.DeliveredAt)
	})

	t.Run("routes cancellation through stock restoration", func(t *testing.T) {
		c := newCheckout(t)
		p1 := c.addProduct(t, "Lamp", 100, 5)
		order := c.placeOrder(t, domain.UserIdentity(customer), line(p1.ID, 2))
		c.pay(t, domain.UserIdentity(customer), order.ID)

		_, err := c.status.Handle(ctx, commands.UpdateOrderStatusCommand{OrderRef: order.ID, Status: "Cancelled", Identity: asAdmin})
		require.NoError(t, err)

		assert.Equal(t, 5, c.stockOf(t, p1.ID))
	})

	t.Run("rejects illegal transitions", func(t *testing.T) {
		c := newCheckout(t)
		p1 := c.addProduct(t, "Lamp", 100, 5)
		order := c.placeOrder(t, domain.UserIdentity(customer), line(p1.ID, 1))

		_, err := c.status.Handle(ctx, commands.UpdateOrderStatusCommand{OrderRef: order.ID, Status: "Shipped", Identity: asAdmin})
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("reserves Paid and Refunded for their own flows", func(t *testing.T) {
		c := newCheckout(t)
		p1 := c.addProduct(t, "Lamp", 100, 5)
		order := c.placeOrder(t, domain.UserIdentity(customer), line(p1.ID, 1))

		for _, status := range []string{"Paid", "Refunded", "Lost"} {
			_, err := c.status.Handle(ctx, commands.UpdateOrderStatusCommand{OrderRef: order.ID, Status: status, Identity: asAdmin})
			assert.ErrorIs(t, err, domain.ErrValidation, status)
		}
	})
}

func TestLinkGuest(t *testing.T) {
	ctx := context.Background()
	convert := domain.GuestContact{Email: customer.Email, Name: "Ana", Phone: "+15550101"}

	guestRecord := func(t *testing.T, c *checkout, email string) domain.Guest {
		var g *domain.Guest
		err := c.store.View(ctx, func(ctx context.Context, tx ports.Tx) error {
			var err error
			g, err = tx.Guests().FindActiveByEmail(ctx, email)
			return err
		})
		require.NoError(t, err)
		return *g
	}

	t.Run("moves guest orders and payments onto the user", func(t *testing.T) {
		c := newCheckout(t)
		p1 := c.addProduct(t, "Lamp", 100, 5)
		first := c.placeOrder(t, domain.GuestIdentity(convert), line(p1.ID, 1))
		second := c.placeOrder(t, domain.GuestIdentity(convert), line(p1.ID, 1))
		c.pay(t, domain.GuestIdentity(convert), first.ID)
		g := guestRecord(t, c, customer.Email)

		result, err := c.link.Handle(ctx, commands.LinkGuestCommand{GuestID: g.GuestID, Identity: domain.UserIdentity(customer)})
		require.NoError(t, err)

		assert.Equal(t, 2, result.OrdersMoved)
		assert.Equal(t, 1, result.PaymentsMoved)
		assert.False(t, result.Guest.IsActive)
		assert.True(t, result.Guest.AccountCreated)
		assert.Equal(t, customer.ID, result.Guest.LinkedUserID)
		for _, id := range []string{first.ID, second.ID} {
			moved := c.order(t, id)
			assert.Equal(t, domain.OrderTypeRegistered, moved.OrderType)
			assert.Equal(t, customer.ID, moved.UserID)
			assert.Empty(t, moved.GuestID)
		}
	})

	t.Run("running twice changes nothing", func(t *testing.T) {
		c := newCheckout(t)
		p1 := c.addProduct(t, "Lamp", 100, 5)
		order := c.placeOrder(t, domain.GuestIdentity(convert), line(p1.ID, 1))
		g := guestRecord(t, c, customer.Email)
		cmd := commands.LinkGuestCommand{GuestID: g.GuestID, Identity: domain.UserIdentity(customer)}

		_, err := c.link.Handle(ctx, cmd)
		require.NoError(t, err)
		before := c.order(t, order.ID)

		again, err := c.link.Handle(ctx, cmd)
		require.NoError(t, err)

		assert.Zero(t, again.OrdersMoved)
		assert.Zero(t, again.PaymentsMoved)
		assert.False(t, again.Guest.IsActive)
		assert.Equal(t, before, c.order(t, order.ID))
	})

	t.Run("refuses guests owned by someone else", func(t *testing.T) {
		c := newCheckout(t)
		p1 := c.addProduct(t, "Lamp", 100, 5)
		c.placeOrder(t, domain.GuestIdentity(guest), line(p1.ID, 1))
		g := guestRecord(t, c, guest.Email)

		_, err := c.link.Handle(ctx, commands.LinkGuestCommand{GuestID: g.GuestID, Identity: domain.UserIdentity(customer)})
		assert.ErrorIs(t, err, domain.ErrUnauthorized)

		_, err = c.link.Handle(ctx, commands.LinkGuestCommand{GuestID: g.GuestID, UserID: customer.ID, Identity: domain.UserIdentity(admin)})
		require.NoError(t, err)

		_, err = c.link.Handle(ctx, commands.LinkGuestCommand{GuestID: g.GuestID, UserID: admin.ID, Identity: domain.UserIdentity(admin)})
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("unknown guests are not found", func(t *testing.T) {
		c := newCheckout(t)
		_, err := c.link.Handle(ctx, commands.LinkGuestCommand{GuestID: "guest_missing", Identity: domain.UserIdentity(customer)})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestPurgeGuests(t *testing.T) {
	ctx := context.Background()
	c := newCheckout(t)
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	old := now.Add(-100 * 24 * time.Hour)

	stale := domain.NewGuest(domain.GuestContact{Email: "stale@example.com", Phone: "1"}, domain.SessionMeta{}, old)
	recent := domain.NewGuest(domain.GuestContact{Email: "recent@example.com", Phone: "2"}, domain.SessionMeta{}, now.Add(-time.Hour))
	buyer := domain.NewGuest(domain.GuestContact{Email: "buyer@example.com", Phone: "3"}, domain.SessionMeta{}, old)
	err := c.store.InTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		for _, g := range []domain.Guest{stale, recent, buyer} {
			if err := tx.Guests().Create(ctx, g); err != nil {
				return err
			}
		}
		info := buyer.Contact()
		return tx.Orders().Create(ctx, domain.Order{
			ID:          domain.NewID(),
			OrderNumber: "ORD-2025-02-20-000001",
			UUID:        domain.NewOrderUUID(),
			OrderType:   domain.OrderTypeGuest,
			GuestID:     buyer.ID,
			GuestInfo:   &info,
			Status:      domain.StatusProcessing,
			CreatedAt:   old,
		})
	})
	require.NoError(t, err)

	purged, err := c.purge.Handle(ctx, commands.PurgeGuestsCommand{Now: now})
	require.NoError(t, err)

	assert.Equal(t, 1, purged)
	err = c.store.View(ctx, func(ctx context.Context, tx ports.Tx) error {
		_, err := tx.Guests().GetByGuestID(ctx, stale.GuestID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = tx.Guests().GetByGuestID(ctx, recent.GuestID)
		assert.NoError(t, err)
		_, err = tx.Guests().GetByGuestID(ctx, buyer.GuestID)
		assert.NoError(t, err)
		return nil
	})
	require.NoError(t, err)
}
