package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

// Store provides an in-memory transactional store useful for local development and tests.
// Transactions are serialised behind a single mutex and rolled back from a snapshot on error.
type Store struct {
	mu    sync.Mutex
	state *state
}

type state struct {
	products map[string]domain.Product
	orders   map[string]domain.Order
	payments map[string]domain.Payment
	guests   map[string]domain.Guest
	users    map[string]domain.User
	carts    map[string]domain.Cart
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{state: &state{
		products: make(map[string]domain.Product),
		orders:   make(map[string]domain.Order),
		payments: make(map[string]domain.Payment),
		guests:   make(map[string]domain.Guest),
		users:    make(map[string]domain.User),
		carts:    make(map[string]domain.Cart),
	}}
}

// InTx runs fn atomically. Any error or panic restores the state seen before fn ran.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	defer func() {
		if r := recover(); r != nil {
			s.state = snapshot
			panic(r)
		}
		if err != nil {
			s.state = snapshot
		}
	}()

	return fn(ctx, &tx{state: s.state})
}

// View runs fn with a consistent read of the store.
func (s *Store) View(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return fn(ctx, &tx{state: s.state})
}

func (st *state) clone() *state {
	return &state{
		products: maps.Clone(st.products),
		orders:   maps.Clone(st.orders),
		payments: maps.Clone(st.payments),
		guests:   maps.Clone(st.guests),
		users:    maps.Clone(st.users),
		carts:    maps.Clone(st.carts),
	}
}

type tx struct {
	state *state
}

func (t *tx) Catalog() ports.CatalogStore       { return &catalog{state: t.state} }
func (t *tx) Orders() ports.OrderRepository     { return &orderRepository{state: t.state} }
func (t *tx) Payments() ports.PaymentRepository { return &paymentRepository{state: t.state} }
func (t *tx) Guests() ports.GuestRepository     { return &guestRepository{state: t.state} }
func (t *tx) Users() ports.UserRepository       { return &userRepository{state: t.state} }
func (t *tx) Carts() ports.CartStore            { return &cartStore{state: t.state} }

// Stored values are deep-copied on the way in and out so callers never
// share slices or pointers with the store or with a rollback snapshot.

func cloneOrder(o domain.Order) domain.Order {
	o.Items = append([]domain.OrderItem(nil), o.Items...)
	if o.GuestInfo != nil {
		info := *o.GuestInfo
		o.GuestInfo = &info
	}
	if o.ShippingAddress != nil {
		addr := *o.ShippingAddress
		o.ShippingAddress = &addr
	}
	o.PaidAt = cloneTime(o.PaidAt)
	o.DeliveredAt = cloneTime(o.DeliveredAt)
	return o
}

func cloneCart(c domain.Cart) domain.Cart {
	c.Items = append([]domain.CartItem(nil), c.Items...)
	return c
}

func clonePayment(p domain.Payment) domain.Payment {
	p.Refunds = append([]domain.Refund(nil), p.Refunds...)
	p.Notes = maps.Clone(p.Notes)
	if p.GuestInfo != nil {
		info := *p.GuestInfo
		p.GuestInfo = &info
	}
	p.PaidAt = cloneTime(p.PaidAt)
	return p
}
