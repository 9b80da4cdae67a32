package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dejobratic/storefront/internal/orders/adapters/memory"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/shopspring/decimal"
)

func seedProduct(t *testing.T, store *memory.Store, stock int) domain.Product {
	t.Helper()
	now := time.Now().UTC()
	product := domain.Product{
		ID:           domain.NewID(),
		Name:         "Lamp",
		Price:        decimal.NewFromInt(100),
		CountInStock: stock,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err := store.InTx(context.Background(), func(ctx context.Context, tx ports.Tx) error {
		return tx.Catalog().Create(ctx, product)
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	return product
}

func stock(t *testing.T, store *memory.Store, id string) int {
	t.Helper()
	var count int
	err := store.View(context.Background(), func(ctx context.Context, tx ports.Tx) error {
		p, err := tx.Catalog().FindProduct(ctx, id)
		if err != nil {
			return err
		}
		count = p.CountInStock
		return nil
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	return count
}

func TestStoreInTx(t *testing.T) {
	t.Run("commits on success", func(t *testing.T) {
		store := memory.NewStore()
		product := seedProduct(t, store, 5)

		err := store.InTx(context.Background(), func(ctx context.Context, tx ports.Tx) error {
			return tx.Catalog().DecrementStock(ctx, product.ID, 2)
		})
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}

		if got := stock(t, store, product.ID); got != 3 {
			t.Errorf("expected stock 3, got %d", got)
		}
	})

	t.Run("rolls back every write on error", func(t *testing.T) {
		store := memory.NewStore()
		product := seedProduct(t, store, 5)
		boom := errors.New("boom")

		err := store.InTx(context.Background(), func(ctx context.Context, tx ports.Tx) error {
			if err := tx.Catalog().DecrementStock(ctx, product.ID, 2); err != nil {
				return err
			}
			if err := tx.Guests().Create(ctx, domain.NewGuest(domain.GuestContact{Email: "g@example.com", Phone: "1"}, domain.SessionMeta{}, time.Now())); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got: %v", err)
		}

		if got := stock(t, store, product.ID); got != 5 {
			t.Errorf("expected stock 5 after rollback, got %d", got)
		}
		err = store.View(context.Background(), func(ctx context.Context, tx ports.Tx) error {
			_, err := tx.Guests().FindActiveByEmail(ctx, "g@example.com")
			return err
		})
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected guest to be rolled back, got: %v", err)
		}
	})

	t.Run("rolls back on panic", func(t *testing.T) {
		store := memory.NewStore()
		product := seedProduct(t, store, 5)

		func() {
			defer func() {
				if recover() == nil {
					t.Error("expected panic to propagate")
				}
			}()
			_ = store.InTx(context.Background(), func(ctx context.Context, tx ports.Tx) error {
				_ = tx.Catalog().DecrementStock(ctx, product.ID, 5)
				panic("boom")
			})
		}()

		if got := stock(t, store, product.ID); got != 5 {
			t.Errorf("expected stock 5 after rollback, got %d", got)
		}
	})

	t.Run("respects cancelled contexts", func(t *testing.T) {
		store := memory.NewStore()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := store.InTx(ctx, func(context.Context, ports.Tx) error {
			t.Fatal("fn must not run")
			return nil
		})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got: %v", err)
		}
	})
}

func TestCatalogDecrementStock(t *testing.T) {
	store := memory.NewStore()
	product := seedProduct(t, store, 2)

	err := store.InTx(context.Background(), func(ctx context.Context, tx ports.Tx) error {
		return tx.Catalog().DecrementStock(ctx, product.ID, 3)
	})

	var stockErr *domain.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got: %v", err)
	}
	if stockErr.Available != 2 || stockErr.Requested != 3 {
		t.Errorf("expected 2 available 3 requested, got %d/%d", stockErr.Available, stockErr.Requested)
	}
	if got := stock(t, store, product.ID); got != 2 {
		t.Errorf("expected stock unchanged, got %d", got)
	}
}

func TestOrderRepositoryUniqueness(t *testing.T) {
	store := memory.NewStore()
	order := domain.Order{ID: domain.NewID(), OrderNumber: "ORD-2025-01-01-000001", UUID: domain.NewOrderUUID()}

	err := store.InTx(context.Background(), func(ctx context.Context, tx ports.Tx) error {
		if err := tx.Orders().Create(ctx, order); err != nil {
			return err
		}
		clash := order
		clash.ID = domain.NewID()
		clash.UUID = domain.NewOrderUUID()
		return tx.Orders().Create(ctx, clash)
	})

	if !errors.Is(err, domain.ErrDuplicateOrderNumber) {
		t.Fatalf("expected ErrDuplicateOrderNumber, got: %v", err)
	}
}

func TestOrderRepositoryLookups(t *testing.T) {
	store := memory.NewStore()
	order := domain.Order{ID: domain.NewID(), OrderNumber: "ORD-2025-01-01-000001", UUID: domain.NewOrderUUID()}
	ctx := context.Background()

	err := store.InTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		return tx.Orders().Create(ctx, order)
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	err = store.View(ctx, func(ctx context.Context, tx ports.Tx) error {
		lookups := map[string]func(context.Context, string) (*domain.Order, error){
			order.ID:          tx.Orders().GetByID,
			order.OrderNumber: tx.Orders().GetByNumber,
			order.UUID:        tx.Orders().GetByUUID,
		}
		for ref, lookup := range lookups {
			found, err := lookup(ctx, ref)
			if err != nil {
				return err
			}
			if found.ID != order.ID {
				t.Errorf("lookup %q returned %s", ref, found.ID)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
}

func TestCatalogListFilters(t *testing.T) {
	store := memory.NewStore()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	products := []domain.Product{
		{ID: "p1", Name: "Desk Lamp", Description: "warm light", Category: "lighting", Price: decimal.NewFromInt(40), CountInStock: 3, CreatedAt: base},
		{ID: "p2", Name: "Floor Lamp", Category: "lighting", Price: decimal.NewFromInt(120), CountInStock: 9, Featured: true, CreatedAt: base.Add(time.Hour)},
		{ID: "p3", Name: "Mug", Description: "fits a LAMP shade", Category: "kitchen", Price: decimal.NewFromInt(8), CountInStock: 50, CreatedAt: base.Add(2 * time.Hour)},
	}
	err := store.InTx(context.Background(), func(ctx context.Context, tx ports.Tx) error {
		for _, p := range products {
			if err := tx.Catalog().Create(ctx, p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	price := func(v int64) *decimal.Decimal {
		d := decimal.NewFromInt(v)
		return &d
	}

	tests := []struct {
		name   string
		filter ports.ProductFilter
		want   []string
	}{
		{"default sorts by name", ports.ProductFilter{}, []string{"p1", "p2", "p3"}},
		{"search matches name or description", ports.ProductFilter{Search: "lamp"}, []string{"p1", "p2", "p3"}},
		{"search narrows", ports.ProductFilter{Search: "Warm"}, []string{"p1"}},
		{"price range", ports.ProductFilter{MinPrice: price(10), MaxPrice: price(100)}, []string{"p1"}},
		{"featured only", ports.ProductFilter{FeaturedOnly: true}, []string{"p2"}},
		{"newest first", ports.ProductFilter{Sort: ports.SortNewest}, []string{"p3", "p2", "p1"}},
		{"price descending in a category", ports.ProductFilter{Category: "lighting", Sort: ports.SortPriceDesc}, []string{"p2", "p1"}},
		{"page size", ports.ProductFilter{Sort: ports.SortPriceAsc, PageSize: 2}, []string{"p3", "p1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []domain.Product
			err := store.View(context.Background(), func(ctx context.Context, tx ports.Tx) error {
				var err error
				got, err = tx.Catalog().List(ctx, tt.filter)
				return err
			})
			if err != nil {
				t.Fatalf("expected no error, got: %v", err)
			}
			ids := make([]string, 0, len(got))
			for _, p := range got {
				ids = append(ids, p.ID)
			}
			if len(ids) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, ids)
			}
			for i := range ids {
				if ids[i] != tt.want[i] {
					t.Fatalf("expected %v, got %v", tt.want, ids)
				}
			}
		})
	}
}

func TestCartStore(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	user := domain.User{ID: "u1", Email: "ana@example.com", APIKeyLookup: "lookup-ana"}

	err := store.InTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		return tx.Users().Create(ctx, user)
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	err = store.InTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		cart, err := tx.Carts().Get(ctx, user.ID)
		if err != nil {
			return err
		}
		if !cart.IsEmpty() || cart.UserID != user.ID {
			t.Errorf("expected an empty cart for %s, got %+v", user.ID, cart)
		}
		if err := cart.Add("p1", 2); err != nil {
			return err
		}
		return tx.Carts().Save(ctx, *cart)
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	err = store.InTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		cart, err := tx.Carts().Get(ctx, user.ID)
		if err != nil {
			return err
		}
		cart.Items[0].Quantity = 99
		return errors.New("rollback")
	})
	if err == nil {
		t.Fatal("expected the rollback error")
	}

	err = store.View(ctx, func(ctx context.Context, tx ports.Tx) error {
		cart, err := tx.Carts().Get(ctx, user.ID)
		if err != nil {
			return err
		}
		if len(cart.Items) != 1 || cart.Items[0].Quantity != 2 {
			t.Errorf("expected the saved cart to be untouched, got %+v", cart.Items)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	err = store.InTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		if err := tx.Carts().Delete(ctx, user.ID); err != nil {
			return err
		}
		cart, err := tx.Carts().Get(ctx, user.ID)
		if err != nil {
			return err
		}
		if !cart.IsEmpty() {
			t.Errorf("expected deleted cart to read empty, got %+v", cart.Items)
		}
		return tx.Carts().Save(ctx, domain.Cart{UserID: "nobody"})
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected saving a cart for an unknown user to fail, got %v", err)
	}
}
