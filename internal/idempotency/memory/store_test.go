package memory

import (
	"context"
	"testing"
	"time"

	"github.com/dejobratic/storefront/internal/orders/ports"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	newStore := func() *Store {
		s := NewStore(time.Hour)
		s.now = func() time.Time { return now }
		return s
	}

	t.Run("first reservation claims the key", func(t *testing.T) {
		got, err := newStore().Reserve(ctx, "k", "h1")
		if err != nil || got != nil {
			t.Errorf("expected nil, nil; got %v, %v", got, err)
		}
	})

	t.Run("second reservation sees the one in flight", func(t *testing.T) {
		s := newStore()
		_, _ = s.Reserve(ctx, "k", "h1")

		got, err := s.Reserve(ctx, "k", "h2")
		if err != nil {
			t.Fatalf("Reserve() failed: %v", err)
		}
		if got == nil || !got.InFlight() || got.RequestHash != "h1" {
			t.Errorf("expected the first reservation in flight, got %+v", got)
		}
	})

	t.Run("completed key replays the first response", func(t *testing.T) {
		s := newStore()
		_, _ = s.Reserve(ctx, "k", "h1")
		_ = s.Complete(ctx, "k", ports.StoredResponse{StatusCode: 201, OrderID: "o1", RequestHash: "h1"})
		_ = s.Complete(ctx, "k", ports.StoredResponse{StatusCode: 200, OrderID: "o2", RequestHash: "h2"})

		got, err := s.Reserve(ctx, "k", "h1")
		if err != nil {
			t.Fatalf("Reserve() failed: %v", err)
		}
		if got == nil || got.InFlight() || got.OrderID != "o1" || got.RequestHash != "h1" {
			t.Errorf("expected first response, got %+v", got)
		}
	})

	t.Run("released key can be claimed again", func(t *testing.T) {
		s := newStore()
		_, _ = s.Reserve(ctx, "k", "h1")
		_ = s.Release(ctx, "k")

		if got, _ := s.Reserve(ctx, "k", "h2"); got != nil {
			t.Errorf("expected key to be free after release, got %+v", got)
		}
	})

	t.Run("release keeps a completed response", func(t *testing.T) {
		s := newStore()
		_, _ = s.Reserve(ctx, "k", "h1")
		_ = s.Complete(ctx, "k", ports.StoredResponse{StatusCode: 201, OrderID: "o1", RequestHash: "h1"})
		_ = s.Release(ctx, "k")

		if got, _ := s.Reserve(ctx, "k", "h1"); got == nil || got.OrderID != "o1" {
			t.Errorf("expected completed response to survive release, got %+v", got)
		}
	})

	t.Run("abandoned reservation times out", func(t *testing.T) {
		s := newStore()
		_, _ = s.Reserve(ctx, "k", "h1")

		s.now = func() time.Time { return now.Add(ports.ReservationTimeout) }
		if got, _ := s.Reserve(ctx, "k", "h2"); got != nil {
			t.Errorf("expected stale reservation to be reclaimed, got %+v", got)
		}
	})

	t.Run("expires after ttl", func(t *testing.T) {
		s := newStore()
		_, _ = s.Reserve(ctx, "k", "h1")
		_ = s.Complete(ctx, "k", ports.StoredResponse{StatusCode: 201, OrderID: "o1"})

		s.now = func() time.Time { return now.Add(time.Hour) }
		if got, _ := s.Reserve(ctx, "k", "h1"); got != nil {
			t.Errorf("expected expired entry to be dropped, got %+v", got)
		}
	})

	t.Run("body is copied", func(t *testing.T) {
		s := newStore()
		body := []byte(`{"id":"o1"}`)
		_ = s.Complete(ctx, "k", ports.StoredResponse{StatusCode: 201, Body: body})
		body[0] = 'X'

		got, _ := s.Reserve(ctx, "k", "")
		if got == nil || string(got.Body) != `{"id":"o1"}` {
			t.Errorf("expected stored body to be isolated, got %+v", got)
		}
	})
}
