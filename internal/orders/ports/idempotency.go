package ports

import (
	"context"
	"time"
)

// ReservationTimeout is how long an unfinished reservation holds its key.
// After that a retry may claim the key again.
const ReservationTimeout = time.Minute

// StoredResponse is the first response produced for an Idempotency-Key.
// RequestHash fingerprints the request body so a reused key with a
// different payload can be rejected instead of replayed.
type StoredResponse struct {
	StatusCode  int
	Body        []byte
	OrderID     string
	RequestHash string
}

// InFlight reports whether the key is reserved but has no response yet.
func (r StoredResponse) InFlight() bool {
	return r.StatusCode == 0
}

// IdempotencyStore lets clients retry order placement safely. A key is
// reserved before the order is placed, then completed with the response or
// released when placement fails.
type IdempotencyStore interface {
	// Reserve claims key for a request. It returns nil when the caller now
	// owns the key, or the live entry that already holds it.
	Reserve(ctx context.Context, key, requestHash string) (*StoredResponse, error)
	Complete(ctx context.Context, key string, response StoredResponse) error
	Release(ctx context.Context, key string) error
}
