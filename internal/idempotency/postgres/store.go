package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const reserveAttempts = 3

// Store keeps Idempotency-Key responses in the idempotency_keys table.
// A row with status_code 0 is a reservation still waiting for its response.
type Store struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

func NewStore(pool *pgxpool.Pool, ttl time.Duration) *Store {
	return &Store{pool: pool, ttl: ttl}
}

// Reserve inserts a reservation row. The insert only overwrites a row whose
// reservation timed out or whose response expired, so the first writer wins.
func (s *Store) Reserve(ctx context.Context, key, requestHash string) (*ports.StoredResponse, error) {
	query := `
		INSERT INTO idempotency_keys (key, status_code, body, request_hash)
		VALUES ($1, 0, ''::bytea, $2)
		ON CONFLICT (key) DO UPDATE
		SET status_code = 0,
		    body = ''::bytea,
		    order_id = '',
		    request_hash = EXCLUDED.request_hash,
		    created_at = NOW()
		WHERE (idempotency_keys.status_code = 0
		       AND idempotency_keys.created_at <= NOW() - make_interval(secs => $3::float8))
		   OR (idempotency_keys.status_code <> 0 AND $4::float8 > 0
		       AND idempotency_keys.created_at <= NOW() - make_interval(secs => $4::float8))
		RETURNING key
	`

	for range reserveAttempts {
		var claimed string
		err := s.pool.QueryRow(ctx, query, key, requestHash, ports.ReservationTimeout.Seconds(), s.ttl.Seconds()).Scan(&claimed)
		if err == nil {
			return nil, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("reserve idempotency key: %w", err)
		}

		existing, err := s.get(ctx, key)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
		// The holder released the key between the two statements.
	}

	return nil, fmt.Errorf("reserve idempotency key %q: gave up after %d attempts", key, reserveAttempts)
}

// Complete fills in the response for a reservation. A row that already holds
// a response keeps it.
func (s *Store) Complete(ctx context.Context, key string, response ports.StoredResponse) error {
	query := `
		INSERT INTO idempotency_keys (key, status_code, body, order_id, request_hash)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (key) DO UPDATE
		SET status_code = EXCLUDED.status_code,
		    body = EXCLUDED.body,
		    order_id = EXCLUDED.order_id,
		    request_hash = EXCLUDED.request_hash,
		    created_at = NOW()
		WHERE idempotency_keys.status_code = 0
	`

	_, err := s.pool.Exec(ctx, query, key, response.StatusCode, response.Body, response.OrderID, response.RequestHash)
	if err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	return nil
}

// Release deletes an unfinished reservation.
func (s *Store) Release(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE key = $1 AND status_code = 0`, key)
	if err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, key string) (*ports.StoredResponse, error) {
	query := `
		SELECT status_code, body, order_id, request_hash
		FROM idempotency_keys
		WHERE key = $1
	`

	var resp ports.StoredResponse
	err := s.pool.QueryRow(ctx, query, key).Scan(
		&resp.StatusCode,
		&resp.Body,
		&resp.OrderID,
		&resp.RequestHash,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select idempotency key: %w", err)
	}

	return &resp, nil
}
