package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dejobratic/storefront/internal/database"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/jackc/pgx/v5"
)

const guestColumns = `
	id, guest_id, email, name, phone, account_created, linked_user_id, is_active,
	ip_address, user_agent, last_activity, created_at, updated_at`

type guestRepository struct {
	q    querier
	lock bool
}

func (r *guestRepository) Create(ctx context.Context, g domain.Guest) error {
	query := `
		INSERT INTO guests (` + guestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.q.Exec(ctx, query,
		g.ID, g.GuestID, g.Email, g.Name, g.Phone, g.AccountCreated, nullable(g.LinkedUserID), g.IsActive,
		g.Session.IPAddress, g.Session.UserAgent, g.LastActivity, g.CreatedAt, g.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("insert guest: %w", err)
	}
	return nil
}

func (r *guestRepository) FindActiveByEmail(ctx context.Context, email string) (*domain.Guest, error) {
	email = domain.NormalizeEmail(email)
	query := `SELECT ` + guestColumns + ` FROM guests WHERE email = $1 AND is_active` + forUpdate(r.lock)
	return r.get(ctx, query, email)
}

func (r *guestRepository) GetByGuestID(ctx context.Context, guestID string) (*domain.Guest, error) {
	query := `SELECT ` + guestColumns + ` FROM guests WHERE guest_id = $1` + forUpdate(r.lock)
	return r.get(ctx, query, guestID)
}

func (r *guestRepository) get(ctx context.Context, query, arg string) (*domain.Guest, error) {
	var (
		g            domain.Guest
		linkedUserID *string
	)
	err := r.q.QueryRow(ctx, query, arg).Scan(
		&g.ID, &g.GuestID, &g.Email, &g.Name, &g.Phone, &g.AccountCreated, &linkedUserID, &g.IsActive,
		&g.Session.IPAddress, &g.Session.UserAgent, &g.LastActivity, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound("guest", arg)
		}
		return nil, fmt.Errorf("select guest: %w", err)
	}
	g.LinkedUserID = derefString(linkedUserID)
	return &g, nil
}

func (r *guestRepository) Update(ctx context.Context, g domain.Guest) error {
	query := `
		UPDATE guests
		SET name = $2, phone = $3, account_created = $4, linked_user_id = $5, is_active = $6,
		    ip_address = $7, user_agent = $8, last_activity = $9, updated_at = $10
		WHERE id = $1
	`

	tag, err := r.q.Exec(ctx, query,
		g.ID, g.Name, g.Phone, g.AccountCreated, nullable(g.LinkedUserID), g.IsActive,
		g.Session.IPAddress, g.Session.UserAgent, g.LastActivity, g.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update guest: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("guest", g.GuestID)
	}
	return nil
}

func (r *guestRepository) PurgeUnconverted(ctx context.Context, lastActiveBefore time.Time) (int, error) {
	query := `
		DELETE FROM guests g
		WHERE NOT g.account_created
		  AND g.is_active
		  AND g.last_activity < $1
		  AND NOT EXISTS (SELECT 1 FROM orders o WHERE o.guest_id = g.id)
		  AND NOT EXISTS (SELECT 1 FROM payments p WHERE p.guest_id = g.id)
	`

	tag, err := r.q.Exec(ctx, query, lastActiveBefore)
	if err != nil {
		return 0, fmt.Errorf("purge guests: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

type userRepository struct {
	q querier
}

const userColumns = `id, email, name, role, api_key_hash, api_key_lookup, created_at`

func (r *userRepository) Create(ctx context.Context, u domain.User) error {
	query := `INSERT INTO users (` + userColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.q.Exec(ctx, query, u.ID, domain.NormalizeEmail(u.Email), u.Name, u.Role, u.APIKeyHash, u.APIKeyLookup, u.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.get(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *userRepository) GetByAPIKeyLookup(ctx context.Context, lookup string) (*domain.User, error) {
	return r.get(ctx, `SELECT `+userColumns+` FROM users WHERE api_key_lookup = $1`, lookup)
}

func (r *userRepository) get(ctx context.Context, query, arg string) (*domain.User, error) {
	var u domain.User
	err := r.q.QueryRow(ctx, query, arg).Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.APIKeyHash, &u.APIKeyLookup, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound("user", arg)
		}
		return nil, fmt.Errorf("select user: %w", err)
	}
	return &u, nil
}
