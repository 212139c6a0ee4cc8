package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/beaconhq/beacon/internal/shared"
)

// Repository defines persistence operations for the auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByID(ctx context.Context, id int64) (*Account, error)
	FindAPIToken(ctx context.Context, secret string) (*APIToken, error)
	CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error
	DeleteSession(ctx context.Context, id string) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const accountColumns = `id, COALESCE(username, ''), COALESCE(email, ''), COALESCE(password_hash, ''), is_active, created_at`

// FindByEmail fetches an account by email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	return r.findAccount(ctx, `SELECT `+accountColumns+` FROM users WHERE email = $1`, email)
}

// FindByID fetches an account by id.
func (r *PGRepository) FindByID(ctx context.Context, id int64) (*Account, error) {
	return r.findAccount(ctx, `SELECT `+accountColumns+` FROM users WHERE id = $1`, id)
}

func (r *PGRepository) findAccount(ctx context.Context, query string, arg any) (*Account, error) {
	var account Account
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&account.ID, &account.Username, &account.Email, &account.PasswordHash, &account.IsActive, &account.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &account, nil
}

// FindAPIToken fetches an API token by its secret.
func (r *PGRepository) FindAPIToken(ctx context.Context, secret string) (*APIToken, error) {
	const query = `
		SELECT secret, username, permissions, COALESCE(expires_at, 'epoch'::timestamptz)
		FROM api_tokens WHERE secret = $1`
	var (
		token     APIToken
		expiresAt time.Time
	)
	err := r.pool.QueryRow(ctx, query, secret).Scan(&token.Secret, &token.Username, &token.Permissions, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	if expiresAt.Unix() > 0 {
		token.ExpiresAt = expiresAt
	}
	return &token, nil
}

// CreateSession persists a new login session in the database for auditing.
func (r *PGRepository) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO sessions (id, user_id, expires_at, ip, ua) VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''))`,
		id, userID, expiresAt.UTC(), ip, ua)
	return err
}

// DeleteSession removes a session record from the database.
func (r *PGRepository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

var _ Repository = (*PGRepository)(nil)
