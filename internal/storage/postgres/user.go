package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/auth"
)

const (
	userColumns = `id, username, email, password_hash, is_admin, created_at`

	createUserSQL = `INSERT INTO users (username, email, password_hash, is_admin)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	getUserByIDSQL       = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	getUserByUsernameSQL = `SELECT ` + userColumns + ` FROM users WHERE username = $1`

	upsertAdminSQL = `INSERT INTO users (username, email, password_hash, is_admin)
		VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (username) DO UPDATE
		SET email = EXCLUDED.email, password_hash = EXCLUDED.password_hash, is_admin = TRUE
		RETURNING ` + userColumns
)

var _ auth.Repository = (*UserRepository)(nil)

// UserRepository implements auth.Repository backed by PostgreSQL.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create inserts u and fills its ID and CreatedAt.
func (r *UserRepository) Create(ctx context.Context, u *auth.User) error {
	err := r.pool.QueryRow(ctx, createUserSQL, u.Username, u.Email, u.PasswordHash, u.IsAdmin).
		Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		if isPgCode(err, codeUniqueViolation) {
			return auth.ErrUserExists
		}
		return fmt.Errorf("creating user %q: %w", u.Username, classify(err))
	}
	return nil
}

// GetByID returns the user with the given id.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*auth.User, error) {
	return r.getOne(ctx, getUserByIDSQL, id)
}

// GetByUsername returns the user with the given username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*auth.User, error) {
	return r.getOne(ctx, getUserByUsernameSQL, username)
}

// UpsertAdmin creates an administrator or promotes and resets the existing
// account with the same username.
func (r *UserRepository) UpsertAdmin(ctx context.Context, username, email, passwordHash string) (*auth.User, error) {
	rows, err := r.pool.Query(ctx, upsertAdminSQL, username, email, passwordHash)
	if err != nil {
		return nil, fmt.Errorf("upserting admin %q: %w", username, classify(err))
	}
	u, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if err != nil {
		if isPgCode(err, codeUniqueViolation) {
			return nil, auth.ErrUserExists
		}
		return nil, fmt.Errorf("upserting admin %q: %w", username, classify(err))
	}
	return &u, nil
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg any) (*auth.User, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("getting user %v: %w", arg, classify(err))
	}

	u, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrUserNotFound
		}
		return nil, fmt.Errorf("getting user %v: %w", arg, classify(err))
	}
	return &u, nil
}

func scanUser(row pgx.CollectableRow) (auth.User, error) {
	var u auth.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt)
	return u, err
}
