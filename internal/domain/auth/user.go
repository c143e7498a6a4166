package auth

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/apperr"
)

var (
	// ErrUserNotFound is returned when no user matches the lookup.
	ErrUserNotFound = errors.Wrap(apperr.ErrNotFound, "user")
	// ErrUserExists is returned when the username or e-mail is taken.
	ErrUserExists = errors.Wrap(apperr.ErrConflict, "username or email already registered")
	// ErrInvalidCredentials is returned by Login for unknown users and
	// wrong passwords alike.
	ErrInvalidCredentials = errors.Wrap(apperr.ErrUnauthorized, "invalid username or password")
	// ErrInvalidToken is returned when a bearer token cannot be verified.
	ErrInvalidToken = errors.Wrap(apperr.ErrUnauthorized, "invalid or missing token")
)

// User is a registered account. PasswordHash is opaque outside this package.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
}

// Identity returns the Identity of u.
func (u *User) Identity() Identity {
	return Identity{UserID: u.ID, Username: u.Username, IsAdmin: u.IsAdmin}
}

// Repository persists users. Create fills ID and CreatedAt and returns
// ErrUserExists on a duplicate username or e-mail.
type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
}
