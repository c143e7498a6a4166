// Package auth is the storefront Access Gate: it registers users, verifies
// credentials and resolves bearer tokens into an Identity. The rest of the
// domain only ever sees the resolved Identity.
package auth

import (
	"context"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/apperr"
)

// RegisterRequest holds the input for creating a user account.
type RegisterRequest struct {
	Username string
	Email    string
	Password string
}

// Validate checks field constraints.
func (r RegisterRequest) Validate() error {
	if n := utf8.RuneCountInString(r.Username); n < 3 || n > 50 {
		return apperr.Invalid("username", "must be between 3 and 50 characters")
	}
	if addr, err := mail.ParseAddress(r.Email); err != nil || addr.Address != r.Email {
		return apperr.Invalid("email", "must be a valid e-mail address")
	}
	if utf8.RuneCountInString(r.Password) < 6 {
		return apperr.Invalid("password", "must be at least 6 characters")
	}
	return nil
}

// Service implements registration, login and token authentication.
type Service struct {
	users  Repository
	tokens *TokenIssuer
	hasher PasswordHasher
}

// NewService creates an auth Service.
func NewService(users Repository, tokens *TokenIssuer, hasher PasswordHasher) *Service {
	return &Service{
		users:  users,
		tokens: tokens,
		hasher: hasher,
	}
}

// Register creates an ordinary (non-admin) user.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if err := req.Validate(); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	u := &User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, errors.Wrap(err, "create user")
	}
	return u, nil
}

// Login verifies credentials and issues an access token. Unknown users and
// wrong passwords both yield ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, username, password string) (*Token, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, "get user")
	}
	if err := s.hasher.Compare(u.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.tokens.Issue(u)
}

// Authenticate resolves a bearer token into the caller's Identity. The
// admin flag is read from the user record, not from the token, so role
// changes take effect immediately.
func (s *Service) Authenticate(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrInvalidToken
	}
	id, err := s.tokens.Verify(token)
	if err != nil {
		return Identity{}, err
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return Identity{}, ErrInvalidToken
		}
		return Identity{}, errors.Wrap(err, "get user")
	}
	return u.Identity(), nil
}

// Me returns the profile of the authenticated caller.
func (s *Service) Me(ctx context.Context, id Identity) (*User, error) {
	return s.users.GetByID(ctx, id.UserID)
}
