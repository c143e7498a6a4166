package auth

import (
	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/apperr"
)

var (
	// ErrAdminRequired is returned when a non-administrator calls an
	// administrator-only operation.
	ErrAdminRequired = errors.Wrap(apperr.ErrForbidden, "admin privileges required")
	// ErrNotOwner is returned when a caller touches another user's resource.
	ErrNotOwner = errors.Wrap(apperr.ErrForbidden, "resource belongs to another user")
)

// Identity is the authenticated caller, resolved by the Access Gate and
// passed explicitly into every domain operation.
type Identity struct {
	UserID   int64
	Username string
	IsAdmin  bool
}

// RequireAdmin returns ErrAdminRequired unless id is an administrator.
func (id Identity) RequireAdmin() error {
	if !id.IsAdmin {
		return ErrAdminRequired
	}
	return nil
}

// RequireOwner allows administrators and the owner of a resource.
func (id Identity) RequireOwner(ownerID int64) error {
	if id.IsAdmin || id.UserID == ownerID {
		return nil
	}
	return ErrNotOwner
}
