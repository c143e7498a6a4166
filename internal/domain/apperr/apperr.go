// Package apperr defines the error kinds shared by every storefront domain
// package. Domain errors wrap one of the kind sentinels so callers can
// classify any failure with errors.Is or Kind.
package apperr

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Kind sentinels. Match with errors.Is; never compare error strings.
var (
	ErrNotFound          = errors.New("not found")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrConflict          = errors.New("conflict")
	ErrValidation        = errors.New("validation failed")
	ErrUnavailable       = errors.New("service unavailable")
)

// Kind names, as reported to clients and metrics.
const (
	KindNotFound          = "not_found"
	KindEmptyCart         = "empty_cart"
	KindInsufficientStock = "insufficient_stock"
	KindUnauthorized      = "unauthorized"
	KindForbidden         = "forbidden"
	KindConflict          = "conflict"
	KindValidation        = "validation"
	KindUnavailable       = "unavailable"
	KindInternal          = "internal"
)

var kinds = []struct {
	err  error
	name string
}{
	{ErrNotFound, KindNotFound},
	{ErrEmptyCart, KindEmptyCart},
	{ErrInsufficientStock, KindInsufficientStock},
	{ErrUnauthorized, KindUnauthorized},
	{ErrForbidden, KindForbidden},
	{ErrConflict, KindConflict},
	{ErrValidation, KindValidation},
	{ErrUnavailable, KindUnavailable},
}

// Kind returns the kind name of err, or KindInternal when err does not wrap
// any kind sentinel. Kind(nil) is "".
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return KindInternal
}

// ValidationError describes malformed input for a single field.
type ValidationError struct {
	Field  string
	Reason string
}

// Invalid returns a *ValidationError for field.
func Invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Is makes every ValidationError match ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
