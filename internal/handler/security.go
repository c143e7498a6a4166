package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/auth"
)

var errMissingToken = errors.Wrap(auth.ErrInvalidToken, "missing bearer token")

// identify resolves the caller from the Authorization header.
func (h *Handler) identify(r *http.Request) (auth.Identity, error) {
	token, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		return auth.Identity{}, errMissingToken
	}
	return h.auth.Authenticate(r.Context(), token)
}

// bearerToken extracts the token of a "Bearer <token>" header value. The
// scheme is case-insensitive.
func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
