package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/auth"
)

func (h *Handler) register(w http.ResponseWriter, r *http.Request) error {
	var req auth.RegisterRequest
	err := decodeObject(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "username":
			req.Username, err = decodeStr(d, key)
		case "email":
			req.Email, err = decodeStr(d, key)
		case "password":
			req.Password, err = decodeStr(d, key)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return err
	}

	u, err := h.auth.Register(r.Context(), req)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeUser(e, u) })
	return nil
}

// login accepts OAuth2 password form fields or a JSON object with the same
// keys.
func (h *Handler) login(w http.ResponseWriter, r *http.Request) error {
	var username, password string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err != nil {
			return apperr.Invalid("body", "malformed form: %v", err)
		}
		username, password = r.PostForm.Get("username"), r.PostForm.Get("password")
	} else {
		err := decodeObject(r, func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "username":
				username, err = decodeStr(d, key)
			case "password":
				password, err = decodeStr(d, key)
			default:
				err = d.Skip()
			}
			return err
		})
		if err != nil {
			return err
		}
	}
	if username == "" {
		return apperr.Invalid("username", "required")
	}
	if password == "" {
		return apperr.Invalid("password", "required")
	}

	tok, err := h.auth.Login(r.Context(), username, password)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeToken(e, tok) })
	return nil
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request, id auth.Identity) error {
	u, err := h.auth.Me(r.Context(), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeUser(e, u) })
	return nil
}
