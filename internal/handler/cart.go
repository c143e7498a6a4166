package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/auth"
)

func (h *Handler) listCart(w http.ResponseWriter, r *http.Request, id auth.Identity) error {
	items, err := h.carts.List(r.Context(), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for i := range items {
			encodeCartItem(e, &items[i])
		}
		e.ArrEnd()
	})
	return nil
}

func (h *Handler) addToCart(w http.ResponseWriter, r *http.Request, id auth.Identity) error {
	var (
		productID int64
		quantity  = 1
	)
	err := decodeObject(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "product_id":
			productID, err = decodeInt64(d, key)
		case "quantity":
			quantity, err = decodeInt(d, key)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return err
	}
	if productID <= 0 {
		return apperr.Invalid("product_id", "must be a positive integer")
	}

	item, err := h.carts.Add(r.Context(), id, productID, quantity)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeCartItem(e, item) })
	return nil
}

func (h *Handler) updateCartItem(w http.ResponseWriter, r *http.Request, id auth.Identity) error {
	productID, err := pathID(r, "productID")
	if err != nil {
		return err
	}
	quantity := 0
	err = decodeObject(r, func(d *jx.Decoder, key string) error {
		if key != "quantity" {
			return d.Skip()
		}
		var err error
		quantity, err = decodeInt(d, key)
		return err
	})
	if err != nil {
		return err
	}

	item, err := h.carts.Update(r.Context(), id, productID, quantity)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCartItem(e, item) })
	return nil
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request, id auth.Identity) error {
	productID, err := pathID(r, "productID")
	if err != nil {
		return err
	}
	if err := h.carts.Remove(r.Context(), id, productID); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
