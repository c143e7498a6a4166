package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/product"
)

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) error {
	offset, err := queryInt(r, "offset")
	if err != nil {
		return err
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		return err
	}

	products, err := h.products.List(r.Context(), product.ListParams{
		Offset: offset,
		Limit:  limit,
		Search: r.URL.Query().Get("search"),
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for i := range products {
			encodeProduct(e, &products[i])
		}
		e.ArrEnd()
	})
	return nil
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	p, err := h.products.Get(r.Context(), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeProduct(e, p) })
	return nil
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request, id auth.Identity) error {
	if err := id.RequireAdmin(); err != nil {
		return err
	}
	u, err := decodeProductUpdate(r)
	if err != nil {
		return err
	}
	switch {
	case u.Name == nil:
		return apperr.Invalid("name", "required")
	case u.Price == nil:
		return apperr.Invalid("price", "required")
	case u.Stock == nil:
		return apperr.Invalid("stock", "required")
	}

	p := &product.Product{Name: *u.Name, Price: *u.Price, Stock: *u.Stock}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.ImageURL != nil {
		p.ImageURL = *u.ImageURL
	}
	if err := h.products.Create(r.Context(), id, p); err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeProduct(e, p) })
	return nil
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request, id auth.Identity) error {
	if err := id.RequireAdmin(); err != nil {
		return err
	}
	productID, err := pathID(r, "id")
	if err != nil {
		return err
	}
	u, err := decodeProductUpdate(r)
	if err != nil {
		return err
	}
	p, err := h.products.Update(r.Context(), id, productID, u)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeProduct(e, p) })
	return nil
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request, id auth.Identity) error {
	productID, err := pathID(r, "id")
	if err != nil {
		return err
	}
	if err := h.products.Delete(r.Context(), id, productID); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// decodeProductUpdate reads product fields; absent and null fields stay
// nil, except description and image_url where null clears the value.
func decodeProductUpdate(r *http.Request) (product.Update, error) {
	var u product.Update
	err := decodeObject(r, func(d *jx.Decoder, key string) error {
		if d.Next() == jx.Null && key != "description" && key != "image_url" {
			return d.Null()
		}
		switch key {
		case "name":
			v, err := decodeStr(d, key)
			u.Name = &v
			return err
		case "description":
			v, err := decodeOptStr(d, key)
			u.Description = &v
			return err
		case "image_url":
			v, err := decodeOptStr(d, key)
			u.ImageURL = &v
			return err
		case "price":
			v, err := decodeMoney(d, key)
			u.Price = &v
			return err
		case "stock":
			v, err := decodeInt(d, key)
			u.Stock = &v
			return err
		default:
			return d.Skip()
		}
	})
	return u, err
}
