package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/order"
)

// IdempotencyKeyHeader makes place-order retries safe.
const IdempotencyKeyHeader = "Idempotency-Key"

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request, id auth.Identity) error {
	o, err := h.orders.PlaceOrder(r.Context(), id, r.Header.Get(IdempotencyKeyHeader))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeOrder(e, o) })
	return nil
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request, id auth.Identity) error {
	orders, err := h.orders.VisibleOrders(r.Context(), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrders(e, orders) })
	return nil
}

func (h *Handler) listAllOrders(w http.ResponseWriter, r *http.Request, id auth.Identity) error {
	orders, err := h.orders.ListAllOrders(r.Context(), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrders(e, orders) })
	return nil
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request, id auth.Identity) error {
	orderID, err := pathID(r, "id")
	if err != nil {
		return err
	}
	o, err := h.orders.GetOrder(r.Context(), id, orderID)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
	return nil
}

func (h *Handler) setOrderStatus(w http.ResponseWriter, r *http.Request, id auth.Identity) error {
	orderID, err := pathID(r, "id")
	if err != nil {
		return err
	}
	var status order.Status
	err = decodeObject(r, func(d *jx.Decoder, key string) error {
		if key != "status" {
			return d.Skip()
		}
		raw, err := decodeStr(d, key)
		if err != nil {
			return err
		}
		status, err = order.ParseStatus(raw)
		return err
	})
	if err != nil {
		return err
	}
	if status == "" {
		return apperr.Invalid("status", "required")
	}

	o, err := h.orders.SetStatus(r.Context(), id, orderID, status)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
	return nil
}
