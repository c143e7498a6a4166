package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/order"
)

// statusByKind maps error kinds to HTTP status codes.
var statusByKind = map[string]int{
	apperr.KindNotFound:          http.StatusNotFound,
	apperr.KindEmptyCart:         http.StatusBadRequest,
	apperr.KindInsufficientStock: http.StatusConflict,
	apperr.KindUnauthorized:      http.StatusUnauthorized,
	apperr.KindForbidden:         http.StatusForbidden,
	apperr.KindConflict:          http.StatusConflict,
	apperr.KindValidation:        http.StatusUnprocessableEntity,
	apperr.KindUnavailable:       http.StatusServiceUnavailable,
}

// writeError converts err into the JSON error response.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	kind := apperr.Kind(err)
	if errors.Is(err, context.DeadlineExceeded) && kind == apperr.KindInternal {
		kind = apperr.KindUnavailable
	}
	code, ok := statusByKind[kind]
	if !ok {
		code = http.StatusInternalServerError
	}

	msg := err.Error()
	if code >= http.StatusInternalServerError {
		zctx.From(ctx).Error("Request failed", zap.String("kind", kind), zap.Error(err))
		if code == http.StatusInternalServerError {
			msg = "internal server error"
		}
	}
	if code == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Int(code)
	e.FieldStart("kind")
	e.Str(kind)
	e.FieldStart("message")
	e.Str(msg)

	var ve *apperr.ValidationError
	if errors.As(err, &ve) && ve.Field != "" {
		e.FieldStart("field")
		e.Str(ve.Field)
	}
	var se *order.InsufficientStockError
	if errors.As(err, &se) {
		e.FieldStart("product_id")
		e.Int64(se.ProductID)
		e.FieldStart("requested")
		e.Int(se.Requested)
		e.FieldStart("available")
		e.Int(se.Available)
	}
	e.ObjEnd()

	writeBody(w, code, e.Bytes())
}

func writeBody(w http.ResponseWriter, code int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}
