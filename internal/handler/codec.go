package handler

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
)

// writeJSON encodes a response body with fn.
func writeJSON(w http.ResponseWriter, code int, fn func(e *jx.Encoder)) {
	var e jx.Encoder
	fn(&e)
	writeBody(w, code, e.Bytes())
}

// money encodes d as a JSON number with two decimals.
func money(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.StringFixed(2)))
}

func timestamp(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339))
}

func encodeUser(e *jx.Encoder, u *auth.User) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(u.ID)
	e.FieldStart("username")
	e.Str(u.Username)
	e.FieldStart("email")
	e.Str(u.Email)
	e.FieldStart("is_admin")
	e.Bool(u.IsAdmin)
	e.FieldStart("created_at")
	timestamp(e, u.CreatedAt)
	e.ObjEnd()
}

func encodeToken(e *jx.Encoder, t *auth.Token) {
	e.ObjStart()
	e.FieldStart("access_token")
	e.Str(t.AccessToken)
	e.FieldStart("token_type")
	e.Str(t.TokenType)
	e.FieldStart("expires_at")
	timestamp(e, t.ExpiresAt)
	e.ObjEnd()
}

func encodeProduct(e *jx.Encoder, p *product.Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("description")
	e.Str(p.Description)
	e.FieldStart("price")
	money(e, p.Price)
	e.FieldStart("image_url")
	if p.ImageURL == "" {
		e.Null()
	} else {
		e.Str(p.ImageURL)
	}
	e.FieldStart("stock")
	e.Int(p.Stock)
	e.FieldStart("created_at")
	timestamp(e, p.CreatedAt)
	e.ObjEnd()
}

func encodeCartItem(e *jx.Encoder, it *cart.Item) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(it.ID)
	e.FieldStart("product_id")
	e.Int64(it.ProductID)
	e.FieldStart("product_name")
	e.Str(it.ProductName)
	e.FieldStart("quantity")
	e.Int(it.Quantity)
	e.FieldStart("price")
	money(e, it.Price)
	e.FieldStart("subtotal")
	money(e, it.Subtotal())
	e.ObjEnd()
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(o.ID)
	e.FieldStart("user_id")
	if o.UserID == 0 {
		e.Null()
	} else {
		e.Int64(o.UserID)
	}
	e.FieldStart("total_price")
	money(e, o.TotalPrice)
	e.FieldStart("status")
	e.Str(string(o.Status))
	e.FieldStart("created_at")
	timestamp(e, o.CreatedAt)
	e.FieldStart("items")
	e.ArrStart()
	for i := range o.Items {
		it := &o.Items[i]
		e.ObjStart()
		e.FieldStart("id")
		e.Int64(it.ID)
		e.FieldStart("product_id")
		if it.ProductID == 0 {
			e.Null()
		} else {
			e.Int64(it.ProductID)
		}
		e.FieldStart("product_name")
		e.Str(it.ProductName)
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.FieldStart("price")
		money(e, it.Price)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
}

func encodeOrders(e *jx.Encoder, orders []order.Order) {
	e.ArrStart()
	for i := range orders {
		encodeOrder(e, &orders[i])
	}
	e.ArrEnd()
}

// decodeObject reads a JSON object body, calling fn for every field.
func decodeObject(r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperr.Invalid("body", "exceeds %d bytes", maxErr.Limit)
		}
		return errors.Wrap(err, "read body")
	}
	if len(body) == 0 {
		return apperr.Invalid("body", "required")
	}
	if err := jx.DecodeBytes(body).Obj(fn); err != nil {
		var ve *apperr.ValidationError
		if errors.As(err, &ve) {
			return ve
		}
		return apperr.Invalid("body", "malformed JSON: %v", err)
	}
	return nil
}

// decodeMoney reads a price given as a JSON number or numeric string.
func decodeMoney(d *jx.Decoder, field string) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		raw = n.String()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		raw = s
	default:
		return decimal.Decimal{}, apperr.Invalid(field, "must be a number")
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, apperr.Invalid(field, "must be a number")
	}
	return v, nil
}

func decodeInt(d *jx.Decoder, field string) (int, error) {
	if d.Next() != jx.Number {
		return 0, apperr.Invalid(field, "must be an integer")
	}
	v, err := d.Int()
	if err != nil {
		return 0, apperr.Invalid(field, "must be an integer")
	}
	return v, nil
}

func decodeInt64(d *jx.Decoder, field string) (int64, error) {
	if d.Next() != jx.Number {
		return 0, apperr.Invalid(field, "must be an integer")
	}
	v, err := d.Int64()
	if err != nil {
		return 0, apperr.Invalid(field, "must be an integer")
	}
	return v, nil
}

func decodeStr(d *jx.Decoder, field string) (string, error) {
	if d.Next() != jx.String {
		return "", apperr.Invalid(field, "must be a string")
	}
	return d.Str()
}

// decodeOptStr reads a nullable string; JSON null yields "".
func decodeOptStr(d *jx.Decoder, field string) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return decodeStr(d, field)
}

// pathID parses a positive integer path parameter.
func pathID(r *http.Request, name string) (int64, error) {
	v, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || v <= 0 {
		return 0, apperr.Invalid(name, "must be a positive integer")
	}
	return v, nil
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Invalid(name, "must be an integer")
	}
	return v, nil
}
