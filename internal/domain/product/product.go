package product

import (
	"context"
	"math"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/apperr"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.Wrap(apperr.ErrNotFound, "product")

// Listing limits.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Storage limits: stock is a 32-bit integer and prices are NUMERIC(12,2).
const (
	MaxStock      = math.MaxInt32
	PriceDecimals = 2
)

// MaxPrice is the largest storable price, 9999999999.99.
var MaxPrice = decimal.New(1, 10).Sub(decimal.New(1, -PriceDecimals))

// ValidatePrice checks that price is storable without rounding.
func ValidatePrice(price decimal.Decimal) error {
	switch {
	case price.IsNegative():
		return apperr.Invalid("price", "must not be negative")
	case price.GreaterThan(MaxPrice):
		return apperr.Invalid("price", "must be at most %s", MaxPrice.StringFixed(PriceDecimals))
	case !price.Equal(price.Truncate(PriceDecimals)):
		return apperr.Invalid("price", "must have at most %d decimal places", PriceDecimals)
	}
	return nil
}

// ValidateStock checks that stock fits the stock column.
func ValidateStock(stock int) error {
	switch {
	case stock < 0:
		return apperr.Invalid("stock", "must not be negative")
	case stock > MaxStock:
		return apperr.Invalid("stock", "must be at most %d", MaxStock)
	}
	return nil
}

// Product represents a catalog item available for purchase.
type Product struct {
	ID          int64
	Name        string
	Description string
	Price       decimal.Decimal
	ImageURL    string
	Stock       int
	CreatedAt   time.Time
}

// ListParams selects a page of the catalog. Search is a case-insensitive
// substring matched against name or description.
type ListParams struct {
	Offset int
	Limit  int
	Search string
}

// Update is a partial product update; nil fields are left unchanged.
type Update struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	ImageURL    *string
	Stock       *int
}

// Empty reports whether u changes nothing.
func (u Update) Empty() bool {
	return u.Name == nil && u.Description == nil && u.Price == nil && u.ImageURL == nil && u.Stock == nil
}

// Repository defines persistence operations for the product catalog.
// Listing is ordered by insertion (id).
type Repository interface {
	List(ctx context.Context, params ListParams) ([]Product, error)
	GetByID(ctx context.Context, id int64) (*Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, id int64, u Update) (*Product, error)
	Delete(ctx context.Context, id int64) error
}
