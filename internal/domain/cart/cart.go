package cart

import (
	"context"
	"math"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/product"
)

// ErrItemNotFound is returned when the user has no cart line for a product.
var ErrItemNotFound = errors.Wrap(apperr.ErrNotFound, "cart item")

// MaxQuantity is the largest quantity a cart line can hold.
const MaxQuantity = math.MaxInt32

func validateQuantity(quantity int) error {
	switch {
	case quantity < 1:
		return apperr.Invalid("quantity", "must be at least 1")
	case quantity > MaxQuantity:
		return apperr.Invalid("quantity", "must be at most %d", MaxQuantity)
	}
	return nil
}

// Item is one cart line. Price is the product's unit price captured at the
// most recent add; ProductName is joined in at read time.
type Item struct {
	ID          int64
	UserID      int64
	ProductID   int64
	ProductName string
	Quantity    int
	Price       decimal.Decimal
}

// Subtotal returns Price * Quantity.
func (i Item) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Repository persists cart lines. There is at most one line per
// (user, product) pair.
type Repository interface {
	// List returns the user's lines ordered by insertion.
	List(ctx context.Context, userID int64) ([]Item, error)
	// Add creates the line or, if present, increments its quantity by
	// quantity and overwrites its price with price, as one atomic upsert.
	Add(ctx context.Context, userID, productID int64, quantity int, price decimal.Decimal) (*Item, error)
	// SetQuantity sets the quantity of an existing line without touching
	// its price. Returns ErrItemNotFound if the line is absent.
	SetQuantity(ctx context.Context, userID, productID int64, quantity int) (*Item, error)
	// Remove deletes the line if present.
	Remove(ctx context.Context, userID, productID int64) error
}

// ProductReader resolves the current state of a product.
type ProductReader interface {
	GetByID(ctx context.Context, id int64) (*product.Product, error)
}
