package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/apperr"
)

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = errors.Wrap(apperr.ErrNotFound, "order")

// Order is an immutable record of a checkout. Only Status changes after
// creation. UserID is zero once the owning account has been deleted.
type Order struct {
	ID             int64
	UserID         int64
	TotalPrice     decimal.Decimal
	Status         Status
	IdempotencyKey string
	CreatedAt      time.Time
	Items          []Item
}

// Item is a frozen copy of a cart line at purchase time.
type Item struct {
	ID          int64
	OrderID     int64
	ProductID   int64
	ProductName string
	Quantity    int
	Price       decimal.Decimal
}

// Subtotal returns Price * Quantity.
func (i Item) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// InsufficientStockError indicates a cart line asks for more units than
// the product has in stock.
type InsufficientStockError struct {
	ProductID   int64
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough stock for product %q: requested %d, available %d",
		e.ProductName, e.Requested, e.Available)
}

// Is makes InsufficientStockError match apperr.ErrInsufficientStock.
func (e *InsufficientStockError) Is(target error) bool {
	return target == apperr.ErrInsufficientStock
}

// Repository is the order ledger. Listings are newest first.
type Repository interface {
	ListByUser(ctx context.Context, userID int64) ([]Order, error)
	ListAll(ctx context.Context) ([]Order, error)
	Get(ctx context.Context, id int64) (*Order, error)
	// SetStatus moves the order from status from to status to. It returns
	// apperr.ErrConflict if the stored status is no longer from.
	SetStatus(ctx context.Context, id int64, from, to Status) (*Order, error)
}

// Line is a cart line as seen inside the checkout transaction: the cart
// snapshot joined with the locked product row.
type Line struct {
	CartItemID  int64
	ProductID   int64
	ProductName string
	Quantity    int
	Price       decimal.Decimal
	Stock       int
}

// Total sums snapshot price times quantity over lines.
func Total(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total
}

// Tx is the set of operations the checkout performs inside one
// transaction.
type Tx interface {
	// LockCart returns the user's cart lines, locking them and the
	// referenced product rows until the transaction ends.
	LockCart(ctx context.Context, userID int64) ([]Line, error)
	// FindByIdempotencyKey returns the user's order placed with key, or
	// ErrNotFound.
	FindByIdempotencyKey(ctx context.Context, userID int64, key string) (*Order, error)
	// CreateOrder inserts the header and its items, filling IDs and
	// CreatedAt.
	CreateOrder(ctx context.Context, o *Order) error
	// DecrementStock lowers a product's stock. It must never drive stock
	// below zero.
	DecrementStock(ctx context.Context, productID int64, quantity int) error
	// ClearCart deletes the given cart lines of the user.
	ClearCart(ctx context.Context, userID int64, cartItemIDs []int64) error
}

// Store runs fn in a single transaction, committing if fn returns nil and
// rolling back otherwise.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
