package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/product"
)

const (
	listCartSQL = `SELECT c.id, c.user_id, c.product_id, p.name, c.quantity, c.price
		FROM cart_items c
		JOIN products p ON p.id = c.product_id
		WHERE c.user_id = $1
		ORDER BY c.id`

	addCartItemSQL = `WITH upserted AS (
			INSERT INTO cart_items (user_id, product_id, quantity, price)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_id, product_id) DO UPDATE
			SET quantity = cart_items.quantity + EXCLUDED.quantity, price = EXCLUDED.price
			RETURNING id, user_id, product_id, quantity, price
		)
		SELECT u.id, u.user_id, u.product_id, p.name, u.quantity, u.price
		FROM upserted u JOIN products p ON p.id = u.product_id`

	setCartQuantitySQL = `WITH updated AS (
			UPDATE cart_items SET quantity = $3
			WHERE user_id = $1 AND product_id = $2
			RETURNING id, user_id, product_id, quantity, price
		)
		SELECT u.id, u.user_id, u.product_id, p.name, u.quantity, u.price
		FROM updated u JOIN products p ON p.id = u.product_id`

	removeCartItemSQL = `DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// List returns the user's cart lines ordered by insertion.
func (r *CartRepository) List(ctx context.Context, userID int64) ([]cart.Item, error) {
	rows, err := r.pool.Query(ctx, listCartSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing cart of user %d: %w", userID, classify(err))
	}
	items, err := pgx.CollectRows(rows, scanCartItem)
	if err != nil {
		return nil, fmt.Errorf("listing cart of user %d: %w", userID, classify(err))
	}
	return items, nil
}

// Add upserts the line in a single statement, so concurrent adds of the
// same product never lose an increment.
func (r *CartRepository) Add(ctx context.Context, userID, productID int64, quantity int, price decimal.Decimal) (*cart.Item, error) {
	rows, err := r.pool.Query(ctx, addCartItemSQL, userID, productID, quantity, price)
	if err != nil {
		return nil, fmt.Errorf("adding product %d to cart: %w", productID, classify(err))
	}
	item, err := pgx.CollectExactlyOneRow(rows, scanCartItem)
	if err != nil {
		switch {
		case isPgCode(err, codeForeignKeyViolation):
			return nil, product.ErrNotFound
		case isPgCode(err, codeNumericOutOfRange):
			return nil, apperr.Invalid("quantity", "line total must be at most %d", cart.MaxQuantity)
		}
		return nil, fmt.Errorf("adding product %d to cart: %w", productID, classify(err))
	}
	return &item, nil
}

// SetQuantity replaces the quantity of an existing line.
func (r *CartRepository) SetQuantity(ctx context.Context, userID, productID int64, quantity int) (*cart.Item, error) {
	rows, err := r.pool.Query(ctx, setCartQuantitySQL, userID, productID, quantity)
	if err != nil {
		return nil, fmt.Errorf("updating cart item %d: %w", productID, classify(err))
	}
	item, err := pgx.CollectExactlyOneRow(rows, scanCartItem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrItemNotFound
		}
		return nil, fmt.Errorf("updating cart item %d: %w", productID, classify(err))
	}
	return &item, nil
}

// Remove deletes the line if present.
func (r *CartRepository) Remove(ctx context.Context, userID, productID int64) error {
	if _, err := r.pool.Exec(ctx, removeCartItemSQL, userID, productID); err != nil {
		return fmt.Errorf("removing cart item %d: %w", productID, classify(err))
	}
	return nil
}

func scanCartItem(row pgx.CollectableRow) (cart.Item, error) {
	var it cart.Item
	err := row.Scan(&it.ID, &it.UserID, &it.ProductID, &it.ProductName, &it.Quantity, &it.Price)
	return it, err
}
