package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/order"
)

const (
	// Rows are locked in output order, so sorting by product id gives every
	// checkout the same lock order on shared products.
	lockCartSQL = `SELECT c.id, c.product_id, p.name, c.quantity, c.price, p.stock
		FROM cart_items c
		JOIN products p ON p.id = c.product_id
		WHERE c.user_id = $1
		ORDER BY c.product_id
		FOR UPDATE OF c, p`

	findByIdempotencyKeySQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE user_id = $1 AND idempotency_key = $2`

	insertOrderSQL = `INSERT INTO orders (user_id, total_price, status, idempotency_key)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		RETURNING id, created_at`

	insertOrderItemSQL = `INSERT INTO order_items (order_id, product_id, product_name, quantity, price)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	decrementStockSQL = `UPDATE products SET stock = stock - $2
		WHERE id = $1 AND stock >= $2
		RETURNING stock`

	productStockSQL = `SELECT name, stock FROM products WHERE id = $1`

	clearCartSQL = `DELETE FROM cart_items WHERE user_id = $1 AND id = ANY($2)`
)

var _ order.Store = (*CheckoutStore)(nil)

// CheckoutStore runs checkouts in READ COMMITTED transactions with row
// locks on the cart lines and products involved.
type CheckoutStore struct {
	pool *pgxpool.Pool
}

// NewCheckoutStore returns a CheckoutStore that uses the given pool.
func NewCheckoutStore(pool *pgxpool.Pool) *CheckoutStore {
	return &CheckoutStore{pool: pool}
}

// InTx runs fn in a transaction, committing only if fn succeeds.
func (s *CheckoutStore) InTx(ctx context.Context, fn func(context.Context, order.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin checkout: %w", classify(err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &checkoutTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit checkout: %w", classify(err))
	}
	return nil
}

type checkoutTx struct {
	tx pgx.Tx
}

func (t *checkoutTx) LockCart(ctx context.Context, userID int64) ([]order.Line, error) {
	rows, err := t.tx.Query(ctx, lockCartSQL, userID)
	if err != nil {
		return nil, classify(err)
	}
	lines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Line, error) {
		var l order.Line
		err := row.Scan(&l.CartItemID, &l.ProductID, &l.ProductName, &l.Quantity, &l.Price, &l.Stock)
		return l, err
	})
	if err != nil {
		return nil, classify(err)
	}
	return lines, nil
}

func (t *checkoutTx) FindByIdempotencyKey(ctx context.Context, userID int64, key string) (*order.Order, error) {
	return getOrder(ctx, t.tx, findByIdempotencyKeySQL, userID, key)
}

func (t *checkoutTx) CreateOrder(ctx context.Context, o *order.Order) error {
	err := t.tx.QueryRow(ctx, insertOrderSQL, o.UserID, o.TotalPrice, string(o.Status), o.IdempotencyKey).
		Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting order: %w", classify(err))
	}

	batch := &pgx.Batch{}
	for i := range o.Items {
		it := &o.Items[i]
		it.OrderID = o.ID
		batch.Queue(insertOrderItemSQL, o.ID, it.ProductID, it.ProductName, it.Quantity, it.Price).
			QueryRow(func(row pgx.Row) error {
				return row.Scan(&it.ID)
			})
	}
	if err := t.tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("inserting order items: %w", classify(err))
	}
	return nil
}

func (t *checkoutTx) DecrementStock(ctx context.Context, productID int64, quantity int) error {
	var left int
	err := t.tx.QueryRow(ctx, decrementStockSQL, productID, quantity).Scan(&left)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return classify(err)
	}

	stockErr := &order.InsufficientStockError{ProductID: productID, Requested: quantity}
	if err := t.tx.QueryRow(ctx, productStockSQL, productID).Scan(&stockErr.ProductName, &stockErr.Available); err != nil {
		return classify(err)
	}
	return stockErr
}

func (t *checkoutTx) ClearCart(ctx context.Context, userID int64, cartItemIDs []int64) error {
	if _, err := t.tx.Exec(ctx, clearCartSQL, userID, cartItemIDs); err != nil {
		return classify(err)
	}
	return nil
}
