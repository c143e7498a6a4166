package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/order"
)

const (
	orderColumns = `id, user_id, total_price, status, idempotency_key, created_at`

	listOrdersByUserSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`

	listAllOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
		ORDER BY created_at DESC, id DESC`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	listOrderItemsSQL = `SELECT id, order_id, product_id, product_name, quantity, price
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, id`

	setOrderStatusSQL = `UPDATE orders SET status = $3
		WHERE id = $1 AND status = $2
		RETURNING ` + orderColumns

	orderExistsSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements the order ledger backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// ListByUser returns the user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID int64) ([]order.Order, error) {
	return r.list(ctx, listOrdersByUserSQL, userID)
}

// ListAll returns every order, newest first.
func (r *OrderRepository) ListAll(ctx context.Context) ([]order.Order, error) {
	return r.list(ctx, listAllOrdersSQL)
}

// Get returns an order with its items.
func (r *OrderRepository) Get(ctx context.Context, id int64) (*order.Order, error) {
	o, err := getOrder(ctx, r.pool, getOrderSQL, id)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// SetStatus moves the order from one status to another. The conditional
// update makes concurrent transitions from the same state exclusive.
func (r *OrderRepository) SetStatus(ctx context.Context, id int64, from, to order.Status) (*order.Order, error) {
	o, err := getOrder(ctx, r.pool, setOrderStatusSQL, id, from, to)
	if err == nil {
		return o, nil
	}
	if !errors.Is(err, order.ErrNotFound) {
		return nil, err
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, orderExistsSQL, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("checking order %d: %w", id, classify(err))
	}
	if !exists {
		return nil, order.ErrNotFound
	}
	return nil, errors.Wrapf(apperr.ErrConflict, "order %d is no longer %s", id, from)
}

func (r *OrderRepository) list(ctx context.Context, query string, args ...any) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", classify(err))
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", classify(err))
	}
	if err := loadItems(ctx, r.pool, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// getOrder runs a single-order query and attaches the items.
func getOrder(ctx context.Context, q querier, query string, args ...any) (*order.Order, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("getting order: %w", classify(err))
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order: %w", classify(err))
	}

	orders := []order.Order{o}
	if err := loadItems(ctx, q, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// loadItems fetches the items of all orders in one query.
func loadItems(ctx context.Context, q querier, orders []order.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]int64, len(orders))
	index := make(map[int64]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}

	rows, err := q.Query(ctx, listOrderItemsSQL, ids)
	if err != nil {
		return fmt.Errorf("listing order items: %w", classify(err))
	}
	items, err := pgx.CollectRows(rows, scanOrderItem)
	if err != nil {
		return fmt.Errorf("listing order items: %w", classify(err))
	}
	for _, it := range items {
		i := index[it.OrderID]
		orders[i].Items = append(orders[i].Items, it)
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o       order.Order
		userID  *int64
		status  string
		idemKey *string
	)
	err := row.Scan(&o.ID, &userID, &o.TotalPrice, &status, &idemKey, &o.CreatedAt)
	if userID != nil {
		o.UserID = *userID
	}
	if idemKey != nil {
		o.IdempotencyKey = *idemKey
	}
	o.Status = order.Status(status)
	return o, err
}

func scanOrderItem(row pgx.CollectableRow) (order.Item, error) {
	var (
		it        order.Item
		productID *int64
	)
	err := row.Scan(&it.ID, &it.OrderID, &productID, &it.ProductName, &it.Quantity, &it.Price)
	if productID != nil {
		it.ProductID = *productID
	}
	return it, err
}
