package order

import (
	"context"
	"maps"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/auth"
)

// --- In-memory store ---

type memProduct struct {
	name  string
	stock int
}

type memCartLine struct {
	id        int64
	userID    int64
	productID int64
	quantity  int
	price     decimal.Decimal
}

type memState struct {
	products map[int64]memProduct
	cart     []memCartLine
	orders   []Order
	nextID   int64
}

func (s memState) clone() memState {
	c := memState{
		products: maps.Clone(s.products),
		cart:     append([]memCartLine(nil), s.cart...),
		orders:   append([]Order(nil), s.orders...),
		nextID:   s.nextID,
	}
	return c
}

// memStore serializes transactions and commits by swapping in the
// modified copy of the state.
type memStore struct {
	mu       sync.Mutex
	state    memState
	txCount  int
	failWith []error
}

func newMemStore() *memStore {
	return &memStore{state: memState{products: map[int64]memProduct{}, nextID: 1}}
}

func (m *memStore) addProduct(id int64, name string, stock int) {
	m.state.products[id] = memProduct{name: name, stock: stock}
}

func (m *memStore) addToCart(userID, productID int64, qty int, price string) {
	m.state.cart = append(m.state.cart, memCartLine{
		id:        m.state.nextID,
		userID:    userID,
		productID: productID,
		quantity:  qty,
		price:     decimal.RequireFromString(price),
	})
	m.state.nextID++
}

func (m *memStore) InTx(ctx context.Context, fn func(context.Context, Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txCount++
	if len(m.failWith) > 0 {
		err := m.failWith[0]
		m.failWith = m.failWith[1:]
		return err
	}
	tx := &memTx{state: m.state.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.state = tx.state
	return nil
}

func (m *memStore) stock(id int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.products[id].stock
}

func (m *memStore) cartLen(userID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, l := range m.state.cart {
		if l.userID == userID {
			n++
		}
	}
	return n
}

// Ledger side of memStore.

func (m *memStore) ListByUser(_ context.Context, userID int64) ([]Order, error) {
	all, _ := m.ListAll(context.Background())
	var out []Order
	for _, o := range all {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memStore) ListAll(context.Context) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]Order(nil), m.state.orders...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memStore) Get(_ context.Context, id int64) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.state.orders {
		if o.ID == id {
			return &o, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) SetStatus(_ context.Context, id int64, from, to Status) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.state.orders {
		o := &m.state.orders[i]
		if o.ID != id {
			continue
		}
		if o.Status != from {
			return nil, errors.Wrap(apperr.ErrConflict, "status changed")
		}
		o.Status = to
		cp := *o
		return &cp, nil
	}
	return nil, ErrNotFound
}

type memTx struct {
	state memState
}

func (t *memTx) LockCart(_ context.Context, userID int64) ([]Line, error) {
	var lines []Line
	for _, c := range t.state.cart {
		if c.userID != userID {
			continue
		}
		p := t.state.products[c.productID]
		lines = append(lines, Line{
			CartItemID:  c.id,
			ProductID:   c.productID,
			ProductName: p.name,
			Quantity:    c.quantity,
			Price:       c.price,
			Stock:       p.stock,
		})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
	return lines, nil
}

func (t *memTx) FindByIdempotencyKey(_ context.Context, userID int64, key string) (*Order, error) {
	for _, o := range t.state.orders {
		if o.UserID == userID && o.IdempotencyKey == key {
			return &o, nil
		}
	}
	return nil, ErrNotFound
}

func (t *memTx) CreateOrder(_ context.Context, o *Order) error {
	o.ID = t.state.nextID
	t.state.nextID++
	o.CreatedAt = time.Now()
	for i := range o.Items {
		o.Items[i].ID = t.state.nextID
		o.Items[i].OrderID = o.ID
		t.state.nextID++
	}
	cp := *o
	cp.Items = append([]Item(nil), o.Items...)
	t.state.orders = append(t.state.orders, cp)
	return nil
}

func (t *memTx) DecrementStock(_ context.Context, productID int64, quantity int) error {
	p := t.state.products[productID]
	if p.stock < quantity {
		return &InsufficientStockError{ProductID: productID, Requested: quantity, Available: p.stock}
	}
	p.stock -= quantity
	t.state.products[productID] = p
	return nil
}

func (t *memTx) ClearCart(_ context.Context, userID int64, ids []int64) error {
	keep := t.state.cart[:0:0]
	for _, c := range t.state.cart {
		if c.userID == userID && contains(ids, c.id) {
			continue
		}
		keep = append(keep, c)
	}
	t.state.cart = keep
	return nil
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// --- Helpers ---

var (
	alice = auth.Identity{UserID: 1, Username: "alice"}
	bob   = auth.Identity{UserID: 2, Username: "bob"}
	admin = auth.Identity{UserID: 99, Username: "root", IsAdmin: true}
)

func newTestService(t *testing.T, store *memStore, opts ...Option) *Service {
	t.Helper()
	svc, err := NewService(store, store, opts...)
	require.NoError(t, err)
	return svc
}

// --- Tests ---

func TestPlaceOrder(t *testing.T) {
	store := newMemStore()
	store.addProduct(1, "Widget", 5)
	store.addProduct(2, "Gadget", 1)
	store.addToCart(alice.UserID, 1, 2, "10.00")
	store.addToCart(alice.UserID, 2, 1, "5.00")
	store.addToCart(bob.UserID, 1, 1, "10.00")
	svc := newTestService(t, store)

	o, err := svc.PlaceOrder(context.Background(), alice, "")
	require.NoError(t, err)

	assert.NotZero(t, o.ID)
	assert.Equal(t, alice.UserID, o.UserID)
	assert.Equal(t, StatusPending, o.Status)
	assert.True(t, decimal.RequireFromString("25.00").Equal(o.TotalPrice), "total %s", o.TotalPrice)
	require.Len(t, o.Items, 2)
	assert.Equal(t, "Widget", o.Items[0].ProductName)
	assert.Equal(t, 2, o.Items[0].Quantity)

	var sum decimal.Decimal
	for _, it := range o.Items {
		sum = sum.Add(it.Subtotal())
	}
	assert.True(t, sum.Equal(o.TotalPrice))

	assert.Equal(t, 3, store.stock(1))
	assert.Equal(t, 0, store.stock(2))
	assert.Equal(t, 0, store.cartLen(alice.UserID))
	assert.Equal(t, 1, store.cartLen(bob.UserID), "other users' carts are untouched")
}

func TestPlaceOrder_InsufficientStock(t *testing.T) {
	store := newMemStore()
	store.addProduct(1, "Widget", 5)
	store.addProduct(2, "Gadget", 1)
	store.addToCart(alice.UserID, 1, 2, "10.00")
	store.addToCart(alice.UserID, 2, 3, "5.00")
	svc := newTestService(t, store)

	_, err := svc.PlaceOrder(context.Background(), alice, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrInsufficientStock)

	var ise *InsufficientStockError
	require.True(t, errors.As(err, &ise))
	assert.Equal(t, int64(2), ise.ProductID)
	assert.Equal(t, "Gadget", ise.ProductName)
	assert.Equal(t, 3, ise.Requested)
	assert.Equal(t, 1, ise.Available)

	// Nothing changed.
	assert.Equal(t, 5, store.stock(1))
	assert.Equal(t, 1, store.stock(2))
	assert.Equal(t, 2, store.cartLen(alice.UserID))
	orders, err := svc.ListOrders(context.Background(), alice)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestPlaceOrder_EmptyCart(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store)

	_, err := svc.PlaceOrder(context.Background(), alice, "")
	assert.ErrorIs(t, err, apperr.ErrEmptyCart)
	assert.Equal(t, apperr.KindEmptyCart, apperr.Kind(err))
}

func TestPlaceOrder_SnapshotPrice(t *testing.T) {
	store := newMemStore()
	store.addProduct(1, "Widget", 10)
	// Cart line captured at 10.00; the catalog price has since moved.
	store.addToCart(alice.UserID, 1, 1, "10.00")
	svc := newTestService(t, store)

	o, err := svc.PlaceOrder(context.Background(), alice, "")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("10.00").Equal(o.TotalPrice))
	assert.True(t, decimal.RequireFromString("10.00").Equal(o.Items[0].Price))
}

func TestPlaceOrder_Idempotent(t *testing.T) {
	store := newMemStore()
	store.addProduct(1, "Widget", 5)
	store.addToCart(alice.UserID, 1, 2, "10.00")
	svc := newTestService(t, store)
	ctx := context.Background()

	first, err := svc.PlaceOrder(ctx, alice, "key-1")
	require.NoError(t, err)

	again, err := svc.PlaceOrder(ctx, alice, "key-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, 3, store.stock(1), "replay must not decrement stock again")

	// Same key from another user is a different request.
	_, err = svc.PlaceOrder(ctx, bob, "key-1")
	assert.ErrorIs(t, err, apperr.ErrEmptyCart)

	// A fresh key with an empty cart fails.
	_, err = svc.PlaceOrder(ctx, alice, "key-2")
	assert.ErrorIs(t, err, apperr.ErrEmptyCart)
}

func TestPlaceOrder_IdempotencyKeyTooLong(t *testing.T) {
	svc := newTestService(t, newMemStore())
	long := make([]byte, maxIdempotencyKeyLen+1)
	for i := range long {
		long[i] = 'k'
	}
	_, err := svc.PlaceOrder(context.Background(), alice, string(long))
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestPlaceOrder_RetriesConflict(t *testing.T) {
	store := newMemStore()
	store.addProduct(1, "Widget", 5)
	store.addToCart(alice.UserID, 1, 1, "10.00")
	store.failWith = []error{errors.Wrap(apperr.ErrConflict, "deadlock")}
	svc := newTestService(t, store)

	o, err := svc.PlaceOrder(context.Background(), alice, "")
	require.NoError(t, err)
	assert.NotZero(t, o.ID)
	assert.Equal(t, 2, store.txCount)
}

func TestPlaceOrder_ConflictExhausted(t *testing.T) {
	store := newMemStore()
	store.addProduct(1, "Widget", 5)
	store.addToCart(alice.UserID, 1, 1, "10.00")
	conflict := errors.Wrap(apperr.ErrConflict, "serialization failure")
	store.failWith = []error{conflict, conflict}
	svc := newTestService(t, store, WithMaxAttempts(2))

	_, err := svc.PlaceOrder(context.Background(), alice, "")
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Equal(t, 2, store.txCount)
	assert.Equal(t, 5, store.stock(1))
}

func TestPlaceOrder_NoRetryOnOtherErrors(t *testing.T) {
	store := newMemStore()
	store.failWith = []error{errors.Wrap(apperr.ErrUnavailable, "db down")}
	svc := newTestService(t, store)

	_, err := svc.PlaceOrder(context.Background(), alice, "")
	assert.ErrorIs(t, err, apperr.ErrUnavailable)
	assert.Equal(t, 1, store.txCount)
}

func TestPlaceOrder_ConcurrentNoOversell(t *testing.T) {
	store := newMemStore()
	store.addProduct(1, "Widget", 3)
	const buyers = 10
	for u := int64(1); u <= buyers; u++ {
		store.addToCart(u, 1, 1, "1.00")
	}
	svc := newTestService(t, store)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		placed  int
		shorted int
	)
	for u := int64(1); u <= buyers; u++ {
		wg.Add(1)
		go func(id auth.Identity) {
			defer wg.Done()
			_, err := svc.PlaceOrder(context.Background(), id, "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				placed++
			case errors.Is(err, apperr.ErrInsufficientStock):
				shorted++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(auth.Identity{UserID: u})
	}
	wg.Wait()

	assert.Equal(t, 3, placed)
	assert.Equal(t, buyers-3, shorted)
	assert.Equal(t, 0, store.stock(1))
}

func TestOrderVisibility(t *testing.T) {
	store := newMemStore()
	store.addProduct(1, "Widget", 10)
	store.addToCart(alice.UserID, 1, 1, "10.00")
	store.addToCart(bob.UserID, 1, 1, "10.00")
	svc := newTestService(t, store)
	ctx := context.Background()

	ao, err := svc.PlaceOrder(ctx, alice, "")
	require.NoError(t, err)
	bo, err := svc.PlaceOrder(ctx, bob, "")
	require.NoError(t, err)

	t.Run("own listing", func(t *testing.T) {
		orders, err := svc.ListOrders(ctx, alice)
		require.NoError(t, err)
		require.Len(t, orders, 1)
		assert.Equal(t, ao.ID, orders[0].ID)
	})
	t.Run("all orders requires admin", func(t *testing.T) {
		_, err := svc.ListAllOrders(ctx, alice)
		assert.ErrorIs(t, err, apperr.ErrForbidden)

		orders, err := svc.ListAllOrders(ctx, admin)
		require.NoError(t, err)
		require.Len(t, orders, 2)
		assert.Equal(t, bo.ID, orders[0].ID, "newest first")
	})
	t.Run("visible by role", func(t *testing.T) {
		orders, err := svc.VisibleOrders(ctx, bob)
		require.NoError(t, err)
		assert.Len(t, orders, 1)

		orders, err = svc.VisibleOrders(ctx, admin)
		require.NoError(t, err)
		assert.Len(t, orders, 2)
	})
	t.Run("get", func(t *testing.T) {
		o, err := svc.GetOrder(ctx, alice, ao.ID)
		require.NoError(t, err)
		assert.Len(t, o.Items, 1)

		_, err = svc.GetOrder(ctx, bob, ao.ID)
		assert.ErrorIs(t, err, apperr.ErrForbidden)

		_, err = svc.GetOrder(ctx, admin, ao.ID)
		assert.NoError(t, err)

		_, err = svc.GetOrder(ctx, alice, 12345)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})
}

func TestSetStatus(t *testing.T) {
	store := newMemStore()
	store.addProduct(1, "Widget", 10)
	store.addToCart(alice.UserID, 1, 1, "10.00")
	store.addToCart(bob.UserID, 1, 1, "10.00")
	svc := newTestService(t, store)
	ctx := context.Background()

	ao, err := svc.PlaceOrder(ctx, alice, "")
	require.NoError(t, err)
	bo, err := svc.PlaceOrder(ctx, bob, "")
	require.NoError(t, err)

	_, err = svc.SetStatus(ctx, alice, ao.ID, StatusCompleted)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	o, err := svc.SetStatus(ctx, admin, ao.ID, StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, o.Status)

	o, err = svc.SetStatus(ctx, admin, ao.ID, StatusCompleted)
	require.NoError(t, err, "re-applying the current status is a no-op")
	assert.Equal(t, StatusCompleted, o.Status)

	_, err = svc.SetStatus(ctx, admin, ao.ID, StatusPending)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	var te *TransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, StatusCompleted, te.From)

	_, err = svc.SetStatus(ctx, admin, ao.ID, StatusCancelled)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	o, err = svc.SetStatus(ctx, admin, bo.ID, StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, o.Status)

	_, err = svc.SetStatus(ctx, admin, bo.ID, Status("shipped"))
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.SetStatus(ctx, admin, 12345, StatusCompleted)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestStatus(t *testing.T) {
	for _, tt := range []struct {
		from, to Status
		ok       bool
	}{
		{StatusPending, StatusCompleted, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusPending, true},
		{StatusCompleted, StatusCompleted, true},
		{StatusCompleted, StatusPending, false},
		{StatusCancelled, StatusCompleted, false},
		{Status("bogus"), Status("bogus"), false},
	} {
		assert.Equal(t, tt.ok, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}

	assert.True(t, StatusCompleted.Terminal())
	assert.False(t, StatusPending.Terminal())

	_, err := ParseStatus("shipped")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	st, err := ParseStatus("cancelled")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, st)
}

func TestPlaceOrder_PlacedHook(t *testing.T) {
	store := newMemStore()
	store.addProduct(1, "Widget", 5)
	store.addToCart(alice.UserID, 1, 1, "10.00")

	var got []int64
	svc := newTestService(t, store, WithPlacedHook(func(_ context.Context, o *Order) {
		for _, it := range o.Items {
			got = append(got, it.ProductID)
		}
	}))

	_, err := svc.PlaceOrder(context.Background(), alice, "")
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, got)

	got = nil
	_, err = svc.PlaceOrder(context.Background(), alice, "")
	require.ErrorIs(t, err, apperr.ErrEmptyCart)
	assert.Empty(t, got, "hook runs only for placed orders")
}
