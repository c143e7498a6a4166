package redis

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	goredis "github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/product"
)

type fakeClient struct {
	data    map[string][]byte
	failGet error
	sets    int
}

func newFakeClient() *fakeClient {
	return &fakeClient{data: map[string][]byte{}}
}

func (f *fakeClient) Get(_ context.Context, key string) *goredis.StringCmd {
	if f.failGet != nil {
		return goredis.NewStringResult("", f.failGet)
	}
	v, ok := f.data[key]
	if !ok {
		return goredis.NewStringResult("", goredis.Nil)
	}
	return goredis.NewStringResult(string(v), nil)
}

func (f *fakeClient) Set(_ context.Context, key string, value any, _ time.Duration) *goredis.StatusCmd {
	f.sets++
	f.data[key] = value.([]byte)
	return goredis.NewStatusResult("OK", nil)
}

func (f *fakeClient) Del(_ context.Context, keys ...string) *goredis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return goredis.NewIntResult(n, nil)
}

type countingRepo struct {
	product.Repository
	p    product.Product
	gets int
}

func (r *countingRepo) GetByID(_ context.Context, id int64) (*product.Product, error) {
	r.gets++
	if id != r.p.ID {
		return nil, product.ErrNotFound
	}
	cp := r.p
	return &cp, nil
}

func (r *countingRepo) Update(_ context.Context, _ int64, u product.Update) (*product.Product, error) {
	if u.Price != nil {
		r.p.Price = *u.Price
	}
	cp := r.p
	return &cp, nil
}

func TestProductCache_ReadThrough(t *testing.T) {
	ctx := context.Background()
	repo := &countingRepo{p: product.Product{
		ID:          7,
		Name:        "Widget",
		Description: "A \"quoted\" widget",
		Price:       decimal.RequireFromString("10.50"),
		ImageURL:    "https://example.com/w.png",
		Stock:       3,
		CreatedAt:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}}
	client := newFakeClient()
	cache := NewProductCache(repo, client, time.Minute)

	p, err := cache.GetByID(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.gets)

	cached, err := cache.GetByID(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.gets, "second read is served from cache")
	assert.Equal(t, p.Name, cached.Name)
	assert.Equal(t, p.Description, cached.Description)
	assert.True(t, p.Price.Equal(cached.Price))
	assert.Equal(t, p.Stock, cached.Stock)
	assert.True(t, p.CreatedAt.Equal(cached.CreatedAt))

	_, err = cache.GetByID(ctx, 8)
	assert.ErrorIs(t, err, product.ErrNotFound)
}

func TestProductCache_UpdateEvicts(t *testing.T) {
	ctx := context.Background()
	repo := &countingRepo{p: product.Product{ID: 1, Name: "Widget", Price: decimal.NewFromInt(10)}}
	cache := NewProductCache(repo, newFakeClient(), time.Minute)

	_, err := cache.GetByID(ctx, 1)
	require.NoError(t, err)

	price := decimal.NewFromInt(12)
	_, err = cache.Update(ctx, 1, product.Update{Price: &price})
	require.NoError(t, err)

	p, err := cache.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.True(t, price.Equal(p.Price))
	assert.Equal(t, 2, repo.gets)

	cache.Evict(ctx, 1)
	_, err = cache.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, repo.gets)
}

func TestProductCache_FallsBackOnCacheErrors(t *testing.T) {
	ctx := context.Background()
	repo := &countingRepo{p: product.Product{ID: 1, Name: "Widget", Price: decimal.NewFromInt(10)}}
	client := newFakeClient()
	client.failGet = errors.New("connection refused")
	cache := NewProductCache(repo, client, time.Minute)

	p, err := cache.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Widget", p.Name)

	client.failGet = nil
	client.data[key(1)] = []byte("{not json")
	_, err = cache.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.gets)
}
