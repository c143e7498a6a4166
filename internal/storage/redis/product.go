// Package redis provides a read-through product cache on top of Redis.
package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	goredis "github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/product"
)

const keyPrefix = "shop:product:"

// Client is the subset of the go-redis API the cache uses.
type Client interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd
	Del(ctx context.Context, keys ...string) *goredis.IntCmd
}

var _ product.Repository = (*ProductCache)(nil)

// ProductCache caches single-product lookups of the wrapped repository.
// Writes go through to the repository and evict the cached entry. Listings
// are never cached. Cache failures are logged and fall back to the
// repository.
type ProductCache struct {
	next   product.Repository
	client Client
	ttl    time.Duration
}

// NewProductCache wraps next with a cache stored in client.
func NewProductCache(next product.Repository, client Client, ttl time.Duration) *ProductCache {
	return &ProductCache{next: next, client: client, ttl: ttl}
}

// NewClient connects to Redis at addr and checks the connection.
func NewClient(ctx context.Context, addr string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(addr)
	if err != nil {
		opts = &goredis.Options{Addr: addr}
	}
	client := goredis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return client, nil
}

func key(id int64) string {
	return keyPrefix + strconv.FormatInt(id, 10)
}

func (c *ProductCache) List(ctx context.Context, params product.ListParams) ([]product.Product, error) {
	return c.next.List(ctx, params)
}

func (c *ProductCache) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	raw, err := c.client.Get(ctx, key(id)).Bytes()
	switch {
	case err == nil:
		p, decErr := decodeProduct(raw)
		if decErr == nil {
			return p, nil
		}
		zctx.From(ctx).Warn("Drop malformed cache entry", zap.Int64("product_id", id), zap.Error(decErr))
	case !errors.Is(err, goredis.Nil):
		zctx.From(ctx).Warn("Product cache read failed", zap.Int64("product_id", id), zap.Error(err))
	}

	p, err := c.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.client.Set(ctx, key(id), encodeProduct(p), c.ttl).Err(); err != nil {
		zctx.From(ctx).Warn("Product cache write failed", zap.Int64("product_id", id), zap.Error(err))
	}
	return p, nil
}

func (c *ProductCache) Create(ctx context.Context, p *product.Product) error {
	return c.next.Create(ctx, p)
}

func (c *ProductCache) Update(ctx context.Context, id int64, u product.Update) (*product.Product, error) {
	p, err := c.next.Update(ctx, id, u)
	c.evict(ctx, id)
	return p, err
}

func (c *ProductCache) Delete(ctx context.Context, id int64) error {
	err := c.next.Delete(ctx, id)
	c.evict(ctx, id)
	return err
}

// Evict drops the cached copies of the given products, e.g. after their
// stock changed.
func (c *ProductCache) Evict(ctx context.Context, ids ...int64) {
	for _, id := range ids {
		c.evict(ctx, id)
	}
}

func (c *ProductCache) evict(ctx context.Context, id int64) {
	if err := c.client.Del(ctx, key(id)).Err(); err != nil {
		zctx.From(ctx).Warn("Product cache evict failed", zap.Int64("product_id", id), zap.Error(err))
	}
}

func encodeProduct(p *product.Product) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("description")
	e.Str(p.Description)
	e.FieldStart("price")
	e.Str(p.Price.String())
	e.FieldStart("image_url")
	e.Str(p.ImageURL)
	e.FieldStart("stock")
	e.Int(p.Stock)
	e.FieldStart("created_at")
	e.Str(p.CreatedAt.Format(time.RFC3339Nano))
	e.ObjEnd()
	return e.Bytes()
}

func decodeProduct(raw []byte) (*product.Product, error) {
	var p product.Product
	err := jx.DecodeBytes(raw).Obj(func(d *jx.Decoder, k string) error {
		var err error
		switch k {
		case "id":
			p.ID, err = d.Int64()
		case "name":
			p.Name, err = d.Str()
		case "description":
			p.Description, err = d.Str()
		case "price":
			var s string
			if s, err = d.Str(); err == nil {
				p.Price, err = decimal.NewFromString(s)
			}
		case "image_url":
			p.ImageURL, err = d.Str()
		case "stock":
			p.Stock, err = d.Int()
		case "created_at":
			var s string
			if s, err = d.Str(); err == nil {
				p.CreatedAt, err = time.Parse(time.RFC3339Nano, s)
			}
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode cached product")
	}
	return &p, nil
}
