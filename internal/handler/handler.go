// Package handler exposes the storefront domain services over HTTP/JSON.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
)

// AuthService is the Access Gate and account service.
type AuthService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.User, error)
	Login(ctx context.Context, username, password string) (*auth.Token, error)
	Authenticate(ctx context.Context, token string) (auth.Identity, error)
	Me(ctx context.Context, id auth.Identity) (*auth.User, error)
}

// ProductService is the catalog.
type ProductService interface {
	List(ctx context.Context, params product.ListParams) ([]product.Product, error)
	Get(ctx context.Context, id int64) (*product.Product, error)
	Create(ctx context.Context, id auth.Identity, p *product.Product) error
	Update(ctx context.Context, id auth.Identity, productID int64, u product.Update) (*product.Product, error)
	Delete(ctx context.Context, id auth.Identity, productID int64) error
}

// CartService is the per-user cart.
type CartService interface {
	List(ctx context.Context, id auth.Identity) ([]cart.Item, error)
	Add(ctx context.Context, id auth.Identity, productID int64, quantity int) (*cart.Item, error)
	Update(ctx context.Context, id auth.Identity, productID int64, quantity int) (*cart.Item, error)
	Remove(ctx context.Context, id auth.Identity, productID int64) error
}

// OrderService is checkout and the order ledger.
type OrderService interface {
	PlaceOrder(ctx context.Context, id auth.Identity, idemKey string) (*order.Order, error)
	VisibleOrders(ctx context.Context, id auth.Identity) ([]order.Order, error)
	ListAllOrders(ctx context.Context, id auth.Identity) ([]order.Order, error)
	GetOrder(ctx context.Context, id auth.Identity, orderID int64) (*order.Order, error)
	SetStatus(ctx context.Context, id auth.Identity, orderID int64, status order.Status) (*order.Order, error)
}

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// RequestTimeout bounds every API call. Zero disables the bound.
	RequestTimeout time.Duration
	// MaxBodyBytes limits request bodies. Defaults to 1 MiB.
	MaxBodyBytes int64
}

// Handler serves the /api routes.
type Handler struct {
	auth     AuthService
	products ProductService
	carts    CartService
	orders   OrderService

	timeout time.Duration
	maxBody int64
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	cfg Config,
	authSvc AuthService,
	products ProductService,
	carts CartService,
	orders OrderService,
) *Handler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	return &Handler{
		auth:     authSvc,
		products: products,
		carts:    carts,
		orders:   orders,
		timeout:  cfg.RequestTimeout,
		maxBody:  cfg.MaxBodyBytes,
	}
}

// Register mounts every API route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle("POST /api/auth/register", h.public(h.register))
	mux.Handle("POST /api/auth/login", h.public(h.login))
	mux.Handle("GET /api/auth/me", h.private(h.me))

	mux.Handle("GET /api/products", h.public(h.listProducts))
	mux.Handle("GET /api/products/{id}", h.public(h.getProduct))
	mux.Handle("POST /api/products", h.private(h.createProduct))
	mux.Handle("PATCH /api/products/{id}", h.private(h.updateProduct))
	mux.Handle("PUT /api/products/{id}", h.private(h.updateProduct))
	mux.Handle("DELETE /api/products/{id}", h.private(h.deleteProduct))

	mux.Handle("GET /api/cart", h.private(h.listCart))
	mux.Handle("POST /api/cart", h.private(h.addToCart))
	mux.Handle("PUT /api/cart/{productID}", h.private(h.updateCartItem))
	mux.Handle("DELETE /api/cart/{productID}", h.private(h.removeCartItem))

	mux.Handle("POST /api/orders", h.private(h.placeOrder))
	mux.Handle("GET /api/orders", h.private(h.listOrders))
	mux.Handle("GET /api/orders/all", h.private(h.listAllOrders))
	mux.Handle("GET /api/orders/{id}", h.private(h.getOrder))
	mux.Handle("PUT /api/orders/{id}/status", h.private(h.setOrderStatus))
}

type (
	publicFunc  func(w http.ResponseWriter, r *http.Request) error
	privateFunc func(w http.ResponseWriter, r *http.Request, id auth.Identity) error
)

// public adapts an unauthenticated endpoint.
func (h *Handler) public(fn publicFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r, cancel := h.prepare(w, r)
		defer cancel()
		if err := fn(w, r); err != nil {
			writeError(r.Context(), w, err)
		}
	})
}

// private adapts an endpoint that requires a bearer token. The resolved
// Identity is passed explicitly.
func (h *Handler) private(fn privateFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r, cancel := h.prepare(w, r)
		defer cancel()
		id, err := h.identify(r)
		if err != nil {
			writeError(r.Context(), w, err)
			return
		}
		if err := fn(w, r, id); err != nil {
			writeError(r.Context(), w, err)
		}
	})
}

func (h *Handler) prepare(w http.ResponseWriter, r *http.Request) (*http.Request, context.CancelFunc) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	if h.timeout <= 0 {
		return r, func() {}
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	return r.WithContext(ctx), cancel
}
