// Package order implements checkout and the order ledger.
package order

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/storefront/internal/domain/auth"
)

const instrumentationName = "github.com/xenking/storefront/internal/domain/order"

// Option configures a Service.
type Option func(*Service)

// WithMeterProvider sets the meter provider for checkout metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) { s.meterProvider = mp }
}

// WithTracerProvider sets the tracer provider for checkout spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracerProvider = tp }
}

// WithMaxAttempts sets how many times PlaceOrder runs the checkout
// transaction when it fails with a retryable conflict. Values below 1 are
// treated as 1.
func WithMaxAttempts(n int) Option {
	return func(s *Service) { s.maxAttempts = max(n, 1) }
}

// WithPlacedHook registers fn to run after an order has been committed,
// for example to evict cached stock of the products it contains.
func WithPlacedHook(fn func(ctx context.Context, o *Order)) Option {
	return func(s *Service) { s.onPlaced = append(s.onPlaced, fn) }
}

// Service encapsulates checkout and order ledger business logic.
type Service struct {
	store       Store
	orders      Repository
	maxAttempts int
	onPlaced    []func(ctx context.Context, o *Order)

	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	tracer         trace.Tracer
	attempts       metric.Int64Counter
	totals         metric.Float64Histogram
}

// NewService creates an order Service.
func NewService(store Store, orders Repository, opts ...Option) (*Service, error) {
	s := &Service{
		store:          store,
		orders:         orders,
		maxAttempts:    3,
		meterProvider:  metricnoop.NewMeterProvider(),
		tracerProvider: tracenoop.NewTracerProvider(),
	}
	for _, o := range opts {
		o(s)
	}

	s.tracer = s.tracerProvider.Tracer(instrumentationName)
	meter := s.meterProvider.Meter(instrumentationName)

	var err error
	if s.attempts, err = meter.Int64Counter("shop.checkout.attempts",
		metric.WithDescription("Checkout attempts by result"),
	); err != nil {
		return nil, errors.Wrap(err, "checkout attempts counter")
	}
	if s.totals, err = meter.Float64Histogram("shop.checkout.order_total",
		metric.WithDescription("Total price of placed orders"),
	); err != nil {
		return nil, errors.Wrap(err, "order total histogram")
	}
	return s, nil
}

// ListOrders returns the caller's own orders.
func (s *Service) ListOrders(ctx context.Context, id auth.Identity) ([]Order, error) {
	orders, err := s.orders.ListByUser(ctx, id.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}

// ListAllOrders returns every order. Administrators only.
func (s *Service) ListAllOrders(ctx context.Context, id auth.Identity) ([]Order, error) {
	if err := id.RequireAdmin(); err != nil {
		return nil, err
	}
	orders, err := s.orders.ListAll(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list all orders")
	}
	return orders, nil
}

// VisibleOrders returns all orders to administrators and the caller's own
// orders to everyone else.
func (s *Service) VisibleOrders(ctx context.Context, id auth.Identity) ([]Order, error) {
	if id.IsAdmin {
		return s.ListAllOrders(ctx, id)
	}
	return s.ListOrders(ctx, id)
}

// GetOrder returns an order with its items. Non-administrators may only
// read their own orders.
func (s *Service) GetOrder(ctx context.Context, id auth.Identity, orderID int64) (*Order, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := id.RequireOwner(o.UserID); err != nil {
		return nil, err
	}
	return o, nil
}

// SetStatus changes an order's status. Administrators only. Only
// pending orders can move, to completed or cancelled; re-applying the
// current status is a no-op.
func (s *Service) SetStatus(ctx context.Context, id auth.Identity, orderID int64, status Status) (*Order, error) {
	if err := id.RequireAdmin(); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, &TransitionError{To: status}
	}

	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status == status {
		return o, nil
	}
	if !o.Status.CanTransitionTo(status) {
		return nil, &TransitionError{From: o.Status, To: status}
	}

	updated, err := s.orders.SetStatus(ctx, orderID, o.Status, status)
	if err != nil {
		return nil, errors.Wrapf(err, "set order %d status", orderID)
	}
	return updated, nil
}
