package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/auth"
)

const maxIdempotencyKeyLen = 255

// PlaceOrder converts the caller's cart into a pending order in a single
// transaction: every line is checked against locked stock, the order is
// recorded with snapshot prices, stock is decremented and the consumed
// cart lines are removed. Nothing changes if any line is short.
//
// A non-empty idemKey makes the call replayable: a later call with the same
// key by the same user returns the order created by the first one.
func (s *Service) PlaceOrder(ctx context.Context, id auth.Identity, idemKey string) (*Order, error) {
	if len(idemKey) > maxIdempotencyKeyLen {
		return nil, apperr.Invalid("idempotency_key", "must be at most %d bytes", maxIdempotencyKeyLen)
	}

	ctx, span := s.tracer.Start(ctx, "order.Checkout",
		trace.WithAttributes(attribute.Int64("user.id", id.UserID)),
	)
	defer span.End()

	var (
		o   *Order
		err error
	)
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		o, err = s.checkout(ctx, id.UserID, idemKey)
		if err == nil || !errors.Is(err, apperr.ErrConflict) {
			break
		}
		zctx.From(ctx).Debug("Checkout conflict, retrying",
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}

	result := "ok"
	if err != nil {
		result = apperr.Kind(err)
	}
	s.attempts.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, result)
		zctx.From(ctx).Debug("Checkout rejected",
			zap.Int64("user_id", id.UserID),
			zap.String("kind", result),
			zap.Error(err),
		)
		return nil, errors.Wrap(err, "place order")
	}

	for _, fn := range s.onPlaced {
		fn(ctx, o)
	}

	total, _ := o.TotalPrice.Float64()
	s.totals.Record(ctx, total)
	span.SetAttributes(attribute.Int64("order.id", o.ID))

	zctx.From(ctx).Info("Order placed",
		zap.Int64("order_id", o.ID),
		zap.Int64("user_id", o.UserID),
		zap.String("total", o.TotalPrice.StringFixed(2)),
		zap.Int("lines", len(o.Items)),
	)
	return o, nil
}

func (s *Service) checkout(ctx context.Context, userID int64, idemKey string) (*Order, error) {
	var placed *Order
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		lines, err := tx.LockCart(ctx, userID)
		if err != nil {
			return errors.Wrap(err, "lock cart")
		}

		// Checked after locking so a concurrent checkout with the same key
		// has either committed or not started.
		if idemKey != "" {
			prev, err := tx.FindByIdempotencyKey(ctx, userID, idemKey)
			switch {
			case err == nil:
				placed = prev
				return nil
			case !errors.Is(err, apperr.ErrNotFound):
				return errors.Wrap(err, "find by idempotency key")
			}
		}

		if len(lines) == 0 {
			return apperr.ErrEmptyCart
		}

		for _, l := range lines {
			if l.Quantity > l.Stock {
				return &InsufficientStockError{
					ProductID:   l.ProductID,
					ProductName: l.ProductName,
					Requested:   l.Quantity,
					Available:   l.Stock,
				}
			}
		}

		o := &Order{
			UserID:         userID,
			TotalPrice:     Total(lines),
			Status:         StatusPending,
			IdempotencyKey: idemKey,
			Items:          make([]Item, 0, len(lines)),
		}
		cartIDs := make([]int64, 0, len(lines))
		for _, l := range lines {
			o.Items = append(o.Items, Item{
				ProductID:   l.ProductID,
				ProductName: l.ProductName,
				Quantity:    l.Quantity,
				Price:       l.Price,
			})
			cartIDs = append(cartIDs, l.CartItemID)
		}

		if err := tx.CreateOrder(ctx, o); err != nil {
			return errors.Wrap(err, "create order")
		}
		for _, l := range lines {
			if err := tx.DecrementStock(ctx, l.ProductID, l.Quantity); err != nil {
				return errors.Wrapf(err, "decrement stock of product %d", l.ProductID)
			}
		}
		if err := tx.ClearCart(ctx, userID, cartIDs); err != nil {
			return errors.Wrap(err, "clear cart")
		}

		placed = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return placed, nil
}
