// Package cart implements the per-user shopping cart.
package cart

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/auth"
)

// Service manages the caller's own cart lines.
type Service struct {
	items    Repository
	products ProductReader
}

// NewService creates a cart Service.
func NewService(items Repository, products ProductReader) *Service {
	return &Service{
		items:    items,
		products: products,
	}
}

// List returns the caller's cart lines enriched with product names.
func (s *Service) List(ctx context.Context, id auth.Identity) ([]Item, error) {
	items, err := s.items.List(ctx, id.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "list cart")
	}
	return items, nil
}

// Add puts quantity units of a product into the caller's cart, snapshotting
// the product's current price. Re-adding a product increments the existing
// line and refreshes its snapshot.
func (s *Service) Add(ctx context.Context, id auth.Identity, productID int64, quantity int) (*Item, error) {
	if err := validateQuantity(quantity); err != nil {
		return nil, err
	}
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	item, err := s.items.Add(ctx, id.UserID, p.ID, quantity, p.Price)
	if err != nil {
		return nil, errors.Wrap(err, "add cart item")
	}
	if item.ProductName == "" {
		item.ProductName = p.Name
	}
	return item, nil
}

// Update sets the quantity of an existing line. The price snapshot is
// left as is.
func (s *Service) Update(ctx context.Context, id auth.Identity, productID int64, quantity int) (*Item, error) {
	if err := validateQuantity(quantity); err != nil {
		return nil, err
	}
	return s.items.SetQuantity(ctx, id.UserID, productID, quantity)
}

// Remove deletes a line. Removing an absent line is not an error.
func (s *Service) Remove(ctx context.Context, id auth.Identity, productID int64) error {
	if err := s.items.Remove(ctx, id.UserID, productID); err != nil {
		return errors.Wrap(err, "remove cart item")
	}
	return nil
}
