// Package product implements the storefront catalog.
package product

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/auth"
)

const maxNameLen = 100

// Service exposes catalog reads to everyone and catalog management to
// administrators.
type Service struct {
	repo Repository
}

// NewService creates a catalog Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns a page of products. A zero limit selects DefaultLimit and
// limits above MaxLimit are clamped.
func (s *Service) List(ctx context.Context, params ListParams) ([]Product, error) {
	if params.Offset < 0 {
		return nil, apperr.Invalid("offset", "must not be negative")
	}
	switch {
	case params.Limit < 0:
		return nil, apperr.Invalid("limit", "must not be negative")
	case params.Limit == 0:
		params.Limit = DefaultLimit
	case params.Limit > MaxLimit:
		params.Limit = MaxLimit
	}
	params.Search = strings.TrimSpace(params.Search)

	products, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return products, nil
}

// Get returns a single product.
func (s *Service) Get(ctx context.Context, id int64) (*Product, error) {
	return s.repo.GetByID(ctx, id)
}

// Create adds a product to the catalog.
func (s *Service) Create(ctx context.Context, id auth.Identity, p *Product) error {
	if err := id.RequireAdmin(); err != nil {
		return err
	}
	p.Name = strings.TrimSpace(p.Name)
	if err := validate(p.Name, p.Price, p.Stock); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return errors.Wrap(err, "create product")
	}
	return nil
}

// Update overwrites only the fields set in u.
func (s *Service) Update(ctx context.Context, id auth.Identity, productID int64, u Update) (*Product, error) {
	if err := id.RequireAdmin(); err != nil {
		return nil, err
	}
	if u.Name != nil {
		name := strings.TrimSpace(*u.Name)
		if name == "" {
			return nil, apperr.Invalid("name", "must not be empty")
		}
		if len(name) > maxNameLen {
			return nil, apperr.Invalid("name", "must be at most %d characters", maxNameLen)
		}
		u.Name = &name
	}
	if u.Price != nil {
		if err := ValidatePrice(*u.Price); err != nil {
			return nil, err
		}
	}
	if u.Stock != nil {
		if err := ValidateStock(*u.Stock); err != nil {
			return nil, err
		}
	}
	if u.Empty() {
		return s.repo.GetByID(ctx, productID)
	}
	return s.repo.Update(ctx, productID, u)
}

// Delete removes a product from the catalog.
func (s *Service) Delete(ctx context.Context, id auth.Identity, productID int64) error {
	if err := id.RequireAdmin(); err != nil {
		return err
	}
	return s.repo.Delete(ctx, productID)
}

func validate(name string, price decimal.Decimal, stock int) error {
	if name == "" {
		return apperr.Invalid("name", "must not be empty")
	}
	if len(name) > maxNameLen {
		return apperr.Invalid("name", "must be at most %d characters", maxNameLen)
	}
	if err := ValidatePrice(price); err != nil {
		return err
	}
	return ValidateStock(stock)
}
