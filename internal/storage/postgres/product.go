package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/product"
)

const (
	productColumns = `id, name, description, price, image_url, stock, created_at`

	listProductsSQL = `SELECT ` + productColumns + `
		FROM products
		WHERE $1 = ''
			OR name ILIKE '%' || $1 || '%' ESCAPE '\'
			OR description ILIKE '%' || $1 || '%' ESCAPE '\'
		ORDER BY id
		LIMIT $2 OFFSET $3`

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	createProductSQL = `INSERT INTO products (name, description, price, image_url, stock)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	updateProductSQL = `UPDATE products SET
		name        = COALESCE($2::text, name),
		description = COALESCE($3::text, description),
		price       = COALESCE($4::numeric, price),
		image_url   = COALESCE($5::text, image_url),
		stock       = COALESCE($6::integer, stock)
		WHERE id = $1
		RETURNING ` + productColumns

	deleteProductSQL = `DELETE FROM products WHERE id = $1`

	ensureProductSQL = `INSERT INTO products (name, description, price, image_url, stock)
		SELECT $1, $2, $3, $4, $5
		WHERE NOT EXISTS (SELECT 1 FROM products WHERE name = $1)`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns a page of the catalog ordered by ID.
func (r *ProductRepository) List(ctx context.Context, params product.ListParams) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL, escapeLike(params.Search), params.Limit, params.Offset)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", classify(err))
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", classify(err))
	}
	return products, nil
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %d: %w", id, classify(err))
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %d: %w", id, classify(err))
	}
	return &p, nil
}

// Create inserts p and fills its ID and CreatedAt.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	err := r.pool.QueryRow(ctx, createProductSQL, p.Name, p.Description, p.Price, p.ImageURL, p.Stock).
		Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating product %q: %w", p.Name, classify(err))
	}
	return nil
}

// Update applies the non-nil fields of u and returns the stored product.
func (r *ProductRepository) Update(ctx context.Context, id int64, u product.Update) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, updateProductSQL, id, u.Name, u.Description, u.Price, u.ImageURL, u.Stock)
	if err != nil {
		return nil, fmt.Errorf("updating product %d: %w", id, classify(err))
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("updating product %d: %w", id, classify(err))
	}
	return &p, nil
}

// Delete removes a product. Cart lines referencing it are removed with it;
// order history keeps the frozen name.
func (r *ProductRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, deleteProductSQL, id)
	if err != nil {
		return fmt.Errorf("deleting product %d: %w", id, classify(err))
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// Ensure inserts p unless a product with the same name exists. It reports
// whether a row was inserted.
func (r *ProductRepository) Ensure(ctx context.Context, p product.Product) (bool, error) {
	tag, err := r.pool.Exec(ctx, ensureProductSQL, p.Name, p.Description, p.Price, p.ImageURL, p.Stock)
	if err != nil {
		return false, fmt.Errorf("seeding product %q: %w", p.Name, classify(err))
	}
	return tag.RowsAffected() == 1, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside an ILIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.ImageURL, &p.Stock, &p.CreatedAt)
	return p, err
}
