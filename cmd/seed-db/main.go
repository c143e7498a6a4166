// Command seed-db applies the schema, loads a product catalog and ensures an
// administrator account exists.
package main

import (
	"bufio"
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/storage/postgres"
)

type options struct {
	databaseURL   string
	productsFile  string
	adminUsername string
	adminEmail    string
	adminPassword string
	bcryptCost    int
	workers       int
}

func main() {
	var opts options
	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.productsFile, "products-file", "db/seed/products.json", "path to products JSON file, optionally gzipped (.gz)")
	flag.StringVar(&opts.adminUsername, "admin-username", "admin", "administrator username")
	flag.StringVar(&opts.adminEmail, "admin-email", "admin@example.com", "administrator e-mail")
	flag.StringVar(&opts.adminPassword, "admin-password", "", "administrator password (or SHOP_ADMIN_PASSWORD env)")
	flag.IntVar(&opts.bcryptCost, "bcrypt-cost", 10, "bcrypt cost for the administrator password")
	flag.IntVar(&opts.workers, "workers", 4, "concurrent product inserts")
	flag.Parse()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if opts.adminPassword == "" {
		opts.adminPassword = os.Getenv("SHOP_ADMIN_PASSWORD")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, opts options) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if opts.productsFile != "" {
		products, err := readCatalog(opts.productsFile)
		if err != nil {
			return errors.Wrap(err, "read catalog")
		}
		if err := seedProducts(ctx, postgres.NewProductRepository(pool), products, opts.workers); err != nil {
			return errors.Wrap(err, "seed products")
		}
	}

	if opts.adminPassword == "" {
		slog.Warn("no administrator password given, skipping admin account")
		return nil
	}
	if err := seedAdmin(ctx, postgres.NewUserRepository(pool), opts); err != nil {
		return errors.Wrap(err, "seed admin")
	}

	return nil
}

func readCatalog(path string) ([]product.Product, error) {
	slog.Info("reading products file", slog.String("path", path))

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open")
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = bufio.NewReader(f)
	if strings.HasSuffix(path, ".gz") {
		zr, err := pgzip.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, "gzip")
		}
		defer func() { _ = zr.Close() }()
		r = zr
	}

	return decodeCatalog(jx.Decode(r, 4096))
}

// decodeCatalog reads a JSON array of products. Unknown fields are ignored.
func decodeCatalog(d *jx.Decoder) ([]product.Product, error) {
	var products []product.Product
	err := d.Arr(func(d *jx.Decoder) error {
		var p product.Product
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "name":
				p.Name, err = d.Str()
			case "description":
				p.Description, err = d.Str()
			case "image_url":
				p.ImageURL, err = d.Str()
			case "stock":
				p.Stock, err = d.Int()
			case "price":
				p.Price, err = decodePrice(d)
			default:
				err = d.Skip()
			}
			return errors.Wrap(err, key)
		}); err != nil {
			return err
		}
		if strings.TrimSpace(p.Name) == "" {
			return errors.Errorf("product %d: name is required", len(products))
		}
		if err := product.ValidatePrice(p.Price); err != nil {
			return errors.Wrapf(err, "product %q", p.Name)
		}
		if err := product.ValidateStock(p.Stock); err != nil {
			return errors.Wrapf(err, "product %q", p.Name)
		}
		products = append(products, p)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode")
	}
	return products, nil
}

func decodePrice(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	default:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(n.String())
	}
}

func seedProducts(ctx context.Context, repo *postgres.ProductRepository, products []product.Product, workers int) error {
	slog.Info("inserting products", slog.Int("count", len(products)))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for _, p := range products {
		g.Go(func() error {
			created, err := repo.Ensure(gCtx, p)
			if err != nil {
				return errors.Wrapf(err, "ensure product %q", p.Name)
			}
			if created {
				slog.Info("inserted product", slog.String("name", p.Name))
			} else {
				slog.Debug("product already present", slog.String("name", p.Name))
			}
			return nil
		})
	}
	return g.Wait()
}

func seedAdmin(ctx context.Context, users *postgres.UserRepository, opts options) error {
	slog.Info("ensuring administrator account", slog.String("username", opts.adminUsername))

	hash, err := auth.BcryptHasher{Cost: opts.bcryptCost}.Hash(opts.adminPassword)
	if err != nil {
		return errors.Wrap(err, "hash password")
	}

	u, err := users.UpsertAdmin(ctx, opts.adminUsername, opts.adminEmail, hash)
	if err != nil {
		return errors.Wrap(err, "upsert admin")
	}

	slog.Info("administrator ready", slog.Int64("id", u.ID), slog.String("username", u.Username))
	return nil
}
