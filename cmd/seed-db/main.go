// Command seed-db loads customers and products from JSON seed files into
// the database. Files ending in .gz are decompressed on the fly. Existing
// rows are left untouched, so reseeding is safe.
package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"storecore/internal/repository"
)

const (
	seedCustomerSQL = `INSERT INTO customers (id, name, email)
		VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`

	seedProductSQL = `INSERT INTO products (id, name, price, quantity)
		VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING`
)

func main() {
	var (
		databaseURL   string
		customersFile string
		productsFile  string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&customersFile, "customers-file", "db/seed/customers.json", "path to customers JSON file")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, customersFile, productsFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, customersFile, productsFile string) error {
	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := seedCustomers(ctx, pool, customersFile)
		if err != nil {
			return errors.Wrapf(err, "seed customers from %s", customersFile)
		}
		slog.Info("customers seeded", slog.Int("count", n))
		return nil
	})
	g.Go(func() error {
		n, err := seedProducts(ctx, pool, productsFile)
		if err != nil {
			return errors.Wrapf(err, "seed products from %s", productsFile)
		}
		slog.Info("products seeded", slog.Int("count", n))
		return nil
	})
	return g.Wait()
}

// openSeedFile opens path, transparently decompressing gzip files.
func openSeedFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}

	gz, err := pgzip.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrap(err, "gzip reader")
	}
	return struct {
		io.Reader
		io.Closer
	}{Reader: gz, Closer: f}, nil
}

func seedCustomers(ctx context.Context, pool *pgxpool.Pool, path string) (int, error) {
	r, err := openSeedFile(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = r.Close() }()

	count := 0
	d := jx.Decode(r, 4096)
	err = d.Arr(func(d *jx.Decoder) error {
		var id, name, email string
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "id":
				id, err = d.Str()
			case "name":
				name, err = d.Str()
			case "email":
				email, err = d.Str()
			default:
				return d.Skip()
			}
			return err
		}); err != nil {
			return err
		}

		if id == "" {
			id = uuid.New().String()
		}
		if _, err := pool.Exec(ctx, seedCustomerSQL, id, name, email); err != nil {
			return errors.Wrapf(err, "insert customer %q", email)
		}
		count++
		return nil
	})
	return count, err
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, path string) (int, error) {
	r, err := openSeedFile(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = r.Close() }()

	count := 0
	d := jx.Decode(r, 4096)
	err = d.Arr(func(d *jx.Decoder) error {
		var (
			id, name, price string
			quantity        int
		)
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "id":
				id, err = d.Str()
			case "name":
				name, err = d.Str()
			case "price":
				price, err = d.Str()
			case "quantity":
				quantity, err = d.Int()
			default:
				return d.Skip()
			}
			return err
		}); err != nil {
			return err
		}

		p, err := decimal.NewFromString(price)
		if err != nil {
			return errors.Wrapf(err, "parse price for product %q", name)
		}
		if id == "" {
			id = uuid.New().String()
		}
		if _, err := pool.Exec(ctx, seedProductSQL, id, name, p, quantity); err != nil {
			return errors.Wrapf(err, "insert product %q", name)
		}
		count++
		return nil
	})
	return count, err
}
