package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"storecore/internal/domain/product"
)

const (
	productColumns = `id, name, price, quantity, created_at, updated_at`

	insertProductSQL = `INSERT INTO products (id, name, price, quantity)
		VALUES ($1, $2, $3, $4) RETURNING created_at, updated_at`

	listProductsSQL = `SELECT ` + productColumns + ` FROM products ORDER BY name`

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	getProductByNameSQL = `SELECT ` + productColumns + ` FROM products WHERE name = $1`

	getProductsByIDsSQL = `SELECT ` + productColumns + `
		FROM products WHERE id = ANY($1) ORDER BY id`

	// Locking rows in a fixed order keeps concurrent placements that touch
	// overlapping product sets from deadlocking each other.
	getProductsByIDsForUpdateSQL = `SELECT ` + productColumns + `
		FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE`

	updateQuantitiesSQL = `UPDATE products AS p
		SET quantity = t.quantity, updated_at = now()
		FROM unnest($1::text[], $2::int[]) AS t (id, quantity)
		WHERE p.id = t.id
		RETURNING p.id, p.name, p.price, p.quantity, p.created_at, p.updated_at`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	db querier
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{db: pool}
}

// Create persists a new catalog product. Name uniqueness is enforced by the
// database; violations surface as product.ErrNameTaken.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	err := r.db.QueryRow(ctx, insertProductSQL, p.ID, p.Name, p.Price, p.Quantity).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return product.ErrNameTaken
		}
		return errors.Wrapf(err, "creating product %q", p.ID)
	}
	return nil
}

// List returns all catalog products ordered by name.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.db.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "listing products")
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	return r.getOne(ctx, getProductByIDSQL, id)
}

// FindByName returns a single product by its unique name.
func (r *ProductRepository) FindByName(ctx context.Context, name string) (*product.Product, error) {
	return r.getOne(ctx, getProductByNameSQL, name)
}

func (r *ProductRepository) getOne(ctx context.Context, sql string, arg any) (*product.Product, error) {
	rows, err := r.db.Query(ctx, sql, arg)
	if err != nil {
		return nil, errors.Wrap(err, "getting product")
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrap(err, "getting product")
	}
	return &p, nil
}

// FindAllByID returns the products matching any of the given IDs. Missing
// IDs are simply absent from the result.
func (r *ProductRepository) FindAllByID(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.db.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, errors.Wrap(err, "getting products by ids")
	}
	return pgx.CollectRows(rows, scanProduct)
}

// FindAllByIDForUpdate behaves like FindAllByID but locks the matched rows
// for the remainder of the surrounding transaction.
func (r *ProductRepository) FindAllByIDForUpdate(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.db.Query(ctx, getProductsByIDsForUpdateSQL, ids)
	if err != nil {
		return nil, errors.Wrap(err, "locking products by ids")
	}
	return pgx.CollectRows(rows, scanProduct)
}

// UpdateQuantities sets each named product's stock to its target absolute
// value in one statement and returns the post-update records. Unknown IDs
// are skipped by the join; they are logged and left for the caller to detect
// by diffing the result against the request.
func (r *ProductRepository) UpdateQuantities(ctx context.Context, targets []product.QuantityUpdate) ([]product.Product, error) {
	if len(targets) == 0 {
		return nil, nil
	}

	ids := make([]string, len(targets))
	quantities := make([]int32, len(targets))
	for i, t := range targets {
		ids[i] = t.ID
		quantities[i] = int32(t.Quantity)
	}

	rows, err := r.db.Query(ctx, updateQuantitiesSQL, ids, quantities)
	if err != nil {
		return nil, errors.Wrap(err, "updating quantities")
	}

	updated, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, errors.Wrap(err, "updating quantities")
	}

	if len(updated) != len(targets) {
		zctx.From(ctx).Warn("Quantity update skipped unknown products",
			zap.Int("requested", len(targets)),
			zap.Int("updated", len(updated)),
			zap.Strings("missing", missingIDs(targets, updated)),
		)
	}

	return updated, nil
}

func missingIDs(targets []product.QuantityUpdate, updated []product.Product) []string {
	present := make(map[string]struct{}, len(updated))
	for _, p := range updated {
		present[p.ID] = struct{}{}
	}

	var missing []string
	for _, t := range targets {
		if _, ok := present[t.ID]; !ok {
			missing = append(missing, t.ID)
		}
	}
	return missing
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Quantity, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}
