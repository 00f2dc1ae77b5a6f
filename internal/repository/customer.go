package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"storecore/internal/domain/customer"
)

const (
	insertCustomerSQL = `INSERT INTO customers (id, name, email)
		VALUES ($1, $2, $3) RETURNING created_at`

	getCustomerByIDSQL = `SELECT id, name, email, created_at
		FROM customers WHERE id = $1`

	getCustomerByEmailSQL = `SELECT id, name, email, created_at
		FROM customers WHERE email = $1`
)

var _ customer.Repository = (*CustomerRepository)(nil)

// CustomerRepository implements customer.Repository backed by PostgreSQL.
type CustomerRepository struct {
	db querier
}

// NewCustomerRepository returns a CustomerRepository that uses the given pool.
func NewCustomerRepository(pool *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{db: pool}
}

// Create persists a new customer. Email uniqueness is enforced by the
// database; violations surface as customer.ErrEmailTaken.
func (r *CustomerRepository) Create(ctx context.Context, c *customer.Customer) error {
	err := r.db.QueryRow(ctx, insertCustomerSQL, c.ID, c.Name, c.Email).Scan(&c.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return customer.ErrEmailTaken
		}
		return errors.Wrapf(err, "creating customer %q", c.ID)
	}
	return nil
}

// FindByID returns a single customer by its identifier.
func (r *CustomerRepository) FindByID(ctx context.Context, id string) (*customer.Customer, error) {
	return r.findOne(ctx, getCustomerByIDSQL, id)
}

// FindByEmail returns a single customer by email address.
func (r *CustomerRepository) FindByEmail(ctx context.Context, email string) (*customer.Customer, error) {
	return r.findOne(ctx, getCustomerByEmailSQL, email)
}

func (r *CustomerRepository) findOne(ctx context.Context, sql string, arg any) (*customer.Customer, error) {
	var c customer.Customer
	err := r.db.QueryRow(ctx, sql, arg).Scan(&c.ID, &c.Name, &c.Email, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, customer.ErrNotFound
		}
		return nil, errors.Wrap(err, "getting customer")
	}
	return &c, nil
}
