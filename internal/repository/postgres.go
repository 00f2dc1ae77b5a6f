// Package repository implements PostgreSQL-backed persistence for the
// customer, product, and order domains.
package repository

import (
	"context"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"storecore/db"
	"storecore/internal/domain/order"
	"storecore/internal/domain/product"

	"github.com/go-faster/errors"
)

// uniqueViolation is the PostgreSQL error code for unique constraint failures.
const uniqueViolation = "23505"

// querier is the subset of pgx operations shared by *pgxpool.Pool and
// pgx.Tx, so repositories work both on the pool and inside a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// NewPool creates a pgxpool.Pool configured with shopspring/decimal support
// for NUMERIC columns.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parsing database config")
	}

	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "creating connection pool")
	}

	return pool, nil
}

// RunMigrations executes the embedded DDL schema against the pool.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, db.Schema); err != nil {
		return errors.Wrap(err, "running migrations")
	}
	return nil
}

var _ order.UnitOfWork = (*UnitOfWork)(nil)

// UnitOfWork runs order placements inside a single database transaction.
// Product row locks taken via FindAllByIDForUpdate are held until commit or
// rollback, serializing concurrent placements that touch the same products.
type UnitOfWork struct {
	pool *pgxpool.Pool
}

// NewUnitOfWork returns a UnitOfWork backed by the given pool.
func NewUnitOfWork(pool *pgxpool.Pool) *UnitOfWork {
	return &UnitOfWork{pool: pool}
}

// RunInTx begins a transaction, calls fn with transaction-scoped stores, and
// commits if fn returns nil. Any error from fn rolls the transaction back
// and is returned unchanged.
func (u *UnitOfWork) RunInTx(ctx context.Context, fn func(ctx context.Context, s order.Stores) error) error {
	return pgx.BeginFunc(ctx, u.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txStores{tx: tx})
	})
}

// txStores provides repositories bound to one open transaction.
type txStores struct {
	tx pgx.Tx
}

func (s *txStores) Products() product.Repository {
	return &ProductRepository{db: s.tx}
}

func (s *txStores) Orders() order.Repository {
	return &OrderRepository{db: s.tx}
}
