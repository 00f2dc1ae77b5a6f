package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"storecore/internal/domain/customer"
	"storecore/internal/domain/order"
)

const (
	insertOrderSQL = `INSERT INTO orders (id, customer_id)
		VALUES ($1, $2) RETURNING created_at`

	insertOrderItemSQL = `INSERT INTO order_items (order_id, line_no, product_id, quantity, price)
		VALUES ($1, $2, $3, $4, $5)`

	getOrderSQL = `SELECT o.id, o.customer_id, o.created_at,
			c.name, c.email, c.created_at
		FROM orders o
		JOIN customers c ON c.id = o.customer_id
		WHERE o.id = $1`

	getOrderItemsSQL = `SELECT product_id, quantity, price
		FROM order_items WHERE order_id = $1 ORDER BY line_no`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	db querier
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{db: pool}
}

// Create persists an order together with its line items, preserving their
// input order. Items are queued into one batch round trip.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	err := r.db.QueryRow(ctx, insertOrderSQL, o.ID, o.CustomerID).Scan(&o.CreatedAt)
	if err != nil {
		return errors.Wrapf(err, "creating order %q", o.ID)
	}

	b := &pgx.Batch{}
	for i, it := range o.Items {
		b.Queue(insertOrderItemSQL, o.ID, i+1, it.ProductID, it.Quantity, it.Price)
	}

	br := r.db.SendBatch(ctx, b)
	defer func() { _ = br.Close() }()

	for range o.Items {
		if _, err := br.Exec(); err != nil {
			return errors.Wrapf(err, "creating items for order %q", o.ID)
		}
	}
	return nil
}

// GetByID returns an order with its customer and line items.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	var (
		o order.Order
		c customer.Customer
	)
	err := r.db.QueryRow(ctx, getOrderSQL, id).Scan(
		&o.ID, &o.CustomerID, &o.CreatedAt,
		&c.Name, &c.Email, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "getting order %q", id)
	}
	c.ID = o.CustomerID
	o.Customer = &c

	rows, err := r.db.Query(ctx, getOrderItemsSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "getting items for order %q", id)
	}
	o.Items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Item, error) {
		var it order.Item
		err := row.Scan(&it.ProductID, &it.Quantity, &it.Price)
		return it, err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "getting items for order %q", id)
	}

	return &o, nil
}
