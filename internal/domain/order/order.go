package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"storecore/internal/domain/customer"
)

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = errors.New("order not found")

// Order represents a placed customer order. Orders are created once and
// never mutated afterwards.
type Order struct {
	ID         string
	CustomerID string
	Customer   *customer.Customer
	Items      []Item
	CreatedAt  time.Time
}

// Item is a persisted order line. Price is the unit price captured when the
// order was placed; later catalog price changes do not affect it.
type Item struct {
	ProductID string
	Quantity  int
	Price     decimal.Decimal
}

// LineRequest is a requested order line: a product and how many units of it.
type LineRequest struct {
	ProductID string
	Quantity  int
}

// Total sums quantity times snapshot price over all line items.
func (o *Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
}
