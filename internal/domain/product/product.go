package product

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrNameTaken is returned when creating a product whose name is
	// already in the catalog.
	ErrNameTaken = errors.New("product name already in catalog")

	// ErrEmptyName, ErrNegativePrice and ErrNegativeQuantity reject
	// malformed catalog input.
	ErrEmptyName        = errors.New("name required")
	ErrNegativePrice    = errors.New("price must not be negative")
	ErrNegativeQuantity = errors.New("quantity must not be negative")
)

// Product represents a catalog item available for purchase. Quantity is the
// stock currently on hand; it is the only field mutated after creation.
type Product struct {
	ID        string
	Name      string
	Price     decimal.Decimal
	Quantity  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// QuantityUpdate pairs a product ID with its target absolute stock level.
// Targets are absolute rather than deltas so that reapplying the same batch
// is idempotent.
type QuantityUpdate struct {
	ID       string
	Quantity int
}

// New validates catalog input and returns a Product with a fresh ID.
func New(name string, price decimal.Decimal, quantity int) (*Product, error) {
	name = strings.TrimSpace(name)

	if name == "" {
		return nil, ErrEmptyName
	}
	if price.IsNegative() {
		return nil, ErrNegativePrice
	}
	if quantity < 0 {
		return nil, ErrNegativeQuantity
	}

	return &Product{
		ID:       uuid.New().String(),
		Name:     name,
		Price:    price,
		Quantity: quantity,
	}, nil
}

// Repository defines persistence operations for the product catalog.
//
// FindAllByID and FindAllByIDForUpdate return only the products that exist;
// missing IDs are simply absent from the result, never an error. The ForUpdate
// variant additionally acquires row locks when called inside a transaction,
// so the returned quantities cannot be changed by a concurrent writer until
// the transaction ends.
type Repository interface {
	Create(ctx context.Context, p *Product) error
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	FindByName(ctx context.Context, name string) (*Product, error)
	FindAllByID(ctx context.Context, ids []string) ([]Product, error)
	FindAllByIDForUpdate(ctx context.Context, ids []string) ([]Product, error)

	// UpdateQuantities durably sets each named product's stock to the given
	// absolute value and returns the post-update records. IDs that do not
	// exist are skipped; callers can detect them by comparing the result
	// against the request. Non-negativity is the caller's responsibility.
	UpdateQuantities(ctx context.Context, targets []QuantityUpdate) ([]Product, error)
}
