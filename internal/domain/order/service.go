package order

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"storecore/internal/domain/customer"
	"storecore/internal/domain/product"
)

// ErrEmptyLines is returned when an order is placed with no line items.
var ErrEmptyLines = errors.New("order lines required")

// CustomerNotFoundError indicates the ordering customer does not exist.
type CustomerNotFoundError struct {
	CustomerID string
}

func (e *CustomerNotFoundError) Error() string {
	return fmt.Sprintf("customer %s not found", e.CustomerID)
}

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// InsufficientQuantityError indicates a line requests more units than the
// catalog has on hand. Available already accounts for units claimed by
// earlier lines of the same request.
type InsufficientQuantityError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientQuantityError) Error() string {
	return fmt.Sprintf("insufficient quantity for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// Stores is the transactional view of persistence a placement runs against.
type Stores interface {
	Products() product.Repository
	Orders() Repository
}

// UnitOfWork runs fn inside a single storage transaction. When fn returns an
// error the transaction is rolled back and no durable state changes; the
// error is returned unchanged so callers can inspect it.
//
// Product rows read through Stores with FindAllByIDForUpdate stay locked
// until the transaction ends, which is what keeps concurrent placements from
// overselling shared stock: the second placement blocks on the row lock and
// then validates against the already-decremented quantity.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error
}

// Publisher receives a notification after an order has been durably placed.
type Publisher interface {
	OrderPlaced(ctx context.Context, o *Order) error
}

// Service encapsulates the order placement business rules.
type Service struct {
	customers customer.Repository
	uow       UnitOfWork
	events    Publisher // optional
}

// NewService creates an order Service with the required dependencies.
// events may be nil, in which case no notifications are published.
func NewService(customers customer.Repository, uow UnitOfWork, events Publisher) *Service {
	return &Service{
		customers: customers,
		uow:       uow,
		events:    events,
	}
}

// PlaceOrder validates the customer and every requested line against a
// consistent stock snapshot, captures unit prices, persists the order, and
// decrements inventory — all within one transaction. Validation is
// fail-fast: the first violation aborts the call with zero durable side
// effects.
//
// Lines are checked in input order. When the same product appears on more
// than one line, later lines validate against the quantity remaining after
// the earlier lines' deductions.
func (s *Service) PlaceOrder(ctx context.Context, customerID string, lines []LineRequest) (*Order, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyLines
	}
	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: l.ProductID}
		}
	}

	cust, err := s.customers.FindByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, customer.ErrNotFound) {
			return nil, &CustomerNotFoundError{CustomerID: customerID}
		}
		return nil, errors.Wrap(err, "find customer")
	}

	ids := distinctProductIDs(lines)

	var placed *Order
	err = s.uow.RunInTx(ctx, func(ctx context.Context, st Stores) error {
		// Lock and snapshot every touched product in one batch read.
		fetched, err := st.Products().FindAllByIDForUpdate(ctx, ids)
		if err != nil {
			return errors.Wrap(err, "fetch products")
		}

		snapshots := make(map[string]*product.Product, len(fetched))
		for i := range fetched {
			snapshots[fetched[i].ID] = &fetched[i]
		}

		items := make([]Item, 0, len(lines))
		for _, l := range lines {
			snap, ok := snapshots[l.ProductID]
			if !ok {
				return &ProductNotFoundError{ProductID: l.ProductID}
			}
			if snap.Quantity < l.Quantity {
				return &InsufficientQuantityError{
					ProductID: l.ProductID,
					Requested: l.Quantity,
					Available: snap.Quantity,
				}
			}

			items = append(items, Item{
				ProductID: l.ProductID,
				Quantity:  l.Quantity,
				Price:     snap.Price,
			})
			// Running decrement: a later line for the same product must
			// validate against what this line leaves behind.
			snap.Quantity -= l.Quantity
		}

		o := &Order{
			ID:         uuid.New().String(),
			CustomerID: cust.ID,
			Customer:   cust,
			Items:      items,
		}
		if err := st.Orders().Create(ctx, o); err != nil {
			return errors.Wrap(err, "create order")
		}

		targets := make([]product.QuantityUpdate, 0, len(ids))
		for _, id := range ids {
			targets = append(targets, product.QuantityUpdate{
				ID:       id,
				Quantity: snapshots[id].Quantity,
			})
		}
		if _, err := st.Products().UpdateQuantities(ctx, targets); err != nil {
			return errors.Wrap(err, "update quantities")
		}

		placed = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.events != nil {
		// Best effort: the order is already durable, a lost event must not
		// fail the placement.
		if err := s.events.OrderPlaced(ctx, placed); err != nil {
			zctx.From(ctx).Warn("Publish order placed",
				zap.String("order_id", placed.ID), zap.Error(err))
		}
	}

	return placed, nil
}

// distinctProductIDs returns the unique product IDs in input order.
func distinctProductIDs(lines []LineRequest) []string {
	seen := make(map[string]struct{}, len(lines))
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.ProductID]; ok {
			continue
		}
		seen[l.ProductID] = struct{}{}
		ids = append(ids, l.ProductID)
	}
	return ids
}
