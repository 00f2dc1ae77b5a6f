package order

import (
	"context"
	"maps"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storecore/internal/domain/customer"
	"storecore/internal/domain/product"
)

// --- Mock implementations ---

type mockCustomerRepo struct {
	byID map[string]*customer.Customer
}

func (m *mockCustomerRepo) Create(_ context.Context, _ *customer.Customer) error { return nil }

func (m *mockCustomerRepo) FindByID(_ context.Context, id string) (*customer.Customer, error) {
	c, ok := m.byID[id]
	if !ok {
		return nil, customer.ErrNotFound
	}
	return c, nil
}

func (m *mockCustomerRepo) FindByEmail(_ context.Context, _ string) (*customer.Customer, error) {
	return nil, customer.ErrNotFound
}

// fakeDB emulates transactional storage: RunInTx hands the callback
// tx-local copies and only merges them back on success, and a mutex
// serializes transactions the way row locks would.
type fakeDB struct {
	mu       sync.Mutex
	products map[string]product.Product
	orders   map[string]*Order

	createErr error
	updateErr error

	orderWrites    int
	quantityWrites int
}

func newFakeDB(products ...product.Product) *fakeDB {
	db := &fakeDB{
		products: make(map[string]product.Product, len(products)),
		orders:   make(map[string]*Order),
	}
	for _, p := range products {
		db.products[p.ID] = p
	}
	return db
}

func (db *fakeDB) RunInTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx := &fakeTx{
		db:       db,
		products: maps.Clone(db.products),
		orders:   maps.Clone(db.orders),
	}
	if err := fn(ctx, tx); err != nil {
		return err // rollback: tx-local state is discarded
	}

	db.products = tx.products
	db.orders = tx.orders
	db.orderWrites += tx.orderWrites
	db.quantityWrites += tx.quantityWrites
	return nil
}

func (db *fakeDB) quantity(t *testing.T, id string) int {
	t.Helper()
	db.mu.Lock()
	defer db.mu.Unlock()
	p, ok := db.products[id]
	require.True(t, ok, "product %s missing", id)
	return p.Quantity
}

type fakeTx struct {
	db       *fakeDB
	products map[string]product.Product
	orders   map[string]*Order

	orderWrites    int
	quantityWrites int
}

func (tx *fakeTx) Products() product.Repository { return &fakeProductRepo{tx: tx} }
func (tx *fakeTx) Orders() Repository           { return &fakeOrderRepo{tx: tx} }

type fakeProductRepo struct {
	tx *fakeTx
}

func (m *fakeProductRepo) Create(_ context.Context, _ *product.Product) error { return nil }
func (m *fakeProductRepo) List(_ context.Context) ([]product.Product, error)  { return nil, nil }

func (m *fakeProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.tx.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (m *fakeProductRepo) FindByName(_ context.Context, _ string) (*product.Product, error) {
	return nil, product.ErrNotFound
}

func (m *fakeProductRepo) FindAllByID(ctx context.Context, ids []string) ([]product.Product, error) {
	return m.FindAllByIDForUpdate(ctx, ids)
}

func (m *fakeProductRepo) FindAllByIDForUpdate(_ context.Context, ids []string) ([]product.Product, error) {
	out := make([]product.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := m.tx.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *fakeProductRepo) UpdateQuantities(_ context.Context, targets []product.QuantityUpdate) ([]product.Product, error) {
	if err := m.tx.db.updateErr; err != nil {
		return nil, err
	}

	updated := make([]product.Product, 0, len(targets))
	for _, t := range targets {
		p, ok := m.tx.products[t.ID]
		if !ok {
			continue
		}
		p.Quantity = t.Quantity
		m.tx.products[t.ID] = p
		updated = append(updated, p)
	}
	m.tx.quantityWrites++
	return updated, nil
}

type fakeOrderRepo struct {
	tx *fakeTx
}

func (m *fakeOrderRepo) Create(_ context.Context, o *Order) error {
	if err := m.tx.db.createErr; err != nil {
		return err
	}
	m.tx.orders[o.ID] = o
	m.tx.orderWrites++
	return nil
}

func (m *fakeOrderRepo) GetByID(_ context.Context, id string) (*Order, error) {
	o, ok := m.tx.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return o, nil
}

type mockPublisher struct {
	mu     sync.Mutex
	placed []*Order
	err    error
}

func (m *mockPublisher) OrderPlaced(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.placed = append(m.placed, o)
	return m.err
}

// --- Helpers ---

func newTestCustomer(id string) *customer.Customer {
	return &customer.Customer{ID: id, Name: "Test Customer", Email: id + "@example.com"}
}

func newCustomerRepo(ids ...string) *mockCustomerRepo {
	byID := make(map[string]*customer.Customer, len(ids))
	for _, id := range ids {
		byID[id] = newTestCustomer(id)
	}
	return &mockCustomerRepo{byID: byID}
}

func newTestProduct(id, price string, quantity int) product.Product {
	return product.Product{
		ID:       id,
		Name:     "Product " + id,
		Price:    decimal.RequireFromString(price),
		Quantity: quantity,
	}
}

func (db *fakeDB) assertNoWrites(t *testing.T) {
	t.Helper()
	db.mu.Lock()
	defer db.mu.Unlock()
	assert.Zero(t, db.orderWrites, "expected no order writes")
	assert.Zero(t, db.quantityWrites, "expected no quantity writes")
	assert.Empty(t, db.orders)
}

// --- Tests ---

func TestPlaceOrder_EmptyLines(t *testing.T) {
	db := newFakeDB()
	svc := NewService(newCustomerRepo("c1"), db, nil)

	_, err := svc.PlaceOrder(context.Background(), "c1", nil)
	require.ErrorIs(t, err, ErrEmptyLines)
	db.assertNoWrites(t)
}

func TestPlaceOrder_InvalidQuantity(t *testing.T) {
	db := newFakeDB(newTestProduct("p1", "10.00", 5))
	svc := NewService(newCustomerRepo("c1"), db, nil)

	_, err := svc.PlaceOrder(context.Background(), "c1", []LineRequest{
		{ProductID: "p1", Quantity: 0},
	})

	var iqErr *InvalidQuantityError
	require.ErrorAs(t, err, &iqErr)
	assert.Equal(t, "p1", iqErr.ProductID)
	db.assertNoWrites(t)
}

func TestPlaceOrder_UnknownCustomer(t *testing.T) {
	db := newFakeDB(newTestProduct("p1", "10.00", 5))
	svc := NewService(newCustomerRepo(), db, nil)

	_, err := svc.PlaceOrder(context.Background(), "no-such-id", []LineRequest{
		{ProductID: "p1", Quantity: 1},
	})

	var cnfErr *CustomerNotFoundError
	require.ErrorAs(t, err, &cnfErr)
	assert.Equal(t, "no-such-id", cnfErr.CustomerID)
	db.assertNoWrites(t)
}

func TestPlaceOrder_UnknownProduct(t *testing.T) {
	db := newFakeDB(newTestProduct("p1", "10.00", 5))
	svc := NewService(newCustomerRepo("c1"), db, nil)

	// One valid line does not save a call with an unknown product.
	_, err := svc.PlaceOrder(context.Background(), "c1", []LineRequest{
		{ProductID: "p1", Quantity: 1},
		{ProductID: "missing", Quantity: 1},
	})

	var pnfErr *ProductNotFoundError
	require.ErrorAs(t, err, &pnfErr)
	assert.Equal(t, "missing", pnfErr.ProductID)
	db.assertNoWrites(t)
	assert.Equal(t, 5, db.quantity(t, "p1"))
}

func TestPlaceOrder_InsufficientStock(t *testing.T) {
	db := newFakeDB(newTestProduct("p1", "10.00", 5))
	svc := NewService(newCustomerRepo("c1"), db, nil)

	_, err := svc.PlaceOrder(context.Background(), "c1", []LineRequest{
		{ProductID: "p1", Quantity: 6},
	})

	var stockErr *InsufficientQuantityError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "p1", stockErr.ProductID)
	assert.Equal(t, 6, stockErr.Requested)
	assert.Equal(t, 5, stockErr.Available)
	db.assertNoWrites(t)

	// Requesting exactly the available amount succeeds and empties stock.
	o, err := svc.PlaceOrder(context.Background(), "c1", []LineRequest{
		{ProductID: "p1", Quantity: 5},
	})
	require.NoError(t, err)
	require.Len(t, o.Items, 1)
	assert.Equal(t, 0, db.quantity(t, "p1"))
}

func TestPlaceOrder_SameProductTwoLines_Oversell(t *testing.T) {
	db := newFakeDB(newTestProduct("p1", "10.00", 10))
	svc := NewService(newCustomerRepo("c1"), db, nil)

	// 6 + 6 exceeds 10 even though each line alone fits: the second line
	// must validate against the running decrement, not the original stock.
	_, err := svc.PlaceOrder(context.Background(), "c1", []LineRequest{
		{ProductID: "p1", Quantity: 6},
		{ProductID: "p1", Quantity: 6},
	})

	var stockErr *InsufficientQuantityError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 6, stockErr.Requested)
	assert.Equal(t, 4, stockErr.Available)
	db.assertNoWrites(t)
	assert.Equal(t, 10, db.quantity(t, "p1"))
}

func TestPlaceOrder_SameProductTwoLines_Fits(t *testing.T) {
	db := newFakeDB(newTestProduct("p1", "10.00", 10))
	svc := NewService(newCustomerRepo("c1"), db, nil)

	o, err := svc.PlaceOrder(context.Background(), "c1", []LineRequest{
		{ProductID: "p1", Quantity: 3},
		{ProductID: "p1", Quantity: 4},
	})

	require.NoError(t, err)
	require.Len(t, o.Items, 2)
	assert.Equal(t, 3, db.quantity(t, "p1"))
}

func TestPlaceOrder_PriceSnapshot(t *testing.T) {
	db := newFakeDB(newTestProduct("p1", "10.00", 5))
	svc := NewService(newCustomerRepo("c1"), db, nil)

	o, err := svc.PlaceOrder(context.Background(), "c1", []LineRequest{
		{ProductID: "p1", Quantity: 1},
	})
	require.NoError(t, err)

	// A later catalog price change must not leak into the placed order.
	db.mu.Lock()
	p := db.products["p1"]
	p.Price = decimal.RequireFromString("99.00")
	db.products["p1"] = p
	stored := db.orders[o.ID]
	db.mu.Unlock()

	assert.True(t, decimal.RequireFromString("10.00").Equal(stored.Items[0].Price))
	assert.True(t, decimal.RequireFromString("10.00").Equal(o.Total()))
}

func TestPlaceOrder_OrderCreateFailure(t *testing.T) {
	db := newFakeDB(newTestProduct("p1", "10.00", 5))
	db.createErr = errors.New("db write failed")
	svc := NewService(newCustomerRepo("c1"), db, nil)

	_, err := svc.PlaceOrder(context.Background(), "c1", []LineRequest{
		{ProductID: "p1", Quantity: 1},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "create order")
	// Fail-closed: inventory must not move when the order write fails.
	db.assertNoWrites(t)
	assert.Equal(t, 5, db.quantity(t, "p1"))
}

func TestPlaceOrder_QuantityUpdateFailure(t *testing.T) {
	db := newFakeDB(newTestProduct("p1", "10.00", 5))
	db.updateErr = errors.New("db write failed")
	svc := NewService(newCustomerRepo("c1"), db, nil)

	_, err := svc.PlaceOrder(context.Background(), "c1", []LineRequest{
		{ProductID: "p1", Quantity: 1},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "update quantities")
	// Both writes share one transaction: a failed quantity update rolls the
	// order back instead of leaving an order without the matching decrement.
	db.assertNoWrites(t)
	assert.Equal(t, 5, db.quantity(t, "p1"))
}

func TestPlaceOrder_ConcurrentOversell(t *testing.T) {
	db := newFakeDB(newTestProduct("p1", "10.00", 10))
	svc := NewService(newCustomerRepo("c1"), db, nil)

	results := make(chan error, 2)
	for range 2 {
		go func() {
			_, err := svc.PlaceOrder(context.Background(), "c1", []LineRequest{
				{ProductID: "p1", Quantity: 6},
			})
			results <- err
		}()
	}

	var failures, successes int
	for range 2 {
		err := <-results
		if err == nil {
			successes++
			continue
		}
		var stockErr *InsufficientQuantityError
		require.ErrorAs(t, err, &stockErr)
		failures++
	}

	// Exactly one placement may win; stock never goes negative.
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, failures)
	assert.Equal(t, 4, db.quantity(t, "p1"))
}

func TestPlaceOrder_EndToEnd(t *testing.T) {
	db := newFakeDB(
		newTestProduct("P1", "10.00", 3),
		newTestProduct("P2", "5.00", 1),
	)
	svc := NewService(newCustomerRepo("C1"), db, nil)

	o, err := svc.PlaceOrder(context.Background(), "C1", []LineRequest{
		{ProductID: "P1", Quantity: 2},
		{ProductID: "P2", Quantity: 1},
	})

	require.NoError(t, err)
	require.Len(t, o.Items, 2)
	assert.Equal(t, "C1", o.CustomerID)
	assert.True(t, decimal.RequireFromString("10.00").Equal(o.Items[0].Price))
	assert.True(t, decimal.RequireFromString("5.00").Equal(o.Items[1].Price))
	assert.True(t, decimal.RequireFromString("25.00").Equal(o.Total()))

	assert.Equal(t, 1, db.quantity(t, "P1"))
	assert.Equal(t, 0, db.quantity(t, "P2"))
}

func TestPlaceOrder_PublishesEvent(t *testing.T) {
	db := newFakeDB(newTestProduct("p1", "10.00", 5))
	pub := &mockPublisher{}
	svc := NewService(newCustomerRepo("c1"), db, pub)

	o, err := svc.PlaceOrder(context.Background(), "c1", []LineRequest{
		{ProductID: "p1", Quantity: 2},
	})

	require.NoError(t, err)
	require.Len(t, pub.placed, 1)
	assert.Equal(t, o.ID, pub.placed[0].ID)
}

func TestPlaceOrder_PublishFailureDoesNotFailOrder(t *testing.T) {
	db := newFakeDB(newTestProduct("p1", "10.00", 5))
	pub := &mockPublisher{err: errors.New("broker down")}
	svc := NewService(newCustomerRepo("c1"), db, pub)

	o, err := svc.PlaceOrder(context.Background(), "c1", []LineRequest{
		{ProductID: "p1", Quantity: 1},
	})

	// The order is already durable; a lost event is only logged.
	require.NoError(t, err)
	assert.NotNil(t, o)
	assert.Equal(t, 4, db.quantity(t, "p1"))
}
