//go:build integration

package integration

import (
	"net/http"
	"strings"
	"sync"
	"testing"
)

func TestPlaceOrder_FullFlow(t *testing.T) {
	cust := createCustomer(t)
	p1 := createProduct(t, 10.00, 3)
	p2 := createProduct(t, 5.00, 1)

	resp := doJSON(t, http.MethodPost, "/api/orders", orderRequest{
		CustomerID: cust.ID,
		Items: []orderItemRequest{
			{ProductID: p1.ID, Quantity: 2},
			{ProductID: p2.ID, Quantity: 1},
		},
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	placed := decodeJSON[orderResponse](t, resp)
	if placed.CustomerID != cust.ID {
		t.Errorf("customer: got %s, want %s", placed.CustomerID, cust.ID)
	}
	if len(placed.Items) != 2 {
		t.Fatalf("items: got %d, want 2", len(placed.Items))
	}
	if placed.Items[0].Price != 10.00 || placed.Items[1].Price != 5.00 {
		t.Errorf("item prices: got %v, %v", placed.Items[0].Price, placed.Items[1].Price)
	}
	if placed.Total != 25.00 {
		t.Errorf("total: got %v, want 25.00", placed.Total)
	}

	if got := getProduct(t, p1.ID).Quantity; got != 1 {
		t.Errorf("product 1 quantity: got %d, want 1", got)
	}
	if got := getProduct(t, p2.ID).Quantity; got != 0 {
		t.Errorf("product 2 quantity: got %d, want 0", got)
	}

	// The placed order is retrievable with the same snapshot prices.
	getResp := doGet(t, "/api/orders/"+placed.ID)
	defer getResp.Body.Close()
	if getResp.StatusCode != http.StatusOK {
		t.Fatalf("get order: expected 200, got %d", getResp.StatusCode)
	}
	fetched := decodeJSON[orderResponse](t, getResp)
	if fetched.Total != 25.00 {
		t.Errorf("fetched total: got %v, want 25.00", fetched.Total)
	}
}

func TestPlaceOrder_UnknownCustomer(t *testing.T) {
	p := createProduct(t, 10.00, 3)

	resp := doJSON(t, http.MethodPost, "/api/orders", orderRequest{
		CustomerID: "00000000-0000-0000-0000-000000000000",
		Items:      []orderItemRequest{{ProductID: p.ID, Quantity: 1}},
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}

	// Nothing moved.
	if got := getProduct(t, p.ID).Quantity; got != 3 {
		t.Errorf("quantity: got %d, want 3", got)
	}
}

func TestPlaceOrder_UnknownProduct(t *testing.T) {
	cust := createCustomer(t)
	p := createProduct(t, 10.00, 3)

	resp := doJSON(t, http.MethodPost, "/api/orders", orderRequest{
		CustomerID: cust.ID,
		Items: []orderItemRequest{
			{ProductID: p.ID, Quantity: 1},
			{ProductID: "00000000-0000-0000-0000-000000000000", Quantity: 1},
		},
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}

	// The valid line must not be written either.
	if got := getProduct(t, p.ID).Quantity; got != 3 {
		t.Errorf("quantity: got %d, want 3", got)
	}
}

func TestPlaceOrder_InsufficientQuantity(t *testing.T) {
	cust := createCustomer(t)
	p := createProduct(t, 10.00, 5)

	resp := doJSON(t, http.MethodPost, "/api/orders", orderRequest{
		CustomerID: cust.ID,
		Items:      []orderItemRequest{{ProductID: p.ID, Quantity: 6}},
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	errResp := decodeJSON[errorResponse](t, resp)
	if !strings.Contains(errResp.Message, "insufficient quantity") {
		t.Errorf("message: got %q", errResp.Message)
	}

	// Requesting exactly the stock on hand succeeds.
	okResp := doJSON(t, http.MethodPost, "/api/orders", orderRequest{
		CustomerID: cust.ID,
		Items:      []orderItemRequest{{ProductID: p.ID, Quantity: 5}},
	})
	defer okResp.Body.Close()
	if okResp.StatusCode != http.StatusCreated {
		t.Fatalf("exact-fit order: expected 201, got %d", okResp.StatusCode)
	}
	if got := getProduct(t, p.ID).Quantity; got != 0 {
		t.Errorf("quantity: got %d, want 0", got)
	}
}

func TestPlaceOrder_SameProductTwoLines(t *testing.T) {
	cust := createCustomer(t)
	p := createProduct(t, 10.00, 10)

	resp := doJSON(t, http.MethodPost, "/api/orders", orderRequest{
		CustomerID: cust.ID,
		Items: []orderItemRequest{
			{ProductID: p.ID, Quantity: 6},
			{ProductID: p.ID, Quantity: 6},
		},
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	if got := getProduct(t, p.ID).Quantity; got != 10 {
		t.Errorf("quantity: got %d, want 10", got)
	}
}

func TestPlaceOrder_PriceSnapshotSurvivesRepricing(t *testing.T) {
	cust := createCustomer(t)
	p := createProduct(t, 10.00, 5)

	resp := doJSON(t, http.MethodPost, "/api/orders", orderRequest{
		CustomerID: cust.ID,
		Items:      []orderItemRequest{{ProductID: p.ID, Quantity: 1}},
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	placed := decodeJSON[orderResponse](t, resp)

	// Restock after placement, then re-read the order: the snapshot price
	// and total are untouched.
	restock := doJSON(t, http.MethodPut, "/api/products/quantities", map[string]any{
		"products": []map[string]any{{"id": p.ID, "quantity": 50}},
	})
	restock.Body.Close()

	getResp := doGet(t, "/api/orders/"+placed.ID)
	defer getResp.Body.Close()
	fetched := decodeJSON[orderResponse](t, getResp)
	if fetched.Items[0].Price != 10.00 {
		t.Errorf("snapshot price: got %v, want 10.00", fetched.Items[0].Price)
	}
}

func TestPlaceOrder_Concurrent(t *testing.T) {
	cust := createCustomer(t)
	p := createProduct(t, 10.00, 10)

	const workers = 4 // each wants 6 of 10: only one can win

	var wg sync.WaitGroup
	codes := make([]int, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := doJSON(t, http.MethodPost, "/api/orders", orderRequest{
				CustomerID: cust.ID,
				Items:      []orderItemRequest{{ProductID: p.ID, Quantity: 6}},
			})
			resp.Body.Close()
			codes[i] = resp.StatusCode
		}()
	}
	wg.Wait()

	var created, rejected int
	for _, code := range codes {
		switch code {
		case http.StatusCreated:
			created++
		case http.StatusUnprocessableEntity:
			rejected++
		default:
			t.Errorf("unexpected status %d", code)
		}
	}
	if created != 1 {
		t.Errorf("created: got %d, want 1", created)
	}
	if rejected != workers-1 {
		t.Errorf("rejected: got %d, want %d", rejected, workers-1)
	}

	if got := getProduct(t, p.ID).Quantity; got != 4 {
		t.Errorf("final quantity: got %d, want 4", got)
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	resp := doGet(t, "/api/orders/00000000-0000-0000-0000-000000000000")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
