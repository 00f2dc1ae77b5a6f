package api

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"storecore/internal/domain/product"
)

type createProductRequest struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

type quantityTarget struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
}

type updateQuantitiesRequest struct {
	Products []quantityTarget `json:"products"`
}

type updateQuantitiesResponse struct {
	Products []productResponse `json:"products"`
	Missing  []string          `json:"missing,omitempty"`
}

type productResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toProductResponse(p *product.Product) productResponse {
	return productResponse{
		ID:        p.ID,
		Name:      p.Name,
		Price:     p.Price.InexactFloat64(),
		Quantity:  p.Quantity,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// CreateProduct adds a new product to the catalog. Product names are unique;
// a duplicate is rejected with 409.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if !decodeBody(w, r, &req) {
		return
	}

	p, err := product.New(req.Name, decimal.NewFromFloat(req.Price), req.Quantity)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.products.Create(r.Context(), p); err != nil {
		if errors.Is(err, product.ErrNameTaken) {
			respondError(w, http.StatusConflict, "product name already in catalog")
			return
		}
		respondInternal(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, toProductResponse(p))
}

// ListProducts returns every product in the catalog.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		respondInternal(w, r, err)
		return
	}

	out := make([]productResponse, len(products))
	for i := range products {
		out[i] = toProductResponse(&products[i])
	}
	respondJSON(w, http.StatusOK, out)
}

// GetProduct returns a single product by ID.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	p, err := h.products.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			respondError(w, http.StatusNotFound, "product not found")
			return
		}
		respondInternal(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, toProductResponse(p))
}

// UpdateQuantities sets absolute stock levels for a batch of products and
// returns the post-update records. Unknown IDs do not fail the batch; they
// are reported back in the "missing" field.
func (h *Handler) UpdateQuantities(w http.ResponseWriter, r *http.Request) {
	var req updateQuantitiesRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Products) == 0 {
		respondError(w, http.StatusBadRequest, "products required")
		return
	}

	targets := make([]product.QuantityUpdate, len(req.Products))
	for i, t := range req.Products {
		if t.Quantity < 0 {
			respondError(w, http.StatusBadRequest, "quantity must not be negative")
			return
		}
		targets[i] = product.QuantityUpdate{ID: t.ID, Quantity: t.Quantity}
	}

	updated, err := h.products.UpdateQuantities(r.Context(), targets)
	if err != nil {
		respondInternal(w, r, err)
		return
	}

	resp := updateQuantitiesResponse{
		Products: make([]productResponse, len(updated)),
	}
	present := make(map[string]struct{}, len(updated))
	for i := range updated {
		resp.Products[i] = toProductResponse(&updated[i])
		present[updated[i].ID] = struct{}{}
	}
	for _, t := range targets {
		if _, ok := present[t.ID]; !ok {
			resp.Missing = append(resp.Missing, t.ID)
		}
	}

	respondJSON(w, http.StatusOK, resp)
}
