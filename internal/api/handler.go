// Package api exposes the REST surface of the service: customer
// registration, catalog management, and order placement.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"storecore/internal/domain/customer"
	"storecore/internal/domain/order"
	"storecore/internal/domain/product"
)

// Handler implements the HTTP handlers, delegating business logic to the
// injected domain repositories and the order service.
type Handler struct {
	customers customer.Repository
	products  product.Repository
	orders    order.Repository
	placement *order.Service
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	customers customer.Repository,
	products product.Repository,
	orders order.Repository,
	placement *order.Service,
) *Handler {
	return &Handler{
		customers: customers,
		products:  products,
		orders:    orders,
		placement: placement,
	}
}

// Register mounts all API routes on the given router.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/customers", h.CreateCustomer).Methods(http.MethodPost)
	r.HandleFunc("/customers/{id}", h.GetCustomer).Methods(http.MethodGet)

	r.HandleFunc("/products", h.CreateProduct).Methods(http.MethodPost)
	r.HandleFunc("/products", h.ListProducts).Methods(http.MethodGet)
	r.HandleFunc("/products/quantities", h.UpdateQuantities).Methods(http.MethodPut)
	r.HandleFunc("/products/{id}", h.GetProduct).Methods(http.MethodGet)

	r.HandleFunc("/orders", h.PlaceOrder).Methods(http.MethodPost)
	r.HandleFunc("/orders/{id}", h.GetOrder).Methods(http.MethodGet)
}

// errorResponse is the JSON body for all error replies.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Code: status, Message: message})
}

// respondInternal logs the unexpected error and hides its detail from the
// client.
func respondInternal(w http.ResponseWriter, r *http.Request, err error) {
	zctx.From(r.Context()).Error("Request failed",
		zap.String("path", r.URL.Path), zap.Error(err))
	respondError(w, http.StatusInternalServerError, "internal error")
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
