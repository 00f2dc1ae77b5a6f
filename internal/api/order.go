package api

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/gorilla/mux"

	"storecore/internal/domain/order"
)

type placeOrderRequest struct {
	CustomerID string             `json:"customer_id"`
	Items      []orderItemRequest `json:"items"`
}

type orderItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type orderResponse struct {
	ID         string              `json:"id"`
	CustomerID string              `json:"customer_id"`
	Customer   *customerResponse   `json:"customer,omitempty"`
	Items      []orderItemResponse `json:"items"`
	Total      float64             `json:"total"`
	CreatedAt  time.Time           `json:"created_at"`
}

type orderItemResponse struct {
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

func toOrderResponse(o *order.Order) orderResponse {
	resp := orderResponse{
		ID:         o.ID,
		CustomerID: o.CustomerID,
		Items:      make([]orderItemResponse, len(o.Items)),
		Total:      o.Total().InexactFloat64(),
		CreatedAt:  o.CreatedAt,
	}
	if o.Customer != nil {
		c := toCustomerResponse(o.Customer)
		resp.Customer = &c
	}
	for i, it := range o.Items {
		resp.Items[i] = orderItemResponse{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     it.Price.InexactFloat64(),
		}
	}
	return resp
}

// PlaceOrder places an order for a customer. Validation failures map to
// distinguishable client errors; nothing is persisted when any line fails.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}

	lines := make([]order.LineRequest, len(req.Items))
	for i, it := range req.Items {
		lines[i] = order.LineRequest{ProductID: it.ProductID, Quantity: it.Quantity}
	}

	placed, err := h.placement.PlaceOrder(r.Context(), req.CustomerID, lines)
	if err != nil {
		h.respondPlacementError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, toOrderResponse(placed))
}

// respondPlacementError maps domain placement errors to HTTP replies.
func (h *Handler) respondPlacementError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		customerErr *order.CustomerNotFoundError
		productErr  *order.ProductNotFoundError
		quantityErr *order.InvalidQuantityError
		stockErr    *order.InsufficientQuantityError
	)

	switch {
	case errors.Is(err, order.ErrEmptyLines):
		respondError(w, http.StatusBadRequest, "items required")
	case errors.As(err, &customerErr),
		errors.As(err, &productErr),
		errors.As(err, &quantityErr),
		errors.As(err, &stockErr):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		respondInternal(w, r, err)
	}
}

// GetOrder returns a single order with its line items.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	o, err := h.orders.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			respondError(w, http.StatusNotFound, "order not found")
			return
		}
		respondInternal(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, toOrderResponse(o))
}
