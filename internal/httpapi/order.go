package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"

	"github.com/acmeshop/storefront/internal/domain/order"
)

// buyRequest is the order placement body.
type buyRequest struct {
	IDs []string `json:"ids"`
}

// pendingBody is returned when the fulfillment deadline elapses; the caller
// switches to polling GET /api/products/order/{id} with the handle.
type pendingBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	OrderID string `json:"orderId"`
}

// placeOrder submits an order and waits (bounded) for its fulfillment.
// 201 with the merged record on completion, 202 with a polling handle on
// deadline, 400 on an empty id list.
func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req buyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	result, err := h.orders.Submit(r.Context(), order.SubmitRequest{
		Username:   RequesterFromContext(r.Context()),
		ProductIDs: req.IDs,
	})
	if err != nil {
		if errors.Is(err, order.ErrEmptyOrder) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		serverError(w, r, err)
		return
	}

	if result.Pending {
		writeJSON(w, http.StatusAccepted, pendingBody{
			Status:  string(order.StatusPending),
			Message: "Order pending",
			OrderID: result.Record.ID,
		})
		return
	}

	writeJSON(w, http.StatusCreated, orderJSON(result.Record))
}

// orderStatus answers out-of-band polling: the record verbatim, whatever its
// status, or 404.
func (h *Handler) orderStatus(w http.ResponseWriter, r *http.Request) {
	rec, err := h.orders.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Order not found")
			return
		}
		serverError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, orderJSON(rec))
}
