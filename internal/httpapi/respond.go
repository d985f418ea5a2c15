package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/acmeshop/storefront/internal/domain/order"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Code: status, Message: message})
}

// orderJSON renders an order record. Base fields come first, then the
// fulfillment result is overlaid on top: the worker's final snapshot wins
// over the submission-time one, mirroring a field-wise merge. Status is never
// overridden by the overlay; the store owns it.
func orderJSON(rec order.Record) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(rec.Result)+5)
	out["orderId"] = mustJSON(rec.ID)
	out["username"] = mustJSON(rec.Username)
	out["products"] = mustJSON(rec.Products)
	out["createdAt"] = mustJSON(rec.CreatedAt.UTC().Format(time.RFC3339Nano))

	for k, v := range rec.Result {
		out[k] = v
	}

	out["status"] = mustJSON(string(rec.Status))
	return out
}

func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

// serverError logs err and responds with a generic 500. Collaborator details
// never leak to the caller.
func serverError(w http.ResponseWriter, r *http.Request, err error) {
	zctx.From(r.Context()).Error("request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "Server error")
}
