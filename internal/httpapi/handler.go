// Package httpapi exposes the storefront HTTP surface: catalog reads, order
// placement, and order status polling.
package httpapi

import (
	"net/http"

	"github.com/acmeshop/storefront/internal/domain/order"
	"github.com/acmeshop/storefront/internal/domain/product"
)

// Handler serves the /api routes, delegating to the catalog repository and
// the order service.
type Handler struct {
	products product.Repository
	orders   *order.Service
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(products product.Repository, orders *order.Service) *Handler {
	return &Handler{
		products: products,
		orders:   orders,
	}
}

// Routes returns the API routing tree. Every route is behind the
// token-presence gate.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/products", h.listProducts)
	mux.HandleFunc("GET /api/products/{id}", h.getProduct)
	mux.HandleFunc("POST /api/products/buy", h.placeOrder)
	mux.HandleFunc("GET /api/products/order/{id}", h.orderStatus)
	return RequireToken(mux)
}
