// Package handler maps the HTTP surface onto the order service. Request
// parsing and response shaping live here; all business rules stay in the
// domain packages.
package handler

import (
	"net/http"

	"github.com/xenking/orderflow/internal/domain/order"
)

// Handler serves the order API.
type Handler struct {
	orders *order.Service
}

// NewHandler constructs a Handler over the order service.
func NewHandler(orders *order.Service) *Handler {
	return &Handler{orders: orders}
}

// Register mounts all API routes on the mux. auth wraps every route: the
// whole surface is key-authenticated because mutations record the key's
// name as the acting identity.
func (h *Handler) Register(mux *http.ServeMux, auth func(http.Handler) http.Handler) {
	route := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, auth(fn))
	}

	route("POST /api/orders", h.createOrder)
	route("GET /api/orders/{id}", h.getOrder)
	route("POST /api/orders/{id}/items", h.addItem)
	route("PATCH /api/orders/{id}/lines/{lineID}", h.adjustLine)
	route("DELETE /api/orders/{id}/lines/{lineID}", h.removeLine)
	route("POST /api/orders/{id}/coupons", h.applyCoupon)
	route("DELETE /api/orders/{id}/coupons/{code}", h.removeCoupon)
	route("PUT /api/orders/{id}/shipping-lines", h.setShippingLines)
	route("POST /api/orders/{id}/transition", h.transition)
}
