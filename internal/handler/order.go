package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/orderflow/internal/domain/catalog"
	"github.com/xenking/orderflow/internal/domain/order"
	"github.com/xenking/orderflow/internal/domain/promotion"
	"github.com/xenking/orderflow/internal/storage/postgres"
)

type createOrderRequest struct {
	Currency   string `json:"currency"`
	CustomerID string `json:"customer_id"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if !decode(w, r, &req) {
		return
	}

	o, err := h.orders.Create(r.Context(), req.Currency, req.CustomerID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

type addItemRequest struct {
	VariantID    string            `json:"variant_id"`
	Quantity     int               `json:"quantity"`
	CustomFields map[string]string `json:"custom_fields"`
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if !decode(w, r, &req) {
		return
	}

	o, _, err := h.orders.AddItem(r.Context(), r.PathValue("id"), order.AddItemRequest{
		VariantID:    req.VariantID,
		Quantity:     req.Quantity,
		CustomFields: req.CustomFields,
		Actor:        actorFrom(r),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

type adjustLineRequest struct {
	Quantity *int `json:"quantity"`
	// UnitPrice overrides the line price; only legal in the Modifying state.
	UnitPrice *int64 `json:"unit_price"`
}

func (h *Handler) adjustLine(w http.ResponseWriter, r *http.Request) {
	var req adjustLineRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Quantity == nil && req.UnitPrice == nil {
		writeError(w, http.StatusBadRequest, "quantity or unit_price required")
		return
	}

	var (
		orderID = r.PathValue("id")
		lineID  = r.PathValue("lineID")
		actor   = actorFrom(r)
		o       *order.Order
		err     error
	)
	if req.Quantity != nil {
		o, err = h.orders.AdjustLine(r.Context(), orderID, lineID, *req.Quantity, actor)
	}
	if err == nil && req.UnitPrice != nil {
		o, err = h.orders.AdjustLinePrice(r.Context(), orderID, lineID, *req.UnitPrice, actor)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func (h *Handler) removeLine(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.RemoveLine(r.Context(), r.PathValue("id"), r.PathValue("lineID"), actorFrom(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

type couponRequest struct {
	Code string `json:"code"`
}

func (h *Handler) applyCoupon(w http.ResponseWriter, r *http.Request) {
	var req couponRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "coupon code required")
		return
	}

	o, err := h.orders.ApplyCoupon(r.Context(), r.PathValue("id"), req.Code, actorFrom(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func (h *Handler) removeCoupon(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.RemoveCoupon(r.Context(), r.PathValue("id"), r.PathValue("code"), actorFrom(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

type shippingLinesRequest struct {
	ShippingLines []struct {
		MethodID string `json:"method_id"`
		Price    int64  `json:"price"`
	} `json:"shipping_lines"`
}

func (h *Handler) setShippingLines(w http.ResponseWriter, r *http.Request) {
	var req shippingLinesRequest
	if !decode(w, r, &req) {
		return
	}

	lines := make([]order.ShippingLine, len(req.ShippingLines))
	for i, sl := range req.ShippingLines {
		lines[i] = order.ShippingLine{MethodID: sl.MethodID, Price: sl.Price}
	}

	o, err := h.orders.SetShippingLines(r.Context(), r.PathValue("id"), lines)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

type transitionRequest struct {
	Target string `json:"target"`
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Target == "" {
		writeError(w, http.StatusBadRequest, "target state required")
		return
	}

	o, err := h.orders.Transition(r.Context(), r.PathValue("id"), order.State(req.Target), actorFrom(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

// decode parses the JSON request body, writing a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// fail maps domain errors onto the HTTP error taxonomy. Everything in the
// switch is an expected, recoverable outcome; anything else is logged and
// reported as a 500.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, postgres.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, order.ErrLineNotFound):
		writeError(w, http.StatusNotFound, "order line not found")
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusUnprocessableEntity, "unknown product variant")
	case errors.Is(err, order.ErrOrderImmutable):
		writeError(w, http.StatusConflict, "order is in a terminal state")
	case errors.Is(err, order.ErrCouponNotApplied):
		writeError(w, http.StatusUnprocessableEntity, "coupon code not applied to this order")
	case errors.Is(err, promotion.ErrCouponInvalid):
		writeError(w, http.StatusUnprocessableEntity, "invalid coupon code")
	case errors.Is(err, promotion.ErrCouponExpired):
		writeError(w, http.StatusUnprocessableEntity, "coupon expired")
	default:
		h.failTyped(w, r, err)
	}
}

func (h *Handler) failTyped(w http.ResponseWriter, r *http.Request, err error) {
	var (
		illegalErr *order.IllegalTransitionError
		vetoErr    *order.TransitionVetoedError
		mvetoErr   *order.MutationVetoedError
		qtyErr     *order.InvalidQuantityError
		stockErr   *order.InsufficientStockError
		limitErr   *promotion.CouponLimitReachedError
	)
	switch {
	case errors.As(err, &illegalErr):
		writeError(w, http.StatusConflict, illegalErr.Error())
	case errors.As(err, &vetoErr):
		writeError(w, http.StatusUnprocessableEntity, vetoErr.Error())
	case errors.As(err, &mvetoErr):
		writeError(w, http.StatusUnprocessableEntity, mvetoErr.Error())
	case errors.As(err, &qtyErr):
		writeError(w, http.StatusUnprocessableEntity, qtyErr.Error())
	case errors.As(err, &stockErr):
		writeError(w, http.StatusUnprocessableEntity, stockErr.Error())
	case errors.As(err, &limitErr):
		writeError(w, http.StatusUnprocessableEntity, limitErr.Error())
	default:
		zctx.From(r.Context()).Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
