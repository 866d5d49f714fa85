package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xenking/orderflow/internal/domain/auth"
	"github.com/xenking/orderflow/internal/domain/catalog"
	"github.com/xenking/orderflow/internal/domain/order"
	"github.com/xenking/orderflow/internal/domain/promotion"
	"github.com/xenking/orderflow/internal/storage/postgres"
)

// --- Mock implementations ---

type mockVariantRepo struct {
	byID map[string]*catalog.Variant
}

func (m *mockVariantRepo) GetByID(_ context.Context, id string) (*catalog.Variant, error) {
	v, ok := m.byID[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return v, nil
}

func (m *mockVariantRepo) GetByIDs(_ context.Context, ids []string) ([]catalog.Variant, error) {
	out := make([]catalog.Variant, 0, len(ids))
	for _, id := range ids {
		if v, ok := m.byID[id]; ok {
			out = append(out, *v)
		}
	}
	return out, nil
}

type mockOrderRepo struct {
	byID map[string]*order.Order
}

func (m *mockOrderRepo) Create(_ context.Context, o *order.Order) error {
	m.byID[o.ID] = o
	return nil
}

func (m *mockOrderRepo) Get(_ context.Context, id string) (*order.Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return nil, postgres.ErrOrderNotFound
	}
	return o, nil
}

func (m *mockOrderRepo) Update(_ context.Context, o *order.Order) error {
	m.byID[o.ID] = o
	return nil
}

type mockPromotionRepo struct {
	byCoupon map[string]*promotion.Promotion
}

func (m *mockPromotionRepo) Active(_ context.Context) ([]*promotion.Promotion, error) {
	out := make([]*promotion.Promotion, 0, len(m.byCoupon))
	for _, p := range m.byCoupon {
		out = append(out, p)
	}
	return out, nil
}

func (m *mockPromotionRepo) FindByCoupon(_ context.Context, code string) (*promotion.Promotion, error) {
	p, ok := m.byCoupon[code]
	if !ok {
		return nil, promotion.ErrCouponInvalid
	}
	return p, nil
}

func (m *mockPromotionRepo) IncrementUses(context.Context, string, string) error { return nil }

func (m *mockPromotionRepo) CustomerUses(context.Context, string, string) (int, error) {
	return 0, nil
}

type mockAPIKeyRepo struct {
	info *auth.APIKeyInfo
}

func (m *mockAPIKeyRepo) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	if m.info == nil || m.info.KeyHash != hash {
		return nil, auth.ErrNotFound
	}
	return m.info, nil
}

// --- Helpers ---

const (
	testAPIKey = "test-key"
	testPepper = "test-pepper"
)

func keyHash(key string) string {
	mac := hmac.New(sha256.New, []byte(testPepper))
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

type testStack struct {
	mux    *http.ServeMux
	orders *mockOrderRepo
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()

	variants := &mockVariantRepo{byID: map[string]*catalog.Variant{
		"v1": {ID: "v1", Name: "Widget", UnitPrice: 1000, TaxRate: 2300, Stock: 100},
	}}
	promos := &mockPromotionRepo{byCoupon: map[string]*promotion.Promotion{}}
	orders := &mockOrderRepo{byID: map[string]*order.Order{}}

	lg := zap.NewNop()
	evaluator := promotion.NewEvaluator(promos, lg)
	ledger := order.NewLedger(variants, evaluator, order.DefaultShippingAssignment{}, nil, lg)
	engine := order.NewProcessEngine(order.DefaultStateGraph(), ledger, []order.ProcessHook{
		order.NonEmptyOrderHook{},
	}, lg)
	svc := order.NewService(orders, engine, ledger, nil, lg)

	sec := NewSecurity(&mockAPIKeyRepo{
		info: &auth.APIKeyInfo{KeyHash: keyHash(testAPIKey), Name: "test key"},
	}, []byte(testPepper))

	mux := http.NewServeMux()
	NewHandler(svc).Register(mux, sec.Middleware)

	return &testStack{mux: mux, orders: orders}
}

func (s *testStack) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var rd *strings.Reader
	if body == "" {
		rd = strings.NewReader("{}")
	} else {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("api_key", testAPIKey)

	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func (s *testStack) createOrder(t *testing.T) string {
	t.Helper()

	rec := s.do(t, http.MethodPost, "/api/orders", `{"currency":"USD","customer_id":"cust-1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	return decodeBody(t, rec)["id"].(string)
}

// --- Tests ---

func TestCreateAndGetOrder(t *testing.T) {
	s := newTestStack(t)
	id := s.createOrder(t)

	rec := s.do(t, http.MethodGet, "/api/orders/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, id, body["id"])
	assert.Equal(t, "AddingItems", body["state"])
	assert.Equal(t, "cust-1", body["customer_id"])
}

func TestGetOrder_NotFound(t *testing.T) {
	s := newTestStack(t)

	rec := s.do(t, http.MethodGet, "/api/orders/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddItem(t *testing.T) {
	s := newTestStack(t)
	id := s.createOrder(t)

	rec := s.do(t, http.MethodPost, "/api/orders/"+id+"/items", `{"variant_id":"v1","quantity":2}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	totals := body["totals"].(map[string]any)
	assert.Equal(t, float64(2000), totals["subtotal"])
	assert.Equal(t, float64(460), totals["tax"])
	assert.Equal(t, float64(2460), totals["grand_total"])

	history := body["history"].([]any)
	require.Len(t, history, 1)
	rec0 := history[0].(map[string]any)
	assert.Equal(t, "quantity-change", rec0["kind"])
	assert.Equal(t, "test key", rec0["actor"])
}

func TestAddItem_UnknownVariant(t *testing.T) {
	s := newTestStack(t)
	id := s.createOrder(t)

	rec := s.do(t, http.MethodPost, "/api/orders/"+id+"/items", `{"variant_id":"nope","quantity":1}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestAddItem_InvalidBody(t *testing.T) {
	s := newTestStack(t)
	id := s.createOrder(t)

	rec := s.do(t, http.MethodPost, "/api/orders/"+id+"/items", `{"quantity":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdjustLine(t *testing.T) {
	s := newTestStack(t)
	id := s.createOrder(t)

	rec := s.do(t, http.MethodPost, "/api/orders/"+id+"/items", `{"variant_id":"v1","quantity":2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	lines := decodeBody(t, rec)["lines"].([]any)
	lineID := lines[0].(map[string]any)["id"].(string)

	rec = s.do(t, http.MethodPatch, "/api/orders/"+id+"/lines/"+lineID, `{"quantity":5}`)
	require.Equal(t, http.StatusOK, rec.Code)

	totals := decodeBody(t, rec)["totals"].(map[string]any)
	assert.Equal(t, float64(5000), totals["subtotal"])
}

func TestAdjustLine_RequiresQuantityOrPrice(t *testing.T) {
	s := newTestStack(t)
	id := s.createOrder(t)

	rec := s.do(t, http.MethodPatch, "/api/orders/"+id+"/lines/l1", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRemoveLine_NotFound(t *testing.T) {
	s := newTestStack(t)
	id := s.createOrder(t)

	rec := s.do(t, http.MethodDelete, "/api/orders/"+id+"/lines/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestApplyCoupon_Invalid(t *testing.T) {
	s := newTestStack(t)
	id := s.createOrder(t)

	rec := s.do(t, http.MethodPost, "/api/orders/"+id+"/coupons", `{"code":"BOGUS"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestApplyCoupon_EmptyCode(t *testing.T) {
	s := newTestStack(t)
	id := s.createOrder(t)

	rec := s.do(t, http.MethodPost, "/api/orders/"+id+"/coupons", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTransition(t *testing.T) {
	s := newTestStack(t)
	id := s.createOrder(t)

	rec := s.do(t, http.MethodPost, "/api/orders/"+id+"/items", `{"variant_id":"v1","quantity":1}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/orders/"+id+"/transition", `{"target":"ArrangingPayment"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ArrangingPayment", decodeBody(t, rec)["state"])
}

func TestTransition_IllegalEdge(t *testing.T) {
	s := newTestStack(t)
	id := s.createOrder(t)

	rec := s.do(t, http.MethodPost, "/api/orders/"+id+"/transition", `{"target":"Delivered"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestTransition_HookVeto(t *testing.T) {
	s := newTestStack(t)
	id := s.createOrder(t)

	// Empty order: the non-empty hook vetoes checkout.
	rec := s.do(t, http.MethodPost, "/api/orders/"+id+"/transition", `{"target":"ArrangingPayment"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	body := decodeBody(t, rec)
	assert.Contains(t, body["message"], "non-empty-order")
}

func TestSetShippingLines(t *testing.T) {
	s := newTestStack(t)
	id := s.createOrder(t)

	rec := s.do(t, http.MethodPost, "/api/orders/"+id+"/items", `{"variant_id":"v1","quantity":1}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/orders/"+id+"/shipping-lines",
		`{"shipping_lines":[{"method_id":"standard","price":500}]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	totals := body["totals"].(map[string]any)
	assert.Equal(t, float64(500), totals["shipping"])

	lines := body["lines"].([]any)
	assert.NotEmpty(t, lines[0].(map[string]any)["shipping_line_id"])
}

func TestAuthentication(t *testing.T) {
	s := newTestStack(t)

	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader("{}"))
	req.Header.Set("api_key", "wrong-key")
	rec = httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestErrorBodyShape(t *testing.T) {
	s := newTestStack(t)

	rec := s.do(t, http.MethodGet, "/api/orders/nope", "")
	body := decodeBody(t, rec)
	assert.Equal(t, float64(http.StatusNotFound), body["code"])
	assert.NotEmpty(t, body["message"])
}
