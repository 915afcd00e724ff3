package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"pos-backend/internal/auth"
	"pos-backend/internal/models"
	"pos-backend/internal/service"
	"pos-backend/internal/store/memory"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const webhookSecret = "whsec_api"

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

type testServer struct {
	router   *gin.Engine
	verifier *auth.WebhookVerifier
	store    *memory.Store
}

func newTestServer(t *testing.T, readiness map[string]Pinger) *testServer {
	t.Helper()

	store := memory.New()
	store.AddCustomer(models.Customer{ID: "cust-1", StoreID: "s1", Name: "Budi Santoso", Phone: "0811"})
	store.AddCustomer(models.Customer{ID: "cust-2", StoreID: "s1", Name: "Sari", Phone: "0812"})

	orders := service.NewOrderService(store, store, nil)
	payments := service.NewPaymentService(store, orders)
	verifier := auth.NewWebhookVerifier(webhookSecret)

	router := gin.New()
	NewHandler(orders, payments, verifier, readiness).SetupRoutes(router)
	return &testServer{router: router, verifier: verifier, store: store}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer test-token")

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) webhook(t *testing.T, provider string, body any) *httptest.ResponseRecorder {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments/"+provider, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(auth.HeaderTimestamp, ts)
	req.Header.Set(auth.HeaderSignature, s.verifier.Sign(raw, ts))

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func orderBody(clientOrderID string) map[string]any {
	return map[string]any{
		"store_id":        "s1",
		"client_order_id": clientOrderID,
		"source":          "mobile_pickup",
		"customer_id":     "cust-1",
		"items": []map[string]any{
			{"menu_item_id": "latte", "quantity": 2, "unit_price": "45"},
		},
		"subtotal":   "90",
		"tax_amount": "10",
		"total":      "100",
	}
}

func (s *testServer) createOrder(t *testing.T, clientOrderID string) models.Order {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/orders", orderBody(clientOrderID))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[models.Order](t, w)
}

func (s *testServer) createPayment(t *testing.T, orderID, provider string) models.Payment {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/payments", map[string]any{
		"order_id": orderID,
		"method":   "qris",
		"provider": provider,
		"amount":   "100",
		"status":   "success",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[models.Payment](t, w)
}

func TestHealthAndReadiness(t *testing.T) {
	s := newTestServer(t, map[string]Pinger{
		"postgres": pingerFunc(func(context.Context) error { return nil }),
	})

	w := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	down := newTestServer(t, map[string]Pinger{
		"postgres": pingerFunc(func(context.Context) error { return nil }),
		"redis":    pingerFunc(func(context.Context) error { return errors.New("connection refused") }),
	})
	w = down.do(t, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	body := decode[map[string]any](t, w)
	assert.Equal(t, "not_ready", body["status"])
	assert.Equal(t, map[string]any{"postgres": "ok", "redis": "unavailable"}, body["checks"])
}

func TestAPIRequiresBearerToken(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments?status=pending", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	body := decode[ErrorResponse](t, w)
	assert.Equal(t, http.StatusUnauthorized, body.StatusCode)
	assert.NotEmpty(t, body.Error)
}

func TestCreateOrder(t *testing.T) {
	s := newTestServer(t, nil)

	order := s.createOrder(t, "c1")
	assert.Equal(t, models.OrderStatusCreated, order.Status)
	assert.Equal(t, "100", order.Total.String())
	require.NotNil(t, order.Customer)
	assert.Equal(t, "Budi Santoso", order.Customer.Name)

	t.Run("duplicate client order id: conflict", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/v1/orders", orderBody("c1"))
		assert.Equal(t, http.StatusConflict, w.Code)

		body := decode[ErrorResponse](t, w)
		assert.Equal(t, http.StatusConflict, body.StatusCode)
		assert.Contains(t, body.Error, "c1")
	})

	t.Run("binding failures name the fields", func(t *testing.T) {
		req := orderBody("c2")
		req["source"] = "drive_thru"
		req["items"] = []map[string]any{{"menu_item_id": "latte", "quantity": 0}}

		w := s.do(t, http.MethodPost, "/api/v1/orders", req)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		body := decode[ErrorResponse](t, w)
		assert.Contains(t, body.Fields, "source")
		assert.Contains(t, body.Fields, "items[0].quantity")
	})

	t.Run("total below subtotal: validation error", func(t *testing.T) {
		req := orderBody("c3")
		req["total"] = "50"

		w := s.do(t, http.MethodPost, "/api/v1/orders", req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, decode[ErrorResponse](t, w).Fields, "total")
	})

	t.Run("malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewBufferString(`{"store_id":`))
		req.Header.Set("Authorization", "Bearer t")
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGetOrder(t *testing.T) {
	s := newTestServer(t, nil)
	order := s.createOrder(t, "c1")

	w := s.do(t, http.MethodGet, "/api/v1/orders/"+order.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, order.ID, decode[models.Order](t, w).ID)

	w = s.do(t, http.MethodGet, "/api/v1/stores/s1/orders/client/c1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, order.ID, decode[models.Order](t, w).ID)

	w = s.do(t, http.MethodGet, "/api/v1/stores/s1/orders/client/c9", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/orders/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[ErrorResponse](t, w).Fields, "id")

	w = s.do(t, http.MethodGet, "/api/v1/orders/1d7a8e55-6a0a-4b43-9d7e-8c1c2b7f0a11", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/orders/"+order.ID.String()+"/payment", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateOrderStatus(t *testing.T) {
	s := newTestServer(t, nil)
	order := s.createOrder(t, "c1")
	path := "/api/v1/orders/" + order.ID.String() + "/status"

	w := s.do(t, http.MethodPatch, path, map[string]any{"status": "completed", "actor_id": "barista-7"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[orderStatusResponse](t, w)
	assert.True(t, resp.Changed)
	assert.Equal(t, models.OrderStatusCompleted, resp.Order.Status)
	assert.NotNil(t, resp.Order.CompletedAt)

	// same status again is a no-op
	w = s.do(t, http.MethodPatch, path, map[string]any{"status": "completed", "actor_id": "barista-7"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[orderStatusResponse](t, w).Changed)

	w = s.do(t, http.MethodPatch, path, map[string]any{"status": "completed"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[ErrorResponse](t, w).Fields, "actor_id")

	w = s.do(t, http.MethodGet, "/api/v1/orders/"+order.ID.String()+"/events", nil)
	require.Equal(t, http.StatusOK, w.Code)
	events := decode[struct {
		Events []models.OrderEvent `json:"events"`
	}](t, w).Events
	require.Len(t, events, 2)
	assert.Equal(t, "barista-7", events[0].ActorID)
	assert.Equal(t, models.EventTypeCreated, events[1].EventType)
}

func TestPaymentLifecycle(t *testing.T) {
	s := newTestServer(t, nil)
	order := s.createOrder(t, "c1")

	payment := s.createPayment(t, order.ID.String(), "xendit")
	assert.Equal(t, models.PaymentStatusPending, payment.Status)

	w := s.do(t, http.MethodGet, "/api/v1/orders/"+order.ID.String()+"/payment", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, payment.ID, decode[models.Payment](t, w).ID)

	w = s.do(t, http.MethodPost, "/api/v1/payments", map[string]any{
		"order_id": order.ID.String(), "method": "qris", "provider": "xendit", "amount": "100",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/payments?status=pending", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[struct {
		Payments []models.Payment `json:"payments"`
	}](t, w).Payments, 1)

	w = s.do(t, http.MethodPatch, "/api/v1/payments/"+payment.ID.String()+"/status", map[string]any{
		"status": "success", "provider_reference": "xnd-1",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	settled := decode[settlementResponse](t, w)
	assert.True(t, settled.PaymentChanged)
	assert.True(t, settled.OrderChanged)
	require.NotNil(t, settled.Order)
	assert.Equal(t, models.OrderStatusPaid, settled.Order.Status)
	require.NotNil(t, settled.Payment.ProviderReference)
	assert.Equal(t, "xnd-1", *settled.Payment.ProviderReference)

	w = s.do(t, http.MethodPatch, "/api/v1/payments/"+payment.ID.String()+"/status", map[string]any{"status": "done"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/payments", map[string]any{
		"order_id": "1d7a8e55-6a0a-4b43-9d7e-8c1c2b7f0a11", "method": "qris", "provider": "xendit", "amount": "1",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListOrders(t *testing.T) {
	s := newTestServer(t, nil)
	s.createOrder(t, "c1")
	s.createOrder(t, "c2")

	w := s.do(t, http.MethodGet, "/api/v1/stores/s1/orders?customer_name=budi&limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	page := decode[models.OrderPage](t, w)
	assert.Equal(t, 2, page.Total)
	assert.Len(t, page.Orders, 1)
	assert.Equal(t, 1, page.Limit)

	w = s.do(t, http.MethodGet, "/api/v1/stores/s1/orders?customer_name=sari", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, decode[models.OrderPage](t, w).Total)

	w = s.do(t, http.MethodGet, "/api/v1/stores/s1/orders?date_from=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[ErrorResponse](t, w).Fields, "date_from")

	w = s.do(t, http.MethodGet, "/api/v1/stores/s1/orders?limit=0", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/stores/s1/orders?limit=9999", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListPayments(t *testing.T) {
	s := newTestServer(t, nil)
	order := s.createOrder(t, "c1")
	s.createPayment(t, order.ID.String(), "stripe")

	w := s.do(t, http.MethodGet, "/api/v1/stores/s1/payments?method=qris&status=pending", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, decode[models.PaymentPage](t, w).Total)

	w = s.do(t, http.MethodGet, "/api/v1/stores/s1/payments?method=cash", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPaymentWebhook(t *testing.T) {
	s := newTestServer(t, nil)
	order := s.createOrder(t, "c1")
	payment := s.createPayment(t, order.ID.String(), "xendit")

	w := s.webhook(t, "xendit", map[string]any{
		"payment_id": payment.ID.String(), "status": "PAID", "provider_reference": "xnd-77",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	settled := decode[settlementResponse](t, w)
	assert.Equal(t, models.PaymentStatusSuccess, settled.Payment.Status)
	require.NotNil(t, settled.Order)
	assert.Equal(t, models.OrderStatusPaid, settled.Order.Status)

	history, err := s.store.ListOrderEvents(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, "webhook:xendit", history[0].ActorID)

	t.Run("redelivery changes nothing", func(t *testing.T) {
		w := s.webhook(t, "xendit", map[string]any{"payment_id": payment.ID.String(), "status": "success"})
		require.Equal(t, http.StatusOK, w.Code)
		settled := decode[settlementResponse](t, w)
		assert.False(t, settled.PaymentChanged)
		assert.False(t, settled.OrderChanged)
	})

	t.Run("payment of another provider", func(t *testing.T) {
		w := s.webhook(t, "stripe", map[string]any{"payment_id": payment.ID.String(), "status": "success"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown provider", func(t *testing.T) {
		w := s.webhook(t, "paypal", map[string]any{"payment_id": payment.ID.String(), "status": "success"})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("unknown status", func(t *testing.T) {
		w := s.webhook(t, "xendit", map[string]any{"payment_id": payment.ID.String(), "status": "weird"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("bad signature", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/payments/xendit", bytes.NewBufferString(`{}`))
		req.Header.Set(auth.HeaderTimestamp, strconv.FormatInt(time.Now().UnixMilli(), 10))
		req.Header.Set(auth.HeaderSignature, "00")
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, http.StatusUnauthorized, decode[ErrorResponse](t, w).StatusCode)
	})
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, http.StatusNotFound, decode[ErrorResponse](t, w).StatusCode)
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	router := gin.New()
	router.GET("/boom", func(c *gin.Context) {
		respondError(c, errors.New("pq: password authentication failed"))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode[ErrorResponse](t, w)
	assert.Equal(t, "Internal Server Error", body.Error)
	assert.NotContains(t, w.Body.String(), "password")
}
