package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/auth"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/events"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/mocks"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/repository"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/service"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

type handlerFixture struct {
	orders   *mocks.MemoryOrderRepository
	payments *mocks.MemoryPaymentRepository
	gateway  *mocks.MockGatewayClient
	router   *gin.Engine
}

// testCaller stands in for RequireAuth: X-Test-User and X-Test-Role set the caller.
func testCaller() gin.HandlerFunc {
	return func(c *gin.Context) {
		if user := c.GetHeader("X-Test-User"); user != "" {
			auth.SetCaller(c, models.Caller{UserID: user, Role: models.Role(c.GetHeader("X-Test-Role"))})
		}
		c.Next()
	}
}

func newHandlerFixture(orders []*models.Order, payments ...*models.Payment) *handlerFixture {
	gin.SetMode(gin.TestMode)
	f := &handlerFixture{
		orders:   mocks.NewMemoryOrderRepository(orders...),
		payments: mocks.NewMemoryPaymentRepository(payments...),
		gateway:  new(mocks.MockGatewayClient),
	}

	logger := logging.NewNopLogger()
	pub := events.NopPublisher{}
	cache := mocks.NewMemoryOrderCache()
	sm := service.NewOrderStateMachine(f.orders, cache, pub, nil, logger)
	locker := repository.NewLocalOrderLocker()
	orderSvc := service.NewOrderService(f.orders, f.payments, locker, cache, sm, pub, logger)
	paymentSvc := service.NewPaymentService(f.orders, f.payments, f.gateway, sm, locker, pub, nil, logger)
	h := NewHandlers(orderSvc, paymentSvc, &config.Config{}, nil)

	r := gin.New()
	r.Use(testCaller())
	r.POST("/api/payment/authorize", h.AuthorizePayment)
	r.POST("/api/payment/capture", h.CapturePayment)
	r.POST("/api/payment/cancel", h.CancelPayment)
	r.POST("/api/webhooks/cielo", h.CieloWebhook)
	r.GET("/api/webhooks/cielo", h.CieloWebhookStatus)
	r.POST("/api/orders", h.CreateOrder)
	r.GET("/api/orders", h.ListOrders)
	r.GET("/api/orders/:id", h.GetOrder)
	r.PUT("/api/orders/:id", h.UpdateOrderStatus)
	r.DELETE("/api/orders/:id", h.CancelOrder)
	r.GET("/api/orders/:id/payments", h.ListOrderPayments)
	f.router = r
	return f
}

func (f *handlerFixture) do(t *testing.T, method, path string, body interface{}, caller *models.Caller) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if caller != nil {
		req.Header.Set("X-Test-User", caller.UserID)
		req.Header.Set("X-Test-Role", string(caller.Role))
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

var (
	customer = &models.Caller{UserID: "user-1", Role: models.RoleCustomer}
	admin    = &models.Caller{UserID: "admin-1", Role: models.RoleAdmin}
)

func pendingOrder(id string) *models.Order {
	return &models.Order{
		ID:       id,
		UserID:   "user-1",
		Status:   models.OrderStatusPending,
		Total:    decimal.RequireFromString("150.00"),
		Currency: models.DefaultCurrency,
	}
}

func authorizeBody() gin.H {
	return gin.H{
		"order_id": "order-1",
		"credit_card": gin.H{
			"card_number":     "4551870000000183",
			"holder":          "Maria Silva",
			"expiration_date": "12/2030",
			"security_code":   "123",
			"brand":           "Visa",
		},
	}
}

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &Handlers{}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	h.Health(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
	assert.Equal(t, serviceName, resp["service"])
}

func TestLive(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &Handlers{}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	h.Live(c)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReady(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		checks map[string]ReadinessCheck
		want   int
	}{
		{"no checks", nil, http.StatusOK},
		{"all pass", map[string]ReadinessCheck{
			"postgres": func(context.Context) error { return nil },
		}, http.StatusOK},
		{"one fails", map[string]ReadinessCheck{
			"postgres": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return fmt.Errorf("connection refused") },
		}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &Handlers{checks: tt.checks, logger: logging.NewNopLogger()}
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/ready", nil)

			h.Ready(c)

			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestHandleError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", errors.NewValidationError("holder", "too short"), http.StatusBadRequest, CodeValidation},
		{"unauthenticated", errors.New(errors.ErrUnauthenticated, "no token"), http.StatusUnauthorized, CodeUnauthenticated},
		{"forbidden", errors.New(errors.ErrForbidden, "nope"), http.StatusForbidden, CodeForbidden},
		{"not found", errors.New(errors.ErrNotFound, "order not found"), http.StatusNotFound, CodeNotFound},
		{"invalid state", errors.New(errors.ErrInvalidState, "bad state"), http.StatusBadRequest, CodeInvalidState},
		{"illegal transition", errors.New(errors.ErrIllegalTransition, "no"), http.StatusConflict, CodeIllegalTransition},
		{"rejected", fmt.Errorf("authorize: %w", &errors.GatewayError{StatusCode: 400, Code: "126", Message: "invalid expiration"}), http.StatusPaymentRequired, "126"},
		{"unreachable", errors.Unreachable("authorize", fmt.Errorf("dial tcp")), http.StatusBadGateway, CodeGatewayUnreachable},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError, CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			HandleError(c, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			var env envelope
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
			assert.False(t, env.Success)
			assert.Equal(t, tt.wantCode, env.Code)
			assert.NotEmpty(t, env.Error)
		})
	}
}

func TestAuthorizePayment(t *testing.T) {
	f := newHandlerFixture([]*models.Order{pendingOrder("order-1")})
	f.gateway.On("Authorize", mock.Anything, mock.MatchedBy(func(r *models.AuthorizeGatewayRequest) bool {
		return r.AmountMinor == 15000
	})).Return(&models.GatewayPaymentResult{PaymentID: "gw-1", Status: models.GatewayStatusAuthorized}, nil)

	w, env := f.do(t, http.MethodPost, "/api/payment/authorize", authorizeBody(), customer)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, env.Success)
	var res models.AuthorizeResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "gw-1", res.PaymentID)
	assert.True(t, res.Authorized)
	assert.Equal(t, "payment authorized", res.Message)
}

func TestAuthorizePayment_Errors(t *testing.T) {
	t.Run("unauthenticated", func(t *testing.T) {
		f := newHandlerFixture([]*models.Order{pendingOrder("order-1")})
		w, env := f.do(t, http.MethodPost, "/api/payment/authorize", authorizeBody(), nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, CodeUnauthenticated, env.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		f := newHandlerFixture([]*models.Order{pendingOrder("order-1")})
		w, env := f.do(t, http.MethodPost, "/api/payment/authorize", "{not json", customer)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, CodeValidation, env.Code)
	})

	t.Run("invalid card", func(t *testing.T) {
		f := newHandlerFixture([]*models.Order{pendingOrder("order-1")})
		body := authorizeBody()
		body["credit_card"].(gin.H)["card_number"] = "1234"
		w, env := f.do(t, http.MethodPost, "/api/payment/authorize", body, customer)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, CodeValidation, env.Code)
		f.gateway.AssertNotCalled(t, "Authorize", mock.Anything, mock.Anything)
	})

	t.Run("gateway rejection", func(t *testing.T) {
		f := newHandlerFixture([]*models.Order{pendingOrder("order-1")})
		f.gateway.On("Authorize", mock.Anything, mock.Anything).
			Return(nil, &errors.GatewayError{StatusCode: 400, Code: "126", Message: "Credit Card Expiration Date is invalid"})
		w, env := f.do(t, http.MethodPost, "/api/payment/authorize", authorizeBody(), customer)
		assert.Equal(t, http.StatusPaymentRequired, w.Code)
		assert.Equal(t, "126", env.Code)
		assert.Equal(t, "Credit Card Expiration Date is invalid", env.Error)
	})

	t.Run("gateway unreachable", func(t *testing.T) {
		f := newHandlerFixture([]*models.Order{pendingOrder("order-1")})
		f.gateway.On("Authorize", mock.Anything, mock.Anything).
			Return(nil, errors.Unreachable("authorize", fmt.Errorf("timeout")))
		w, _ := f.do(t, http.MethodPost, "/api/payment/authorize", authorizeBody(), customer)
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})
}

func TestCapturePayment(t *testing.T) {
	authorized := &models.Payment{GatewayPaymentID: "gw-1", OrderID: "order-1", Status: models.PaymentStatusAuthorized}
	order := pendingOrder("order-1")
	order.Status = models.OrderStatusPaymentPending

	f := newHandlerFixture([]*models.Order{order}, authorized)
	f.gateway.On("Capture", mock.Anything, "gw-1", (*int64)(nil)).
		Return(&models.GatewayPaymentResult{PaymentID: "gw-1", Status: models.GatewayStatusConfirmed}, nil)

	w, _ := f.do(t, http.MethodPost, "/api/payment/capture", gin.H{"payment_id": "gw-1"}, customer)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env := f.do(t, http.MethodPost, "/api/payment/capture", gin.H{"payment_id": "gw-1"}, admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res models.CaptureResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.True(t, res.Captured)
	assert.Equal(t, models.OrderStatusPaid, f.orders.Status("order-1"))

	w, env = f.do(t, http.MethodPost, "/api/payment/capture", gin.H{"payment_id": "gw-1"}, admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, CodeInvalidState, env.Code)
	f.gateway.AssertNumberOfCalls(t, "Capture", 1)
}

func TestCancelOrder_WithAuthorizedPayment(t *testing.T) {
	authorized := &models.Payment{GatewayPaymentID: "gw-1", OrderID: "order-1", Status: models.PaymentStatusAuthorized}
	order := pendingOrder("order-1")
	order.Status = models.OrderStatusPaymentPending
	f := newHandlerFixture([]*models.Order{order}, authorized)

	w, env := f.do(t, http.MethodDelete, "/api/orders/order-1", nil, customer)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, CodeInvalidState, env.Code)
	assert.Equal(t, models.OrderStatusPaymentPending, f.orders.Status("order-1"))
}

func TestCancelPayment(t *testing.T) {
	order := pendingOrder("order-1")
	order.Status = models.OrderStatusPaymentPending
	f := newHandlerFixture([]*models.Order{order},
		&models.Payment{GatewayPaymentID: "gw-1", OrderID: "order-1", Status: models.PaymentStatusAuthorized})
	f.gateway.On("Cancel", mock.Anything, "gw-1", mock.Anything).
		Return(&models.GatewayPaymentResult{PaymentID: "gw-1", Status: models.GatewayStatusVoided}, nil)

	w, env := f.do(t, http.MethodPost, "/api/payment/cancel", gin.H{"payment_id": "gw-1"}, customer)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res models.CancelResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.True(t, res.Cancelled)
	assert.Equal(t, "authorization cancelled", res.Message)
	assert.Equal(t, models.OrderStatusCancelled, f.orders.Status("order-1"))
}

func TestCieloWebhook_AlwaysAcknowledges(t *testing.T) {
	tests := []struct {
		name string
		body interface{}
	}{
		{"malformed", "{{{"},
		{"empty payment id", gin.H{"ChangeType": 2}},
		{"unknown payment", gin.H{"PaymentId": "gw-404", "ChangeType": 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newHandlerFixture(nil)

			w, env := f.do(t, http.MethodPost, "/api/webhooks/cielo", tt.body, nil)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.True(t, env.Success)
			assert.JSONEq(t, `{"received":true}`, string(env.Data))
			f.gateway.AssertNotCalled(t, "QueryStatus", mock.Anything, mock.Anything)
		})
	}
}

func TestCieloWebhook_Reconciles(t *testing.T) {
	tests := []struct {
		name string
		body interface{}
	}{
		{"numeric change type", gin.H{"PaymentId": "gw-1", "ChangeType": 2}},
		{"string change type", gin.H{"PaymentId": "gw-1", "ChangeType": "2"}},
		{"no change type", gin.H{"PaymentId": "gw-1"}},
		{"null change type", gin.H{"PaymentId": "gw-1", "ChangeType": nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := pendingOrder("order-1")
			order.Status = models.OrderStatusPaymentPending
			f := newHandlerFixture([]*models.Order{order},
				&models.Payment{GatewayPaymentID: "gw-1", OrderID: "order-1", Status: models.PaymentStatusAuthorized})
			f.gateway.On("QueryStatus", mock.Anything, "gw-1").
				Return(&models.GatewayPaymentResult{PaymentID: "gw-1", Status: models.GatewayStatusConfirmed}, nil)

			w, _ := f.do(t, http.MethodPost, "/api/webhooks/cielo", tt.body, nil)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, models.OrderStatusPaid, f.orders.Status("order-1"))
			f.gateway.AssertNumberOfCalls(t, "QueryStatus", 1)
		})
	}
}

func TestCieloWebhook_GatewayFailureStillAcknowledges(t *testing.T) {
	f := newHandlerFixture([]*models.Order{pendingOrder("order-1")},
		&models.Payment{GatewayPaymentID: "gw-1", OrderID: "order-1", Status: models.PaymentStatusAuthorized})
	f.gateway.On("QueryStatus", mock.Anything, "gw-1").
		Return(nil, errors.Unreachable("query", fmt.Errorf("timeout")))

	w, env := f.do(t, http.MethodPost, "/api/webhooks/cielo", gin.H{"PaymentId": "gw-1"}, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	assert.Equal(t, 0, f.payments.Writes)
}

func TestCieloWebhookStatus(t *testing.T) {
	f := newHandlerFixture(nil)

	w, env := f.do(t, http.MethodGet, "/api/webhooks/cielo", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
}

func TestOrderEndpoints(t *testing.T) {
	f := newHandlerFixture(nil)

	w, env := f.do(t, http.MethodPost, "/api/orders", gin.H{
		"items": []gin.H{{"product_id": "p-1", "quantity": 2, "unit_price": "75.00"}},
	}, customer)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created models.Order
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "user-1", created.UserID)
	assert.Equal(t, "150.00", created.Total.StringFixed(2))

	w, _ = f.do(t, http.MethodGet, "/api/orders/"+created.ID, nil, customer)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = f.do(t, http.MethodGet, "/api/orders/"+created.ID, nil, &models.Caller{UserID: "user-2", Role: models.RoleCustomer})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = f.do(t, http.MethodGet, "/api/orders/missing", nil, customer)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, env = f.do(t, http.MethodGet, "/api/orders", nil, customer)
	assert.Equal(t, http.StatusOK, w.Code)
	var listed []models.Order
	require.NoError(t, json.Unmarshal(env.Data, &listed))
	assert.Len(t, listed, 1)

	w, env = f.do(t, http.MethodPut, "/api/orders/"+created.ID, gin.H{"status": "shipped"}, admin)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, CodeIllegalTransition, env.Code)

	w, _ = f.do(t, http.MethodDelete, "/api/orders/"+created.ID, nil, customer)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.OrderStatusCancelled, f.orders.Status(created.ID))

	w, _ = f.do(t, http.MethodGet, "/api/orders/"+created.ID+"/payments", nil, customer)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateOrder_EmptyItems(t *testing.T) {
	f := newHandlerFixture(nil)

	w, env := f.do(t, http.MethodPost, "/api/orders", gin.H{"items": []gin.H{}}, customer)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, CodeValidation, env.Code)
}
