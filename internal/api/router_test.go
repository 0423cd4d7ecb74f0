package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Mide008/Roothaus-1/internal/api/middleware"
	"github.com/Mide008/Roothaus-1/internal/catalog"
	"github.com/Mide008/Roothaus-1/internal/config"
	"github.com/Mide008/Roothaus-1/internal/currency"
	"github.com/Mide008/Roothaus-1/internal/email"
	"github.com/Mide008/Roothaus-1/internal/email/emailtest"
	"github.com/Mide008/Roothaus-1/internal/metrics"
	"github.com/Mide008/Roothaus-1/internal/payments"
	"github.com/Mide008/Roothaus-1/internal/payments/paymentstest"
	"github.com/Mide008/Roothaus-1/internal/repository"
	"github.com/Mide008/Roothaus-1/internal/repository/memory"
	"github.com/Mide008/Roothaus-1/internal/service"
)

const (
	webhookSecret = "whsec_test_secret"
	adminToken    = "ops-token"
	sessionID     = "cs_test_a1b2c3d4e5f6g7h8i9"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixedDetector struct{ display currency.Display }

func (d fixedDetector) Detect(ctx context.Context, clientIP string) currency.Display {
	return d.display
}

type testServer struct {
	router   *gin.Engine
	provider *paymentstest.Provider
	outbox   *emailtest.Outbox
	ledger   *memory.NotificationRepository
	cfg      *config.Config
}

func newTestServer(t *testing.T, mutate func(cfg *config.Config)) *testServer {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(adminToken), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := &config.Config{
		Environment: "test",
		SiteURL:     "https://roothaus.example",
		Stripe: config.StripeConfig{
			SecretKey:          "sk_test_123",
			WebhookSecret:      webhookSecret,
			SettlementCurrency: "usd",
			DashboardURL:       "https://dashboard.stripe.com",
		},
		Notify: config.NotifyConfig{
			BusinessEmail: "orders@roothaus.example",
			FromName:      "RootHaus",
			AdminFromName: "RootHaus Order System",
			MaxRetries:    1,
		},
		Admin:     config.AdminConfig{APIKeyHash: string(hash)},
		RateLimit: config.RateLimitConfig{RPS: 100, Burst: 100},
	}
	if mutate != nil {
		mutate(cfg)
	}

	products, err := catalog.Load()
	require.NoError(t, err)

	provider := paymentstest.NewProvider()
	provider.AddSession(paymentstest.OrderSession(sessionID))
	outbox := emailtest.NewOutbox()
	ledger := memory.NewNotificationRepository(10 * time.Minute)
	reg := prometheus.NewRegistry()
	m := metrics.NewServerMetrics(reg)

	processor := service.NewOrderProcessor(service.ProcessorDeps{
		Verifier: payments.NewStripeClient(cfg.Stripe, nil),
		Sessions: provider,
		Renderer: email.NewRenderer(cfg.SiteURL, cfg.Stripe.DashboardURL, "en-US"),
		Sender:   outbox,
		Ledger:   ledger,
		Metrics:  m,
	}, cfg.Notify, nil).WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} })

	router := NewRouter(cfg, &Services{
		Catalog:   products,
		Sessions:  provider,
		Processor: processor,
		Detector: fixedDetector{display: currency.NewDisplay("NGN", currency.Rates{
			"NGN": decimal.NewFromInt(1500),
		}, "en-US", nil)},
		Repositories: &repository.Repositories{Notification: ledger},
		Metrics:      m,
		Gatherer:     reg,
	}, zap.NewNop())

	return &testServer{router: router, provider: provider, outbox: outbox, ledger: ledger, cfg: cfg}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func webhookRequest(path string, payload []byte, signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(string(payload)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", signature)
	return req
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	w = s.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `roothaus_http_requests_total{handler="/health",status="200"} 1`)
}

func TestStripeWebhook_MethodNotAllowed(t *testing.T) {
	s := newTestServer(t, nil)

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		w := s.do(httptest.NewRequest(method, "/webhooks/stripe", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
		assert.JSONEq(t, `{"error":"Method not allowed"}`, w.Body.String())
	}
	assert.Empty(t, s.outbox.Sent())
}

func TestStripeWebhook_InvalidSignature(t *testing.T) {
	s := newTestServer(t, nil)
	payload := paymentstest.EventPayload("evt_1", payments.EventCheckoutSessionCompleted, sessionID)

	w := s.do(webhookRequest("/webhooks/stripe", payload, paymentstest.SignPayload(payload, "whsec_forged", time.Now())))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Webhook signature verification failed"}`, w.Body.String())
	assert.Empty(t, s.outbox.Sent())
	assert.Zero(t, s.provider.Gets())
}

func TestStripeWebhook_NotConfigured(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) { cfg.Stripe.WebhookSecret = "" })
	payload := paymentstest.EventPayload("evt_1", payments.EventCheckoutSessionCompleted, sessionID)

	w := s.do(webhookRequest("/webhooks/stripe", payload, paymentstest.SignPayload(payload, webhookSecret, time.Now())))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestStripeWebhook_CompletedCheckout(t *testing.T) {
	s := newTestServer(t, nil)
	payload := paymentstest.EventPayload("evt_1", payments.EventCheckoutSessionCompleted, sessionID)
	sig := paymentstest.SignPayload(payload, webhookSecret, time.Now())

	for _, path := range []string{"/webhooks/stripe", "/.netlify/functions/stripe-webhook"} {
		w := s.do(webhookRequest(path, payload, sig))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"received":true}`, w.Body.String())
	}

	// the second delivery came through the alias and sent nothing new
	require.Len(t, s.outbox.Sent(), 2)
	assert.Contains(t, s.outbox.SentTo("ada@example.com")[0].HTML, "$690")
	assert.Contains(t, s.outbox.SentTo("orders@roothaus.example")[0].HTML, "$690")
}

func TestStripeWebhook_IgnoredEvent(t *testing.T) {
	s := newTestServer(t, nil)
	payload := paymentstest.EventPayload("evt_2", "payment_intent.succeeded", "pi_123")

	w := s.do(webhookRequest("/webhooks/stripe", payload, paymentstest.SignPayload(payload, webhookSecret, time.Now())))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received":true}`, w.Body.String())
	assert.Empty(t, s.outbox.Sent())
}

func TestStripeWebhook_FailureAsksForRedelivery(t *testing.T) {
	s := newTestServer(t, nil)
	s.outbox.FailFor("orders@roothaus.example", errors.New("mailbox unavailable"))
	payload := paymentstest.EventPayload("evt_1", payments.EventCheckoutSessionCompleted, sessionID)
	sig := paymentstest.SignPayload(payload, webhookSecret, time.Now())

	w := s.do(webhookRequest("/webhooks/stripe", payload, sig))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, decodeBody(t, w)["error"], "admin")
	assert.Len(t, s.outbox.SentTo("ada@example.com"), 1)

	s.outbox.Recover("orders@roothaus.example")
	w = s.do(webhookRequest("/webhooks/stripe", payload, sig))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, s.outbox.SentTo("ada@example.com"), 1)
	assert.Len(t, s.outbox.SentTo("orders@roothaus.example"), 1)
}

func checkoutRequest(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestCreateCheckoutSession_RepricesFromCatalog(t *testing.T) {
	s := newTestServer(t, nil)
	body := `{"currency":"ngn","items":[
		{"id":"men-briefcase-001","name":"Cheap Briefcase","price":1,"quantity":1},
		{"id":"accessories-wallet-001","price":0.5,"quantity":2}
	]}`
	req := checkoutRequest("/api/checkout-sessions", body)
	req.Header.Set(middleware.IdempotencyKeyHeader, "checkout-1")

	w := s.do(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"id":"cs_test_1","url":"https://checkout.stripe.com/c/pay/cs_test_1"}`, w.Body.String())

	created := s.provider.Created()
	require.Len(t, created, 1)
	got := created[0]
	assert.Equal(t, "usd", got.Currency)
	assert.Equal(t, "NGN", got.DisplayCurrency)
	assert.Equal(t, "checkout-1", got.IdempotencyKey)
	assert.Equal(t, "https://roothaus.example/success.html?session_id={CHECKOUT_SESSION_ID}", got.SuccessURL)
	assert.Equal(t, "https://roothaus.example/cart.html", got.CancelURL)
	require.Len(t, got.Lines, 2)
	assert.Equal(t, "Executive Briefcase", got.Lines[0].Name)
	assert.Equal(t, int64(45000), got.Lines[0].UnitAmount)
	assert.Equal(t, "https://roothaus.example/images/products/men-briefcase-1.jpg", got.Lines[0].Image)
	assert.Equal(t, int64(12000), got.Lines[1].UnitAmount)
	assert.Equal(t, int64(2), got.Lines[1].Quantity)
}

func TestCreateCheckoutSession_LegacyPathAndUnknownCurrency(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(checkoutRequest("/create-checkout-session", `{"currency":"XYZ","items":[{"id":"pet-leash-001","quantity":1}]}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "USD", s.provider.Created()[0].DisplayCurrency)
}

func TestCreateCheckoutSession_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"not json", `items=1`, http.StatusBadRequest},
		{"empty cart", `{"items":[]}`, http.StatusBadRequest},
		{"zero quantity", `{"items":[{"id":"pet-leash-001","quantity":0}]}`, http.StatusBadRequest},
		{"unknown product", `{"items":[{"id":"kids-toy-001","quantity":1}]}`, http.StatusUnprocessableEntity},
		{"too many", `{"items":[{"id":"pet-leash-001","quantity":500}]}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, nil)
			w := s.do(checkoutRequest("/api/checkout-sessions", tt.body))
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.Empty(t, s.provider.Created())
		})
	}
}

func TestCreateCheckoutSession_ProviderFailure(t *testing.T) {
	s := newTestServer(t, nil)
	s.provider.CreateErr = errors.New("Invalid API Key provided: sk_test_***123")

	w := s.do(checkoutRequest("/api/checkout-sessions", `{"items":[{"id":"pet-leash-001","quantity":1}]}`))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.NotContains(t, w.Body.String(), "sk_test")
}

func TestCreateCheckoutSession_RateLimited(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) { cfg.RateLimit = config.RateLimitConfig{RPS: 0.001, Burst: 1} })
	body := `{"items":[{"id":"pet-leash-001","quantity":1}]}`

	assert.Equal(t, http.StatusOK, s.do(checkoutRequest("/api/checkout-sessions", body)).Code)
	assert.Equal(t, http.StatusTooManyRequests, s.do(checkoutRequest("/api/checkout-sessions", body)).Code)
}

func TestProducts(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(httptest.NewRequest(http.MethodGet, "/api/products", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Data []struct {
			ID              string `json:"id"`
			Price           string `json:"price"`
			DisplayPrice    string `json:"display_price"`
			DisplayCurrency string `json:"display_currency"`
		} `json:"data"`
		Meta struct {
			Count    int    `json:"count"`
			Currency string `json:"currency"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 11, list.Meta.Count)
	assert.Equal(t, "NGN", list.Meta.Currency)
	assert.Equal(t, "men-briefcase-001", list.Data[0].ID)
	assert.Equal(t, "450", list.Data[0].Price, "catalog price stays in USD")
	assert.Equal(t, "675000.00", list.Data[0].DisplayPrice)
	assert.Equal(t, "NGN", list.Data[0].DisplayCurrency)

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/products?category=pets", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 4, decodeBody(t, w)["meta"].(map[string]interface{})["count"])

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/products?category=kids", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/products?q=wallet", nil))
	assert.EqualValues(t, 2, decodeBody(t, w)["meta"].(map[string]interface{})["count"])
}

func TestGetProduct(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(httptest.NewRequest(http.MethodGet, "/api/products/pet-leash-001", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "pet-leash-001", body["id"])
	assert.Equal(t, "127500.00", body["display_price"])

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/products/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetCurrency(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(httptest.NewRequest(http.MethodGet, "/api/currency", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"currency":"NGN","rate":"1500","locale":"en-US"}`, w.Body.String())
}

func TestAdminNotifications(t *testing.T) {
	s := newTestServer(t, nil)
	payload := paymentstest.EventPayload("evt_1", payments.EventCheckoutSessionCompleted, sessionID)
	require.Equal(t, http.StatusOK, s.do(webhookRequest("/webhooks/stripe", payload, paymentstest.SignPayload(payload, webhookSecret, time.Now()))).Code)

	w := s.do(httptest.NewRequest(http.MethodGet, "/api/admin/notifications", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/notifications?limit=500", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	w = s.do(req)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Notifications []struct {
			SessionID string  `json:"session_id"`
			Kind      string  `json:"kind"`
			Status    string  `json:"status"`
			SentAt    *string `json:"sent_at"`
		} `json:"notifications"`
		Limit int `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 50, body.Limit)
	require.Len(t, body.Notifications, 2)
	for _, n := range body.Notifications {
		assert.Equal(t, sessionID, n.SessionID)
		assert.Equal(t, "sent", n.Status)
		assert.NotNil(t, n.SentAt)
	}
}

func TestRecoveryHidesPanicDetails(t *testing.T) {
	s := newTestServer(t, nil)
	s.router.GET("/boom", func(c *gin.Context) { panic("database password is hunter2") })

	w := s.do(httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "hunter2")
}
