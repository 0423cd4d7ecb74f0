package payments_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"

	"github.com/Mide008/Roothaus-1/internal/config"
	"github.com/Mide008/Roothaus-1/internal/payments"
	"github.com/Mide008/Roothaus-1/internal/payments/paymentstest"
	"github.com/Mide008/Roothaus-1/pkg/errors"
)

const testSecret = "whsec_test_secret"

func newTestClient(t *testing.T, handler http.HandlerFunc) *payments.StripeClient {
	t.Helper()
	cfg := config.StripeConfig{SecretKey: "sk_test_123", WebhookSecret: testSecret}
	if handler == nil {
		return payments.NewStripeClient(cfg, nil)
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		HTTPClient:        srv.Client(),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	return payments.NewStripeClientWithBackend(cfg, backend, nil)
}

func TestVerifyEvent_Valid(t *testing.T) {
	client := newTestClient(t, nil)
	payload := paymentstest.EventPayload("evt_1", payments.EventCheckoutSessionCompleted, "cs_test_a")

	event, err := client.VerifyEvent(payload, paymentstest.SignPayload(payload, testSecret, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, payments.EventCheckoutSessionCompleted, event.Type)
	assert.Equal(t, "cs_test_a", event.SessionID)
}

func TestVerifyEvent_Rejects(t *testing.T) {
	client := newTestClient(t, nil)
	payload := paymentstest.EventPayload("evt_1", payments.EventCheckoutSessionCompleted, "cs_test_a")

	tests := []struct {
		name    string
		payload []byte
		header  string
	}{
		{"missing header", payload, ""},
		{"wrong secret", payload, paymentstest.SignPayload(payload, "whsec_other", time.Now())},
		{"tampered body", append([]byte(nil), payload[:len(payload)-2]...), paymentstest.SignPayload(payload, testSecret, time.Now())},
		{"stale timestamp", payload, paymentstest.SignPayload(payload, testSecret, time.Now().Add(-time.Hour))},
		{"garbage header", payload, "t=abc,v1=zzz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.VerifyEvent(tt.payload, tt.header)
			var sigErr *errors.ErrSignature
			assert.ErrorAs(t, err, &sigErr)
		})
	}
}

func TestVerifyEvent_NoSecret(t *testing.T) {
	client := payments.NewStripeClient(config.StripeConfig{SecretKey: "sk_test_123"}, nil)
	payload := paymentstest.EventPayload("evt_1", "payment_intent.created", "pi_1")
	_, err := client.VerifyEvent(payload, paymentstest.SignPayload(payload, "", time.Now()))
	var sigErr *errors.ErrSignature
	assert.ErrorAs(t, err, &sigErr)
}

const sessionJSON = `{
  "id": "cs_test_a",
  "object": "checkout.session",
  "amount_subtotal": 69000,
  "amount_total": 69000,
  "currency": "usd",
  "payment_status": "paid",
  "created": 1710428940,
  "customer_details": {"email": "ada@example.com", "name": "Ada Obi", "phone": null,
    "address": {"line1": "12 Marina Road", "line2": null, "city": "Lagos", "state": "Lagos", "postal_code": "100001", "country": "NG"}},
  "collected_information": {"shipping_details": {"name": "Ada Obi",
    "address": {"line1": "12 Marina Road", "city": "Lagos", "state": "Lagos", "postal_code": "100001", "country": "NG"}}},
  "line_items": {"object": "list", "has_more": false, "data": [
    {"id": "li_1", "object": "item", "description": "Executive Briefcase", "quantity": 1, "amount_subtotal": 45000, "amount_total": 45000, "currency": "usd", "price": {"id": "price_1", "object": "price", "unit_amount": 45000}},
    {"id": "li_2", "object": "item", "description": "Classic Leather Wallet", "quantity": 2, "amount_subtotal": 24000, "amount_total": 24000, "currency": "usd", "price": {"id": "price_2", "object": "price", "unit_amount": 12000}}
  ]}
}`

func TestGetCheckoutSession(t *testing.T) {
	var gotPath, gotQuery string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sessionJSON))
	})

	sess, err := client.GetCheckoutSession(context.Background(), "cs_test_a")
	require.NoError(t, err)

	assert.Equal(t, "/v1/checkout/sessions/cs_test_a", gotPath)
	assert.Contains(t, gotQuery, "line_items")
	assert.Contains(t, gotQuery, "customer")

	assert.Equal(t, int64(69000), sess.AmountTotal)
	assert.Equal(t, "ada@example.com", sess.CustomerDetails.Email)
	require.NotNil(t, sess.Shipping())
	assert.Equal(t, "Lagos", sess.Shipping().Address.City)
	require.Len(t, sess.LineItems.Data, 2)
	assert.Equal(t, "Classic Leather Wallet", sess.LineItems.Data[1].Description)
	assert.Equal(t, int64(12000), *sess.LineItems.Data[1].Price.UnitAmount)
	assert.Equal(t, 2024, sess.CreatedAt().Year())
}

func TestGetCheckoutSession_ProviderError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"No such checkout.session: cs_missing"}}`))
	})

	_, err := client.GetCheckoutSession(context.Background(), "cs_missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cs_missing")

	_, err = client.GetCheckoutSession(context.Background(), " ")
	var validation *errors.ErrValidation
	assert.ErrorAs(t, err, &validation)
}

func TestCreateCheckoutSession(t *testing.T) {
	var form map[string][]string
	var idempotencyKey string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		idempotencyKey = r.Header.Get("Idempotency-Key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_test_new","object":"checkout.session","url":"https://checkout.stripe.com/c/pay/cs_test_new"}`))
	})

	sess, err := client.CreateCheckoutSession(context.Background(), payments.CreateSessionRequest{
		Lines: []payments.SessionLine{
			{Name: "Executive Briefcase", UnitAmount: 45000, Quantity: 1, Image: "images/briefcase.jpg"},
			{Name: "Classic Leather Wallet", UnitAmount: 12000, Quantity: 2},
		},
		Currency:        "USD",
		SuccessURL:      "https://roothaus.example/success.html",
		CancelURL:       "https://roothaus.example/cart.html",
		DisplayCurrency: "NGN",
		IdempotencyKey:  "idem-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_new", sess.ID)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_new", sess.URL)

	assert.Equal(t, []string{"payment"}, form["mode"])
	assert.Equal(t, []string{"usd"}, form["line_items[0][price_data][currency]"])
	assert.Equal(t, []string{"45000"}, form["line_items[0][price_data][unit_amount]"])
	assert.Equal(t, []string{"2"}, form["line_items[1][quantity]"])
	assert.Equal(t, []string{"NGN"}, form["metadata[display_currency]"])
	assert.Equal(t, []string{"true"}, form["phone_number_collection[enabled]"])
	assert.NotContains(t, form, "line_items[0][price_data][product_data][images][0]", "relative images are not sent")
	assert.Equal(t, "idem-1", idempotencyKey)
}

func TestCreateCheckoutSession_RequiresLines(t *testing.T) {
	client := newTestClient(t, nil)
	_, err := client.CreateCheckoutSession(context.Background(), payments.CreateSessionRequest{Currency: "usd"})
	var validation *errors.ErrValidation
	assert.ErrorAs(t, err, &validation)
}

func TestCreateCheckoutSession_IdempotencyConflict(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"idempotency_error","message":"Keys for idempotent requests can only be used with the same parameters they were first used with."}}`))
	})

	_, err := client.CreateCheckoutSession(context.Background(), payments.CreateSessionRequest{
		Lines:          []payments.SessionLine{{Name: "Slim Wallet", UnitAmount: 8000, Quantity: 1}},
		Currency:       "usd",
		IdempotencyKey: "idem-1",
	})
	var conflict *errors.ErrConflict
	assert.ErrorAs(t, err, &conflict)
}
