package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/checkout/internal/errors"
	"github.com/allisson/checkout/internal/payment/domain"
	"github.com/allisson/checkout/internal/testutil"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc) *StripeGateway {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewStripeGateway(StripeGatewayConfig{
		APIKey:          "sk_test_123",
		APIURL:          server.URL,
		Timeout:         2 * time.Second,
		ShippingRateIDs: []string{"shr_standard"},
	}, testutil.DiscardLogger())
}

func sessionRequest() domain.CheckoutSessionRequest {
	return domain.CheckoutSessionRequest{
		LineItems: []domain.LineItem{
			{Name: "T-Shirt / M", UnitAmount: 1234, Currency: "EUR", Quantity: 2},
		},
		Metadata:          map[string]string{"order_id": "o-1", "cart_id": "c-1"},
		SuccessURL:        "https://shop.example/success",
		CancelURL:         "https://shop.example/cancel",
		IdempotencyKey:    "order:o-1",
		ClientReferenceID: "o-1",
	}
}

func TestStripeGateway_CreateCheckoutSession(t *testing.T) {
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		assert.Equal(t, "order:o-1", r.Header.Get("Idempotency-Key"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "payment", r.PostForm.Get("mode"))
		assert.Equal(t, "o-1", r.PostForm.Get("metadata[order_id]"))
		assert.Equal(t, "c-1", r.PostForm.Get("metadata[cart_id]"))
		assert.Equal(t, "2", r.PostForm.Get("line_items[0][quantity]"))
		assert.Equal(t, "1234", r.PostForm.Get("line_items[0][price_data][unit_amount]"))
		assert.Equal(t, "eur", r.PostForm.Get("line_items[0][price_data][currency]"))
		assert.Equal(t, "shr_standard", r.PostForm.Get("shipping_options[0][shipping_rate]"))
		assert.Equal(t, "payment_intent", r.PostForm.Get("expand[0]"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "cs_test",
			"object": "checkout.session",
			"url": "https://checkout.stripe.com/c/pay/cs_test",
			"payment_intent": {"id": "pi_test", "object": "payment_intent"}
		}`))
	})

	session, err := gateway.CreateCheckoutSession(context.Background(), sessionRequest())
	require.NoError(t, err)
	assert.Equal(t, "cs_test", session.SessionID)
	assert.Equal(t, "pi_test", session.PaymentIntentID)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test", session.URL)
}

func TestStripeGateway_CreateCheckoutSession_Errors(t *testing.T) {
	t.Run("provider outage is unavailable", func(t *testing.T) {
		gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error": {"type": "api_error", "message": "boom"}}`))
		})

		_, err := gateway.CreateCheckoutSession(context.Background(), sessionRequest())
		assert.ErrorIs(t, err, apperrors.ErrUnavailable)
	})

	t.Run("rejected request is invalid input", func(t *testing.T) {
		gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error": {"type": "invalid_request_error", "message": "bad currency"}}`))
		})

		_, err := gateway.CreateCheckoutSession(context.Background(), sessionRequest())
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		assert.NotErrorIs(t, err, apperrors.ErrUnavailable)
	})

	t.Run("empty session never reaches the provider", func(t *testing.T) {
		gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("unexpected request")
		})

		_, err := gateway.CreateCheckoutSession(context.Background(), domain.CheckoutSessionRequest{})
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})

	t.Run("slow provider hits the timeout", func(t *testing.T) {
		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-release
		}))
		t.Cleanup(server.Close)
		t.Cleanup(func() { close(release) })

		gateway := NewStripeGateway(StripeGatewayConfig{
			APIKey:  "sk_test_123",
			APIURL:  server.URL,
			Timeout: 50 * time.Millisecond,
		}, testutil.DiscardLogger())

		_, err := gateway.CreateCheckoutSession(context.Background(), sessionRequest())
		assert.ErrorIs(t, err, apperrors.ErrUnavailable)
	})
}
