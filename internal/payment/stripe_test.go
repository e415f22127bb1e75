package payment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStripeTestServer(t *testing.T, handler http.HandlerFunc) (*StripeGateway, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return NewStripeGateway("sk_test_123", StripeOptions{APIURL: srv.URL, HTTPClient: srv.Client()}), &hits
}

func TestStripeGateway_CreateIntent(t *testing.T) {
	g, hits := newStripeTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/payment_intents", r.URL.Path)
		assert.Equal(t, "order-key-1", r.Header.Get("Idempotency-Key"))
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "2500", r.PostForm.Get("amount"))
		assert.Equal(t, "usd", r.PostForm.Get("currency"))
		_, _ = w.Write([]byte(`{"id":"pi_123","object":"payment_intent","amount":2500,"currency":"usd","status":"requires_payment_method","client_secret":"pi_123_secret_abc"}`))
	})

	h, err := g.CreateIntent(context.Background(), decimal.RequireFromString("25.00"), "usd", "order-key-1")
	require.NoError(t, err)
	assert.Equal(t, "pi_123", h.ID)
	assert.Equal(t, "pi_123_secret_abc", h.ClientSecret)
	assert.EqualValues(t, 2500, h.Amount)
	assert.EqualValues(t, 1, atomic.LoadInt32(hits))
}

func TestStripeGateway_ConfirmMapsStatus(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		status Status
		reason string
	}{
		{"succeeded", `{"id":"pi_1","object":"payment_intent","amount":500,"status":"succeeded"}`, StatusConfirmed, ""},
		{"needs method", `{"id":"pi_1","object":"payment_intent","amount":500,"status":"requires_payment_method","last_payment_error":{"message":"Your card was declined.","type":"card_error"}}`, StatusDeclined, "Your card was declined."},
		{"processing", `{"id":"pi_1","object":"payment_intent","amount":500,"status":"processing"}`, StatusDeclined, "payment not completed: processing"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g, _ := newStripeTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "/v1/payment_intents/pi_1", r.URL.Path)
				_, _ = w.Write([]byte(tc.body))
			})

			c, err := g.Confirm(context.Background(), IntentHandle{ID: "pi_1"})
			require.NoError(t, err)
			assert.Equal(t, tc.status, c.Status)
			assert.Equal(t, tc.reason, c.Reason)
			assert.EqualValues(t, 500, c.Amount)
		})
	}
}

func TestStripeGateway_CardErrorIsDecline(t *testing.T) {
	g, _ := newStripeTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":{"type":"card_error","code":"card_declined","message":"Your card was declined."}}`))
	})

	_, err := g.CreateIntent(context.Background(), decimal.NewFromInt(5), "usd", "k")
	require.Error(t, err)
	assert.True(t, IsDecline(err))
	assert.NotErrorIs(t, err, ErrGateway)
}

func TestStripeGateway_ServerErrorNotRetried(t *testing.T) {
	g, hits := newStripeTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"type":"api_error","message":"boom"}}`))
	})

	_, err := g.CreateIntent(context.Background(), decimal.NewFromInt(5), "usd", "k")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGateway)
	assert.EqualValues(t, 1, atomic.LoadInt32(hits))

	_, err = g.Confirm(context.Background(), IntentHandle{ID: "pi_1"})
	assert.ErrorIs(t, err, ErrGateway)
	assert.EqualValues(t, 2, atomic.LoadInt32(hits))
}

func TestStripeGateway_ClientConfirmationOnly(t *testing.T) {
	browser := NewStripeGateway("sk_test_123", StripeOptions{})
	assert.True(t, browser.ClientConfirmationOnly())
	assert.True(t, NeedsClientConfirmation(browser))
	assert.True(t, NeedsClientConfirmation(Instrument(browser, nil)))

	server := NewStripeGateway("sk_test_123", StripeOptions{PaymentMethod: "pm_card_visa"})
	assert.False(t, NeedsClientConfirmation(Instrument(server, nil)))
	assert.False(t, NeedsClientConfirmation(NewSimulatedGateway()))
}
