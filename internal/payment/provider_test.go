package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSession_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req SessionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(2550), req.AmountCents)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(Session{
			ID:          "ps_123",
			RedirectURL: "https://pay.example.com/ps_123",
		})
	}))
	defer srv.Close()

	client := NewHostedClient(srv.URL, "test-key", time.Second)

	session, err := client.CreateSession(context.Background(), SessionRequest{
		CheckoutID:  "co_1",
		AmountCents: 2550,
		Currency:    "USD",
		SuccessURL:  "https://shop.example.com/success?session_id=co_1",
		CancelURL:   "https://shop.example.com/cancel?session_id=co_1",
	})
	require.NoError(t, err)
	assert.Equal(t, "ps_123", session.ID)
	assert.Equal(t, "https://pay.example.com/ps_123", session.RedirectURL)
}

func TestCreateSession_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "amount too small", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	client := NewHostedClient(srv.URL, "test-key", time.Second)

	_, err := client.CreateSession(context.Background(), SessionRequest{CheckoutID: "co_1"})
	assert.ErrorIs(t, err, ErrSessionRejected)
}

func TestCreateSession_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewHostedClient(srv.URL, "test-key", time.Second)

	_, err := client.CreateSession(context.Background(), SessionRequest{CheckoutID: "co_1"})
	assert.ErrorContains(t, err, "status 500")
}

func TestCreateSession_IncompleteResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(Session{ID: "ps_123"})
	}))
	defer srv.Close()

	client := NewHostedClient(srv.URL, "test-key", time.Second)

	_, err := client.CreateSession(context.Background(), SessionRequest{CheckoutID: "co_1"})
	assert.ErrorContains(t, err, "incomplete session")
}

func TestVerifySession(t *testing.T) {
	status := "paid"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/checkout/sessions/ps_123", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(map[string]string{"id": "ps_123", "status": status})
	}))
	defer srv.Close()

	client := NewHostedClient(srv.URL, "test-key", time.Second)

	paid, err := client.VerifySession(context.Background(), "ps_123")
	require.NoError(t, err)
	assert.True(t, paid)

	status = "expired"
	paid, err = client.VerifySession(context.Background(), "ps_123")
	require.NoError(t, err)
	assert.False(t, paid)
}

func TestVerifySession_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewHostedClient(srv.URL, "test-key", time.Second)

	_, err := client.VerifySession(context.Background(), "ps_missing")
	assert.ErrorContains(t, err, "status 404")
}

func TestCreateSession_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewHostedClient(srv.URL, "test-key", time.Second)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := client.CreateSession(ctx, SessionRequest{CheckoutID: "co_1"})
		assert.Error(t, err)
	}

	// breaker is open now; the request never reaches the server
	_, err := client.CreateSession(ctx, SessionRequest{CheckoutID: "co_1"})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestCreateSession_RejectionsDoNotOpenBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "amount too small", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	client := NewHostedClient(srv.URL, "test-key", time.Second)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := client.CreateSession(ctx, SessionRequest{CheckoutID: "co_1"})
		assert.ErrorIs(t, err, ErrSessionRejected)
	}

	// shopper-input rejections must still reach the provider, not trip the breaker
	_, err := client.CreateSession(ctx, SessionRequest{CheckoutID: "co_1"})
	assert.NotErrorIs(t, err, gobreaker.ErrOpenState)
	assert.ErrorIs(t, err, ErrSessionRejected)
}
