// Package payment talks to the hosted payment provider. We never process
// card data ourselves: checkout hands the user off to the provider's hosted
// page and control returns via the success/cancel callback URLs.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
)

var ErrSessionRejected = errors.New("payment provider rejected the session")

type SessionRequest struct {
	CheckoutID  string `json:"checkout_id"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
	SuccessURL  string `json:"success_url"`
	CancelURL   string `json:"cancel_url"`
}

// Session is the provider's hosted checkout session. RedirectURL is where
// the user's browser is sent to pay.
type Session struct {
	ID          string `json:"id"`
	RedirectURL string `json:"redirect_url"`
}

type Provider interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	// VerifySession reports whether the provider considers the session paid.
	VerifySession(ctx context.Context, sessionID string) (bool, error)
}

// HostedClient calls the provider's session API over HTTP. Calls run
// through a circuit breaker so a provider outage fails fast instead of
// tying up checkout requests.
type HostedClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*Session]
}

func NewHostedClient(baseURL, apiKey string, timeout time.Duration) *HostedClient {
	settings := gobreaker.Settings{
		Name:    "payment-provider",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// a rejected session is the shopper's problem, not an outage
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrSessionRejected)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("circuit breaker %s: %s -> %s", name, from, to)
		},
	}

	return &HostedClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    gobreaker.NewCircuitBreaker[*Session](settings),
	}
}

func (c *HostedClient) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	return c.breaker.Execute(func() (*Session, error) {
		return c.createSession(ctx, req)
	})
}

func (c *HostedClient) createSession(ctx context.Context, req SessionRequest) (*Session, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/checkout/sessions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build session request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("payment provider request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnprocessableEntity || resp.StatusCode == http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: %s", ErrSessionRejected, msg)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("payment provider returned status %d", resp.StatusCode)
	}

	var session Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("failed to decode session response: %w", err)
	}
	if session.ID == "" || session.RedirectURL == "" {
		return nil, errors.New("payment provider returned incomplete session")
	}

	return &session, nil
}

// VerifySession asks the provider for the session's settlement state. The
// callback query parameters are shopper-controlled, so completion relies on
// this answer, not on the redirect.
func (c *HostedClient) VerifySession(ctx context.Context, sessionID string) (bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/checkout/sessions/"+sessionID, nil)
	if err != nil {
		return false, fmt.Errorf("failed to build verify request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return false, fmt.Errorf("payment provider request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("payment provider returned status %d", resp.StatusCode)
	}

	var state struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return false, fmt.Errorf("failed to decode session state: %w", err)
	}

	return state.Status == "paid", nil
}
