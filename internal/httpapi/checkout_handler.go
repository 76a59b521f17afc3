package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"

	"github.com/sondregut/pvelite/internal/checkout"
	"github.com/sondregut/pvelite/internal/domain"
)

type CheckoutHandler struct {
	service  *checkout.Service
	storeURL string
}

// NewCheckoutHandler builds the checkout endpoints. storeURL is where
// the provider callback redirects the shopper after showing the result.
func NewCheckoutHandler(service *checkout.Service, storeURL string) *CheckoutHandler {
	return &CheckoutHandler{service: service, storeURL: storeURL}
}

type InitiateCheckoutRequestDTO struct {
	PromoCode string `json:"promo_code,omitempty"`
}

func (h *CheckoutHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	idempotencyKey := r.Header.Get("Idempotency-Key")
	if idempotencyKey == "" {
		respondError(w, http.StatusBadRequest, "missing_idempotency_key", "Idempotency-Key header is required")
		return
	}

	var req InitiateCheckoutRequestDTO
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
			return
		}
	}

	resp, err := h.service.InitiateCheckout(r.Context(), &domain.CheckoutRequest{
		UserID:         userID,
		IdempotencyKey: idempotencyKey,
		PromoCode:      req.PromoCode,
	})
	if err != nil {
		if errors.Is(err, checkout.ErrEmptyCart) {
			respondError(w, http.StatusUnprocessableEntity, "empty_cart", "cart is empty")
			return
		}
		log.Printf("checkout failed for request %s: %v", getRequestID(r.Context()), err)
		respondError(w, http.StatusBadGateway, "checkout_failed", "could not start checkout")
		return
	}

	respondJSON(w, http.StatusCreated, resp)
}

// Callback is where the payment provider sends the shopper back. It
// finalizes the session and redirects to the storefront result page.
func (h *CheckoutHandler) Callback(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(r.URL.Query().Get("session_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "session_id must be a UUID")
		return
	}

	success := r.URL.Query().Get("status") != "cancel"

	if err := h.service.HandleCallback(r.Context(), sessionID, success); err != nil {
		if errors.Is(err, checkout.ErrSessionNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "unknown checkout session")
			return
		}
		log.Printf("checkout callback failed for session %s: %v", sessionID, err)
		respondError(w, http.StatusInternalServerError, "internal_error", "could not finalize checkout")
		return
	}

	target := h.storeURL + "/checkout/success"
	if !success {
		target = h.storeURL + "/checkout/canceled"
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
