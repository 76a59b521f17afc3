package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sondregut/pvelite/internal/vault"
	"github.com/sondregut/pvelite/internal/waitlist"
)

type VaultHandler struct {
	vault    *vault.Service
	waitlist waitlist.Repository
}

func NewVaultHandler(vaultSvc *vault.Service, wl waitlist.Repository) *VaultHandler {
	return &VaultHandler{vault: vaultSvc, waitlist: wl}
}

func (h *VaultHandler) ListVideos(w http.ResponseWriter, r *http.Request) {
	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	videos, err := h.vault.ListVideos(r.Context(), userID, r.URL.Query().Get("category"))
	if err != nil {
		if errors.Is(err, vault.ErrNotEntitled) {
			respondError(w, http.StatusForbidden, "subscription_required", "an active vault subscription is required")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list videos")
		return
	}

	respondJSON(w, http.StatusOK, videos)
}

type JoinWaitlistRequestDTO struct {
	Email  string `json:"email"`
	Source string `json:"source,omitempty"`
}

func (h *VaultHandler) JoinWaitlist(w http.ResponseWriter, r *http.Request) {
	var req JoinWaitlistRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if err := h.waitlist.Join(r.Context(), req.Email, req.Source); err != nil {
		if errors.Is(err, waitlist.ErrInvalidEmail) {
			respondError(w, http.StatusBadRequest, "invalid_email", "a valid email address is required")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to join waitlist")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{"status": "joined"})
}
