package httpapi

import (
	"net/http"
	"time"

	"github.com/sondregut/pvelite/internal/analytics"
	"github.com/sondregut/pvelite/internal/waitlist"
)

type AnalyticsHandler struct {
	service    *analytics.Service
	waitlist   waitlist.Repository
	adminToken string
}

func NewAnalyticsHandler(service *analytics.Service, wl waitlist.Repository, adminToken string) *AnalyticsHandler {
	return &AnalyticsHandler{service: service, waitlist: wl, adminToken: adminToken}
}

func (h *AnalyticsHandler) authorized(r *http.Request) bool {
	return h.adminToken != "" && bearerToken(r) == h.adminToken
}

// Revenue reports revenue since the given RFC 3339 timestamp, defaulting
// to the last 30 days. Guarded by a static admin token, not user sessions.
func (h *AnalyticsHandler) Revenue(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		respondError(w, http.StatusUnauthorized, "unauthorized", "admin token required")
		return
	}

	since := timeNow().Add(-30 * 24 * time.Hour)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_since", "since must be an RFC 3339 timestamp")
			return
		}
		since = parsed
	}

	summary, err := h.service.RevenueSince(r.Context(), since)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to build revenue report")
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

// WaitlistSize reports how many signups the vault waitlist holds.
func (h *AnalyticsHandler) WaitlistSize(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		respondError(w, http.StatusUnauthorized, "unauthorized", "admin token required")
		return
	}

	n, err := h.waitlist.Count(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to count waitlist entries")
		return
	}

	respondJSON(w, http.StatusOK, map[string]int64{"count": n})
}
