package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sondregut/pvelite/internal/cart"
	"github.com/sondregut/pvelite/internal/domain"
	"github.com/sondregut/pvelite/internal/money"
)

type CartHandler struct {
	carts *cart.Manager
}

func NewCartHandler(carts *cart.Manager) *CartHandler {
	return &CartHandler{carts: carts}
}

type AddItemRequestDTO struct {
	ProductID int64  `json:"id"`
	Name      string `json:"name"`
	Price     string `json:"price"`
	ImageURL  string `json:"image"`
	Quantity  int    `json:"quantity"`
	Option    string `json:"option,omitempty"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int    `json:"quantity"`
	Option   string `json:"option,omitempty"`
}

type CartResponseDTO struct {
	UserID     string            `json:"user_id"`
	Items      []domain.LineItem `json:"items"`
	ItemCount  int               `json:"item_count"`
	TotalCents int64             `json:"total_cents"`
	Total      string            `json:"total"`
	PanelOpen  bool              `json:"panel_open"`
}

func (h *CartHandler) cartResponse(r *http.Request, userID string) CartResponseDTO {
	c := h.carts.Get(r.Context(), userID)
	return CartResponseDTO{
		UserID:     userID,
		Items:      c.Items,
		ItemCount:  c.ItemCount(),
		TotalCents: c.TotalCents(),
		Total:      money.FormatCents(c.TotalCents()),
		PanelOpen:  h.carts.PanelOpen(userID),
	}
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	respondJSON(w, http.StatusOK, h.cartResponse(r, userID))
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "id must be positive")
		return
	}
	if req.Quantity <= 0 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	h.carts.AddToCart(r.Context(), userID, domain.LineItem{
		ProductID: req.ProductID,
		Name:      req.Name,
		Price:     req.Price,
		ImageURL:  req.ImageURL,
		Quantity:  req.Quantity,
		Option:    req.Option,
	})

	respondJSON(w, http.StatusCreated, h.cartResponse(r, userID))
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	productID, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil || productID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	// quantity <= 0 removes the item, no separate validation here
	h.carts.UpdateQuantity(r.Context(), userID, productID, req.Quantity, req.Option)

	respondJSON(w, http.StatusOK, h.cartResponse(r, userID))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	productID, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil || productID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return
	}

	h.carts.RemoveFromCart(r.Context(), userID, productID, r.URL.Query().Get("option"))

	respondJSON(w, http.StatusOK, h.cartResponse(r, userID))
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	// notify defaults to true; internal callers clear silently
	notify := r.URL.Query().Get("notify") != "false"
	h.carts.ClearCart(r.Context(), userID, notify)

	respondJSON(w, http.StatusOK, h.cartResponse(r, userID))
}

func (h *CartHandler) SetPanel(w http.ResponseWriter, r *http.Request) {
	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req struct {
		Open bool `json:"open"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	h.carts.SetPanelOpen(userID, req.Open)
	respondJSON(w, http.StatusOK, map[string]bool{"panel_open": h.carts.PanelOpen(userID)})
}

func (h *CartHandler) GetLastPurchase(w http.ResponseWriter, r *http.Request) {
	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	snapshot := h.carts.LastPurchaseInfo(r.Context(), userID)
	if snapshot == nil {
		respondError(w, http.StatusNotFound, "not_found", "no purchase on record")
		return
	}

	respondJSON(w, http.StatusOK, snapshot)
}

func (h *CartHandler) ClearLastPurchase(w http.ResponseWriter, r *http.Request) {
	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	h.carts.ClearPurchaseInfo(r.Context(), userID)
	w.WriteHeader(http.StatusNoContent)
}
