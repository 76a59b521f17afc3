package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sondregut/pvelite/internal/catalog"
	"github.com/sondregut/pvelite/internal/domain"
	"github.com/sondregut/pvelite/internal/money"
)

type CatalogHandler struct {
	repo catalog.RepoInterface
}

func NewCatalogHandler(repo catalog.RepoInterface) *CatalogHandler {
	return &CatalogHandler{repo: repo}
}

type ProductDTO struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	PriceCents  int64  `json:"price_cents"`
	Price       string `json:"price"`
	ImageURL    string `json:"image"`
}

func toProductDTO(p *domain.Product) ProductDTO {
	return ProductDTO{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		PriceCents:  p.PriceCents,
		Price:       money.FormatCents(p.PriceCents),
		ImageURL:    p.ImageURL,
	}
}

func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.repo.ListProducts(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list products")
		return
	}

	out := make([]ProductDTO, 0, len(products))
	for _, p := range products {
		out = append(out, toProductDTO(p))
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return
	}

	p, err := h.repo.GetProduct(r.Context(), id)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "product not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to get product")
		return
	}

	respondJSON(w, http.StatusOK, toProductDTO(p))
}

type ValidatePromoRequestDTO struct {
	Code string `json:"code"`
}

type ValidatePromoResponseDTO struct {
	Code       string `json:"code"`
	PercentOff int    `json:"percent_off"`
	Valid      bool   `json:"valid"`
}

func (h *CatalogHandler) ValidatePromo(w http.ResponseWriter, r *http.Request) {
	var req ValidatePromoRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "code is required")
		return
	}

	promo, err := h.repo.ValidatePromo(r.Context(), req.Code, timeNow())
	if err != nil {
		if errors.Is(err, catalog.ErrPromoInvalid) {
			respondJSON(w, http.StatusOK, ValidatePromoResponseDTO{Code: req.Code, Valid: false})
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to validate promo code")
		return
	}

	respondJSON(w, http.StatusOK, ValidatePromoResponseDTO{
		Code:       promo.Code,
		PercentOff: promo.PercentOff,
		Valid:      true,
	})
}
