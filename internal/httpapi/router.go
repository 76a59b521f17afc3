// Package httpapi is the HTTP surface of the store: cart, catalog,
// checkout, vault and waitlist endpoints behind a chi router.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sondregut/pvelite/internal/kvstore"
)

type RouterConfig struct {
	Cart      *CartHandler
	Catalog   *CatalogHandler
	Checkout  *CheckoutHandler
	Vault     *VaultHandler
	Analytics *AnalyticsHandler
	Sessions  kvstore.Store

	RequestTimeout time.Duration
}

func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(AuthMiddleware(cfg.Sessions))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cfg.Cart.GetCart)
			r.Delete("/", cfg.Cart.ClearCart)
			r.Post("/items", cfg.Cart.AddItem)
			r.Put("/items/{product_id}", cfg.Cart.UpdateQuantity)
			r.Delete("/items/{product_id}", cfg.Cart.RemoveItem)
			r.Put("/panel", cfg.Cart.SetPanel)
		})

		r.Route("/last-purchase", func(r chi.Router) {
			r.Get("/", cfg.Cart.GetLastPurchase)
			r.Delete("/", cfg.Cart.ClearLastPurchase)
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", cfg.Catalog.ListProducts)
			r.Get("/{product_id}", cfg.Catalog.GetProduct)
		})
		r.Post("/promo/validate", cfg.Catalog.ValidatePromo)

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", cfg.Checkout.Initiate)
			r.Get("/callback", cfg.Checkout.Callback)
		})

		r.Get("/vault/videos", cfg.Vault.ListVideos)
		r.Post("/waitlist", cfg.Vault.JoinWaitlist)

		r.Get("/admin/analytics/revenue", cfg.Analytics.Revenue)
		r.Get("/admin/waitlist/count", cfg.Analytics.WaitlistSize)
	})

	return r
}
