package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/sondregut/pvelite/internal/catalog"
	"github.com/sondregut/pvelite/internal/domain"
	"github.com/sondregut/pvelite/internal/payment"
)

var ErrEmptyCart = errors.New("cart is empty, nothing to checkout")

// CartAccess is the slice of the cart manager checkout needs.
type CartAccess interface {
	Get(ctx context.Context, userID string) *domain.Cart
	StorePurchaseInfo(ctx context.Context, userID string)
}

// Catalog resolves authoritative prices and promo codes at checkout time.
type Catalog interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	ValidatePromo(ctx context.Context, code string, now time.Time) (*domain.PromoCode, error)
}

type Service struct {
	repo       RepoInterface
	carts      CartAccess
	catalog    Catalog
	payments   payment.Provider
	successURL string
	cancelURL  string
	currency   string
}

func NewService(repo RepoInterface, carts CartAccess, catalog Catalog, payments payment.Provider, successURL, cancelURL string) *Service {
	return &Service{
		repo:       repo,
		carts:      carts,
		catalog:    catalog,
		payments:   payments,
		successURL: successURL,
		cancelURL:  cancelURL,
		currency:   "USD",
	}
}

// InitiateCheckout snapshots the live cart, persists a checkout session and
// hands the user off to the hosted payment page. Replays of the same
// idempotency key return the existing session instead of charging twice.
func (s *Service) InitiateCheckout(ctx context.Context, request *domain.CheckoutRequest) (*domain.CheckoutResponse, error) {
	existingID, status, err := s.repo.GetSessionByIdempotencyKey(ctx, request.IdempotencyKey)
	if err != nil && !errors.Is(err, ErrIdempotencyKeyNotFound) {
		return nil, fmt.Errorf("failed to check idempotency: %w", err)
	}

	if existingID != nil {
		// This checkout already exists, return the cached result
		// (could be COMPLETED, FAILED, or still pending).
		log.Printf("duplicate checkout request idempotency_key = %v checkout_id = %v status = %v", request.IdempotencyKey, *existingID, *status)
		return &domain.CheckoutResponse{
			CheckoutID: *existingID,
			Status:     *status,
		}, nil
	}

	cart := s.carts.Get(ctx, request.UserID)
	if len(cart.Items) == 0 {
		return nil, ErrEmptyCart
	}

	snapshot, snapshotJSON, err := s.buildSnapshot(ctx, cart, request.PromoCode)
	if err != nil {
		return nil, err
	}

	// The purchase snapshot must exist before the handoff so the
	// post-checkout page can describe the order after the cart is cleared.
	s.carts.StorePurchaseInfo(ctx, request.UserID)

	id := uuid.New()
	session := &Session{
		ID:             id,
		UserID:         request.UserID,
		CartSnapshot:   snapshotJSON,
		IdempotencyKey: request.IdempotencyKey,
		Status:         domain.CheckoutStatusInitiated,
		TotalCents:     snapshot.TotalCents,
		Currency:       snapshot.Currency,
		PromoCode:      snapshot.PromoCode,
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	providerSession, err := s.payments.CreateSession(ctx, payment.SessionRequest{
		CheckoutID:  id.String(),
		AmountCents: snapshot.TotalCents,
		Currency:    snapshot.Currency,
		Description: fmt.Sprintf("pvelite order (%d items)", len(snapshot.Items)),
		SuccessURL:  fmt.Sprintf("%s?session_id=%s", s.successURL, id),
		CancelURL:   fmt.Sprintf("%s?session_id=%s&status=cancel", s.cancelURL, id),
	})
	if err != nil {
		if failErr := s.repo.UpdateSessionStatus(ctx, id, domain.CheckoutStatusInitiated, domain.CheckoutStatusFailed); failErr != nil {
			log.Printf("failed to mark session %v as failed: %v", id, failErr)
		}
		return nil, fmt.Errorf("failed to create payment session: %w", err)
	}

	if err := s.repo.SetPaymentPending(ctx, id, providerSession.ID); err != nil {
		return nil, fmt.Errorf("failed to mark session payment pending: %w", err)
	}

	return &domain.CheckoutResponse{
		CheckoutID:  id.String(),
		Status:      domain.CheckoutStatusPaymentPending,
		RedirectURL: providerSession.RedirectURL,
	}, nil
}

// buildSnapshot prices the cart against the catalog. Lines whose product is
// no longer in the catalog keep the unit price captured when they were
// added to the cart.
func (s *Service) buildSnapshot(ctx context.Context, cart *domain.Cart, promoCode string) (*domain.CheckoutSnapshot, []byte, error) {
	snapshot := &domain.CheckoutSnapshot{
		Items:      make([]domain.CheckoutSnapshotItem, 0, len(cart.Items)),
		Currency:   s.currency,
		CapturedAt: time.Now(),
	}

	var totalCents int64
	for _, item := range cart.Items {
		name := item.Name
		unitCents := item.UnitPriceCents

		product, err := s.catalog.GetProduct(ctx, item.ProductID)
		if err == nil {
			name = product.Name
			unitCents = product.PriceCents
		} else if !errors.Is(err, catalog.ErrProductNotFound) {
			return nil, nil, fmt.Errorf("failed to get product %d: %w", item.ProductID, err)
		}

		subtotal := unitCents * int64(item.Quantity)
		snapshot.Items = append(snapshot.Items, domain.CheckoutSnapshotItem{
			ProductID:      item.ProductID,
			ProductName:    name,
			Option:         item.Option,
			Quantity:       item.Quantity,
			UnitPriceCents: unitCents,
			SubtotalCents:  subtotal,
		})
		totalCents += subtotal
	}

	if promoCode != "" {
		promo, err := s.catalog.ValidatePromo(ctx, promoCode, time.Now())
		if err != nil {
			return nil, nil, fmt.Errorf("promo code %q: %w", promoCode, err)
		}
		totalCents = totalCents * int64(100-promo.PercentOff) / 100
		snapshot.PromoCode = promo.Code
	}

	snapshot.TotalCents = totalCents

	snapshotJSON, err := json.Marshal(snapshot)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal cart snapshot: %w", err)
	}
	return snapshot, snapshotJSON, nil
}

// HandleCallback processes the return from the hosted payment page. A
// repeated callback for an already-terminal session is a recognized no-op.
func (s *Service) HandleCallback(ctx context.Context, sessionID uuid.UUID, success bool) error {
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	if session.Status.IsTerminal() {
		return nil
	}

	if !success {
		if err := s.repo.UpdateSessionStatus(ctx, sessionID, session.Status, domain.CheckoutStatusFailed); err != nil {
			return fmt.Errorf("failed to mark session failed: %w", err)
		}
		return nil
	}

	// the redirect's query string is shopper-controlled; the provider's
	// answer decides whether the session actually settled
	paid, err := s.payments.VerifySession(ctx, session.ProviderSessionID)
	if err != nil {
		return fmt.Errorf("failed to verify payment session: %w", err)
	}
	if !paid {
		log.Printf("callback claimed success but session %v is unpaid at provider, failing it", sessionID)
		if err := s.repo.UpdateSessionStatus(ctx, sessionID, session.Status, domain.CheckoutStatusFailed); err != nil {
			return fmt.Errorf("failed to mark session failed: %w", err)
		}
		return nil
	}

	if err := s.repo.UpdateSessionStatus(ctx, sessionID, domain.CheckoutStatusPaymentPending, domain.CheckoutStatusPaymentCompleted); err != nil {
		return err
	}

	payload, err := completionPayload(session, time.Now())
	if err != nil {
		return err
	}

	completed := domain.CheckoutStatusCompleted
	if err := s.repo.CompleteSession(ctx, sessionID, payload, completed); err != nil {
		return fmt.Errorf("failed to complete checkout: %w", err)
	}
	return nil
}

// completionPayload builds the checkout-completed event body published to
// downstream consumers (order records, cart clearing).
func completionPayload(session *Session, completedAt time.Time) ([]byte, error) {
	var snapshot domain.CheckoutSnapshot
	if err := json.Unmarshal(session.CartSnapshot, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cart snapshot for session %v: %w", session.ID, err)
	}

	payload := map[string]interface{}{
		"checkout_id":  session.ID,
		"user_id":      session.UserID,
		"items":        snapshot.Items,
		"total_cents":  snapshot.TotalCents,
		"currency":     snapshot.Currency,
		"completed_at": completedAt,
	}
	return json.Marshal(payload)
}
