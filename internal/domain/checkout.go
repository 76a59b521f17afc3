package domain

import "time"

type CheckoutStatus string

const (
	CheckoutStatusInitiated        CheckoutStatus = "INITIATED"
	CheckoutStatusPaymentPending   CheckoutStatus = "PAYMENT_PENDING"
	CheckoutStatusPaymentCompleted CheckoutStatus = "PAYMENT_COMPLETED"
	CheckoutStatusCompleted        CheckoutStatus = "COMPLETED"
	CheckoutStatusFailed           CheckoutStatus = "FAILED"
)

func (s CheckoutStatus) IsTerminal() bool {
	return s == CheckoutStatusCompleted || s == CheckoutStatusFailed
}

// String representation (for logging)
func (s CheckoutStatus) String() string {
	return string(s)
}

// CheckoutSnapshotItem captures one cart line with the catalog price at
// checkout time.
type CheckoutSnapshotItem struct {
	ProductID      int64  `json:"product_id"`
	ProductName    string `json:"product_name"`
	Option         string `json:"option,omitempty"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	SubtotalCents  int64  `json:"subtotal_cents"`
}

// CheckoutSnapshot is the full cart state captured when checkout begins.
type CheckoutSnapshot struct {
	Items      []CheckoutSnapshotItem `json:"items"`
	TotalCents int64                  `json:"total_cents"`
	Currency   string                 `json:"currency"`
	PromoCode  string                 `json:"promo_code,omitempty"`
	CapturedAt time.Time              `json:"captured_at"`
}

type CheckoutRequest struct {
	UserID         string
	IdempotencyKey string
	PromoCode      string
}

type CheckoutResponse struct {
	CheckoutID  string         `json:"checkout_id"`
	Status      CheckoutStatus `json:"status"`
	RedirectURL string         `json:"redirect_url,omitempty"`
}
