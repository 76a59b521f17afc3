package domain

import "time"

type Product struct {
	ID          int64
	Name        string
	Description string
	PriceCents  int64
	ImageURL    string
	CreatedAt   time.Time
}

// PromoCode is a percentage discount applied at checkout.
type PromoCode struct {
	Code       string
	PercentOff int
	Active     bool
	ExpiresAt  time.Time
}
