package domain

import "time"

// Subscription gates access to the Vault training-video library.
type Subscription struct {
	UserID           string    `bson:"user_id"`
	Status           string    `bson:"status"` // active, trialing, canceled, past_due
	CurrentPeriodEnd time.Time `bson:"current_period_end"`
	CreatedAt        time.Time `bson:"created_at"`
}

// Entitled reports whether the subscription grants Vault access at ts.
func (s Subscription) Entitled(ts time.Time) bool {
	if s.Status != "active" && s.Status != "trialing" {
		return false
	}
	return s.CurrentPeriodEnd.After(ts)
}

// VaultVideo is the stored metadata for one training video. The playback
// URL is resolved from StoragePath at read time.
type VaultVideo struct {
	ID          string        `bson:"_id,omitempty" json:"id"`
	Title       string        `bson:"title" json:"title"`
	Category    string        `bson:"category" json:"category"`
	StoragePath string        `bson:"storage_path" json:"-"`
	Duration    time.Duration `bson:"duration" json:"duration"`
	PublishedAt time.Time     `bson:"published_at" json:"published_at"`
	PlaybackURL string        `bson:"-" json:"playback_url,omitempty"`
}
