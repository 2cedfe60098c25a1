package domain

import (
	"time"
)

// Tip statuses. A tip starts UNCLAIMED, becomes CLAIMED when a tippee takes
// ownership, WITHDRAWN once the funds leave the platform, and RECLAIMED when
// the expiry sweeper returns an unclaimed tip to its tipper.
const (
	TipStatusUnclaimed = "UNCLAIMED"
	TipStatusClaimed   = "CLAIMED"
	TipStatusWithdrawn = "WITHDRAWN"
	TipStatusReclaimed = "RECLAIMED"
)

// Tip is a pending or claimed transfer of value from tipper to tippee.
// AmountSats is immutable once the record is created.
type Tip struct {
	ID           string     `gorm:"primaryKey" json:"id"`
	TipperID     string     `gorm:"index;not null" json:"tipper_id"`
	TippeeID     *string    `gorm:"index" json:"tippee_id"`
	AmountSats   int64      `gorm:"not null" json:"amount_sats"`
	FeeSats      int64      `gorm:"not null" json:"fee_sats"`
	Currency     string     `gorm:"size:3;not null" json:"currency"`
	Note         string     `json:"note"`
	TippeeName   string     `json:"tippee_name"`
	TippeeLocale string     `json:"tippee_locale"`
	Status       string     `gorm:"index;default:'UNCLAIMED'" json:"status"`
	ExpiresAt    time.Time  `gorm:"index" json:"expires_at"`
	ClaimedAt    *time.Time `json:"claimed_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// HasClaimed reports whether a tippee has taken ownership of the tip.
func (t *Tip) HasClaimed() bool {
	return t.Status == TipStatusClaimed || t.Status == TipStatusWithdrawn
}

// IsExpired reports whether the tip's claim window has passed.
func (t *Tip) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// PublicTipper is the subset of a tipper profile safe to show a claimant.
type PublicTipper struct {
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// PublicTip is the redacted projection of a Tip shown to an unauthenticated
// or non-owning viewer. It is derived server-side and never mutated by
// clients, only re-fetched.
type PublicTip struct {
	ID         string       `json:"id"`
	AmountSats int64        `json:"amount_sats"`
	TipperID   string       `json:"tipper_id"`
	TippeeID   *string      `json:"tippee_id"`
	Currency   string       `json:"currency"`
	Note       string       `json:"note,omitempty"`
	HasClaimed bool         `json:"has_claimed"`
	ExpiresAt  time.Time    `json:"expires_at"`
	Tipper     PublicTipper `json:"tipper"`
}

// Public builds the redacted projection of the tip.
func (t *Tip) Public(tipper PublicTipper) PublicTip {
	return PublicTip{
		ID:         t.ID,
		AmountSats: t.AmountSats,
		TipperID:   t.TipperID,
		TippeeID:   t.TippeeID,
		Currency:   t.Currency,
		Note:       t.Note,
		HasClaimed: t.HasClaimed(),
		ExpiresAt:  t.ExpiresAt,
		Tipper:     tipper,
	}
}
