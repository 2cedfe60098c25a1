package domain

import "time"

// Withdrawal statuses.
const (
	WithdrawalStatusPending = "PENDING"
	WithdrawalStatusSettled = "SETTLED"
	WithdrawalStatusFailed  = "FAILED"
)

// Withdrawal records a tippee moving claimed funds off the platform.
// Settlement of the invoice itself happens outside this module.
type Withdrawal struct {
	ID         string    `gorm:"primaryKey" json:"id"`
	TipID      string    `gorm:"index;not null" json:"tip_id"`
	UserID     string    `gorm:"index;not null" json:"user_id"`
	AmountSats int64     `gorm:"not null" json:"amount_sats"`
	Invoice    string    `gorm:"not null" json:"invoice"`
	Status     string    `gorm:"default:'PENDING'" json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
