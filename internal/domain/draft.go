package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Entry modes for the composition draft.
const (
	EntryFiat = "FIAT"
	EntrySats = "SATS"
)

// Expiry units accepted by a draft.
const (
	ExpiryUnitMinutes = "minutes"
	ExpiryUnitHours   = "hours"
	ExpiryUnitDays    = "days"
)

// Draft is the transient client-side state of a tip being composed.
//
// Committed is the canonical numeric value in the unit selected by Mode;
// PendingText is the raw text buffer backing it. PendingText is re-parsed on
// every edit and Committed only moves when the text parses, so a half-typed
// value never corrupts the amount.
type Draft struct {
	Committed    decimal.Decimal
	PendingText  string
	Mode         string
	Currency     string
	Note         string
	TippeeName   string
	TippeeLocale string
	ExpiresIn    int64
	ExpiryUnit   string
}

// NewDraft creates a draft with the given defaults, in fiat entry mode.
func NewDraft(currency, locale string) *Draft {
	return &Draft{
		Committed:    decimal.Zero,
		Mode:         EntryFiat,
		Currency:     currency,
		TippeeLocale: locale,
		ExpiresIn:    3,
		ExpiryUnit:   ExpiryUnitDays,
	}
}

// SetText records a text edit. Committed is updated only when the text
// parses as a number.
func (d *Draft) SetText(s string) {
	d.PendingText = s
	v, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return
	}
	d.Committed = v
}

// ToggleMode re-expresses the committed value in the other unit and rewrites
// the text buffer. This is the only operation that rewrites PendingText
// rather than the user typing into it. Fiat values are rounded to cents, so
// toggling twice from a fiat value returns it rounded to two decimals.
func (d *Draft) ToggleMode(rate decimal.Decimal) error {
	if !rate.IsPositive() {
		return ErrRateUnavailable
	}
	switch d.Mode {
	case EntryFiat:
		sats, err := ToSats(d.Committed, rate)
		if err != nil {
			return err
		}
		d.Committed = sats
		d.Mode = EntrySats
	default:
		d.Committed = ToFiat(d.Committed, rate).Round(2)
		d.Mode = EntryFiat
	}
	d.PendingText = d.Committed.String()
	return nil
}

// AmountSats returns the drafted amount in satoshis regardless of entry mode.
func (d *Draft) AmountSats(rate decimal.Decimal) (decimal.Decimal, error) {
	if d.Mode == EntrySats {
		return d.Committed, nil
	}
	return ToSats(d.Committed, rate)
}

// ExpiresAt resolves the relative expiry to an absolute timestamp.
func (d *Draft) ExpiresAt(now time.Time) time.Time {
	switch d.ExpiryUnit {
	case ExpiryUnitMinutes:
		return now.Add(time.Duration(d.ExpiresIn) * time.Minute)
	case ExpiryUnitHours:
		return now.Add(time.Duration(d.ExpiresIn) * time.Hour)
	default:
		return now.Add(time.Duration(d.ExpiresIn) * 24 * time.Hour)
	}
}
