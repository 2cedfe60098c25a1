package client

import (
	"context"
	"fmt"
	"time"

	"lightsats/internal/domain"
	"lightsats/internal/service"

	"github.com/shopspring/decimal"
)

// Submission states. The enum replaces a boolean in-flight latch so that
// illegal combinations (done but still in flight) cannot be represented.
const (
	SubmitIdle     = "IDLE"
	SubmitInFlight = "IN_FLIGHT"
	SubmitDone     = "DONE"
	SubmitFailed   = "FAILED"
)

// Limits are the configured bounds a drafted tip must satisfy.
type Limits struct {
	MinTipSats int64
	MaxTipSats int64
	FeePercent decimal.Decimal
	MinFeeSats int64
}

// Composer drives the gift composition flow: it owns the draft, previews the
// fee, validates the amount against the configured bounds, and submits the
// creation request exactly once at a time.
type Composer struct {
	api    *API
	Draft  *domain.Draft
	limits Limits

	rates      func(currency string) (decimal.Decimal, bool)
	state      string
	createdTip *domain.Tip
}

// NewComposer creates a composer over the API client. rates reports the
// current rate for a currency and whether the table has loaded it.
func NewComposer(api *API, draft *domain.Draft, limits Limits, rates func(string) (decimal.Decimal, bool)) *Composer {
	return &Composer{
		api:    api,
		Draft:  draft,
		limits: limits,
		rates:  rates,
		state:  SubmitIdle,
	}
}

// State returns the current submission state.
func (c *Composer) State() string {
	return c.state
}

// CreatedTip returns the tip created by a successful submission.
func (c *Composer) CreatedTip() *domain.Tip {
	return c.createdTip
}

// FeePreview computes the display fee for the current draft. The result is
// advisory; the server recomputes the authoritative fee on creation.
func (c *Composer) FeePreview() (int64, error) {
	rate, ok := c.rates(c.Draft.Currency)
	if !ok {
		return 0, domain.ErrRateUnavailable
	}
	sats, err := c.Draft.AmountSats(rate)
	if err != nil {
		return 0, err
	}
	return domain.Fee(sats.Round(0).IntPart(), c.limits.FeePercent, c.limits.MinFeeSats), nil
}

// ToggleEntryMode switches the draft between fiat and sats entry.
func (c *Composer) ToggleEntryMode() error {
	rate, ok := c.rates(c.Draft.Currency)
	if !ok {
		return domain.ErrRateUnavailable
	}
	return c.Draft.ToggleMode(rate)
}

// Submit validates the draft and posts the creation request. Preconditions
// are checked in order and each failure is a distinct validation error; no
// network call is made unless all of them pass. On any outcome the in-flight
// state is released, so a failed submission can be resubmitted manually.
func (c *Composer) Submit(ctx context.Context) (*domain.Tip, error) {
	rate, ok := c.rates(c.Draft.Currency)
	if !ok {
		return nil, domain.NewValidationError("", "rates not loaded")
	}
	if !c.Submittable() {
		return nil, domain.NewValidationError("", "submission already in flight or completed")
	}
	sats, err := c.Draft.AmountSats(rate)
	if err != nil {
		return nil, domain.NewValidationError("amount", "amount could not be computed")
	}
	if sats.LessThan(decimal.NewFromInt(c.limits.MinTipSats)) {
		return nil, domain.NewValidationError("amount",
			fmt.Sprintf("amount too small, minimum is %d sats", c.limits.MinTipSats))
	}
	if sats.GreaterThan(decimal.NewFromInt(c.limits.MaxTipSats)) {
		return nil, domain.NewValidationError("amount",
			fmt.Sprintf("amount too large, maximum is %d sats", c.limits.MaxTipSats))
	}
	if !sats.IsInteger() {
		return nil, domain.NewValidationError("amount", "amount must be a whole number of sats")
	}

	c.state = SubmitInFlight

	tip, err := c.api.CreateTip(ctx, c.buildRequest(sats.IntPart(), time.Now()))
	if err != nil {
		c.state = SubmitFailed
		return nil, err
	}

	c.state = SubmitDone
	c.createdTip = tip
	return tip, nil
}

// buildRequest packages the draft into the creation payload, resolving the
// relative expiry to an absolute timestamp.
func (c *Composer) buildRequest(amountSats int64, now time.Time) service.CreateTipRequest {
	return service.CreateTipRequest{
		AmountSats:   amountSats,
		Currency:     c.Draft.Currency,
		Note:         c.Draft.Note,
		TippeeName:   c.Draft.TippeeName,
		TippeeLocale: c.Draft.TippeeLocale,
		ExpiresAt:    c.Draft.ExpiresAt(now),
	}
}

// Submittable reports whether a submission may be started. DONE is excluded:
// the flow navigates away after success and a fresh composer backs any new
// draft.
func (c *Composer) Submittable() bool {
	return c.state == SubmitIdle || c.state == SubmitFailed
}
