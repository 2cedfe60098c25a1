package client

import (
	"context"
	"log/slog"

	"lightsats/internal/domain"
)

// Render states for the claim page, computed as a single tagged value from
// the projection, the session, and the claim progress. Keeping the matrix in
// one place keeps the state space exhaustive and testable.
const (
	RenderLoading         = "LOADING"
	RenderNeedsAuth       = "NEEDS_AUTH"
	RenderOwnTip          = "OWN_TIP"
	RenderClaiming        = "CLAIMING"
	RenderClaimedByViewer = "CLAIMED_BY_VIEWER"
	RenderClaimedByOther  = "CLAIMED_BY_OTHER"
	RenderClaimFailed     = "CLAIM_FAILED"
)

// Claim progress states; same shape as the composer's submission enum.
const (
	ClaimIdle     = "IDLE"
	ClaimInFlight = "IN_FLIGHT"
	ClaimDone     = "DONE"
	ClaimFailed   = "FAILED"
)

// Session is the authenticated viewer identity, or nil when signed out.
type Session struct {
	UserID string
	Token  string
}

// ClaimController drives the claim flow for one tip. It reacts to projection
// refreshes and session changes, and fires the claim request exactly once
// when the viewer first becomes eligible. A failed claim parks the
// controller until Reset; there is no automatic retry.
type ClaimController struct {
	api     *API
	tipID   string
	public  *domain.PublicTip
	session *Session
	state   string
}

// NewClaimController creates a controller for the given tip.
func NewClaimController(api *API, tipID string) *ClaimController {
	return &ClaimController{
		api:   api,
		tipID: tipID,
		state: ClaimIdle,
	}
}

// Refresh fetches the public projection and re-evaluates eligibility.
func (c *ClaimController) Refresh(ctx context.Context) error {
	public, err := c.api.FetchPublicTip(ctx, c.tipID)
	if err != nil {
		return err
	}
	c.public = public
	c.evaluate(ctx)
	return nil
}

// SetSession records a sign-in or sign-out and re-evaluates eligibility.
func (c *ClaimController) SetSession(ctx context.Context, session *Session) {
	c.session = session
	if session != nil {
		c.api.SetToken(session.Token)
	} else {
		c.api.SetToken("")
	}
	c.evaluate(ctx)
}

// Eligible reports whether the viewer may claim: the projection has loaded,
// nobody has claimed yet, a session exists, and the viewer is not the
// creator.
func (c *ClaimController) Eligible() bool {
	return c.public != nil &&
		!c.public.HasClaimed &&
		c.session != nil &&
		c.session.UserID != c.public.TipperID
}

// evaluate fires the claim once eligibility first holds. The state enum is
// the idempotency latch: anything past IDLE never fires again, including
// FAILED, which requires an explicit Reset (the manual-refresh path).
func (c *ClaimController) evaluate(ctx context.Context) {
	if !c.Eligible() || c.state != ClaimIdle {
		return
	}

	c.state = ClaimInFlight
	public, err := c.api.ClaimTip(ctx, c.tipID)
	if err != nil {
		c.state = ClaimFailed
		slog.Warn("Claim failed", slog.String("tip_id", c.tipID), slog.Any("error", err))
		return
	}

	c.state = ClaimDone
	c.public = public
}

// Reset returns a failed controller to idle so a manual refresh can retry.
func (c *ClaimController) Reset() {
	if c.state == ClaimFailed {
		c.state = ClaimIdle
	}
}

// PublicTip returns the latest fetched projection.
func (c *ClaimController) PublicTip() *domain.PublicTip {
	return c.public
}

// ClaimState returns the claim progress state.
func (c *ClaimController) ClaimState() string {
	return c.state
}

// RenderState computes the page state for the current data. It recomputes
// entirely from the projection and session; nothing here persists.
func (c *ClaimController) RenderState() string {
	if c.public == nil {
		return RenderLoading
	}
	if c.public.HasClaimed {
		if c.session != nil && c.public.TippeeID != nil && *c.public.TippeeID == c.session.UserID {
			return RenderClaimedByViewer
		}
		return RenderClaimedByOther
	}
	if c.session == nil {
		return RenderNeedsAuth
	}
	if c.session.UserID == c.public.TipperID {
		return RenderOwnTip
	}
	if c.state == ClaimFailed {
		return RenderClaimFailed
	}
	return RenderClaiming
}
