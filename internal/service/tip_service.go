package service

import (
	"fmt"
	"log/slog"
	"time"

	"lightsats/internal/domain"
	"lightsats/internal/infra"
	"lightsats/internal/infra/storage"

	"github.com/google/uuid"
)

// Notifier pushes tip lifecycle events to interested viewers. The websocket
// hub implements this; a nil notifier is valid and drops events.
type Notifier interface {
	TipClaimed(tip *domain.Tip)
	TipWithdrawn(tip *domain.Tip)
}

// Settler pays a Lightning invoice for a withdrawal. Settlement is handled
// outside this module; the default implementation only records intent.
type Settler interface {
	PayInvoice(invoice string, amountSats int64) error
}

// noopSettler leaves withdrawals pending for an external payer to settle.
type noopSettler struct{}

func (noopSettler) PayInvoice(string, int64) error { return nil }

// CreateTipRequest carries a validated-to-be creation submission.
type CreateTipRequest struct {
	AmountSats   int64     `json:"amount"`
	Currency     string    `json:"currency"`
	Note         string    `json:"note,omitempty"`
	TippeeName   string    `json:"tippeeName,omitempty"`
	TippeeLocale string    `json:"tippeeLocale"`
	ExpiresAt    time.Time `json:"expiry"`
}

// TipService implements the tip lifecycle: create, claim, withdraw, reclaim.
type TipService struct {
	store   *storage.Storage
	rates   *RateService
	cfg     *infra.Config
	notify  Notifier
	settler Settler
}

// NewTipService creates a TipService over the given storage and rate table.
func NewTipService(store *storage.Storage, rates *RateService, cfg *infra.Config) *TipService {
	return &TipService{
		store:   store,
		rates:   rates,
		cfg:     cfg,
		settler: noopSettler{},
	}
}

// SetNotifier attaches a lifecycle event sink.
func (s *TipService) SetNotifier(n Notifier) {
	s.notify = n
}

// SetSettler replaces the withdrawal settler.
func (s *TipService) SetSettler(settler Settler) {
	s.settler = settler
}

// Create validates a submission and persists a new tip. The fee computed
// here is authoritative; whatever the client previewed is display-only.
func (s *TipService) Create(tipperID string, req CreateTipRequest) (*domain.Tip, error) {
	if req.AmountSats < s.cfg.Tips.MinTipSats {
		return nil, domain.NewValidationError("amount",
			fmt.Sprintf("amount too small, minimum is %d sats", s.cfg.Tips.MinTipSats))
	}
	if req.AmountSats > s.cfg.Tips.MaxTipSats {
		return nil, domain.NewValidationError("amount",
			fmt.Sprintf("amount too large, maximum is %d sats", s.cfg.Tips.MaxTipSats))
	}
	if req.Currency == "" {
		return nil, domain.NewValidationError("currency", "currency is required")
	}
	if s.rates.Loaded() {
		if _, ok := s.rates.Rate(req.Currency); !ok {
			return nil, domain.NewValidationError("currency",
				fmt.Sprintf("unsupported currency %q", req.Currency))
		}
	}
	if len(req.Note) > 280 {
		return nil, domain.NewValidationError("note", "note too long, maximum is 280 characters")
	}
	if req.TippeeLocale != "" && !s.cfg.SupportsLocale(req.TippeeLocale) {
		return nil, domain.NewValidationError("tippeeLocale",
			fmt.Sprintf("unsupported locale %q", req.TippeeLocale))
	}
	now := time.Now()
	if !req.ExpiresAt.After(now) {
		return nil, domain.NewValidationError("expiry", "expiry must be in the future")
	}

	locale := req.TippeeLocale
	if locale == "" {
		locale = s.cfg.Tips.DefaultLocale
	}

	tip := &domain.Tip{
		ID:           uuid.NewString(),
		TipperID:     tipperID,
		AmountSats:   req.AmountSats,
		FeeSats:      domain.Fee(req.AmountSats, s.cfg.Tips.FeePercent, s.cfg.Tips.MinFeeSats),
		Currency:     req.Currency,
		Note:         req.Note,
		TippeeName:   req.TippeeName,
		TippeeLocale: locale,
		Status:       domain.TipStatusUnclaimed,
		ExpiresAt:    req.ExpiresAt,
	}

	if err := s.store.CreateTip(tip); err != nil {
		return nil, fmt.Errorf("create tip: %w", err)
	}

	infra.GlobalMetrics.RecordTipCreated()
	slog.Info("Tip created",
		slog.String("tip_id", tip.ID),
		slog.Int64("amount_sats", tip.AmountSats),
		slog.Int64("fee_sats", tip.FeeSats),
	)

	return tip, nil
}

// Claim assigns the tip to the given user. The storage-level conditional
// update guarantees that of two racing claims exactly one succeeds.
func (s *TipService) Claim(tipID, userID string) (*domain.Tip, error) {
	tip, err := s.store.GetTip(tipID)
	if err != nil {
		return nil, fmt.Errorf("load tip: %w", err)
	}
	if tip == nil {
		return nil, domain.ErrTipNotFound
	}
	if tip.TipperID == userID {
		return nil, domain.ErrOwnTip
	}
	if tip.HasClaimed() {
		return nil, domain.ErrAlreadyClaimed
	}
	if tip.IsExpired(time.Now()) {
		return nil, domain.ErrTipExpired
	}

	if err := s.store.ClaimTip(tipID, userID, time.Now()); err != nil {
		return nil, err
	}

	infra.GlobalMetrics.RecordTipClaimed()
	slog.Info("Tip claimed", slog.String("tip_id", tipID), slog.String("tippee_id", userID))

	claimed, err := s.store.GetTip(tipID)
	if err != nil {
		return nil, fmt.Errorf("reload tip: %w", err)
	}
	if s.notify != nil {
		s.notify.TipClaimed(claimed)
	}
	return claimed, nil
}

// Withdraw records a withdrawal for a claimed tip and hands the invoice to
// the settler. The withdrawal stays PENDING until settled externally.
func (s *TipService) Withdraw(tipID, userID, invoice string) (*domain.Withdrawal, error) {
	if invoice == "" {
		return nil, domain.NewValidationError("invoice", "invoice is required")
	}

	tip, err := s.store.GetTip(tipID)
	if err != nil {
		return nil, fmt.Errorf("load tip: %w", err)
	}
	if tip == nil {
		return nil, domain.ErrTipNotFound
	}
	if tip.Status != domain.TipStatusClaimed {
		return nil, domain.ErrTipNotClaimed
	}
	if tip.TippeeID == nil || *tip.TippeeID != userID {
		return nil, domain.ErrNotClaimant
	}

	w := &domain.Withdrawal{
		ID:         uuid.NewString(),
		TipID:      tip.ID,
		UserID:     userID,
		AmountSats: tip.AmountSats,
		Invoice:    invoice,
		Status:     domain.WithdrawalStatusPending,
	}
	if err := s.store.CreateWithdrawal(w); err != nil {
		return nil, fmt.Errorf("create withdrawal: %w", err)
	}
	if err := s.store.MarkWithdrawn(tip.ID); err != nil {
		if serr := s.store.UpdateWithdrawalStatus(w.ID, domain.WithdrawalStatusFailed); serr != nil {
			slog.Error("Failed to mark withdrawal failed", slog.String("withdrawal_id", w.ID), slog.Any("error", serr))
		}
		return nil, err
	}
	if err := s.settler.PayInvoice(invoice, tip.AmountSats); err != nil {
		// Undo the state change so the tippee can retry with a fresh invoice.
		// The failed withdrawal row stays behind as an audit record.
		if serr := s.store.UpdateWithdrawalStatus(w.ID, domain.WithdrawalStatusFailed); serr != nil {
			slog.Error("Failed to mark withdrawal failed", slog.String("withdrawal_id", w.ID), slog.Any("error", serr))
		}
		if rerr := s.store.RevertWithdrawn(tip.ID); rerr != nil {
			slog.Error("Failed to revert tip after settlement failure", slog.String("tip_id", tip.ID), slog.Any("error", rerr))
		}
		return nil, fmt.Errorf("pay invoice: %w", err)
	}

	infra.GlobalMetrics.RecordTipWithdrawn()
	slog.Info("Tip withdrawn", slog.String("tip_id", tip.ID), slog.String("withdrawal_id", w.ID))

	if s.notify != nil {
		tip.Status = domain.TipStatusWithdrawn
		s.notify.TipWithdrawn(tip)
	}
	return w, nil
}

// PublicProjection builds the redacted view of a tip for a claim page.
func (s *TipService) PublicProjection(tipID string) (*domain.PublicTip, error) {
	tip, err := s.store.GetTip(tipID)
	if err != nil {
		return nil, fmt.Errorf("load tip: %w", err)
	}
	if tip == nil {
		return nil, domain.ErrTipNotFound
	}

	var profile domain.PublicTipper
	tipper, err := s.store.GetUser(tip.TipperID)
	if err == nil && tipper != nil {
		profile = tipper.PublicProfile()
	}

	public := tip.Public(profile)
	return &public, nil
}

// TipsByTipper lists the tips a user has created.
func (s *TipService) TipsByTipper(tipperID string) ([]domain.Tip, error) {
	return s.store.TipsByTipper(tipperID)
}

// WithdrawalsByUser lists a user's withdrawals.
func (s *TipService) WithdrawalsByUser(userID string) ([]domain.Withdrawal, error) {
	return s.store.WithdrawalsByUser(userID)
}
