package service

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"lightsats/internal/domain"
	"lightsats/internal/infra"
	"lightsats/internal/infra/storage"

	"github.com/shopspring/decimal"
)

func testConfig() *infra.Config {
	cfg := &infra.Config{}
	cfg.Tips.MinTipSats = 10
	cfg.Tips.MaxTipSats = 100000
	cfg.Tips.FeePercent = decimal.NewFromInt(1)
	cfg.Tips.MinFeeSats = 10
	cfg.Tips.DefaultCurrency = "USD"
	cfg.Tips.DefaultLocale = "en"
	cfg.Tips.SupportedLocales = []string{"en", "es"}
	return cfg
}

func setupService(t *testing.T) *TipService {
	t.Helper()
	store, err := storage.NewStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test storage: %v", err)
	}

	rates := NewRateService()
	rates.Replace(infra.RateTable{"USD": decimal.RequireFromString("0.0005")})

	return NewTipService(store, rates, testConfig())
}

func validRequest() CreateTipRequest {
	return CreateTipRequest{
		AmountSats:   1000,
		Currency:     "USD",
		Note:         "enjoy!",
		TippeeLocale: "en",
		ExpiresAt:    time.Now().Add(24 * time.Hour),
	}
}

func TestTipService_Create(t *testing.T) {
	s := setupService(t)

	tip, err := s.Create("alice", validRequest())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if tip.ID == "" {
		t.Error("tip has no ID")
	}
	if tip.Status != domain.TipStatusUnclaimed {
		t.Errorf("expected UNCLAIMED, got %s", tip.Status)
	}
	// 1% of 1000 = 10, equals the floor
	if tip.FeeSats != 10 {
		t.Errorf("expected fee 10, got %d", tip.FeeSats)
	}
}

func TestTipService_Create_Validation(t *testing.T) {
	s := setupService(t)

	cases := []struct {
		name   string
		mutate func(*CreateTipRequest)
	}{
		{"below minimum", func(r *CreateTipRequest) { r.AmountSats = 9 }},
		{"above maximum", func(r *CreateTipRequest) { r.AmountSats = 100001 }},
		{"missing currency", func(r *CreateTipRequest) { r.Currency = "" }},
		{"unknown currency", func(r *CreateTipRequest) { r.Currency = "XXX" }},
		{"unsupported locale", func(r *CreateTipRequest) { r.TippeeLocale = "zz" }},
		{"expiry in the past", func(r *CreateTipRequest) { r.ExpiresAt = time.Now().Add(-time.Minute) }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			tc.mutate(&req)

			_, err := s.Create("alice", req)
			var verr *domain.ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("expected ValidationError, got %v", err)
			}
		})
	}

	t.Run("maximum embedded in message", func(t *testing.T) {
		req := validRequest()
		req.AmountSats = 100001
		_, err := s.Create("alice", req)
		if err == nil || !strings.Contains(err.Error(), "100000") {
			t.Errorf("error should reference the configured maximum: %v", err)
		}
	})
}

func TestTipService_Claim(t *testing.T) {
	s := setupService(t)
	tip, _ := s.Create("alice", validRequest())

	t.Run("claim by another user succeeds", func(t *testing.T) {
		claimed, err := s.Claim(tip.ID, "bob")
		if err != nil {
			t.Fatalf("Claim failed: %v", err)
		}
		if !claimed.HasClaimed() {
			t.Error("tip should be claimed")
		}
		if claimed.TippeeID == nil || *claimed.TippeeID != "bob" {
			t.Error("tippee not set")
		}
	})

	t.Run("second claim rejected", func(t *testing.T) {
		_, err := s.Claim(tip.ID, "carol")
		if !errors.Is(err, domain.ErrAlreadyClaimed) {
			t.Errorf("expected ErrAlreadyClaimed, got %v", err)
		}
	})
}

func TestTipService_Claim_OwnTip(t *testing.T) {
	s := setupService(t)
	tip, _ := s.Create("alice", validRequest())

	_, err := s.Claim(tip.ID, "alice")
	if !errors.Is(err, domain.ErrOwnTip) {
		t.Errorf("expected ErrOwnTip, got %v", err)
	}
}

func TestTipService_Claim_Expired(t *testing.T) {
	s := setupService(t)
	req := validRequest()
	req.ExpiresAt = time.Now().Add(50 * time.Millisecond)
	tip, err := s.Create("alice", req)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	_, err = s.Claim(tip.ID, "bob")
	if !errors.Is(err, domain.ErrTipExpired) {
		t.Errorf("expected ErrTipExpired, got %v", err)
	}
}

func TestTipService_Claim_NotFound(t *testing.T) {
	s := setupService(t)
	_, err := s.Claim("missing", "bob")
	if !errors.Is(err, domain.ErrTipNotFound) {
		t.Errorf("expected ErrTipNotFound, got %v", err)
	}
}

func TestTipService_Withdraw(t *testing.T) {
	s := setupService(t)
	tip, _ := s.Create("alice", validRequest())

	t.Run("unclaimed tip rejected", func(t *testing.T) {
		_, err := s.Withdraw(tip.ID, "bob", "lnbc10u1p...")
		if !errors.Is(err, domain.ErrTipNotClaimed) {
			t.Errorf("expected ErrTipNotClaimed, got %v", err)
		}
	})

	s.Claim(tip.ID, "bob")

	t.Run("non-claimant rejected", func(t *testing.T) {
		_, err := s.Withdraw(tip.ID, "carol", "lnbc10u1p...")
		if !errors.Is(err, domain.ErrNotClaimant) {
			t.Errorf("expected ErrNotClaimant, got %v", err)
		}
	})

	t.Run("missing invoice rejected", func(t *testing.T) {
		_, err := s.Withdraw(tip.ID, "bob", "")
		var verr *domain.ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("expected ValidationError, got %v", err)
		}
	})

	t.Run("claimant withdraws", func(t *testing.T) {
		w, err := s.Withdraw(tip.ID, "bob", "lnbc10u1p...")
		if err != nil {
			t.Fatalf("Withdraw failed: %v", err)
		}
		if w.Status != domain.WithdrawalStatusPending {
			t.Errorf("expected PENDING, got %s", w.Status)
		}
		if w.AmountSats != tip.AmountSats {
			t.Errorf("withdrawal amount %d != tip amount %d", w.AmountSats, tip.AmountSats)
		}

		ws, _ := s.WithdrawalsByUser("bob")
		if len(ws) != 1 {
			t.Errorf("expected 1 withdrawal, got %d", len(ws))
		}
	})
}

type failingSettler struct{}

func (failingSettler) PayInvoice(string, int64) error {
	return errors.New("node unreachable")
}

func TestTipService_Withdraw_SettlementFailure(t *testing.T) {
	s := setupService(t)
	tip, _ := s.Create("alice", validRequest())
	s.Claim(tip.ID, "bob")

	s.SetSettler(failingSettler{})
	if _, err := s.Withdraw(tip.ID, "bob", "lnbc10u1p..."); err == nil {
		t.Fatal("expected settlement failure to surface")
	}

	// The tip must return to CLAIMED so the tippee can retry, and the
	// attempted withdrawal must be marked FAILED rather than left pending.
	stored, _ := s.store.GetTip(tip.ID)
	if stored.Status != domain.TipStatusClaimed {
		t.Errorf("expected tip back in CLAIMED, got %s", stored.Status)
	}
	ws, _ := s.WithdrawalsByUser("bob")
	if len(ws) != 1 || ws[0].Status != domain.WithdrawalStatusFailed {
		t.Fatalf("expected 1 FAILED withdrawal, got %+v", ws)
	}

	s.SetSettler(noopSettler{})
	w, err := s.Withdraw(tip.ID, "bob", "lnbc20u1p...")
	if err != nil {
		t.Fatalf("retry after settlement failure rejected: %v", err)
	}
	if w.Status != domain.WithdrawalStatusPending {
		t.Errorf("expected retry PENDING, got %s", w.Status)
	}
}

func TestTipService_PublicProjection(t *testing.T) {
	s := setupService(t)
	tip, _ := s.Create("alice", validRequest())

	public, err := s.PublicProjection(tip.ID)
	if err != nil {
		t.Fatalf("PublicProjection failed: %v", err)
	}
	if public.HasClaimed {
		t.Error("unclaimed tip should not report claimed")
	}
	if public.AmountSats != tip.AmountSats {
		t.Errorf("amount mismatch: %d", public.AmountSats)
	}

	s.Claim(tip.ID, "bob")

	public, _ = s.PublicProjection(tip.ID)
	if !public.HasClaimed {
		t.Error("claimed tip should report claimed")
	}
}

type recordingNotifier struct {
	claimed   int
	withdrawn int
}

func (n *recordingNotifier) TipClaimed(*domain.Tip)   { n.claimed++ }
func (n *recordingNotifier) TipWithdrawn(*domain.Tip) { n.withdrawn++ }

func TestTipService_Notifications(t *testing.T) {
	s := setupService(t)
	n := &recordingNotifier{}
	s.SetNotifier(n)

	tip, _ := s.Create("alice", validRequest())
	s.Claim(tip.ID, "bob")
	s.Withdraw(tip.ID, "bob", "lnbc10u1p...")

	if n.claimed != 1 {
		t.Errorf("expected 1 claim notification, got %d", n.claimed)
	}
	if n.withdrawn != 1 {
		t.Errorf("expected 1 withdrawal notification, got %d", n.withdrawn)
	}
}
