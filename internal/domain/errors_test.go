package domain

import (
	"errors"
	"testing"
)

func TestNetworkError(t *testing.T) {
	baseErr := errors.New("connection refused")

	t.Run("retriable error", func(t *testing.T) {
		err := NewNetworkError("fetch rates", baseErr)

		if !err.IsRetriable() {
			t.Error("Expected error to be retriable")
		}

		if err.Error() != "fetch rates: connection refused" {
			t.Errorf("Error message = %q, want %q", err.Error(), "fetch rates: connection refused")
		}

		if !errors.Is(err, baseErr) {
			t.Error("Expected error to wrap baseErr")
		}
	})

	t.Run("fatal error", func(t *testing.T) {
		err := NewFatalNetworkError("create tip", baseErr)

		if err.IsRetriable() {
			t.Error("Expected error to not be retriable")
		}
	})

	t.Run("IsRetriable helper", func(t *testing.T) {
		retriable := NewNetworkError("dial", baseErr)
		fatal := NewFatalNetworkError("create tip", baseErr)
		plain := errors.New("plain error")

		if !IsRetriable(retriable) {
			t.Error("IsRetriable should return true for retriable error")
		}

		if IsRetriable(fatal) {
			t.Error("IsRetriable should return false for fatal error")
		}

		if IsRetriable(plain) {
			t.Error("IsRetriable should return false for plain error")
		}
	})
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("amount", "amount too small, minimum is 1 sats")

	if err.IsRetriable() {
		t.Error("ValidationError should never be retriable")
	}

	expected := "amount: amount too small, minimum is 1 sats"
	if err.Error() != expected {
		t.Errorf("Error message = %q, want %q", err.Error(), expected)
	}

	t.Run("field may be empty", func(t *testing.T) {
		err := NewValidationError("", "rates not loaded")
		if err.Error() != "rates not loaded" {
			t.Errorf("Error message = %q, want %q", err.Error(), "rates not loaded")
		}
	})

	t.Run("matches errors.As through wrapping", func(t *testing.T) {
		wrapped := errors.Join(errors.New("outer"), NewValidationError("note", "too long"))
		var verr *ValidationError
		if !errors.As(wrapped, &verr) {
			t.Error("errors.As should find the ValidationError")
		}
	})
}
