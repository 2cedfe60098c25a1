package domain

import "errors"

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// ValidationError is a precondition failure raised before any network or
// storage call. The Reason is user-facing. Never retriable: the input has to
// change first.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func (e *ValidationError) IsRetriable() bool {
	return false
}

// NewValidationError creates a validation error for a field
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// NetworkError represents a network-related error that may be retriable
type NetworkError struct {
	Op        string // Operation that failed (e.g., "fetch rates", "create tip")
	Err       error  // Underlying error
	Retriable bool   // Whether this error is retriable
}

func (e *NetworkError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *NetworkError) IsRetriable() bool {
	return e.Retriable
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new retriable network error
func NewNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: true}
}

// NewFatalNetworkError creates a non-retriable network error
func NewFatalNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: false}
}

var (
	// ErrTipNotFound is returned when no tip exists for an identifier.
	ErrTipNotFound = errors.New("tip not found")

	// ErrAlreadyClaimed is returned when a claim races a previous one and loses.
	ErrAlreadyClaimed = errors.New("tip already claimed")

	// ErrOwnTip is returned when a tipper tries to claim their own tip.
	ErrOwnTip = errors.New("cannot claim your own tip")

	// ErrTipExpired is returned when the claim window has passed.
	ErrTipExpired = errors.New("tip expired")

	// ErrNotClaimant is returned when a withdrawal is attempted by someone
	// other than the user who claimed the tip.
	ErrNotClaimant = errors.New("tip claimed by another user")

	// ErrTipNotClaimed is returned when a withdrawal is attempted on an
	// unclaimed tip.
	ErrTipNotClaimed = errors.New("tip not claimed")
)
