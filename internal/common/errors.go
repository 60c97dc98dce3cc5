// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Common application errors.
var (
	// Database errors.
	ErrNotFound = errors.New("not found")

	// Pipeline errors.
	ErrNoLines        = errors.New("invoice has no lines to classify")
	ErrNoDraftEntries = errors.New("no draft entries to validate")
	ErrReasonRequired = errors.New("rejection reason is required")
	ErrEntryValidated = errors.New("validated entries are immutable")

	// Oracle errors.
	ErrExtractionFailed     = errors.New("extraction failed")
	ErrClassificationFailed = errors.New("classification failed")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// TransitionError reports an operation attempted from an illegal invoice
// state. It is a client-facing validation failure; nothing was mutated.
type TransitionError struct {
	Operation string
	From      string
	Allowed   []string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s an invoice in state %s (allowed: %s)",
		e.Operation, e.From, strings.Join(e.Allowed, ", "))
}

// DuplicateError reports that an equivalent invoice already exists in the
// same société. Distinct from a validation failure so the caller can present
// a "possible duplicate" rather than a "bad request".
type DuplicateError struct {
	ExistingID string
	Fields     []string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("possible duplicate of invoice %s (matching %s)",
		e.ExistingID, strings.Join(e.Fields, ", "))
}

// ImbalanceError reports a journal entry whose debits and credits do not
// match. It carries the full diagnostic payload so the operator can see why,
// not just that.
type ImbalanceError struct {
	EntryID     string
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
	Difference  decimal.Decimal
}

func (e *ImbalanceError) Error() string {
	return fmt.Sprintf("entry %s is unbalanced: debit %s != credit %s (difference %s)",
		e.EntryID, e.TotalDebit.StringFixed(2), e.TotalCredit.StringFixed(2), e.Difference.StringFixed(2))
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRateLimit) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
