/*
errors.go - Centralized error types for the ledger core

PURPOSE:
  All sentinel and structured errors in one place. The API layer maps these
  to HTTP status codes in exactly one switch; nothing in the core inspects
  error strings.

ERROR CATEGORIES:
  1. Validation errors - malformed amounts, bad kinds, both/neither side set
  2. Not-found errors  - entry/customer/order/product absent
  3. Conflict errors   - duplicate names, already-settled orders
  4. Store errors      - persistence failures (wrapped, surfaced as 500)
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrEntryNotFound is returned when a referenced ledger entry doesn't exist.
	ErrEntryNotFound = errors.New("ledger entry not found")

	// ErrCustomerNotFound is returned when a referenced customer doesn't exist.
	ErrCustomerNotFound = errors.New("customer not found")

	// ErrBothSidesSet is returned when an entry carries both a credit and a
	// debit. User-submitted entries must move cash in exactly one direction.
	ErrBothSidesSet = errors.New("exactly one of credit or debit must be > 0")

	// ErrNoSideSet is returned when an entry carries neither a credit nor a
	// debit.
	ErrNoSideSet = errors.New("one of credit or debit must be > 0")

	// ErrNegativeAmount is returned for negative credit or debit values.
	ErrNegativeAmount = errors.New("credit and debit must be >= 0")

	// ErrInvalidKind is returned for an unrecognized entry kind.
	ErrInvalidKind = errors.New("invalid entry kind")

	// ErrInvalidMethod is returned for an unrecognized payment method.
	ErrInvalidMethod = errors.New("invalid payment method")

	// ErrInvalidMonth is returned for malformed YYYY-MM report filters.
	ErrInvalidMonth = errors.New("invalid month: expected YYYY-MM")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// AmountError reports which side of an entry failed validation.
type AmountError struct {
	Field  string // "credit" or "debit"
	Amount decimal.Decimal
}

func (e *AmountError) Error() string {
	return fmt.Sprintf("%s amount %s is invalid", e.Field, e.Amount)
}

func (e *AmountError) Unwrap() error { return ErrNegativeAmount }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidation reports whether err is a client-input problem (HTTP 400).
func IsValidation(err error) bool {
	return errors.Is(err, ErrBothSidesSet) ||
		errors.Is(err, ErrNoSideSet) ||
		errors.Is(err, ErrNegativeAmount) ||
		errors.Is(err, ErrInvalidKind) ||
		errors.Is(err, ErrInvalidMethod) ||
		errors.Is(err, ErrInvalidMonth)
}

// IsNotFound reports whether err indicates a missing record (HTTP 404).
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEntryNotFound) ||
		errors.Is(err, ErrCustomerNotFound)
}

// ValidateAmounts enforces the exactly-one-side invariant for user entries.
func ValidateAmounts(credit, debit decimal.Decimal) error {
	if credit.IsNegative() {
		return &AmountError{Field: "credit", Amount: credit}
	}
	if debit.IsNegative() {
		return &AmountError{Field: "debit", Amount: debit}
	}
	if credit.IsPositive() && debit.IsPositive() {
		return ErrBothSidesSet
	}
	if credit.IsZero() && debit.IsZero() {
		return ErrNoSideSet
	}
	return nil
}
