package commerce

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Sentinel errors. The API layer maps these to HTTP status codes in one
// place; see api/handlers.go.
var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrProductNotFound  = errors.New("product not found")
	ErrCategoryNotFound = errors.New("category not found")

	// ErrDuplicateName is returned when a product or category name is
	// already taken.
	ErrDuplicateName = errors.New("name already exists")

	// ErrEmptyOrder is returned for orders with no line items.
	ErrEmptyOrder = errors.New("order has no items")

	// ErrInvalidQuantity is returned for non-positive line quantities.
	ErrInvalidQuantity = errors.New("quantity must be > 0")

	// ErrPaymentNotPositive is returned for zero or negative payments.
	ErrPaymentNotPositive = errors.New("payment amount must be > 0")

	// ErrPaymentExceedsBalance is returned when a payment is larger than the
	// order's outstanding balance.
	ErrPaymentExceedsBalance = errors.New("payment exceeds outstanding balance")

	// ErrOrderSettled is returned when paying or cancelling an order that is
	// already fully paid.
	ErrOrderSettled = errors.New("order already fully paid")

	// ErrOrderCancelled is returned when operating on a cancelled order.
	ErrOrderCancelled = errors.New("order is cancelled")

	// ErrStoreRequired is returned when the configured store lacks the
	// commerce collections.
	ErrStoreRequired = errors.New("operation requires commerce store capabilities")
)

// InsufficientStockError reports the first line item that cannot be
// fulfilled. The whole order is rejected; nothing is written.
type InsufficientStockError struct {
	ProductID string
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d",
		e.Name, e.Requested, e.Available)
}

// PaymentExceedsBalanceError carries the amounts behind ErrPaymentExceedsBalance.
type PaymentExceedsBalanceError struct {
	OrderID     string
	Requested   decimal.Decimal
	Outstanding decimal.Decimal
}

func (e *PaymentExceedsBalanceError) Error() string {
	return fmt.Sprintf("payment %s exceeds outstanding balance %s on order %s",
		e.Requested, e.Outstanding, e.OrderID)
}

func (e *PaymentExceedsBalanceError) Unwrap() error { return ErrPaymentExceedsBalance }

// IsValidation reports whether err is a client-input problem (HTTP 400).
func IsValidation(err error) bool {
	return errors.Is(err, ErrEmptyOrder) ||
		errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrPaymentNotPositive) ||
		errors.Is(err, ErrPaymentExceedsBalance)
}

// IsNotFound reports whether err indicates a missing record (HTTP 404).
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrCategoryNotFound)
}

// IsConflict reports whether err is a resource conflict (HTTP 409): a taken
// name or a line item the current stock cannot cover.
func IsConflict(err error) bool {
	var stock *InsufficientStockError
	return errors.Is(err, ErrDuplicateName) || errors.As(err, &stock)
}

// IsStateConflict reports whether err is an order-state problem (HTTP 400,
// distinct from validation so callers can tell them apart).
func IsStateConflict(err error) bool {
	return errors.Is(err, ErrOrderSettled) || errors.Is(err, ErrOrderCancelled)
}
