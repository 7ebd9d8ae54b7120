/*
Package ledger provides the cash-ledger core: signed monetary entries with
running-balance snapshots, and the rules that keep them consistent.

PURPOSE:
  Every cash movement in the shop — a sale, a purchase, an expense, a
  customer payment, an advance — is one Entry. Each entry carries the cash
  balance immediately after it was applied, so the ledger reads like a bank
  statement.

KEY CONCEPTS IN THIS FILE (types.go):
  - Entry: one signed cash-movement record with a running-balance snapshot
  - Kind: business classification (sale, payment, advance, ...)
  - Method: payment channel tag (cash, jazzcash, bank, ...) — informational
  - Reference: optional links to customer/order/product records
  - ApplyEntry: the single place where credit/debit arithmetic happens

CRITICAL INVARIANTS:
  1. EXACTLY-ONE-SIDE: a user-submitted entry has credit > 0 XOR debit > 0
  2. CHAIN: sorted by (Date ASC, CreatedAt ASC), each entry's RunningBalance
     equals the previous entry's RunningBalance + credit - debit, with the
     first entry chained from zero
  3. ORDERING: entries are never physically reordered; edits and deletes
     repair RunningBalance values of later entries instead

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for all money — no floats in core math
  2. One arithmetic path: every writer goes through ApplyEntry, so the
     credit-in / debit-out convention lives in exactly one function
  3. Recomputability: customer balances are always derivable from the
     entries alone (see balance.go); cached copies are conveniences

SEE ALSO:
  - service.go: running-balance maintenance on create/edit/delete
  - balance.go: customer net-position calculation
  - store.go: persistence interface
*/
package ledger

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

// =============================================================================
// CLASSIFICATION
// =============================================================================

// Kind is the business classification of an entry. Only sale, payment and
// advance participate in customer-balance math; the rest are reporting tags.
type Kind string

const (
	KindSale         Kind = "sale"
	KindPurchase     Kind = "purchase"
	KindExpense      Kind = "expense"
	KindPayment      Kind = "payment"
	KindAdvance      Kind = "advance"
	KindCompanyRemit Kind = "company_remit"
	KindCommission   Kind = "commission"
	KindRefund       Kind = "refund"
	KindAdjustment   Kind = "adjustment"
	KindOther        Kind = "other"
)

// Kinds lists every valid kind, for validation at the API edge.
var Kinds = []Kind{
	KindSale, KindPurchase, KindExpense, KindPayment, KindAdvance,
	KindCompanyRemit, KindCommission, KindRefund, KindAdjustment, KindOther,
}

// ValidKind reports whether k is a recognized entry kind.
func ValidKind(k Kind) bool {
	for _, v := range Kinds {
		if v == k {
			return true
		}
	}
	return false
}

// Method is the payment channel tag. It is classificatory only and carries
// no invariants.
type Method string

const (
	MethodCash     Method = "cash"
	MethodJazzCash Method = "jazzcash"
	MethodBank     Method = "bank"
	MethodCard     Method = "card"
	MethodAdvance  Method = "advance"
	MethodOther    Method = "other"
)

// Methods lists every valid method, for validation at the API edge.
var Methods = []Method{
	MethodCash, MethodJazzCash, MethodBank, MethodCard, MethodAdvance, MethodOther,
}

// ValidMethod reports whether m is a recognized payment method.
func ValidMethod(m Method) bool {
	for _, v := range Methods {
		if v == m {
			return true
		}
	}
	return false
}

// =============================================================================
// ENTRY
// =============================================================================

// EntryID uniquely identifies a ledger entry.
type EntryID string

// Reference links an entry to the records it concerns. All fields optional.
type Reference struct {
	CustomerID string
	OrderID    string
	ProductID  string
	TxNumber   string
	Note       string
}

// IsZero reports whether the reference links to nothing.
func (r Reference) IsZero() bool {
	return r.CustomerID == "" && r.OrderID == "" && r.ProductID == "" &&
		r.TxNumber == "" && r.Note == ""
}

// Entry is one cash movement. Credit increases the running cash balance,
// debit decreases it. RunningBalance is the balance immediately after this
// entry in (Date, CreatedAt) order.
type Entry struct {
	ID             EntryID
	SequenceLabel  string // human-readable transaction label, immutable
	Date           time.Time
	CreatedAt      time.Time // tie-break when Date values are equal
	Kind           Kind
	Method         Method
	Description    string
	Credit         decimal.Decimal
	Debit          decimal.Decimal
	RunningBalance decimal.Decimal
	Reference      Reference

	// Denormalized from Date for monthly report filters.
	Year  int
	Month int
}

// Net returns credit - debit: the signed effect of this entry on cash.
func (e Entry) Net() decimal.Decimal {
	return e.Credit.Sub(e.Debit)
}

// Before reports whether e is chronologically before other in the
// (Date, CreatedAt) ordering the chain invariant is defined over.
func (e Entry) Before(other Entry) bool {
	if !e.Date.Equal(other.Date) {
		return e.Date.Before(other.Date)
	}
	return e.CreatedAt.Before(other.CreatedAt)
}

// ApplyEntry is the one arithmetic path for the ledger's sign convention:
// credit is cash in, debit is cash out.
func ApplyEntry(prior, credit, debit decimal.Decimal) decimal.Decimal {
	return prior.Add(credit).Sub(debit)
}

// =============================================================================
// SEQUENCE LABELS
// =============================================================================

// SequenceLabeler hands out monotonically increasing human-readable
// transaction labels like TXN-01J8ZXK9M2Q4R6S8T0V2W4X6Y8.
type SequenceLabeler struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewSequenceLabeler creates a labeler seeded with crypto-grade entropy.
func NewSequenceLabeler() *SequenceLabeler {
	return &SequenceLabeler{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Next returns a new label. Labels generated within the same millisecond
// still sort in issue order.
func (s *SequenceLabeler) Next(at time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return "TXN-" + ulid.MustNew(ulid.Timestamp(at.UTC()), s.entropy).String()
}
