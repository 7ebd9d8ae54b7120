/*
store.go - Persistence interface for ledger entries

PURPOSE:
  Defines what the ledger core needs from storage: append, chronological
  lookups, the bulk range-update used by running-balance repair, and a
  transaction wrapper so multi-step repairs commit or roll back as one.

  No business validation lives behind this interface. Implementations are
  pure storage plus ordering-query support (see store/sqlite).

ORDERING CONTRACT:
  Wherever this interface says "chronological", it means ascending
  (Date, CreatedAt). CreatedAt is the tie-break for entries sharing a
  business date. Implementations must return entries in that order and
  honor it in range predicates.
*/
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ListFilter narrows and pages a ledger listing. Zero values mean "no
// filter"; Page is 1-based.
type ListFilter struct {
	Year   int
	Month  int
	Kind   Kind
	Method Method
	Query  string // matches description or sequence label, case-insensitive
	Page   int
	Limit  int
}

// Store is the persistence contract for ledger entries.
type Store interface {
	// AppendEntry persists a new entry, RunningBalance included.
	AppendEntry(ctx context.Context, e Entry) error

	// GetEntry returns the entry with the given id, or ErrEntryNotFound.
	GetEntry(ctx context.Context, id EntryID) (Entry, error)

	// LatestBefore returns the chronologically-latest entry strictly before
	// (date, createdAt), or nil if the ledger is empty up to that point.
	// Used to seed a new entry's running balance.
	LatestBefore(ctx context.Context, date, createdAt time.Time) (*Entry, error)

	// EntriesForCustomer returns every entry whose reference names the
	// customer, chronologically. Never truncated: balance math needs all
	// of them.
	EntriesForCustomer(ctx context.Context, customerID string) ([]Entry, error)

	// EntriesInMonth returns every entry in the given calendar month,
	// chronologically.
	EntriesInMonth(ctx context.Context, year, month int) ([]Entry, error)

	// AllEntries returns the full ledger, chronologically. Used by the
	// full-chain rebuild after an entry's date moves.
	AllEntries(ctx context.Context) ([]Entry, error)

	// ListEntries returns one page of entries matching the filter, newest
	// first, along with the total match count.
	ListEntries(ctx context.Context, f ListFilter) ([]Entry, int, error)

	// UpdateEntry persists amounts, date, method, description, reference,
	// running balance and the denormalized year/month of an existing entry.
	// ID and SequenceLabel are immutable.
	UpdateEntry(ctx context.Context, e Entry) error

	// ShiftRunningBalances adds delta to the RunningBalance of every entry
	// strictly after (date, createdAt). One bulk statement, not a loop.
	ShiftRunningBalances(ctx context.Context, date, createdAt time.Time, delta decimal.Decimal) error

	// DeleteEntry removes the entry with the given id, or ErrEntryNotFound.
	DeleteEntry(ctx context.Context, id EntryID) error

	// WithTx runs fn against a Store bound to a single database
	// transaction. fn returning an error rolls everything back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
