/*
service.go - Running-balance maintenance

PURPOSE:
  The Service is the only writer to the ledger. It guarantees the chain
  invariant across creates, edits and deletes:

    entry[i].RunningBalance = entry[i-1].RunningBalance + credit - debit

  ordered by (Date, CreatedAt), chained from zero.

HOW REPAIR WORKS:
  Create:  seed the new entry from the latest prior entry's snapshot, then
           bulk-shift every later entry by the new entry's net effect
           (backdated inserts land mid-chain, so "later" may be non-empty).
  Edit:    same-date amount changes bulk-shift later entries by the net
           delta. A date change moves the entry across the chain, so the
           whole chain is rebuilt from scratch instead.
  Delete:  bulk-shift later entries by minus the removed entry's net.

ATOMICITY:
  Every mutation runs inside a single storage transaction AND under the
  chain mutex. A repair that fails mid-way rolls back entirely; the chain
  is never observable in a half-shifted state.

CONCURRENCY:
  The chain is global (one cash ledger per shop), so a single mutex
  serializes mutations. Callers composing ledger writes with their own
  storage work (order creation writes two entries plus stock and order
  rows) use WithChain to hold the mutex and the transaction across the
  whole sequence.

SEE ALSO:
  - balance.go: the customer position fold this service exposes
  - store/sqlite: ShiftRunningBalances as one bulk UPDATE
*/
package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Draft is the caller-supplied part of a new entry. The service assigns
// ID, SequenceLabel, CreatedAt, RunningBalance and the denormalized
// year/month.
type Draft struct {
	Date        time.Time
	Kind        Kind
	Method      Method
	Description string
	Credit      decimal.Decimal
	Debit       decimal.Decimal
	Reference   Reference
}

// Amendment is a partial update to an existing entry. Nil fields are left
// unchanged. ID and SequenceLabel cannot be amended, and the entry's
// customer/order reference is immutable; only its note can change.
type Amendment struct {
	Date        *time.Time
	Method      *Method
	Description *string
	Credit      *decimal.Decimal
	Debit       *decimal.Decimal
	Note        *string
}

// Service maintains the running-balance chain. One instance per ledger.
type Service struct {
	store  Store
	labels *SequenceLabeler

	// mu serializes every chain mutation. Balance reads go through the
	// store directly and tolerate concurrent writers (snapshot reads).
	mu sync.Mutex

	now func() time.Time
}

// NewService creates a ledger service over the given store.
func NewService(store Store) *Service {
	return &Service{
		store:  store,
		labels: NewSequenceLabeler(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// =============================================================================
// CHAIN SCOPE
// =============================================================================

// WithChain runs fn holding the chain mutex, inside one storage
// transaction. fn receives the transaction-bound store and may record
// entries through RecordIn. This is how order creation composes stock,
// order and ledger writes atomically.
func (s *Service) WithChain(ctx context.Context, fn func(st Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.WithTx(ctx, fn)
}

// =============================================================================
// CREATE
// =============================================================================

// Record validates and appends a new entry, repairing later entries if the
// date lands mid-chain.
func (s *Service) Record(ctx context.Context, d Draft) (Entry, error) {
	var out Entry
	err := s.WithChain(ctx, func(st Store) error {
		e, err := s.RecordIn(ctx, st, d)
		if err != nil {
			return err
		}
		out = e
		return nil
	})
	return out, err
}

// RecordIn appends a new entry using st. The caller must already be inside
// WithChain; RecordIn itself takes no locks and opens no transaction.
func (s *Service) RecordIn(ctx context.Context, st Store, d Draft) (Entry, error) {
	if !ValidKind(d.Kind) {
		return Entry{}, ErrInvalidKind
	}
	if d.Method != "" && !ValidMethod(d.Method) {
		return Entry{}, ErrInvalidMethod
	}
	if err := ValidateAmounts(d.Credit, d.Debit); err != nil {
		return Entry{}, err
	}

	now := s.now()
	date := d.Date
	if date.IsZero() {
		date = now
	}

	prior, err := st.LatestBefore(ctx, date, now)
	if err != nil {
		return Entry{}, err
	}
	priorBalance := decimal.Zero
	if prior != nil {
		priorBalance = prior.RunningBalance
	}

	e := Entry{
		ID:             EntryID(uuid.NewString()),
		SequenceLabel:  s.labels.Next(now),
		Date:           date,
		CreatedAt:      now,
		Kind:           d.Kind,
		Method:         d.Method,
		Description:    d.Description,
		Credit:         d.Credit,
		Debit:          d.Debit,
		RunningBalance: ApplyEntry(priorBalance, d.Credit, d.Debit),
		Reference:      d.Reference,
		Year:           date.Year(),
		Month:          int(date.Month()),
	}

	if err := st.AppendEntry(ctx, e); err != nil {
		return Entry{}, err
	}
	// Backdated entries have successors already on the chain.
	if err := st.ShiftRunningBalances(ctx, e.Date, e.CreatedAt, e.Net()); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// =============================================================================
// EDIT
// =============================================================================

// Amend applies a partial update and repairs the chain. Amount-only changes
// shift later entries by the net delta in one bulk update; date changes
// rebuild the chain from scratch, since the entry's successors change.
func (s *Service) Amend(ctx context.Context, id EntryID, a Amendment) (Entry, error) {
	var out Entry
	err := s.WithChain(ctx, func(st Store) error {
		e, err := s.AmendIn(ctx, st, id, a)
		if err != nil {
			return err
		}
		out = e
		return nil
	})
	return out, err
}

// AmendIn applies a partial update using st. The caller must already be
// inside WithChain.
func (s *Service) AmendIn(ctx context.Context, st Store, id EntryID, a Amendment) (Entry, error) {
	old, err := st.GetEntry(ctx, id)
	if err != nil {
		return Entry{}, err
	}

	updated := old
	if a.Method != nil {
		if !ValidMethod(*a.Method) {
			return Entry{}, ErrInvalidMethod
		}
		updated.Method = *a.Method
	}
	if a.Description != nil {
		updated.Description = *a.Description
	}
	if a.Note != nil {
		updated.Reference.Note = *a.Note
	}
	if a.Credit != nil {
		updated.Credit = *a.Credit
	}
	if a.Debit != nil {
		updated.Debit = *a.Debit
	}
	if err := ValidateAmounts(updated.Credit, updated.Debit); err != nil {
		return Entry{}, err
	}

	dateChanged := false
	if a.Date != nil && !a.Date.Equal(old.Date) {
		updated.Date = *a.Date
		updated.Year = a.Date.Year()
		updated.Month = int(a.Date.Month())
		dateChanged = true
	}

	if dateChanged {
		if err := st.UpdateEntry(ctx, updated); err != nil {
			return Entry{}, err
		}
		if err := rebuildChain(ctx, st); err != nil {
			return Entry{}, err
		}
		return st.GetEntry(ctx, id)
	}

	delta := updated.Net().Sub(old.Net())
	updated.RunningBalance = old.RunningBalance.Add(delta)
	if err := st.UpdateEntry(ctx, updated); err != nil {
		return Entry{}, err
	}
	if err := st.ShiftRunningBalances(ctx, old.Date, old.CreatedAt, delta); err != nil {
		return Entry{}, err
	}
	return updated, nil
}

// =============================================================================
// DELETE
// =============================================================================

// Remove deletes an entry and subtracts its effect from every later entry.
func (s *Service) Remove(ctx context.Context, id EntryID) error {
	return s.WithChain(ctx, func(st Store) error {
		return s.RemoveIn(ctx, st, id)
	})
}

// RemoveIn deletes an entry using st. The caller must already be inside
// WithChain.
func (s *Service) RemoveIn(ctx context.Context, st Store, id EntryID) error {
	old, err := st.GetEntry(ctx, id)
	if err != nil {
		return err
	}
	if err := st.DeleteEntry(ctx, id); err != nil {
		return err
	}
	return st.ShiftRunningBalances(ctx, old.Date, old.CreatedAt, old.Net().Neg())
}

// rebuildChain recomputes every snapshot from zero. O(n) writes, used only
// when an entry moves across the chain.
func rebuildChain(ctx context.Context, st Store) error {
	entries, err := st.AllEntries(ctx)
	if err != nil {
		return err
	}
	prior := decimal.Zero
	for _, e := range entries {
		want := ApplyEntry(prior, e.Credit, e.Debit)
		if !e.RunningBalance.Equal(want) {
			e.RunningBalance = want
			if err := st.UpdateEntry(ctx, e); err != nil {
				return err
			}
		}
		prior = want
	}
	return nil
}

// =============================================================================
// READS
// =============================================================================

// Get returns a single entry.
func (s *Service) Get(ctx context.Context, id EntryID) (Entry, error) {
	return s.store.GetEntry(ctx, id)
}

// List returns one page of the ledger plus the total match count.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Entry, int, error) {
	return s.store.ListEntries(ctx, f)
}

// CustomerBalance folds every entry referencing the customer into their
// net position. Authoritative: cached balances must agree with this.
func (s *Service) CustomerBalance(ctx context.Context, customerID string) (Balance, error) {
	entries, err := s.store.EntriesForCustomer(ctx, customerID)
	if err != nil {
		return Balance{}, err
	}
	return ComputeBalance(customerID, entries), nil
}

// OpeningBalance returns the cash position at the start of the given
// month: the snapshot of the latest entry strictly before it.
func (s *Service) OpeningBalance(ctx context.Context, year, month int) (decimal.Decimal, error) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	prior, err := s.store.LatestBefore(ctx, start, time.Time{})
	if err != nil {
		return decimal.Zero, err
	}
	if prior == nil {
		return decimal.Zero, nil
	}
	return prior.RunningBalance, nil
}

// MonthEntries returns every entry in the month, chronologically.
func (s *Service) MonthEntries(ctx context.Context, year, month int) ([]Entry, error) {
	return s.store.EntriesInMonth(ctx, year, month)
}

// MethodTotals sums credits per payment method over a month. Used by the
// ledger listing's per-method cash-in breakdown.
func (s *Service) MethodTotals(ctx context.Context, year, month int) (map[Method]decimal.Decimal, error) {
	entries, err := s.store.EntriesInMonth(ctx, year, month)
	if err != nil {
		return nil, err
	}
	totals := make(map[Method]decimal.Decimal)
	for _, e := range entries {
		if !e.Credit.IsPositive() {
			continue
		}
		m := e.Method
		if m == "" {
			m = MethodOther
		}
		totals[m] = totals[m].Add(e.Credit)
	}
	return totals, nil
}
