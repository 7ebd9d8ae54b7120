/*
balance.go - Customer net-position calculation

PURPOSE:
  Computes what a customer owes (or is owed) from their ledger entries
  alone. This is the authoritative calculation: any cached balance field
  must agree with it, and the reconcile path recomputes-and-compares rather
  than trusting the cache.

THE FORMULA (effective debits):
  saleDebits         = sum(debit)  over kind == sale
  paymentCredits     = sum(credit) over kind == payment
  advanceCredits     = sum(credit) over kind == advance with credit > 0
                       (customer handing over an advance)
  advanceAllocations = sum(debit)  over kind == advance with debit > 0
                       (advance applied against an order)

  effectiveDebits = saleDebits - advanceAllocations
  balance         = (paymentCredits + advanceCredits) - effectiveDebits

SIGN CONVENTION:
  balance > 0  customer holds advance credit (the business owes them)
  balance < 0  customer owes the business
  balance == 0 settled

ALLOCATION CONVENTION:
  An allocation is recorded as a DEBIT on an advance-kind entry. It nets
  against the order's sale debit instead of piling up as extra customer
  credit. Every writer in this module follows that convention.

AVAILABLE ADVANCE:
  Because allocations net against sale debits, a consumed advance still
  contributes its credit to the balance sum. What remains spendable is
  tracked separately: advanceCredits minus advanceAllocations, floored at
  zero. The allocator draws from that figure, never from the raw balance,
  so the same advance cannot pay for two orders.
*/
package ledger

import "github.com/shopspring/decimal"

// Position labels a customer's standing relative to the business.
type Position string

const (
	PositionAdvance  Position = "advance"  // balance > 0
	PositionOwing    Position = "owing"    // balance < 0
	PositionBalanced Position = "balanced" // balance == 0
)

// Balance is a customer's net position with the sums it was derived from.
type Balance struct {
	CustomerID         string
	SaleDebits         decimal.Decimal
	PaymentCredits     decimal.Decimal
	AdvanceCredits     decimal.Decimal
	AdvanceAllocations decimal.Decimal
	Current            decimal.Decimal
}

// Position returns the human-readable standing for the balance.
func (b Balance) Position() Position {
	switch {
	case b.Current.IsPositive():
		return PositionAdvance
	case b.Current.IsNegative():
		return PositionOwing
	default:
		return PositionBalanced
	}
}

// AdvanceAvailable returns how much advance credit is free to allocate
// against a new order: advance credits net of what allocations have
// already consumed, floored at zero.
func (b Balance) AdvanceAvailable() decimal.Decimal {
	free := b.AdvanceCredits.Sub(b.AdvanceAllocations)
	if free.IsPositive() {
		return free
	}
	return decimal.Zero
}

// ComputeBalance folds a customer's entries into their net position.
// Pure: no side effects, order of entries irrelevant, but the slice must be
// the complete set of entries referencing the customer.
func ComputeBalance(customerID string, entries []Entry) Balance {
	b := Balance{
		CustomerID:         customerID,
		SaleDebits:         decimal.Zero,
		PaymentCredits:     decimal.Zero,
		AdvanceCredits:     decimal.Zero,
		AdvanceAllocations: decimal.Zero,
	}
	for _, e := range entries {
		switch e.Kind {
		case KindSale:
			b.SaleDebits = b.SaleDebits.Add(e.Debit)
		case KindPayment:
			b.PaymentCredits = b.PaymentCredits.Add(e.Credit)
		case KindAdvance:
			if e.Credit.IsPositive() {
				b.AdvanceCredits = b.AdvanceCredits.Add(e.Credit)
			}
			if e.Debit.IsPositive() {
				b.AdvanceAllocations = b.AdvanceAllocations.Add(e.Debit)
			}
		}
	}
	effectiveDebits := b.SaleDebits.Sub(b.AdvanceAllocations)
	b.Current = b.PaymentCredits.Add(b.AdvanceCredits).Sub(effectiveDebits)
	return b
}

// VerifyChain checks the running-balance invariant over entries already
// sorted chronologically. It returns the index of the first entry whose
// snapshot disagrees with the recomputed chain, or -1 if the chain holds.
func VerifyChain(entries []Entry) int {
	prior := decimal.Zero
	for i, e := range entries {
		want := ApplyEntry(prior, e.Credit, e.Debit)
		if !e.RunningBalance.Equal(want) {
			return i
		}
		prior = want
	}
	return -1
}
