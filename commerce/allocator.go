/*
allocator.go - Advance auto-allocation

PURPOSE:
  When a customer with advance credit places an order, part or all of that
  credit is applied automatically before any cash is due. These functions
  are pure math; the transactional flow around them lives in service.go.

LEDGER CONVENTION:
  An allocation becomes an advance-kind entry with debit = AdvanceUsed.
  The balance calculator nets allocation debits against sale debits, so
  recording them as credits would double-count the advance — once when
  given, once when spent.
*/
package commerce

import "github.com/shopspring/decimal"

// Allocation is the outcome of applying a customer's advance to an order.
type Allocation struct {
	GrandTotal  decimal.Decimal
	AdvanceUsed decimal.Decimal
	BalanceDue  decimal.Decimal
}

// Allocate decides how much advance covers a new order:
//
//	advance >= total     -> fully covered, nothing due
//	0 < advance < total  -> partially covered
//	advance <= 0         -> nothing applied, full total due
func Allocate(advanceAvailable, grandTotal decimal.Decimal) Allocation {
	used := decimal.Zero
	if advanceAvailable.IsPositive() {
		used = decimal.Min(advanceAvailable, grandTotal)
	}
	return Allocation{
		GrandTotal:  grandTotal,
		AdvanceUsed: used,
		BalanceDue:  grandTotal.Sub(used),
	}
}

// GrandTotal sums the line items and applies the order-level discount.
// Percentage discounts are clamped to [0,100]; flat discounts never push
// the total below zero.
func GrandTotal(items []OrderItem, discount decimal.Decimal, dt DiscountType) decimal.Decimal {
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.LineTotal())
	}

	switch dt {
	case DiscountPercent:
		pct := discount
		if pct.IsNegative() {
			pct = decimal.Zero
		}
		hundred := decimal.NewFromInt(100)
		if pct.GreaterThan(hundred) {
			pct = hundred
		}
		subtotal = subtotal.Sub(subtotal.Mul(pct).Div(hundred))
	case DiscountFlat:
		if discount.IsPositive() {
			subtotal = subtotal.Sub(discount)
		}
	}

	if subtotal.IsNegative() {
		return decimal.Zero
	}
	return subtotal
}
