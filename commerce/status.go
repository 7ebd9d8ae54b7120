package commerce

import "github.com/shopspring/decimal"

// DeriveStatus is the single place order status comes from. An order is
// paid once nothing is outstanding, partial once some cash has arrived,
// and otherwise keeps its prior status. Cancelled orders stay cancelled.
func DeriveStatus(prior OrderStatus, grandTotal, amountReceived, advanceUsed decimal.Decimal) OrderStatus {
	if prior == StatusCancelled {
		return StatusCancelled
	}
	balance := grandTotal.Sub(amountReceived).Sub(advanceUsed)
	switch {
	case balance.LessThanOrEqual(decimal.Zero):
		return StatusPaid
	case amountReceived.IsPositive():
		return StatusPartial
	default:
		return prior
	}
}

// RecalcTotals recomputes the derived Balance field.
func RecalcTotals(t OrderTotals) OrderTotals {
	t.Balance = t.GrandTotal.Sub(t.AmountReceived).Sub(t.AdvanceUsed)
	return t
}
