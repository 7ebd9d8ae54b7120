/*
Package reports aggregates the ledger into the monthly summary the shop
closes its books with: opening and closing cash, cash-in by payment
method, per-kind totals, current stock value and a rough profit figure.

Everything here is derived; the ledger entries and product records are the
only inputs, so a summary can be regenerated for any past month.
*/
package reports

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/medbook/pharmacy-ledger/commerce"
	"github.com/medbook/pharmacy-ledger/ledger"
)

// Summary is one month's books.
type Summary struct {
	Year  int
	Month int

	OpeningBalance decimal.Decimal
	ClosingBalance decimal.Decimal

	CashInByMethod map[ledger.Method]decimal.Decimal

	Sales       decimal.Decimal
	Purchases   decimal.Decimal
	Expenses    decimal.Decimal
	Commissions decimal.Decimal

	StockValue decimal.Decimal
	Profit     decimal.Decimal

	EntryCount int
}

// Service computes monthly summaries.
type Service struct {
	ledger *ledger.Service
	store  commerce.Store
}

// NewService creates a reports service.
func NewService(ls *ledger.Service, store commerce.Store) *Service {
	return &Service{ledger: ls, store: store}
}

var monthPattern = regexp.MustCompile(`^(\d{4})-(\d{2})$`)

// ParseMonth validates a YYYY-MM filter and splits it.
func ParseMonth(s string) (year, month int, err error) {
	m := monthPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, ledger.ErrInvalidMonth
	}
	year, _ = strconv.Atoi(m[1])
	month, _ = strconv.Atoi(m[2])
	if month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("%w: month %02d out of range", ledger.ErrInvalidMonth, month)
	}
	return year, month, nil
}

// Monthly builds the summary for one calendar month.
func (s *Service) Monthly(ctx context.Context, year, month int) (Summary, error) {
	opening, err := s.ledger.OpeningBalance(ctx, year, month)
	if err != nil {
		return Summary{}, err
	}
	entries, err := s.ledger.MonthEntries(ctx, year, month)
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{
		Year:           year,
		Month:          month,
		OpeningBalance: opening,
		ClosingBalance: opening,
		CashInByMethod: make(map[ledger.Method]decimal.Decimal),
	}

	for _, e := range entries {
		if e.Credit.IsPositive() {
			m := e.Method
			if m == "" {
				m = ledger.MethodOther
			}
			sum.CashInByMethod[m] = sum.CashInByMethod[m].Add(e.Credit)
		}
		switch e.Kind {
		case ledger.KindSale:
			sum.Sales = sum.Sales.Add(e.Debit)
		case ledger.KindPurchase:
			sum.Purchases = sum.Purchases.Add(e.Debit)
		case ledger.KindExpense:
			sum.Expenses = sum.Expenses.Add(e.Debit)
		case ledger.KindCommission:
			sum.Commissions = sum.Commissions.Add(e.Debit)
		}
	}
	sum.EntryCount = len(entries)

	// The chain makes closing balance the last snapshot of the month.
	if len(entries) > 0 {
		sum.ClosingBalance = entries[len(entries)-1].RunningBalance
	}

	products, err := s.store.ListProducts(ctx)
	if err != nil {
		return Summary{}, err
	}
	for _, p := range products {
		sum.StockValue = sum.StockValue.Add(
			p.PurchasePrice.Mul(decimal.NewFromInt(int64(p.Stock))))
	}

	sum.Profit = sum.Sales.Sub(sum.Purchases).Sub(sum.Expenses).Sub(sum.Commissions)
	return sum, nil
}
