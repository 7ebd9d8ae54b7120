package reports_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medbook/pharmacy-ledger/commerce"
	"github.com/medbook/pharmacy-ledger/ledger"
	"github.com/medbook/pharmacy-ledger/reports"
	"github.com/medbook/pharmacy-ledger/store/sqlite"
)

func d(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func newReportFixture(t *testing.T) (*reports.Service, *ledger.Service, *commerce.Service) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ls := ledger.NewService(store)
	cs := commerce.NewService(ls, store)
	return reports.NewService(ls, store), ls, cs
}

func march(day int) time.Time {
	return time.Date(2025, time.March, day, 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// MONTH PARSING
// =============================================================================

func TestParseMonth(t *testing.T) {
	year, month, err := reports.ParseMonth("2025-03")
	require.NoError(t, err)
	assert.Equal(t, 2025, year)
	assert.Equal(t, 3, month)

	for _, bad := range []string{"", "2025", "2025-3", "03-2025", "2025-13", "2025-00", "march"} {
		_, _, err := reports.ParseMonth(bad)
		assert.ErrorIs(t, err, ledger.ErrInvalidMonth, "input %q", bad)
	}
}

// =============================================================================
// MONTHLY SUMMARY
// =============================================================================

func TestMonthly_Summary(t *testing.T) {
	rs, ls, cs := newReportFixture(t)
	ctx := context.Background()

	// February history sets the opening balance for March
	_, err := ls.Record(ctx, ledger.Draft{
		Date: time.Date(2025, time.February, 15, 0, 0, 0, 0, time.UTC),
		Kind: ledger.KindPayment, Method: ledger.MethodCash, Credit: d(10000),
	})
	require.NoError(t, err)

	// March activity
	_, err = ls.Record(ctx, ledger.Draft{Date: march(3), Kind: ledger.KindSale, Method: ledger.MethodCash, Debit: d(4000)})
	require.NoError(t, err)
	_, err = ls.Record(ctx, ledger.Draft{Date: march(5), Kind: ledger.KindPurchase, Debit: d(2500)})
	require.NoError(t, err)
	_, err = ls.Record(ctx, ledger.Draft{Date: march(8), Kind: ledger.KindExpense, Debit: d(300)})
	require.NoError(t, err)
	_, err = ls.Record(ctx, ledger.Draft{Date: march(9), Kind: ledger.KindCommission, Debit: d(120)})
	require.NoError(t, err)
	_, err = ls.Record(ctx, ledger.Draft{Date: march(10), Kind: ledger.KindPayment, Method: ledger.MethodCash, Credit: d(1500)})
	require.NoError(t, err)
	_, err = ls.Record(ctx, ledger.Draft{Date: march(12), Kind: ledger.KindPayment, Method: ledger.MethodJazzCash, Credit: d(800)})
	require.NoError(t, err)

	// Stock on hand values the inventory line
	_, err = cs.CreateProduct(ctx, commerce.Product{
		Name:          "Augmentin 625mg",
		PurchasePrice: d(40),
		SalePrice:     d(55),
		Stock:         10,
	})
	require.NoError(t, err)

	sum, err := rs.Monthly(ctx, 2025, 3)
	require.NoError(t, err)

	assert.True(t, sum.OpeningBalance.Equal(d(10000)), "got %s", sum.OpeningBalance)
	// 10000 - 4000 - 2500 - 300 - 120 + 1500 + 800
	assert.True(t, sum.ClosingBalance.Equal(d(5380)), "got %s", sum.ClosingBalance)

	assert.True(t, sum.Sales.Equal(d(4000)))
	assert.True(t, sum.Purchases.Equal(d(2500)))
	assert.True(t, sum.Expenses.Equal(d(300)))
	assert.True(t, sum.Commissions.Equal(d(120)))
	assert.True(t, sum.Profit.Equal(d(1080)), "got %s", sum.Profit)

	assert.True(t, sum.CashInByMethod[ledger.MethodCash].Equal(d(1500)))
	assert.True(t, sum.CashInByMethod[ledger.MethodJazzCash].Equal(d(800)))

	assert.True(t, sum.StockValue.Equal(d(400)), "got %s", sum.StockValue)
	assert.Equal(t, 6, sum.EntryCount)
}

func TestMonthly_EmptyMonth(t *testing.T) {
	rs, ls, _ := newReportFixture(t)
	ctx := context.Background()

	_, err := ls.Record(ctx, ledger.Draft{
		Date: time.Date(2025, time.January, 10, 0, 0, 0, 0, time.UTC),
		Kind: ledger.KindPayment, Credit: d(500),
	})
	require.NoError(t, err)

	sum, err := rs.Monthly(ctx, 2025, 3)
	require.NoError(t, err)

	// Quiet month: closing carries the opening forward
	assert.True(t, sum.OpeningBalance.Equal(d(500)))
	assert.True(t, sum.ClosingBalance.Equal(d(500)))
	assert.Equal(t, 0, sum.EntryCount)
	assert.True(t, sum.Profit.IsZero())
}
