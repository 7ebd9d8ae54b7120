package commerce_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/medbook/pharmacy-ledger/commerce"
)

func d(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

// =============================================================================
// ADVANCE ALLOCATION TESTS
// =============================================================================

func TestAllocate_AdvanceCoversOrder(t *testing.T) {
	a := commerce.Allocate(d(5000), d(3000))

	assert.True(t, a.AdvanceUsed.Equal(d(3000)))
	assert.True(t, a.BalanceDue.IsZero())
}

func TestAllocate_PartialAdvance(t *testing.T) {
	a := commerce.Allocate(d(2000), d(5000))

	assert.True(t, a.AdvanceUsed.Equal(d(2000)))
	assert.True(t, a.BalanceDue.Equal(d(3000)))
}

func TestAllocate_NoAdvance(t *testing.T) {
	a := commerce.Allocate(decimal.Zero, d(5000))
	assert.True(t, a.AdvanceUsed.IsZero())
	assert.True(t, a.BalanceDue.Equal(d(5000)))

	// An owing customer has nothing to allocate
	a = commerce.Allocate(d(-1200), d(5000))
	assert.True(t, a.AdvanceUsed.IsZero())
	assert.True(t, a.BalanceDue.Equal(d(5000)))
}

func TestAllocate_ExactCover(t *testing.T) {
	a := commerce.Allocate(d(5000), d(5000))

	assert.True(t, a.AdvanceUsed.Equal(d(5000)))
	assert.True(t, a.BalanceDue.IsZero())
}

// =============================================================================
// GRAND TOTAL TESTS
// =============================================================================

func items(lines ...[2]int64) []commerce.OrderItem {
	out := make([]commerce.OrderItem, len(lines))
	for i, l := range lines {
		out[i] = commerce.OrderItem{Quantity: int(l[0]), UnitPrice: d(l[1])}
	}
	return out
}

func TestGrandTotal_NoDiscount(t *testing.T) {
	total := commerce.GrandTotal(items([2]int64{2, 150}, [2]int64{1, 700}), decimal.Zero, commerce.DiscountNone)
	assert.True(t, total.Equal(d(1000)), "got %s", total)
}

func TestGrandTotal_PercentDiscount(t *testing.T) {
	total := commerce.GrandTotal(items([2]int64{1, 1000}), d(10), commerce.DiscountPercent)
	assert.True(t, total.Equal(d(900)), "got %s", total)
}

func TestGrandTotal_PercentClamped(t *testing.T) {
	total := commerce.GrandTotal(items([2]int64{1, 1000}), d(250), commerce.DiscountPercent)
	assert.True(t, total.IsZero(), "discount above 100%% clamps to free, got %s", total)

	total = commerce.GrandTotal(items([2]int64{1, 1000}), d(-10), commerce.DiscountPercent)
	assert.True(t, total.Equal(d(1000)), "negative discount ignored, got %s", total)
}

func TestGrandTotal_FlatDiscount(t *testing.T) {
	total := commerce.GrandTotal(items([2]int64{1, 1000}), d(150), commerce.DiscountFlat)
	assert.True(t, total.Equal(d(850)), "got %s", total)
}

func TestGrandTotal_FlatNeverNegative(t *testing.T) {
	total := commerce.GrandTotal(items([2]int64{1, 100}), d(500), commerce.DiscountFlat)
	assert.True(t, total.IsZero(), "got %s", total)
}
