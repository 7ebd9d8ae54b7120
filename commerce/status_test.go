package commerce_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/medbook/pharmacy-ledger/commerce"
)

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name        string
		prior       commerce.OrderStatus
		grandTotal  int64
		received    int64
		advanceUsed int64
		want        commerce.OrderStatus
	}{
		{"nothing paid stays created", commerce.StatusCreated, 5000, 0, 0, commerce.StatusCreated},
		{"partial cash", commerce.StatusCreated, 5000, 1500, 0, commerce.StatusPartial},
		{"fully paid by cash", commerce.StatusCreated, 5000, 5000, 0, commerce.StatusPaid},
		{"fully covered by advance", commerce.StatusCreated, 5000, 0, 5000, commerce.StatusPaid},
		{"advance plus cash settles", commerce.StatusPartial, 5000, 3000, 2000, commerce.StatusPaid},
		{"advance alone leaves balance", commerce.StatusCreated, 5000, 0, 2000, commerce.StatusCreated},
		{"cancelled stays cancelled", commerce.StatusCancelled, 5000, 5000, 0, commerce.StatusCancelled},
		{"overpayment still paid", commerce.StatusPartial, 5000, 6000, 0, commerce.StatusPaid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := commerce.DeriveStatus(tt.prior,
				decimal.NewFromInt(tt.grandTotal),
				decimal.NewFromInt(tt.received),
				decimal.NewFromInt(tt.advanceUsed))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecalcTotals(t *testing.T) {
	totals := commerce.RecalcTotals(commerce.OrderTotals{
		GrandTotal:     decimal.NewFromInt(5000),
		AmountReceived: decimal.NewFromInt(1500),
		AdvanceUsed:    decimal.NewFromInt(2000),
	})
	assert.True(t, totals.Balance.Equal(decimal.NewFromInt(1500)), "got %s", totals.Balance)
}
