/*
Package commerce implements the retail side of the shop: customers,
products, orders and payments, all settling into the cash ledger.

PURPOSE:
  An order or a payment is never just its own record — it is one or two
  ledger entries plus a stock movement plus a cached customer balance, and
  all of those must move together. This package owns that choreography:
  the advance allocator, the stock guard, order status derivation, and the
  cached-balance reconciliation contract.

KEY CONCEPTS IN THIS FILE (types.go):
  - Customer: holds a cached balance that must always equal the value
    derived from the ledger (ledger.ComputeBalance)
  - Product/Category: stock-tracked inventory
  - Order: line items, discount, running totals and a derived status

SEE ALSO:
  - allocator.go: advance auto-allocation math
  - service.go: the transactional order/payment flows
  - status.go: the one place order status is derived
*/
package commerce

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/medbook/pharmacy-ledger/ledger"
)

// =============================================================================
// CUSTOMERS
// =============================================================================

// Customer is a shop customer. Balance is a cached copy of the ledger-derived
// net position: positive means the customer holds advance credit, negative
// means they owe the shop. The ledger is the source of truth; this field is
// resynced after every mutating operation.
type Customer struct {
	ID        string
	Name      string
	Phone     string
	Balance   decimal.Decimal
	CreatedAt time.Time
}

// =============================================================================
// INVENTORY
// =============================================================================

// Category groups products. Names are unique.
type Category struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Product is a stock-tracked inventory item. Names are unique.
type Product struct {
	ID            string
	Name          string
	CategoryID    string
	SalePrice     decimal.Decimal
	PurchasePrice decimal.Decimal
	Stock         int
	CreatedAt     time.Time
}

// =============================================================================
// ORDERS
// =============================================================================

// OrderStatus is derived from the order's totals, never set directly.
type OrderStatus string

const (
	StatusCreated   OrderStatus = "created"
	StatusPartial   OrderStatus = "partial"
	StatusPaid      OrderStatus = "paid"
	StatusCancelled OrderStatus = "cancelled"
)

// DiscountType selects how an order-level discount is interpreted.
type DiscountType string

const (
	DiscountNone    DiscountType = ""
	DiscountPercent DiscountType = "percent"
	DiscountFlat    DiscountType = "flat"
)

// OrderItem is one line of an order. UnitPrice is captured at order time so
// later price changes don't rewrite history.
type OrderItem struct {
	ProductID string
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
}

// LineTotal returns quantity times unit price.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// OrderTotals tracks how an order gets settled.
// Balance = GrandTotal - AmountReceived - AdvanceUsed.
type OrderTotals struct {
	GrandTotal     decimal.Decimal
	AmountReceived decimal.Decimal
	AdvanceUsed    decimal.Decimal
	Balance        decimal.Decimal
}

// Order is an on-account or cash sale. SaleEntryID and AllocationEntryID
// point at the ledger entries written when the order was created, so
// cancellation can reverse them.
type Order struct {
	ID           string
	CustomerID   string
	Items        []OrderItem
	Discount     decimal.Decimal
	DiscountType DiscountType
	Totals       OrderTotals
	Status       OrderStatus

	SaleEntryID       ledger.EntryID
	AllocationEntryID ledger.EntryID

	CreatedAt time.Time
}
