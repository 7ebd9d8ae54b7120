/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

MONEY:
  Amounts cross the wire as JSON numbers and are parsed into
  decimal.Decimal via decimal's own UnmarshalJSON, so "1234.56" and
  1234.56 both round-trip exactly.

VALIDATION:
  Request types carry validator struct tags; handlers run the shared
  validator before touching domain logic. Domain invariants (exactly one
  of credit/debit, stock guards) stay in the domain packages.

SEE ALSO:
  - handlers.go: Uses these types
  - ledger/types.go, commerce/types.go: the domain model
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/medbook/pharmacy-ledger/commerce"
	"github.com/medbook/pharmacy-ledger/ledger"
	"github.com/medbook/pharmacy-ledger/reports"
)

// =============================================================================
// LEDGER TYPES
// =============================================================================

// EntryDTO represents a ledger entry in API responses.
type EntryDTO struct {
	ID             string          `json:"id"`
	TxNumber       string          `json:"tx_number"`
	Date           string          `json:"date"`
	Kind           string          `json:"kind"`
	Method         string          `json:"method,omitempty"`
	Description    string          `json:"description,omitempty"`
	Credit         decimal.Decimal `json:"credit"`
	Debit          decimal.Decimal `json:"debit"`
	RunningBalance decimal.Decimal `json:"running_balance"`
	CustomerID     string          `json:"customer_id,omitempty"`
	OrderID        string          `json:"order_id,omitempty"`
	Note           string          `json:"note,omitempty"`
	CreatedAt      string          `json:"created_at"`
}

// CreateEntryRequest is the request to record a ledger entry.
type CreateEntryRequest struct {
	Date        string          `json:"date" validate:"required"`
	Kind        string          `json:"kind" validate:"required"`
	Method      string          `json:"method,omitempty"`
	Description string          `json:"description,omitempty"`
	Credit      decimal.Decimal `json:"credit"`
	Debit       decimal.Decimal `json:"debit"`
	CustomerID  string          `json:"customer_id,omitempty"`
	Note        string          `json:"note,omitempty"`
}

// UpdateEntryRequest is a partial update; nil fields are left unchanged.
type UpdateEntryRequest struct {
	Date        *string          `json:"date,omitempty"`
	Method      *string          `json:"method,omitempty"`
	Description *string          `json:"description,omitempty"`
	Credit      *decimal.Decimal `json:"credit,omitempty"`
	Debit       *decimal.Decimal `json:"debit,omitempty"`
	Note        *string          `json:"note,omitempty"`
}

// EntryListResponse is one page of ledger entries. OpeningBalance and
// MethodTotals are populated only when the list is filtered to a month.
type EntryListResponse struct {
	Entries        []EntryDTO                 `json:"entries"`
	Total          int                        `json:"total"`
	Page           int                        `json:"page"`
	OpeningBalance *decimal.Decimal           `json:"opening_balance,omitempty"`
	MethodTotals   map[string]decimal.Decimal `json:"method_totals,omitempty"`
}

// =============================================================================
// CUSTOMER TYPES
// =============================================================================

// CustomerDTO represents a customer in API responses.
type CustomerDTO struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Phone     string          `json:"phone,omitempty"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt string          `json:"created_at"`
}

// CreateCustomerRequest is the request to register a customer.
type CreateCustomerRequest struct {
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phone,omitempty"`
}

// BalanceDTO is the ledger-derived position of one customer.
type BalanceDTO struct {
	CustomerID       string          `json:"customer_id"`
	Balance          decimal.Decimal `json:"balance"`
	Position         string          `json:"position"`
	AdvanceAvailable decimal.Decimal `json:"advance_available"`
	SaleDebits       decimal.Decimal `json:"sale_debits"`
	PaymentCredits   decimal.Decimal `json:"payment_credits"`
	AdvanceCredits   decimal.Decimal `json:"advance_credits"`
	AdvanceUsed      decimal.Decimal `json:"advance_used"`
}

// ReconciliationDTO reports cached-vs-derived balance agreement.
type ReconciliationDTO struct {
	CustomerID string          `json:"customer_id"`
	Derived    decimal.Decimal `json:"derived"`
	Cached     decimal.Decimal `json:"cached"`
	InSync     bool            `json:"in_sync"`
}

// =============================================================================
// INVENTORY TYPES
// =============================================================================

// CategoryDTO represents a product category.
type CategoryDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CreateCategoryRequest is the request to create a category.
type CreateCategoryRequest struct {
	Name string `json:"name" validate:"required"`
}

// ProductDTO represents a product in API responses.
type ProductDTO struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	CategoryID    string          `json:"category_id,omitempty"`
	SalePrice     decimal.Decimal `json:"sale_price"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	Stock         int             `json:"stock"`
}

// CreateProductRequest is the request to create a product.
type CreateProductRequest struct {
	Name          string          `json:"name" validate:"required"`
	CategoryID    string          `json:"category_id,omitempty"`
	SalePrice     decimal.Decimal `json:"sale_price"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	Stock         int             `json:"stock" validate:"gte=0"`
}

// =============================================================================
// ORDER TYPES
// =============================================================================

// OrderItemDTO is one order line.
type OrderItemDTO struct {
	ProductID string          `json:"product_id" validate:"required"`
	Name      string          `json:"name,omitempty"`
	Quantity  int             `json:"quantity" validate:"gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// CreateOrderRequest is the request to create an order.
type CreateOrderRequest struct {
	CustomerID     string          `json:"customer_id" validate:"required"`
	Items          []OrderItemDTO  `json:"items" validate:"required,min=1,dive"`
	Discount       decimal.Decimal `json:"discount"`
	DiscountType   string          `json:"discount_type,omitempty" validate:"omitempty,oneof=percent flat"`
	AmountReceived decimal.Decimal `json:"amount_received"`
	Method         string          `json:"method,omitempty"`
}

// OrderDTO represents an order in API responses.
type OrderDTO struct {
	ID             string          `json:"id"`
	CustomerID     string          `json:"customer_id"`
	Items          []OrderItemDTO  `json:"items"`
	Discount       decimal.Decimal `json:"discount"`
	DiscountType   string          `json:"discount_type,omitempty"`
	GrandTotal     decimal.Decimal `json:"grand_total"`
	AmountReceived decimal.Decimal `json:"amount_received"`
	AdvanceUsed    decimal.Decimal `json:"advance_used"`
	Balance        decimal.Decimal `json:"balance"`
	Status         string          `json:"status"`
	CreatedAt      string          `json:"created_at"`
}

// PaymentRequest is the request to record a payment, against an order or
// directly against a customer.
type PaymentRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required"`
	Method string          `json:"method,omitempty"`
}

// PaymentResponseDTO is returned after recording a payment.
type PaymentResponseDTO struct {
	Entry   EntryDTO   `json:"entry"`
	Order   *OrderDTO  `json:"order,omitempty"`
	Balance BalanceDTO `json:"balance"`
}

// =============================================================================
// REPORT TYPES
// =============================================================================

// MonthlySummaryDTO is the monthly report.
type MonthlySummaryDTO struct {
	Month          string                     `json:"month"`
	OpeningBalance decimal.Decimal            `json:"opening_balance"`
	ClosingBalance decimal.Decimal            `json:"closing_balance"`
	CashInByMethod map[string]decimal.Decimal `json:"cash_in_by_method"`
	Sales          decimal.Decimal            `json:"sales"`
	Purchases      decimal.Decimal            `json:"purchases"`
	Expenses       decimal.Decimal            `json:"expenses"`
	Commissions    decimal.Decimal            `json:"commissions"`
	StockValue     decimal.Decimal            `json:"stock_value"`
	Profit         decimal.Decimal            `json:"profit"`
	EntryCount     int                        `json:"entry_count"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toEntryDTO(e ledger.Entry) EntryDTO {
	return EntryDTO{
		ID:             string(e.ID),
		TxNumber:       e.SequenceLabel,
		Date:           e.Date.Format("2006-01-02"),
		Kind:           string(e.Kind),
		Method:         string(e.Method),
		Description:    e.Description,
		Credit:         e.Credit,
		Debit:          e.Debit,
		RunningBalance: e.RunningBalance,
		CustomerID:     e.Reference.CustomerID,
		OrderID:        e.Reference.OrderID,
		Note:           e.Reference.Note,
		CreatedAt:      e.CreatedAt.Format(time.RFC3339),
	}
}

func toEntryDTOs(entries []ledger.Entry) []EntryDTO {
	dtos := make([]EntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toEntryDTO(e)
	}
	return dtos
}

func toCustomerDTO(c commerce.Customer) CustomerDTO {
	return CustomerDTO{
		ID:        c.ID,
		Name:      c.Name,
		Phone:     c.Phone,
		Balance:   c.Balance,
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
	}
}

func toBalanceDTO(b ledger.Balance) BalanceDTO {
	return BalanceDTO{
		CustomerID:       b.CustomerID,
		Balance:          b.Current,
		Position:         string(b.Position()),
		AdvanceAvailable: b.AdvanceAvailable(),
		SaleDebits:       b.SaleDebits,
		PaymentCredits:   b.PaymentCredits,
		AdvanceCredits:   b.AdvanceCredits,
		AdvanceUsed:      b.AdvanceAllocations,
	}
}

func toProductDTO(p commerce.Product) ProductDTO {
	return ProductDTO{
		ID:            p.ID,
		Name:          p.Name,
		CategoryID:    p.CategoryID,
		SalePrice:     p.SalePrice,
		PurchasePrice: p.PurchasePrice,
		Stock:         p.Stock,
	}
}

func toOrderDTO(o commerce.Order) OrderDTO {
	items := make([]OrderItemDTO, len(o.Items))
	for i, item := range o.Items {
		items[i] = OrderItemDTO{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
	}
	return OrderDTO{
		ID:             o.ID,
		CustomerID:     o.CustomerID,
		Items:          items,
		Discount:       o.Discount,
		DiscountType:   string(o.DiscountType),
		GrandTotal:     o.Totals.GrandTotal,
		AmountReceived: o.Totals.AmountReceived,
		AdvanceUsed:    o.Totals.AdvanceUsed,
		Balance:        o.Totals.Balance,
		Status:         string(o.Status),
		CreatedAt:      o.CreatedAt.Format(time.RFC3339),
	}
}

func toMonthlySummaryDTO(s reports.Summary) MonthlySummaryDTO {
	byMethod := make(map[string]decimal.Decimal, len(s.CashInByMethod))
	for m, v := range s.CashInByMethod {
		byMethod[string(m)] = v
	}
	return MonthlySummaryDTO{
		Month:          formatMonth(s.Year, s.Month),
		OpeningBalance: s.OpeningBalance,
		ClosingBalance: s.ClosingBalance,
		CashInByMethod: byMethod,
		Sales:          s.Sales,
		Purchases:      s.Purchases,
		Expenses:       s.Expenses,
		Commissions:    s.Commissions,
		StockValue:     s.StockValue,
		Profit:         s.Profit,
		EntryCount:     s.EntryCount,
	}
}
