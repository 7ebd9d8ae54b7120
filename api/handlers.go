/*
handlers.go - HTTP API handlers for the pharmacy ledger

PURPOSE:
  Exposes the ledger and commerce services via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Ledger:
    GET    /api/transactions            List entries (filters, paging)
    POST   /api/transactions            Record an entry
    GET    /api/transactions/{id}       Get one entry
    PATCH  /api/transactions/{id}       Amend an entry (chain repaired)
    DELETE /api/transactions/{id}       Delete an entry (chain repaired)

  Customers:
    GET    /api/customers               List customers
    POST   /api/customers               Register a customer
    GET    /api/customers/{id}          Get customer details
    GET    /api/customers/{id}/balance  Ledger-derived position
    GET    /api/customers/{id}/ledger   Customer's entries, chronological
    POST   /api/customers/{id}/payments Record a direct payment
    POST   /api/customers/{id}/reconcile Compare cached vs derived balance

  Inventory:
    GET/POST /api/categories
    GET/POST /api/products, GET /api/products/{id}

  Orders:
    GET    /api/orders                  List orders (?customer_id=)
    POST   /api/orders                  Create order (advance auto-applied)
    GET    /api/orders/{id}             Get one order
    POST   /api/orders/{id}/payments    Pay against an order
    POST   /api/orders/{id}/cancel      Cancel, restoring stock and ledger

  Reports:
    GET    /api/reports/monthly?month=YYYY-MM

ERROR HANDLING:
  Domain errors map to HTTP status in one place (writeDomainError):
  - 400: Validation errors, overpayment, state conflicts (settled/cancelled
         orders)
  - 404: Not found
  - 409: Conflicts (duplicate names, insufficient stock)
  - 500: Internal errors (never leak details)

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/medbook/pharmacy-ledger/commerce"
	"github.com/medbook/pharmacy-ledger/ledger"
	"github.com/medbook/pharmacy-ledger/obs"
	"github.com/medbook/pharmacy-ledger/reports"
)

const dateLayout = "2006-01-02"

var validate = validator.New()

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Ledger   *ledger.Service
	Commerce *commerce.Service
	Reports  *reports.Service

	log *logrus.Logger
}

// NewHandler creates a new handler over the given services.
func NewHandler(ls *ledger.Service, cs *commerce.Service, rs *reports.Service) *Handler {
	return &Handler{
		Ledger:   ls,
		Commerce: cs,
		Reports:  rs,
		log:      obs.Logger(),
	}
}

// =============================================================================
// LEDGER HANDLERS
// =============================================================================

// ListTransactions returns one page of ledger entries, newest first.
// When filtered to a month, the response also carries the opening balance
// and per-method cash-in totals for that month.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	f := ledger.ListFilter{
		Kind:   ledger.Kind(q.Get("kind")),
		Method: ledger.Method(q.Get("method")),
		Query:  q.Get("q"),
	}
	f.Page, _ = strconv.Atoi(q.Get("page"))
	f.Limit, _ = strconv.Atoi(q.Get("limit"))

	if month := q.Get("month"); month != "" {
		year, m, err := reports.ParseMonth(month)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		f.Year, f.Month = year, m
	}

	entries, total, err := h.Ledger.List(ctx, f)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := EntryListResponse{
		Entries: toEntryDTOs(entries),
		Total:   total,
		Page:    max(f.Page, 1),
	}

	if f.Year != 0 {
		opening, err := h.Ledger.OpeningBalance(ctx, f.Year, f.Month)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		resp.OpeningBalance = &opening

		totals, err := h.Ledger.MethodTotals(ctx, f.Year, f.Month)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		resp.MethodTotals = make(map[string]decimal.Decimal, len(totals))
		for m, v := range totals {
			resp.MethodTotals[string(m)] = v
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// CreateTransaction records a new ledger entry.
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req CreateEntryRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date: expected YYYY-MM-DD", err)
		return
	}

	entry, err := h.Commerce.RecordTransaction(r.Context(), ledger.Draft{
		Date:        date,
		Kind:        ledger.Kind(req.Kind),
		Method:      ledger.Method(req.Method),
		Description: req.Description,
		Credit:      req.Credit,
		Debit:       req.Debit,
		Reference: ledger.Reference{
			CustomerID: req.CustomerID,
			Note:       req.Note,
		},
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toEntryDTO(entry))
}

// GetTransaction returns a single entry.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	entry, err := h.Ledger.Get(r.Context(), ledger.EntryID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(entry))
}

// UpdateTransaction amends an entry. Amount changes shift later running
// balances; date changes rebuild the chain.
func (h *Handler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req UpdateEntryRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	var a ledger.Amendment
	if req.Date != nil {
		date, err := time.Parse(dateLayout, *req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date: expected YYYY-MM-DD", err)
			return
		}
		a.Date = &date
	}
	if req.Method != nil {
		m := ledger.Method(*req.Method)
		a.Method = &m
	}
	a.Description = req.Description
	a.Credit = req.Credit
	a.Debit = req.Debit
	a.Note = req.Note

	entry, err := h.Commerce.AmendTransaction(r.Context(), ledger.EntryID(chi.URLParam(r, "id")), a)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(entry))
}

// DeleteTransaction removes an entry and repairs the chain.
func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := h.Commerce.RemoveTransaction(r.Context(), ledger.EntryID(chi.URLParam(r, "id"))); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// CUSTOMER HANDLERS
// =============================================================================

// ListCustomers returns all customers.
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.Commerce.ListCustomers(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]CustomerDTO, len(customers))
	for i, c := range customers {
		dtos[i] = toCustomerDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateCustomer registers a new customer.
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req CreateCustomerRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	c, err := h.Commerce.CreateCustomer(r.Context(), req.Name, req.Phone)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCustomerDTO(c))
}

// GetCustomer returns a single customer.
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := h.Commerce.GetCustomer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerDTO(c))
}

// GetCustomerBalance returns the ledger-derived position.
// ListBalances returns the derived balance for one customer when the
// customerId query parameter is set, or for every customer when it is not.
func (h *Handler) ListBalances(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if id := r.URL.Query().Get("customerId"); id != "" {
		b, err := h.Commerce.CustomerBalance(ctx, id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toBalanceDTO(b))
		return
	}

	customers, err := h.Commerce.ListCustomers(ctx)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	balances := make([]BalanceDTO, 0, len(customers))
	for _, c := range customers {
		b, err := h.Commerce.CustomerBalance(ctx, c.ID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		balances = append(balances, toBalanceDTO(b))
	}
	writeJSON(w, http.StatusOK, balances)
}

func (h *Handler) GetCustomerBalance(w http.ResponseWriter, r *http.Request) {
	b, err := h.Commerce.CustomerBalance(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(b))
}

// GetCustomerLedger returns the customer's entries, chronological.
func (h *Handler) GetCustomerLedger(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.Commerce.GetCustomer(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}

	entries, err := h.Commerce.CustomerEntries(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTOs(entries))
}

// CreateCustomerPayment records a payment not tied to any order. Whether
// it lands as settlement or advance depends on the customer's position.
func (h *Handler) CreateCustomerPayment(w http.ResponseWriter, r *http.Request) {
	var req PaymentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.Commerce.RecordCustomerPayment(r.Context(),
		chi.URLParam(r, "id"), req.Amount, ledger.Method(req.Method))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentResponse(result))
}

// ReconcileCustomer compares and resyncs the cached balance.
func (h *Handler) ReconcileCustomer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := h.Commerce.Reconcile(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if !rec.InSync {
		h.log.WithFields(logrus.Fields{
			"customer_id": id,
			"derived":     rec.Derived.Current.String(),
			"cached":      rec.Cached.String(),
		}).Warn("cached balance drifted, resynced")
	}

	writeJSON(w, http.StatusOK, ReconciliationDTO{
		CustomerID: id,
		Derived:    rec.Derived.Current,
		Cached:     rec.Cached,
		InSync:     rec.InSync,
	})
}

// =============================================================================
// INVENTORY HANDLERS
// =============================================================================

// ListCategories returns all categories.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.Commerce.ListCategories(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]CategoryDTO, len(categories))
	for i, c := range categories {
		dtos[i] = CategoryDTO{ID: c.ID, Name: c.Name}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateCategory creates a category.
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	c, err := h.Commerce.CreateCategory(r.Context(), req.Name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CategoryDTO{ID: c.ID, Name: c.Name})
}

// ListProducts returns all products.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.Commerce.ListProducts(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]ProductDTO, len(products))
	for i, p := range products {
		dtos[i] = toProductDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateProduct creates a product.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	p, err := h.Commerce.CreateProduct(r.Context(), commerce.Product{
		Name:          req.Name,
		CategoryID:    req.CategoryID,
		SalePrice:     req.SalePrice,
		PurchasePrice: req.PurchasePrice,
		Stock:         req.Stock,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductDTO(p))
}

// GetProduct returns a single product.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.Commerce.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTO(p))
}

// =============================================================================
// ORDER HANDLERS
// =============================================================================

// ListOrders returns orders, optionally filtered by customer.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Commerce.ListOrders(r.Context(), r.URL.Query().Get("customer_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]OrderDTO, len(orders))
	for i, o := range orders {
		dtos[i] = toOrderDTO(o)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateOrder creates an order. Available advance credit is applied
// automatically; any cash received settles the remainder.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	items := make([]commerce.OrderItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = commerce.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
	}

	order, err := h.Commerce.CreateOrder(r.Context(), commerce.OrderRequest{
		CustomerID:     req.CustomerID,
		Items:          items,
		Discount:       req.Discount,
		DiscountType:   commerce.DiscountType(req.DiscountType),
		AmountReceived: req.AmountReceived,
		Method:         ledger.Method(req.Method),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderDTO(order))
}

// GetOrder returns a single order.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.Commerce.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTO(order))
}

// CreateOrderPayment pays against an order's outstanding balance.
func (h *Handler) CreateOrderPayment(w http.ResponseWriter, r *http.Request) {
	var req PaymentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.Commerce.RecordOrderPayment(r.Context(),
		chi.URLParam(r, "id"), req.Amount, ledger.Method(req.Method))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentResponse(result))
}

// CancelOrder cancels an order, restoring stock and reversing its ledger
// entries.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.Commerce.CancelOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTO(order))
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// GetMonthlyReport returns the monthly summary for ?month=YYYY-MM.
func (h *Handler) GetMonthlyReport(w http.ResponseWriter, r *http.Request) {
	year, month, err := reports.ParseMonth(r.URL.Query().Get("month"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	summary, err := h.Reports.Monthly(r.Context(), year, month)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMonthlySummaryDTO(summary))
}

// =============================================================================
// HELPERS
// =============================================================================

func toPaymentResponse(result commerce.PaymentResult) PaymentResponseDTO {
	resp := PaymentResponseDTO{
		Entry:   toEntryDTO(result.Entry),
		Balance: toBalanceDTO(result.Balance),
	}
	if result.Order != nil {
		dto := toOrderDTO(*result.Order)
		resp.Order = &dto
	}
	return resp
}

func formatMonth(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

// decodeAndValidate parses the JSON body into dst and runs struct
// validation; on failure it writes the error response and returns false.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed", err)
		return false
	}
	return true
}

// writeDomainError maps domain errors to HTTP status codes in one place.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case ledger.IsNotFound(err) || commerce.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	case commerce.IsConflict(err):
		writeError(w, http.StatusConflict, err.Error(), nil)
	case ledger.IsValidation(err) || commerce.IsValidation(err) || commerce.IsStateConflict(err):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	default:
		obs.Logger().WithError(err).Error("internal error")
		writeError(w, http.StatusInternalServerError, "internal error", nil)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
