/*
service.go - Transactional order and payment flows

PURPOSE:
  Implements the read-balance / allocate / write-entries / resync-cache
  sequences. Each customer-scoped sequence runs under that customer's lock
  AND inside one storage transaction, so two simultaneous orders cannot
  both spend the same advance, and a failure anywhere rolls back stock,
  order and ledger writes together.

LOCK ORDER:
  customer lock -> ledger chain lock (via WithChain). Always in that
  order; nothing acquires a customer lock while holding the chain.

CACHED BALANCES:
  After every mutating flow the customer's cached balance is recomputed
  from the ledger inside the same transaction. The cache is written, never
  read, by this package — reads always go through the calculator.
*/
package commerce

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/medbook/pharmacy-ledger/ledger"
)

// OrderRequest is the input to CreateOrder.
type OrderRequest struct {
	CustomerID   string
	Items        []OrderItem
	Discount     decimal.Decimal
	DiscountType DiscountType
	// AmountReceived is cash handed over at the counter, applied after any
	// advance allocation. Zero for pure on-account orders.
	AmountReceived decimal.Decimal
	Method         ledger.Method
}

// PaymentResult is returned by the payment flows.
type PaymentResult struct {
	Entry   ledger.Entry
	Order   *Order // nil for direct customer payments
	Balance ledger.Balance
}

// Reconciliation compares the ledger-derived balance with the cached copy.
type Reconciliation struct {
	Derived ledger.Balance
	Cached  decimal.Decimal
	InSync  bool
}

// Service runs the commerce flows. One instance per ledger.
type Service struct {
	ledger *ledger.Service
	store  Store

	// Per-customer locks, created on first use. Grounded on the shop being
	// small: the map only ever grows, one mutex per customer seen.
	mu    sync.Mutex
	locks map[string]*sync.Mutex

	now func() time.Time
}

// NewService creates a commerce service sharing the ledger service's store.
func NewService(ls *ledger.Service, store Store) *Service {
	return &Service{
		ledger: ls,
		store:  store,
		locks:  make(map[string]*sync.Mutex),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) customerLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.locks[id]; !ok {
		s.locks[id] = &sync.Mutex{}
	}
	return s.locks[id]
}

// commerceStore asserts the transaction-bound ledger store back to the full
// commerce interface. The sqlite store satisfies both; a ledger-only store
// cannot run commerce flows.
func commerceStore(st ledger.Store) (Store, error) {
	cs, ok := st.(Store)
	if !ok {
		return nil, ErrStoreRequired
	}
	return cs, nil
}

// =============================================================================
// CUSTOMERS / INVENTORY (thin CRUD)
// =============================================================================

// CreateCustomer registers a customer with a zero balance.
func (s *Service) CreateCustomer(ctx context.Context, name, phone string) (Customer, error) {
	c := Customer{
		ID:        uuid.NewString(),
		Name:      name,
		Phone:     phone,
		Balance:   decimal.Zero,
		CreatedAt: s.now(),
	}
	if err := s.store.SaveCustomer(ctx, c); err != nil {
		return Customer{}, err
	}
	return c, nil
}

// GetCustomer returns a customer by id.
func (s *Service) GetCustomer(ctx context.Context, id string) (Customer, error) {
	return s.store.GetCustomer(ctx, id)
}

// ListCustomers returns all customers.
func (s *Service) ListCustomers(ctx context.Context) ([]Customer, error) {
	return s.store.ListCustomers(ctx)
}

// CreateCategory registers a category. Duplicate names are rejected.
func (s *Service) CreateCategory(ctx context.Context, name string) (Category, error) {
	c := Category{ID: uuid.NewString(), Name: name, CreatedAt: s.now()}
	if err := s.store.SaveCategory(ctx, c); err != nil {
		return Category{}, err
	}
	return c, nil
}

// ListCategories returns all categories.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	return s.store.ListCategories(ctx)
}

// CreateProduct registers a product. Duplicate names are rejected.
func (s *Service) CreateProduct(ctx context.Context, p Product) (Product, error) {
	p.ID = uuid.NewString()
	p.CreatedAt = s.now()
	if err := s.store.SaveProduct(ctx, p); err != nil {
		return Product{}, err
	}
	return p, nil
}

// GetProduct returns a product by id.
func (s *Service) GetProduct(ctx context.Context, id string) (Product, error) {
	return s.store.GetProduct(ctx, id)
}

// ListProducts returns all products.
func (s *Service) ListProducts(ctx context.Context) ([]Product, error) {
	return s.store.ListProducts(ctx)
}

// GetOrder returns an order by id.
func (s *Service) GetOrder(ctx context.Context, id string) (Order, error) {
	return s.store.GetOrder(ctx, id)
}

// ListOrders returns orders, optionally scoped to one customer.
func (s *Service) ListOrders(ctx context.Context, customerID string) ([]Order, error) {
	return s.store.ListOrders(ctx, customerID)
}

// =============================================================================
// ORDER CREATION
// =============================================================================

// CreateOrder runs the full on-account order flow: stock guard, advance
// allocation, sale + allocation ledger entries, stock decrement, cached
// balance resync. All or nothing.
func (s *Service) CreateOrder(ctx context.Context, req OrderRequest) (Order, error) {
	if len(req.Items) == 0 {
		return Order{}, ErrEmptyOrder
	}
	for _, it := range req.Items {
		if it.Quantity <= 0 {
			return Order{}, ErrInvalidQuantity
		}
	}

	lock := s.customerLock(req.CustomerID)
	lock.Lock()
	defer lock.Unlock()

	var out Order
	err := s.ledger.WithChain(ctx, func(lst ledger.Store) error {
		st, err := commerceStore(lst)
		if err != nil {
			return err
		}

		customer, err := st.GetCustomer(ctx, req.CustomerID)
		if err != nil {
			return err
		}

		// Stock guard: verify every line before touching anything.
		items := make([]OrderItem, len(req.Items))
		for i, it := range req.Items {
			p, err := st.GetProduct(ctx, it.ProductID)
			if err != nil {
				return err
			}
			if p.Stock < it.Quantity {
				return &InsufficientStockError{
					ProductID: p.ID,
					Name:      p.Name,
					Requested: it.Quantity,
					Available: p.Stock,
				}
			}
			items[i] = it
			items[i].Name = p.Name
			if items[i].UnitPrice.IsZero() {
				items[i].UnitPrice = p.SalePrice
			}
		}

		grandTotal := GrandTotal(items, req.Discount, req.DiscountType)

		entries, err := st.EntriesForCustomer(ctx, customer.ID)
		if err != nil {
			return err
		}
		balance := ledger.ComputeBalance(customer.ID, entries)
		alloc := Allocate(balance.AdvanceAvailable(), grandTotal)

		received := req.AmountReceived
		if received.IsNegative() {
			return ErrPaymentNotPositive
		}
		if received.GreaterThan(alloc.BalanceDue) {
			return &PaymentExceedsBalanceError{
				Requested:   received,
				Outstanding: alloc.BalanceDue,
			}
		}

		for _, it := range items {
			if err := st.AdjustStock(ctx, it.ProductID, -it.Quantity); err != nil {
				return err
			}
		}

		order := Order{
			ID:           uuid.NewString(),
			CustomerID:   customer.ID,
			Items:        items,
			Discount:     req.Discount,
			DiscountType: req.DiscountType,
			CreatedAt:    s.now(),
		}

		// Gross obligation first, so the sale debit precedes the allocation
		// on the chain.
		saleEntry, err := s.ledger.RecordIn(ctx, lst, ledger.Draft{
			Kind:        ledger.KindSale,
			Method:      req.Method,
			Description: "sale to " + customer.Name,
			Debit:       grandTotal,
			Reference:   ledger.Reference{CustomerID: customer.ID, OrderID: order.ID},
		})
		if err != nil {
			return err
		}
		order.SaleEntryID = saleEntry.ID

		if alloc.AdvanceUsed.IsPositive() {
			allocEntry, err := s.ledger.RecordIn(ctx, lst, ledger.Draft{
				Kind:        ledger.KindAdvance,
				Method:      ledger.MethodAdvance,
				Description: "advance applied to order",
				Debit:       alloc.AdvanceUsed,
				Reference:   ledger.Reference{CustomerID: customer.ID, OrderID: order.ID},
			})
			if err != nil {
				return err
			}
			order.AllocationEntryID = allocEntry.ID
		}

		if received.IsPositive() {
			if _, err := s.ledger.RecordIn(ctx, lst, ledger.Draft{
				Kind:        ledger.KindPayment,
				Method:      req.Method,
				Description: "payment with order",
				Credit:      received,
				Reference:   ledger.Reference{CustomerID: customer.ID, OrderID: order.ID},
			}); err != nil {
				return err
			}
		}

		order.Totals = RecalcTotals(OrderTotals{
			GrandTotal:     grandTotal,
			AmountReceived: received,
			AdvanceUsed:    alloc.AdvanceUsed,
		})
		order.Status = DeriveStatus(StatusCreated, grandTotal, received, alloc.AdvanceUsed)

		if err := st.SaveOrder(ctx, order); err != nil {
			return err
		}
		if err := s.resyncBalance(ctx, st, customer.ID); err != nil {
			return err
		}
		out = order
		return nil
	})
	return out, err
}

// =============================================================================
// PAYMENTS
// =============================================================================

// RecordOrderPayment applies a payment against an order's outstanding
// balance.
func (s *Service) RecordOrderPayment(ctx context.Context, orderID string, amount decimal.Decimal, method ledger.Method) (PaymentResult, error) {
	if !amount.IsPositive() {
		return PaymentResult{}, ErrPaymentNotPositive
	}

	// The order's customer is unknown until the order is loaded; a quick
	// unlocked read fetches it, then the locked flow re-reads everything.
	peek, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return PaymentResult{}, err
	}

	lock := s.customerLock(peek.CustomerID)
	lock.Lock()
	defer lock.Unlock()

	var out PaymentResult
	err = s.ledger.WithChain(ctx, func(lst ledger.Store) error {
		st, err := commerceStore(lst)
		if err != nil {
			return err
		}

		order, err := st.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		switch order.Status {
		case StatusPaid:
			return ErrOrderSettled
		case StatusCancelled:
			return ErrOrderCancelled
		}
		if amount.GreaterThan(order.Totals.Balance) {
			return &PaymentExceedsBalanceError{
				OrderID:     order.ID,
				Requested:   amount,
				Outstanding: order.Totals.Balance,
			}
		}

		entry, balance, err := s.recordCustomerCredit(ctx, lst, st, order.CustomerID, amount, method, order.ID)
		if err != nil {
			return err
		}

		order.Totals.AmountReceived = order.Totals.AmountReceived.Add(amount)
		order.Totals = RecalcTotals(order.Totals)
		order.Status = DeriveStatus(order.Status, order.Totals.GrandTotal,
			order.Totals.AmountReceived, order.Totals.AdvanceUsed)
		if err := st.UpdateOrder(ctx, order); err != nil {
			return err
		}

		out = PaymentResult{Entry: entry, Order: &order, Balance: balance}
		return nil
	})
	return out, err
}

// RecordCustomerPayment takes a payment not tied to any order. Depending on
// the customer's position it is tagged payment (reducing debt) or advance
// (adding credit); the ledger math is identical.
func (s *Service) RecordCustomerPayment(ctx context.Context, customerID string, amount decimal.Decimal, method ledger.Method) (PaymentResult, error) {
	if !amount.IsPositive() {
		return PaymentResult{}, ErrPaymentNotPositive
	}

	lock := s.customerLock(customerID)
	lock.Lock()
	defer lock.Unlock()

	var out PaymentResult
	err := s.ledger.WithChain(ctx, func(lst ledger.Store) error {
		st, err := commerceStore(lst)
		if err != nil {
			return err
		}
		if _, err := st.GetCustomer(ctx, customerID); err != nil {
			return err
		}
		entry, balance, err := s.recordCustomerCredit(ctx, lst, st, customerID, amount, method, "")
		if err != nil {
			return err
		}
		out = PaymentResult{Entry: entry, Balance: balance}
		return nil
	})
	return out, err
}

// recordCustomerCredit writes the credit entry, classifies its kind from
// the customer's position, and resyncs the cached balance. Runs inside an
// existing chain scope.
func (s *Service) recordCustomerCredit(ctx context.Context, lst ledger.Store, st Store, customerID string, amount decimal.Decimal, method ledger.Method, orderID string) (ledger.Entry, ledger.Balance, error) {
	entries, err := st.EntriesForCustomer(ctx, customerID)
	if err != nil {
		return ledger.Entry{}, ledger.Balance{}, err
	}
	current := ledger.ComputeBalance(customerID, entries)

	// The branch governs only the tag: money in is money in. Anything
	// received while nothing is owed is credit held for later orders.
	kind := ledger.KindAdvance
	description := "advance received"
	if current.Current.IsNegative() {
		kind = ledger.KindPayment
		description = "payment received"
	}

	entry, err := s.ledger.RecordIn(ctx, lst, ledger.Draft{
		Kind:        kind,
		Method:      method,
		Description: description,
		Credit:      amount,
		Reference:   ledger.Reference{CustomerID: customerID, OrderID: orderID},
	})
	if err != nil {
		return ledger.Entry{}, ledger.Balance{}, err
	}

	balance, err := s.deriveAndCache(ctx, st, customerID)
	if err != nil {
		return ledger.Entry{}, ledger.Balance{}, err
	}
	return entry, balance, nil
}

// =============================================================================
// CANCELLATION
// =============================================================================

// CancelOrder reverses an unpaid or partially-paid order: stock is
// restored and the order's sale and allocation entries come off the chain.
// Payments already received stay on the ledger as customer credit.
func (s *Service) CancelOrder(ctx context.Context, orderID string) (Order, error) {
	peek, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return Order{}, err
	}

	lock := s.customerLock(peek.CustomerID)
	lock.Lock()
	defer lock.Unlock()

	var out Order
	err = s.ledger.WithChain(ctx, func(lst ledger.Store) error {
		st, err := commerceStore(lst)
		if err != nil {
			return err
		}

		order, err := st.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		switch order.Status {
		case StatusPaid:
			return ErrOrderSettled
		case StatusCancelled:
			return ErrOrderCancelled
		}

		for _, it := range order.Items {
			if err := st.AdjustStock(ctx, it.ProductID, it.Quantity); err != nil {
				return err
			}
		}

		if order.SaleEntryID != "" {
			if err := s.ledger.RemoveIn(ctx, lst, order.SaleEntryID); err != nil {
				return err
			}
		}
		if order.AllocationEntryID != "" {
			if err := s.ledger.RemoveIn(ctx, lst, order.AllocationEntryID); err != nil {
				return err
			}
		}

		order.Status = StatusCancelled
		if err := st.UpdateOrder(ctx, order); err != nil {
			return err
		}
		if err := s.resyncBalance(ctx, st, order.CustomerID); err != nil {
			return err
		}
		out = order
		return nil
	})
	return out, err
}

// =============================================================================
// MANUAL LEDGER ENTRIES
// =============================================================================

// RecordTransaction appends a manually-entered ledger entry. When the
// entry references a customer, their cached balance is resynced in the
// same transaction.
func (s *Service) RecordTransaction(ctx context.Context, d ledger.Draft) (ledger.Entry, error) {
	var out ledger.Entry
	err := s.ledger.WithChain(ctx, func(lst ledger.Store) error {
		st, err := commerceStore(lst)
		if err != nil {
			return err
		}
		e, err := s.ledger.RecordIn(ctx, lst, d)
		if err != nil {
			return err
		}
		if err := s.resyncIfCustomer(ctx, st, e.Reference.CustomerID); err != nil {
			return err
		}
		out = e
		return nil
	})
	return out, err
}

// AmendTransaction amends an entry and resyncs the referenced customer's
// cached balance alongside the chain repair.
func (s *Service) AmendTransaction(ctx context.Context, id ledger.EntryID, a ledger.Amendment) (ledger.Entry, error) {
	var out ledger.Entry
	err := s.ledger.WithChain(ctx, func(lst ledger.Store) error {
		st, err := commerceStore(lst)
		if err != nil {
			return err
		}
		e, err := s.ledger.AmendIn(ctx, lst, id, a)
		if err != nil {
			return err
		}
		if err := s.resyncIfCustomer(ctx, st, e.Reference.CustomerID); err != nil {
			return err
		}
		out = e
		return nil
	})
	return out, err
}

// RemoveTransaction deletes an entry and resyncs the referenced customer's
// cached balance alongside the chain repair.
func (s *Service) RemoveTransaction(ctx context.Context, id ledger.EntryID) error {
	return s.ledger.WithChain(ctx, func(lst ledger.Store) error {
		st, err := commerceStore(lst)
		if err != nil {
			return err
		}
		old, err := lst.GetEntry(ctx, id)
		if err != nil {
			return err
		}
		if err := s.ledger.RemoveIn(ctx, lst, id); err != nil {
			return err
		}
		return s.resyncIfCustomer(ctx, st, old.Reference.CustomerID)
	})
}

func (s *Service) resyncIfCustomer(ctx context.Context, st Store, customerID string) error {
	if customerID == "" {
		return nil
	}
	return s.resyncBalance(ctx, st, customerID)
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// CustomerBalance returns the ledger-derived position for one customer.
func (s *Service) CustomerBalance(ctx context.Context, customerID string) (ledger.Balance, error) {
	if _, err := s.store.GetCustomer(ctx, customerID); err != nil {
		return ledger.Balance{}, err
	}
	return s.ledger.CustomerBalance(ctx, customerID)
}

// CustomerEntries returns the customer's ledger entries, chronological.
func (s *Service) CustomerEntries(ctx context.Context, customerID string) ([]ledger.Entry, error) {
	return s.store.EntriesForCustomer(ctx, customerID)
}

// Reconcile recomputes a customer's balance, compares it with the cached
// copy and rewrites the cache if they drifted. Exposed for tests and
// repair jobs; the mutating flows keep the two in sync on their own.
func (s *Service) Reconcile(ctx context.Context, customerID string) (Reconciliation, error) {
	lock := s.customerLock(customerID)
	lock.Lock()
	defer lock.Unlock()

	var out Reconciliation
	err := s.ledger.WithChain(ctx, func(lst ledger.Store) error {
		st, err := commerceStore(lst)
		if err != nil {
			return err
		}
		customer, err := st.GetCustomer(ctx, customerID)
		if err != nil {
			return err
		}
		entries, err := st.EntriesForCustomer(ctx, customerID)
		if err != nil {
			return err
		}
		derived := ledger.ComputeBalance(customerID, entries)
		out = Reconciliation{
			Derived: derived,
			Cached:  customer.Balance,
			InSync:  derived.Current.Equal(customer.Balance),
		}
		if !out.InSync {
			return st.UpdateCustomerBalance(ctx, customerID, derived.Current)
		}
		return nil
	})
	return out, err
}

// resyncBalance recomputes and writes the cached customer balance inside
// the current transaction.
func (s *Service) resyncBalance(ctx context.Context, st Store, customerID string) error {
	_, err := s.deriveAndCache(ctx, st, customerID)
	return err
}

func (s *Service) deriveAndCache(ctx context.Context, st Store, customerID string) (ledger.Balance, error) {
	entries, err := st.EntriesForCustomer(ctx, customerID)
	if err != nil {
		return ledger.Balance{}, err
	}
	derived := ledger.ComputeBalance(customerID, entries)
	if err := st.UpdateCustomerBalance(ctx, customerID, derived.Current); err != nil {
		return ledger.Balance{}, err
	}
	return derived, nil
}
