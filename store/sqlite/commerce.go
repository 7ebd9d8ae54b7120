package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/medbook/pharmacy-ledger/commerce"
	"github.com/medbook/pharmacy-ledger/ledger"
)

// =============================================================================
// CUSTOMERS (commerce.Store)
// =============================================================================

// SaveCustomer inserts a customer.
func (q queries) SaveCustomer(ctx context.Context, c commerce.Customer) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, phone, balance, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, c.ID, c.Name, c.Phone, toPaisa(c.Balance), formatTime(c.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save customer: %w", err)
	}
	return nil
}

// GetCustomer returns one customer by id.
func (q queries) GetCustomer(ctx context.Context, id string) (commerce.Customer, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, name, phone, balance, created_at FROM customers WHERE id = ?
	`, id)
	c, err := scanCustomer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return commerce.Customer{}, ledger.ErrCustomerNotFound
	}
	return c, err
}

// ListCustomers returns all customers ordered by name.
func (q queries) ListCustomers(ctx context.Context) ([]commerce.Customer, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, name, phone, balance, created_at FROM customers ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	defer rows.Close()

	var customers []commerce.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

// UpdateCustomerBalance rewrites the cached balance.
func (q queries) UpdateCustomerBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE customers SET balance = ? WHERE id = ?
	`, toPaisa(balance), id)
	if err != nil {
		return fmt.Errorf("failed to update customer balance: %w", err)
	}
	return requireRow(res, ledger.ErrCustomerNotFound)
}

func scanCustomer(row scanner) (commerce.Customer, error) {
	var (
		c         commerce.Customer
		phone     sql.NullString
		balance   int64
		createdAt string
	)
	if err := row.Scan(&c.ID, &c.Name, &phone, &balance, &createdAt); err != nil {
		return commerce.Customer{}, err
	}
	c.Phone = phone.String
	c.Balance = fromPaisa(balance)
	c.CreatedAt = parseTime(createdAt)
	return c, nil
}

// =============================================================================
// CATEGORIES
// =============================================================================

// SaveCategory inserts a category. Names are unique.
func (q queries) SaveCategory(ctx context.Context, c commerce.Category) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, created_at) VALUES (?, ?, ?)
	`, c.ID, c.Name, formatTime(c.CreatedAt))
	if isUniqueConstraintError(err) {
		return commerce.ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("failed to save category: %w", err)
	}
	return nil
}

// ListCategories returns all categories ordered by name.
func (q queries) ListCategories(ctx context.Context) ([]commerce.Category, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, name, created_at FROM categories ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []commerce.Category
	for rows.Next() {
		var c commerce.Category
		var createdAt string
		if err := rows.Scan(&c.ID, &c.Name, &createdAt); err != nil {
			return nil, err
		}
		c.CreatedAt = parseTime(createdAt)
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// =============================================================================
// PRODUCTS
// =============================================================================

// SaveProduct inserts a product. Names are unique.
func (q queries) SaveProduct(ctx context.Context, p commerce.Product) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO products (id, name, category_id, sale_price, purchase_price, stock, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Name, nullString(p.CategoryID),
		toPaisa(p.SalePrice), toPaisa(p.PurchasePrice), p.Stock, formatTime(p.CreatedAt))
	if isUniqueConstraintError(err) {
		return commerce.ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("failed to save product: %w", err)
	}
	return nil
}

// GetProduct returns one product by id.
func (q queries) GetProduct(ctx context.Context, id string) (commerce.Product, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, name, category_id, sale_price, purchase_price, stock, created_at
		FROM products WHERE id = ?
	`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return commerce.Product{}, commerce.ErrProductNotFound
	}
	return p, err
}

// ListProducts returns all products ordered by name.
func (q queries) ListProducts(ctx context.Context) ([]commerce.Product, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, name, category_id, sale_price, purchase_price, stock, created_at
		FROM products ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []commerce.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// AdjustStock adds delta to a product's stock in one statement, so
// concurrent adjustments never lose updates.
func (q queries) AdjustStock(ctx context.Context, id string, delta int) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE products SET stock = stock + ? WHERE id = ?
	`, delta, id)
	if err != nil {
		return fmt.Errorf("failed to adjust stock: %w", err)
	}
	return requireRow(res, commerce.ErrProductNotFound)
}

func scanProduct(row scanner) (commerce.Product, error) {
	var (
		p                        commerce.Product
		categoryID               sql.NullString
		salePrice, purchasePrice int64
		createdAt                string
	)
	if err := row.Scan(&p.ID, &p.Name, &categoryID, &salePrice, &purchasePrice, &p.Stock, &createdAt); err != nil {
		return commerce.Product{}, err
	}
	p.CategoryID = categoryID.String
	p.SalePrice = fromPaisa(salePrice)
	p.PurchasePrice = fromPaisa(purchasePrice)
	p.CreatedAt = parseTime(createdAt)
	return p, nil
}

// =============================================================================
// ORDERS
// =============================================================================

// SaveOrder inserts an order and its line items.
func (q queries) SaveOrder(ctx context.Context, o commerce.Order) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO orders (id, customer_id, discount, discount_type,
			grand_total, amount_received, advance_used, balance, status,
			sale_entry_id, allocation_entry_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, o.ID, o.CustomerID, toPaisa(o.Discount), string(o.DiscountType),
		toPaisa(o.Totals.GrandTotal), toPaisa(o.Totals.AmountReceived),
		toPaisa(o.Totals.AdvanceUsed), toPaisa(o.Totals.Balance), string(o.Status),
		nullString(string(o.SaleEntryID)), nullString(string(o.AllocationEntryID)),
		formatTime(o.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}

	for _, item := range o.Items {
		_, err := q.db.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, name, quantity, unit_price)
			VALUES (?, ?, ?, ?, ?)
		`, o.ID, item.ProductID, item.Name, item.Quantity, toPaisa(item.UnitPrice))
		if err != nil {
			return fmt.Errorf("failed to save order item: %w", err)
		}
	}
	return nil
}

// GetOrder returns one order with its line items.
func (q queries) GetOrder(ctx context.Context, id string) (commerce.Order, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+` FROM orders WHERE id = ?
	`, id)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return commerce.Order{}, commerce.ErrOrderNotFound
	}
	if err != nil {
		return commerce.Order{}, err
	}
	if err := q.loadItems(ctx, &o); err != nil {
		return commerce.Order{}, err
	}
	return o, nil
}

// ListOrders returns orders newest first, optionally filtered by customer.
func (q queries) ListOrders(ctx context.Context, customerID string) ([]commerce.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders`
	var args []any
	if customerID != "" {
		query += " WHERE customer_id = ?"
		args = append(args, customerID)
	}
	query += " ORDER BY created_at DESC"

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []commerce.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		if err := q.loadItems(ctx, &orders[i]); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

// UpdateOrder persists the mutable fields (totals, status). Line items are
// immutable after creation.
func (q queries) UpdateOrder(ctx context.Context, o commerce.Order) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE orders SET
			amount_received = ?, advance_used = ?, balance = ?, status = ?
		WHERE id = ?
	`, toPaisa(o.Totals.AmountReceived), toPaisa(o.Totals.AdvanceUsed),
		toPaisa(o.Totals.Balance), string(o.Status), o.ID)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	return requireRow(res, commerce.ErrOrderNotFound)
}

const orderColumns = `id, customer_id, discount, discount_type,
	grand_total, amount_received, advance_used, balance, status,
	sale_entry_id, allocation_entry_id, created_at`

func scanOrder(row scanner) (commerce.Order, error) {
	var (
		o                          commerce.Order
		discountType, status       string
		discount                   int64
		grandTotal, received       int64
		advanceUsed, balance       int64
		saleEntryID, allocEntryID  sql.NullString
		createdAt                  string
	)
	err := row.Scan(&o.ID, &o.CustomerID, &discount, &discountType,
		&grandTotal, &received, &advanceUsed, &balance, &status,
		&saleEntryID, &allocEntryID, &createdAt)
	if err != nil {
		return commerce.Order{}, err
	}

	o.Discount = fromPaisa(discount)
	o.DiscountType = commerce.DiscountType(discountType)
	o.Totals = commerce.OrderTotals{
		GrandTotal:     fromPaisa(grandTotal),
		AmountReceived: fromPaisa(received),
		AdvanceUsed:    fromPaisa(advanceUsed),
		Balance:        fromPaisa(balance),
	}
	o.Status = commerce.OrderStatus(status)
	o.SaleEntryID = ledger.EntryID(saleEntryID.String)
	o.AllocationEntryID = ledger.EntryID(allocEntryID.String)
	o.CreatedAt = parseTime(createdAt)
	return o, nil
}

func (q queries) loadItems(ctx context.Context, o *commerce.Order) error {
	rows, err := q.db.QueryContext(ctx, `
		SELECT product_id, name, quantity, unit_price
		FROM order_items WHERE order_id = ?
	`, o.ID)
	if err != nil {
		return fmt.Errorf("failed to load order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item commerce.OrderItem
		var unitPrice int64
		if err := rows.Scan(&item.ProductID, &item.Name, &item.Quantity, &unitPrice); err != nil {
			return err
		}
		item.UnitPrice = fromPaisa(unitPrice)
		o.Items = append(o.Items, item)
	}
	return rows.Err()
}
