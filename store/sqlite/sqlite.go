/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements ledger.Store and commerce.Store over one database so that the
  order/payment flows can compose ledger, stock and order writes inside a
  single transaction. The same patterns apply to PostgreSQL - only minor
  SQL dialect differences.

KEY TABLES:
  ledger_entries: the cash ledger, one row per entry, running balance
                  included
  customers:      cached balances (always rederivable from ledger_entries)
  categories, products, orders, order_items

MONEY REPRESENTATION:
  Amounts are stored as INTEGER paisa (minor units). That keeps the bulk
  running-balance repair a single arithmetic UPDATE with no floating-point
  drift; the domain converts to decimal.Decimal at the boundary.

ORDERING:
  date and created_at are stored as fixed-width UTC timestamps, so the
  chronological (date, created_at) ordering the chain invariant needs is
  plain lexicographic comparison.

CONCURRENCY:
  No store-level locking. Mutations are serialized above this package (the
  ledger chain mutex and per-customer locks); SQLite runs in WAL mode so
  readers never block on the single writer.

SEE ALSO:
  - ledger/store.go: interface definitions and the ordering contract
  - commerce/store.go: commerce collections
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/medbook/pharmacy-ledger/commerce"
	"github.com/medbook/pharmacy-ledger/ledger"
)

// timeLayout is fixed-width so stored timestamps sort lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements ledger.Store and commerce.Store using SQLite.
type Store struct {
	queries
	db *sql.DB
}

var (
	_ ledger.Store   = (*Store)(nil)
	_ commerce.Store = (*Store)(nil)
)

// dbtx is satisfied by *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries holds every statement; Store and the transaction-bound store
// share the implementations through it.
type queries struct {
	db dbtx
}

// New creates a SQLite store at the given path. Use ":memory:" for tests.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer; a single pooled connection also keeps
	// ":memory:" databases shared across the pool.
	db.SetMaxOpenConns(1)

	store := &Store{queries: queries{db: db}, db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS ledger_entries (
		id TEXT PRIMARY KEY,
		sequence_label TEXT NOT NULL UNIQUE,
		date TEXT NOT NULL,
		created_at TEXT NOT NULL,
		kind TEXT NOT NULL,
		method TEXT,
		description TEXT,
		credit INTEGER NOT NULL,
		debit INTEGER NOT NULL,
		running_balance INTEGER NOT NULL,
		ref_customer_id TEXT,
		ref_order_id TEXT,
		ref_product_id TEXT,
		ref_tx_number TEXT,
		ref_note TEXT,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL
	);

	-- The chain ordering (hot path: latest-before and range repairs)
	CREATE INDEX IF NOT EXISTS idx_entries_date_created
		ON ledger_entries(date, created_at);
	CREATE INDEX IF NOT EXISTS idx_entries_customer
		ON ledger_entries(ref_customer_id) WHERE ref_customer_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_entries_month
		ON ledger_entries(year, month);
	CREATE INDEX IF NOT EXISTS idx_entries_kind
		ON ledger_entries(kind);

	CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		phone TEXT,
		balance INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS categories (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		category_id TEXT,
		sale_price INTEGER NOT NULL DEFAULT 0,
		purchase_price INTEGER NOT NULL DEFAULT 0,
		stock INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL,
		discount INTEGER NOT NULL DEFAULT 0,
		discount_type TEXT NOT NULL DEFAULT '',
		grand_total INTEGER NOT NULL,
		amount_received INTEGER NOT NULL,
		advance_used INTEGER NOT NULL,
		balance INTEGER NOT NULL,
		status TEXT NOT NULL,
		sale_entry_id TEXT,
		allocation_entry_id TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_orders_customer
		ON orders(customer_id);

	CREATE TABLE IF NOT EXISTS order_items (
		order_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		name TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		unit_price INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_order_items_order
		ON order_items(order_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// txStore is the transaction-bound view handed to WithTx callbacks. It
// satisfies both store interfaces, so commerce flows can assert it back.
type txStore struct {
	queries
}

var (
	_ ledger.Store   = (*txStore)(nil)
	_ commerce.Store = (*txStore)(nil)
)

// WithTx runs fn inside one database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{queries{db: sqlTx}}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// WithTx on a transaction-bound store reuses the open transaction; SQLite
// has no nested transactions and the caller's commit covers everything.
func (t *txStore) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	return fn(t)
}

// =============================================================================
// LEDGER ENTRIES (ledger.Store)
// =============================================================================

const entryColumns = `id, sequence_label, date, created_at, kind, method, description,
	credit, debit, running_balance,
	ref_customer_id, ref_order_id, ref_product_id, ref_tx_number, ref_note,
	year, month`

// AppendEntry persists a new entry.
func (q queries) AppendEntry(ctx context.Context, e ledger.Entry) error {
	query := `
		INSERT INTO ledger_entries (` + entryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := q.db.ExecContext(ctx, query,
		string(e.ID),
		e.SequenceLabel,
		formatTime(e.Date),
		formatTime(e.CreatedAt),
		string(e.Kind),
		nullString(string(e.Method)),
		e.Description,
		toPaisa(e.Credit),
		toPaisa(e.Debit),
		toPaisa(e.RunningBalance),
		nullString(e.Reference.CustomerID),
		nullString(e.Reference.OrderID),
		nullString(e.Reference.ProductID),
		nullString(e.Reference.TxNumber),
		nullString(e.Reference.Note),
		e.Year,
		e.Month,
	)
	if err != nil {
		return fmt.Errorf("failed to append entry: %w", err)
	}
	return nil
}

// GetEntry returns one entry by id.
func (q queries) GetEntry(ctx context.Context, id ledger.EntryID) (ledger.Entry, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE id = ?`, string(id))
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Entry{}, ledger.ErrEntryNotFound
	}
	return e, err
}

// LatestBefore returns the chronologically-latest entry strictly before
// (date, createdAt), or nil.
func (q queries) LatestBefore(ctx context.Context, date, createdAt time.Time) (*ledger.Entry, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+` FROM ledger_entries
		WHERE date < ? OR (date = ? AND created_at < ?)
		ORDER BY date DESC, created_at DESC
		LIMIT 1
	`, formatTime(date), formatTime(date), formatTime(createdAt))
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// EntriesForCustomer returns every entry referencing the customer,
// chronologically. Never paginated.
func (q queries) EntriesForCustomer(ctx context.Context, customerID string) ([]ledger.Entry, error) {
	return q.queryEntries(ctx, `
		SELECT `+entryColumns+` FROM ledger_entries
		WHERE ref_customer_id = ?
		ORDER BY date ASC, created_at ASC
	`, customerID)
}

// EntriesInMonth returns every entry in the calendar month, chronologically.
func (q queries) EntriesInMonth(ctx context.Context, year, month int) ([]ledger.Entry, error) {
	return q.queryEntries(ctx, `
		SELECT `+entryColumns+` FROM ledger_entries
		WHERE year = ? AND month = ?
		ORDER BY date ASC, created_at ASC
	`, year, month)
}

// AllEntries returns the full ledger, chronologically.
func (q queries) AllEntries(ctx context.Context) ([]ledger.Entry, error) {
	return q.queryEntries(ctx, `
		SELECT `+entryColumns+` FROM ledger_entries
		ORDER BY date ASC, created_at ASC
	`)
}

// ListEntries returns one page matching the filter, newest first, plus the
// total match count.
func (q queries) ListEntries(ctx context.Context, f ledger.ListFilter) ([]ledger.Entry, int, error) {
	var conds []string
	var args []any

	if f.Year != 0 {
		conds = append(conds, "year = ? AND month = ?")
		args = append(args, f.Year, f.Month)
	}
	if f.Kind != "" {
		conds = append(conds, "kind = ?")
		args = append(args, string(f.Kind))
	}
	if f.Method != "" {
		conds = append(conds, "method = ?")
		args = append(args, string(f.Method))
	}
	if f.Query != "" {
		conds = append(conds, "(description LIKE ? OR sequence_label LIKE ?)")
		like := "%" + f.Query + "%"
		args = append(args, like, like)
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := q.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM ledger_entries"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	page := f.Page
	if page < 1 {
		page = 1
	}

	listArgs := append(append([]any{}, args...), limit, (page-1)*limit)
	entries, err := q.queryEntries(ctx, `
		SELECT `+entryColumns+` FROM ledger_entries`+where+`
		ORDER BY date DESC, created_at DESC
		LIMIT ? OFFSET ?
	`, listArgs...)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// UpdateEntry persists the mutable fields of an existing entry.
func (q queries) UpdateEntry(ctx context.Context, e ledger.Entry) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE ledger_entries SET
			date = ?, kind = ?, method = ?, description = ?,
			credit = ?, debit = ?, running_balance = ?,
			ref_customer_id = ?, ref_order_id = ?, ref_product_id = ?,
			ref_tx_number = ?, ref_note = ?,
			year = ?, month = ?
		WHERE id = ?
	`,
		formatTime(e.Date),
		string(e.Kind),
		nullString(string(e.Method)),
		e.Description,
		toPaisa(e.Credit),
		toPaisa(e.Debit),
		toPaisa(e.RunningBalance),
		nullString(e.Reference.CustomerID),
		nullString(e.Reference.OrderID),
		nullString(e.Reference.ProductID),
		nullString(e.Reference.TxNumber),
		nullString(e.Reference.Note),
		e.Year,
		e.Month,
		string(e.ID),
	)
	if err != nil {
		return fmt.Errorf("failed to update entry: %w", err)
	}
	return requireRow(res, ledger.ErrEntryNotFound)
}

// ShiftRunningBalances adds delta to every entry strictly after
// (date, createdAt). One bulk statement; integer paisa arithmetic keeps
// it exact.
func (q queries) ShiftRunningBalances(ctx context.Context, date, createdAt time.Time, delta decimal.Decimal) error {
	if delta.IsZero() {
		return nil
	}
	_, err := q.db.ExecContext(ctx, `
		UPDATE ledger_entries
		SET running_balance = running_balance + ?
		WHERE date > ? OR (date = ? AND created_at > ?)
	`, toPaisa(delta), formatTime(date), formatTime(date), formatTime(createdAt))
	if err != nil {
		return fmt.Errorf("failed to shift running balances: %w", err)
	}
	return nil
}

// DeleteEntry removes one entry.
func (q queries) DeleteEntry(ctx context.Context, id ledger.EntryID) error {
	res, err := q.db.ExecContext(ctx,
		"DELETE FROM ledger_entries WHERE id = ?", string(id))
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	return requireRow(res, ledger.ErrEntryNotFound)
}

func (q queries) queryEntries(ctx context.Context, query string, args ...any) ([]ledger.Entry, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (ledger.Entry, error) {
	var (
		e                       ledger.Entry
		id, kind                string
		date, createdAt         string
		method, description     sql.NullString
		credit, debit, balance  int64
		refCustomer, refOrder   sql.NullString
		refProduct, refTxNumber sql.NullString
		refNote                 sql.NullString
	)

	err := row.Scan(
		&id, &e.SequenceLabel, &date, &createdAt, &kind, &method, &description,
		&credit, &debit, &balance,
		&refCustomer, &refOrder, &refProduct, &refTxNumber, &refNote,
		&e.Year, &e.Month,
	)
	if err != nil {
		return ledger.Entry{}, err
	}

	e.ID = ledger.EntryID(id)
	e.Kind = ledger.Kind(kind)
	e.Method = ledger.Method(method.String)
	e.Description = description.String
	e.Date = parseTime(date)
	e.CreatedAt = parseTime(createdAt)
	e.Credit = fromPaisa(credit)
	e.Debit = fromPaisa(debit)
	e.RunningBalance = fromPaisa(balance)
	e.Reference = ledger.Reference{
		CustomerID: refCustomer.String,
		OrderID:    refOrder.String,
		ProductID:  refProduct.String,
		TxNumber:   refTxNumber.String,
		Note:       refNote.String,
	}
	return e, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

// toPaisa converts a decimal rupee amount to integer paisa.
func toPaisa(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

// fromPaisa converts integer paisa back to a decimal rupee amount.
func fromPaisa(n int64) decimal.Decimal {
	return decimal.New(n, -2)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func requireRow(res sql.Result, missing error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return missing
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
