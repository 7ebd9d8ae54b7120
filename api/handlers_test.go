package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medbook/pharmacy-ledger/api"
	"github.com/medbook/pharmacy-ledger/commerce"
	"github.com/medbook/pharmacy-ledger/ledger"
	"github.com/medbook/pharmacy-ledger/reports"
	"github.com/medbook/pharmacy-ledger/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T, cfg api.RouterConfig) *httptest.Server {
	t.Helper()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ls := ledger.NewService(store)
	cs := commerce.NewService(ls, store)
	rs := reports.NewService(ls, store)

	srv := httptest.NewServer(api.NewRouter(api.NewHandler(ls, cs, rs), cfg))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	if resp.StatusCode != http.StatusNoContent {
		_ = json.NewDecoder(resp.Body).Decode(&decoded)
	}
	return resp, decoded
}

func doJSONList(t *testing.T, url string) (*http.Response, []map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded []map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func createCustomer(t *testing.T, base, name string) string {
	resp, body := doJSON(t, http.MethodPost, base+"/api/customers",
		map[string]any{"name": name})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return body["id"].(string)
}

func createProduct(t *testing.T, base, name string, price float64, stock int) string {
	resp, body := doJSON(t, http.MethodPost, base+"/api/products", map[string]any{
		"name": name, "sale_price": price, "purchase_price": price * 0.7, "stock": stock,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return body["id"].(string)
}

// =============================================================================
// LEDGER ENDPOINTS
// =============================================================================

func TestTransactions_CreateListDelete(t *testing.T) {
	srv := newTestServer(t, api.RouterConfig{})

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/transactions", map[string]any{
		"date": "2025-03-01", "kind": "payment", "method": "cash", "credit": 1000,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "1000", fmt.Sprint(body["running_balance"]))
	assert.Regexp(t, `^TXN-`, body["tx_number"])
	id := body["id"].(string)

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/transactions", map[string]any{
		"date": "2025-03-02", "kind": "expense", "debit": 300,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "700", fmt.Sprint(body["running_balance"]))

	// Month-filtered listing carries opening balance and method totals
	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/transactions?month=2025-03", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, body["total"])
	assert.Equal(t, "0", fmt.Sprint(body["opening_balance"]))
	totals := body["method_totals"].(map[string]any)
	assert.Equal(t, "1000", fmt.Sprint(totals["cash"]))

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/transactions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/transactions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTransactions_ValidationErrors(t *testing.T) {
	srv := newTestServer(t, api.RouterConfig{})

	// Both sides set
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/transactions", map[string]any{
		"date": "2025-03-01", "kind": "sale", "credit": 10, "debit": 10,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Unknown kind
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/transactions", map[string]any{
		"date": "2025-03-01", "kind": "bogus", "credit": 10,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Malformed date
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/transactions", map[string]any{
		"date": "01/03/2025", "kind": "sale", "debit": 10,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Malformed month filter
	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/transactions?month=2025-13", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTransactions_Amend(t *testing.T) {
	srv := newTestServer(t, api.RouterConfig{})

	_, first := doJSON(t, http.MethodPost, srv.URL+"/api/transactions", map[string]any{
		"date": "2025-03-01", "kind": "payment", "credit": 1000,
	})
	_, second := doJSON(t, http.MethodPost, srv.URL+"/api/transactions", map[string]any{
		"date": "2025-03-02", "kind": "expense", "debit": 300,
	})

	resp, body := doJSON(t, http.MethodPatch, srv.URL+"/api/transactions/"+first["id"].(string),
		map[string]any{"credit": 1500})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1500", fmt.Sprint(body["running_balance"]))

	// The later entry shifted by the +500 delta
	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/transactions/"+second["id"].(string), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1200", fmt.Sprint(body["running_balance"]))
}

// =============================================================================
// ORDER / PAYMENT FLOW
// =============================================================================

func TestOrderFlow_EndToEnd(t *testing.T) {
	srv := newTestServer(t, api.RouterConfig{})
	custID := createCustomer(t, srv.URL, "Ahmed")
	prodID := createProduct(t, srv.URL, "Panadol 500mg", 50, 200)

	// 2000 advance
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/customers/"+custID+"/payments",
		map[string]any{"amount": 2000, "method": "cash"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	entry := body["entry"].(map[string]any)
	assert.Equal(t, "advance", entry["kind"])

	// 5000 order consumes the advance
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/orders", map[string]any{
		"customer_id": custID,
		"items":       []map[string]any{{"product_id": prodID, "quantity": 100}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "5000", fmt.Sprint(body["grand_total"]))
	assert.Equal(t, "2000", fmt.Sprint(body["advance_used"]))
	assert.Equal(t, "3000", fmt.Sprint(body["balance"]))
	orderID := body["id"].(string)

	// Derived balance is -1000
	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/customers/"+custID+"/balance", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "-1000", fmt.Sprint(body["balance"]))
	assert.Equal(t, "owing", body["position"])

	// Partial payment
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/orders/"+orderID+"/payments",
		map[string]any{"amount": 1500, "method": "cash"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	order := body["order"].(map[string]any)
	assert.Equal(t, "partial", order["status"])
	assert.Equal(t, "1500", fmt.Sprint(order["balance"]))

	// Overpayment rejected
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/orders/"+orderID+"/payments",
		map[string]any{"amount": 4000, "method": "cash"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Customer ledger shows the whole history
	resp, entries := doJSONList(t, srv.URL+"/api/customers/"+custID+"/ledger")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, entries, 4) // advance, sale, allocation, payment
}

func TestOrder_InsufficientStockConflict(t *testing.T) {
	srv := newTestServer(t, api.RouterConfig{})
	custID := createCustomer(t, srv.URL, "Ahmed")
	prodID := createProduct(t, srv.URL, "Panadol 500mg", 50, 3)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/orders", map[string]any{
		"customer_id": custID,
		"items":       []map[string]any{{"product_id": prodID, "quantity": 10}},
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestOrder_CancelRestores(t *testing.T) {
	srv := newTestServer(t, api.RouterConfig{})
	custID := createCustomer(t, srv.URL, "Ahmed")
	prodID := createProduct(t, srv.URL, "Panadol 500mg", 50, 20)

	_, body := doJSON(t, http.MethodPost, srv.URL+"/api/orders", map[string]any{
		"customer_id": custID,
		"items":       []map[string]any{{"product_id": prodID, "quantity": 5}},
	})
	orderID := body["id"].(string)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/orders/"+orderID+"/cancel", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "cancelled", body["status"])

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/products/"+prodID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 20, body["stock"])
}

func TestTransactions_CustomerRefSyncsCachedBalance(t *testing.T) {
	// A manual sale debit against a customer must land in their cached
	// balance, and a note-only patch must neither detach the entry from
	// the customer nor move the balance.

	srv := newTestServer(t, api.RouterConfig{})
	custID := createCustomer(t, srv.URL, "Ahmed")

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/transactions", map[string]any{
		"date": "2025-03-01", "kind": "sale", "debit": 500, "customer_id": custID,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	txID := body["id"].(string)

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/customers/"+custID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "-500", fmt.Sprint(body["balance"]))

	resp, body = doJSON(t, http.MethodPatch, srv.URL+"/api/transactions/"+txID,
		map[string]any{"note": "on credit"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, custID, body["customer_id"])
	assert.Equal(t, "on credit", body["note"])

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/customers/"+custID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "-500", fmt.Sprint(body["balance"]))

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/transactions/"+txID, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/customers/"+custID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "0", fmt.Sprint(body["balance"]))
}

func TestBalances_ListAndFilter(t *testing.T) {
	srv := newTestServer(t, api.RouterConfig{})
	ahmedID := createCustomer(t, srv.URL, "Ahmed")
	bilalID := createCustomer(t, srv.URL, "Bilal")

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/customers/"+ahmedID+"/payments",
		map[string]any{"amount": 2000, "method": "cash"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// No customerId: every customer's derived position.
	resp, list := doJSONList(t, srv.URL+"/api/customers/balance")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, list, 2)
	byID := map[string]map[string]any{}
	for _, b := range list {
		byID[b["customer_id"].(string)] = b
	}
	assert.Equal(t, "2000", fmt.Sprint(byID[ahmedID]["balance"]))
	assert.Equal(t, "advance", byID[ahmedID]["position"])
	assert.Equal(t, "0", fmt.Sprint(byID[bilalID]["balance"]))
	assert.Equal(t, "balanced", byID[bilalID]["position"])

	// customerId narrows to one.
	resp, body := doJSON(t, http.MethodGet,
		srv.URL+"/api/customers/balance?customerId="+ahmedID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, ahmedID, body["customer_id"])

	resp, _ = doJSON(t, http.MethodGet,
		srv.URL+"/api/customers/balance?customerId=no-such", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestOriginalClientPaths(t *testing.T) {
	srv := newTestServer(t, api.RouterConfig{})
	custID := createCustomer(t, srv.URL, "Ahmed")
	prodID := createProduct(t, srv.URL, "Panadol 500mg", 50, 100)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/ledger/transactions",
		map[string]any{"date": "2025-03-01", "kind": "payment", "method": "cash", "credit": 750})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	txID := body["id"].(string)

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/ledger/ledger?month=2025-03", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["total"])

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/orders/create-on-account",
		map[string]any{
			"customer_id": custID,
			"items":       []map[string]any{{"product_id": prodID, "quantity": 10}},
		})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	orderID := body["id"].(string)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/orders/"+orderID+"/payment",
		map[string]any{"amount": 200, "method": "cash"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/ledger/transactions/"+txID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Order entries are dated today; the backdated transaction is gone.
	thisMonth := time.Now().Format("2006-01")
	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/reports/monthly-summary?month="+thisMonth, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, body["entry_count"])
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

func TestErrorMapping(t *testing.T) {
	srv := newTestServer(t, api.RouterConfig{})

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/customers/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/customers", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "missing name")

	_, _ = doJSON(t, http.MethodPost, srv.URL+"/api/categories", map[string]any{"name": "Tablets"})
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/categories", map[string]any{"name": "Tablets"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "duplicate category name")

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/reports/monthly?month=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// REPORTS
// =============================================================================

func TestMonthlyReport(t *testing.T) {
	srv := newTestServer(t, api.RouterConfig{})

	_, _ = doJSON(t, http.MethodPost, srv.URL+"/api/transactions", map[string]any{
		"date": "2025-03-03", "kind": "sale", "debit": 4000,
	})
	_, _ = doJSON(t, http.MethodPost, srv.URL+"/api/transactions", map[string]any{
		"date": "2025-03-10", "kind": "payment", "method": "cash", "credit": 1500,
	})

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/reports/monthly?month=2025-03", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "2025-03", body["month"])
	assert.Equal(t, "4000", fmt.Sprint(body["sales"]))
	assert.Equal(t, "-2500", fmt.Sprint(body["closing_balance"]))
	assert.EqualValues(t, 2, body["entry_count"])
}

// =============================================================================
// AUTHENTICATION
// =============================================================================

func TestAuth_EnforcedWhenConfigured(t *testing.T) {
	srv := newTestServer(t, api.RouterConfig{JWTSecret: "test-secret"})

	// No token
	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/customers", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Health endpoint stays public
	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Valid token
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{}).
		SignedString([]byte("test-secret"))
	require.NoError(t, err)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/customers", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	authed, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer authed.Body.Close()
	assert.Equal(t, http.StatusOK, authed.StatusCode)

	// Wrong secret
	bad, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{}).
		SignedString([]byte("other-secret"))
	require.NoError(t, err)
	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/api/customers", nil)
	req.Header.Set("Authorization", "Bearer "+bad)
	denied, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer denied.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, denied.StatusCode)
}
