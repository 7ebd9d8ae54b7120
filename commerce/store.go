package commerce

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/medbook/pharmacy-ledger/ledger"
)

// Store is the persistence contract for the commerce collections. It embeds
// ledger.Store because every commerce flow composes its own writes with
// ledger entries inside one transaction; the transaction-bound store handed
// out by ledger.Service.WithChain must satisfy this interface too.
type Store interface {
	ledger.Store

	// Customers
	SaveCustomer(ctx context.Context, c Customer) error
	GetCustomer(ctx context.Context, id string) (Customer, error)
	ListCustomers(ctx context.Context) ([]Customer, error)
	UpdateCustomerBalance(ctx context.Context, id string, balance decimal.Decimal) error

	// Categories
	SaveCategory(ctx context.Context, c Category) error
	ListCategories(ctx context.Context) ([]Category, error)

	// Products
	SaveProduct(ctx context.Context, p Product) error
	GetProduct(ctx context.Context, id string) (Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	// AdjustStock adds delta (negative to decrement) to a product's stock.
	AdjustStock(ctx context.Context, id string, delta int) error

	// Orders
	SaveOrder(ctx context.Context, o Order) error
	GetOrder(ctx context.Context, id string) (Order, error)
	ListOrders(ctx context.Context, customerID string) ([]Order, error)
	UpdateOrder(ctx context.Context, o Order) error
}
