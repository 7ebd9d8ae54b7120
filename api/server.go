/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. Metrics:    Prometheus request count/latency/in-flight
  5. CORS:       Cross-origin requests for frontend
  6. Auth:       Optional JWT bearer check (only when a secret is set)

ROUTE GROUPS:
  /api/transactions/*   Cash ledger
  /api/ledger/*         Ledger paths the original client uses (same handlers)
  /api/customers/*      Customers, balances, payments
  /api/categories/*     Product categories
  /api/products/*       Products
  /api/orders/*         Orders, order payments, cancellation
  /api/reports/*        Monthly summary
  /metrics              Prometheus scrape endpoint
  /healthz              Liveness probe

SEE ALSO:
  - handlers.go: Handler implementations
  - authn.go: Bearer-token middleware
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/medbook/pharmacy-ledger/obs"
)

// RouterConfig carries the optional knobs for NewRouter.
type RouterConfig struct {
	// AllowedOrigins for CORS; empty means localhost dev defaults.
	AllowedOrigins []string
	// JWTSecret enables bearer-token authentication when non-empty.
	JWTSecret string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	obs.InitMetrics()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(obs.Instrument)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))
	r.Use(withAuth(cfg.JWTSecret))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Ledger routes
		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", h.ListTransactions)
			r.Post("/", h.CreateTransaction)
			r.Get("/{id}", h.GetTransaction)
			r.Patch("/{id}", h.UpdateTransaction)
			r.Delete("/{id}", h.DeleteTransaction)
		})

		// Customer routes
		r.Route("/customers", func(r chi.Router) {
			r.Get("/", h.ListCustomers)
			r.Post("/", h.CreateCustomer)
			r.Get("/balance", h.ListBalances)
			r.Get("/{id}", h.GetCustomer)
			r.Get("/{id}/balance", h.GetCustomerBalance)
			r.Get("/{id}/ledger", h.GetCustomerLedger)
			r.Post("/{id}/payments", h.CreateCustomerPayment)
			r.Post("/{id}/reconcile", h.ReconcileCustomer)
		})

		// Inventory routes
		r.Route("/categories", func(r chi.Router) {
			r.Get("/", h.ListCategories)
			r.Post("/", h.CreateCategory)
		})
		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			r.Post("/", h.CreateProduct)
			r.Get("/{id}", h.GetProduct)
		})

		// Order routes
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.ListOrders)
			r.Post("/", h.CreateOrder)
			r.Post("/create-on-account", h.CreateOrder)
			r.Get("/{id}", h.GetOrder)
			r.Post("/{id}/payments", h.CreateOrderPayment)
			r.Post("/{id}/payment", h.CreateOrderPayment)
			r.Post("/{id}/cancel", h.CancelOrder)
		})

		// Report routes
		r.Route("/reports", func(r chi.Router) {
			r.Get("/monthly", h.GetMonthlyReport)
			r.Get("/monthly-summary", h.GetMonthlyReport)
		})

		// Paths the original storefront client calls. Same handlers,
		// kept so it can talk to this server unchanged.
		r.Route("/ledger", func(r chi.Router) {
			r.Post("/transactions", h.CreateTransaction)
			r.Patch("/transactions/{id}", h.UpdateTransaction)
			r.Delete("/transactions/{id}", h.DeleteTransaction)
			r.Get("/ledger", h.ListTransactions)
		})
	})

	// Operational endpoints
	r.Method(http.MethodGet, "/metrics", obs.MetricsHandler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
