package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/boddenberg/finance-tracker-go/internal/domain"
	"github.com/boddenberg/finance-tracker-go/internal/infra/observability"
	"github.com/boddenberg/finance-tracker-go/internal/service"
)

var tracer = otel.Tracer("handler")

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services bundles the use cases the router exposes.
type Services struct {
	Auth         *service.AuthService
	Users        *service.UserService
	Transactions *service.TransactionService
	Recurring    *service.RecurringService
	Processor    *service.RecurringProcessor
	Dashboard    *service.DashboardService
	Store        Pinger
}

// NewRouter creates the HTTP router with all routes and middleware. Admin
// routes are mounted only when adminToken is set.
func NewRouter(svc Services, adminToken string, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.RequestLogger(logger, metrics))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler())
	r.Get("/readyz", readyzHandler(svc.Store, logger))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		// =============================================
		// Auth (public)
		// =============================================
		r.Post("/auth/register", authRegisterHandler(svc.Auth, logger))
		r.Post("/auth/login", authLoginHandler(svc.Auth, logger))

		// =============================================
		// Authenticated user resources
		// =============================================
		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(svc.Auth, logger))

			r.Get("/user", getUserHandler(svc.Users, logger))
			r.Get("/category", listCategoriesHandler(svc.Users, logger))

			r.Get("/transaction", listTransactionsHandler(svc.Transactions, logger))
			r.Post("/transaction/new", createTransactionHandler(svc.Transactions, logger))
			r.Put("/transaction/update/{id}", updateTransactionHandler(svc.Transactions, logger))
			r.Delete("/transaction/delete/{id}", deleteTransactionHandler(svc.Transactions, logger))

			r.Get("/recurring", listRecurringHandler(svc.Recurring, logger))
			r.Post("/recurring/new", createRecurringHandler(svc.Recurring, logger))
			r.Put("/recurring/update/{id}", updateRecurringHandler(svc.Recurring, logger))
			r.Delete("/recurring/delete/{id}", deleteRecurringHandler(svc.Recurring, logger))

			r.Get("/dashboard", dashboardHandler(svc.Dashboard, logger))
		})

		// =============================================
		// Admin (X-Admin-Token)
		// =============================================
		if adminToken != "" && svc.Processor != nil {
			r.Route("/admin", func(r chi.Router) {
				r.Use(AdminTokenMiddleware(adminToken, logger))
				r.Post("/recurring/run", runRecurringHandler(svc.Processor, logger))
				r.Get("/recurring/stats", recurringStatsHandler(metrics))
			})
		}
	})

	return r
}

// ============================================================
// Operational
// ============================================================

func healthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, domain.HealthStatus{Status: "healthy"})
	}
}

func readyzHandler(store Pinger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			writeJSON(w, http.StatusOK, domain.HealthStatus{Status: "healthy"})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		start := time.Now()
		err := store.Ping(ctx)
		dep := domain.ServiceHealth{Name: "store", Status: "healthy", LatencyMs: time.Since(start).Milliseconds()}
		status := http.StatusOK
		if err != nil {
			logger.Warn("readiness check failed", zap.Error(err))
			dep.Status = "unhealthy"
			dep.Error = err.Error()
			status = http.StatusServiceUnavailable
		}

		writeJSON(w, status, domain.HealthStatus{
			Status:   dep.Status,
			Services: []domain.ServiceHealth{dep},
		})
	}
}
