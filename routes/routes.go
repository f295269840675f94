package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/upb/card-control-plane/app"
	"github.com/upb/card-control-plane/handlers"
	"github.com/upb/card-control-plane/internal/observability"
)

// managementTimeout bounds management API requests. The webhook carries
// its own, shorter deadline.
const managementTimeout = 30 * time.Second

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	logger := deps.Logger

	webhook := handlers.NewWebhookHandler(deps.Scoring, deps.Ledger, deps.WebhookConfig(), logger)
	health := handlers.NewHealthHandler(deps.DB.DB, deps.Audit, deps.Ledger, logger)
	policies := handlers.NewPolicyHandler(deps.PolicySvc, logger)
	cards := handlers.NewCardHandler(deps.CardSvc, logger)
	budgets := handlers.NewBudgetHandler(deps.BudgetSvc, logger)
	transactions := handlers.NewTransactionHandler(deps.Ledger, logger)
	score := handlers.NewScoreHandler(deps.Scoring, logger)
	simulation := handlers.NewSimulationHandler(deps.Simulation, logger)

	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.WithRequestLogger(logger))
	r.Use(middleware.Recoverer)

	// Health check endpoints
	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)

	// Card network authorization webhook
	r.Post("/webhooks/issuing/authorization", webhook.HandleAuthorization)
	r.Post("/api/jit", webhook.HandleAuthorization)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   deps.Config.Server.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
		r.Use(middleware.Timeout(managementTimeout))
		r.Use(deps.AuthMiddleware.RequireAuth)

		r.Route("/policies", func(r chi.Router) {
			r.Get("/", policies.HandleListPolicies)
			r.Post("/", policies.HandleCreatePolicy)
			r.Post("/evaluate", policies.HandleEvaluatePolicy)
			r.Get("/{id}", policies.HandleGetPolicy)
			r.Put("/{id}", policies.HandleUpdatePolicy)
			r.Delete("/{id}", policies.HandleDeletePolicy)
		})

		r.Route("/cards", func(r chi.Router) {
			r.Get("/", cards.HandleListCards)
			r.Post("/", cards.HandleRegisterCard)
			r.Patch("/{id}", cards.HandleUpdateCard)
		})

		r.Route("/budgets", func(r chi.Router) {
			r.Get("/", budgets.HandleListBudgets)
			r.Post("/", budgets.HandleCreateBudget)
			r.Post("/check", budgets.HandleCheckBudget)
			r.Patch("/{id}", budgets.HandleUpdateBudget)
			r.Put("/{id}", budgets.HandleUpdateBudget)
			r.Delete("/{id}", budgets.HandleDeleteBudget)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", transactions.HandleListTransactions)
			r.Get("/summary", transactions.HandleSpendSummary)
			r.Patch("/{id}", transactions.HandleCorrectTransaction)
		})

		r.Post("/score", score.HandleScore)
		r.Post("/simulation", simulation.HandleSimulate)
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}
