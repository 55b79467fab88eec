package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"csetrack/pkg/csetrack"
)

// NewRouter builds the HTTP API router.
func NewRouter(core *csetrack.Core, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(recoveryLoggingMiddleware(logger))
	r.Use(requestLoggingMiddleware(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	h := &handler{core: core, logger: logger}

	r.Get("/api/health", h.health)

	// Holdings
	r.Get("/api/holdings", h.getHoldings)
	r.Post("/api/holdings", h.addHolding)
	r.Put("/api/holdings/{id}", h.updateHolding)
	r.Delete("/api/holdings/{id}", h.deleteHolding)

	// Portfolio
	r.Get("/api/portfolio/summary", h.getPortfolioSummary)
	r.Get("/api/portfolio/history", h.getPortfolioHistory)

	// Transactions
	r.Get("/api/transactions", h.getTransactions)
	r.Post("/api/transactions", h.addTransaction)
	r.Delete("/api/transactions/{id}", h.deleteTransaction)

	// Trading rules
	r.Get("/api/rules", h.getRules)
	r.Post("/api/rules", h.addRule)
	r.Put("/api/rules/{id}", h.updateRule)
	r.Delete("/api/rules/{id}", h.deleteRule)
	r.Get("/api/rules/evaluate", h.evaluateRules)

	// Pre-trade simulation
	r.Post("/api/simulate", h.simulateTransaction)

	// Allocation
	r.Get("/api/allocation/plan", h.getAllocationPlan)
	r.Get("/api/allocation/targets", h.getAllocationTargets)
	r.Post("/api/allocation/targets", h.addAllocationTarget)
	r.Put("/api/allocation/targets/{id}", h.updateAllocationTarget)
	r.Delete("/api/allocation/targets/{id}", h.deleteAllocationTarget)
	r.Post("/api/allocation/targets/{id}/tranches", h.addAllocationTranche)
	r.Delete("/api/allocation/targets/{id}/tranches/{trancheID}", h.removeAllocationTranche)

	// Prices
	r.Get("/api/prices", h.getPrices)
	r.Post("/api/prices/update", h.updatePrice)
	r.Post("/api/prices/manual", h.setManualPrice)
	r.Post("/api/prices/update-all", h.updateAllPrices)

	// Settings
	r.Get("/api/settings", h.getSettings)
	r.Put("/api/settings", h.updateSettings)

	// Operation logs
	r.Get("/api/operation-logs", h.getOperationLogs)

	// AI advice
	r.Post("/api/advice", h.getPortfolioAdvice)

	return r
}

type handler struct {
	core   *csetrack.Core
	logger *slog.Logger
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
