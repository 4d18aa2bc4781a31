package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/yardgate-backend/api/controllers"
	"github.com/angelmondragon/yardgate-backend/api/middleware"
	"github.com/angelmondragon/yardgate-backend/internal/desk"
	"github.com/angelmondragon/yardgate-backend/internal/gate"
	"github.com/angelmondragon/yardgate-backend/internal/ledger"
	"github.com/angelmondragon/yardgate-backend/internal/reconciliation"
	"github.com/angelmondragon/yardgate-backend/internal/transactions"
	"github.com/angelmondragon/yardgate-backend/pkg/config"
	"github.com/angelmondragon/yardgate-backend/pkg/db"
	"github.com/angelmondragon/yardgate-backend/pkg/logger"
	"github.com/angelmondragon/yardgate-backend/pkg/redis"
)

// NewRouter wires the desk, gate, view and report routes. dbP and
// redisClient may be nil in memory mode; without redis, idempotent replay and
// the submission throttle are off.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	registry *prometheus.Registry,
	dbP db.Pinger,
	redisClient *redis.Client,
	store transactions.Store,
	ledgerService ledger.Service,
	deskService desk.Service,
	gateService gate.Service,
	reconciliationService reconciliation.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Operator(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	var (
		idempotencyStore redis.IdempotencyStore
		limiter          redis.RateLimiter
	)
	readiness := map[string]controllers.Pinger{}
	if dbP != nil {
		readiness["db"] = dbP
	}
	if redisClient != nil {
		idempotencyStore = redisClient
		limiter = redisClient
		readiness["redis"] = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})

	if registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	}

	submitPolicy := middleware.NewSubmitRateLimitPolicy("submit", cfg.RateLimit.SubmitLimit, cfg.RateLimit.SubmitWindow)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireOperator(logg))
			r.Use(middleware.SubmitRateLimit(submitPolicy, limiter, logg))
			r.Use(middleware.Idempotency(idempotencyStore, logg))

			r.Post("/desk/exits", controllers.DeskDeclareExit(deskService, logg))
			r.Post("/desk/entries", controllers.DeskDeclareEntry(deskService, logg))
			r.Post("/gate/transactions/{transactionId}/exit", controllers.GateAuthorizeExit(gateService, logg))
			r.Post("/gate/transactions/{transactionId}/entry", controllers.GateAuthorizeEntry(gateService, logg))
		})

		r.Get("/gate/queue/exits", controllers.GatePendingExits(gateService, logg))
		r.Get("/gate/queue/entries", controllers.GateAwaitingEntry(gateService, logg))

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", controllers.ListTransactions(store, logg))
			r.Get("/{transactionId}", controllers.GetTransaction(store, logg))
			r.Get("/{transactionId}/events", controllers.ListTransactionEvents(store, ledgerService, logg))
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/flow", controllers.FlowReport(reconciliationService, logg))
			r.Get("/transactions/{transactionId}/discrepancy", controllers.DiscrepancyReport(reconciliationService, logg))
			r.Get("/transactions/{transactionId}/checklist", controllers.ChecklistReport(reconciliationService, logg))
		})
	})

	return r
}
