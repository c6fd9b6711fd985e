package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/beatmarkethq/backend/api/controllers"
	treasurycontrollers "github.com/beatmarkethq/backend/api/controllers/treasury"
	"github.com/beatmarkethq/backend/api/middleware"
	"github.com/beatmarkethq/backend/internal/treasury/bankaccount"
	"github.com/beatmarkethq/backend/internal/treasury/ledger"
	"github.com/beatmarkethq/backend/internal/treasury/scheduler"
	"github.com/beatmarkethq/backend/pkg/config"
	"github.com/beatmarkethq/backend/pkg/db"
	"github.com/beatmarkethq/backend/pkg/logger"
	"github.com/beatmarkethq/backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	ledgerService ledger.Service,
	bankAccounts bankaccount.Registry,
	payoutScheduler *scheduler.Service,
	promRegistry *prometheus.Registry,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/revenue", treasurycontrollers.RecordRevenue(ledgerService, logg))
	})

	r.Route("/api/admin/v1/treasury", func(r chi.Router) {
		r.Get("/snapshot", treasurycontrollers.Snapshot(ledgerService, logg))

		r.Route("/payouts", func(r chi.Router) {
			r.Get("/", treasurycontrollers.PayoutHistory(ledgerService, logg))
			r.Post("/trigger", treasurycontrollers.TriggerPayout(payoutScheduler, logg))
		})

		r.Route("/bank-account", func(r chi.Router) {
			r.Get("/", treasurycontrollers.GetBankAccount(bankAccounts, logg))
			r.Put("/", treasurycontrollers.UpdateBankAccount(bankAccounts, logg))
		})

		r.Route("/scheduler", func(r chi.Router) {
			r.Get("/status", treasurycontrollers.SchedulerStatus(payoutScheduler, logg))
			r.Post("/start", treasurycontrollers.StartScheduler(payoutScheduler, logg))
			r.Post("/stop", treasurycontrollers.StopScheduler(payoutScheduler, logg))
		})
	})

	if promRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
	}

	return r
}
