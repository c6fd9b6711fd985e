package controllers

import (
	"net/http"

	"github.com/beatmarkethq/backend/api/responses"
	"github.com/beatmarkethq/backend/pkg/config"
	"github.com/beatmarkethq/backend/pkg/db"
	"github.com/beatmarkethq/backend/pkg/logger"
	"github.com/beatmarkethq/backend/pkg/redis"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-BeatMarket-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady verifies the database and, when wired, Redis. Redis degradation
// is reported but does not fail readiness; the ledger works without it.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-BeatMarket-Env", cfg.App.Env)

		checks := map[string]string{"database": "ok"}
		ready := true

		if dbP == nil {
			checks["database"] = "not wired"
			ready = false
		} else if err := dbP.Ping(r.Context()); err != nil {
			if logg != nil {
				logg.Error(r.Context(), "database ping failed", err)
			}
			checks["database"] = "unreachable"
			ready = false
		}

		if redisP != nil {
			checks["redis"] = "ok"
			if err := redisP.Ping(r.Context()); err != nil {
				if logg != nil {
					logg.Error(r.Context(), "redis ping failed", err)
				}
				checks["redis"] = "unreachable"
			}
		}

		if !ready {
			responses.WriteSuccessStatus(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded", "checks": checks})
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
