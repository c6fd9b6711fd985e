package treasury

import (
	"net/http"

	"github.com/beatmarkethq/backend/api/responses"
	"github.com/beatmarkethq/backend/internal/treasury/scheduler"
	pkgerrors "github.com/beatmarkethq/backend/pkg/errors"
	"github.com/beatmarkethq/backend/pkg/logger"
)

// SchedulerStatus reports whether the payout loop runs and when it fires next.
func SchedulerStatus(sched *scheduler.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sched == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout scheduler unavailable"))
			return
		}

		status, err := sched.Status(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}

// StartScheduler launches the payout loop. Starting a running loop is a no-op.
func StartScheduler(sched *scheduler.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sched == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout scheduler unavailable"))
			return
		}

		if err := sched.Start(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := sched.Status(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}

// StopScheduler halts the payout loop. Stopping a stopped loop is a no-op.
func StopScheduler(sched *scheduler.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sched == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout scheduler unavailable"))
			return
		}

		if err := sched.Stop(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := sched.Status(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}
