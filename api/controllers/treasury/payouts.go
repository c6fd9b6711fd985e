package treasury

import (
	"net/http"
	"strings"

	"github.com/beatmarkethq/backend/api/responses"
	"github.com/beatmarkethq/backend/api/validators"
	"github.com/beatmarkethq/backend/internal/treasury/ledger"
	"github.com/beatmarkethq/backend/internal/treasury/scheduler"
	pkgerrors "github.com/beatmarkethq/backend/pkg/errors"
	"github.com/beatmarkethq/backend/pkg/logger"
	"github.com/beatmarkethq/backend/pkg/pagination"
)

type payoutHistoryResponse struct {
	Records any    `json:"records"`
	Cursor  string `json:"cursor,omitempty"`
}

// PayoutHistory pages through payout attempts, newest first.
func PayoutHistory(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		result, err := svc.PayoutHistory(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payoutHistoryResponse{
			Records: result.Records,
			Cursor:  result.Cursor,
		})
	}
}

type triggerPayoutRequest struct {
	AmountCents *int64 `json:"amount_cents,omitempty" validate:"omitempty,gt=0"`
}

// TriggerPayout runs a payout attempt immediately. The body is optional; an
// amount drains a partial balance instead of the whole pending amount.
func TriggerPayout(sched *scheduler.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sched == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout scheduler unavailable"))
			return
		}

		var req triggerPayoutRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		result, err := sched.ManualTrigger(r.Context(), ledger.ProcessPayoutParams{
			ForcedAmountCents: req.AmountCents,
		})
		if err != nil {
			// A failed transfer still produced an audit record worth logging.
			if result != nil && result.Record != nil && logg != nil {
				ctx := logg.WithPayoutID(r.Context(), result.Record.ID.String())
				logg.Error(ctx, "manual payout failed", err)
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
