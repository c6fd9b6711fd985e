package treasury

import (
	"net/http"

	"github.com/beatmarkethq/backend/api/responses"
	"github.com/beatmarkethq/backend/internal/treasury/ledger"
	pkgerrors "github.com/beatmarkethq/backend/pkg/errors"
	"github.com/beatmarkethq/backend/pkg/logger"
)

// Snapshot reports the ledger totals and the redacted payout destination.
func Snapshot(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		snap, err := svc.Snapshot(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snap)
	}
}
