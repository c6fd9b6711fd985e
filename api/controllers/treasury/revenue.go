package treasury

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/beatmarkethq/backend/api/responses"
	"github.com/beatmarkethq/backend/api/validators"
	"github.com/beatmarkethq/backend/internal/treasury/ledger"
	"github.com/beatmarkethq/backend/pkg/enums"
	pkgerrors "github.com/beatmarkethq/backend/pkg/errors"
	"github.com/beatmarkethq/backend/pkg/logger"
)

type recordRevenueRequest struct {
	TransactionID   string     `json:"transaction_id" validate:"required"`
	Type            string     `json:"type" validate:"required"`
	GrossCents      int64      `json:"gross_cents" validate:"required,gt=0"`
	CommissionCents *int64     `json:"commission_cents,omitempty"`
	SourceUserID    string     `json:"source_user_id,omitempty"`
	OccurredAt      *time.Time `json:"occurred_at,omitempty"`
}

type recordRevenueResponse struct {
	Entry     any  `json:"entry"`
	Duplicate bool `json:"duplicate"`
}

// RecordRevenue ingests one finalized payment event. Replays of the same
// transaction id are acknowledged without touching the ledger again.
func RecordRevenue(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		var req recordRevenueRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		revenueType, err := enums.ParseRevenueType(req.Type)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid revenue type"))
			return
		}

		input := ledger.RecordRevenueInput{
			TransactionID:   req.TransactionID,
			Type:            revenueType,
			GrossCents:      req.GrossCents,
			CommissionCents: req.CommissionCents,
		}
		if req.SourceUserID != "" {
			sourceID, parseErr := uuid.Parse(req.SourceUserID)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid source user id"))
				return
			}
			input.SourceUserID = sourceID
		}
		if req.OccurredAt != nil {
			input.OccurredAt = *req.OccurredAt
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithTransactionID(ctx, req.TransactionID)
		}

		result, err := svc.RecordRevenue(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		status := http.StatusCreated
		if result.Duplicate {
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(w, status, recordRevenueResponse{
			Entry:     result.Entry,
			Duplicate: result.Duplicate,
		})
	}
}
