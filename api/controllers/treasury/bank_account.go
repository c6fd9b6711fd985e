package treasury

import (
	"net/http"

	"github.com/beatmarkethq/backend/api/responses"
	"github.com/beatmarkethq/backend/api/validators"
	"github.com/beatmarkethq/backend/internal/treasury/bankaccount"
	"github.com/beatmarkethq/backend/pkg/enums"
	pkgerrors "github.com/beatmarkethq/backend/pkg/errors"
	"github.com/beatmarkethq/backend/pkg/logger"
)

type updateBankAccountRequest struct {
	AccountHolder string `json:"account_holder" validate:"required"`
	BankName      string `json:"bank_name" validate:"required"`
	AccountNumber string `json:"account_number" validate:"required"`
	RoutingNumber string `json:"routing_number" validate:"required"`
	AccountType   string `json:"account_type,omitempty" validate:"omitempty,oneof=checking savings"`
}

// GetBankAccount returns the redacted payout destination.
func GetBankAccount(registry bankaccount.Registry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if registry == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bank account registry unavailable"))
			return
		}

		redacted, err := registry.Redacted(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, redacted)
	}
}

// UpdateBankAccount replaces the payout destination wholesale. The response
// never echoes the full account number.
func UpdateBankAccount(registry bankaccount.Registry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if registry == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bank account registry unavailable"))
			return
		}

		var req updateBankAccountRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		account, err := registry.Update(r.Context(), bankaccount.UpdateInput{
			AccountHolder: req.AccountHolder,
			BankName:      req.BankName,
			AccountNumber: req.AccountNumber,
			RoutingNumber: req.RoutingNumber,
			AccountType:   enums.BankAccountType(req.AccountType),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, bankaccount.RedactAccount(account))
	}
}
