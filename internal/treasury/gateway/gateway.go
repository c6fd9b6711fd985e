package gateway

import (
	"context"
	"time"

	"github.com/beatmarkethq/backend/pkg/db/models"
)

// TransferRequest describes one transfer to the configured bank account.
type TransferRequest struct {
	AmountCents int64
	Currency    string
	Account     *models.BankAccount
	// Reference carries the payout record id so the rail-side transfer can be
	// traced back to the ledger.
	Reference string
}

// Receipt reports a completed transfer.
type Receipt struct {
	Reference        string
	EstimatedArrival time.Time
}

// Gateway moves money to an external bank account. Implementations must treat
// a returned error as "no money moved"; the ledger relies on that to leave the
// pending balance untouched on failure.
type Gateway interface {
	Transfer(ctx context.Context, req TransferRequest) (*Receipt, error)
}
