package gateway

import (
	"context"
	"time"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/payout"

	pkgerrors "github.com/beatmarkethq/backend/pkg/errors"
)

// Stripe executes transfers through Stripe's payout API against the platform's
// connected bank account. Stripe owns the actual rail (ACH/wire); we only see
// success or failure plus an arrival estimate.
type Stripe struct{}

// NewStripe builds the Stripe-backed gateway. The Stripe API key must already
// be installed globally by the stripe client bootstrap.
func NewStripe() *Stripe {
	return &Stripe{}
}

// Transfer creates a Stripe payout for the requested amount.
func (s *Stripe) Transfer(ctx context.Context, req TransferRequest) (*Receipt, error) {
	if req.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transfer amount must be positive")
	}

	params := &stripe.PayoutParams{
		Amount:      stripe.Int64(req.AmountCents),
		Currency:    stripe.String(req.Currency),
		Description: stripe.String("weekly platform commission payout"),
		Method:      stripe.String("standard"),
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.Reference)

	p, err := payout.New(params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGatewayFailure, err, "stripe payout failed")
	}

	return &Receipt{
		Reference:        p.ID,
		EstimatedArrival: time.Unix(p.ArrivalDate, 0).UTC(),
	}, nil
}
