package gateway

import (
	"context"
	"fmt"
	"time"

	pkgerrors "github.com/beatmarkethq/backend/pkg/errors"
)

const defaultArrivalDelay = 2 * 24 * time.Hour

// SimulatedParams configure the in-process transfer simulator.
type SimulatedParams struct {
	// Delay mimics rail latency before the transfer settles.
	Delay time.Duration
	// ArrivalDelay offsets the estimated arrival from the transfer time.
	ArrivalDelay time.Duration
	// FailNext forces the next transfers to fail when non-zero; used to
	// exercise failure paths in dev and tests.
	FailNext int
	Now      func() time.Time
}

// Simulated is a development stand-in for a real payment rail. It sleeps for
// the configured delay and reports an arrival estimate.
type Simulated struct {
	delay        time.Duration
	arrivalDelay time.Duration
	failNext     int
	now          func() time.Time
}

// NewSimulated builds the simulator.
func NewSimulated(params SimulatedParams) *Simulated {
	arrival := params.ArrivalDelay
	if arrival <= 0 {
		arrival = defaultArrivalDelay
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Simulated{
		delay:        params.Delay,
		arrivalDelay: arrival,
		failNext:     params.FailNext,
		now:          now,
	}
}

// Transfer simulates the external call. The delay is interruptible by context
// cancellation before any money would have moved.
func (s *Simulated) Transfer(ctx context.Context, req TransferRequest) (*Receipt, error) {
	if req.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transfer amount must be positive")
	}
	if req.Account == nil || !req.Account.Configured {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transfer requires a configured bank account")
	}

	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, pkgerrors.Wrap(pkgerrors.CodeGatewayFailure, ctx.Err(), "transfer canceled")
		case <-timer.C:
		}
	}

	if s.failNext > 0 {
		s.failNext--
		return nil, pkgerrors.New(pkgerrors.CodeGatewayFailure, "simulated transfer failure")
	}

	return &Receipt{
		Reference:        fmt.Sprintf("sim_%s", req.Reference),
		EstimatedArrival: s.now().Add(s.arrivalDelay),
	}, nil
}
