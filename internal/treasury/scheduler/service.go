package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/beatmarkethq/backend/internal/treasury/ledger"
	pkgerrors "github.com/beatmarkethq/backend/pkg/errors"
	"github.com/beatmarkethq/backend/pkg/logger"
)

// payoutTimeout bounds a single payout attempt including the gateway call.
const payoutTimeout = 5 * time.Minute

// Service drives the weekly payout loop. It owns no money state; every payout
// attempt funnels through the ledger service, which enforces the balance
// invariants regardless of who triggered it.
type Service struct {
	schedule Schedule
	ledger   ledger.Service
	lock     Lock
	logg     *logger.Logger
	now      func() time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// ServiceParams configure the payout scheduler.
type ServiceParams struct {
	Schedule Schedule
	Ledger   ledger.Service
	// Lock is optional; without it, concurrency is only guarded per instance.
	Lock   Lock
	Logger *logger.Logger
	Now    func() time.Time
}

// NewService builds a payout scheduler.
func NewService(params ServiceParams) (*Service, error) {
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Schedule.Location == nil {
		return nil, fmt.Errorf("schedule required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		schedule: params.Schedule,
		ledger:   params.Ledger,
		lock:     params.Lock,
		logg:     params.Logger,
		now:      now,
	}, nil
}

// Start launches the run loop. Starting an already running scheduler is a
// no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	next := s.schedule.Next(s.now())
	if err := s.ledger.SetNextPayoutAt(ctx, next); err != nil {
		return fmt.Errorf("announce next payout: %w", err)
	}

	// The loop outlives the request that started it.
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	fields := s.logg.WithField(ctx, "schedule", s.schedule.Description())
	s.logg.Info(fields, "payout scheduler started")

	go s.run(loopCtx, s.done)
	return nil
}

// Stop halts the run loop and waits for it to exit. A payout already handed to
// the gateway is left to finish. Stopping a stopped scheduler is a no-op.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.logg.Info(ctx, "payout scheduler stopped")
	return nil
}

// Running reports whether the loop is active.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Status describes the scheduler for the admin surface.
type Status struct {
	Running               bool       `json:"running"`
	Schedule              string     `json:"schedule"`
	Timezone              string     `json:"timezone"`
	NextPayoutAt          *time.Time `json:"next_payout_at"`
	LastPayoutAt          *time.Time `json:"last_payout_at"`
	PendingBalanceCents   int64      `json:"pending_balance_cents"`
	BankAccountConfigured bool       `json:"bank_account_configured"`
}

// Status reports the loop state and the persisted next payout instant.
func (s *Service) Status(ctx context.Context) (*Status, error) {
	snap, err := s.ledger.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger snapshot: %w", err)
	}
	status := &Status{
		Running:             s.Running(),
		Schedule:            s.schedule.Description(),
		Timezone:            s.schedule.Location.String(),
		NextPayoutAt:        snap.State.NextPayoutAt,
		LastPayoutAt:        snap.State.LastPayoutAt,
		PendingBalanceCents: snap.State.PendingBalanceCents,
	}
	if snap.BankAccount != nil {
		status.BankAccountConfigured = snap.BankAccount.Configured
	}
	return status, nil
}

// ManualTrigger runs a payout attempt outside the weekly slot. The attempt
// goes through the same lock and ledger path as a scheduled one.
func (s *Service) ManualTrigger(ctx context.Context, params ledger.ProcessPayoutParams) (*ledger.PayoutResult, error) {
	if s.lock != nil {
		acquired, err := s.lock.Acquire(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquire payout lock: %w", err)
		}
		if !acquired {
			return nil, pkgerrors.New(pkgerrors.CodePayoutInProgress, "a payout is running on another instance")
		}
		defer func() {
			if relErr := s.lock.Release(ctx); relErr != nil {
				s.logg.Error(ctx, "failed to release payout lock", relErr)
			}
		}()
	}
	return s.ledger.ProcessPayout(ctx, params)
}

func (s *Service) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		next := s.schedule.Next(s.now())
		timer := time.NewTimer(next.Sub(s.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		// The attempt runs detached so Stop only cancels the timer; money
		// already in transit runs to completion.
		go s.executePayout(ctx)
	}
}

func (s *Service) executePayout(ctx context.Context) {
	// A Stop during the attempt must not strand money mid-transfer or leak
	// the lock.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), payoutTimeout)
	defer cancel()

	if s.lock != nil {
		acquired, err := s.lock.Acquire(ctx)
		if err != nil {
			s.logg.Error(ctx, "failed to acquire payout lock", err)
			return
		}
		if !acquired {
			s.logg.Info(ctx, "another instance owns the payout slot; skipping")
			return
		}
		defer func() {
			if relErr := s.lock.Release(ctx); relErr != nil {
				s.logg.Error(ctx, "failed to release payout lock", relErr)
			}
		}()
	}

	result, err := s.ledger.ProcessPayout(ctx, ledger.ProcessPayoutParams{})
	if err != nil {
		s.logg.Error(ctx, "scheduled payout failed", err)
		return
	}
	if result.Skipped {
		fields := s.logg.WithField(ctx, "reason", result.SkipReason)
		s.logg.Info(fields, "scheduled payout skipped")
		return
	}
	fields := s.logg.WithPayoutID(ctx, result.Record.ID.String())
	fields = s.logg.WithField(fields, "amount_cents", result.Record.AmountCents)
	s.logg.Info(fields, "scheduled payout completed")
}
