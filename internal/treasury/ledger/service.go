package ledger

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/beatmarkethq/backend/internal/treasury/bankaccount"
	"github.com/beatmarkethq/backend/internal/treasury/commission"
	"github.com/beatmarkethq/backend/internal/treasury/gateway"
	"github.com/beatmarkethq/backend/pkg/db"
	"github.com/beatmarkethq/backend/pkg/db/models"
	"github.com/beatmarkethq/backend/pkg/enums"
	pkgerrors "github.com/beatmarkethq/backend/pkg/errors"
	"github.com/beatmarkethq/backend/pkg/logger"
	"github.com/beatmarkethq/backend/pkg/metrics"
	"github.com/beatmarkethq/backend/pkg/pagination"
)

const (
	// SkipReasonNoBalance marks a payout attempt that found nothing to pay.
	SkipReasonNoBalance = "no pending balance"
	// SkipReasonNoBankAccount marks a payout deferred until an account is set.
	SkipReasonNoBankAccount = "bank account not configured"

	revenueIdempotencyScope = "revenue"
)

// Service is the single source of truth for the platform balance. All money
// mutations funnel through it; recordRevenue and processPayout share one
// critical section so a payout always sees a consistent balance.
type Service interface {
	RecordRevenue(ctx context.Context, input RecordRevenueInput) (*RecordRevenueResult, error)
	ProcessPayout(ctx context.Context, params ProcessPayoutParams) (*PayoutResult, error)
	Snapshot(ctx context.Context) (*Snapshot, error)
	PayoutHistory(ctx context.Context, params pagination.Params) (*PayoutHistoryResult, error)
	SetNextPayoutAt(ctx context.Context, at time.Time) error
}

// RecordRevenueInput captures one finalized payment event. CommissionCents is
// optional; when absent the platform rate is applied to the gross amount.
type RecordRevenueInput struct {
	TransactionID   string
	Type            enums.RevenueType
	GrossCents      int64
	CommissionCents *int64
	SourceUserID    uuid.UUID
	OccurredAt      time.Time
}

// RecordRevenueResult reports the stored entry. Duplicate is true when the
// transaction id had been recorded before; totals were not touched again.
type RecordRevenueResult struct {
	Entry     *models.RevenueEntry
	Duplicate bool
}

// ProcessPayoutParams configure one payout attempt.
type ProcessPayoutParams struct {
	// ForcedAmountCents drains a partial amount instead of the full pending
	// balance. It must not exceed the balance available at call time.
	ForcedAmountCents *int64
}

// PayoutResult is the outcome of a payout attempt. Skipped outcomes are not
// errors; they describe expected idle states.
type PayoutResult struct {
	Skipped    bool                 `json:"skipped"`
	SkipReason string               `json:"skip_reason,omitempty"`
	Record     *models.PayoutRecord `json:"record,omitempty"`
}

// Snapshot is the read-only reporting view of the ledger.
type Snapshot struct {
	State       models.LedgerState    `json:"state"`
	BankAccount *bankaccount.Redacted `json:"bank_account"`
}

// PayoutHistoryResult pages through payout records, newest first.
type PayoutHistoryResult struct {
	Records []models.PayoutRecord
	Cursor  string
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams groups dependencies for the ledger service.
type ServiceParams struct {
	DB       txRunner
	Repo     Repository
	Accounts bankaccount.Registry
	Gateway  gateway.Gateway
	// NextPayout computes the next scheduled payout instant; it is invoked
	// after every payout attempt, including skips and failures.
	NextPayout func(now time.Time) time.Time

	CommissionRate decimal.Decimal
	Currency       string
	Method         enums.PayoutMethod

	Guard   *IdempotencyGuard
	Metrics *metrics.TreasuryMetrics
	Logger  *logger.Logger
	Now     func() time.Time
}

type service struct {
	db       txRunner
	repo     Repository
	accounts bankaccount.Registry
	gw       gateway.Gateway
	next     func(now time.Time) time.Time

	rate     decimal.Decimal
	currency string
	method   enums.PayoutMethod

	guard   *IdempotencyGuard
	metrics *metrics.TreasuryMetrics
	logg    *logger.Logger
	now     func() time.Time

	// mu serializes every ledger mutation; inFlight additionally rejects a
	// second concurrent payout instead of queueing it behind the first.
	mu       sync.Mutex
	inFlight atomic.Bool
}

// NewService wires a ledger service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if params.Accounts == nil {
		return nil, fmt.Errorf("bank account registry required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("transfer gateway required")
	}
	if params.NextPayout == nil {
		return nil, fmt.Errorf("next payout schedule required")
	}
	currency := params.Currency
	if currency == "" {
		currency = "usd"
	}
	method := params.Method
	if method == "" {
		method = enums.PayoutMethodBankTransfer
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		db:       params.DB,
		repo:     params.Repo,
		accounts: params.Accounts,
		gw:       params.Gateway,
		next:     params.NextPayout,
		rate:     params.CommissionRate,
		currency: currency,
		method:   method,
		guard:    params.Guard,
		metrics:  params.Metrics,
		logg:     params.Logger,
		now:      now,
	}, nil
}

func (s *service) RecordRevenue(ctx context.Context, input RecordRevenueInput) (*RecordRevenueResult, error) {
	if input.TransactionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid revenue type %q", input.Type))
	}
	if input.GrossCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gross amount must be positive")
	}

	commissionCents, err := s.resolveCommission(input)
	if err != nil {
		return nil, err
	}

	if s.guard != nil {
		seen, guardErr := s.guard.CheckAndMark(ctx, input.TransactionID)
		if guardErr != nil {
			// The unique index still protects us; degrade to the slow path.
			s.warn(ctx, "revenue idempotency guard unavailable", guardErr)
		} else if seen {
			existing, findErr := s.repo.FindEntryByTransactionID(ctx, input.TransactionID)
			if findErr != nil {
				return nil, fmt.Errorf("find duplicate entry: %w", findErr)
			}
			if existing != nil {
				return &RecordRevenueResult{Entry: existing, Duplicate: true}, nil
			}
			// A mark with no stored entry is stale, left behind by a crash
			// before the commit. Clear it and record normally; the unique
			// index still catches true duplicates.
			s.warn(ctx, "clearing stale revenue idempotency mark", nil)
			if delErr := s.guard.Delete(ctx, input.TransactionID); delErr != nil {
				s.warn(ctx, "failed to clear idempotency mark", delErr)
			}
		}
	}

	entry := &models.RevenueEntry{
		ID:              uuid.New(),
		TransactionID:   input.TransactionID,
		Type:            input.Type,
		GrossCents:      input.GrossCents,
		CommissionCents: commissionCents,
		SourceUserID:    input.SourceUserID,
		Status:          enums.RevenueStatusCollected,
		OccurredAt:      input.OccurredAt,
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var duplicate bool
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if createErr := repo.CreateEntry(ctx, entry); createErr != nil {
			if db.IsUniqueViolation(createErr, "idx_revenue_entries_transaction_id") {
				duplicate = true
				return nil
			}
			return createErr
		}
		state, loadErr := repo.LoadState(ctx)
		if loadErr != nil {
			return loadErr
		}
		state.TotalRevenueCents += entry.GrossCents
		state.TotalCommissionsCents += entry.CommissionCents
		state.PendingBalanceCents += entry.CommissionCents
		if saveErr := repo.SaveState(ctx, state); saveErr != nil {
			return saveErr
		}
		s.metrics.SetPendingBalance(state.PendingBalanceCents)
		return nil
	})
	if err != nil {
		if s.guard != nil {
			if delErr := s.guard.Delete(ctx, input.TransactionID); delErr != nil {
				s.warn(ctx, "failed to clear idempotency mark", delErr)
			}
		}
		return nil, fmt.Errorf("record revenue: %w", err)
	}
	if duplicate {
		return s.duplicateResult(ctx, input.TransactionID)
	}

	s.metrics.IncRevenueEntry(entry.Type.String())
	return &RecordRevenueResult{Entry: entry}, nil
}

func (s *service) resolveCommission(input RecordRevenueInput) (int64, error) {
	if input.CommissionCents == nil {
		commissionCents, _, err := commission.CalculateCents(input.GrossCents, s.rate)
		return commissionCents, err
	}
	cents := *input.CommissionCents
	if cents < 0 || cents > input.GrossCents {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "commission must be between zero and the gross amount")
	}
	return cents, nil
}

func (s *service) duplicateResult(ctx context.Context, transactionID string) (*RecordRevenueResult, error) {
	existing, err := s.repo.FindEntryByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("find duplicate entry: %w", err)
	}
	if existing == nil {
		return nil, fmt.Errorf("duplicate transaction %s has no stored entry", transactionID)
	}
	return &RecordRevenueResult{Entry: existing, Duplicate: true}, nil
}

func (s *service) ProcessPayout(ctx context.Context, params ProcessPayoutParams) (*PayoutResult, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return nil, pkgerrors.New(pkgerrors.CodePayoutInProgress, "a payout attempt is already running")
	}
	defer s.inFlight.Store(false)

	start := s.now()

	record, result, err := s.beginPayout(ctx, params)
	if err != nil || result != nil {
		return result, err
	}

	// The gateway call is the only blocking operation in the subsystem; the
	// ledger lock is not held across it so revenue recording continues while
	// money is in transit. The drained amount was fixed when the record was
	// created, so late entries simply stay in the pending balance.
	receipt, transferErr := s.gw.Transfer(ctx, gateway.TransferRequest{
		AmountCents: record.AmountCents,
		Currency:    s.currency,
		Account:     record.account,
		Reference:   record.PayoutRecord.ID.String(),
	})

	return s.finishPayout(ctx, record.PayoutRecord, receipt, transferErr, s.now().Sub(start))
}

// pendingPayout pairs the created record with the full destination account,
// which never leaves the service.
type pendingPayout struct {
	*models.PayoutRecord
	account *models.BankAccount
}

func (s *service) beginPayout(ctx context.Context, params ProcessPayoutParams) (*pendingPayout, *PayoutResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.repo.LoadState(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load ledger state: %w", err)
	}

	if state.PendingBalanceCents <= 0 {
		result, skipErr := s.skipPayout(ctx, state, SkipReasonNoBalance)
		return nil, result, skipErr
	}

	account, err := s.accounts.Get(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load bank account: %w", err)
	}
	if account == nil || !account.Configured {
		result, skipErr := s.skipPayout(ctx, state, SkipReasonNoBankAccount)
		return nil, result, skipErr
	}

	amount := state.PendingBalanceCents
	if params.ForcedAmountCents != nil {
		forced := *params.ForcedAmountCents
		if forced <= 0 {
			return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "forced amount must be positive")
		}
		if forced > state.PendingBalanceCents {
			return nil, nil, pkgerrors.New(pkgerrors.CodeInsufficientBalance,
				fmt.Sprintf("forced amount %d exceeds pending balance %d", forced, state.PendingBalanceCents))
		}
		amount = forced
	}

	record := &models.PayoutRecord{
		ID:               uuid.New(),
		AmountCents:      amount,
		Status:           enums.PayoutStatusProcessing,
		Method:           s.method,
		BankAccountLast4: account.Last4(),
		TriggeredAt:      s.now(),
	}
	if err := s.repo.CreatePayoutRecord(ctx, record); err != nil {
		return nil, nil, fmt.Errorf("create payout record: %w", err)
	}
	return &pendingPayout{PayoutRecord: record, account: account}, nil, nil
}

func (s *service) skipPayout(ctx context.Context, state *models.LedgerState, reason string) (*PayoutResult, error) {
	if err := s.refreshNextPayoutAt(ctx, state); err != nil {
		return nil, err
	}
	s.metrics.ObservePayout("skipped", 0)
	return &PayoutResult{Skipped: true, SkipReason: reason}, nil
}

func (s *service) finishPayout(
	ctx context.Context,
	record *models.PayoutRecord,
	receipt *gateway.Receipt,
	transferErr error,
	duration time.Duration,
) (*PayoutResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	completedAt := s.now()
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		state, loadErr := repo.LoadState(ctx)
		if loadErr != nil {
			return loadErr
		}

		if transferErr == nil {
			state.TotalPayoutsCents += record.AmountCents
			state.PendingBalanceCents -= record.AmountCents
			state.LastPayoutAt = &completedAt
			record.Status = enums.PayoutStatusCompleted
			record.CompletedAt = &completedAt
			record.Reference = &receipt.Reference
			arrival := receipt.EstimatedArrival
			record.EstimatedArrival = &arrival
		} else {
			// Money never moved; the balance stays intact and the failed
			// attempt is retained for audit.
			record.Status = enums.PayoutStatusFailed
			reason := transferErr.Error()
			record.FailureReason = &reason
		}

		next := s.next(s.now())
		state.NextPayoutAt = &next

		if saveErr := repo.UpdatePayoutRecord(ctx, record); saveErr != nil {
			return saveErr
		}
		if saveErr := repo.SaveState(ctx, state); saveErr != nil {
			return saveErr
		}
		s.metrics.SetPendingBalance(state.PendingBalanceCents)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("finalize payout %s: %w", record.ID, err)
	}

	if transferErr != nil {
		s.metrics.ObservePayout("failed", duration)
		return &PayoutResult{Record: record},
			pkgerrors.Wrap(pkgerrors.CodeGatewayFailure, transferErr, "bank transfer failed")
	}

	s.metrics.ObservePayout("completed", duration)
	return &PayoutResult{Record: record}, nil
}

// refreshNextPayoutAt recomputes and persists the next scheduled instant.
// Callers must hold the ledger lock.
func (s *service) refreshNextPayoutAt(ctx context.Context, state *models.LedgerState) error {
	next := s.next(s.now())
	state.NextPayoutAt = &next
	if err := s.repo.SaveState(ctx, state); err != nil {
		return fmt.Errorf("save next payout at: %w", err)
	}
	return nil
}

func (s *service) SetNextPayoutAt(ctx context.Context, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.repo.LoadState(ctx)
	if err != nil {
		return fmt.Errorf("load ledger state: %w", err)
	}
	state.NextPayoutAt = &at
	if err := s.repo.SaveState(ctx, state); err != nil {
		return fmt.Errorf("save next payout at: %w", err)
	}
	return nil
}

func (s *service) Snapshot(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	state, err := s.repo.LoadState(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("load ledger state: %w", err)
	}

	redacted, err := s.accounts.Redacted(ctx)
	if err != nil {
		return nil, fmt.Errorf("load bank account summary: %w", err)
	}

	return &Snapshot{State: *state, BankAccount: redacted}, nil
}

func (s *service) PayoutHistory(ctx context.Context, params pagination.Params) (*PayoutHistoryResult, error) {
	records, cursor, err := s.repo.ListPayoutRecords(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list payout records: %w", err)
	}
	result := &PayoutHistoryResult{Records: records}
	if cursor != nil {
		result.Cursor = pagination.EncodeCursor(*cursor)
	}
	return result, nil
}

func (s *service) warn(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	s.logg.Error(ctx, msg, err)
}
