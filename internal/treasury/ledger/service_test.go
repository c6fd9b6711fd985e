package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/beatmarkethq/backend/internal/treasury/bankaccount"
	"github.com/beatmarkethq/backend/internal/treasury/gateway"
	"github.com/beatmarkethq/backend/pkg/enums"
	pkgerrors "github.com/beatmarkethq/backend/pkg/errors"
	"github.com/beatmarkethq/backend/pkg/pagination"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r *gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

// blockingGateway parks Transfer until released so tests can observe the
// ledger while a payout is in flight.
type blockingGateway struct {
	entered  chan struct{}
	release  chan struct{}
	delegate gateway.Gateway
}

func newBlockingGateway(delegate gateway.Gateway) *blockingGateway {
	return &blockingGateway{
		entered:  make(chan struct{}),
		release:  make(chan struct{}),
		delegate: delegate,
	}
}

func (g *blockingGateway) Transfer(ctx context.Context, req gateway.TransferRequest) (*gateway.Receipt, error) {
	close(g.entered)
	<-g.release
	return g.delegate.Transfer(ctx, req)
}

type ledgerTestEnv struct {
	svc      Service
	accounts bankaccount.Registry
	gw       *gateway.Simulated
	now      time.Time
}

func newLedgerTestEnv(t *testing.T, gw gateway.Gateway) *ledgerTestEnv {
	t.Helper()

	db := setupTreasuryTestDB(t)
	runner := &gormTxRunner{db: db}

	accountRepo := bankaccount.NewRepository(db)
	accounts, err := bankaccount.NewRegistry(runner, accountRepo)
	if err != nil {
		t.Fatalf("unexpected registry error: %v", err)
	}

	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	sim := gateway.NewSimulated(gateway.SimulatedParams{Now: func() time.Time { return now }})
	if gw == nil {
		gw = sim
	}

	svc, err := NewService(ServiceParams{
		DB:             runner,
		Repo:           NewRepository(db),
		Accounts:       accounts,
		Gateway:        gw,
		NextPayout:     func(from time.Time) time.Time { return from.Add(7 * 24 * time.Hour) },
		CommissionRate: decimal.RequireFromString("0.125"),
		Currency:       "usd",
		Method:         enums.PayoutMethodBankTransfer,
		Now:            func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	return &ledgerTestEnv{svc: svc, accounts: accounts, gw: sim, now: now}
}

func (e *ledgerTestEnv) configureAccount(t *testing.T) {
	t.Helper()
	_, err := e.accounts.Update(context.Background(), bankaccount.UpdateInput{
		AccountHolder: "BeatMarket Inc",
		BankName:      "First Commercial",
		AccountNumber: "000123456789",
		RoutingNumber: "110000000",
	})
	if err != nil {
		t.Fatalf("configure bank account: %v", err)
	}
}

func (e *ledgerTestEnv) recordSale(t *testing.T, transactionID string, grossCents int64) *RecordRevenueResult {
	t.Helper()
	result, err := e.svc.RecordRevenue(context.Background(), RecordRevenueInput{
		TransactionID: transactionID,
		Type:          enums.RevenueTypeSale,
		GrossCents:    grossCents,
		SourceUserID:  uuid.New(),
		OccurredAt:    e.now,
	})
	if err != nil {
		t.Fatalf("record revenue %s: %v", transactionID, err)
	}
	return result
}

func TestService_RecordRevenueAccumulates(t *testing.T) {
	env := newLedgerTestEnv(t, nil)
	ctx := context.Background()

	first := env.recordSale(t, "txn_1", 1000)
	if first.Duplicate {
		t.Fatal("first entry flagged duplicate")
	}
	if first.Entry.CommissionCents != 125 {
		t.Fatalf("expected 125 commission on 1000 gross, got %d", first.Entry.CommissionCents)
	}

	env.recordSale(t, "txn_2", 399)

	snap, err := env.svc.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.State.TotalRevenueCents != 1399 {
		t.Fatalf("total revenue = %d, want 1399", snap.State.TotalRevenueCents)
	}
	// 399 * 0.125 = 49.875, rounds half-even to 50.
	if snap.State.TotalCommissionsCents != 175 {
		t.Fatalf("total commissions = %d, want 175", snap.State.TotalCommissionsCents)
	}
	if snap.State.PendingBalanceCents != snap.State.TotalCommissionsCents-snap.State.TotalPayoutsCents {
		t.Fatalf("pending %d violates conservation (commissions %d, payouts %d)",
			snap.State.PendingBalanceCents, snap.State.TotalCommissionsCents, snap.State.TotalPayoutsCents)
	}
}

func TestService_RecordRevenueExplicitCommission(t *testing.T) {
	env := newLedgerTestEnv(t, nil)
	ctx := context.Background()

	commission := int64(300)
	result, err := env.svc.RecordRevenue(ctx, RecordRevenueInput{
		TransactionID:   "txn_manual",
		Type:            enums.RevenueTypeSubscription,
		GrossCents:      1000,
		CommissionCents: &commission,
		SourceUserID:    uuid.New(),
	})
	if err != nil {
		t.Fatalf("record revenue: %v", err)
	}
	if result.Entry.CommissionCents != 300 {
		t.Fatalf("commission = %d, want 300", result.Entry.CommissionCents)
	}

	over := int64(2000)
	_, err = env.svc.RecordRevenue(ctx, RecordRevenueInput{
		TransactionID:   "txn_over",
		Type:            enums.RevenueTypeSubscription,
		GrossCents:      1000,
		CommissionCents: &over,
		SourceUserID:    uuid.New(),
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for commission above gross, got %v", err)
	}
}

func TestService_RecordRevenueDuplicateTransactionID(t *testing.T) {
	env := newLedgerTestEnv(t, nil)
	ctx := context.Background()

	env.recordSale(t, "txn_dup", 1000)
	second := env.recordSale(t, "txn_dup", 1000)
	if !second.Duplicate {
		t.Fatal("expected duplicate flag on repeated transaction id")
	}
	if second.Entry == nil || second.Entry.TransactionID != "txn_dup" {
		t.Fatalf("expected original entry back, got %+v", second.Entry)
	}

	snap, err := env.svc.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.State.TotalRevenueCents != 1000 {
		t.Fatalf("duplicate mutated totals: revenue = %d", snap.State.TotalRevenueCents)
	}
	if snap.State.PendingBalanceCents != 125 {
		t.Fatalf("duplicate mutated balance: pending = %d", snap.State.PendingBalanceCents)
	}
}

func TestService_RecordRevenueClearsStaleIdempotencyMark(t *testing.T) {
	db := setupTreasuryTestDB(t)
	runner := &gormTxRunner{db: db}
	ctx := context.Background()

	accounts, err := bankaccount.NewRegistry(runner, bankaccount.NewRepository(db))
	if err != nil {
		t.Fatalf("unexpected registry error: %v", err)
	}

	store := newMemoryIdempotencyStore()
	guard, err := NewIdempotencyGuard(store, time.Hour, revenueIdempotencyScope)
	if err != nil {
		t.Fatalf("unexpected guard error: %v", err)
	}
	// A mark with no stored entry, as left behind by a crash between the
	// guard write and the database commit.
	store.keys[store.IdempotencyKey(revenueIdempotencyScope, "txn_stale")] = struct{}{}

	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	svc, err := NewService(ServiceParams{
		DB:             runner,
		Repo:           NewRepository(db),
		Accounts:       accounts,
		Gateway:        gateway.NewSimulated(gateway.SimulatedParams{Now: func() time.Time { return now }}),
		NextPayout:     func(from time.Time) time.Time { return from.Add(7 * 24 * time.Hour) },
		CommissionRate: decimal.RequireFromString("0.125"),
		Guard:          guard,
		Now:            func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	input := RecordRevenueInput{
		TransactionID: "txn_stale",
		Type:          enums.RevenueTypeSale,
		GrossCents:    1000,
		SourceUserID:  uuid.New(),
		OccurredAt:    now,
	}

	result, err := svc.RecordRevenue(ctx, input)
	if err != nil {
		t.Fatalf("record revenue with stale mark: %v", err)
	}
	if result.Duplicate {
		t.Fatal("stale mark reported as a real duplicate")
	}
	if result.Entry == nil || result.Entry.CommissionCents != 125 {
		t.Fatalf("entry not recorded past the stale mark: %+v", result.Entry)
	}

	snap, err := svc.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.State.TotalRevenueCents != 1000 || snap.State.PendingBalanceCents != 125 {
		t.Fatalf("revenue lost behind stale mark: revenue = %d pending = %d",
			snap.State.TotalRevenueCents, snap.State.PendingBalanceCents)
	}

	// A retry is a true duplicate: caught by the unique index, re-marked by
	// the guard, and the totals stay put.
	retry, err := svc.RecordRevenue(ctx, input)
	if err != nil {
		t.Fatalf("retry record revenue: %v", err)
	}
	if !retry.Duplicate || retry.Entry == nil {
		t.Fatalf("retry not flagged as duplicate: %+v", retry)
	}

	// A third delivery takes the guard fast path with the entry present.
	third, err := svc.RecordRevenue(ctx, input)
	if err != nil {
		t.Fatalf("third record revenue: %v", err)
	}
	if !third.Duplicate || third.Entry == nil {
		t.Fatalf("fast path lost the stored entry: %+v", third)
	}

	snap, err = svc.Snapshot(ctx)
	if err != nil {
		t.Fatalf("second snapshot: %v", err)
	}
	if snap.State.TotalRevenueCents != 1000 || snap.State.PendingBalanceCents != 125 {
		t.Fatalf("duplicates mutated totals: revenue = %d pending = %d",
			snap.State.TotalRevenueCents, snap.State.PendingBalanceCents)
	}
}

func TestService_RecordRevenueValidation(t *testing.T) {
	env := newLedgerTestEnv(t, nil)
	ctx := context.Background()

	tests := []struct {
		name  string
		input RecordRevenueInput
	}{
		{
			name: "missing transaction id",
			input: RecordRevenueInput{
				Type:       enums.RevenueTypeSale,
				GrossCents: 1000,
			},
		},
		{
			name: "invalid type",
			input: RecordRevenueInput{
				TransactionID: "txn_x",
				Type:          enums.RevenueType("refund"),
				GrossCents:    1000,
			},
		},
		{
			name: "non-positive gross",
			input: RecordRevenueInput{
				TransactionID: "txn_y",
				Type:          enums.RevenueTypeSale,
				GrossCents:    0,
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.svc.RecordRevenue(ctx, tc.input)
			if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestService_ProcessPayoutSkipsWithoutBalance(t *testing.T) {
	env := newLedgerTestEnv(t, nil)
	ctx := context.Background()

	result, err := env.svc.ProcessPayout(ctx, ProcessPayoutParams{})
	if err != nil {
		t.Fatalf("process payout: %v", err)
	}
	if !result.Skipped || result.SkipReason != SkipReasonNoBalance {
		t.Fatalf("expected no-balance skip, got %+v", result)
	}

	snap, err := env.svc.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.State.NextPayoutAt == nil {
		t.Fatal("skip should still schedule the next payout")
	}
	if want := env.now.Add(7 * 24 * time.Hour); !snap.State.NextPayoutAt.Equal(want) {
		t.Fatalf("next payout at %v, want %v", snap.State.NextPayoutAt, want)
	}
}

func TestService_ProcessPayoutSkipsWithoutBankAccount(t *testing.T) {
	env := newLedgerTestEnv(t, nil)
	ctx := context.Background()

	env.recordSale(t, "txn_1", 10000)

	result, err := env.svc.ProcessPayout(ctx, ProcessPayoutParams{})
	if err != nil {
		t.Fatalf("process payout: %v", err)
	}
	if !result.Skipped || result.SkipReason != SkipReasonNoBankAccount {
		t.Fatalf("expected missing-account skip, got %+v", result)
	}

	snap, err := env.svc.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.State.PendingBalanceCents != 1250 {
		t.Fatalf("skip mutated balance: pending = %d", snap.State.PendingBalanceCents)
	}
}

func TestService_ProcessPayoutDrainsBalance(t *testing.T) {
	env := newLedgerTestEnv(t, nil)
	ctx := context.Background()

	env.configureAccount(t)
	env.recordSale(t, "txn_1", 10000)
	env.recordSale(t, "txn_2", 4000)

	result, err := env.svc.ProcessPayout(ctx, ProcessPayoutParams{})
	if err != nil {
		t.Fatalf("process payout: %v", err)
	}
	if result.Skipped {
		t.Fatalf("unexpected skip: %s", result.SkipReason)
	}
	record := result.Record
	if record.Status != enums.PayoutStatusCompleted {
		t.Fatalf("record status = %s, want completed", record.Status)
	}
	if record.AmountCents != 1750 {
		t.Fatalf("payout amount = %d, want 1750", record.AmountCents)
	}
	if record.BankAccountLast4 != "6789" {
		t.Fatalf("record last4 = %q", record.BankAccountLast4)
	}
	if record.Reference == nil || *record.Reference != "sim_"+record.ID.String() {
		t.Fatalf("unexpected reference: %v", record.Reference)
	}
	if record.EstimatedArrival == nil || record.CompletedAt == nil {
		t.Fatalf("completion fields missing: %+v", record)
	}

	snap, err := env.svc.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.State.PendingBalanceCents != 0 {
		t.Fatalf("pending = %d after full drain", snap.State.PendingBalanceCents)
	}
	if snap.State.TotalPayoutsCents != 1750 {
		t.Fatalf("total payouts = %d, want 1750", snap.State.TotalPayoutsCents)
	}
	if snap.State.LastPayoutAt == nil {
		t.Fatal("last payout at not set")
	}
	if snap.State.NextPayoutAt == nil {
		t.Fatal("next payout at not set")
	}
}

func TestService_ProcessPayoutGatewayFailureKeepsBalance(t *testing.T) {
	failing := gateway.NewSimulated(gateway.SimulatedParams{FailNext: 1})
	env := newLedgerTestEnv(t, failing)
	ctx := context.Background()

	env.configureAccount(t)
	env.recordSale(t, "txn_1", 10000)

	result, err := env.svc.ProcessPayout(ctx, ProcessPayoutParams{})
	if !pkgerrors.HasCode(err, pkgerrors.CodeGatewayFailure) {
		t.Fatalf("expected gateway failure, got %v", err)
	}
	if result == nil || result.Record == nil {
		t.Fatal("failed attempt should still return its record")
	}
	if result.Record.Status != enums.PayoutStatusFailed {
		t.Fatalf("record status = %s, want failed", result.Record.Status)
	}
	if result.Record.FailureReason == nil || *result.Record.FailureReason == "" {
		t.Fatal("failure reason not recorded")
	}

	snap, snapErr := env.svc.Snapshot(ctx)
	if snapErr != nil {
		t.Fatalf("snapshot: %v", snapErr)
	}
	if snap.State.PendingBalanceCents != 1250 {
		t.Fatalf("failed payout mutated balance: pending = %d", snap.State.PendingBalanceCents)
	}
	if snap.State.TotalPayoutsCents != 0 {
		t.Fatalf("failed payout counted in totals: %d", snap.State.TotalPayoutsCents)
	}
	if snap.State.NextPayoutAt == nil {
		t.Fatal("failure should still schedule the next payout")
	}

	// Balance intact, so the retry succeeds.
	retry, err := env.svc.ProcessPayout(ctx, ProcessPayoutParams{})
	if err != nil {
		t.Fatalf("retry payout: %v", err)
	}
	if retry.Record.Status != enums.PayoutStatusCompleted || retry.Record.AmountCents != 1250 {
		t.Fatalf("unexpected retry outcome: %+v", retry.Record)
	}
}

func TestService_ProcessPayoutForcedAmount(t *testing.T) {
	env := newLedgerTestEnv(t, nil)
	ctx := context.Background()

	env.configureAccount(t)
	env.recordSale(t, "txn_1", 10000)

	over := int64(5000)
	_, err := env.svc.ProcessPayout(ctx, ProcessPayoutParams{ForcedAmountCents: &over})
	if !pkgerrors.HasCode(err, pkgerrors.CodeInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}

	snap, err := env.svc.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.State.PendingBalanceCents != 1250 {
		t.Fatalf("rejected payout mutated balance: pending = %d", snap.State.PendingBalanceCents)
	}
	if snap.State.NextPayoutAt != nil {
		t.Fatal("rejected payout should not reschedule")
	}

	partial := int64(1000)
	result, err := env.svc.ProcessPayout(ctx, ProcessPayoutParams{ForcedAmountCents: &partial})
	if err != nil {
		t.Fatalf("partial payout: %v", err)
	}
	if result.Record.AmountCents != 1000 {
		t.Fatalf("partial amount = %d, want 1000", result.Record.AmountCents)
	}

	snap, err = env.svc.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.State.PendingBalanceCents != 250 {
		t.Fatalf("pending = %d after partial drain, want 250", snap.State.PendingBalanceCents)
	}
}

func TestService_ProcessPayoutRejectsConcurrent(t *testing.T) {
	inner := gateway.NewSimulated(gateway.SimulatedParams{})
	blocking := newBlockingGateway(inner)
	env := newLedgerTestEnv(t, blocking)
	ctx := context.Background()

	env.configureAccount(t)
	env.recordSale(t, "txn_1", 10000)

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = env.svc.ProcessPayout(ctx, ProcessPayoutParams{})
	}()

	<-blocking.entered
	_, err := env.svc.ProcessPayout(ctx, ProcessPayoutParams{})
	if !pkgerrors.HasCode(err, pkgerrors.CodePayoutInProgress) {
		t.Fatalf("expected payout-in-progress, got %v", err)
	}

	close(blocking.release)
	wg.Wait()
	if firstErr != nil {
		t.Fatalf("first payout failed: %v", firstErr)
	}
}

func TestService_RevenueDuringPayoutStaysPending(t *testing.T) {
	inner := gateway.NewSimulated(gateway.SimulatedParams{})
	blocking := newBlockingGateway(inner)
	env := newLedgerTestEnv(t, blocking)
	ctx := context.Background()

	env.configureAccount(t)
	env.recordSale(t, "txn_1", 10000)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := env.svc.ProcessPayout(ctx, ProcessPayoutParams{}); err != nil {
			t.Errorf("payout: %v", err)
		}
	}()

	// Revenue arriving while the transfer is in flight must not be lost and
	// must not join the amount already in transit.
	<-blocking.entered
	env.recordSale(t, "txn_late", 4000)
	close(blocking.release)
	wg.Wait()

	snap, err := env.svc.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.State.TotalPayoutsCents != 1250 {
		t.Fatalf("payout drained %d, want 1250", snap.State.TotalPayoutsCents)
	}
	if snap.State.PendingBalanceCents != 500 {
		t.Fatalf("late commission lost: pending = %d, want 500", snap.State.PendingBalanceCents)
	}
	if snap.State.PendingBalanceCents != snap.State.TotalCommissionsCents-snap.State.TotalPayoutsCents {
		t.Fatal("balance conservation violated")
	}
}

func TestService_PayoutHistoryNewestFirst(t *testing.T) {
	env := newLedgerTestEnv(t, nil)
	ctx := context.Background()

	env.configureAccount(t)
	env.recordSale(t, "txn_1", 10000)
	amount := int64(500)
	for i := 0; i < 2; i++ {
		if _, err := env.svc.ProcessPayout(ctx, ProcessPayoutParams{ForcedAmountCents: &amount}); err != nil {
			t.Fatalf("payout %d: %v", i, err)
		}
	}

	history, err := env.svc.PayoutHistory(ctx, pagination.Params{Limit: 10})
	if err != nil {
		t.Fatalf("payout history: %v", err)
	}
	if len(history.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(history.Records))
	}
}
