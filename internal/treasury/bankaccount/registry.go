package bankaccount

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/beatmarkethq/backend/pkg/db/models"
	"github.com/beatmarkethq/backend/pkg/enums"
	pkgerrors "github.com/beatmarkethq/backend/pkg/errors"
)

// Registry owns the payout destination configuration.
type Registry interface {
	// Update replaces the stored account wholesale and marks it configured.
	Update(ctx context.Context, input UpdateInput) (*models.BankAccount, error)
	// Get returns the full account for the ledger/gateway layer, or nil when
	// no account has been configured yet.
	Get(ctx context.Context) (*models.BankAccount, error)
	// Redacted returns the external-facing view: last-4 digits only.
	Redacted(ctx context.Context) (*Redacted, error)
}

// UpdateInput carries the admin-supplied destination account details.
type UpdateInput struct {
	AccountHolder string
	BankName      string
	AccountNumber string
	RoutingNumber string
	AccountType   enums.BankAccountType
}

// Redacted is the only account shape that leaves this subsystem.
type Redacted struct {
	AccountHolder string                `json:"account_holder"`
	BankName      string                `json:"bank_name"`
	AccountLast4  string                `json:"account_last4"`
	AccountType   enums.BankAccountType `json:"account_type"`
	Configured    bool                  `json:"configured"`
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type registry struct {
	db   txRunner
	repo Repository
}

// NewRegistry wires the registry with its persistence dependencies.
func NewRegistry(db txRunner, repo Repository) (Registry, error) {
	if db == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("bank account repository required")
	}
	return &registry{db: db, repo: repo}, nil
}

func (r *registry) Update(ctx context.Context, input UpdateInput) (*models.BankAccount, error) {
	accountNumber := strings.TrimSpace(input.AccountNumber)
	routingNumber := strings.TrimSpace(input.RoutingNumber)
	if accountNumber == "" || routingNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account number and routing number are required")
	}

	accountType := input.AccountType
	if accountType == "" {
		accountType = enums.BankAccountTypeChecking
	}
	if !accountType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid bank account type %q", accountType))
	}

	account := &models.BankAccount{
		ID:            uuid.New(),
		AccountHolder: strings.TrimSpace(input.AccountHolder),
		BankName:      strings.TrimSpace(input.BankName),
		AccountNumber: accountNumber,
		RoutingNumber: routingNumber,
		AccountType:   accountType,
		Configured:    true,
	}

	if err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		return r.repo.WithTx(tx).Replace(ctx, account)
	}); err != nil {
		return nil, fmt.Errorf("replace bank account: %w", err)
	}
	return account, nil
}

func (r *registry) Get(ctx context.Context) (*models.BankAccount, error) {
	return r.repo.Find(ctx)
}

func (r *registry) Redacted(ctx context.Context) (*Redacted, error) {
	account, err := r.repo.Find(ctx)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return &Redacted{Configured: false}, nil
	}
	return RedactAccount(account), nil
}

// RedactAccount converts a full account into its external-facing view.
func RedactAccount(account *models.BankAccount) *Redacted {
	if account == nil {
		return &Redacted{Configured: false}
	}
	return &Redacted{
		AccountHolder: account.AccountHolder,
		BankName:      account.BankName,
		AccountLast4:  account.Last4(),
		AccountType:   account.AccountType,
		Configured:    account.Configured,
	}
}
