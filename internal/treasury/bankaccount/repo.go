package bankaccount

import (
	"context"

	"github.com/beatmarkethq/backend/pkg/db/models"
	"gorm.io/gorm"
)

// Repository manages persistence for the payout destination account.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	// Find returns the current account or nil when none has been saved yet.
	Find(ctx context.Context) (*models.BankAccount, error)
	// Replace removes any stored account and saves the provided one. Updates
	// are wholesale; there is no partial merge.
	Replace(ctx context.Context, account *models.BankAccount) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a bank account repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Find(ctx context.Context) (*models.BankAccount, error) {
	var account models.BankAccount
	if err := r.db.WithContext(ctx).
		Order("updated_at DESC").
		First(&account).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *repository) Replace(ctx context.Context, account *models.BankAccount) error {
	if err := r.db.WithContext(ctx).
		Where("1 = 1").
		Delete(&models.BankAccount{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(account).Error
}
