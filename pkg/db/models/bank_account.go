package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/beatmarkethq/backend/pkg/enums"
)

// BankAccount holds the destination account for platform payouts. Configured
// is only true once real account and routing numbers have been provided; it
// gates payout execution.
type BankAccount struct {
	ID            uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AccountHolder string                `gorm:"column:account_holder;not null"`
	BankName      string                `gorm:"column:bank_name;not null"`
	AccountNumber string                `gorm:"column:account_number;not null"`
	RoutingNumber string                `gorm:"column:routing_number;not null"`
	AccountType   enums.BankAccountType `gorm:"column:account_type;type:bank_account_type;not null;default:'checking'"`
	Configured    bool                  `gorm:"column:configured;not null;default:false"`
	CreatedAt     time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

// Last4 returns the trailing four digits of the account number for redacted
// display.
func (b BankAccount) Last4() string {
	if len(b.AccountNumber) <= 4 {
		return b.AccountNumber
	}
	return b.AccountNumber[len(b.AccountNumber)-4:]
}
