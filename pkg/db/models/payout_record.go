package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/beatmarkethq/backend/pkg/enums"
)

// PayoutRecord captures a single payout attempt. A record is appended when the
// attempt begins and kept regardless of outcome; failed attempts stay in the
// audit trail.
type PayoutRecord struct {
	ID               uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AmountCents      int64              `gorm:"column:amount_cents;not null"`
	Status           enums.PayoutStatus `gorm:"column:status;type:payout_status;not null;default:'processing'"`
	Method           enums.PayoutMethod `gorm:"column:method;type:payout_method;not null;default:'bank_transfer'"`
	BankAccountLast4 string             `gorm:"column:bank_account_last4;not null"`
	Reference        *string            `gorm:"column:reference"`
	FailureReason    *string            `gorm:"column:failure_reason"`
	EstimatedArrival *time.Time         `gorm:"column:estimated_arrival"`
	TriggeredAt      time.Time          `gorm:"column:triggered_at;not null"`
	CompletedAt      *time.Time         `gorm:"column:completed_at"`
	CreatedAt        time.Time          `gorm:"column:created_at;autoCreateTime"`
}
