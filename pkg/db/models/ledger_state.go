package models

import (
	"time"

	"github.com/google/uuid"
)

// LedgerState is the single authoritative aggregate of platform money totals.
// Exactly one row exists per deployment; every mutation goes through the
// ledger service's critical section.
type LedgerState struct {
	ID                    uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TotalRevenueCents     int64      `gorm:"column:total_revenue_cents;not null;default:0"`
	TotalCommissionsCents int64      `gorm:"column:total_commissions_cents;not null;default:0"`
	TotalPayoutsCents     int64      `gorm:"column:total_payouts_cents;not null;default:0"`
	PendingBalanceCents   int64      `gorm:"column:pending_balance_cents;not null;default:0"`
	LastPayoutAt          *time.Time `gorm:"column:last_payout_at"`
	NextPayoutAt          *time.Time `gorm:"column:next_payout_at"`
	CreatedAt             time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
