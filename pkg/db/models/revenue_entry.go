package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/beatmarkethq/backend/pkg/enums"
)

// RevenueEntry records an immutable commission event from a completed sale or
// subscription payment. Entries are append-only; the transaction id is the
// idempotency key against duplicate webhook delivery.
type RevenueEntry struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TransactionID   string              `gorm:"column:transaction_id;not null;uniqueIndex:idx_revenue_entries_transaction_id"`
	Type            enums.RevenueType   `gorm:"column:type;type:revenue_type;not null"`
	GrossCents      int64               `gorm:"column:gross_cents;not null"`
	CommissionCents int64               `gorm:"column:commission_cents;not null"`
	SourceUserID    uuid.UUID           `gorm:"column:source_user_id;type:uuid;not null"`
	Status          enums.RevenueStatus `gorm:"column:status;type:revenue_status;not null;default:'collected'"`
	OccurredAt      time.Time           `gorm:"column:occurred_at;not null"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
}
