package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/beatmarkethq/backend/pkg/db/models"
	"github.com/beatmarkethq/backend/pkg/pagination"
)

// Repository manages persistence for the ledger aggregate and its append-only
// history tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	// LoadState returns the singleton ledger row, creating a zeroed one when
	// the table is empty.
	LoadState(ctx context.Context) (*models.LedgerState, error)
	SaveState(ctx context.Context, state *models.LedgerState) error
	CreateEntry(ctx context.Context, entry *models.RevenueEntry) error
	FindEntryByTransactionID(ctx context.Context, transactionID string) (*models.RevenueEntry, error)
	CreatePayoutRecord(ctx context.Context, record *models.PayoutRecord) error
	UpdatePayoutRecord(ctx context.Context, record *models.PayoutRecord) error
	ListPayoutRecords(ctx context.Context, params pagination.Params) ([]models.PayoutRecord, *pagination.Cursor, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) LoadState(ctx context.Context) (*models.LedgerState, error) {
	var state models.LedgerState
	err := r.db.WithContext(ctx).
		Order("created_at ASC").
		First(&state).Error
	if err == nil {
		return &state, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	state.ID = uuid.New()
	if err := r.db.WithContext(ctx).Create(&state).Error; err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *repository) SaveState(ctx context.Context, state *models.LedgerState) error {
	return r.db.WithContext(ctx).Save(state).Error
}

func (r *repository) CreateEntry(ctx context.Context, entry *models.RevenueEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) FindEntryByTransactionID(ctx context.Context, transactionID string) (*models.RevenueEntry, error) {
	var entry models.RevenueEntry
	if err := r.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		First(&entry).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (r *repository) CreatePayoutRecord(ctx context.Context, record *models.PayoutRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *repository) UpdatePayoutRecord(ctx context.Context, record *models.PayoutRecord) error {
	return r.db.WithContext(ctx).Save(record).Error
}

func (r *repository) ListPayoutRecords(ctx context.Context, params pagination.Params) ([]models.PayoutRecord, *pagination.Cursor, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).
		Model(&models.PayoutRecord{}).
		Order("triggered_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit))

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, nil, err
	}
	if cursor != nil {
		query = query.Where(
			"(triggered_at < ?) OR (triggered_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var records []models.PayoutRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, nil, err
	}

	var next *pagination.Cursor
	if len(records) > limit {
		records = records[:limit]
		last := records[len(records)-1]
		next = &pagination.Cursor{CreatedAt: last.TriggeredAt, ID: last.ID}
	}
	return records, next, nil
}
