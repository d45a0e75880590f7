package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lapublica/platform-api/internal/domain"
	"gorm.io/gorm"
)

// AuditFilters contains filter options for listing audit entries
type AuditFilters struct {
	Action     *domain.AuditAction
	EntityType *string
	EntityID   *uuid.UUID
	ActorID    *uuid.UUID
	After      *time.Time
	Before     *time.Time
}

type AuditLogRepository struct {
	db *gorm.DB
}

func NewAuditLogRepository(db *gorm.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

// WithTx returns a copy of the repository bound to a transaction.
// Redemption audit rows are written through this so they commit or roll
// back together with the redemption itself.
func (r *AuditLogRepository) WithTx(tx *gorm.DB) *AuditLogRepository {
	return &AuditLogRepository{db: tx}
}

func (r *AuditLogRepository) Create(ctx context.Context, entry *domain.AuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *AuditLogRepository) List(ctx context.Context, page, pageSize int, filters *AuditFilters) ([]domain.AuditLog, int64, error) {
	var entries []domain.AuditLog
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.AuditLog{})
	query = ApplyTenantFilter(ctx, query)

	if filters != nil {
		if filters.Action != nil {
			query = query.Where("action = ?", *filters.Action)
		}
		if filters.EntityType != nil {
			query = query.Where("entity_type = ?", *filters.EntityType)
		}
		if filters.EntityID != nil {
			query = query.Where("entity_id = ?", *filters.EntityID)
		}
		if filters.ActorID != nil {
			query = query.Where("actor_id = ?", *filters.ActorID)
		}
		if filters.After != nil {
			query = query.Where("performed_at >= ?", *filters.After)
		}
		if filters.Before != nil {
			query = query.Where("performed_at <= ?", *filters.Before)
		}
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("performed_at DESC").Offset(offset).Limit(pageSize).Find(&entries).Error
	return entries, total, err
}

// GetByEntity returns the audit trail for a single entity, newest first
func (r *AuditLogRepository) GetByEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit int) ([]domain.AuditLog, error) {
	var entries []domain.AuditLog
	err := r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("performed_at DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}
