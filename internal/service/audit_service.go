package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lapublica/platform-api/internal/auth"
	"github.com/lapublica/platform-api/internal/domain"
	"github.com/lapublica/platform-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AuditService records and queries the audit trail. Record is best-effort;
// callers that need the audit row to commit atomically with their own writes
// use RecordTx inside their transaction instead.
type AuditService struct {
	auditRepo *repository.AuditLogRepository
	logger    *zap.Logger
}

func NewAuditService(auditRepo *repository.AuditLogRepository, logger *zap.Logger) *AuditService {
	return &AuditService{
		auditRepo: auditRepo,
		logger:    logger,
	}
}

// Record writes an audit entry. Failures are logged and swallowed so an
// audit write can never fail the operation it describes.
func (s *AuditService) Record(ctx context.Context, entry *domain.AuditLog) {
	s.prepare(ctx, entry)
	if err := s.auditRepo.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to write audit entry",
			zap.String("action", string(entry.Action)),
			zap.String("entity_type", entry.EntityType),
			zap.Error(err),
		)
	}
}

// RecordTx writes an audit entry inside the caller's transaction. Unlike
// Record, the error propagates: the entry commits or rolls back with the
// caller's writes.
func (s *AuditService) RecordTx(ctx context.Context, tx *gorm.DB, entry *domain.AuditLog) error {
	s.prepare(ctx, entry)
	if err := s.auditRepo.WithTx(tx).Create(ctx, entry); err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}
	return nil
}

func (s *AuditService) prepare(ctx context.Context, entry *domain.AuditLog) {
	if entry.PerformedAt.IsZero() {
		entry.PerformedAt = time.Now().UTC()
	}
	if userCtx, ok := auth.FromContext(ctx); ok {
		if entry.ActorID == uuid.Nil {
			entry.ActorID = userCtx.UserID
		}
		if entry.ActorName == "" {
			entry.ActorName = userCtx.DisplayName
		}
		if entry.CompanyID == nil {
			entry.CompanyID = userCtx.CompanyID
		}
	}
}

// List returns a page of the audit trail
func (s *AuditService) List(ctx context.Context, page, pageSize int, filters *repository.AuditFilters) ([]domain.AuditLog, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > repository.MaxPageSize {
		pageSize = 20
	}
	return s.auditRepo.List(ctx, page, pageSize, filters)
}

// GetByEntity returns recent audit entries for a single entity
func (s *AuditService) GetByEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit int) ([]domain.AuditLog, error) {
	if limit < 1 || limit > 100 {
		limit = 50
	}
	return s.auditRepo.GetByEntity(ctx, entityType, entityID, limit)
}
