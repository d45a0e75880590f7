package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/lapublica/platform-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AttachmentRepository struct {
	db *gorm.DB
}

func NewAttachmentRepository(db *gorm.DB) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

func (r *AttachmentRepository) Create(ctx context.Context, attachment *domain.Attachment) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(attachment).Error
}

func (r *AttachmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Attachment, error) {
	var attachment domain.Attachment
	query := r.db.WithContext(ctx).Where("id = ?", id)
	query = ApplyTenantFilter(ctx, query)
	err := query.First(&attachment).Error
	if err != nil {
		return nil, err
	}
	return &attachment, nil
}

func (r *AttachmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&domain.Attachment{}, "id = ?", id).Error
}

// ListByOffer returns all attachments on an offer
func (r *AttachmentRepository) ListByOffer(ctx context.Context, offerID uuid.UUID) ([]domain.Attachment, error) {
	var attachments []domain.Attachment
	query := r.db.WithContext(ctx).Where("offer_id = ?", offerID)
	query = ApplyTenantFilter(ctx, query)
	err := query.Order("created_at DESC").Find(&attachments).Error
	return attachments, err
}

// SumSizeByCompany totals the stored bytes for a company.
// Backs the storage_bytes plan limit.
func (r *AttachmentRepository) SumSizeByCompany(ctx context.Context, companyID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&domain.Attachment{}).
		Where("company_id = ?", companyID).
		Select("COALESCE(SUM(size), 0)").
		Scan(&total).Error
	return total, err
}
