package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lapublica/platform-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LeadFilters contains all filter options for listing leads
type LeadFilters struct {
	Status        *domain.PipelineStatus
	Priority      *domain.LeadPriority
	Source        *domain.LeadSource
	OwnerID       *uuid.UUID
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	SearchQuery   *string
}

type LeadRepository struct {
	db *gorm.DB
}

func NewLeadRepository(db *gorm.DB) *LeadRepository {
	return &LeadRepository{db: db}
}

// WithTx returns a copy of the repository bound to a transaction
func (r *LeadRepository) WithTx(tx *gorm.DB) *LeadRepository {
	return &LeadRepository{db: tx}
}

func (r *LeadRepository) Create(ctx context.Context, lead *domain.Lead) error {
	// Omit associations to avoid GORM trying to validate related records
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(lead).Error
}

func (r *LeadRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Lead, error) {
	var lead domain.Lead
	query := r.db.WithContext(ctx).
		Preload("Owner").
		Where("id = ?", id)
	query = ApplyTenantFilterWithColumn(ctx, query, "tenant_id")
	err := query.First(&lead).Error
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

func (r *LeadRepository) Update(ctx context.Context, lead *domain.Lead) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(lead).Error
}

func (r *LeadRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&domain.Lead{}, "id = ?", id).Error
}

func (r *LeadRepository) List(ctx context.Context, page, pageSize int, filters *LeadFilters, sort SortConfig) ([]domain.Lead, int64, error) {
	var leads []domain.Lead
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Lead{}).Preload("Owner")
	query = ApplyTenantFilterWithColumn(ctx, query, "tenant_id")
	query = r.applyFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	orderClause := BuildOrderClause(sort, map[string]string{
		"createdAt":      "created_at",
		"updatedAt":      "updated_at",
		"companyName":    "company_name",
		"priority":       "priority",
		"estimatedValue": "estimated_value",
		"enteredStageAt": "entered_stage_at",
	}, "updated_at")

	offset := (page - 1) * pageSize
	err := query.Order(orderClause).Offset(offset).Limit(pageSize).Find(&leads).Error

	return leads, total, err
}

// GetByStage returns all leads in a stage, most valuable first
func (r *LeadRepository) GetByStage(ctx context.Context, stage domain.PipelineStatus) ([]domain.Lead, error) {
	var leads []domain.Lead
	query := r.db.WithContext(ctx).
		Preload("Owner").
		Where("status = ?", stage)
	query = ApplyTenantFilterWithColumn(ctx, query, "tenant_id")
	err := query.Order("estimated_value DESC").Find(&leads).Error
	return leads, err
}

// GetBoard returns open leads grouped by stage for the pipeline board
func (r *LeadRepository) GetBoard(ctx context.Context) (map[domain.PipelineStatus][]domain.Lead, error) {
	var leads []domain.Lead
	query := r.db.WithContext(ctx).
		Preload("Owner").
		Where("status NOT IN ?", []domain.PipelineStatus{domain.StageWon, domain.StageLost})
	query = ApplyTenantFilterWithColumn(ctx, query, "tenant_id")
	err := query.Order("status, estimated_value DESC").Find(&leads).Error
	if err != nil {
		return nil, err
	}

	board := make(map[domain.PipelineStatus][]domain.Lead)
	for _, lead := range leads {
		board[lead.Status] = append(board[lead.Status], lead)
	}
	return board, nil
}

// CountByStage returns lead counts grouped by stage
func (r *LeadRepository) CountByStage(ctx context.Context) (map[domain.PipelineStatus]int64, error) {
	type result struct {
		Status domain.PipelineStatus
		Count  int64
	}
	var results []result

	query := r.db.WithContext(ctx).Model(&domain.Lead{}).
		Select("status, COUNT(*) as count").
		Group("status")
	query = ApplyTenantFilterWithColumn(ctx, query, "tenant_id")
	if err := query.Scan(&results).Error; err != nil {
		return nil, err
	}

	counts := make(map[domain.PipelineStatus]int64)
	for _, r := range results {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

// Count returns the total number of leads in scope
func (r *LeadRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	query := r.db.WithContext(ctx).Model(&domain.Lead{})
	query = ApplyTenantFilterWithColumn(ctx, query, "tenant_id")
	err := query.Count(&total).Error
	return total, err
}

// ExistsByOrgNumber reports whether a lead with the org number already exists.
// Used by the registry import to avoid duplicates.
func (r *LeadRepository) ExistsByOrgNumber(ctx context.Context, orgNumber string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Lead{}).
		Where("org_number = ?", orgNumber).
		Count(&count).Error
	return count > 0, err
}

// UpdateStage updates the stage fields only; history is recorded separately
func (r *LeadRepository) UpdateStage(ctx context.Context, id uuid.UUID, stage domain.PipelineStatus) error {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":           stage,
		"entered_stage_at": now,
		"updated_at":       now,
	}
	return r.db.WithContext(ctx).Model(&domain.Lead{}).Where("id = ?", id).Updates(updates).Error
}

func (r *LeadRepository) applyFilters(query *gorm.DB, filters *LeadFilters) *gorm.DB {
	if filters == nil {
		return query
	}

	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}

	if filters.Priority != nil {
		query = query.Where("priority = ?", *filters.Priority)
	}

	if filters.Source != nil {
		query = query.Where("source = ?", *filters.Source)
	}

	if filters.OwnerID != nil {
		query = query.Where("owner_id = ?", *filters.OwnerID)
	}

	if filters.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *filters.CreatedAfter)
	}

	if filters.CreatedBefore != nil {
		query = query.Where("created_at <= ?", *filters.CreatedBefore)
	}

	if filters.SearchQuery != nil && *filters.SearchQuery != "" {
		searchPattern := "%" + strings.ToLower(*filters.SearchQuery) + "%"
		query = query.Where("LOWER(company_name) LIKE ? OR LOWER(contact_name) LIKE ? OR LOWER(contact_email) LIKE ?",
			searchPattern, searchPattern, searchPattern)
	}

	return query
}
