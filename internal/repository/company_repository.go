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

// CompanyFilters contains filter options for listing companies
type CompanyFilters struct {
	PipelineStatus *domain.PipelineStatus
	City           *string
	IsActive       *bool
	SearchQuery    *string
}

type CompanyRepository struct {
	db *gorm.DB
}

func NewCompanyRepository(db *gorm.DB) *CompanyRepository {
	return &CompanyRepository{db: db}
}

// WithTx returns a copy of the repository bound to a transaction
func (r *CompanyRepository) WithTx(tx *gorm.DB) *CompanyRepository {
	return &CompanyRepository{db: tx}
}

func (r *CompanyRepository) Create(ctx context.Context, company *domain.Company) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(company).Error
}

func (r *CompanyRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Company, error) {
	var company domain.Company
	err := r.db.WithContext(ctx).
		Preload("Plan").
		Where("id = ?", id).
		First(&company).Error
	if err != nil {
		return nil, err
	}
	return &company, nil
}

func (r *CompanyRepository) GetByOrgNumber(ctx context.Context, orgNumber string) (*domain.Company, error) {
	var company domain.Company
	err := r.db.WithContext(ctx).
		Where("org_number = ?", orgNumber).
		First(&company).Error
	if err != nil {
		return nil, err
	}
	return &company, nil
}

func (r *CompanyRepository) Update(ctx context.Context, company *domain.Company) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(company).Error
}

func (r *CompanyRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&domain.Company{}, "id = ?", id).Error
}

func (r *CompanyRepository) List(ctx context.Context, page, pageSize int, filters *CompanyFilters, sort SortConfig) ([]domain.Company, int64, error) {
	var companies []domain.Company
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Company{}).Preload("Plan")
	query = r.applyFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	orderClause := BuildOrderClause(sort, map[string]string{
		"createdAt": "created_at",
		"updatedAt": "updated_at",
		"name":      "name",
		"city":      "city",
	}, "updated_at")

	offset := (page - 1) * pageSize
	err := query.Order(orderClause).Offset(offset).Limit(pageSize).Find(&companies).Error

	return companies, total, err
}

// UpdateStage updates the pipeline fields only; history is recorded separately
func (r *CompanyRepository) UpdateStage(ctx context.Context, id uuid.UUID, stage domain.PipelineStatus) error {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"pipeline_status":  stage,
		"entered_stage_at": now,
		"updated_at":       now,
	}
	return r.db.WithContext(ctx).Model(&domain.Company{}).Where("id = ?", id).Updates(updates).Error
}

// AssignPlan sets the company's subscription plan
func (r *CompanyRepository) AssignPlan(ctx context.Context, id uuid.UUID, planID uuid.UUID) error {
	updates := map[string]interface{}{
		"plan_id":    planID,
		"updated_at": time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Model(&domain.Company{}).Where("id = ?", id).Updates(updates).Error
}

func (r *CompanyRepository) applyFilters(query *gorm.DB, filters *CompanyFilters) *gorm.DB {
	if filters == nil {
		return query
	}

	if filters.PipelineStatus != nil {
		query = query.Where("pipeline_status = ?", *filters.PipelineStatus)
	}

	if filters.City != nil {
		query = query.Where("city = ?", *filters.City)
	}

	if filters.IsActive != nil {
		query = query.Where("is_active = ?", *filters.IsActive)
	}

	if filters.SearchQuery != nil && *filters.SearchQuery != "" {
		searchPattern := "%" + strings.ToLower(*filters.SearchQuery) + "%"
		query = query.Where("LOWER(name) LIKE ? OR org_number LIKE ?", searchPattern, searchPattern)
	}

	return query
}
