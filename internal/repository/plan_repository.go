package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/lapublica/platform-api/internal/domain"
	"gorm.io/gorm"
)

type PlanRepository struct {
	db *gorm.DB
}

func NewPlanRepository(db *gorm.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

func (r *PlanRepository) Create(ctx context.Context, plan *domain.Plan) error {
	return r.db.WithContext(ctx).Create(plan).Error
}

func (r *PlanRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Plan, error) {
	var plan domain.Plan
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&plan).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *PlanRepository) GetByTier(ctx context.Context, tier domain.PlanTier) (*domain.Plan, error) {
	var plan domain.Plan
	err := r.db.WithContext(ctx).Where("tier = ?", tier).First(&plan).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *PlanRepository) List(ctx context.Context) ([]domain.Plan, error) {
	var plans []domain.Plan
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("monthly_price ASC").
		Find(&plans).Error
	return plans, err
}

func (r *PlanRepository) Update(ctx context.Context, plan *domain.Plan) error {
	return r.db.WithContext(ctx).Save(plan).Error
}

// GetForCompany resolves the plan assigned to a company.
// Companies without an assigned plan fall back to the free tier.
func (r *PlanRepository) GetForCompany(ctx context.Context, companyID uuid.UUID) (*domain.Plan, error) {
	var company domain.Company
	if err := r.db.WithContext(ctx).Select("plan_id").Where("id = ?", companyID).First(&company).Error; err != nil {
		return nil, err
	}

	if company.PlanID == nil {
		return r.GetByTier(ctx, domain.PlanTierFree)
	}
	return r.GetByID(ctx, *company.PlanID)
}
