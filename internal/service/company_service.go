package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lapublica/platform-api/internal/domain"
	"github.com/lapublica/platform-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CompanyService manages tenants and their plan assignments
type CompanyService struct {
	companyRepo  *repository.CompanyRepository
	planRepo     *repository.PlanRepository
	limitService *LimitService
	auditService *AuditService
	logger       *zap.Logger
}

func NewCompanyService(
	companyRepo *repository.CompanyRepository,
	planRepo *repository.PlanRepository,
	limitService *LimitService,
	auditService *AuditService,
	logger *zap.Logger,
) *CompanyService {
	return &CompanyService{
		companyRepo:  companyRepo,
		planRepo:     planRepo,
		limitService: limitService,
		auditService: auditService,
		logger:       logger,
	}
}

// Create registers a new company in the intake pipeline
func (s *CompanyService) Create(ctx context.Context, company *domain.Company) (*domain.Company, error) {
	if company.Name == "" {
		return nil, fmt.Errorf("%w: company name is required", ErrValidation)
	}
	if company.OrgNumber != "" {
		existing, err := s.companyRepo.GetByOrgNumber(ctx, company.OrgNumber)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to check org number: %w", err)
		}
		if existing != nil {
			return nil, fmt.Errorf("%w: a company with org number %s already exists", ErrConflict, company.OrgNumber)
		}
	}

	company.PipelineStatus = domain.StageNew
	company.EnteredStageAt = time.Now().UTC()
	company.IsActive = true
	if err := s.companyRepo.Create(ctx, company); err != nil {
		return nil, fmt.Errorf("failed to create company: %w", err)
	}

	s.auditService.Record(ctx, &domain.AuditLog{
		Action:     domain.AuditActionCreate,
		EntityType: "company",
		EntityID:   &company.ID,
		EntityName: company.Name,
	})

	return company, nil
}

// GetByID returns a company by ID
func (s *CompanyService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Company, error) {
	company, err := s.companyRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return company, nil
}

// Update applies changes to a company's profile fields
func (s *CompanyService) Update(ctx context.Context, company *domain.Company) (*domain.Company, error) {
	if _, err := s.companyRepo.GetByID(ctx, company.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := s.companyRepo.Update(ctx, company); err != nil {
		return nil, fmt.Errorf("failed to update company: %w", err)
	}

	s.auditService.Record(ctx, &domain.AuditLog{
		Action:     domain.AuditActionUpdate,
		EntityType: "company",
		EntityID:   &company.ID,
		EntityName: company.Name,
	})
	return company, nil
}

// List returns a page of companies
func (s *CompanyService) List(ctx context.Context, page, pageSize int, filters *repository.CompanyFilters, sort repository.SortConfig) ([]domain.Company, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > repository.MaxPageSize {
		pageSize = 20
	}
	return s.companyRepo.List(ctx, page, pageSize, filters, sort)
}

// AssignPlan moves a company onto a plan and invalidates the cached plan
// so the next limit check sees the new ceilings.
func (s *CompanyService) AssignPlan(ctx context.Context, companyID, planID uuid.UUID) error {
	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: plan %s", ErrNotFound, planID)
		}
		return err
	}
	if _, err := s.companyRepo.GetByID(ctx, companyID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	if err := s.companyRepo.AssignPlan(ctx, companyID, planID); err != nil {
		return fmt.Errorf("failed to assign plan: %w", err)
	}
	s.limitService.InvalidatePlan(ctx, companyID)

	s.auditService.Record(ctx, &domain.AuditLog{
		Action:     domain.AuditActionUpdate,
		EntityType: "company",
		EntityID:   &companyID,
		CompanyID:  &companyID,
		Metadata:   domain.MarshalEvent(domain.PlanChangeEvent{PlanID: planID, PlanTier: plan.Tier}),
	})

	s.logger.Info("plan assigned",
		zap.String("company_id", companyID.String()),
		zap.String("plan_tier", string(plan.Tier)),
	)
	return nil
}

// ListPlans returns all active plans
func (s *CompanyService) ListPlans(ctx context.Context) ([]domain.Plan, error) {
	return s.planRepo.List(ctx)
}
