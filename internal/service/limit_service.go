package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lapublica/platform-api/internal/cache"
	"github.com/lapublica/platform-api/internal/domain"
	"github.com/lapublica/platform-api/internal/metrics"
	"github.com/lapublica/platform-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// LimitService checks tenant resource usage against plan ceilings.
// Checks are advisory: they read current usage and compare, they do not
// reserve capacity. Two concurrent creates near the ceiling can both pass;
// the ceiling is a product constraint, not a hard database invariant.
type LimitService struct {
	planRepo       *repository.PlanRepository
	offerRepo      *repository.OfferRepository
	userRepo       *repository.UserRepository
	attachmentRepo *repository.AttachmentRepository
	planCache      *cache.PlanCache
	logger         *zap.Logger
}

func NewLimitService(
	planRepo *repository.PlanRepository,
	offerRepo *repository.OfferRepository,
	userRepo *repository.UserRepository,
	attachmentRepo *repository.AttachmentRepository,
	planCache *cache.PlanCache,
	logger *zap.Logger,
) *LimitService {
	return &LimitService{
		planRepo:       planRepo,
		offerRepo:      offerRepo,
		userRepo:       userRepo,
		attachmentRepo: attachmentRepo,
		planCache:      planCache,
		logger:         logger,
	}
}

// Check evaluates a single limit kind for a company. extra is added to the
// current usage before comparing, so callers can ask "may I add N more".
// Unlimited ceilings short-circuit without a usage query.
func (s *LimitService) Check(ctx context.Context, companyID uuid.UUID, kind domain.LimitKind, extra int64) (*domain.LimitStatus, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: unknown limit kind %q", ErrValidation, kind)
	}

	plan, err := s.resolvePlan(ctx, companyID)
	if err != nil {
		return nil, err
	}

	ceiling := plan.Ceiling(kind)

	status := &domain.LimitStatus{
		Kind:  kind,
		Limit: ceiling,
	}

	// Unlimited: no point counting, the answer is always yes
	if ceiling == domain.UnlimitedLimit {
		status.Unlimited = true
		status.Allowed = true
		metrics.RecordLimitCheck(string(kind), true)
		return status, nil
	}

	current, err := s.currentUsage(ctx, companyID, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to count %s usage: %w", kind, err)
	}

	status.Current = current
	remaining := ceiling - current
	if remaining < 0 {
		remaining = 0
	}
	status.Remaining = &remaining
	status.Allowed = current+extra <= ceiling

	metrics.RecordLimitCheck(string(kind), status.Allowed)

	if !status.Allowed {
		s.logger.Info("plan limit denied",
			zap.String("company_id", companyID.String()),
			zap.String("kind", string(kind)),
			zap.Int64("limit", ceiling),
			zap.Int64("current", current),
			zap.Int64("requested_extra", extra),
		)
	}

	return status, nil
}

// Enforce is Check that turns a denial into ErrLimitReached
func (s *LimitService) Enforce(ctx context.Context, companyID uuid.UUID, kind domain.LimitKind, extra int64) error {
	status, err := s.Check(ctx, companyID, kind, extra)
	if err != nil {
		return err
	}
	if !status.Allowed {
		return fmt.Errorf("%w: %s (limit %d, current %d)", ErrLimitReached, kind, status.Limit, status.Current)
	}
	return nil
}

// GetAll returns the status of every limit kind for a company
func (s *LimitService) GetAll(ctx context.Context, companyID uuid.UUID) ([]domain.LimitStatus, error) {
	kinds := []domain.LimitKind{
		domain.LimitActiveOffers,
		domain.LimitTeamMembers,
		domain.LimitFeaturedOffers,
		domain.LimitStorageBytes,
	}

	statuses := make([]domain.LimitStatus, 0, len(kinds))
	for _, kind := range kinds {
		status, err := s.Check(ctx, companyID, kind, 1)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, *status)
	}
	return statuses, nil
}

// resolvePlan loads the company's plan, preferring the cache
func (s *LimitService) resolvePlan(ctx context.Context, companyID uuid.UUID) (*domain.Plan, error) {
	if plan, _ := s.planCache.Get(ctx, companyID); plan != nil {
		return plan, nil
	}

	plan, err := s.planRepo.GetForCompany(ctx, companyID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: company has no resolvable plan", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to resolve plan: %w", err)
	}

	s.planCache.Set(ctx, companyID, plan)
	return plan, nil
}

func (s *LimitService) currentUsage(ctx context.Context, companyID uuid.UUID, kind domain.LimitKind) (int64, error) {
	switch kind {
	case domain.LimitActiveOffers:
		return s.offerRepo.CountActiveByCompany(ctx, companyID)
	case domain.LimitTeamMembers:
		return s.userRepo.CountActiveByCompany(ctx, companyID)
	case domain.LimitFeaturedOffers:
		return s.offerRepo.CountFeaturedByCompany(ctx, companyID)
	case domain.LimitStorageBytes:
		return s.attachmentRepo.SumSizeByCompany(ctx, companyID)
	}
	return 0, fmt.Errorf("unknown limit kind: %s", kind)
}

// InvalidatePlan drops the company's cached plan after a plan change
func (s *LimitService) InvalidatePlan(ctx context.Context, companyID uuid.UUID) {
	s.planCache.Invalidate(ctx, companyID)
}
