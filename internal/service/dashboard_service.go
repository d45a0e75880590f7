package service

import (
	"context"
	"fmt"

	"github.com/lapublica/platform-api/internal/domain"
	"github.com/lapublica/platform-api/internal/repository"
	"go.uber.org/zap"
)

// DashboardService aggregates pipeline and marketplace figures for the
// dashboard view. All queries run in the caller's tenant scope.
type DashboardService struct {
	leadRepo       *repository.LeadRepository
	offerRepo      *repository.OfferRepository
	couponRepo     *repository.CouponRepository
	redemptionRepo *repository.RedemptionRepository
	logger         *zap.Logger
}

func NewDashboardService(
	leadRepo *repository.LeadRepository,
	offerRepo *repository.OfferRepository,
	couponRepo *repository.CouponRepository,
	redemptionRepo *repository.RedemptionRepository,
	logger *zap.Logger,
) *DashboardService {
	return &DashboardService{
		leadRepo:       leadRepo,
		offerRepo:      offerRepo,
		couponRepo:     couponRepo,
		redemptionRepo: redemptionRepo,
		logger:         logger,
	}
}

// GetSummary returns the aggregate dashboard figures
func (s *DashboardService) GetSummary(ctx context.Context) (*domain.DashboardSummary, error) {
	totalLeads, err := s.leadRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count leads: %w", err)
	}

	leadsByStage, err := s.leadRepo.CountByStage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count leads by stage: %w", err)
	}

	_, totalOffers, err := s.offerRepo.List(ctx, 1, 1, nil, repository.DefaultSortConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to count offers: %w", err)
	}

	activeStatus := domain.OfferStatusActive
	_, activeOffers, err := s.offerRepo.List(ctx, 1, 1, &repository.OfferFilters{Status: &activeStatus}, repository.DefaultSortConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to count active offers: %w", err)
	}

	couponCounts, err := s.couponRepo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count coupons: %w", err)
	}

	totals, err := s.redemptionRepo.GetTotals(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to total redemptions: %w", err)
	}

	return &domain.DashboardSummary{
		TotalLeads:       totalLeads,
		LeadsByStage:     leadsByStage,
		TotalOffers:      totalOffers,
		ActiveOffers:     activeOffers,
		TotalRedemptions: totals.Count,
		RedeemedValue:    totals.FinalTotal,
		ActiveCoupons:    couponCounts[domain.CouponStatusActive],
	}, nil
}
