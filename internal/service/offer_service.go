package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lapublica/platform-api/internal/auth"
	"github.com/lapublica/platform-api/internal/domain"
	"github.com/lapublica/platform-api/internal/events"
	"github.com/lapublica/platform-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OfferService manages marketplace offers. Activation and featuring are
// gated by the tenant's plan limits.
type OfferService struct {
	offerRepo    *repository.OfferRepository
	limitService *LimitService
	auditService *AuditService
	publisher    *events.Publisher
	logger       *zap.Logger
}

func NewOfferService(
	offerRepo *repository.OfferRepository,
	limitService *LimitService,
	auditService *AuditService,
	publisher *events.Publisher,
	logger *zap.Logger,
) *OfferService {
	return &OfferService{
		offerRepo:    offerRepo,
		limitService: limitService,
		auditService: auditService,
		publisher:    publisher,
		logger:       logger,
	}
}

// Create creates a draft offer for the caller's company. Drafts do not
// count against the active offer limit; the limit is checked on activation.
func (s *OfferService) Create(ctx context.Context, req *domain.CreateOfferRequest) (*domain.Offer, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok || userCtx.CompanyID == nil {
		return nil, ErrForbidden
	}

	if req.DiscountPrice != nil && *req.DiscountPrice >= req.ListedPrice {
		return nil, fmt.Errorf("%w: discount price must be below listed price", ErrValidation)
	}

	offer := &domain.Offer{
		Title:         req.Title,
		Description:   req.Description,
		ListedPrice:   req.ListedPrice,
		DiscountPrice: req.DiscountPrice,
		Status:        domain.OfferStatusDraft,
		ExpiresAt:     req.ExpiresAt,
		CompanyID:     *userCtx.CompanyID,
		CreatedByID:   &userCtx.UserID,
	}
	if err := s.offerRepo.Create(ctx, offer); err != nil {
		return nil, fmt.Errorf("failed to create offer: %w", err)
	}

	s.auditService.Record(ctx, &domain.AuditLog{
		Action:     domain.AuditActionCreate,
		EntityType: "offer",
		EntityID:   &offer.ID,
		EntityName: offer.Title,
	})

	return offer, nil
}

// GetByID returns an offer within the caller's tenant scope
func (s *OfferService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Offer, error) {
	offer, err := s.offerRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return offer, nil
}

// GetPublic returns an active offer for the public marketplace view
func (s *OfferService) GetPublic(ctx context.Context, id uuid.UUID) (*domain.Offer, error) {
	offer, err := s.offerRepo.GetByIDPublic(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if offer.Status != domain.OfferStatusActive {
		return nil, ErrNotFound
	}
	return offer, nil
}

// Update applies a partial update. Moving status to active goes through
// the plan limit check.
func (s *OfferService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateOfferRequest) (*domain.Offer, error) {
	offer, err := s.offerRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if req.Title != nil {
		offer.Title = *req.Title
	}
	if req.Description != nil {
		offer.Description = *req.Description
	}
	if req.ListedPrice != nil {
		offer.ListedPrice = *req.ListedPrice
	}
	if req.DiscountPrice != nil {
		offer.DiscountPrice = req.DiscountPrice
	}
	if req.ExpiresAt != nil {
		offer.ExpiresAt = req.ExpiresAt
	}
	if offer.DiscountPrice != nil && *offer.DiscountPrice >= offer.ListedPrice {
		return nil, fmt.Errorf("%w: discount price must be below listed price", ErrValidation)
	}

	if req.Status != nil {
		newStatus := domain.OfferStatus(*req.Status)
		if newStatus == domain.OfferStatusActive && offer.Status != domain.OfferStatusActive {
			if err := s.limitService.Enforce(ctx, offer.CompanyID, domain.LimitActiveOffers, 1); err != nil {
				return nil, err
			}
		}
		offer.Status = newStatus
	}

	if err := s.offerRepo.Update(ctx, offer); err != nil {
		return nil, fmt.Errorf("failed to update offer: %w", err)
	}

	s.auditService.Record(ctx, &domain.AuditLog{
		Action:     domain.AuditActionUpdate,
		EntityType: "offer",
		EntityID:   &offer.ID,
		EntityName: offer.Title,
	})

	return offer, nil
}

// Activate publishes a draft or paused offer to the marketplace, subject
// to the active offer limit.
func (s *OfferService) Activate(ctx context.Context, id uuid.UUID) (*domain.Offer, error) {
	offer, err := s.offerRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if offer.Status == domain.OfferStatusActive {
		return offer, nil
	}
	if offer.Status == domain.OfferStatusArchived {
		return nil, fmt.Errorf("%w: archived offers cannot be reactivated", ErrValidation)
	}

	if err := s.limitService.Enforce(ctx, offer.CompanyID, domain.LimitActiveOffers, 1); err != nil {
		return nil, err
	}

	offer.Status = domain.OfferStatusActive
	if err := s.offerRepo.Update(ctx, offer); err != nil {
		return nil, fmt.Errorf("failed to activate offer: %w", err)
	}

	s.logger.Info("offer activated",
		zap.String("offer_id", offer.ID.String()),
		zap.String("company_id", offer.CompanyID.String()),
	)
	return offer, nil
}

// SetFeatured toggles an offer's featured flag. Featuring is limited by
// the plan's featured offer ceiling.
func (s *OfferService) SetFeatured(ctx context.Context, id uuid.UUID, featured bool) (*domain.Offer, error) {
	offer, err := s.offerRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if offer.Featured == featured {
		return offer, nil
	}

	if featured {
		if err := s.limitService.Enforce(ctx, offer.CompanyID, domain.LimitFeaturedOffers, 1); err != nil {
			return nil, err
		}
	}

	if err := s.offerRepo.SetFeatured(ctx, id, featured); err != nil {
		return nil, fmt.Errorf("failed to set featured: %w", err)
	}
	offer.Featured = featured

	if featured {
		s.auditService.Record(ctx, &domain.AuditLog{
			Action:     domain.AuditActionFeature,
			EntityType: "offer",
			EntityID:   &offer.ID,
			EntityName: offer.Title,
		})
		s.publisher.Publish(ctx, events.EventOfferFeatured, map[string]interface{}{
			"offerId":   offer.ID,
			"companyId": offer.CompanyID,
		})
	}

	return offer, nil
}

// Delete removes an offer from the caller's tenant
func (s *OfferService) Delete(ctx context.Context, id uuid.UUID) error {
	offer, err := s.offerRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	if err := s.offerRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete offer: %w", err)
	}

	s.auditService.Record(ctx, &domain.AuditLog{
		Action:     domain.AuditActionDelete,
		EntityType: "offer",
		EntityID:   &offer.ID,
		EntityName: offer.Title,
	})
	return nil
}

// List returns a page of the tenant's offers
func (s *OfferService) List(ctx context.Context, page, pageSize int, filters *repository.OfferFilters, sort repository.SortConfig) ([]domain.Offer, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > repository.MaxPageSize {
		pageSize = 20
	}
	return s.offerRepo.List(ctx, page, pageSize, filters, sort)
}

// ListMarketplace returns the public marketplace listing, featured first
func (s *OfferService) ListMarketplace(ctx context.Context, page, pageSize int) ([]domain.Offer, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > repository.MaxPageSize {
		pageSize = 20
	}
	return s.offerRepo.ListActive(ctx, page, pageSize)
}

// ArchiveExpired archives offers past their expiry. Run by the cron job.
func (s *OfferService) ArchiveExpired(ctx context.Context) (int64, error) {
	return s.offerRepo.ArchiveExpired(ctx, time.Now().UTC())
}
