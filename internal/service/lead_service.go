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
	"github.com/lapublica/platform-api/internal/metrics"
	"github.com/lapublica/platform-api/internal/registry"
	"github.com/lapublica/platform-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// LeadService manages pipeline leads. Stage moves are not handled here,
// they go through PipelineService so the transition trail is kept.
type LeadService struct {
	leadRepo         *repository.LeadRepository
	notificationRepo *repository.NotificationRepository
	auditService     *AuditService
	registryClient   *registry.Client
	publisher        *events.Publisher
	logger           *zap.Logger
}

func NewLeadService(
	leadRepo *repository.LeadRepository,
	notificationRepo *repository.NotificationRepository,
	auditService *AuditService,
	registryClient *registry.Client,
	publisher *events.Publisher,
	logger *zap.Logger,
) *LeadService {
	return &LeadService{
		leadRepo:         leadRepo,
		notificationRepo: notificationRepo,
		auditService:     auditService,
		registryClient:   registryClient,
		publisher:        publisher,
		logger:           logger,
	}
}

// Create creates a lead in the new stage for the caller's tenant
func (s *LeadService) Create(ctx context.Context, req *domain.CreateLeadRequest) (*domain.Lead, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrForbidden
	}

	tenantID := auth.EffectiveTenantFilter(ctx)
	if tenantID == nil {
		return nil, fmt.Errorf("%w: a company scope is required to create leads", ErrValidation)
	}

	priority := domain.PriorityMedium
	if req.Priority != "" {
		priority = domain.LeadPriority(req.Priority)
		if !priority.IsValid() {
			return nil, fmt.Errorf("%w: unknown priority %q", ErrValidation, req.Priority)
		}
	}

	now := time.Now().UTC()
	lead := &domain.Lead{
		CompanyName:    req.CompanyName,
		OrgNumber:      req.OrgNumber,
		ContactName:    req.ContactName,
		ContactEmail:   req.ContactEmail,
		ContactPhone:   req.ContactPhone,
		Status:         domain.StageNew,
		EnteredStageAt: now,
		Priority:       priority,
		Source:         domain.LeadSourceManual,
		EstimatedValue: req.EstimatedValue,
		Notes:          req.Notes,
		TenantID:       *tenantID,
		OwnerID:        req.OwnerID,
	}
	if lead.OwnerID == nil {
		lead.OwnerID = &userCtx.UserID
	}

	if err := s.leadRepo.Create(ctx, lead); err != nil {
		return nil, fmt.Errorf("failed to create lead: %w", err)
	}

	s.auditService.Record(ctx, &domain.AuditLog{
		Action:     domain.AuditActionCreate,
		EntityType: "lead",
		EntityID:   &lead.ID,
		EntityName: lead.CompanyName,
	})

	s.notifyAssignment(ctx, lead, userCtx.UserID)

	return lead, nil
}

// GetByID returns a lead within the caller's tenant scope
func (s *LeadService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Lead, error) {
	lead, err := s.leadRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return lead, nil
}

// Update applies a partial update. The stage field is untouchable here.
func (s *LeadService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateLeadRequest) (*domain.Lead, error) {
	lead, err := s.leadRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	previousOwner := lead.OwnerID

	if req.CompanyName != nil {
		lead.CompanyName = *req.CompanyName
	}
	if req.ContactName != nil {
		lead.ContactName = *req.ContactName
	}
	if req.ContactEmail != nil {
		lead.ContactEmail = *req.ContactEmail
	}
	if req.ContactPhone != nil {
		lead.ContactPhone = *req.ContactPhone
	}
	if req.Priority != nil {
		priority := domain.LeadPriority(*req.Priority)
		if !priority.IsValid() {
			return nil, fmt.Errorf("%w: unknown priority %q", ErrValidation, *req.Priority)
		}
		lead.Priority = priority
	}
	if req.EstimatedValue != nil {
		lead.EstimatedValue = *req.EstimatedValue
	}
	if req.Notes != nil {
		lead.Notes = *req.Notes
	}
	if req.OwnerID != nil {
		lead.OwnerID = req.OwnerID
	}

	if err := s.leadRepo.Update(ctx, lead); err != nil {
		return nil, fmt.Errorf("failed to update lead: %w", err)
	}

	s.auditService.Record(ctx, &domain.AuditLog{
		Action:     domain.AuditActionUpdate,
		EntityType: "lead",
		EntityID:   &lead.ID,
		EntityName: lead.CompanyName,
	})

	if req.OwnerID != nil && (previousOwner == nil || *previousOwner != *req.OwnerID) {
		if userCtx, ok := auth.FromContext(ctx); ok {
			s.notifyAssignment(ctx, lead, userCtx.UserID)
		}
	}

	return lead, nil
}

// Delete removes a lead and its transition history
func (s *LeadService) Delete(ctx context.Context, id uuid.UUID) error {
	lead, err := s.leadRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	if err := s.leadRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete lead: %w", err)
	}

	s.auditService.Record(ctx, &domain.AuditLog{
		Action:     domain.AuditActionDelete,
		EntityType: "lead",
		EntityID:   &lead.ID,
		EntityName: lead.CompanyName,
	})
	return nil
}

// List returns a page of the tenant's leads
func (s *LeadService) List(ctx context.Context, page, pageSize int, filters *repository.LeadFilters, sort repository.SortConfig) ([]domain.Lead, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > repository.MaxPageSize {
		pageSize = 20
	}
	return s.leadRepo.List(ctx, page, pageSize, filters, sort)
}

// ImportFromRegistry pulls newly registered businesses from the external
// registry and creates leads for the ones not seen before. Returns the
// number of leads created. No-op when the registry client is disabled.
func (s *LeadService) ImportFromRegistry(ctx context.Context, tenantID uuid.UUID, since time.Time, limit int) (int, error) {
	if s.registryClient == nil || !s.registryClient.IsEnabled() {
		return 0, nil
	}

	records, err := s.registryClient.FetchBusinessesRegisteredSince(ctx, since, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch registry records: %w", err)
	}

	now := time.Now().UTC()
	imported := 0
	for _, record := range records {
		exists, err := s.leadRepo.ExistsByOrgNumber(ctx, record.OrgNumber)
		if err != nil {
			s.logger.Warn("failed to check lead existence",
				zap.String("org_number", record.OrgNumber),
				zap.Error(err),
			)
			continue
		}
		if exists {
			continue
		}

		lead := &domain.Lead{
			CompanyName:    record.Name,
			OrgNumber:      record.OrgNumber,
			ContactEmail:   record.Email,
			ContactPhone:   record.Phone,
			Status:         domain.StageNew,
			EnteredStageAt: now,
			Priority:       domain.PriorityMedium,
			Source:         domain.LeadSourceRegistry,
			TenantID:       tenantID,
		}
		if err := s.leadRepo.Create(ctx, lead); err != nil {
			s.logger.Warn("failed to create imported lead",
				zap.String("org_number", record.OrgNumber),
				zap.Error(err),
			)
			continue
		}
		imported++
	}

	if imported > 0 {
		metrics.RecordLeadsImported(imported)
		s.publisher.Publish(ctx, events.EventLeadImported, map[string]interface{}{
			"tenantId": tenantID,
			"count":    imported,
			"since":    since,
		})
	}

	s.logger.Info("registry import finished",
		zap.Int("fetched", len(records)),
		zap.Int("imported", imported),
	)
	return imported, nil
}

// notifyAssignment informs a lead's owner when someone else assigns it to
// them. Failures are logged and swallowed.
func (s *LeadService) notifyAssignment(ctx context.Context, lead *domain.Lead, actorID uuid.UUID) {
	if lead.OwnerID == nil || *lead.OwnerID == actorID {
		return
	}
	notification := &domain.Notification{
		UserID:     *lead.OwnerID,
		Type:       string(domain.NotificationTypeLeadAssigned),
		Title:      "Lead assigned",
		Message:    fmt.Sprintf("'%s' was assigned to you", lead.CompanyName),
		EntityType: "lead",
		EntityID:   &lead.ID,
	}
	if err := s.notificationRepo.Create(ctx, notification); err != nil {
		s.logger.Warn("failed to create assignment notification", zap.Error(err))
	}
}
