package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lapublica/platform-api/internal/auth"
	"github.com/lapublica/platform-api/internal/domain"
	"github.com/lapublica/platform-api/internal/events"
	"github.com/lapublica/platform-api/internal/metrics"
	"github.com/lapublica/platform-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TransitionPolicy decides whether a stage move is allowed. The default is
// permissive: any known stage can move to any other known stage, and the
// history trail is what keeps the process auditable. Deployments that want
// a strict workflow install a stricter policy at wiring time.
type TransitionPolicy func(itemType domain.TransitionItemType, from, to domain.PipelineStatus) error

// PermissiveTransitionPolicy allows every move between valid stages
func PermissiveTransitionPolicy(itemType domain.TransitionItemType, from, to domain.PipelineStatus) error {
	return nil
}

// StrictTransitionPolicy only allows forward/backward moves along the
// defined flow plus the usual escape hatches to lost and reopening.
func StrictTransitionPolicy(itemType domain.TransitionItemType, from, to domain.PipelineStatus) error {
	allowed, ok := strictTransitions[from]
	if !ok {
		return fmt.Errorf("%w: no transitions defined from %s", ErrInvalidTransition, from)
	}
	for _, next := range allowed {
		if next == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

var strictTransitions = map[domain.PipelineStatus][]domain.PipelineStatus{
	domain.StageNew:          {domain.StageContacted, domain.StageLost},
	domain.StageContacted:    {domain.StageQualified, domain.StageNew, domain.StageLost},
	domain.StageQualified:    {domain.StageNegotiation, domain.StageContacted, domain.StageLost},
	domain.StageNegotiation:  {domain.StageProposalSent, domain.StageQualified, domain.StageLost},
	domain.StageProposalSent: {domain.StagePendingCRM, domain.StageNegotiation, domain.StageLost},
	domain.StagePendingCRM:   {domain.StageCRMApproved, domain.StageCRMRejected},
	domain.StageCRMApproved:  {domain.StagePendingAdmin, domain.StageWon, domain.StageLost},
	domain.StageCRMRejected:  {domain.StagePendingCRM, domain.StageLost},
	domain.StagePendingAdmin: {domain.StageWon, domain.StageCRMApproved, domain.StageLost},
	domain.StageWon:          {},
	domain.StageLost:         {domain.StageNew}, // reopen
}

// PipelineService moves leads and companies between pipeline stages and
// keeps the append-only transition history in step with the current status.
type PipelineService struct {
	leadRepo         *repository.LeadRepository
	companyRepo      *repository.CompanyRepository
	transitionRepo   *repository.StageTransitionRepository
	notificationRepo *repository.NotificationRepository
	auditService     *AuditService
	publisher        *events.Publisher
	policy           TransitionPolicy
	logger           *zap.Logger
	db               *gorm.DB
}

func NewPipelineService(
	leadRepo *repository.LeadRepository,
	companyRepo *repository.CompanyRepository,
	transitionRepo *repository.StageTransitionRepository,
	notificationRepo *repository.NotificationRepository,
	auditService *AuditService,
	publisher *events.Publisher,
	policy TransitionPolicy,
	logger *zap.Logger,
	db *gorm.DB,
) *PipelineService {
	if policy == nil {
		policy = PermissiveTransitionPolicy
	}
	return &PipelineService{
		leadRepo:         leadRepo,
		companyRepo:      companyRepo,
		transitionRepo:   transitionRepo,
		notificationRepo: notificationRepo,
		auditService:     auditService,
		publisher:        publisher,
		policy:           policy,
		logger:           logger,
		db:               db,
	}
}

// Transition moves an item to a new stage. The status update and the
// history record commit in one transaction, so the trail can never lose
// a move that happened. ExpectedStage, when set, makes the move
// conditional: if another user already moved the item, ErrStaleStage is
// returned instead of silently overwriting.
func (s *PipelineService) Transition(ctx context.Context, itemType domain.TransitionItemType, itemID uuid.UUID, req *domain.TransitionRequest) (*domain.TransitionResult, error) {
	if !itemType.IsValid() {
		return nil, fmt.Errorf("%w: unknown item type %q", ErrValidation, itemType)
	}

	toStage := domain.PipelineStatus(req.ToStage)
	if !toStage.IsValid() {
		return nil, fmt.Errorf("%w: unknown stage %q", ErrValidation, req.ToStage)
	}

	fromStage, itemName, ownerID, err := s.currentStage(ctx, itemType, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load %s: %w", itemType, err)
	}

	// Assigned items are moved by their owner; company owners and platform
	// admins may move anything. Unassigned items stay open to the tenant.
	if userCtx, ok := auth.FromContext(ctx); ok && !userCtx.IsCompanyOwner() {
		if ownerID != nil && *ownerID != userCtx.UserID {
			return nil, fmt.Errorf("%w: only the assigned owner may move this %s", ErrForbidden, itemType)
		}
	}

	if req.ExpectedStage != nil && domain.PipelineStatus(*req.ExpectedStage) != fromStage {
		return nil, fmt.Errorf("%w: expected %s, found %s", ErrStaleStage, *req.ExpectedStage, fromStage)
	}

	// Same-stage moves are recorded but not validated: re-stamping a stage
	// with a note is a legitimate audit event
	if fromStage != toStage {
		if err := s.policy(itemType, fromStage, toStage); err != nil {
			return nil, err
		}
	}

	var changedByID uuid.UUID
	var changedByName string
	if userCtx, ok := auth.FromContext(ctx); ok {
		changedByID = userCtx.UserID
		changedByName = userCtx.DisplayName
	}

	var transition *domain.StageTransition
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.updateStage(ctx, tx, itemType, itemID, toStage); err != nil {
			return fmt.Errorf("failed to update stage: %w", err)
		}

		var err error
		transition, err = s.transitionRepo.WithTx(tx).RecordTransition(
			ctx, itemType, itemID, &fromStage, toStage, changedByID, changedByName, req.Note,
		)
		if err != nil {
			return fmt.Errorf("failed to record transition: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordStageTransition(string(itemType), string(toStage))

	// Everything after the commit is best-effort
	s.auditService.Record(ctx, &domain.AuditLog{
		ActorID:    changedByID,
		ActorName:  changedByName,
		Action:     domain.AuditActionStageTransition,
		EntityType: string(itemType),
		EntityID:   &itemID,
		EntityName: itemName,
		Metadata:   domain.MarshalEvent(domain.StageTransitionEvent{From: &fromStage, To: toStage}),
	})

	s.notifyTransition(ctx, itemType, itemID, itemName, fromStage, toStage, changedByID)

	s.publisher.Publish(ctx, events.EventStageTransitioned, map[string]interface{}{
		"itemType":  itemType,
		"itemId":    itemID,
		"fromStage": fromStage,
		"toStage":   toStage,
		"changedBy": changedByID,
	})

	s.logger.Info("stage transition recorded",
		zap.String("item_type", string(itemType)),
		zap.String("item_id", itemID.String()),
		zap.String("from", string(fromStage)),
		zap.String("to", string(toStage)),
	)

	return &domain.TransitionResult{
		ItemType:   itemType,
		ItemID:     itemID,
		FromStage:  &fromStage,
		ToStage:    toStage,
		Transition: transition,
	}, nil
}

// GetHistory returns the transition trail for an item, newest first
func (s *PipelineService) GetHistory(ctx context.Context, itemType domain.TransitionItemType, itemID uuid.UUID) ([]domain.StageTransition, error) {
	if !itemType.IsValid() {
		return nil, fmt.Errorf("%w: unknown item type %q", ErrValidation, itemType)
	}

	// Verify the item exists and is visible in the caller's tenant scope
	if _, _, _, err := s.currentStage(ctx, itemType, itemID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return s.transitionRepo.GetByItem(ctx, itemType, itemID)
}

// GetBoard returns the tenant's open leads grouped into display columns.
// Column membership is presentation only; the stored status is unchanged.
func (s *PipelineService) GetBoard(ctx context.Context) (*domain.PipelineBoard, error) {
	byStage, err := s.leadRepo.GetBoard(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load board: %w", err)
	}

	board := &domain.PipelineBoard{}
	for _, column := range domain.PipelineColumns {
		col := domain.PipelineBoardColumn{
			Name:     column.Name,
			Statuses: column.Statuses,
			Leads:    []domain.Lead{},
		}
		for _, status := range column.Statuses {
			col.Leads = append(col.Leads, byStage[status]...)
		}
		col.Count = len(col.Leads)
		board.Columns = append(board.Columns, col)
	}
	return board, nil
}

func (s *PipelineService) currentStage(ctx context.Context, itemType domain.TransitionItemType, itemID uuid.UUID) (domain.PipelineStatus, string, *uuid.UUID, error) {
	switch itemType {
	case domain.TransitionItemLead:
		lead, err := s.leadRepo.GetByID(ctx, itemID)
		if err != nil {
			return "", "", nil, err
		}
		return lead.Status, lead.CompanyName, lead.OwnerID, nil
	case domain.TransitionItemCompany:
		company, err := s.companyRepo.GetByID(ctx, itemID)
		if err != nil {
			return "", "", nil, err
		}
		return company.PipelineStatus, company.Name, company.OwnerID, nil
	}
	return "", "", nil, fmt.Errorf("unknown item type: %s", itemType)
}

func (s *PipelineService) updateStage(ctx context.Context, tx *gorm.DB, itemType domain.TransitionItemType, itemID uuid.UUID, toStage domain.PipelineStatus) error {
	switch itemType {
	case domain.TransitionItemLead:
		return s.leadRepo.WithTx(tx).UpdateStage(ctx, itemID, toStage)
	case domain.TransitionItemCompany:
		return s.companyRepo.WithTx(tx).UpdateStage(ctx, itemID, toStage)
	}
	return fmt.Errorf("unknown item type: %s", itemType)
}

// notifyTransition writes a notification for the item owner. Failures are
// logged and swallowed: a lost notification must never fail the move.
func (s *PipelineService) notifyTransition(ctx context.Context, itemType domain.TransitionItemType, itemID uuid.UUID, itemName string, from, to domain.PipelineStatus, changedByID uuid.UUID) {
	if itemType != domain.TransitionItemLead {
		return
	}

	lead, err := s.leadRepo.GetByID(ctx, itemID)
	if err != nil || lead.OwnerID == nil || *lead.OwnerID == changedByID {
		return
	}

	notification := &domain.Notification{
		UserID:     *lead.OwnerID,
		Type:       string(domain.NotificationTypeStageChanged),
		Title:      "Lead moved",
		Message:    fmt.Sprintf("'%s' moved from %s to %s", itemName, from, to),
		EntityType: string(itemType),
		EntityID:   &itemID,
	}
	if err := s.notificationRepo.Create(ctx, notification); err != nil {
		s.logger.Warn("failed to create transition notification", zap.Error(err))
	}
}
