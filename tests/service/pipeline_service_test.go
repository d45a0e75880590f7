package service_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/lapublica/platform-api/internal/domain"
	"github.com/lapublica/platform-api/internal/events"
	"github.com/lapublica/platform-api/internal/repository"
	"github.com/lapublica/platform-api/internal/service"
	"github.com/lapublica/platform-api/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func createPipelineService(db *gorm.DB, policy service.TransitionPolicy) *service.PipelineService {
	logger := zap.NewNop()
	leadRepo := repository.NewLeadRepository(db)
	companyRepo := repository.NewCompanyRepository(db)
	transitionRepo := repository.NewStageTransitionRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	auditService := service.NewAuditService(repository.NewAuditLogRepository(db), logger)
	publisher := events.NewDisabledPublisher(logger)

	return service.NewPipelineService(leadRepo, companyRepo, transitionRepo, notificationRepo, auditService, publisher, policy, logger, db)
}

func TestPipelineService_Transition(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := createPipelineService(db, nil)
	company := testutil.CreateTestCompany(t, db, "Tenant", nil)
	ctx := testutil.AdminContext()

	t.Run("move lead to a new stage", func(t *testing.T) {
		lead := testutil.CreateTestLead(t, db, company.ID, "Acme")

		result, err := svc.Transition(ctx, domain.TransitionItemLead, lead.ID, &domain.TransitionRequest{
			ToStage: string(domain.StageContacted),
			Note:    "first call made",
		})
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, domain.StageContacted, result.ToStage)
		require.NotNil(t, result.FromStage)
		assert.Equal(t, domain.StageNew, *result.FromStage)

		var updated domain.Lead
		require.NoError(t, db.First(&updated, "id = ?", lead.ID).Error)
		assert.Equal(t, domain.StageContacted, updated.Status)
	})

	t.Run("history records every move", func(t *testing.T) {
		lead := testutil.CreateTestLead(t, db, company.ID, "Trail Co")

		stages := []domain.PipelineStatus{domain.StageContacted, domain.StageQualified, domain.StageNegotiation}
		for _, stage := range stages {
			_, err := svc.Transition(ctx, domain.TransitionItemLead, lead.ID, &domain.TransitionRequest{
				ToStage: string(stage),
			})
			require.NoError(t, err)
		}

		history, err := svc.GetHistory(ctx, domain.TransitionItemLead, lead.ID)
		require.NoError(t, err)
		require.Len(t, history, 3)
		// Newest first
		assert.Equal(t, domain.StageNegotiation, history[0].ToStage)
		require.NotNil(t, history[0].FromStage)
		assert.Equal(t, domain.StageQualified, *history[0].FromStage)
		assert.Equal(t, domain.StageContacted, history[2].ToStage)
	})

	t.Run("stale expected stage is rejected", func(t *testing.T) {
		lead := testutil.CreateTestLead(t, db, company.ID, "Raced Co")

		_, err := svc.Transition(ctx, domain.TransitionItemLead, lead.ID, &domain.TransitionRequest{
			ToStage: string(domain.StageContacted),
		})
		require.NoError(t, err)

		// A second client still believes the lead is new
		expected := string(domain.StageNew)
		result, err := svc.Transition(ctx, domain.TransitionItemLead, lead.ID, &domain.TransitionRequest{
			ToStage:       string(domain.StageQualified),
			ExpectedStage: &expected,
		})
		assert.ErrorIs(t, err, service.ErrStaleStage)
		assert.Nil(t, result)

		// The losing request must not have moved the lead
		var current domain.Lead
		require.NoError(t, db.First(&current, "id = ?", lead.ID).Error)
		assert.Equal(t, domain.StageContacted, current.Status)
	})

	t.Run("matching expected stage passes", func(t *testing.T) {
		lead := testutil.CreateTestLead(t, db, company.ID, "Safe Co")

		expected := string(domain.StageNew)
		result, err := svc.Transition(ctx, domain.TransitionItemLead, lead.ID, &domain.TransitionRequest{
			ToStage:       string(domain.StageContacted),
			ExpectedStage: &expected,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.StageContacted, result.ToStage)
	})

	t.Run("company transitions work too", func(t *testing.T) {
		target := testutil.CreateTestCompany(t, db, "Prospect Inc", nil)

		result, err := svc.Transition(ctx, domain.TransitionItemCompany, target.ID, &domain.TransitionRequest{
			ToStage: string(domain.StagePendingCRM),
		})
		require.NoError(t, err)
		assert.Equal(t, domain.StagePendingCRM, result.ToStage)

		var updated domain.Company
		require.NoError(t, db.First(&updated, "id = ?", target.ID).Error)
		assert.Equal(t, domain.StagePendingCRM, updated.PipelineStatus)
	})

	t.Run("unknown stage is rejected", func(t *testing.T) {
		lead := testutil.CreateTestLead(t, db, company.ID, "Bogus Co")

		_, err := svc.Transition(ctx, domain.TransitionItemLead, lead.ID, &domain.TransitionRequest{
			ToStage: "galactic",
		})
		assert.ErrorIs(t, err, service.ErrValidation)
	})

	t.Run("unknown item type is rejected", func(t *testing.T) {
		_, err := svc.Transition(ctx, domain.TransitionItemType("invoice"), uuid.New(), &domain.TransitionRequest{
			ToStage: string(domain.StageContacted),
		})
		assert.ErrorIs(t, err, service.ErrValidation)
	})

	t.Run("missing item returns not found", func(t *testing.T) {
		_, err := svc.Transition(ctx, domain.TransitionItemLead, uuid.New(), &domain.TransitionRequest{
			ToStage: string(domain.StageContacted),
		})
		assert.ErrorIs(t, err, service.ErrNotFound)
	})

	t.Run("same stage move is allowed and recorded", func(t *testing.T) {
		lead := testutil.CreateTestLead(t, db, company.ID, "Stamp Co")

		result, err := svc.Transition(ctx, domain.TransitionItemLead, lead.ID, &domain.TransitionRequest{
			ToStage: string(domain.StageNew),
			Note:    "still new, called twice",
		})
		require.NoError(t, err)
		assert.Equal(t, domain.StageNew, result.ToStage)

		history, err := svc.GetHistory(ctx, domain.TransitionItemLead, lead.ID)
		require.NoError(t, err)
		assert.Len(t, history, 1)
	})
}

func TestPipelineService_Ownership(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := createPipelineService(db, nil)
	company := testutil.CreateTestCompany(t, db, "Tenant", nil)
	owner := testutil.CreateTestUser(t, db, company.ID, domain.RoleMember)
	colleague := testutil.CreateTestUser(t, db, company.ID, domain.RoleMember)
	boss := testutil.CreateTestUser(t, db, company.ID, domain.RoleCompanyOwner)

	newAssignedLead := func(t *testing.T) *domain.Lead {
		lead := testutil.CreateTestLead(t, db, company.ID, "Assigned Co")
		require.NoError(t, db.Model(lead).Update("owner_id", owner.ID).Error)
		return lead
	}
	move := &domain.TransitionRequest{ToStage: string(domain.StageContacted)}

	t.Run("a member cannot move a colleague's lead", func(t *testing.T) {
		lead := newAssignedLead(t)

		_, err := svc.Transition(testutil.UserContextFor(colleague), domain.TransitionItemLead, lead.ID, move)
		assert.ErrorIs(t, err, service.ErrForbidden)

		var stored domain.Lead
		require.NoError(t, db.First(&stored, "id = ?", lead.ID).Error)
		assert.Equal(t, domain.StageNew, stored.Status)
	})

	t.Run("the assigned owner can move their lead", func(t *testing.T) {
		lead := newAssignedLead(t)

		_, err := svc.Transition(testutil.UserContextFor(owner), domain.TransitionItemLead, lead.ID, move)
		require.NoError(t, err)
	})

	t.Run("a company owner can move any lead", func(t *testing.T) {
		lead := newAssignedLead(t)

		_, err := svc.Transition(testutil.UserContextFor(boss), domain.TransitionItemLead, lead.ID, move)
		require.NoError(t, err)
	})

	t.Run("a platform admin can move any lead", func(t *testing.T) {
		lead := newAssignedLead(t)

		_, err := svc.Transition(testutil.AdminContext(), domain.TransitionItemLead, lead.ID, move)
		require.NoError(t, err)
	})

	t.Run("unassigned leads stay open to the tenant", func(t *testing.T) {
		lead := testutil.CreateTestLead(t, db, company.ID, "Unassigned Co")

		_, err := svc.Transition(testutil.UserContextFor(colleague), domain.TransitionItemLead, lead.ID, move)
		require.NoError(t, err)
	})
}

func TestPipelineService_StrictPolicy(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := createPipelineService(db, service.StrictTransitionPolicy)
	company := testutil.CreateTestCompany(t, db, "Strict Tenant", nil)
	ctx := testutil.AdminContext()

	t.Run("adjacent move passes", func(t *testing.T) {
		lead := testutil.CreateTestLead(t, db, company.ID, "Orderly Co")

		_, err := svc.Transition(ctx, domain.TransitionItemLead, lead.ID, &domain.TransitionRequest{
			ToStage: string(domain.StageContacted),
		})
		assert.NoError(t, err)
	})

	t.Run("skipping stages is rejected", func(t *testing.T) {
		lead := testutil.CreateTestLead(t, db, company.ID, "Hasty Co")

		_, err := svc.Transition(ctx, domain.TransitionItemLead, lead.ID, &domain.TransitionRequest{
			ToStage: string(domain.StageWon),
		})
		assert.ErrorIs(t, err, service.ErrInvalidTransition)

		// Rejected moves leave no history behind
		history, err := svc.GetHistory(ctx, domain.TransitionItemLead, lead.ID)
		require.NoError(t, err)
		assert.Empty(t, history)
	})

	t.Run("lost leads can be reopened", func(t *testing.T) {
		lead := testutil.CreateTestLead(t, db, company.ID, "Phoenix Co")
		require.NoError(t, db.Model(&domain.Lead{}).Where("id = ?", lead.ID).Update("status", domain.StageLost).Error)

		_, err := svc.Transition(ctx, domain.TransitionItemLead, lead.ID, &domain.TransitionRequest{
			ToStage: string(domain.StageNew),
		})
		assert.NoError(t, err)
	})
}

func TestPipelineService_GetBoard(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := createPipelineService(db, nil)
	company := testutil.CreateTestCompany(t, db, "Board Tenant", nil)
	ctx := testutil.AdminContext()

	testutil.CreateTestLead(t, db, company.ID, "Fresh One")
	testutil.CreateTestLead(t, db, company.ID, "Fresh Two")
	contacted := testutil.CreateTestLead(t, db, company.ID, "Contacted One")
	require.NoError(t, db.Model(&domain.Lead{}).Where("id = ?", contacted.ID).Update("status", domain.StageContacted).Error)

	board, err := svc.GetBoard(ctx)
	require.NoError(t, err)
	require.Len(t, board.Columns, len(domain.PipelineColumns))

	assert.Equal(t, "New", board.Columns[0].Name)
	assert.Equal(t, 2, board.Columns[0].Count)
	assert.Equal(t, "In contact", board.Columns[1].Name)
	assert.Equal(t, 1, board.Columns[1].Count)
}
