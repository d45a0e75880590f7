package service_test

import (
	"testing"
	"time"

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

func createLeadService(db *gorm.DB) *service.LeadService {
	logger := zap.NewNop()
	auditService := service.NewAuditService(repository.NewAuditLogRepository(db), logger)
	publisher := events.NewDisabledPublisher(logger)

	return service.NewLeadService(
		repository.NewLeadRepository(db),
		repository.NewNotificationRepository(db),
		auditService,
		nil, // no registry connection in tests
		publisher,
		logger,
	)
}

func TestLeadService_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := createLeadService(db)
	company := testutil.CreateTestCompany(t, db, "Tenant", nil)
	member := testutil.CreateTestUser(t, db, company.ID, domain.RoleMember)
	ctx := testutil.UserContextFor(member)

	t.Run("defaults are applied", func(t *testing.T) {
		lead, err := svc.Create(ctx, &domain.CreateLeadRequest{
			CompanyName: "Acme SL",
		})
		require.NoError(t, err)
		assert.Equal(t, domain.StageNew, lead.Status)
		assert.Equal(t, domain.PriorityMedium, lead.Priority)
		assert.Equal(t, domain.LeadSourceManual, lead.Source)
		assert.Equal(t, company.ID, lead.TenantID)
		require.NotNil(t, lead.OwnerID)
		assert.Equal(t, member.ID, *lead.OwnerID)
		assert.False(t, lead.EnteredStageAt.IsZero())
	})

	t.Run("assigning another owner notifies them", func(t *testing.T) {
		colleague := testutil.CreateTestUser(t, db, company.ID, domain.RoleMember)

		lead, err := svc.Create(ctx, &domain.CreateLeadRequest{
			CompanyName: "Handoff SL",
			OwnerID:     &colleague.ID,
		})
		require.NoError(t, err)
		assert.Equal(t, colleague.ID, *lead.OwnerID)

		var count int64
		require.NoError(t, db.Model(&domain.Notification{}).
			Where("user_id = ? AND type = ?", colleague.ID, domain.NotificationTypeLeadAssigned).
			Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})

	t.Run("unknown priority is rejected", func(t *testing.T) {
		_, err := svc.Create(ctx, &domain.CreateLeadRequest{
			CompanyName: "Urgent SL",
			Priority:    "critical",
		})
		assert.ErrorIs(t, err, service.ErrValidation)
	})
}

func TestLeadService_Update(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := createLeadService(db)
	company := testutil.CreateTestCompany(t, db, "Tenant", nil)
	member := testutil.CreateTestUser(t, db, company.ID, domain.RoleMember)
	ctx := testutil.UserContextFor(member)

	lead, err := svc.Create(ctx, &domain.CreateLeadRequest{CompanyName: "Before SL"})
	require.NoError(t, err)

	t.Run("partial update keeps untouched fields", func(t *testing.T) {
		name := "After SL"
		value := 5000.0
		updated, err := svc.Update(ctx, lead.ID, &domain.UpdateLeadRequest{
			CompanyName:    &name,
			EstimatedValue: &value,
		})
		require.NoError(t, err)
		assert.Equal(t, "After SL", updated.CompanyName)
		assert.Equal(t, 5000.0, updated.EstimatedValue)
		assert.Equal(t, domain.StageNew, updated.Status)
	})

	t.Run("missing lead returns not found", func(t *testing.T) {
		name := "Nobody"
		_, err := svc.Update(ctx, uuid.New(), &domain.UpdateLeadRequest{CompanyName: &name})
		assert.ErrorIs(t, err, service.ErrNotFound)
	})
}

func TestLeadService_Delete(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := createLeadService(db)
	company := testutil.CreateTestCompany(t, db, "Tenant", nil)
	member := testutil.CreateTestUser(t, db, company.ID, domain.RoleMember)
	ctx := testutil.UserContextFor(member)

	lead, err := svc.Create(ctx, &domain.CreateLeadRequest{CompanyName: "Doomed SL"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, lead.ID))

	_, err = svc.GetByID(ctx, lead.ID)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestLeadService_ImportFromRegistry_Disabled(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := createLeadService(db)
	company := testutil.CreateTestCompany(t, db, "Tenant", nil)

	// Without a registry connection the import is a no-op, not an error
	imported, err := svc.ImportFromRegistry(testutil.AdminContext(), company.ID, time.Time{}, 100)
	require.NoError(t, err)
	assert.Equal(t, 0, imported)
}
