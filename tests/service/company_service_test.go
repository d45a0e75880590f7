package service_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/lapublica/platform-api/internal/domain"
	"github.com/lapublica/platform-api/internal/repository"
	"github.com/lapublica/platform-api/internal/service"
	"github.com/lapublica/platform-api/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func createCompanyService(db *gorm.DB) *service.CompanyService {
	logger := zap.NewNop()
	auditService := service.NewAuditService(repository.NewAuditLogRepository(db), logger)

	return service.NewCompanyService(
		repository.NewCompanyRepository(db),
		repository.NewPlanRepository(db),
		createLimitService(db),
		auditService,
		logger,
	)
}

func TestCompanyService_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := createCompanyService(db)
	ctx := testutil.AdminContext()

	t.Run("companies enter the pipeline as new", func(t *testing.T) {
		company, err := svc.Create(ctx, &domain.Company{
			Name:      "Fresh SL",
			OrgNumber: "123456789",
		})
		require.NoError(t, err)
		assert.Equal(t, domain.StageNew, company.PipelineStatus)
		assert.True(t, company.IsActive)
		assert.False(t, company.EnteredStageAt.IsZero())
	})

	t.Run("duplicate org number is a conflict", func(t *testing.T) {
		_, err := svc.Create(ctx, &domain.Company{
			Name:      "Copycat SL",
			OrgNumber: "123456789",
		})
		assert.ErrorIs(t, err, service.ErrConflict)
	})

	t.Run("name is required", func(t *testing.T) {
		_, err := svc.Create(ctx, &domain.Company{OrgNumber: "987654321"})
		assert.ErrorIs(t, err, service.ErrValidation)
	})
}

func TestCompanyService_AssignPlan(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := createCompanyService(db)
	ctx := testutil.AdminContext()

	plan := testutil.CreateTestPlan(t, db, domain.PlanTierPro, 10, 10, 10, domain.UnlimitedLimit)
	company := testutil.CreateTestCompany(t, db, "Upgraded Co", nil)

	require.NoError(t, svc.AssignPlan(ctx, company.ID, plan.ID))

	var stored domain.Company
	require.NoError(t, db.First(&stored, "id = ?", company.ID).Error)
	require.NotNil(t, stored.PlanID)
	assert.Equal(t, plan.ID, *stored.PlanID)

	t.Run("unknown plan", func(t *testing.T) {
		err := svc.AssignPlan(ctx, company.ID, uuid.New())
		assert.ErrorIs(t, err, service.ErrNotFound)
	})

	t.Run("unknown company", func(t *testing.T) {
		err := svc.AssignPlan(ctx, uuid.New(), plan.ID)
		assert.ErrorIs(t, err, service.ErrNotFound)
	})
}
