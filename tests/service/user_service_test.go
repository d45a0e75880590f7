package service_test

import (
	"testing"

	"github.com/lapublica/platform-api/internal/domain"
	"github.com/lapublica/platform-api/internal/repository"
	"github.com/lapublica/platform-api/internal/service"
	"github.com/lapublica/platform-api/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func createUserService(db *gorm.DB) *service.UserService {
	logger := zap.NewNop()
	auditService := service.NewAuditService(repository.NewAuditLogRepository(db), logger)

	return service.NewUserService(repository.NewUserRepository(db), createLimitService(db), auditService, logger)
}

func TestUserService_AddMember(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := createUserService(db)
	plan := testutil.CreateTestPlan(t, db, domain.PlanTierBasic, domain.UnlimitedLimit, 2, domain.UnlimitedLimit, domain.UnlimitedLimit)
	company := testutil.CreateTestCompany(t, db, "Team Co", &plan.ID)
	owner := testutil.CreateTestUser(t, db, company.ID, domain.RoleCompanyOwner)
	ctx := testutil.UserContextFor(owner)

	t.Run("member gets the default role", func(t *testing.T) {
		user, err := svc.AddMember(ctx, &domain.User{
			Email:       "new@example.com",
			DisplayName: "New Member",
			CompanyID:   &company.ID,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.RoleMember, user.Role)
		assert.True(t, user.IsActive)
	})

	t.Run("team member limit blocks additions", func(t *testing.T) {
		// The owner plus the member above already fill the plan
		_, err := svc.AddMember(ctx, &domain.User{
			Email:       "third@example.com",
			DisplayName: "One Too Many",
			CompanyID:   &company.ID,
		})
		assert.ErrorIs(t, err, service.ErrLimitReached)
	})

	t.Run("duplicate email is a conflict", func(t *testing.T) {
		bigPlan := testutil.CreateTestPlan(t, db, domain.PlanTierPro, domain.UnlimitedLimit, domain.UnlimitedLimit, domain.UnlimitedLimit, domain.UnlimitedLimit)
		roomy := testutil.CreateTestCompany(t, db, "Roomy Co", &bigPlan.ID)
		roomyOwner := testutil.CreateTestUser(t, db, roomy.ID, domain.RoleCompanyOwner)

		_, err := svc.AddMember(testutil.UserContextFor(roomyOwner), &domain.User{
			Email:       roomyOwner.Email,
			DisplayName: "Doppelganger",
			CompanyID:   &roomy.ID,
		})
		assert.ErrorIs(t, err, service.ErrConflict)
	})

	t.Run("members cannot be planted in other companies", func(t *testing.T) {
		other := testutil.CreateTestCompany(t, db, "Other Co", nil)
		_, err := svc.AddMember(ctx, &domain.User{
			Email:       "mole@example.com",
			DisplayName: "Mole",
			CompanyID:   &other.ID,
		})
		assert.ErrorIs(t, err, service.ErrForbidden)
	})

	t.Run("only platform admins mint platform admins", func(t *testing.T) {
		_, err := svc.AddMember(ctx, &domain.User{
			Email:       "root@example.com",
			DisplayName: "Wannabe Admin",
			Role:        domain.RolePlatformAdmin,
			CompanyID:   &company.ID,
		})
		assert.ErrorIs(t, err, service.ErrForbidden)
	})
}

func TestUserService_Update_Reactivation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := createUserService(db)
	plan := testutil.CreateTestPlan(t, db, domain.PlanTierBasic, domain.UnlimitedLimit, 2, domain.UnlimitedLimit, domain.UnlimitedLimit)
	company := testutil.CreateTestCompany(t, db, "Team Co", &plan.ID)
	owner := testutil.CreateTestUser(t, db, company.ID, domain.RoleCompanyOwner)
	ctx := testutil.UserContextFor(owner)

	dormant := testutil.CreateTestUser(t, db, company.ID, domain.RoleMember)
	require.NoError(t, db.Model(&domain.User{}).Where("id = ?", dormant.ID).Update("is_active", false).Error)

	// Fill the freed seat
	testutil.CreateTestUser(t, db, company.ID, domain.RoleMember)

	dormant.IsActive = true
	_, err := svc.Update(ctx, dormant)
	assert.ErrorIs(t, err, service.ErrLimitReached)
}
