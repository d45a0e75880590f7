package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lapublica/platform-api/internal/auth"
	"github.com/lapublica/platform-api/internal/domain"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB creates an in-memory sqlite database with the full schema.
// Each call returns a fresh database, so tests are isolated without cleanup.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// A named in-memory database with shared cache stays alive across the
	// multiple connections gorm's pool opens, while distinct names keep
	// parallel tests isolated from each other.
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "Failed to open in-memory test database")

	err = db.AutoMigrate(
		&domain.Plan{},
		&domain.Company{},
		&domain.User{},
		&domain.Lead{},
		&domain.StageTransition{},
		&domain.Offer{},
		&domain.Coupon{},
		&domain.Redemption{},
		&domain.Notification{},
		&domain.AuditLog{},
		&domain.Attachment{},
	)
	require.NoError(t, err, "Failed to migrate test schema")

	return db
}

// CreateTestPlan creates a plan with the given ceilings
func CreateTestPlan(t *testing.T, db *gorm.DB, tier domain.PlanTier, maxOffers, maxMembers, maxFeatured, maxStorage int64) *domain.Plan {
	t.Helper()

	plan := &domain.Plan{
		Tier:              tier,
		Name:              string(tier),
		MaxActiveOffers:   maxOffers,
		MaxTeamMembers:    maxMembers,
		MaxFeaturedOffers: maxFeatured,
		MaxStorageBytes:   maxStorage,
		IsActive:          true,
	}
	require.NoError(t, db.Create(plan).Error)
	// gorm substitutes the column default (-1, unlimited) for zero-valued
	// ceilings on insert; a map update writes the exact values regardless.
	require.NoError(t, db.Model(plan).Updates(map[string]interface{}{
		"max_active_offers":   maxOffers,
		"max_team_members":    maxMembers,
		"max_featured_offers": maxFeatured,
		"max_storage_bytes":   maxStorage,
	}).Error)
	plan.MaxActiveOffers = maxOffers
	plan.MaxTeamMembers = maxMembers
	plan.MaxFeaturedOffers = maxFeatured
	plan.MaxStorageBytes = maxStorage
	return plan
}

// CreateTestCompany creates an active company, optionally on a plan
func CreateTestCompany(t *testing.T, db *gorm.DB, name string, planID *uuid.UUID) *domain.Company {
	t.Helper()

	company := &domain.Company{
		Name:           name,
		OrgNumber:      fmt.Sprintf("%09d", time.Now().UnixNano()%1000000000),
		PipelineStatus: domain.StageNew,
		EnteredStageAt: time.Now().UTC(),
		PlanID:         planID,
		IsActive:       true,
	}
	require.NoError(t, db.Create(company).Error)
	return company
}

// CreateTestUser creates an active user in a company
func CreateTestUser(t *testing.T, db *gorm.DB, companyID uuid.UUID, role domain.UserRoleType) *domain.User {
	t.Helper()

	user := &domain.User{
		Email:       fmt.Sprintf("user-%s@example.com", uuid.NewString()[:8]),
		DisplayName: "Test User",
		Role:        role,
		CompanyID:   &companyID,
		IsActive:    true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreateTestLead creates a lead in the new stage for a tenant
func CreateTestLead(t *testing.T, db *gorm.DB, tenantID uuid.UUID, name string) *domain.Lead {
	t.Helper()

	lead := &domain.Lead{
		CompanyName:    name,
		Status:         domain.StageNew,
		Priority:       domain.PriorityMedium,
		Source:         domain.LeadSourceManual,
		TenantID:       tenantID,
		EnteredStageAt: time.Now().UTC(),
	}
	require.NoError(t, db.Create(lead).Error)
	return lead
}

// CreateTestOffer creates an offer for a company
func CreateTestOffer(t *testing.T, db *gorm.DB, companyID uuid.UUID, status domain.OfferStatus, listed float64, discount *float64) *domain.Offer {
	t.Helper()

	offer := &domain.Offer{
		Title:         "Test Offer",
		ListedPrice:   listed,
		DiscountPrice: discount,
		Status:        status,
		CompanyID:     companyID,
	}
	require.NoError(t, db.Create(offer).Error)
	return offer
}

// CreateTestCoupon creates a coupon on an offer
func CreateTestCoupon(t *testing.T, db *gorm.DB, offer *domain.Offer, userID uuid.UUID, status domain.CouponStatus, expiresAt time.Time) *domain.Coupon {
	t.Helper()

	coupon := &domain.Coupon{
		Code:      fmt.Sprintf("LP-%s", uuid.NewString()[:10]),
		Status:    status,
		OfferID:   offer.ID,
		UserID:    userID,
		CompanyID: offer.CompanyID,
		ExpiresAt: expiresAt,
	}
	require.NoError(t, db.Create(coupon).Error)
	return coupon
}

// AdminContext returns a context authenticated as a platform admin
func AdminContext() context.Context {
	userCtx := &auth.UserContext{
		UserID:      uuid.New(),
		DisplayName: "Admin User",
		Email:       "admin@example.com",
		Role:        domain.RolePlatformAdmin,
	}
	return auth.WithUserContext(context.Background(), userCtx)
}

// UserContextFor returns a context authenticated as the given user
func UserContextFor(user *domain.User) context.Context {
	userCtx := &auth.UserContext{
		UserID:      user.ID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		Role:        user.Role,
		CompanyID:   user.CompanyID,
	}
	ctx := auth.WithUserContext(context.Background(), userCtx)
	return auth.WithTenantFilter(ctx, &auth.TenantFilter{CompanyID: userCtx.GetTenantFilter()})
}
