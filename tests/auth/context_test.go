package auth_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/lapublica/platform-api/internal/auth"
	"github.com/lapublica/platform-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserContext_Roundtrip(t *testing.T) {
	user := &auth.UserContext{
		UserID: uuid.New(),
		Role:   domain.RoleMember,
	}

	ctx := auth.WithUserContext(context.Background(), user)

	got, ok := auth.FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, user, got)

	_, ok = auth.FromContext(context.Background())
	assert.False(t, ok)
}

func TestUserContext_CanAccessCompany(t *testing.T) {
	companyID := uuid.New()
	other := uuid.New()

	admin := &auth.UserContext{UserID: uuid.New(), Role: domain.RolePlatformAdmin}
	assert.True(t, admin.CanAccessCompany(companyID))
	assert.True(t, admin.CanAccessCompany(other))

	member := &auth.UserContext{UserID: uuid.New(), Role: domain.RoleMember, CompanyID: &companyID}
	assert.True(t, member.CanAccessCompany(companyID))
	assert.False(t, member.CanAccessCompany(other))

	orphan := &auth.UserContext{UserID: uuid.New(), Role: domain.RoleMember}
	assert.False(t, orphan.CanAccessCompany(companyID))
}

func TestEffectiveTenantFilter_Precedence(t *testing.T) {
	companyID := uuid.New()
	requested := uuid.New()

	t.Run("explicit filter wins over user scope", func(t *testing.T) {
		ctx := auth.WithUserContext(context.Background(), &auth.UserContext{
			UserID:    uuid.New(),
			Role:      domain.RoleMember,
			CompanyID: &companyID,
		})
		ctx = auth.WithTenantFilter(ctx, &auth.TenantFilter{CompanyID: &requested, RequestedByAdmin: true})

		got := auth.EffectiveTenantFilter(ctx)
		require.NotNil(t, got)
		assert.Equal(t, requested, *got)
	})

	t.Run("falls back to the user's own company", func(t *testing.T) {
		ctx := auth.WithUserContext(context.Background(), &auth.UserContext{
			UserID:    uuid.New(),
			Role:      domain.RoleCompanyOwner,
			CompanyID: &companyID,
		})

		got := auth.EffectiveTenantFilter(ctx)
		require.NotNil(t, got)
		assert.Equal(t, companyID, *got)
	})

	t.Run("admin without a filter is unscoped", func(t *testing.T) {
		ctx := auth.WithUserContext(context.Background(), &auth.UserContext{
			UserID: uuid.New(),
			Role:   domain.RolePlatformAdmin,
		})

		assert.Nil(t, auth.EffectiveTenantFilter(ctx))
	})

	t.Run("no context at all is unscoped", func(t *testing.T) {
		assert.Nil(t, auth.EffectiveTenantFilter(context.Background()))
	})
}
