package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/lapublica/platform-api/internal/domain"
)

// UserContext holds authenticated user information
type UserContext struct {
	UserID      uuid.UUID
	DisplayName string
	Email       string
	Role        domain.UserRoleType
	CompanyID   *uuid.UUID
}

type contextKey string

const userContextKey contextKey = "userContext"
const tenantFilterKey contextKey = "tenantFilter"

// WithUserContext adds user context to the context
func WithUserContext(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// FromContext extracts user context from the context
func FromContext(ctx context.Context) (*UserContext, bool) {
	user, ok := ctx.Value(userContextKey).(*UserContext)
	return user, ok
}

// MustFromContext extracts user context or panics
func MustFromContext(ctx context.Context) *UserContext {
	user, ok := FromContext(ctx)
	if !ok {
		panic("user context not found in context")
	}
	return user
}

// IsPlatformAdmin checks if the user administers the whole platform
func (u *UserContext) IsPlatformAdmin() bool {
	return u.Role == domain.RolePlatformAdmin
}

// IsCompanyOwner checks if the user owns their company
func (u *UserContext) IsCompanyOwner() bool {
	return u.Role == domain.RoleCompanyOwner || u.IsPlatformAdmin()
}

// CanAccessCompany checks if the user can access data for a specific company
func (u *UserContext) CanAccessCompany(companyID uuid.UUID) bool {
	if u.IsPlatformAdmin() {
		return true
	}
	return u.CompanyID != nil && *u.CompanyID == companyID
}

// GetTenantFilter returns the company ID to scope queries by.
// Returns nil for platform admins (no filtering needed).
func (u *UserContext) GetTenantFilter() *uuid.UUID {
	if u.IsPlatformAdmin() {
		return nil
	}
	return u.CompanyID
}

// TenantFilter represents the effective tenant scope for queries.
// Set by middleware based on user context and query parameters.
type TenantFilter struct {
	// CompanyID is the company to filter by (nil means no filter)
	CompanyID *uuid.UUID
	// RequestedByAdmin indicates a platform admin explicitly picked a company
	RequestedByAdmin bool
}

// WithTenantFilter adds the tenant filter to the context
func WithTenantFilter(ctx context.Context, filter *TenantFilter) context.Context {
	return context.WithValue(ctx, tenantFilterKey, filter)
}

// TenantFilterFromContext extracts the tenant filter from the context
func TenantFilterFromContext(ctx context.Context) (*TenantFilter, bool) {
	filter, ok := ctx.Value(tenantFilterKey).(*TenantFilter)
	return filter, ok
}

// EffectiveTenantFilter returns the company ID repositories should scope
// queries by. Returns nil if no filtering applies.
func EffectiveTenantFilter(ctx context.Context) *uuid.UUID {
	if filter, ok := TenantFilterFromContext(ctx); ok && filter != nil {
		return filter.CompanyID
	}

	if userCtx, ok := FromContext(ctx); ok {
		return userCtx.GetTenantFilter()
	}

	return nil
}
