package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/lapublica/platform-api/internal/auth"
	"gorm.io/gorm"
)

// MaxPageSize is the maximum allowed page size for paginated queries
const MaxPageSize = 200

// SortOrder represents the sort direction
type SortOrder string

const (
	SortOrderAsc  SortOrder = "asc"
	SortOrderDesc SortOrder = "desc"
)

// SortConfig holds sorting configuration for list queries
type SortConfig struct {
	Field string    // The field to sort by (API field name)
	Order SortOrder // asc or desc
}

// DefaultSortConfig returns a default sort configuration (updated_at DESC)
func DefaultSortConfig() SortConfig {
	return SortConfig{
		Field: "updatedAt",
		Order: SortOrderDesc,
	}
}

// ParseSortOrder parses a string into SortOrder, defaulting to desc
func ParseSortOrder(s string) SortOrder {
	if strings.ToLower(s) == "asc" {
		return SortOrderAsc
	}
	return SortOrderDesc
}

// BuildOrderClause builds the ORDER BY clause from a field whitelist.
// fieldMap maps API field names to database column names; unknown fields
// fall back to defaultColumn.
func BuildOrderClause(config SortConfig, fieldMap map[string]string, defaultColumn string) string {
	column, ok := fieldMap[config.Field]
	if !ok {
		column = defaultColumn
	}

	order := "DESC"
	if config.Order == SortOrderAsc {
		order = "ASC"
	}

	return column + " " + order
}

// ApplyTenantFilter applies the multi-tenant company filter to a query.
// If no filter is set (platform admin), the query is returned unchanged.
func ApplyTenantFilter(ctx context.Context, query *gorm.DB) *gorm.DB {
	companyID := auth.EffectiveTenantFilter(ctx)
	if companyID != nil {
		return query.Where("company_id = ?", *companyID)
	}
	return query
}

// ApplyTenantFilterWithColumn applies the tenant filter using a specific
// column name. Use when the column differs or needs table qualification.
func ApplyTenantFilterWithColumn(ctx context.Context, query *gorm.DB, columnName string) *gorm.DB {
	companyID := auth.EffectiveTenantFilter(ctx)
	if companyID != nil {
		return query.Where(columnName+" = ?", *companyID)
	}
	return query
}

// MustHaveTenantAccess checks if the caller may touch a record owned by the
// given company. Useful for single-record operations.
func MustHaveTenantAccess(ctx context.Context, recordCompanyID uuid.UUID) bool {
	companyID := auth.EffectiveTenantFilter(ctx)
	if companyID == nil {
		return true
	}
	return *companyID == recordCompanyID
}
