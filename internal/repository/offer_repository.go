package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lapublica/platform-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OfferFilters contains filter options for listing offers
type OfferFilters struct {
	Status      *domain.OfferStatus
	Featured    *bool
	CompanyID   *uuid.UUID
	SearchQuery *string
}

type OfferRepository struct {
	db *gorm.DB
}

func NewOfferRepository(db *gorm.DB) *OfferRepository {
	return &OfferRepository{db: db}
}

// WithTx returns a copy of the repository bound to a transaction
func (r *OfferRepository) WithTx(tx *gorm.DB) *OfferRepository {
	return &OfferRepository{db: tx}
}

func (r *OfferRepository) Create(ctx context.Context, offer *domain.Offer) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(offer).Error
}

func (r *OfferRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Offer, error) {
	var offer domain.Offer
	query := r.db.WithContext(ctx).
		Preload("Company").
		Where("id = ?", id)
	query = ApplyTenantFilter(ctx, query)
	err := query.First(&offer).Error
	if err != nil {
		return nil, err
	}
	return &offer, nil
}

// GetByIDPublic fetches an offer without the tenant scope.
// Used for public marketplace views and coupon claims.
func (r *OfferRepository) GetByIDPublic(ctx context.Context, id uuid.UUID) (*domain.Offer, error) {
	var offer domain.Offer
	err := r.db.WithContext(ctx).
		Preload("Company").
		Where("id = ?", id).
		First(&offer).Error
	if err != nil {
		return nil, err
	}
	return &offer, nil
}

func (r *OfferRepository) Update(ctx context.Context, offer *domain.Offer) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(offer).Error
}

func (r *OfferRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&domain.Offer{}, "id = ?", id).Error
}

func (r *OfferRepository) List(ctx context.Context, page, pageSize int, filters *OfferFilters, sort SortConfig) ([]domain.Offer, int64, error) {
	var offers []domain.Offer
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Offer{}).Preload("Company")
	query = ApplyTenantFilter(ctx, query)
	query = r.applyFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	orderClause := BuildOrderClause(sort, map[string]string{
		"createdAt":   "created_at",
		"updatedAt":   "updated_at",
		"title":       "title",
		"listedPrice": "listed_price",
		"expiresAt":   "expires_at",
	}, "updated_at")

	offset := (page - 1) * pageSize
	err := query.Order(orderClause).Offset(offset).Limit(pageSize).Find(&offers).Error

	return offers, total, err
}

// ListActive returns the public marketplace listing: active, unexpired
// offers across all tenants, featured first.
func (r *OfferRepository) ListActive(ctx context.Context, page, pageSize int) ([]domain.Offer, int64, error) {
	var offers []domain.Offer
	var total int64

	now := time.Now().UTC()
	query := r.db.WithContext(ctx).Model(&domain.Offer{}).
		Preload("Company").
		Where("status = ?", domain.OfferStatusActive).
		Where("expires_at IS NULL OR expires_at > ?", now)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("featured DESC, created_at DESC").Offset(offset).Limit(pageSize).Find(&offers).Error
	return offers, total, err
}

// CountActiveByCompany counts a company's active offers.
// Backs the active_offers plan limit.
func (r *OfferRepository) CountActiveByCompany(ctx context.Context, companyID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Offer{}).
		Where("company_id = ? AND status = ?", companyID, domain.OfferStatusActive).
		Count(&count).Error
	return count, err
}

// CountFeaturedByCompany counts a company's featured offers.
// Backs the featured_offers plan limit.
func (r *OfferRepository) CountFeaturedByCompany(ctx context.Context, companyID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Offer{}).
		Where("company_id = ? AND featured = ?", companyID, true).
		Count(&count).Error
	return count, err
}

// SetFeatured flips the featured flag on an offer
func (r *OfferRepository) SetFeatured(ctx context.Context, id uuid.UUID, featured bool) error {
	updates := map[string]interface{}{
		"featured":   featured,
		"updated_at": time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Model(&domain.Offer{}).Where("id = ?", id).Updates(updates).Error
}

// ArchiveExpired archives active offers whose expiry has passed.
// Returns the number of offers archived. Run by the expiry job.
func (r *OfferRepository) ArchiveExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&domain.Offer{}).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?", domain.OfferStatusActive, now).
		Updates(map[string]interface{}{
			"status":     domain.OfferStatusArchived,
			"updated_at": now,
		})
	return result.RowsAffected, result.Error
}

func (r *OfferRepository) applyFilters(query *gorm.DB, filters *OfferFilters) *gorm.DB {
	if filters == nil {
		return query
	}

	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}

	if filters.Featured != nil {
		query = query.Where("featured = ?", *filters.Featured)
	}

	if filters.CompanyID != nil {
		query = query.Where("company_id = ?", *filters.CompanyID)
	}

	if filters.SearchQuery != nil && *filters.SearchQuery != "" {
		searchPattern := "%" + strings.ToLower(*filters.SearchQuery) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", searchPattern, searchPattern)
	}

	return query
}
