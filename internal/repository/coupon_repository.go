package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lapublica/platform-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CouponFilters contains filter options for listing coupons
type CouponFilters struct {
	Status  *domain.CouponStatus
	OfferID *uuid.UUID
	UserID  *uuid.UUID
}

type CouponRepository struct {
	db *gorm.DB
}

func NewCouponRepository(db *gorm.DB) *CouponRepository {
	return &CouponRepository{db: db}
}

// WithTx returns a copy of the repository bound to a transaction
func (r *CouponRepository) WithTx(tx *gorm.DB) *CouponRepository {
	return &CouponRepository{db: tx}
}

func (r *CouponRepository) Create(ctx context.Context, coupon *domain.Coupon) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(coupon).Error
}

func (r *CouponRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Coupon, error) {
	var coupon domain.Coupon
	err := r.db.WithContext(ctx).
		Preload("Offer").
		Where("id = ?", id).
		First(&coupon).Error
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

func (r *CouponRepository) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	var coupon domain.Coupon
	err := r.db.WithContext(ctx).
		Preload("Offer").
		Where("code = ?", code).
		First(&coupon).Error
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

func (r *CouponRepository) List(ctx context.Context, page, pageSize int, filters *CouponFilters) ([]domain.Coupon, int64, error) {
	var coupons []domain.Coupon
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Coupon{}).Preload("Offer")
	query = ApplyTenantFilter(ctx, query)

	if filters != nil {
		if filters.Status != nil {
			query = query.Where("status = ?", *filters.Status)
		}
		if filters.OfferID != nil {
			query = query.Where("offer_id = ?", *filters.OfferID)
		}
		if filters.UserID != nil {
			query = query.Where("user_id = ?", *filters.UserID)
		}
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&coupons).Error
	return coupons, total, err
}

// MarkUsedIfActive flips an active coupon to used. The conditional WHERE is
// the primary double-spend guard: of two concurrent redeemers, exactly one
// sees RowsAffected == 1. Returns false when the coupon was not active.
func (r *CouponRepository) MarkUsedIfActive(ctx context.Context, id uuid.UUID, usedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&domain.Coupon{}).
		Where("id = ? AND status = ?", id, domain.CouponStatusActive).
		Updates(map[string]interface{}{
			"status":     domain.CouponStatusUsed,
			"used_at":    usedAt,
			"updated_at": usedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// CountActiveByUserAndOffer counts a user's active coupons on an offer.
// Claiming is limited to one live coupon per user per offer.
func (r *CouponRepository) CountActiveByUserAndOffer(ctx context.Context, userID, offerID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Coupon{}).
		Where("user_id = ? AND offer_id = ? AND status = ?", userID, offerID, domain.CouponStatusActive).
		Count(&count).Error
	return count, err
}

// ExpireDue marks active coupons past their expiry as expired.
// Returns how many were flipped. Run by the expiry job; redemption also
// checks expiry at read time so the job is not load-bearing.
func (r *CouponRepository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&domain.Coupon{}).
		Where("status = ? AND expires_at <= ?", domain.CouponStatusActive, now).
		Updates(map[string]interface{}{
			"status":     domain.CouponStatusExpired,
			"updated_at": now,
		})
	return result.RowsAffected, result.Error
}

// CountByStatus returns coupon counts grouped by status within the tenant scope
func (r *CouponRepository) CountByStatus(ctx context.Context) (map[domain.CouponStatus]int64, error) {
	type result struct {
		Status domain.CouponStatus
		Count  int64
	}
	var results []result

	query := r.db.WithContext(ctx).Model(&domain.Coupon{}).
		Select("status, COUNT(*) as count").
		Group("status")
	query = ApplyTenantFilter(ctx, query)
	if err := query.Scan(&results).Error; err != nil {
		return nil, err
	}

	counts := make(map[domain.CouponStatus]int64)
	for _, r := range results {
		counts[r.Status] = r.Count
	}
	return counts, nil
}
