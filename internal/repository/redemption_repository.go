package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lapublica/platform-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RedemptionFilters contains filter options for listing redemptions
type RedemptionFilters struct {
	OfferID        *uuid.UUID
	RedeemedAfter  *time.Time
	RedeemedBefore *time.Time
}

type RedemptionRepository struct {
	db *gorm.DB
}

func NewRedemptionRepository(db *gorm.DB) *RedemptionRepository {
	return &RedemptionRepository{db: db}
}

// WithTx returns a copy of the repository bound to a transaction
func (r *RedemptionRepository) WithTx(tx *gorm.DB) *RedemptionRepository {
	return &RedemptionRepository{db: tx}
}

// Create inserts a redemption row. The unique index on coupon_id makes a
// duplicate insert fail even if the conditional coupon update were bypassed.
func (r *RedemptionRepository) Create(ctx context.Context, redemption *domain.Redemption) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(redemption).Error
}

func (r *RedemptionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Redemption, error) {
	var redemption domain.Redemption
	query := r.db.WithContext(ctx).
		Preload("Coupon").
		Where("id = ?", id)
	query = ApplyTenantFilter(ctx, query)
	err := query.First(&redemption).Error
	if err != nil {
		return nil, err
	}
	return &redemption, nil
}

func (r *RedemptionRepository) GetByCouponID(ctx context.Context, couponID uuid.UUID) (*domain.Redemption, error) {
	var redemption domain.Redemption
	err := r.db.WithContext(ctx).
		Where("coupon_id = ?", couponID).
		First(&redemption).Error
	if err != nil {
		return nil, err
	}
	return &redemption, nil
}

func (r *RedemptionRepository) List(ctx context.Context, page, pageSize int, filters *RedemptionFilters) ([]domain.Redemption, int64, error) {
	var redemptions []domain.Redemption
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Redemption{}).Preload("Coupon")
	query = ApplyTenantFilter(ctx, query)

	if filters != nil {
		if filters.OfferID != nil {
			query = query.Where("offer_id = ?", *filters.OfferID)
		}
		if filters.RedeemedAfter != nil {
			query = query.Where("redeemed_at >= ?", *filters.RedeemedAfter)
		}
		if filters.RedeemedBefore != nil {
			query = query.Where("redeemed_at <= ?", *filters.RedeemedBefore)
		}
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("redeemed_at DESC").Offset(offset).Limit(pageSize).Find(&redemptions).Error
	return redemptions, total, err
}

// RedemptionTotals holds aggregate redemption figures for dashboards
type RedemptionTotals struct {
	Count         int64
	FinalTotal    float64
	DiscountTotal float64
}

// GetTotals returns aggregate redemption figures within the tenant scope
func (r *RedemptionRepository) GetTotals(ctx context.Context) (*RedemptionTotals, error) {
	totals := &RedemptionTotals{}

	query := r.db.WithContext(ctx).Model(&domain.Redemption{}).
		Select("COUNT(*) as count, COALESCE(SUM(final_price), 0) as final_total, COALESCE(SUM(discount_amount), 0) as discount_total")
	query = ApplyTenantFilter(ctx, query)

	err := query.Scan(totals).Error
	return totals, err
}
