package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lapublica/platform-api/internal/auth"
	"github.com/lapublica/platform-api/internal/domain"
	"github.com/lapublica/platform-api/internal/events"
	"github.com/lapublica/platform-api/internal/mail"
	"github.com/lapublica/platform-api/internal/metrics"
	"github.com/lapublica/platform-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultCouponValidDays = 30
	couponCodeLength       = 10
)

// Alphabet for coupon codes, without lookalike characters (0/O, 1/I/L)
const couponCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// CouponService handles claiming and redeeming coupons. A coupon is usable
// exactly once: the redeem path flips its status with a conditional update,
// so of two concurrent redeems only one can succeed.
type CouponService struct {
	couponRepo       *repository.CouponRepository
	redemptionRepo   *repository.RedemptionRepository
	offerRepo        *repository.OfferRepository
	userRepo         *repository.UserRepository
	notificationRepo *repository.NotificationRepository
	auditService     *AuditService
	mailer           *mail.Sender
	publisher        *events.Publisher
	logger           *zap.Logger
	db               *gorm.DB
}

func NewCouponService(
	couponRepo *repository.CouponRepository,
	redemptionRepo *repository.RedemptionRepository,
	offerRepo *repository.OfferRepository,
	userRepo *repository.UserRepository,
	notificationRepo *repository.NotificationRepository,
	auditService *AuditService,
	mailer *mail.Sender,
	publisher *events.Publisher,
	logger *zap.Logger,
	db *gorm.DB,
) *CouponService {
	return &CouponService{
		couponRepo:       couponRepo,
		redemptionRepo:   redemptionRepo,
		offerRepo:        offerRepo,
		userRepo:         userRepo,
		notificationRepo: notificationRepo,
		auditService:     auditService,
		mailer:           mailer,
		publisher:        publisher,
		logger:           logger,
		db:               db,
	}
}

// Claim issues a coupon on an active offer to the authenticated user.
// A user can hold at most one live coupon per offer.
func (s *CouponService) Claim(ctx context.Context, offerID uuid.UUID, req *domain.ClaimCouponRequest) (*domain.Coupon, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrForbidden
	}

	offer, err := s.offerRepo.GetByIDPublic(ctx, offerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load offer: %w", err)
	}

	now := time.Now().UTC()
	if offer.Status != domain.OfferStatusActive {
		return nil, fmt.Errorf("%w: offer is not active", ErrValidation)
	}
	if offer.ExpiresAt != nil && offer.ExpiresAt.Before(now) {
		return nil, fmt.Errorf("%w: offer has expired", ErrValidation)
	}

	live, err := s.couponRepo.CountActiveByUserAndOffer(ctx, userCtx.UserID, offerID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing coupons: %w", err)
	}
	if live > 0 {
		return nil, fmt.Errorf("%w: an unused coupon for this offer already exists", ErrConflict)
	}

	validDays := req.ValidDays
	if validDays <= 0 {
		validDays = defaultCouponValidDays
	}

	code, err := generateCouponCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate coupon code: %w", err)
	}

	coupon := &domain.Coupon{
		Code:      code,
		Status:    domain.CouponStatusActive,
		OfferID:   offer.ID,
		UserID:    userCtx.UserID,
		CompanyID: offer.CompanyID,
		ExpiresAt: now.AddDate(0, 0, validDays),
	}
	if err := s.couponRepo.Create(ctx, coupon); err != nil {
		return nil, fmt.Errorf("failed to create coupon: %w", err)
	}
	coupon.Offer = offer

	s.auditService.Record(ctx, &domain.AuditLog{
		Action:     domain.AuditActionClaim,
		EntityType: "coupon",
		EntityID:   &coupon.ID,
		EntityName: offer.Title,
		CompanyID:  &offer.CompanyID,
	})

	if userCtx.Email != "" {
		if err := s.mailer.SendCouponClaimed(userCtx.Email, coupon); err != nil {
			s.logger.Warn("failed to send claim mail", zap.Error(err))
		}
	}

	s.publisher.Publish(ctx, events.EventCouponClaimed, map[string]interface{}{
		"couponId":  coupon.ID,
		"offerId":   offer.ID,
		"userId":    userCtx.UserID,
		"expiresAt": coupon.ExpiresAt,
	})

	s.logger.Info("coupon claimed",
		zap.String("coupon_id", coupon.ID.String()),
		zap.String("offer_id", offer.ID.String()),
		zap.String("user_id", userCtx.UserID.String()),
	)

	return coupon, nil
}

// Verify looks a coupon up by code without consuming it, so staff can
// preview a code before committing to the redemption.
func (s *CouponService) Verify(ctx context.Context, code string) (*domain.Coupon, error) {
	coupon, err := s.loadForRedemption(ctx, code)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	switch {
	case coupon.Status == domain.CouponStatusUsed:
		return nil, ErrCouponUsed
	case coupon.Status == domain.CouponStatusExpired || coupon.ExpiresAt.Before(now):
		return nil, ErrCouponExpired
	}
	return coupon, nil
}

// Redeem consumes a coupon by code and writes the redemption record. The
// status flip, the redemption row and the audit entry commit in a single
// transaction. The conditional status update means a coupon redeemed from
// two terminals at once produces exactly one redemption; the loser gets
// ErrCouponUsed.
func (s *CouponService) Redeem(ctx context.Context, req *domain.RedeemCouponRequest) (*domain.Redemption, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrForbidden
	}

	coupon, err := s.loadForRedemption(ctx, req.Code)
	if err != nil {
		metrics.RecordRedemption("error")
		return nil, err
	}

	now := time.Now().UTC()

	if coupon.Status == domain.CouponStatusUsed {
		metrics.RecordRedemption("already_used")
		return nil, ErrCouponUsed
	}
	if coupon.Status == domain.CouponStatusExpired || coupon.ExpiresAt.Before(now) {
		// The stored status stays untouched here; the expiry sweep owns
		// the active -> expired flip
		metrics.RecordRedemption("expired")
		return nil, ErrCouponExpired
	}

	offer := coupon.Offer
	if offer == nil {
		return nil, fmt.Errorf("coupon %s has no offer", coupon.ID)
	}

	originalPrice, discountAmount, finalPrice, err := resolvePricing(offer, req.Pricing)
	if err != nil {
		metrics.RecordRedemption("error")
		return nil, err
	}

	redemption := &domain.Redemption{
		CouponID:       coupon.ID,
		OfferID:        offer.ID,
		CompanyID:      coupon.CompanyID,
		OriginalPrice:  originalPrice,
		DiscountAmount: discountAmount,
		FinalPrice:     finalPrice,
		Location:       req.Location,
		VerifiedByID:   userCtx.UserID,
		Notes:          req.Notes,
		RedeemedAt:     now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		flipped, err := s.couponRepo.WithTx(tx).MarkUsedIfActive(ctx, coupon.ID, now)
		if err != nil {
			return fmt.Errorf("failed to mark coupon used: %w", err)
		}
		if !flipped {
			// Someone else consumed it between our read and this update
			return ErrCouponUsed
		}

		if err := s.redemptionRepo.WithTx(tx).Create(ctx, redemption); err != nil {
			return fmt.Errorf("failed to create redemption: %w", err)
		}

		return s.auditService.RecordTx(ctx, tx, &domain.AuditLog{
			Action:     domain.AuditActionRedeem,
			EntityType: "coupon",
			EntityID:   &coupon.ID,
			EntityName: offer.Title,
			CompanyID:  &coupon.CompanyID,
			Metadata: domain.MarshalEvent(domain.RedemptionEvent{
				RedemptionID: redemption.ID,
				FinalPrice:   redemption.FinalPrice,
			}),
		})
	})
	if err != nil {
		if errors.Is(err, ErrCouponUsed) {
			metrics.RecordRedemption("already_used")
			return nil, ErrCouponUsed
		}
		metrics.RecordRedemption("error")
		return nil, err
	}

	metrics.RecordRedemption("redeemed")
	coupon.Status = domain.CouponStatusUsed
	coupon.UsedAt = &now
	redemption.Coupon = coupon

	s.notifyRedemption(ctx, coupon, redemption, offer)

	s.publisher.Publish(ctx, events.EventCouponRedeemed, map[string]interface{}{
		"couponId":     coupon.ID,
		"redemptionId": redemption.ID,
		"offerId":      offer.ID,
		"companyId":    coupon.CompanyID,
		"finalPrice":   redemption.FinalPrice,
	})

	s.logger.Info("coupon redeemed",
		zap.String("coupon_id", coupon.ID.String()),
		zap.String("redemption_id", redemption.ID.String()),
		zap.Float64("final_price", redemption.FinalPrice),
	)

	return redemption, nil
}

// GetRedemption returns a single redemption by ID
func (s *CouponService) GetRedemption(ctx context.Context, id uuid.UUID) (*domain.Redemption, error) {
	redemption, err := s.redemptionRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return redemption, nil
}

// ListRedemptions returns a page of the tenant's redemption ledger
func (s *CouponService) ListRedemptions(ctx context.Context, page, pageSize int, filters *repository.RedemptionFilters) ([]domain.Redemption, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > repository.MaxPageSize {
		pageSize = 20
	}
	return s.redemptionRepo.List(ctx, page, pageSize, filters)
}

// ListCoupons returns a page of coupons visible to the caller
func (s *CouponService) ListCoupons(ctx context.Context, page, pageSize int, filters *repository.CouponFilters) ([]domain.Coupon, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > repository.MaxPageSize {
		pageSize = 20
	}
	return s.couponRepo.List(ctx, page, pageSize, filters)
}

// GetCoupon returns a coupon by ID, restricted to its holder, its tenant's
// staff, or a platform admin.
func (s *CouponService) GetCoupon(ctx context.Context, id uuid.UUID) (*domain.Coupon, error) {
	coupon, err := s.couponRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrForbidden
	}
	if coupon.UserID != userCtx.UserID && !userCtx.CanAccessCompany(coupon.CompanyID) {
		return nil, ErrForbidden
	}
	return coupon, nil
}

// ExpireDue flips past-due active coupons to expired. Run by the cron job.
func (s *CouponService) ExpireDue(ctx context.Context) (int64, error) {
	return s.couponRepo.ExpireDue(ctx, time.Now().UTC())
}

// loadForRedemption loads a coupon by code and checks the caller may act
// on it. Redemption is performed by the issuing tenant's staff.
func (s *CouponService) loadForRedemption(ctx context.Context, code string) (*domain.Coupon, error) {
	coupon, err := s.couponRepo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load coupon: %w", err)
	}

	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrForbidden
	}
	if !userCtx.CanAccessCompany(coupon.CompanyID) {
		return nil, ErrForbidden
	}
	return coupon, nil
}

// resolvePricing starts from the offer's listed and discounted prices and
// applies any caller-supplied overrides. Whichever of the three values
// the caller leaves out is derived from the other two.
func resolvePricing(offer *domain.Offer, pricing *domain.RedemptionPricing) (original, discount, final float64, err error) {
	original = offer.ListedPrice
	final = offer.FinalPrice()
	discount = original - final

	if pricing != nil {
		if pricing.OriginalPrice != nil {
			original = *pricing.OriginalPrice
		}
		switch {
		case pricing.FinalPrice != nil:
			final = *pricing.FinalPrice
			if pricing.DiscountAmount != nil {
				discount = *pricing.DiscountAmount
			} else {
				discount = original - final
			}
		case pricing.DiscountAmount != nil:
			discount = *pricing.DiscountAmount
			final = original - discount
		default:
			discount = original - final
		}
	}

	if final < 0 || discount < 0 {
		return 0, 0, 0, fmt.Errorf("%w: discount exceeds the original price", ErrValidation)
	}
	return original, discount, final, nil
}

// notifyRedemption informs the coupon holder. Failures are logged only.
func (s *CouponService) notifyRedemption(ctx context.Context, coupon *domain.Coupon, redemption *domain.Redemption, offer *domain.Offer) {
	notification := &domain.Notification{
		UserID:     coupon.UserID,
		Type:       string(domain.NotificationTypeCouponRedeemed),
		Title:      "Coupon redeemed",
		Message:    fmt.Sprintf("Your coupon for '%s' was redeemed", offer.Title),
		EntityType: "coupon",
		EntityID:   &coupon.ID,
	}
	if err := s.notificationRepo.Create(ctx, notification); err != nil {
		s.logger.Warn("failed to create redemption notification", zap.Error(err))
	}

	holder, err := s.userRepo.GetByID(ctx, coupon.UserID)
	if err != nil {
		s.logger.Warn("failed to load coupon holder for receipt", zap.Error(err))
		return
	}
	if err := s.mailer.SendRedemptionReceipt(holder.Email, coupon, redemption); err != nil {
		s.logger.Warn("failed to send redemption receipt", zap.Error(err))
	}
}

// generateCouponCode produces a random human-readable code like LP-X7K2M9Q4TB
func generateCouponCode() (string, error) {
	buf := make([]byte, couponCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	code := make([]byte, couponCodeLength)
	for i, b := range buf {
		code[i] = couponCodeAlphabet[int(b)%len(couponCodeAlphabet)]
	}
	return "LP-" + string(code), nil
}
