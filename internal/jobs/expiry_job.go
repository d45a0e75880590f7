package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ExpiryJobName is the name of the coupon and offer expiry sweep job
const ExpiryJobName = "expiry_sweep"

// DefaultExpiryTimeout bounds a single expiry sweep
const DefaultExpiryTimeout = 5 * time.Minute

// CouponExpirer flips coupons past their validity window to expired.
type CouponExpirer interface {
	// ExpireDue marks all overdue active coupons as expired and returns the count.
	ExpireDue(ctx context.Context) (int64, error)
}

// OfferArchiver archives offers past their end date.
type OfferArchiver interface {
	// ArchiveExpired archives all active offers whose validity has ended and returns the count.
	ArchiveExpired(ctx context.Context) (int64, error)
}

// ExpiryJob sweeps coupons and offers whose validity windows have passed.
// Coupon expiry is also enforced lazily at redemption time; the sweep keeps
// listings and counts honest between redemption attempts.
type ExpiryJob struct {
	coupons CouponExpirer
	offers  OfferArchiver
	logger  *zap.Logger
	timeout time.Duration
}

// NewExpiryJob creates a new expiry sweep job.
func NewExpiryJob(coupons CouponExpirer, offers OfferArchiver, logger *zap.Logger, timeout time.Duration) *ExpiryJob {
	return &ExpiryJob{
		coupons: coupons,
		offers:  offers,
		logger:  logger,
		timeout: timeout,
	}
}

// Run executes the expiry sweep. Called by the scheduler.
func (j *ExpiryJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()

	couponsExpired, err := j.coupons.ExpireDue(ctx)
	if err != nil {
		j.logger.Error("coupon expiry sweep failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)))
		// Offer archival still runs even if coupon expiry fails
	}

	var offersArchived int64
	if j.offers != nil {
		offersArchived, err = j.offers.ArchiveExpired(ctx)
		if err != nil {
			j.logger.Error("offer archival sweep failed",
				zap.Error(err),
				zap.Duration("duration", time.Since(start)))
		}
	}

	j.logger.Info("expiry sweep completed",
		zap.Int64("coupons_expired", couponsExpired),
		zap.Int64("offers_archived", offersArchived),
		zap.Duration("duration", time.Since(start)))
}

// RegisterExpiryJob registers the expiry sweep with the scheduler.
func RegisterExpiryJob(scheduler *Scheduler, coupons CouponExpirer, offers OfferArchiver, logger *zap.Logger, cronExpr string) error {
	job := NewExpiryJob(coupons, offers, logger, DefaultExpiryTimeout)
	return scheduler.AddJob(ExpiryJobName, cronExpr, job.Run)
}
