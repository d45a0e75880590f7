package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lapublica/platform-api/internal/cache"
	"github.com/lapublica/platform-api/internal/config"
	"github.com/lapublica/platform-api/internal/domain"
	"github.com/lapublica/platform-api/internal/events"
	"github.com/lapublica/platform-api/internal/http/handler"
	"github.com/lapublica/platform-api/internal/mail"
	"github.com/lapublica/platform-api/internal/repository"
	"github.com/lapublica/platform-api/internal/service"
	"github.com/lapublica/platform-api/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// envelope mirrors the response wrapper for assertions
type envelope struct {
	Success    bool               `json:"success"`
	Data       json.RawMessage    `json:"data"`
	Error      *domain.APIError   `json:"error"`
	Pagination *domain.Pagination `json:"pagination"`
}

func createCouponHandler(db *gorm.DB) *handler.CouponHandler {
	logger := zap.NewNop()
	auditService := service.NewAuditService(repository.NewAuditLogRepository(db), logger)
	mailer := mail.NewSender(&config.MailConfig{Enabled: false}, logger)
	publisher := events.NewDisabledPublisher(logger)

	couponService := service.NewCouponService(
		repository.NewCouponRepository(db),
		repository.NewRedemptionRepository(db),
		repository.NewOfferRepository(db),
		repository.NewUserRepository(db),
		repository.NewNotificationRepository(db),
		auditService,
		mailer,
		publisher,
		logger,
		db,
	)
	return handler.NewCouponHandler(couponService, logger)
}

// limitServiceFor builds a limit service for handler wiring in tests
func limitServiceFor(db *gorm.DB) *service.LimitService {
	logger := zap.NewNop()
	return service.NewLimitService(
		repository.NewPlanRepository(db),
		repository.NewOfferRepository(db),
		repository.NewUserRepository(db),
		repository.NewAttachmentRepository(db),
		cache.NewDisabledPlanCache(logger),
		logger,
	)
}

func couponTestRouter(h *handler.CouponHandler) *chi.Mux {
	r := chi.NewRouter()
	r.MethodNotAllowed(handler.MethodNotAllowed)
	r.NotFound(handler.NotFound)
	r.Get("/coupons/verify/{code}", h.Verify)
	r.Post("/coupons/redeem", h.Redeem)
	r.Post("/marketplace/offers/{offerId}/claim", h.Claim)
	return r
}

func TestCouponHandler_Redeem(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := createCouponHandler(db)
	r := couponTestRouter(h)

	company := testutil.CreateTestCompany(t, db, "Vendor", nil)
	member := testutil.CreateTestUser(t, db, company.ID, domain.RoleMember)
	ctx := testutil.UserContextFor(member)
	discount := 60.0
	offer := testutil.CreateTestOffer(t, db, company.ID, domain.OfferStatusActive, 100, &discount)

	t.Run("successful redemption returns 201 with the envelope", func(t *testing.T) {
		coupon := testutil.CreateTestCoupon(t, db, offer, member.ID, domain.CouponStatusActive, time.Now().Add(24*time.Hour))

		body, _ := json.Marshal(domain.RedeemCouponRequest{Code: coupon.Code})
		req := httptest.NewRequest(http.MethodPost, "/coupons/redeem", bytes.NewReader(body)).WithContext(ctx)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)

		var env envelope
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
		assert.True(t, env.Success)
		assert.Nil(t, env.Error)

		var redemption domain.Redemption
		require.NoError(t, json.Unmarshal(env.Data, &redemption))
		assert.Equal(t, 60.0, redemption.FinalPrice)
	})

	t.Run("already used returns 410", func(t *testing.T) {
		coupon := testutil.CreateTestCoupon(t, db, offer, member.ID, domain.CouponStatusUsed, time.Now().Add(24*time.Hour))

		body, _ := json.Marshal(domain.RedeemCouponRequest{Code: coupon.Code})
		req := httptest.NewRequest(http.MethodPost, "/coupons/redeem", bytes.NewReader(body)).WithContext(ctx)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusGone, rr.Code)

		var env envelope
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
		assert.False(t, env.Success)
		require.NotNil(t, env.Error)
		assert.Equal(t, "conflict", env.Error.Code)
	})

	t.Run("redeeming the same code twice returns 410", func(t *testing.T) {
		coupon := testutil.CreateTestCoupon(t, db, offer, member.ID, domain.CouponStatusActive, time.Now().Add(24*time.Hour))
		body, _ := json.Marshal(domain.RedeemCouponRequest{Code: coupon.Code})

		req := httptest.NewRequest(http.MethodPost, "/coupons/redeem", bytes.NewReader(body)).WithContext(ctx)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		require.Equal(t, http.StatusCreated, rr.Code)

		req = httptest.NewRequest(http.MethodPost, "/coupons/redeem", bytes.NewReader(body)).WithContext(ctx)
		rr = httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusGone, rr.Code)

		var count int64
		require.NoError(t, db.Model(&domain.Redemption{}).Where("coupon_id = ?", coupon.ID).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})

	t.Run("expired returns 410", func(t *testing.T) {
		coupon := testutil.CreateTestCoupon(t, db, offer, member.ID, domain.CouponStatusActive, time.Now().Add(-time.Hour))

		body, _ := json.Marshal(domain.RedeemCouponRequest{Code: coupon.Code})
		req := httptest.NewRequest(http.MethodPost, "/coupons/redeem", bytes.NewReader(body)).WithContext(ctx)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusGone, rr.Code)
	})

	t.Run("unknown code returns 404", func(t *testing.T) {
		body, _ := json.Marshal(domain.RedeemCouponRequest{Code: "LP-NOPE"})
		req := httptest.NewRequest(http.MethodPost, "/coupons/redeem", bytes.NewReader(body)).WithContext(ctx)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("missing code fails validation", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/coupons/redeem", bytes.NewReader([]byte(`{}`))).WithContext(ctx)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("negative pricing fails validation", func(t *testing.T) {
		coupon := testutil.CreateTestCoupon(t, db, offer, member.ID, domain.CouponStatusActive, time.Now().Add(24*time.Hour))

		body := []byte(`{"code":"` + coupon.Code + `","pricing":{"finalPrice":-5}}`)
		req := httptest.NewRequest(http.MethodPost, "/coupons/redeem", bytes.NewReader(body)).WithContext(ctx)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestCouponHandler_Verify(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := createCouponHandler(db)
	r := couponTestRouter(h)

	company := testutil.CreateTestCompany(t, db, "Vendor", nil)
	member := testutil.CreateTestUser(t, db, company.ID, domain.RoleMember)
	ctx := testutil.UserContextFor(member)
	offer := testutil.CreateTestOffer(t, db, company.ID, domain.OfferStatusActive, 100, nil)
	coupon := testutil.CreateTestCoupon(t, db, offer, member.ID, domain.CouponStatusActive, time.Now().Add(24*time.Hour))

	t.Run("verify does not consume the coupon", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/coupons/verify/"+coupon.Code, nil).WithContext(ctx)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var stored domain.Coupon
		require.NoError(t, db.First(&stored, "id = ?", coupon.ID).Error)
		assert.Equal(t, domain.CouponStatusActive, stored.Status)
	})

	t.Run("wrong method gets a JSON 405", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/coupons/redeem", nil).WithContext(ctx)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
		assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

		var env envelope
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
		assert.False(t, env.Success)
		require.NotNil(t, env.Error)
	})
}

func TestCouponHandler_Claim(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := createCouponHandler(db)
	r := couponTestRouter(h)

	company := testutil.CreateTestCompany(t, db, "Vendor", nil)
	member := testutil.CreateTestUser(t, db, company.ID, domain.RoleMember)
	ctx := testutil.UserContextFor(member)
	offer := testutil.CreateTestOffer(t, db, company.ID, domain.OfferStatusActive, 100, nil)

	t.Run("claim without a body uses defaults", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/marketplace/offers/"+offer.ID.String()+"/claim", nil).WithContext(ctx)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)

		var env envelope
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
		var coupon domain.Coupon
		require.NoError(t, json.Unmarshal(env.Data, &coupon))
		assert.Equal(t, domain.CouponStatusActive, coupon.Status)
		assert.NotEmpty(t, coupon.Code)
	})

	t.Run("second claim conflicts", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/marketplace/offers/"+offer.ID.String()+"/claim", nil).WithContext(ctx)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("bad offer id fails validation", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/marketplace/offers/not-a-uuid/claim", nil).WithContext(ctx)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
