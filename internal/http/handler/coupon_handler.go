package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lapublica/platform-api/internal/domain"
	"github.com/lapublica/platform-api/internal/repository"
	"github.com/lapublica/platform-api/internal/service"
	"go.uber.org/zap"
)

type CouponHandler struct {
	couponService *service.CouponService
	logger        *zap.Logger
}

func NewCouponHandler(couponService *service.CouponService, logger *zap.Logger) *CouponHandler {
	return &CouponHandler{
		couponService: couponService,
		logger:        logger,
	}
}

// @Summary Claim coupon
// @Description Claim a single-use coupon on an active offer
// @Tags Coupons
// @Accept json
// @Produce json
// @Param offerId path string true "Offer ID"
// @Param request body domain.ClaimCouponRequest false "Claim options"
// @Success 201 {object} Envelope
// @Failure 409 {object} Envelope "An unused coupon for this offer already exists"
// @Security BearerAuth
// @Router /marketplace/offers/{offerId}/claim [post]
func (h *CouponHandler) Claim(w http.ResponseWriter, r *http.Request) {
	offerID, err := uuid.Parse(chi.URLParam(r, "offerId"))
	if err != nil {
		respondError(w, http.StatusBadRequest, domain.ErrCodeValidation, "Invalid offer ID: must be a valid UUID")
		return
	}

	var req domain.ClaimCouponRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, domain.ErrCodeValidation, "Invalid request body: malformed JSON")
			return
		}
		if err := validate.Struct(req); err != nil {
			respondValidationError(w, err)
			return
		}
	}

	coupon, err := h.couponService.Claim(r.Context(), offerID, &req)
	if err != nil {
		respondServiceError(w, err, "Failed to claim coupon")
		return
	}
	respondData(w, http.StatusCreated, coupon)
}

// @Summary Verify coupon
// @Description Look up a coupon by code without consuming it
// @Tags Coupons
// @Produce json
// @Param code path string true "Coupon code"
// @Success 200 {object} Envelope
// @Failure 410 {object} Envelope "Coupon already used or expired"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /coupons/verify/{code} [get]
func (h *CouponHandler) Verify(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if code == "" {
		respondError(w, http.StatusBadRequest, domain.ErrCodeValidation, "Coupon code is required")
		return
	}

	coupon, err := h.couponService.Verify(r.Context(), code)
	if err != nil {
		respondServiceError(w, err, "Failed to verify coupon")
		return
	}
	respondData(w, http.StatusOK, coupon)
}

// @Summary Redeem coupon
// @Description Consume a coupon by code. Of two concurrent redeems of the same code exactly one succeeds; the other gets 410.
// @Tags Coupons
// @Accept json
// @Produce json
// @Param request body domain.RedeemCouponRequest true "Redemption data"
// @Success 201 {object} Envelope
// @Failure 410 {object} Envelope "Coupon already used or expired"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /coupons/redeem [post]
func (h *CouponHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req domain.RedeemCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, domain.ErrCodeValidation, "Invalid request body: malformed JSON")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	redemption, err := h.couponService.Redeem(r.Context(), &req)
	if err != nil {
		respondServiceError(w, err, "Failed to redeem coupon")
		return
	}
	respondData(w, http.StatusCreated, redemption)
}

// @Summary Get coupon
// @Description Get a coupon by ID
// @Tags Coupons
// @Produce json
// @Param id path string true "Coupon ID"
// @Success 200 {object} Envelope
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /coupons/{id} [get]
func (h *CouponHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, domain.ErrCodeValidation, "Invalid coupon ID: must be a valid UUID")
		return
	}

	coupon, err := h.couponService.GetCoupon(r.Context(), id)
	if err != nil {
		respondServiceError(w, err, "Failed to get coupon")
		return
	}
	respondData(w, http.StatusOK, coupon)
}

// @Summary List coupons
// @Description List coupons with optional filters
// @Tags Coupons
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Page size" default(20)
// @Param status query string false "Filter by status (active, used, expired)"
// @Param offerId query string false "Filter by offer ID"
// @Success 200 {object} Envelope
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /coupons [get]
func (h *CouponHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePaging(r)

	filters := &repository.CouponFilters{}
	if s := r.URL.Query().Get("status"); s != "" {
		status := domain.CouponStatus(s)
		filters.Status = &status
	}
	if o := r.URL.Query().Get("offerId"); o != "" {
		if id, err := uuid.Parse(o); err == nil {
			filters.OfferID = &id
		}
	}

	coupons, total, err := h.couponService.ListCoupons(r.Context(), page, pageSize, filters)
	if err != nil {
		h.logger.Error("failed to list coupons", zap.Error(err))
		respondServiceError(w, err, "Failed to list coupons")
		return
	}
	respondPage(w, http.StatusOK, coupons, domain.NewPagination(page, pageSize, total))
}

// @Summary List redemptions
// @Description List the tenant's redemption ledger
// @Tags Redemptions
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Page size" default(20)
// @Param offerId query string false "Filter by offer ID"
// @Param redeemedAfter query string false "Redeemed after date (YYYY-MM-DD)"
// @Param redeemedBefore query string false "Redeemed before date (YYYY-MM-DD)"
// @Success 200 {object} Envelope
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /redemptions [get]
func (h *CouponHandler) ListRedemptions(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePaging(r)

	filters := &repository.RedemptionFilters{}
	if o := r.URL.Query().Get("offerId"); o != "" {
		if id, err := uuid.Parse(o); err == nil {
			filters.OfferID = &id
		}
	}
	if ra := r.URL.Query().Get("redeemedAfter"); ra != "" {
		if t, err := time.Parse("2006-01-02", ra); err == nil {
			filters.RedeemedAfter = &t
		}
	}
	if rb := r.URL.Query().Get("redeemedBefore"); rb != "" {
		if t, err := time.Parse("2006-01-02", rb); err == nil {
			filters.RedeemedBefore = &t
		}
	}

	redemptions, total, err := h.couponService.ListRedemptions(r.Context(), page, pageSize, filters)
	if err != nil {
		h.logger.Error("failed to list redemptions", zap.Error(err))
		respondServiceError(w, err, "Failed to list redemptions")
		return
	}
	respondPage(w, http.StatusOK, redemptions, domain.NewPagination(page, pageSize, total))
}

// @Summary Get redemption
// @Description Get a redemption by ID
// @Tags Redemptions
// @Produce json
// @Param id path string true "Redemption ID"
// @Success 200 {object} Envelope
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /redemptions/{id} [get]
func (h *CouponHandler) GetRedemption(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, domain.ErrCodeValidation, "Invalid redemption ID: must be a valid UUID")
		return
	}

	redemption, err := h.couponService.GetRedemption(r.Context(), id)
	if err != nil {
		respondServiceError(w, err, "Failed to get redemption")
		return
	}
	respondData(w, http.StatusOK, redemption)
}
