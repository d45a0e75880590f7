package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lapublica/platform-api/internal/domain"
	"github.com/lapublica/platform-api/internal/repository"
	"github.com/lapublica/platform-api/internal/service"
	"go.uber.org/zap"
)

type OfferHandler struct {
	offerService *service.OfferService
	logger       *zap.Logger
}

func NewOfferHandler(offerService *service.OfferService, logger *zap.Logger) *OfferHandler {
	return &OfferHandler{
		offerService: offerService,
		logger:       logger,
	}
}

// @Summary List offers
// @Description List the tenant's offers with optional filters
// @Tags Offers
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Page size" default(20)
// @Param status query string false "Filter by status (draft, active, paused, archived)"
// @Param featured query bool false "Filter by featured flag"
// @Param q query string false "Search title"
// @Success 200 {object} Envelope
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /offers [get]
func (h *OfferHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePaging(r)

	filters := &repository.OfferFilters{}
	if s := r.URL.Query().Get("status"); s != "" {
		status := domain.OfferStatus(s)
		filters.Status = &status
	}
	if f := r.URL.Query().Get("featured"); f != "" {
		if v, err := strconv.ParseBool(f); err == nil {
			filters.Featured = &v
		}
	}
	if q := r.URL.Query().Get("q"); q != "" {
		filters.SearchQuery = &q
	}

	sort := repository.DefaultSortConfig()
	if sb := r.URL.Query().Get("sortBy"); sb != "" {
		sort.Field = sb
	}
	sort.Order = repository.ParseSortOrder(r.URL.Query().Get("sortOrder"))

	offers, total, err := h.offerService.List(r.Context(), page, pageSize, filters, sort)
	if err != nil {
		h.logger.Error("failed to list offers", zap.Error(err))
		respondServiceError(w, err, "Failed to list offers")
		return
	}
	respondPage(w, http.StatusOK, offers, domain.NewPagination(page, pageSize, total))
}

// @Summary Browse marketplace
// @Description List active offers across all tenants, featured first. No authentication required.
// @Tags Marketplace
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Page size" default(20)
// @Success 200 {object} Envelope
// @Router /marketplace/offers [get]
func (h *OfferHandler) ListMarketplace(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePaging(r)

	offers, total, err := h.offerService.ListMarketplace(r.Context(), page, pageSize)
	if err != nil {
		h.logger.Error("failed to list marketplace offers", zap.Error(err))
		respondServiceError(w, err, "Failed to list offers")
		return
	}
	respondPage(w, http.StatusOK, offers, domain.NewPagination(page, pageSize, total))
}

// @Summary Get marketplace offer
// @Description Get a single active offer. No authentication required.
// @Tags Marketplace
// @Produce json
// @Param id path string true "Offer ID"
// @Success 200 {object} Envelope
// @Router /marketplace/offers/{id} [get]
func (h *OfferHandler) GetMarketplace(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, domain.ErrCodeValidation, "Invalid offer ID: must be a valid UUID")
		return
	}

	offer, err := h.offerService.GetPublic(r.Context(), id)
	if err != nil {
		respondServiceError(w, err, "Failed to get offer")
		return
	}
	respondData(w, http.StatusOK, offer)
}

// @Summary Create offer
// @Description Create a draft offer for the caller's company
// @Tags Offers
// @Accept json
// @Produce json
// @Param request body domain.CreateOfferRequest true "Offer data"
// @Success 201 {object} Envelope
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /offers [post]
func (h *OfferHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateOfferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, domain.ErrCodeValidation, "Invalid request body: malformed JSON")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	offer, err := h.offerService.Create(r.Context(), &req)
	if err != nil {
		h.logger.Error("failed to create offer", zap.Error(err))
		respondServiceError(w, err, "Failed to create offer")
		return
	}

	w.Header().Set("Location", "/api/v1/offers/"+offer.ID.String())
	respondData(w, http.StatusCreated, offer)
}

// @Summary Get offer
// @Description Get an offer by ID
// @Tags Offers
// @Produce json
// @Param id path string true "Offer ID"
// @Success 200 {object} Envelope
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /offers/{id} [get]
func (h *OfferHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, domain.ErrCodeValidation, "Invalid offer ID: must be a valid UUID")
		return
	}

	offer, err := h.offerService.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, err, "Failed to get offer")
		return
	}
	respondData(w, http.StatusOK, offer)
}

// @Summary Update offer
// @Description Update an offer. Setting status to active is subject to the plan's active offer limit.
// @Tags Offers
// @Accept json
// @Produce json
// @Param id path string true "Offer ID"
// @Param request body domain.UpdateOfferRequest true "Offer data"
// @Success 200 {object} Envelope
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /offers/{id} [put]
func (h *OfferHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, domain.ErrCodeValidation, "Invalid offer ID: must be a valid UUID")
		return
	}

	var req domain.UpdateOfferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, domain.ErrCodeValidation, "Invalid request body: malformed JSON")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	offer, err := h.offerService.Update(r.Context(), id, &req)
	if err != nil {
		h.logger.Error("failed to update offer", zap.Error(err), zap.String("offer_id", id.String()))
		respondServiceError(w, err, "Failed to update offer")
		return
	}
	respondData(w, http.StatusOK, offer)
}

// @Summary Activate offer
// @Description Publish a draft or paused offer, subject to the plan's active offer limit
// @Tags Offers
// @Produce json
// @Param id path string true "Offer ID"
// @Success 200 {object} Envelope
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /offers/{id}/activate [post]
func (h *OfferHandler) Activate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, domain.ErrCodeValidation, "Invalid offer ID: must be a valid UUID")
		return
	}

	offer, err := h.offerService.Activate(r.Context(), id)
	if err != nil {
		respondServiceError(w, err, "Failed to activate offer")
		return
	}
	respondData(w, http.StatusOK, offer)
}

// @Summary Feature offer
// @Description Toggle an offer's featured flag, subject to the plan's featured offer limit
// @Tags Offers
// @Produce json
// @Param id path string true "Offer ID"
// @Param featured query bool false "Featured flag" default(true)
// @Success 200 {object} Envelope
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /offers/{id}/feature [post]
func (h *OfferHandler) SetFeatured(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, domain.ErrCodeValidation, "Invalid offer ID: must be a valid UUID")
		return
	}

	featured := true
	if f := r.URL.Query().Get("featured"); f != "" {
		featured, _ = strconv.ParseBool(f)
	}

	offer, err := h.offerService.SetFeatured(r.Context(), id, featured)
	if err != nil {
		respondServiceError(w, err, "Failed to set featured flag")
		return
	}
	respondData(w, http.StatusOK, offer)
}

// @Summary Delete offer
// @Description Delete an offer
// @Tags Offers
// @Param id path string true "Offer ID"
// @Success 204 "No Content"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /offers/{id} [delete]
func (h *OfferHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, domain.ErrCodeValidation, "Invalid offer ID: must be a valid UUID")
		return
	}

	if err := h.offerService.Delete(r.Context(), id); err != nil {
		h.logger.Error("failed to delete offer", zap.Error(err), zap.String("offer_id", id.String()))
		respondServiceError(w, err, "Failed to delete offer")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
