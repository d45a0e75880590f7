package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lapublica/platform-api/internal/domain"
	"github.com/lapublica/platform-api/internal/repository"
	"github.com/lapublica/platform-api/internal/service"
	"go.uber.org/zap"
)

type LeadHandler struct {
	leadService *service.LeadService
	logger      *zap.Logger
}

func NewLeadHandler(leadService *service.LeadService, logger *zap.Logger) *LeadHandler {
	return &LeadHandler{
		leadService: leadService,
		logger:      logger,
	}
}

// @Summary List leads
// @Description List the tenant's leads with optional filters
// @Tags Leads
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Page size" default(20)
// @Param status query string false "Filter by pipeline stage"
// @Param priority query string false "Filter by priority (high, medium, low)"
// @Param source query string false "Filter by source (manual, registry)"
// @Param ownerId query string false "Filter by owner ID"
// @Param createdAfter query string false "Created after date (YYYY-MM-DD)"
// @Param createdBefore query string false "Created before date (YYYY-MM-DD)"
// @Param q query string false "Search company or contact name"
// @Param sortBy query string false "Sort column" default(updated_at)
// @Param sortOrder query string false "Sort order (asc, desc)" default(desc)
// @Success 200 {object} Envelope
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /leads [get]
func (h *LeadHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePaging(r)

	filters := &repository.LeadFilters{}
	if s := r.URL.Query().Get("status"); s != "" {
		status := domain.PipelineStatus(s)
		filters.Status = &status
	}
	if p := r.URL.Query().Get("priority"); p != "" {
		priority := domain.LeadPriority(p)
		filters.Priority = &priority
	}
	if src := r.URL.Query().Get("source"); src != "" {
		source := domain.LeadSource(src)
		filters.Source = &source
	}
	if o := r.URL.Query().Get("ownerId"); o != "" {
		if id, err := uuid.Parse(o); err == nil {
			filters.OwnerID = &id
		}
	}
	if ca := r.URL.Query().Get("createdAfter"); ca != "" {
		if t, err := time.Parse("2006-01-02", ca); err == nil {
			filters.CreatedAfter = &t
		}
	}
	if cb := r.URL.Query().Get("createdBefore"); cb != "" {
		if t, err := time.Parse("2006-01-02", cb); err == nil {
			filters.CreatedBefore = &t
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

	leads, total, err := h.leadService.List(r.Context(), page, pageSize, filters, sort)
	if err != nil {
		h.logger.Error("failed to list leads", zap.Error(err))
		respondServiceError(w, err, "Failed to list leads")
		return
	}

	respondPage(w, http.StatusOK, leads, domain.NewPagination(page, pageSize, total))
}

// @Summary Create lead
// @Description Create a lead in the new stage
// @Tags Leads
// @Accept json
// @Produce json
// @Param request body domain.CreateLeadRequest true "Lead data"
// @Success 201 {object} Envelope
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /leads [post]
func (h *LeadHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateLeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, domain.ErrCodeValidation, "Invalid request body: malformed JSON")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	lead, err := h.leadService.Create(r.Context(), &req)
	if err != nil {
		h.logger.Error("failed to create lead", zap.Error(err))
		respondServiceError(w, err, "Failed to create lead")
		return
	}

	w.Header().Set("Location", "/api/v1/leads/"+lead.ID.String())
	respondData(w, http.StatusCreated, lead)
}

// @Summary Get lead
// @Description Get a lead by ID
// @Tags Leads
// @Produce json
// @Param id path string true "Lead ID"
// @Success 200 {object} Envelope
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /leads/{id} [get]
func (h *LeadHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, domain.ErrCodeValidation, "Invalid lead ID: must be a valid UUID")
		return
	}

	lead, err := h.leadService.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, err, "Failed to get lead")
		return
	}
	respondData(w, http.StatusOK, lead)
}

// @Summary Update lead
// @Description Update a lead's profile fields. Stage moves go through the transition endpoint.
// @Tags Leads
// @Accept json
// @Produce json
// @Param id path string true "Lead ID"
// @Param request body domain.UpdateLeadRequest true "Lead data"
// @Success 200 {object} Envelope
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /leads/{id} [put]
func (h *LeadHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, domain.ErrCodeValidation, "Invalid lead ID: must be a valid UUID")
		return
	}

	var req domain.UpdateLeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, domain.ErrCodeValidation, "Invalid request body: malformed JSON")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	lead, err := h.leadService.Update(r.Context(), id, &req)
	if err != nil {
		h.logger.Error("failed to update lead", zap.Error(err), zap.String("lead_id", id.String()))
		respondServiceError(w, err, "Failed to update lead")
		return
	}
	respondData(w, http.StatusOK, lead)
}

// @Summary Delete lead
// @Description Delete a lead
// @Tags Leads
// @Param id path string true "Lead ID"
// @Success 204 "No Content"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /leads/{id} [delete]
func (h *LeadHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, domain.ErrCodeValidation, "Invalid lead ID: must be a valid UUID")
		return
	}

	if err := h.leadService.Delete(r.Context(), id); err != nil {
		h.logger.Error("failed to delete lead", zap.Error(err), zap.String("lead_id", id.String()))
		respondServiceError(w, err, "Failed to delete lead")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// @Summary Import leads from registry
// @Description Pull newly registered businesses from the external registry into the pipeline
// @Tags Leads
// @Produce json
// @Param companyId query string true "Tenant to import into"
// @Param sinceDays query int false "Look-back window in days" default(7)
// @Success 200 {object} Envelope
// @Security ApiKeyAuth
// @Router /leads/import [post]
func (h *LeadHandler) ImportFromRegistry(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(r.URL.Query().Get("companyId"))
	if err != nil {
		respondError(w, http.StatusBadRequest, domain.ErrCodeValidation, "Invalid company ID: must be a valid UUID")
		return
	}

	sinceDays := 7
	if sd := r.URL.Query().Get("sinceDays"); sd != "" {
		if v, convErr := strconv.Atoi(sd); convErr == nil && v > 0 && v <= 90 {
			sinceDays = v
		}
	}
	since := time.Now().UTC().AddDate(0, 0, -sinceDays)

	imported, err := h.leadService.ImportFromRegistry(r.Context(), companyID, since, 200)
	if err != nil {
		h.logger.Error("registry import failed", zap.Error(err))
		respondServiceError(w, err, "Failed to import leads")
		return
	}

	respondData(w, http.StatusOK, map[string]int{"imported": imported})
}
