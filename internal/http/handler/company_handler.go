package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lapublica/platform-api/internal/domain"
	"github.com/lapublica/platform-api/internal/repository"
	"github.com/lapublica/platform-api/internal/service"
	"go.uber.org/zap"
)

type CompanyHandler struct {
	companyService *service.CompanyService
	limitService   *service.LimitService
	logger         *zap.Logger
}

func NewCompanyHandler(companyService *service.CompanyService, limitService *service.LimitService, logger *zap.Logger) *CompanyHandler {
	return &CompanyHandler{
		companyService: companyService,
		limitService:   limitService,
		logger:         logger,
	}
}

// CreateCompanyRequest is the payload for registering a company
type CreateCompanyRequest struct {
	Name      string `json:"name" validate:"required,max=200"`
	OrgNumber string `json:"orgNumber" validate:"omitempty,max=20"`
	Email     string `json:"email" validate:"omitempty,email"`
	Phone     string `json:"phone" validate:"omitempty,max=50"`
	City      string `json:"city" validate:"omitempty,max=100"`
}

// AssignPlanRequest is the payload for moving a company onto a plan
type AssignPlanRequest struct {
	PlanID uuid.UUID `json:"planId" validate:"required"`
}

// @Summary List companies
// @Description List companies with optional filters. Platform admin only.
// @Tags Companies
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Page size" default(20)
// @Param pipelineStatus query string false "Filter by pipeline stage"
// @Param q query string false "Search name or org number"
// @Success 200 {object} Envelope
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /companies [get]
func (h *CompanyHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePaging(r)

	filters := &repository.CompanyFilters{}
	if s := r.URL.Query().Get("pipelineStatus"); s != "" {
		status := domain.PipelineStatus(s)
		filters.PipelineStatus = &status
	}
	if q := r.URL.Query().Get("q"); q != "" {
		filters.SearchQuery = &q
	}

	sort := repository.DefaultSortConfig()
	if sb := r.URL.Query().Get("sortBy"); sb != "" {
		sort.Field = sb
	}
	sort.Order = repository.ParseSortOrder(r.URL.Query().Get("sortOrder"))

	companies, total, err := h.companyService.List(r.Context(), page, pageSize, filters, sort)
	if err != nil {
		h.logger.Error("failed to list companies", zap.Error(err))
		respondServiceError(w, err, "Failed to list companies")
		return
	}
	respondPage(w, http.StatusOK, companies, domain.NewPagination(page, pageSize, total))
}

// @Summary Create company
// @Description Register a company in the intake pipeline
// @Tags Companies
// @Accept json
// @Produce json
// @Param request body CreateCompanyRequest true "Company data"
// @Success 201 {object} Envelope
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /companies [post]
func (h *CompanyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateCompanyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, domain.ErrCodeValidation, "Invalid request body: malformed JSON")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	company, err := h.companyService.Create(r.Context(), &domain.Company{
		Name:      req.Name,
		OrgNumber: req.OrgNumber,
		Email:     req.Email,
		Phone:     req.Phone,
		City:      req.City,
	})
	if err != nil {
		h.logger.Error("failed to create company", zap.Error(err))
		respondServiceError(w, err, "Failed to create company")
		return
	}

	w.Header().Set("Location", "/api/v1/companies/"+company.ID.String())
	respondData(w, http.StatusCreated, company)
}

// @Summary Get company
// @Description Get a company by ID
// @Tags Companies
// @Produce json
// @Param id path string true "Company ID"
// @Success 200 {object} Envelope
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /companies/{id} [get]
func (h *CompanyHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, domain.ErrCodeValidation, "Invalid company ID: must be a valid UUID")
		return
	}

	company, err := h.companyService.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, err, "Failed to get company")
		return
	}
	respondData(w, http.StatusOK, company)
}

// @Summary Assign plan
// @Description Move a company onto a subscription plan. Platform admin only.
// @Tags Companies
// @Accept json
// @Produce json
// @Param id path string true "Company ID"
// @Param request body AssignPlanRequest true "Plan assignment"
// @Success 200 {object} Envelope
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /companies/{id}/plan [put]
func (h *CompanyHandler) AssignPlan(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, domain.ErrCodeValidation, "Invalid company ID: must be a valid UUID")
		return
	}

	var req AssignPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, domain.ErrCodeValidation, "Invalid request body: malformed JSON")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	if err := h.companyService.AssignPlan(r.Context(), id, req.PlanID); err != nil {
		h.logger.Error("failed to assign plan", zap.Error(err), zap.String("company_id", id.String()))
		respondServiceError(w, err, "Failed to assign plan")
		return
	}

	company, err := h.companyService.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, err, "Failed to get company")
		return
	}
	respondData(w, http.StatusOK, company)
}

// @Summary Get limit status
// @Description Report the company's usage against every plan ceiling. Advisory only, nothing is reserved.
// @Tags Companies
// @Produce json
// @Param id path string true "Company ID"
// @Success 200 {object} Envelope
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /companies/{id}/limits [get]
func (h *CompanyHandler) GetLimits(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, domain.ErrCodeValidation, "Invalid company ID: must be a valid UUID")
		return
	}

	limits, err := h.limitService.GetAll(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get limits", zap.Error(err), zap.String("company_id", id.String()))
		respondServiceError(w, err, "Failed to get limit status")
		return
	}
	respondData(w, http.StatusOK, limits)
}

// @Summary Check single limit
// @Description Check one limit kind, optionally asking whether extra units would still fit
// @Tags Companies
// @Produce json
// @Param id path string true "Company ID"
// @Param kind path string true "Limit kind (active_offers, team_members, featured_offers, storage_bytes)"
// @Param extra query int false "Additional units to check headroom for" default(1)
// @Success 200 {object} Envelope
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /companies/{id}/limits/{kind} [get]
func (h *CompanyHandler) CheckLimit(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, domain.ErrCodeValidation, "Invalid company ID: must be a valid UUID")
		return
	}

	kind := domain.LimitKind(chi.URLParam(r, "kind"))
	extra := int64(1)
	if e := r.URL.Query().Get("extra"); e != "" {
		if v, convErr := parseInt64(e); convErr == nil && v >= 0 {
			extra = v
		}
	}

	status, err := h.limitService.Check(r.Context(), id, kind, extra)
	if err != nil {
		respondServiceError(w, err, "Failed to check limit")
		return
	}
	respondData(w, http.StatusOK, status)
}

// @Summary List plans
// @Description List active subscription plans
// @Tags Plans
// @Produce json
// @Success 200 {object} Envelope
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /plans [get]
func (h *CompanyHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.companyService.ListPlans(r.Context())
	if err != nil {
		h.logger.Error("failed to list plans", zap.Error(err))
		respondServiceError(w, err, "Failed to list plans")
		return
	}
	respondData(w, http.StatusOK, plans)
}
