package handler

import (
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

type AuditHandler struct {
	auditService *service.AuditService
	logger       *zap.Logger
}

func NewAuditHandler(auditService *service.AuditService, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{
		auditService: auditService,
		logger:       logger,
	}
}

// @Summary List audit trail
// @Description List audit entries with optional filters. Platform admin only.
// @Tags Audit
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Page size" default(20)
// @Param action query string false "Filter by action"
// @Param entityType query string false "Filter by entity type"
// @Param actorId query string false "Filter by actor ID"
// @Param after query string false "Performed after date (YYYY-MM-DD)"
// @Param before query string false "Performed before date (YYYY-MM-DD)"
// @Success 200 {object} Envelope
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /audit [get]
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePaging(r)

	filters := &repository.AuditFilters{}
	if a := r.URL.Query().Get("action"); a != "" {
		action := domain.AuditAction(a)
		filters.Action = &action
	}
	if et := r.URL.Query().Get("entityType"); et != "" {
		filters.EntityType = &et
	}
	if a := r.URL.Query().Get("actorId"); a != "" {
		if id, err := uuid.Parse(a); err == nil {
			filters.ActorID = &id
		}
	}
	if af := r.URL.Query().Get("after"); af != "" {
		if t, err := time.Parse("2006-01-02", af); err == nil {
			filters.After = &t
		}
	}
	if bf := r.URL.Query().Get("before"); bf != "" {
		if t, err := time.Parse("2006-01-02", bf); err == nil {
			filters.Before = &t
		}
	}

	entries, total, err := h.auditService.List(r.Context(), page, pageSize, filters)
	if err != nil {
		h.logger.Error("failed to list audit entries", zap.Error(err))
		respondServiceError(w, err, "Failed to list audit entries")
		return
	}
	respondPage(w, http.StatusOK, entries, domain.NewPagination(page, pageSize, total))
}

// @Summary Get entity audit trail
// @Description Get recent audit entries for one entity
// @Tags Audit
// @Produce json
// @Param entityType path string true "Entity type"
// @Param entityId path string true "Entity ID"
// @Param limit query int false "Limit results" default(50)
// @Success 200 {object} Envelope
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /audit/{entityType}/{entityId} [get]
func (h *AuditHandler) GetByEntity(w http.ResponseWriter, r *http.Request) {
	entityType := chi.URLParam(r, "entityType")
	entityID, err := uuid.Parse(chi.URLParam(r, "entityId"))
	if err != nil {
		respondError(w, http.StatusBadRequest, domain.ErrCodeValidation, "Invalid entity ID: must be a valid UUID")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.auditService.GetByEntity(r.Context(), entityType, entityID, limit)
	if err != nil {
		h.logger.Error("failed to get entity audit trail", zap.Error(err))
		respondServiceError(w, err, "Failed to get audit entries")
		return
	}
	respondData(w, http.StatusOK, entries)
}
