package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lapublica/platform-api/internal/domain"
	"github.com/lapublica/platform-api/internal/service"
	"go.uber.org/zap"
)

type PipelineHandler struct {
	pipelineService *service.PipelineService
	logger          *zap.Logger
}

func NewPipelineHandler(pipelineService *service.PipelineService, logger *zap.Logger) *PipelineHandler {
	return &PipelineHandler{
		pipelineService: pipelineService,
		logger:          logger,
	}
}

// @Summary Transition pipeline item
// @Description Move a lead or company to a new stage. Set expectedStage to fail with 409 if the item was moved concurrently.
// @Tags Pipeline
// @Accept json
// @Produce json
// @Param itemType path string true "Item type (lead, company)"
// @Param id path string true "Item ID"
// @Param request body domain.TransitionRequest true "Transition data"
// @Success 200 {object} Envelope
// @Failure 403 {object} Envelope "Item is assigned to another owner"
// @Failure 409 {object} Envelope "Item no longer in the expected stage"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /pipeline/{itemType}/{id}/transition [post]
func (h *PipelineHandler) Transition(w http.ResponseWriter, r *http.Request) {
	itemType := domain.TransitionItemType(chi.URLParam(r, "itemType"))
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, domain.ErrCodeValidation, "Invalid item ID: must be a valid UUID")
		return
	}

	var req domain.TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, domain.ErrCodeValidation, "Invalid request body: malformed JSON")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	result, err := h.pipelineService.Transition(r.Context(), itemType, id, &req)
	if err != nil {
		h.logger.Warn("transition rejected",
			zap.String("item_type", string(itemType)),
			zap.String("item_id", id.String()),
			zap.Error(err),
		)
		respondServiceError(w, err, "Failed to transition item")
		return
	}
	respondData(w, http.StatusOK, result)
}

// @Summary Get transition history
// @Description Get the stage transition trail of a lead or company, newest first
// @Tags Pipeline
// @Produce json
// @Param itemType path string true "Item type (lead, company)"
// @Param id path string true "Item ID"
// @Success 200 {object} Envelope
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /pipeline/{itemType}/{id}/history [get]
func (h *PipelineHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	itemType := domain.TransitionItemType(chi.URLParam(r, "itemType"))
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, domain.ErrCodeValidation, "Invalid item ID: must be a valid UUID")
		return
	}

	history, err := h.pipelineService.GetHistory(r.Context(), itemType, id)
	if err != nil {
		respondServiceError(w, err, "Failed to get transition history")
		return
	}
	respondData(w, http.StatusOK, history)
}

// @Summary Get pipeline board
// @Description Get the tenant's open leads grouped into display columns
// @Tags Pipeline
// @Produce json
// @Success 200 {object} Envelope
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /pipeline/board [get]
func (h *PipelineHandler) GetBoard(w http.ResponseWriter, r *http.Request) {
	board, err := h.pipelineService.GetBoard(r.Context())
	if err != nil {
		h.logger.Error("failed to load pipeline board", zap.Error(err))
		respondServiceError(w, err, "Failed to load pipeline board")
		return
	}
	respondData(w, http.StatusOK, board)
}

// @Summary List pipeline stages
// @Description List the valid pipeline stages and their display columns
// @Tags Pipeline
// @Produce json
// @Success 200 {object} Envelope
// @Router /pipeline/stages [get]
func (h *PipelineHandler) GetStages(w http.ResponseWriter, r *http.Request) {
	respondData(w, http.StatusOK, map[string]interface{}{
		"stages":  domain.AllPipelineStatuses,
		"columns": domain.PipelineColumns,
	})
}
