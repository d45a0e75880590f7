package handler

import (
	"net/http"

	"github.com/lapublica/platform-api/internal/service"
	"go.uber.org/zap"
)

type DashboardHandler struct {
	dashboardService *service.DashboardService
	logger           *zap.Logger
}

func NewDashboardHandler(dashboardService *service.DashboardService, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{
		dashboardService: dashboardService,
		logger:           logger,
	}
}

// @Summary Dashboard summary
// @Description Aggregate pipeline and marketplace figures for the caller's tenant
// @Tags Dashboard
// @Produce json
// @Success 200 {object} Envelope
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /dashboard/summary [get]
func (h *DashboardHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.dashboardService.GetSummary(r.Context())
	if err != nil {
		h.logger.Error("failed to load dashboard summary", zap.Error(err))
		respondServiceError(w, err, "Failed to load dashboard summary")
		return
	}
	respondData(w, http.StatusOK, summary)
}
