package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lapublica/platform-api/internal/auth"
	"github.com/lapublica/platform-api/internal/domain"
	"github.com/lapublica/platform-api/internal/service"
	"go.uber.org/zap"
)

type NotificationHandler struct {
	notificationService *service.NotificationService
	logger              *zap.Logger
}

func NewNotificationHandler(notificationService *service.NotificationService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
		logger:              logger,
	}
}

// @Summary List notifications
// @Description List the authenticated user's notifications
// @Tags Notifications
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Page size" default(20)
// @Param unreadOnly query bool false "Only unread notifications" default(false)
// @Success 200 {object} Envelope
// @Security BearerAuth
// @Router /notifications [get]
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	userCtx := auth.MustFromContext(r.Context())
	page, pageSize := parsePaging(r)

	unreadOnly := false
	if u := r.URL.Query().Get("unreadOnly"); u != "" {
		unreadOnly, _ = strconv.ParseBool(u)
	}

	notifications, total, err := h.notificationService.List(r.Context(), userCtx.UserID, unreadOnly, page, pageSize)
	if err != nil {
		h.logger.Error("failed to list notifications", zap.Error(err))
		respondServiceError(w, err, "Failed to list notifications")
		return
	}
	respondPage(w, http.StatusOK, notifications, domain.NewPagination(page, pageSize, total))
}

// @Summary Unread count
// @Description Get the authenticated user's unread notification count
// @Tags Notifications
// @Produce json
// @Success 200 {object} Envelope
// @Security BearerAuth
// @Router /notifications/unread-count [get]
func (h *NotificationHandler) CountUnread(w http.ResponseWriter, r *http.Request) {
	userCtx := auth.MustFromContext(r.Context())

	count, err := h.notificationService.CountUnread(r.Context(), userCtx.UserID)
	if err != nil {
		h.logger.Error("failed to count unread notifications", zap.Error(err))
		respondServiceError(w, err, "Failed to count notifications")
		return
	}
	respondData(w, http.StatusOK, map[string]int64{"unread": count})
}

// @Summary Mark notification read
// @Description Mark one of the authenticated user's notifications as read
// @Tags Notifications
// @Produce json
// @Param id path string true "Notification ID"
// @Success 204 "No Content"
// @Security BearerAuth
// @Router /notifications/{id}/read [post]
func (h *NotificationHandler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	userCtx := auth.MustFromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, domain.ErrCodeValidation, "Invalid notification ID: must be a valid UUID")
		return
	}

	if err := h.notificationService.MarkAsRead(r.Context(), id, userCtx.UserID); err != nil {
		respondServiceError(w, err, "Failed to mark notification read")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// @Summary Mark all read
// @Description Mark all of the authenticated user's notifications as read
// @Tags Notifications
// @Produce json
// @Success 200 {object} Envelope
// @Security BearerAuth
// @Router /notifications/read-all [post]
func (h *NotificationHandler) MarkAllAsRead(w http.ResponseWriter, r *http.Request) {
	userCtx := auth.MustFromContext(r.Context())

	updated, err := h.notificationService.MarkAllAsRead(r.Context(), userCtx.UserID)
	if err != nil {
		h.logger.Error("failed to mark all notifications read", zap.Error(err))
		respondServiceError(w, err, "Failed to mark notifications read")
		return
	}
	respondData(w, http.StatusOK, map[string]int64{"updated": updated})
}
