package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lapublica/platform-api/internal/auth"
	"github.com/lapublica/platform-api/internal/domain"
	"github.com/lapublica/platform-api/internal/service"
	"go.uber.org/zap"
)

type UserHandler struct {
	userService *service.UserService
	logger      *zap.Logger
	validate    *validator.Validate
}

func NewUserHandler(userService *service.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		logger:      logger,
		validate:    validator.New(),
	}
}

// AddMemberRequest is the payload for adding a team member to a company.
type AddMemberRequest struct {
	Email       string `json:"email" validate:"required,email"`
	DisplayName string `json:"displayName" validate:"required,min=1,max=200"`
	Role        string `json:"role" validate:"omitempty,oneof=platform_admin company_owner member"`
}

// UpdateUserRequest is the payload for updating a team member.
type UpdateUserRequest struct {
	DisplayName *string `json:"displayName" validate:"omitempty,min=1,max=200"`
	Role        *string `json:"role" validate:"omitempty,oneof=platform_admin company_owner member"`
	IsActive    *bool   `json:"isActive"`
}

// ListMembers godoc
// @Summary List company team members
// @Tags users
// @Produce json
// @Param id path string true "Company ID"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} handler.Envelope
// @Router /companies/{id}/members [get]
func (h *UserHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", "Invalid company ID")
		return
	}

	page, pageSize := parsePaging(r)
	users, total, err := h.userService.ListByCompany(r.Context(), companyID, page, pageSize)
	if err != nil {
		respondServiceError(w, err, "Failed to list members")
		return
	}

	respondPage(w, http.StatusOK, users, domain.NewPagination(page, pageSize, total))
}

// AddMember godoc
// @Summary Add a team member to a company
// @Tags users
// @Accept json
// @Produce json
// @Param id path string true "Company ID"
// @Param request body handler.AddMemberRequest true "Member data"
// @Success 201 {object} handler.Envelope
// @Failure 403 {object} handler.Envelope "Team member limit reached"
// @Router /companies/{id}/members [post]
func (h *UserHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", "Invalid company ID")
		return
	}

	var req AddMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", "Invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		respondValidationError(w, err)
		return
	}

	user := &domain.User{
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Role:        domain.UserRoleType(req.Role),
		CompanyID:   &companyID,
		IsActive:    true,
	}

	created, err := h.userService.AddMember(r.Context(), user)
	if err != nil {
		respondServiceError(w, err, "Failed to add member")
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/users/%s", created.ID))
	respondData(w, http.StatusCreated, created)
}

// Me godoc
// @Summary Get the authenticated user
// @Tags users
// @Produce json
// @Success 200 {object} handler.Envelope
// @Router /auth/me [get]
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userCtx, ok := auth.FromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, domain.ErrCodeUnauthorized, "Not authenticated")
		return
	}

	// API key callers have no user row; return the synthetic context
	if userCtx.UserID == uuid.Nil {
		respondData(w, http.StatusOK, userCtx)
		return
	}

	user, err := h.userService.GetByID(r.Context(), userCtx.UserID)
	if err != nil {
		respondServiceError(w, err, "Failed to get user")
		return
	}

	respondData(w, http.StatusOK, user)
}

// GetByID godoc
// @Summary Get a user by ID
// @Tags users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} handler.Envelope
// @Router /users/{id} [get]
func (h *UserHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", "Invalid user ID")
		return
	}

	user, err := h.userService.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, err, "Failed to get user")
		return
	}

	respondData(w, http.StatusOK, user)
}

// Update godoc
// @Summary Update a team member
// @Tags users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param request body handler.UpdateUserRequest true "Fields to update"
// @Success 200 {object} handler.Envelope
// @Router /users/{id} [put]
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", "Invalid user ID")
		return
	}

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", "Invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		respondValidationError(w, err)
		return
	}

	user, err := h.userService.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, err, "Failed to get user")
		return
	}

	if req.DisplayName != nil {
		user.DisplayName = *req.DisplayName
	}
	if req.Role != nil {
		user.Role = domain.UserRoleType(*req.Role)
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	updated, err := h.userService.Update(r.Context(), user)
	if err != nil {
		respondServiceError(w, err, "Failed to update user")
		return
	}

	respondData(w, http.StatusOK, updated)
}
