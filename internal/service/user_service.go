package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lapublica/platform-api/internal/auth"
	"github.com/lapublica/platform-api/internal/domain"
	"github.com/lapublica/platform-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// UserService manages team members. Adding an active member counts against
// the tenant's team member limit.
type UserService struct {
	userRepo     *repository.UserRepository
	limitService *LimitService
	auditService *AuditService
	logger       *zap.Logger
}

func NewUserService(
	userRepo *repository.UserRepository,
	limitService *LimitService,
	auditService *AuditService,
	logger *zap.Logger,
) *UserService {
	return &UserService{
		userRepo:     userRepo,
		limitService: limitService,
		auditService: auditService,
		logger:       logger,
	}
}

// AddMember creates a user in a company, subject to the team member limit
func (s *UserService) AddMember(ctx context.Context, user *domain.User) (*domain.User, error) {
	if user.Email == "" || user.DisplayName == "" {
		return nil, fmt.Errorf("%w: email and display name are required", ErrValidation)
	}
	if user.CompanyID == nil {
		return nil, fmt.Errorf("%w: a company is required for members", ErrValidation)
	}

	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrForbidden
	}
	if !userCtx.CanAccessCompany(*user.CompanyID) {
		return nil, ErrForbidden
	}
	if user.Role == "" {
		user.Role = domain.RoleMember
	}
	if user.Role == domain.RolePlatformAdmin && !userCtx.IsPlatformAdmin() {
		return nil, ErrForbidden
	}

	existing, err := s.userRepo.GetByEmail(ctx, user.Email)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: a user with this email already exists", ErrConflict)
	}

	if err := s.limitService.Enforce(ctx, *user.CompanyID, domain.LimitTeamMembers, 1); err != nil {
		return nil, err
	}

	user.IsActive = true
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.auditService.Record(ctx, &domain.AuditLog{
		Action:     domain.AuditActionCreate,
		EntityType: "user",
		EntityID:   &user.ID,
		EntityName: user.DisplayName,
		CompanyID:  user.CompanyID,
	})

	return user, nil
}

// GetByID returns a user visible to the caller
func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrForbidden
	}
	if user.ID != userCtx.UserID {
		if user.CompanyID == nil || !userCtx.CanAccessCompany(*user.CompanyID) {
			return nil, ErrForbidden
		}
	}
	return user, nil
}

// Update applies profile changes to a user
func (s *UserService) Update(ctx context.Context, user *domain.User) (*domain.User, error) {
	current, err := s.userRepo.GetByID(ctx, user.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrForbidden
	}
	if current.CompanyID == nil || !userCtx.CanAccessCompany(*current.CompanyID) {
		return nil, ErrForbidden
	}
	if user.Role != current.Role && !userCtx.IsPlatformAdmin() && !userCtx.IsCompanyOwner() {
		return nil, ErrForbidden
	}

	// Reactivating a deactivated member re-enters the team member count
	if !current.IsActive && user.IsActive {
		if err := s.limitService.Enforce(ctx, *current.CompanyID, domain.LimitTeamMembers, 1); err != nil {
			return nil, err
		}
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	s.auditService.Record(ctx, &domain.AuditLog{
		Action:     domain.AuditActionUpdate,
		EntityType: "user",
		EntityID:   &user.ID,
		EntityName: user.DisplayName,
		CompanyID:  current.CompanyID,
	})
	return user, nil
}

// ListByCompany returns a page of a company's members
func (s *UserService) ListByCompany(ctx context.Context, companyID uuid.UUID, page, pageSize int) ([]domain.User, int64, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok || !userCtx.CanAccessCompany(companyID) {
		return nil, 0, ErrForbidden
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > repository.MaxPageSize {
		pageSize = 20
	}
	return s.userRepo.ListByCompany(ctx, companyID, page, pageSize)
}

// TouchLastLogin records a successful login. Errors are logged only.
func (s *UserService) TouchLastLogin(ctx context.Context, id uuid.UUID) {
	if err := s.userRepo.TouchLastLogin(ctx, id); err != nil {
		s.logger.Warn("failed to update last login", zap.Error(err))
	}
}
