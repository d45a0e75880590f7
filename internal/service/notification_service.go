package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lapublica/platform-api/internal/domain"
	"github.com/lapublica/platform-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// NotificationService reads and manages a user's notifications. Creation
// happens inside the services that own the triggering events.
type NotificationService struct {
	notificationRepo *repository.NotificationRepository
	logger           *zap.Logger
}

func NewNotificationService(notificationRepo *repository.NotificationRepository, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		notificationRepo: notificationRepo,
		logger:           logger,
	}
}

// List returns a page of the user's notifications
func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, unreadOnly bool, page, pageSize int) ([]domain.Notification, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > repository.MaxPageSize {
		pageSize = 20
	}
	return s.notificationRepo.GetByUserID(ctx, userID, unreadOnly, page, pageSize)
}

// CountUnread returns the user's unread notification count
func (s *NotificationService) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.notificationRepo.CountUnread(ctx, userID)
}

// MarkAsRead marks one notification read. The lookup is scoped to the
// owner, so a user cannot touch another user's notifications.
func (s *NotificationService) MarkAsRead(ctx context.Context, id, userID uuid.UUID) error {
	if err := s.notificationRepo.MarkAsRead(ctx, id, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// MarkAllAsRead marks every unread notification of the user read
func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.notificationRepo.MarkAllAsRead(ctx, userID)
}

// Cleanup deletes notifications older than the retention window.
// Run by the cron job.
func (s *NotificationService) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)
	deleted, err := s.notificationRepo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.logger.Info("old notifications removed", zap.Int64("deleted", deleted))
	}
	return deleted, nil
}
