package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/lapublica/platform-api/internal/auth"
	"github.com/lapublica/platform-api/internal/domain"
	"github.com/lapublica/platform-api/internal/repository"
	"github.com/lapublica/platform-api/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AttachmentService uploads and serves files linked to offers. Uploads
// count the file size against the tenant's storage limit up front.
type AttachmentService struct {
	attachmentRepo *repository.AttachmentRepository
	offerRepo      *repository.OfferRepository
	limitService   *LimitService
	auditService   *AuditService
	store          storage.Storage
	logger         *zap.Logger
}

func NewAttachmentService(
	attachmentRepo *repository.AttachmentRepository,
	offerRepo *repository.OfferRepository,
	limitService *LimitService,
	auditService *AuditService,
	store storage.Storage,
	logger *zap.Logger,
) *AttachmentService {
	return &AttachmentService{
		attachmentRepo: attachmentRepo,
		offerRepo:      offerRepo,
		limitService:   limitService,
		auditService:   auditService,
		store:          store,
		logger:         logger,
	}
}

// Upload stores a file for an offer. The declared size is checked against
// the storage limit before any bytes are written.
func (s *AttachmentService) Upload(ctx context.Context, offerID uuid.UUID, filename, contentType string, size int64, data io.Reader) (*domain.Attachment, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrForbidden
	}

	offer, err := s.offerRepo.GetByID(ctx, offerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if size <= 0 {
		return nil, fmt.Errorf("%w: file size must be positive", ErrValidation)
	}
	if err := s.limitService.Enforce(ctx, offer.CompanyID, domain.LimitStorageBytes, size); err != nil {
		return nil, err
	}

	path, written, err := s.store.Upload(ctx, offer.CompanyID, filename, contentType, data)
	if err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	attachment := &domain.Attachment{
		Filename:    filename,
		ContentType: contentType,
		Size:        written,
		StoragePath: path,
		OfferID:     offer.ID,
		CompanyID:   offer.CompanyID,
		UploadedBy:  userCtx.UserID,
	}
	if err := s.attachmentRepo.Create(ctx, attachment); err != nil {
		// Keep storage consistent with the database
		if delErr := s.store.Delete(ctx, path); delErr != nil {
			s.logger.Warn("failed to remove orphaned file",
				zap.String("path", path),
				zap.Error(delErr),
			)
		}
		return nil, fmt.Errorf("failed to save attachment: %w", err)
	}

	s.auditService.Record(ctx, &domain.AuditLog{
		Action:     domain.AuditActionUpload,
		EntityType: "attachment",
		EntityID:   &attachment.ID,
		EntityName: filename,
		CompanyID:  &offer.CompanyID,
	})

	return attachment, nil
}

// Download streams an attachment's content
func (s *AttachmentService) Download(ctx context.Context, id uuid.UUID) (*domain.Attachment, io.ReadCloser, error) {
	attachment, err := s.attachmentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}

	reader, err := s.store.Download(ctx, attachment.StoragePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read file: %w", err)
	}
	return attachment, reader, nil
}

// Delete removes an attachment and its stored file
func (s *AttachmentService) Delete(ctx context.Context, id uuid.UUID) error {
	attachment, err := s.attachmentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	userCtx, ok := auth.FromContext(ctx)
	if !ok || !userCtx.CanAccessCompany(attachment.CompanyID) {
		return ErrForbidden
	}

	if err := s.attachmentRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete attachment: %w", err)
	}
	if err := s.store.Delete(ctx, attachment.StoragePath); err != nil {
		s.logger.Warn("failed to remove stored file",
			zap.String("path", attachment.StoragePath),
			zap.Error(err),
		)
	}

	s.auditService.Record(ctx, &domain.AuditLog{
		Action:     domain.AuditActionDelete,
		EntityType: "attachment",
		EntityID:   &attachment.ID,
		EntityName: attachment.Filename,
		CompanyID:  &attachment.CompanyID,
	})
	return nil
}

// ListByOffer returns an offer's attachments
func (s *AttachmentService) ListByOffer(ctx context.Context, offerID uuid.UUID) ([]domain.Attachment, error) {
	if _, err := s.offerRepo.GetByID(ctx, offerID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s.attachmentRepo.ListByOffer(ctx, offerID)
}
