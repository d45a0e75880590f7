package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lapublica/platform-api/internal/domain"
	"github.com/lapublica/platform-api/internal/service"
	"go.uber.org/zap"
)

// Uploads are capped per request; the plan storage limit is enforced on top
const maxUploadBytes = 25 << 20

type AttachmentHandler struct {
	attachmentService *service.AttachmentService
	logger            *zap.Logger
}

func NewAttachmentHandler(attachmentService *service.AttachmentService, logger *zap.Logger) *AttachmentHandler {
	return &AttachmentHandler{
		attachmentService: attachmentService,
		logger:            logger,
	}
}

// @Summary Upload attachment
// @Description Upload a file for an offer. The file size counts against the plan's storage limit.
// @Tags Attachments
// @Accept multipart/form-data
// @Produce json
// @Param offerId path string true "Offer ID"
// @Param file formData file true "File to upload"
// @Success 201 {object} Envelope
// @Failure 403 {object} Envelope "Storage limit reached"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /offers/{offerId}/attachments [post]
func (h *AttachmentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	offerID, err := uuid.Parse(chi.URLParam(r, "offerId"))
	if err != nil {
		respondError(w, http.StatusBadRequest, domain.ErrCodeValidation, "Invalid offer ID: must be a valid UUID")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, domain.ErrCodeValidation, "Invalid multipart form or file too large")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, domain.ErrCodeValidation, "A file field is required")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	attachment, err := h.attachmentService.Upload(r.Context(), offerID, header.Filename, contentType, header.Size, file)
	if err != nil {
		h.logger.Error("failed to upload attachment",
			zap.Error(err),
			zap.String("offer_id", offerID.String()),
			zap.String("filename", header.Filename),
		)
		respondServiceError(w, err, "Failed to upload file")
		return
	}
	respondData(w, http.StatusCreated, attachment)
}

// @Summary Download attachment
// @Description Stream an attachment's content
// @Tags Attachments
// @Produce octet-stream
// @Param id path string true "Attachment ID"
// @Success 200 {file} binary
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /attachments/{id} [get]
func (h *AttachmentHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, domain.ErrCodeValidation, "Invalid attachment ID: must be a valid UUID")
		return
	}

	attachment, reader, err := h.attachmentService.Download(r.Context(), id)
	if err != nil {
		respondServiceError(w, err, "Failed to download file")
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", attachment.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+attachment.Filename+`"`)
	w.Header().Set("Content-Length", strconv.FormatInt(attachment.Size, 10))
	if _, err := io.Copy(w, reader); err != nil {
		h.logger.Warn("attachment stream interrupted",
			zap.String("attachment_id", id.String()),
			zap.Error(err),
		)
	}
}

// @Summary Delete attachment
// @Description Delete an attachment and its stored file
// @Tags Attachments
// @Param id path string true "Attachment ID"
// @Success 204 "No Content"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /attachments/{id} [delete]
func (h *AttachmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, domain.ErrCodeValidation, "Invalid attachment ID: must be a valid UUID")
		return
	}

	if err := h.attachmentService.Delete(r.Context(), id); err != nil {
		respondServiceError(w, err, "Failed to delete attachment")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// @Summary List offer attachments
// @Description List an offer's attachments
// @Tags Attachments
// @Produce json
// @Param offerId path string true "Offer ID"
// @Success 200 {object} Envelope
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /offers/{offerId}/attachments [get]
func (h *AttachmentHandler) ListByOffer(w http.ResponseWriter, r *http.Request) {
	offerID, err := uuid.Parse(chi.URLParam(r, "offerId"))
	if err != nil {
		respondError(w, http.StatusBadRequest, domain.ErrCodeValidation, "Invalid offer ID: must be a valid UUID")
		return
	}

	attachments, err := h.attachmentService.ListByOffer(r.Context(), offerID)
	if err != nil {
		respondServiceError(w, err, "Failed to list attachments")
		return
	}
	respondData(w, http.StatusOK, attachments)
}
