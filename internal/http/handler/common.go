package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/lapublica/platform-api/internal/domain"
	"github.com/lapublica/platform-api/internal/service"
)

var validate = validator.New()

// Envelope is the uniform response body. Success responses carry data,
// error responses carry error, never both.
type Envelope struct {
	Success    bool               `json:"success"`
	Data       interface{}        `json:"data,omitempty"`
	Error      *domain.APIError   `json:"error,omitempty"`
	Pagination *domain.Pagination `json:"pagination,omitempty"`
}

func respondData(w http.ResponseWriter, status int, data interface{}) {
	respondEnvelope(w, status, &Envelope{Success: true, Data: data})
}

func respondPage(w http.ResponseWriter, status int, data interface{}, pagination domain.Pagination) {
	respondEnvelope(w, status, &Envelope{Success: true, Data: data, Pagination: &pagination})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondEnvelope(w, status, &Envelope{
		Success: false,
		Error:   &domain.APIError{Code: code, Message: message},
	})
}

func respondEnvelope(w http.ResponseWriter, status int, envelope *Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope)
}

// respondValidationError sends a validation error with per-field messages
func respondValidationError(w http.ResponseWriter, err error) {
	fields := make(map[string]string)
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			fields[toJSONFieldName(fe.Field())] = formatValidationError(fe)
		}
	}
	respondEnvelope(w, http.StatusBadRequest, &Envelope{
		Success: false,
		Error: &domain.APIError{
			Code:    domain.ErrCodeValidation,
			Message: "One or more fields failed validation",
			Fields:  fields,
		},
	})
}

// respondServiceError maps the service error taxonomy to HTTP statuses.
// Unknown errors become a generic 500 so internals never leak.
func respondServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		respondError(w, http.StatusNotFound, domain.ErrCodeNotFound, "Resource not found")
	case errors.Is(err, service.ErrForbidden):
		respondError(w, http.StatusForbidden, domain.ErrCodeForbidden, "Insufficient permissions")
	case errors.Is(err, service.ErrValidation):
		respondError(w, http.StatusBadRequest, domain.ErrCodeValidation, err.Error())
	case errors.Is(err, service.ErrStaleStage):
		respondError(w, http.StatusConflict, domain.ErrCodeConflict, err.Error())
	case errors.Is(err, service.ErrInvalidTransition):
		respondError(w, http.StatusBadRequest, domain.ErrCodeValidation, err.Error())
	case errors.Is(err, service.ErrCouponUsed):
		// A consumed coupon is gone for good, not merely in conflict
		respondError(w, http.StatusGone, domain.ErrCodeConflict, "Coupon has already been used")
	case errors.Is(err, service.ErrCouponExpired):
		respondError(w, http.StatusGone, domain.ErrCodeGone, "Coupon has expired")
	case errors.Is(err, service.ErrLimitReached):
		respondError(w, http.StatusForbidden, domain.ErrCodeLimitReached, err.Error())
	case errors.Is(err, service.ErrConflict):
		respondError(w, http.StatusConflict, domain.ErrCodeConflict, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, domain.ErrCodeInternal, fallback)
	}
}

// formatValidationError creates a human-readable validation message
func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", toJSONFieldName(fe.Field()))
	case "email":
		return "Must be a valid email address"
	case "max":
		return fmt.Sprintf("Must be at most %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("Must be at least %s characters", fe.Param())
	case "gte":
		return fmt.Sprintf("Must be greater than or equal to %s", fe.Param())
	case "gt":
		return fmt.Sprintf("Must be greater than %s", fe.Param())
	case "lte":
		return fmt.Sprintf("Must be less than or equal to %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("Must be one of: %s", fe.Param())
	case "uuid":
		return "Must be a valid UUID"
	default:
		return "Invalid value"
	}
}

// toJSONFieldName converts a Go struct field name to its camelCase JSON name
func toJSONFieldName(field string) string {
	if len(field) == 0 {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}

// parsePaging reads page/pageSize query parameters with defaults
func parsePaging(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 200 {
		pageSize = 200
	}
	return page, pageSize
}

func parseInt64(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

// MethodNotAllowed keeps 405 responses in the JSON envelope
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusMethodNotAllowed, domain.ErrCodeValidation, "Method not allowed")
}

// NotFound keeps unmatched-route 404s in the JSON envelope
func NotFound(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusNotFound, domain.ErrCodeNotFound, "Route not found")
}
