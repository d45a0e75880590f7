package domain

// APIError is the error payload of the response envelope
type APIError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Error codes carried in the response envelope
const (
	ErrCodeValidation   = "validation_error"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeGone         = "gone"
	ErrCodeLimitReached = "limit_reached"
	ErrCodeInternal     = "internal_error"
)
