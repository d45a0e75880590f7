package service

import "errors"

// Sentinel errors returned by services and mapped to HTTP statuses in handlers
var (
	ErrNotFound          = errors.New("resource not found")
	ErrForbidden         = errors.New("forbidden")
	ErrValidation        = errors.New("validation failed")
	ErrConflict          = errors.New("conflict")
	ErrStaleStage        = errors.New("item is no longer in the expected stage")
	ErrInvalidTransition = errors.New("transition not allowed")
	ErrCouponUsed        = errors.New("coupon already used")
	ErrCouponExpired     = errors.New("coupon expired")
	ErrLimitReached      = errors.New("plan limit reached")
)
