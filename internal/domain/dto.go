package domain

import (
	"time"

	"github.com/google/uuid"
)

// Pagination describes the page window of a list response
type Pagination struct {
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	Total       int64 `json:"total"`
	TotalPages  int   `json:"totalPages"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
}

// NewPagination computes derived paging fields from a total row count
func NewPagination(page, limit int, total int64) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Pagination{
		Page:        page,
		Limit:       limit,
		Total:       total,
		TotalPages:  totalPages,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1 && total > 0,
	}
}

// CreateLeadRequest is the payload for creating a lead
type CreateLeadRequest struct {
	CompanyName    string     `json:"companyName" validate:"required,max=200"`
	OrgNumber      string     `json:"orgNumber" validate:"omitempty,max=20"`
	ContactName    string     `json:"contactName" validate:"omitempty,max=200"`
	ContactEmail   string     `json:"contactEmail" validate:"omitempty,email"`
	ContactPhone   string     `json:"contactPhone" validate:"omitempty,max=50"`
	Priority       string     `json:"priority" validate:"omitempty,oneof=high medium low"`
	EstimatedValue float64    `json:"estimatedValue" validate:"omitempty,gte=0"`
	Notes          string     `json:"notes"`
	OwnerID        *uuid.UUID `json:"ownerId"`
}

// UpdateLeadRequest is the payload for updating a lead. Status is deliberately
// absent: stage moves go through the transition endpoint so history is kept.
type UpdateLeadRequest struct {
	CompanyName    *string    `json:"companyName" validate:"omitempty,max=200"`
	ContactName    *string    `json:"contactName" validate:"omitempty,max=200"`
	ContactEmail   *string    `json:"contactEmail" validate:"omitempty,email"`
	ContactPhone   *string    `json:"contactPhone" validate:"omitempty,max=50"`
	Priority       *string    `json:"priority" validate:"omitempty,oneof=high medium low"`
	EstimatedValue *float64   `json:"estimatedValue" validate:"omitempty,gte=0"`
	Notes          *string    `json:"notes"`
	OwnerID        *uuid.UUID `json:"ownerId"`
}

// TransitionRequest is the payload for moving an item to a new stage
type TransitionRequest struct {
	ToStage       string  `json:"toStage" validate:"required"`
	Note          string  `json:"note" validate:"omitempty,max=2000"`
	ExpectedStage *string `json:"expectedStage"`
}

// CreateOfferRequest is the payload for creating an offer
type CreateOfferRequest struct {
	Title         string     `json:"title" validate:"required,max=200"`
	Description   string     `json:"description"`
	ListedPrice   float64    `json:"listedPrice" validate:"required,gt=0"`
	DiscountPrice *float64   `json:"discountPrice" validate:"omitempty,gt=0"`
	ExpiresAt     *time.Time `json:"expiresAt"`
}

// UpdateOfferRequest is the payload for updating an offer
type UpdateOfferRequest struct {
	Title         *string    `json:"title" validate:"omitempty,max=200"`
	Description   *string    `json:"description"`
	ListedPrice   *float64   `json:"listedPrice" validate:"omitempty,gt=0"`
	DiscountPrice *float64   `json:"discountPrice" validate:"omitempty,gt=0"`
	Status        *string    `json:"status" validate:"omitempty,oneof=draft active paused archived"`
	ExpiresAt     *time.Time `json:"expiresAt"`
}

// ClaimCouponRequest is the payload for claiming a coupon on an offer
type ClaimCouponRequest struct {
	ValidDays int `json:"validDays" validate:"omitempty,gte=1,lte=365"`
}

// RedemptionPricing carries caller-supplied prices for a redemption. Any
// field left nil falls back to the value derived from the offer's listed
// price, so staff can record a till-negotiated deal without restating the
// parts that did not change.
type RedemptionPricing struct {
	OriginalPrice  *float64 `json:"originalPrice" validate:"omitempty,gte=0"`
	DiscountAmount *float64 `json:"discountAmount" validate:"omitempty,gte=0"`
	FinalPrice     *float64 `json:"finalPrice" validate:"omitempty,gte=0"`
}

// RedeemCouponRequest is the payload for redeeming a coupon by code
type RedeemCouponRequest struct {
	Code     string             `json:"code" validate:"required,max=50"`
	Location string             `json:"location" validate:"omitempty,max=200"`
	Notes    string             `json:"notes" validate:"omitempty,max=2000"`
	Pricing  *RedemptionPricing `json:"pricing"`
}

// LimitStatus reports usage against a single plan ceiling.
// Remaining is nil when the ceiling is unlimited.
type LimitStatus struct {
	Kind      LimitKind `json:"kind"`
	Limit     int64     `json:"limit"`
	Current   int64     `json:"current"`
	Unlimited bool      `json:"unlimited"`
	Remaining *int64    `json:"remaining"`
	Allowed   bool      `json:"allowed"`
}

// TransitionResult is returned after a successful stage move
type TransitionResult struct {
	ItemType   TransitionItemType `json:"itemType"`
	ItemID     uuid.UUID          `json:"itemId"`
	FromStage  *PipelineStatus    `json:"fromStage,omitempty"`
	ToStage    PipelineStatus     `json:"toStage"`
	Transition *StageTransition   `json:"transition"`
}

// PipelineBoard groups a tenant's leads into display columns
type PipelineBoard struct {
	Columns []PipelineBoardColumn `json:"columns"`
}

// PipelineBoardColumn is one column of the board with its leads
type PipelineBoardColumn struct {
	Name     string           `json:"name"`
	Statuses []PipelineStatus `json:"statuses"`
	Leads    []Lead           `json:"leads"`
	Count    int              `json:"count"`
}

// DashboardSummary is the aggregate view for the admin dashboard
type DashboardSummary struct {
	TotalLeads       int64                    `json:"totalLeads"`
	LeadsByStage     map[PipelineStatus]int64 `json:"leadsByStage"`
	TotalOffers      int64                    `json:"totalOffers"`
	ActiveOffers     int64                    `json:"activeOffers"`
	TotalRedemptions int64                    `json:"totalRedemptions"`
	RedeemedValue    float64                  `json:"redeemedValue"`
	ActiveCoupons    int64                    `json:"activeCoupons"`
}
