package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields. IDs are assigned in BeforeCreate so the same
// models work against postgres in production and sqlite in tests.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`
}

// BeforeCreate assigns a UUID if none is set
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// PipelineStatus is the authoritative status string for leads and companies
// moving through the intake pipeline. Display grouping into columns is a
// separate, purely presentational concern (see PipelineColumns).
type PipelineStatus string

const (
	StageNew          PipelineStatus = "new"
	StageContacted    PipelineStatus = "contacted"
	StageQualified    PipelineStatus = "qualified"
	StageNegotiation  PipelineStatus = "negotiation"
	StageProposalSent PipelineStatus = "proposal_sent"
	StagePendingCRM   PipelineStatus = "pending_crm"
	StageCRMApproved  PipelineStatus = "crm_approved"
	StageCRMRejected  PipelineStatus = "crm_rejected"
	StagePendingAdmin PipelineStatus = "pending_admin"
	StageWon          PipelineStatus = "won"
	StageLost         PipelineStatus = "lost"
)

// AllPipelineStatuses lists every valid stage in pipeline order
var AllPipelineStatuses = []PipelineStatus{
	StageNew, StageContacted, StageQualified, StageNegotiation,
	StageProposalSent, StagePendingCRM, StageCRMApproved, StageCRMRejected,
	StagePendingAdmin, StageWon, StageLost,
}

// IsValid checks if the PipelineStatus is a known enum value
func (s PipelineStatus) IsValid() bool {
	switch s {
	case StageNew, StageContacted, StageQualified, StageNegotiation,
		StageProposalSent, StagePendingCRM, StageCRMApproved, StageCRMRejected,
		StagePendingAdmin, StageWon, StageLost:
		return true
	}
	return false
}

// IsTerminal reports whether the status ends the pipeline
func (s PipelineStatus) IsTerminal() bool {
	return s == StageWon || s == StageLost
}

// PipelineColumn groups statuses into a named column for board views.
// The grouping has no effect on which transitions are applied.
type PipelineColumn struct {
	Name     string           `json:"name"`
	Statuses []PipelineStatus `json:"statuses"`
}

// PipelineColumns is the display layout of the pipeline board
var PipelineColumns = []PipelineColumn{
	{Name: "New", Statuses: []PipelineStatus{StageNew}},
	{Name: "In contact", Statuses: []PipelineStatus{StageContacted, StageQualified}},
	{Name: "In negotiation", Statuses: []PipelineStatus{StageNegotiation, StageProposalSent}},
	{Name: "In review", Statuses: []PipelineStatus{StagePendingCRM, StageCRMApproved, StageCRMRejected, StagePendingAdmin}},
	{Name: "Won/Lost", Statuses: []PipelineStatus{StageWon, StageLost}},
}

// LeadPriority represents the priority of a lead
type LeadPriority string

const (
	PriorityHigh   LeadPriority = "high"
	PriorityMedium LeadPriority = "medium"
	PriorityLow    LeadPriority = "low"
)

// IsValid checks if the LeadPriority is a known enum value
func (p LeadPriority) IsValid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// LeadSource records where a lead came from
type LeadSource string

const (
	LeadSourceManual   LeadSource = "manual"
	LeadSourceRegistry LeadSource = "registry"
)

// Lead represents a prospective customer tracked through the sales pipeline
type Lead struct {
	BaseModel
	CompanyName    string         `gorm:"type:varchar(200);not null;index" json:"companyName"`
	OrgNumber      string         `gorm:"type:varchar(20);index;column:org_number" json:"orgNumber,omitempty"`
	ContactName    string         `gorm:"type:varchar(200);column:contact_name" json:"contactName,omitempty"`
	ContactEmail   string         `gorm:"type:varchar(255);column:contact_email" json:"contactEmail,omitempty"`
	ContactPhone   string         `gorm:"type:varchar(50);column:contact_phone" json:"contactPhone,omitempty"`
	Status         PipelineStatus `gorm:"type:varchar(50);not null;default:'new';index" json:"status"`
	Priority       LeadPriority   `gorm:"type:varchar(20);not null;default:'medium';index" json:"priority"`
	Source         LeadSource     `gorm:"type:varchar(50);not null;default:'manual'" json:"source"`
	EstimatedValue float64        `gorm:"type:decimal(15,2);not null;default:0;column:estimated_value" json:"estimatedValue"`
	Notes          string         `gorm:"type:text" json:"notes,omitempty"`
	OwnerID        *uuid.UUID     `gorm:"type:uuid;index;column:owner_id" json:"ownerId,omitempty"`
	Owner          *User          `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	TenantID       uuid.UUID      `gorm:"type:uuid;not null;index;column:tenant_id" json:"tenantId"`
	EnteredStageAt time.Time      `gorm:"not null;column:entered_stage_at" json:"enteredStageAt"`
}

// TransitionItemType identifies which pipeline entity a transition applies to
type TransitionItemType string

const (
	TransitionItemLead    TransitionItemType = "lead"
	TransitionItemCompany TransitionItemType = "company"
)

// IsValid checks if the TransitionItemType is a known enum value
func (t TransitionItemType) IsValid() bool {
	return t == TransitionItemLead || t == TransitionItemCompany
}

// StageTransition is the append-only audit trail of pipeline moves
type StageTransition struct {
	ID            uuid.UUID          `gorm:"type:uuid;primary_key" json:"id"`
	ItemType      TransitionItemType `gorm:"type:varchar(20);not null;index:idx_stage_transitions_item;column:item_type" json:"itemType"`
	ItemID        uuid.UUID          `gorm:"type:uuid;not null;index:idx_stage_transitions_item;column:item_id" json:"itemId"`
	FromStage     *PipelineStatus    `gorm:"type:varchar(50);column:from_stage" json:"fromStage,omitempty"`
	ToStage       PipelineStatus     `gorm:"type:varchar(50);not null;column:to_stage" json:"toStage"`
	ChangedByID   uuid.UUID          `gorm:"type:uuid;not null;column:changed_by_id" json:"changedById"`
	ChangedByName string             `gorm:"type:varchar(200);column:changed_by_name" json:"changedByName,omitempty"`
	Note          string             `gorm:"type:text" json:"note,omitempty"`
	ChangedAt     time.Time          `gorm:"not null;index;column:changed_at" json:"changedAt"`
}

// BeforeCreate assigns a UUID if none is set
func (t *StageTransition) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// TableName keeps the table name in line with the migration
func (StageTransition) TableName() string {
	return "stage_transitions"
}

// PlanTier names a subscription tier
type PlanTier string

const (
	PlanTierFree       PlanTier = "free"
	PlanTierBasic      PlanTier = "basic"
	PlanTierPro        PlanTier = "pro"
	PlanTierEnterprise PlanTier = "enterprise"
)

// UnlimitedLimit is the sentinel ceiling meaning "no limit"
const UnlimitedLimit int64 = -1

// Plan describes per-tenant quota ceilings. Read-only at request time.
type Plan struct {
	BaseModel
	Tier             PlanTier `gorm:"type:varchar(50);not null;uniqueIndex" json:"tier"`
	Name             string   `gorm:"type:varchar(100);not null" json:"name"`
	MaxActiveOffers  int64    `gorm:"not null;default:-1;column:max_active_offers" json:"maxActiveOffers"`
	MaxTeamMembers   int64    `gorm:"not null;default:-1;column:max_team_members" json:"maxTeamMembers"`
	MaxFeaturedOffers int64   `gorm:"not null;default:-1;column:max_featured_offers" json:"maxFeaturedOffers"`
	MaxStorageBytes  int64    `gorm:"not null;default:-1;column:max_storage_bytes" json:"maxStorageBytes"`
	MonthlyPrice     float64  `gorm:"type:decimal(10,2);not null;default:0;column:monthly_price" json:"monthlyPrice"`
	IsActive         bool     `gorm:"not null;default:true;column:is_active" json:"isActive"`
}

// LimitKind is a closed set of countable resources a plan can cap
type LimitKind string

const (
	LimitActiveOffers   LimitKind = "active_offers"
	LimitTeamMembers    LimitKind = "team_members"
	LimitFeaturedOffers LimitKind = "featured_offers"
	LimitStorageBytes   LimitKind = "storage_bytes"
)

// IsValid checks if the LimitKind is a known enum value
func (k LimitKind) IsValid() bool {
	switch k {
	case LimitActiveOffers, LimitTeamMembers, LimitFeaturedOffers, LimitStorageBytes:
		return true
	}
	return false
}

// Ceiling returns the plan's ceiling for a limit kind
func (p *Plan) Ceiling(kind LimitKind) int64 {
	switch kind {
	case LimitActiveOffers:
		return p.MaxActiveOffers
	case LimitTeamMembers:
		return p.MaxTeamMembers
	case LimitFeaturedOffers:
		return p.MaxFeaturedOffers
	case LimitStorageBytes:
		return p.MaxStorageBytes
	}
	return 0
}

// Company is a tenant: it owns users, leads, offers and coupons.
// Companies themselves are also tracked through the intake pipeline.
type Company struct {
	BaseModel
	Name           string         `gorm:"type:varchar(200);not null;index" json:"name"`
	OrgNumber      string         `gorm:"type:varchar(20);uniqueIndex;column:org_number" json:"orgNumber,omitempty"`
	Email          string         `gorm:"type:varchar(255)" json:"email,omitempty"`
	Phone          string         `gorm:"type:varchar(50)" json:"phone,omitempty"`
	City           string         `gorm:"type:varchar(100)" json:"city,omitempty"`
	PipelineStatus PipelineStatus `gorm:"type:varchar(50);not null;default:'new';index;column:pipeline_status" json:"pipelineStatus"`
	EnteredStageAt time.Time      `gorm:"not null;column:entered_stage_at" json:"enteredStageAt"`
	OwnerID        *uuid.UUID     `gorm:"type:uuid;column:owner_id" json:"ownerId,omitempty"`
	PlanID         *uuid.UUID     `gorm:"type:uuid;column:plan_id" json:"planId,omitempty"`
	Plan           *Plan          `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
	IsActive       bool           `gorm:"not null;default:true;column:is_active" json:"isActive"`
}

// UserRoleType represents a role a user can have
type UserRoleType string

const (
	RolePlatformAdmin UserRoleType = "platform_admin"
	RoleCompanyOwner  UserRoleType = "company_owner"
	RoleMember        UserRoleType = "member"
)

// User represents a person belonging to a tenant
type User struct {
	BaseModel
	Email       string       `gorm:"type:varchar(255);not null;uniqueIndex" json:"email"`
	DisplayName string       `gorm:"type:varchar(200);not null;column:display_name" json:"displayName"`
	Role        UserRoleType `gorm:"type:varchar(50);not null;default:'member'" json:"role"`
	CompanyID   *uuid.UUID   `gorm:"type:uuid;index;column:company_id" json:"companyId,omitempty"`
	Company     *Company     `gorm:"foreignKey:CompanyID" json:"company,omitempty"`
	IsActive    bool         `gorm:"not null;default:true;column:is_active" json:"isActive"`
	LastLoginAt *time.Time   `gorm:"column:last_login_at" json:"lastLoginAt,omitempty"`
}

// OfferStatus represents the lifecycle status of a marketplace offer
type OfferStatus string

const (
	OfferStatusDraft    OfferStatus = "draft"
	OfferStatusActive   OfferStatus = "active"
	OfferStatusPaused   OfferStatus = "paused"
	OfferStatusArchived OfferStatus = "archived"
)

// Offer represents a marketplace offer published by a tenant
type Offer struct {
	BaseModel
	Title         string      `gorm:"type:varchar(200);not null;index" json:"title"`
	Description   string      `gorm:"type:text" json:"description,omitempty"`
	ListedPrice   float64     `gorm:"type:decimal(15,2);not null;default:0;column:listed_price" json:"listedPrice"`
	DiscountPrice *float64    `gorm:"type:decimal(15,2);column:discount_price" json:"discountPrice,omitempty"`
	Status        OfferStatus `gorm:"type:varchar(50);not null;default:'draft';index" json:"status"`
	Featured      bool        `gorm:"not null;default:false;index" json:"featured"`
	ExpiresAt     *time.Time  `gorm:"column:expires_at" json:"expiresAt,omitempty"`
	CompanyID     uuid.UUID   `gorm:"type:uuid;not null;index;column:company_id" json:"companyId"`
	Company       *Company    `gorm:"foreignKey:CompanyID" json:"company,omitempty"`
	CreatedByID   *uuid.UUID  `gorm:"type:uuid;column:created_by_id" json:"createdById,omitempty"`
}

// FinalPrice returns the effective price after discount
func (o *Offer) FinalPrice() float64 {
	if o.DiscountPrice != nil {
		return *o.DiscountPrice
	}
	return o.ListedPrice
}

// CouponStatus represents the status of a coupon
type CouponStatus string

const (
	CouponStatusActive  CouponStatus = "active"
	CouponStatusUsed    CouponStatus = "used"
	CouponStatusExpired CouponStatus = "expired"
)

// Coupon is a single-use redemption code tied to an offer and a user.
// Redemption flips the status to used; it never deletes the row.
type Coupon struct {
	BaseModel
	Code      string       `gorm:"type:varchar(50);not null;uniqueIndex" json:"code"`
	Status    CouponStatus `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	OfferID   uuid.UUID    `gorm:"type:uuid;not null;index;column:offer_id" json:"offerId"`
	Offer     *Offer       `gorm:"foreignKey:OfferID" json:"offer,omitempty"`
	UserID    uuid.UUID    `gorm:"type:uuid;not null;index;column:user_id" json:"userId"`
	CompanyID uuid.UUID    `gorm:"type:uuid;not null;index;column:company_id" json:"companyId"`
	ExpiresAt time.Time    `gorm:"not null;index;column:expires_at" json:"expiresAt"`
	UsedAt    *time.Time   `gorm:"column:used_at" json:"usedAt,omitempty"`
}

// Redemption is the immutable record of a coupon's single successful use.
// The unique index on coupon_id is the second line of defense against a
// double-spend race; the primary guard is the conditional status update.
type Redemption struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	CouponID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex;column:coupon_id" json:"couponId"`
	Coupon         *Coupon   `gorm:"foreignKey:CouponID" json:"coupon,omitempty"`
	OfferID        uuid.UUID `gorm:"type:uuid;not null;index;column:offer_id" json:"offerId"`
	CompanyID      uuid.UUID `gorm:"type:uuid;not null;index;column:company_id" json:"companyId"`
	OriginalPrice  float64   `gorm:"type:decimal(15,2);not null;column:original_price" json:"originalPrice"`
	DiscountAmount float64   `gorm:"type:decimal(15,2);not null;column:discount_amount" json:"discountAmount"`
	FinalPrice     float64   `gorm:"type:decimal(15,2);not null;column:final_price" json:"finalPrice"`
	Location       string    `gorm:"type:varchar(200)" json:"location,omitempty"`
	VerifiedByID   uuid.UUID `gorm:"type:uuid;column:verified_by_id" json:"verifiedById"`
	Notes          string    `gorm:"type:text" json:"notes,omitempty"`
	RedeemedAt     time.Time `gorm:"not null;column:redeemed_at" json:"redeemedAt"`
}

// BeforeCreate assigns a UUID if none is set
func (r *Redemption) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// NotificationType represents the type of notification
type NotificationType string

const (
	NotificationTypeStageChanged   NotificationType = "stage_changed"
	NotificationTypeCouponRedeemed NotificationType = "coupon_redeemed"
	NotificationTypeCouponClaimed  NotificationType = "coupon_claimed"
	NotificationTypeLimitReached   NotificationType = "limit_reached"
	NotificationTypeLeadAssigned   NotificationType = "lead_assigned"
)

// Notification represents a user notification. Metadata carries the typed
// event payload serialized to JSON at the persistence boundary.
type Notification struct {
	BaseModel
	UserID     uuid.UUID  `gorm:"type:uuid;not null;index;column:user_id" json:"userId"`
	Type       string     `gorm:"type:varchar(50);not null" json:"type"`
	Title      string     `gorm:"type:varchar(200);not null" json:"title"`
	Message    string     `gorm:"type:varchar(500);not null" json:"message"`
	Priority   int        `gorm:"not null;default:0" json:"priority"`
	Read       bool       `gorm:"column:read;not null;default:false;index" json:"read"`
	ReadAt     *time.Time `gorm:"column:read_at" json:"readAt,omitempty"`
	EntityType string     `gorm:"type:varchar(50);column:entity_type" json:"entityType,omitempty"`
	EntityID   *uuid.UUID `gorm:"type:uuid;column:entity_id" json:"entityId,omitempty"`
	Metadata   string     `gorm:"type:text" json:"metadata,omitempty"`
}

// AuditAction represents the type of audit action
type AuditAction string

const (
	AuditActionCreate          AuditAction = "create"
	AuditActionUpdate          AuditAction = "update"
	AuditActionDelete          AuditAction = "delete"
	AuditActionStageTransition AuditAction = "stage_transition"
	AuditActionRedeem          AuditAction = "redeem"
	AuditActionClaim           AuditAction = "claim"
	AuditActionFeature         AuditAction = "feature"
	AuditActionUpload          AuditAction = "upload"
)

// AuditLog represents an audit trail entry. Writes are best-effort except for
// redemption events, which are recorded inside the redemption transaction.
type AuditLog struct {
	ID          uuid.UUID   `gorm:"type:uuid;primary_key" json:"id"`
	ActorID     uuid.UUID   `gorm:"type:uuid;column:actor_id" json:"actorId"`
	ActorName   string      `gorm:"type:varchar(200);column:actor_name" json:"actorName,omitempty"`
	Action      AuditAction `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityType  string      `gorm:"type:varchar(50);not null;index;column:entity_type" json:"entityType"`
	EntityID    *uuid.UUID  `gorm:"type:uuid;column:entity_id" json:"entityId,omitempty"`
	EntityName  string      `gorm:"type:varchar(200);column:entity_name" json:"entityName,omitempty"`
	CompanyID   *uuid.UUID  `gorm:"type:uuid;index;column:company_id" json:"companyId,omitempty"`
	Metadata    string      `gorm:"type:text" json:"metadata,omitempty"`
	PerformedAt time.Time   `gorm:"not null;index;column:performed_at" json:"performedAt"`
	CreatedAt   time.Time   `gorm:"not null" json:"createdAt"`
}

// BeforeCreate assigns a UUID if none is set
func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// Attachment represents an uploaded file linked to an offer.
// Summed sizes back the storage_bytes limit kind.
type Attachment struct {
	BaseModel
	Filename    string    `gorm:"type:varchar(255);not null" json:"filename"`
	ContentType string    `gorm:"type:varchar(100);not null;column:content_type" json:"contentType"`
	Size        int64     `gorm:"not null" json:"size"`
	StoragePath string    `gorm:"type:varchar(500);not null;unique;column:storage_path" json:"-"`
	OfferID     uuid.UUID `gorm:"type:uuid;not null;index;column:offer_id" json:"offerId"`
	CompanyID   uuid.UUID `gorm:"type:uuid;not null;index;column:company_id" json:"companyId"`
	UploadedBy  uuid.UUID `gorm:"type:uuid;column:uploaded_by" json:"uploadedBy"`
}
