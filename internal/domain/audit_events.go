package domain

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Audit event payloads. One struct per event kind; each is serialized to
// the metadata column at the persistence boundary and nowhere else.

// RedemptionEvent is attached to redeem audit entries
type RedemptionEvent struct {
	RedemptionID uuid.UUID `json:"redemptionId"`
	FinalPrice   float64   `json:"finalPrice"`
}

// StageTransitionEvent is attached to stage_transition audit entries
type StageTransitionEvent struct {
	From *PipelineStatus `json:"from,omitempty"`
	To   PipelineStatus  `json:"to"`
}

// PlanChangeEvent is attached to plan assignment audit entries
type PlanChangeEvent struct {
	PlanID   uuid.UUID `json:"planId"`
	PlanTier PlanTier  `json:"planTier"`
}

// MarshalEvent serializes an event payload for the metadata column.
// Marshal failure yields an empty metadata field rather than an error;
// audit payloads never block the operation they describe.
func MarshalEvent(event interface{}) string {
	b, err := json.Marshal(event)
	if err != nil {
		return ""
	}
	return string(b)
}
