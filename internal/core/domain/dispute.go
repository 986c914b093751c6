package domain

import (
	"time"

	"github.com/google/uuid"
)

// DisputeStatus is the lifecycle state of a dispute.
type DisputeStatus string

const (
	DisputeStatusOpen        DisputeStatus = "open"
	DisputeStatusUnderReview DisputeStatus = "under_review"
	DisputeStatusResolved    DisputeStatus = "resolved"
	DisputeStatusClosed      DisputeStatus = "closed"
)

// DisputeResolution is the verdict applied when a dispute is resolved.
type DisputeResolution string

const (
	ResolutionBuyerFavor    DisputeResolution = "buyer_favor"
	ResolutionSellerFavor   DisputeResolution = "seller_favor"
	ResolutionPartialRefund DisputeResolution = "partial_refund"
	ResolutionCustom        DisputeResolution = "custom"
)

// IsValid reports whether r is a known resolution.
func (r DisputeResolution) IsValid() bool {
	switch r {
	case ResolutionBuyerFavor, ResolutionSellerFavor, ResolutionPartialRefund, ResolutionCustom:
		return true
	}
	return false
}

// Dispute is a contested escrow claim filed by one of the parties.
type Dispute struct {
	ID                uuid.UUID         `json:"id"`
	FiledBy           uuid.UUID         `json:"filed_by"`
	Reason            string            `json:"reason"`
	Description       string            `json:"description,omitempty"`
	Evidence          []string          `json:"evidence,omitempty"`
	Status            DisputeStatus     `json:"status"`
	Resolution        DisputeResolution `json:"resolution,omitempty"`
	ResolutionDetails string            `json:"resolution_details,omitempty"`
	ResolvedBy        *uuid.UUID        `json:"resolved_by,omitempty"`
	FiledAt           time.Time         `json:"filed_at"`
	ResolvedAt        *time.Time        `json:"resolved_at,omitempty"`
}

// IsActive reports whether the dispute still blocks the escrow.
func (d *Dispute) IsActive() bool {
	return d.Status == DisputeStatusOpen || d.Status == DisputeStatusUnderReview
}
