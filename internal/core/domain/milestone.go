package domain

import (
	"time"

	"github.com/google/uuid"
)

// MilestoneStatus is the lifecycle state of a milestone.
type MilestoneStatus string

const (
	MilestoneStatusPending   MilestoneStatus = "pending"
	MilestoneStatusCompleted MilestoneStatus = "completed"
	MilestoneStatusReleased  MilestoneStatus = "released"
	MilestoneStatusDisputed  MilestoneStatus = "disputed"
)

// Milestone is a partial, independently releasable portion of an escrow.
// The seller moves it pending -> completed; the buyer completed -> released.
type Milestone struct {
	ID          uuid.UUID       `json:"id"`
	Title       string          `json:"title"`
	Amount      float64         `json:"amount"`
	Status      MilestoneStatus `json:"status"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	ReleasedAt  *time.Time      `json:"released_at,omitempty"`
	ApprovedBy  *uuid.UUID      `json:"approved_by,omitempty"`
}
