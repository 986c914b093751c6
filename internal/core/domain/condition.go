package domain

import (
	"time"

	"github.com/google/uuid"
)

// ConditionType classifies a release condition predicate.
type ConditionType string

const (
	ConditionTimeBased            ConditionType = "time_based"
	ConditionMilestoneBased       ConditionType = "milestone_based"
	ConditionMutualAgreement      ConditionType = "mutual_agreement"
	ConditionDeliveryConfirmation ConditionType = "delivery_confirmation"
	ConditionInspectionPeriod     ConditionType = "inspection_period"
)

// ReleaseCondition gates the release of escrowed funds. The transition is
// one-way: unmet -> met, never back.
//
// The payload is typed per condition: At for time_based, Days for
// inspection_period. The other types carry no payload and are satisfied by
// milestone completion or an explicit external signal.
type ReleaseCondition struct {
	ID    uuid.UUID     `json:"id"`
	Type  ConditionType `json:"type"`
	At    *time.Time    `json:"at,omitempty"`
	Days  int           `json:"days,omitempty"`
	Met   bool          `json:"met"`
	MetAt *time.Time    `json:"met_at,omitempty"`
}

// MarkMet satisfies the condition. Calling it on a met condition is a no-op so
// the unmet -> met transition never reverts.
func (c *ReleaseCondition) MarkMet(at time.Time) {
	if c.Met {
		return
	}
	c.Met = true
	t := at
	c.MetAt = &t
}
