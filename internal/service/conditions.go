package service

import (
	"time"

	"cstore/internal/core/domain"
)

// EvaluateConditions runs one evaluation pass over the escrow's unmet release
// conditions and returns whether anything changed. Only funded/active escrows
// are evaluated.
//
// delivery_confirmation and mutual_agreement are never satisfied here: they
// require an explicit external signal.
func EvaluateConditions(e *domain.Escrow, now time.Time) bool {
	if e.Status != domain.EscrowStatusFunded && e.Status != domain.EscrowStatusActive {
		return false
	}

	changed := false
	for i := range e.Conditions {
		c := &e.Conditions[i]
		if c.Met {
			continue
		}

		switch c.Type {
		case domain.ConditionTimeBased:
			if c.At != nil && !now.Before(*c.At) {
				c.MarkMet(now)
				changed = true
			}
		case domain.ConditionInspectionPeriod:
			if e.FundedAt != nil && c.Days > 0 {
				deadline := e.FundedAt.Add(time.Duration(c.Days) * 24 * time.Hour)
				if !now.Before(deadline) {
					c.MarkMet(now)
					changed = true
				}
			}
		case domain.ConditionMilestoneBased:
			if e.AllMilestonesDone() {
				c.MarkMet(now)
				changed = true
			}
		case domain.ConditionDeliveryConfirmation, domain.ConditionMutualAgreement:
			// External signal only.
		}
	}
	return changed
}
