package domain

import (
	"time"

	"github.com/google/uuid"
)

// ApprovalAction tags what a multi-sig vote authorizes.
type ApprovalAction string

const (
	ApprovalActionRelease           ApprovalAction = "release"
	ApprovalActionRefund            ApprovalAction = "refund"
	ApprovalActionDisputeResolution ApprovalAction = "dispute_resolution"
	ApprovalActionTransfer          ApprovalAction = "transfer"
)

// MultiSigApproval is a single authorization vote embedded in an escrow.
type MultiSigApproval struct {
	ID         uuid.UUID      `json:"id"`
	UserID     uuid.UUID      `json:"user_id"`
	Action     ApprovalAction `json:"action"`
	Approved   bool           `json:"approved"`
	Signature  string         `json:"signature,omitempty"`
	ApprovedAt time.Time      `json:"approved_at"`
}

// Vote is the minimal view of an authorization vote that the approval gate
// counts. Both escrow approvals and wallet transaction approvals reduce to it.
type Vote struct {
	Signer   uuid.UUID
	Approved bool
}

// CountApprovals returns the number of distinct signers that voted approved.
// Duplicate votes from one signer count once; rejection votes are recorded but
// do not subtract from or block the count.
func CountApprovals(votes []Vote) int {
	seen := make(map[uuid.UUID]bool, len(votes))
	for _, v := range votes {
		if v.Approved && !seen[v.Signer] {
			seen[v.Signer] = true
		}
	}
	return len(seen)
}

// ThresholdMet reports whether the distinct-approver count has reached required.
func ThresholdMet(votes []Vote, required int) bool {
	return CountApprovals(votes) >= required
}

// HasVoted reports whether signer already cast a vote in votes. A signer votes
// at most once per action; re-voting is rejected upstream.
func HasVoted(votes []Vote, signer uuid.UUID) bool {
	for _, v := range votes {
		if v.Signer == signer {
			return true
		}
	}
	return false
}

// VotesFor projects the escrow's embedded approvals for one action into gate votes.
func (e *Escrow) VotesFor(action ApprovalAction) []Vote {
	var votes []Vote
	for _, a := range e.Approvals {
		if a.Action == action {
			votes = append(votes, Vote{Signer: a.UserID, Approved: a.Approved})
		}
	}
	return votes
}
