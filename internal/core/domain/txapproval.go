package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionApprovalStatus is the lifecycle state of a wallet transfer approval.
type TransactionApprovalStatus string

const (
	TransactionApprovalPending  TransactionApprovalStatus = "pending"
	TransactionApprovalApproved TransactionApprovalStatus = "approved"
	TransactionApprovalExecuted TransactionApprovalStatus = "executed"
	TransactionApprovalRejected TransactionApprovalStatus = "rejected"
	TransactionApprovalExpired  TransactionApprovalStatus = "expired"
)

// IsTerminal reports whether s is a final state.
func (s TransactionApprovalStatus) IsTerminal() bool {
	switch s {
	case TransactionApprovalExecuted, TransactionApprovalRejected, TransactionApprovalExpired:
		return true
	}
	return false
}

// SignerApproval is one signer's vote on a wallet transfer.
type SignerApproval struct {
	ID        uuid.UUID `json:"id"`
	SignerID  uuid.UUID `json:"signer_id"`
	Approved  bool      `json:"approved"`
	Signature string    `json:"signature,omitempty"`
	Comment   string    `json:"comment,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// DefaultApprovalTTL is how long a transfer waits for signatures before expiring.
const DefaultApprovalTTL = 7 * 24 * time.Hour

// TransactionApproval models M-of-N authorization for a direct wallet transfer
// not tied to an escrow. TransactionHash is set only on execution and is
// globally unique, which enforces exactly-once execution.
type TransactionApproval struct {
	ID       uuid.UUID  `json:"id"`
	WalletID uuid.UUID  `json:"wallet_id"`
	OrderID  *uuid.UUID `json:"order_id,omitempty"`

	Currency    Cryptocurrency `json:"cryptocurrency"`
	Amount      float64        `json:"amount"`
	ToAddress   string         `json:"to_address"`
	FromAddress string         `json:"from_address"`

	RequiredApprovals int                       `json:"required_approvals"`
	Approvals         []SignerApproval          `json:"approvals"`
	Status            TransactionApprovalStatus `json:"status"`
	TransactionHash   *string                   `json:"transaction_hash,omitempty"`

	InitiatedBy     uuid.UUID  `json:"initiated_by"`
	ExpiresAt       time.Time  `json:"expires_at"`
	ExecutedAt      *time.Time `json:"executed_at,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Version guards read-modify-write cycles (optimistic concurrency).
	Version int64 `json:"-"`
}

// Votes projects the signer approvals into gate votes.
func (t *TransactionApproval) Votes() []Vote {
	votes := make([]Vote, 0, len(t.Approvals))
	for _, a := range t.Approvals {
		votes = append(votes, Vote{Signer: a.SignerID, Approved: a.Approved})
	}
	return votes
}

// IsExpired reports whether the approval window has passed.
func (t *TransactionApproval) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
