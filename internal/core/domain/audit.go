package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionEscrowCreate     AuditAction = "ESCROW_CREATE"
	AuditActionEscrowFund       AuditAction = "ESCROW_FUND"
	AuditActionEscrowRelease    AuditAction = "ESCROW_RELEASE"
	AuditActionEscrowRefund     AuditAction = "ESCROW_REFUND"
	AuditActionEscrowCancel     AuditAction = "ESCROW_CANCEL"
	AuditActionEscrowExpire     AuditAction = "ESCROW_EXPIRE"
	AuditActionDisputeFile      AuditAction = "DISPUTE_FILE"
	AuditActionDisputeResolve   AuditAction = "DISPUTE_RESOLVE"
	AuditActionMilestoneUpdate  AuditAction = "MILESTONE_UPDATE"
	AuditActionApprovalVote     AuditAction = "APPROVAL_VOTE"
	AuditActionTransferCreate   AuditAction = "TRANSFER_CREATE"
	AuditActionTransferExecute  AuditAction = "TRANSFER_EXECUTE"
	AuditActionTransferCancel   AuditAction = "TRANSFER_CANCEL"
)

// AuditLog records a single audited action. Rejected attempts are logged too,
// with Outcome carrying the error code.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	UserID       *uuid.UUID  `json:"user_id,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Outcome      string      `json:"outcome"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}
