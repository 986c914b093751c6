// Package dto defines the request/response shapes of the REST surface.
package dto

import "time"

// --- Escrow requests ---

// CreateEscrowRequest is the body of POST /escrow.
type CreateEscrowRequest struct {
	BuyerID           string             `json:"buyer_id" binding:"required,uuid"`
	SellerID          string             `json:"seller_id" binding:"required,uuid"`
	Amount            float64            `json:"amount" binding:"required,gt=0"`
	Cryptocurrency    string             `json:"cryptocurrency" binding:"required"`
	AmountUSD         float64            `json:"amount_usd" binding:"gte=0"`
	DepositAddress    string             `json:"deposit_address" binding:"required"`
	ReleaseAddress    string             `json:"release_address" binding:"required"`
	RefundAddress     string             `json:"refund_address"`
	ReleaseType       string             `json:"release_type"`
	Milestones        []MilestoneRequest `json:"milestones"`
	Conditions        []ConditionRequest `json:"conditions"`
	RequiresMultiSig  bool               `json:"requires_multi_sig"`
	RequiredApprovals int                `json:"required_approvals" binding:"gte=0"`
}

// MilestoneRequest describes one milestone at creation time.
type MilestoneRequest struct {
	Title  string  `json:"title" binding:"required"`
	Amount float64 `json:"amount" binding:"required,gt=0"`
}

// ConditionRequest describes one release condition at creation time.
type ConditionRequest struct {
	Type string     `json:"type" binding:"required"`
	At   *time.Time `json:"at"`
	Days int        `json:"days" binding:"gte=0"`
}

// FundEscrowRequest is the body of POST /escrow/:id/fund.
type FundEscrowRequest struct {
	TransactionHash string `json:"transaction_hash" binding:"required"`
}

// ReleaseEscrowRequest is the body of POST /escrow/:id/release.
type ReleaseEscrowRequest struct {
	Signature string `json:"signature"`
}

// RefundEscrowRequest is the body of POST /escrow/:id/refund.
type RefundEscrowRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// CancelEscrowRequest is the body of POST /escrow/:id/cancel.
type CancelEscrowRequest struct {
	Reason string `json:"reason"`
}

// FileDisputeRequest is the body of POST /escrow/:id/dispute.
type FileDisputeRequest struct {
	Reason      string   `json:"reason" binding:"required"`
	Description string   `json:"description"`
	Evidence    []string `json:"evidence"`
}

// ResolveDisputeRequest is the body of POST /escrow/:id/dispute/:disputeId/resolve.
type ResolveDisputeRequest struct {
	Resolution string `json:"resolution" binding:"required"`
	Details    string `json:"details"`
}

// --- Transfer requests ---

// CreateTransferRequest is the body of POST /wallets/multi-sig/transactions.
type CreateTransferRequest struct {
	WalletID       string  `json:"wallet_id" binding:"required,uuid"`
	OrderID        *string `json:"order_id" binding:"omitempty,uuid"`
	Cryptocurrency string  `json:"cryptocurrency" binding:"required"`
	Amount         float64 `json:"amount" binding:"required,gt=0"`
	ToAddress      string  `json:"to_address" binding:"required"`
	FromAddress    string  `json:"from_address"`
}

// ApproveTransferRequest is the body of POST .../transactions/:id/approve.
type ApproveTransferRequest struct {
	Approved  *bool  `json:"approved" binding:"required"`
	Signature string `json:"signature"`
	Comment   string `json:"comment"`
}

// ExecuteTransferRequest is the body of POST .../transactions/:id/execute.
type ExecuteTransferRequest struct {
	TransactionHash string `json:"transaction_hash" binding:"required"`
}

// CancelTransferRequest is the body of DELETE .../transactions/:id.
type CancelTransferRequest struct {
	Reason string `json:"reason"`
}
