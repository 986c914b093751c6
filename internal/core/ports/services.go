package ports

import (
	"context"
	"time"

	"cstore/internal/core/domain"

	"github.com/google/uuid"
)

// VerificationResult is what the blockchain collaborator reports for a
// transaction hash.
type VerificationResult struct {
	Verified      bool    `json:"verified"`
	Confirmations int64   `json:"confirmations"`
	Amount        float64 `json:"amount"`
	BlockHash     string  `json:"block_hash,omitempty"`
	Error         string  `json:"error,omitempty"`
}

// ChainVerifier confirms that txHash pays the given address the given amount.
// Implementations talk to chain nodes or explorers; the engine never parses
// chains itself. Calls can be slow — callers bound them with the context.
type ChainVerifier interface {
	Verify(ctx context.Context, currency domain.Cryptocurrency, txHash, address string, amount float64) (*VerificationResult, error)
}

// --- Lifecycle engine ---

// CreateEscrowInput is the validated input for escrow creation.
type CreateEscrowInput struct {
	BuyerID        uuid.UUID
	SellerID       uuid.UUID
	Amount         float64
	Currency       domain.Cryptocurrency
	AmountUSD      float64
	DepositAddress string
	ReleaseAddress string
	RefundAddress  string
	ReleaseType    domain.ReleaseType
	Milestones     []MilestoneInput
	Conditions     []ConditionInput

	// Caller-set multi-sig controls; the engine tightens them for high-value
	// escrows but never loosens.
	RequiresMultiSig  bool
	RequiredApprovals int
}

// MilestoneInput describes one milestone at creation time.
type MilestoneInput struct {
	Title  string
	Amount float64
}

// ConditionInput describes one release condition at creation time.
type ConditionInput struct {
	Type domain.ConditionType
	At   *time.Time
	Days int
}

// DisputeInput is the body of a dispute filing.
type DisputeInput struct {
	Reason      string
	Description string
	Evidence    []string
}

// ReleaseOutcome reports what a release/refund attempt did: either the
// terminal transition happened, or the vote was recorded and more approvals
// are needed.
type ReleaseOutcome struct {
	Escrow          *domain.Escrow `json:"escrow"`
	PendingApproval bool           `json:"pending_approval"`
	Approvals       int            `json:"approvals"`
	Required        int            `json:"required"`
}

// EscrowService is the escrow lifecycle engine. All mutations of an escrow
// record go through it.
type EscrowService interface {
	Create(ctx context.Context, in CreateEscrowInput, initiator uuid.UUID) (*domain.Escrow, error)
	Get(ctx context.Context, id uuid.UUID, requester uuid.UUID) (*domain.Escrow, error)
	List(ctx context.Context, params EscrowListParams) ([]domain.Escrow, error)
	Fund(ctx context.Context, id uuid.UUID, txHash string, actor uuid.UUID) (*domain.Escrow, error)
	Release(ctx context.Context, id uuid.UUID, actor uuid.UUID, signature string) (*ReleaseOutcome, error)
	Refund(ctx context.Context, id uuid.UUID, actor uuid.UUID, reason string) (*ReleaseOutcome, error)
	Cancel(ctx context.Context, id uuid.UUID, actor uuid.UUID, reason string) (*domain.Escrow, error)
	FileDispute(ctx context.Context, id uuid.UUID, filedBy uuid.UUID, in DisputeInput) (*domain.Escrow, error)
	ResolveDispute(ctx context.Context, id, disputeID uuid.UUID, resolution domain.DisputeResolution, details string, resolvedBy uuid.UUID) (*domain.Escrow, error)
	CompleteMilestone(ctx context.Context, id, milestoneID uuid.UUID, actor uuid.UUID) (*domain.Escrow, error)
	ReleaseMilestone(ctx context.Context, id, milestoneID uuid.UUID, actor uuid.UUID) (*domain.Escrow, error)
	ConfirmDelivery(ctx context.Context, id, conditionID uuid.UUID, actor uuid.UUID) (*domain.Escrow, error)
	Sweep(ctx context.Context, now time.Time) (released, expired int, err error)
	Stats(ctx context.Context) (*EscrowStats, error)
}

// --- Transaction approval workflow ---

// CreateTransferInput is the validated input for a wallet transfer approval.
type CreateTransferInput struct {
	WalletID    uuid.UUID
	OrderID     *uuid.UUID
	Currency    domain.Cryptocurrency
	Amount      float64
	ToAddress   string
	FromAddress string
}

// ApprovalService is the M-of-N workflow for direct wallet transfers.
type ApprovalService interface {
	Create(ctx context.Context, in CreateTransferInput, initiator uuid.UUID) (*domain.TransactionApproval, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.TransactionApproval, error)
	List(ctx context.Context, walletID *uuid.UUID) ([]domain.TransactionApproval, error)
	Approve(ctx context.Context, id uuid.UUID, signer uuid.UUID, approved bool, signature, comment string) (*domain.TransactionApproval, error)
	Execute(ctx context.Context, id uuid.UUID, txHash string, actor uuid.UUID) (*domain.TransactionApproval, error)
	Cancel(ctx context.Context, id uuid.UUID, actor uuid.UUID, reason string) (*domain.TransactionApproval, error)
}

// --- Supporting services ---

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID uuid.UUID
	Role   string
}

// TokenService handles JWT bearer token operations.
type TokenService interface {
	Generate(userID uuid.UUID, role string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// AuditService records audited actions (fire-and-forget).
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}

// IdempotencyCache is the Redis fast path for replayed fund-moving requests.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // nil, nil when absent
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// HealthChecker verifies connectivity of an external dependency.
type HealthChecker interface {
	Ping(ctx context.Context) error
	Name() string
}
