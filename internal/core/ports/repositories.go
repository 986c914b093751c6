package ports

import (
	"context"
	"errors"
	"time"

	"cstore/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrVersionConflict is returned by Update methods when the aggregate was
// modified since it was read. Callers re-read and retry.
var ErrVersionConflict = errors.New("version conflict")

// EscrowListParams holds filters for listing escrows.
type EscrowListParams struct {
	UserID   *uuid.UUID // matches buyer or seller
	Status   *domain.EscrowStatus
	Currency *domain.Cryptocurrency
	Limit    int
	Offset   int
}

// EscrowStats holds admin aggregate counts.
type EscrowStats struct {
	ByStatus      map[domain.EscrowStatus]int64   `json:"by_status"`
	ByCurrency    map[domain.Cryptocurrency]int64 `json:"by_currency"`
	TotalDisputes int64                           `json:"total_disputes"`
	ActiveEscrows int64                           `json:"active_escrows"`
}

// EscrowRepository persists the escrow aggregate as a single document.
// Update applies the optimistic concurrency check on the version field.
type EscrowRepository interface {
	Create(ctx context.Context, e *domain.Escrow) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Escrow, error)
	Update(ctx context.Context, e *domain.Escrow) error
	List(ctx context.Context, params EscrowListParams) ([]domain.Escrow, error)
	ListExpired(ctx context.Context, now time.Time) ([]domain.Escrow, error)
	Stats(ctx context.Context) (*EscrowStats, error)
}

// TransactionApprovalRepository persists wallet transfer approvals.
type TransactionApprovalRepository interface {
	Create(ctx context.Context, t *domain.TransactionApproval) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.TransactionApproval, error)
	Update(ctx context.Context, t *domain.TransactionApproval) error
	// MarkExecuted persists the executed state inside a database transaction so
	// the payment write, order update and status flip commit atomically.
	MarkExecuted(ctx context.Context, tx pgx.Tx, t *domain.TransactionApproval) error
	HasActiveForOrder(ctx context.Context, orderID uuid.UUID) (bool, error)
	List(ctx context.Context, walletID *uuid.UUID) ([]domain.TransactionApproval, error)
}

// PaymentRepository is the payment ledger. TxHash is unique across all rows.
type PaymentRepository interface {
	Create(ctx context.Context, tx pgx.Tx, p *domain.Payment) error
	ExistsByTxHash(ctx context.Context, txHash string) (bool, error)
}

// OrderRepository is the read/write view of the external order collaborator.
type OrderRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.OrderStatus) error
}

// WalletRepository resolves multi-sig wallet signer rosters.
type WalletRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.MultiSigWallet, error)
}

// AuditRepository persists audit log entries.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
