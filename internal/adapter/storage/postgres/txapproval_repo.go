package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cstore/internal/core/domain"
	"cstore/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const txApprovalColumns = `id, wallet_id, order_id, currency, amount, to_address, from_address,
	required_approvals, approvals, status, transaction_hash, initiated_by,
	expires_at, executed_at, rejection_reason, created_at, updated_at, version`

// TransactionApprovalRepo implements ports.TransactionApprovalRepository.
type TransactionApprovalRepo struct {
	pool Pool
}

// NewTransactionApprovalRepo creates a new TransactionApprovalRepo.
func NewTransactionApprovalRepo(pool Pool) *TransactionApprovalRepo {
	return &TransactionApprovalRepo{pool: pool}
}

// Create inserts a new transfer approval at version 1.
func (r *TransactionApprovalRepo) Create(ctx context.Context, t *domain.TransactionApproval) error {
	approvals, err := marshalApprovals(t.Approvals)
	if err != nil {
		return err
	}

	query := `INSERT INTO transaction_approvals (` + txApprovalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	t.Version = 1
	_, err = r.pool.Exec(ctx, query,
		t.ID, t.WalletID, t.OrderID, t.Currency, t.Amount, t.ToAddress, t.FromAddress,
		t.RequiredApprovals, approvals, t.Status, t.TransactionHash, t.InitiatedBy,
		t.ExpiresAt, t.ExecutedAt, nullableString(t.RejectionReason), t.CreatedAt, t.UpdatedAt, t.Version,
	)
	if err != nil {
		return fmt.Errorf("insert transaction approval: %w", err)
	}
	return nil
}

// GetByID fetches a transfer approval by UUID. Returns nil, nil when absent.
func (r *TransactionApprovalRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.TransactionApproval, error) {
	query := `SELECT ` + txApprovalColumns + ` FROM transaction_approvals WHERE id = $1`
	return r.scanApproval(r.pool.QueryRow(ctx, query, id))
}

// Update writes the approval back, guarded by the version column.
func (r *TransactionApprovalRepo) Update(ctx context.Context, t *domain.TransactionApproval) error {
	approvals, err := marshalApprovals(t.Approvals)
	if err != nil {
		return err
	}

	query := `UPDATE transaction_approvals SET
		approvals = $1, status = $2, transaction_hash = $3, executed_at = $4,
		rejection_reason = $5, updated_at = $6, version = version + 1
		WHERE id = $7 AND version = $8`

	tag, err := r.pool.Exec(ctx, query,
		approvals, t.Status, t.TransactionHash, t.ExecutedAt,
		nullableString(t.RejectionReason), t.UpdatedAt,
		t.ID, t.Version,
	)
	if err != nil {
		return fmt.Errorf("update transaction approval: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrVersionConflict
	}
	t.Version++
	return nil
}

// MarkExecuted persists the executed state inside the caller's database
// transaction. The version check makes concurrent executions lose the race.
func (r *TransactionApprovalRepo) MarkExecuted(ctx context.Context, tx pgx.Tx, t *domain.TransactionApproval) error {
	query := `UPDATE transaction_approvals SET
		status = $1, transaction_hash = $2, executed_at = $3, updated_at = $4, version = version + 1
		WHERE id = $5 AND version = $6 AND status = 'approved'`

	tag, err := tx.Exec(ctx, query,
		t.Status, t.TransactionHash, t.ExecutedAt, t.UpdatedAt,
		t.ID, t.Version,
	)
	if err != nil {
		return fmt.Errorf("mark transaction approval executed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrVersionConflict
	}
	t.Version++
	return nil
}

// HasActiveForOrder reports whether the order already backs a live transfer.
func (r *TransactionApprovalRepo) HasActiveForOrder(ctx context.Context, orderID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM transaction_approvals
		WHERE order_id = $1 AND status IN ('pending', 'approved'))`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, orderID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check active approvals for order: %w", err)
	}
	return exists, nil
}

// List fetches transfer approvals, optionally scoped to one wallet.
func (r *TransactionApprovalRepo) List(ctx context.Context, walletID *uuid.UUID) ([]domain.TransactionApproval, error) {
	query := `SELECT ` + txApprovalColumns + ` FROM transaction_approvals`
	var args []any
	if walletID != nil {
		query += ` WHERE wallet_id = $1`
		args = append(args, *walletID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transaction approvals: %w", err)
	}
	defer rows.Close()

	var list []domain.TransactionApproval
	for rows.Next() {
		t, err := r.scanApproval(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction approval rows: %w", err)
	}
	return list, nil
}

func (r *TransactionApprovalRepo) scanApproval(row pgx.Row) (*domain.TransactionApproval, error) {
	t := &domain.TransactionApproval{}
	var approvals []byte
	var rejectionReason *string

	err := row.Scan(
		&t.ID, &t.WalletID, &t.OrderID, &t.Currency, &t.Amount, &t.ToAddress, &t.FromAddress,
		&t.RequiredApprovals, &approvals, &t.Status, &t.TransactionHash, &t.InitiatedBy,
		&t.ExpiresAt, &t.ExecutedAt, &rejectionReason, &t.CreatedAt, &t.UpdatedAt, &t.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan transaction approval: %w", err)
	}

	t.RejectionReason = derefString(rejectionReason)
	if len(approvals) > 0 {
		if err := json.Unmarshal(approvals, &t.Approvals); err != nil {
			return nil, fmt.Errorf("unmarshal signer approvals: %w", err)
		}
	}
	return t, nil
}

func marshalApprovals(approvals []domain.SignerApproval) ([]byte, error) {
	b, err := json.Marshal(approvals)
	if err != nil {
		return nil, fmt.Errorf("marshal signer approvals: %w", err)
	}
	if string(b) == "null" {
		b = []byte("[]")
	}
	return b, nil
}
