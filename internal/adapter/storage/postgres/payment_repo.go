package postgres

import (
	"context"
	"errors"
	"fmt"

	"cstore/internal/core/domain"
	"cstore/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PaymentRepo implements ports.PaymentRepository. The tx_hash unique
// constraint is the durable exactly-once guard for fund movements.
type PaymentRepo struct {
	pool Pool
}

// NewPaymentRepo creates a new PaymentRepo.
func NewPaymentRepo(pool Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

// Create inserts a payment ledger entry within a database transaction.
// A duplicate tx_hash surfaces as DUP_001.
func (r *PaymentRepo) Create(ctx context.Context, tx pgx.Tx, p *domain.Payment) error {
	query := `INSERT INTO payments (id, tx_hash, currency, amount, from_address, to_address,
		order_id, wallet_id, confirmations, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := tx.Exec(ctx, query,
		p.ID, p.TxHash, p.Currency, p.Amount, nullableString(p.FromAddress), p.ToAddress,
		p.OrderID, p.WalletID, p.Confirmations, p.Status, p.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperror.ErrDuplicateExecution()
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// ExistsByTxHash reports whether a ledger entry with this hash exists.
func (r *PaymentRepo) ExistsByTxHash(ctx context.Context, txHash string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM payments WHERE tx_hash = $1)`, txHash).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check payment tx hash: %w", err)
	}
	return exists, nil
}
