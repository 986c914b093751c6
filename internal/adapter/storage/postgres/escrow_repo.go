package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cstore/internal/core/domain"
	"cstore/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// escrowColumns is the full column list in scan order.
const escrowColumns = `id, buyer_id, seller_id, amount, currency, amount_usd,
	deposit_address, release_address, refund_address,
	deposit_tx_hash, release_tx_hash, refund_tx_hash,
	status, release_type, requires_multi_sig, required_approvals,
	conditions, milestones, disputes, fees, approvals, history,
	created_at, updated_at, funded_at, expires_at, completed_at, version`

// EscrowRepo implements ports.EscrowRepository. The aggregate is one row:
// scalar columns plus JSONB documents for the owned child collections.
type EscrowRepo struct {
	pool Pool
}

// NewEscrowRepo creates a new EscrowRepo.
func NewEscrowRepo(pool Pool) *EscrowRepo {
	return &EscrowRepo{pool: pool}
}

// Create inserts a new escrow at version 1.
func (r *EscrowRepo) Create(ctx context.Context, e *domain.Escrow) error {
	docs, err := marshalChildren(e)
	if err != nil {
		return err
	}

	query := `INSERT INTO escrows (` + escrowColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28)`

	e.Version = 1
	_, err = r.pool.Exec(ctx, query,
		e.ID, e.BuyerID, e.SellerID, e.Amount, e.Currency, e.AmountUSD,
		e.DepositAddress, e.ReleaseAddress, nullableString(e.RefundAddress),
		nullableString(e.DepositTxHash), nullableString(e.ReleaseTxHash), nullableString(e.RefundTxHash),
		e.Status, e.ReleaseType, e.RequiresMultiSig, e.RequiredApprovals,
		docs.conditions, docs.milestones, docs.disputes, docs.fees, docs.approvals, docs.history,
		e.CreatedAt, e.UpdatedAt, e.FundedAt, e.ExpiresAt, e.CompletedAt, e.Version,
	)
	if err != nil {
		return fmt.Errorf("insert escrow: %w", err)
	}
	return nil
}

// GetByID fetches an escrow by UUID. Returns nil, nil when absent.
func (r *EscrowRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Escrow, error) {
	query := `SELECT ` + escrowColumns + ` FROM escrows WHERE id = $1`
	return r.scanEscrow(r.pool.QueryRow(ctx, query, id))
}

// Update writes the whole aggregate back, guarded by the version column.
// Returns ports.ErrVersionConflict when the row changed since it was read.
func (r *EscrowRepo) Update(ctx context.Context, e *domain.Escrow) error {
	docs, err := marshalChildren(e)
	if err != nil {
		return err
	}

	query := `UPDATE escrows SET
		deposit_tx_hash = $1, release_tx_hash = $2, refund_tx_hash = $3,
		status = $4, requires_multi_sig = $5, required_approvals = $6,
		conditions = $7, milestones = $8, disputes = $9, fees = $10, approvals = $11, history = $12,
		updated_at = $13, funded_at = $14, expires_at = $15, completed_at = $16,
		version = version + 1
		WHERE id = $17 AND version = $18`

	tag, err := r.pool.Exec(ctx, query,
		nullableString(e.DepositTxHash), nullableString(e.ReleaseTxHash), nullableString(e.RefundTxHash),
		e.Status, e.RequiresMultiSig, e.RequiredApprovals,
		docs.conditions, docs.milestones, docs.disputes, docs.fees, docs.approvals, docs.history,
		e.UpdatedAt, e.FundedAt, e.ExpiresAt, e.CompletedAt,
		e.ID, e.Version,
	)
	if err != nil {
		return fmt.Errorf("update escrow: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrVersionConflict
	}
	e.Version++
	return nil
}

// List fetches escrows with filtering and pagination.
func (r *EscrowRepo) List(ctx context.Context, params ports.EscrowListParams) ([]domain.Escrow, error) {
	var conditions []string
	var args []any
	argIdx := 1

	if params.UserID != nil {
		conditions = append(conditions, fmt.Sprintf("(buyer_id = $%d OR seller_id = $%d)", argIdx, argIdx))
		args = append(args, *params.UserID)
		argIdx++
	}
	if params.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *params.Status)
		argIdx++
	}
	if params.Currency != nil {
		conditions = append(conditions, fmt.Sprintf("currency = $%d", argIdx))
		args = append(args, *params.Currency)
		argIdx++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	limit := params.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := fmt.Sprintf(`SELECT %s FROM escrows %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		escrowColumns, where, argIdx, argIdx+1)
	args = append(args, limit, params.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list escrows: %w", err)
	}
	defer rows.Close()

	return r.collectEscrows(rows)
}

// ListExpired fetches funded/active escrows whose expiry has passed.
func (r *EscrowRepo) ListExpired(ctx context.Context, now time.Time) ([]domain.Escrow, error) {
	query := `SELECT ` + escrowColumns + ` FROM escrows
		WHERE status IN ('funded', 'active') AND expires_at IS NOT NULL AND expires_at < $1
		ORDER BY expires_at ASC`

	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("list expired escrows: %w", err)
	}
	defer rows.Close()

	return r.collectEscrows(rows)
}

// Stats retrieves aggregate counts for the admin surface.
func (r *EscrowRepo) Stats(ctx context.Context) (*ports.EscrowStats, error) {
	stats := &ports.EscrowStats{
		ByStatus:   make(map[domain.EscrowStatus]int64),
		ByCurrency: make(map[domain.Cryptocurrency]int64),
	}

	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM escrows GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("escrow stats by status: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status domain.EscrowStatus
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		stats.ByStatus[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}

	curRows, err := r.pool.Query(ctx, `SELECT currency, COUNT(*) FROM escrows GROUP BY currency`)
	if err != nil {
		return nil, fmt.Errorf("escrow stats by currency: %w", err)
	}
	defer curRows.Close()
	for curRows.Next() {
		var currency domain.Cryptocurrency
		var count int64
		if err := curRows.Scan(&currency, &count); err != nil {
			return nil, fmt.Errorf("scan currency count: %w", err)
		}
		stats.ByCurrency[currency] = count
	}
	if err := curRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate currency counts: %w", err)
	}

	query := `SELECT
		COALESCE(SUM(jsonb_array_length(disputes)), 0),
		COUNT(*) FILTER (WHERE status IN ('funded', 'active', 'disputed'))
		FROM escrows`
	if err := r.pool.QueryRow(ctx, query).Scan(&stats.TotalDisputes, &stats.ActiveEscrows); err != nil {
		return nil, fmt.Errorf("escrow stats totals: %w", err)
	}
	return stats, nil
}

// childDocs holds the JSONB payloads of one aggregate.
type childDocs struct {
	conditions []byte
	milestones []byte
	disputes   []byte
	fees       []byte
	approvals  []byte
	history    []byte
}

func marshalChildren(e *domain.Escrow) (*childDocs, error) {
	docs := &childDocs{}
	for _, part := range []struct {
		name string
		v    any
		dst  *[]byte
	}{
		{"conditions", e.Conditions, &docs.conditions},
		{"milestones", e.Milestones, &docs.milestones},
		{"disputes", e.Disputes, &docs.disputes},
		{"fees", e.Fees, &docs.fees},
		{"approvals", e.Approvals, &docs.approvals},
		{"history", e.History, &docs.history},
	} {
		b, err := json.Marshal(part.v)
		if err != nil {
			return nil, fmt.Errorf("marshal escrow %s: %w", part.name, err)
		}
		// Nil slices marshal to "null"; store an empty array instead.
		if string(b) == "null" {
			b = []byte("[]")
		}
		*part.dst = b
	}
	return docs, nil
}

func (r *EscrowRepo) scanEscrow(row pgx.Row) (*domain.Escrow, error) {
	e := &domain.Escrow{}
	var refundAddr, depositTx, releaseTx, refundTx *string
	docs := &childDocs{}

	err := row.Scan(
		&e.ID, &e.BuyerID, &e.SellerID, &e.Amount, &e.Currency, &e.AmountUSD,
		&e.DepositAddress, &e.ReleaseAddress, &refundAddr,
		&depositTx, &releaseTx, &refundTx,
		&e.Status, &e.ReleaseType, &e.RequiresMultiSig, &e.RequiredApprovals,
		&docs.conditions, &docs.milestones, &docs.disputes, &docs.fees, &docs.approvals, &docs.history,
		&e.CreatedAt, &e.UpdatedAt, &e.FundedAt, &e.ExpiresAt, &e.CompletedAt, &e.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan escrow: %w", err)
	}

	e.RefundAddress = derefString(refundAddr)
	e.DepositTxHash = derefString(depositTx)
	e.ReleaseTxHash = derefString(releaseTx)
	e.RefundTxHash = derefString(refundTx)

	if err := unmarshalChildren(docs, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (r *EscrowRepo) collectEscrows(rows pgx.Rows) ([]domain.Escrow, error) {
	var escrows []domain.Escrow
	for rows.Next() {
		e, err := r.scanEscrow(rows)
		if err != nil {
			return nil, err
		}
		escrows = append(escrows, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate escrow rows: %w", err)
	}
	return escrows, nil
}

func unmarshalChildren(docs *childDocs, e *domain.Escrow) error {
	for _, part := range []struct {
		name string
		b    []byte
		dst  any
	}{
		{"conditions", docs.conditions, &e.Conditions},
		{"milestones", docs.milestones, &e.Milestones},
		{"disputes", docs.disputes, &e.Disputes},
		{"fees", docs.fees, &e.Fees},
		{"approvals", docs.approvals, &e.Approvals},
		{"history", docs.history, &e.History},
	} {
		if len(part.b) == 0 {
			continue
		}
		if err := json.Unmarshal(part.b, part.dst); err != nil {
			return fmt.Errorf("unmarshal escrow %s: %w", part.name, err)
		}
	}
	return nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
