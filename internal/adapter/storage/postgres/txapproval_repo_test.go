package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cstore/internal/core/domain"
	"cstore/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var txApprovalColumnList = []string{
	"id", "wallet_id", "order_id", "currency", "amount", "to_address", "from_address",
	"required_approvals", "approvals", "status", "transaction_hash", "initiated_by",
	"expires_at", "executed_at", "rejection_reason", "created_at", "updated_at", "version",
}

func sampleApproval() *domain.TransactionApproval {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.TransactionApproval{
		ID:                uuid.New(),
		WalletID:          uuid.New(),
		Currency:          domain.CurrencyBTC,
		Amount:            0.5,
		ToAddress:         "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa",
		FromAddress:       "bc1qxy2kgdygjrsqtzq2n0yrf2493p83kkfjhx0wlh",
		RequiredApprovals: 2,
		Status:            domain.TransactionApprovalPending,
		InitiatedBy:       uuid.New(),
		ExpiresAt:         now.Add(domain.DefaultApprovalTTL),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func approvalRow(ta *domain.TransactionApproval) *pgxmock.Rows {
	approvals, _ := json.Marshal(ta.Approvals)
	if string(approvals) == "null" {
		approvals = []byte("[]")
	}
	return pgxmock.NewRows(txApprovalColumnList).AddRow(
		ta.ID, ta.WalletID, ta.OrderID, ta.Currency, ta.Amount, ta.ToAddress, ta.FromAddress,
		ta.RequiredApprovals, approvals, ta.Status, ta.TransactionHash, ta.InitiatedBy,
		ta.ExpiresAt, ta.ExecutedAt, nullableString(ta.RejectionReason), ta.CreatedAt, ta.UpdatedAt, ta.Version,
	)
}

func TestTransactionApprovalRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionApprovalRepo(mock)
	ta := sampleApproval()

	mock.ExpectExec("INSERT INTO transaction_approvals").
		WithArgs(anyArgs(18)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), ta))
	assert.Equal(t, int64(1), ta.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionApprovalRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionApprovalRepo(mock)
	ta := sampleApproval()
	ta.Version = 2
	ta.Approvals = []domain.SignerApproval{
		{ID: uuid.New(), SignerID: uuid.New(), Approved: true, Timestamp: ta.CreatedAt},
	}

	mock.ExpectQuery("(?s)SELECT .+ FROM transaction_approvals WHERE id").
		WithArgs(ta.ID).
		WillReturnRows(approvalRow(ta))

	got, err := repo.GetByID(context.Background(), ta.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ta.ID, got.ID)
	assert.Equal(t, int64(2), got.Version)
	require.Len(t, got.Approvals, 1)
	assert.True(t, got.Approvals[0].Approved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionApprovalRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionApprovalRepo(mock)
	id := uuid.New()

	mock.ExpectQuery("(?s)SELECT .+ FROM transaction_approvals WHERE id").
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	got, err := repo.GetByID(context.Background(), id)
	assert.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionApprovalRepo_Update_VersionConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionApprovalRepo(mock)
	ta := sampleApproval()
	ta.Version = 1

	mock.ExpectExec("UPDATE transaction_approvals SET").
		WithArgs(anyArgs(8)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = repo.Update(context.Background(), ta)
	assert.ErrorIs(t, err, ports.ErrVersionConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionApprovalRepo_MarkExecuted(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionApprovalRepo(mock)
	ta := sampleApproval()
	ta.Version = 2
	ta.Status = domain.TransactionApprovalExecuted
	hash := "0xabc"
	ta.TransactionHash = &hash

	mock.ExpectBegin()
	mock.ExpectExec("(?s)UPDATE transaction_approvals SET.+status = 'approved'").
		WithArgs(anyArgs(6)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	ctx := context.Background()
	tx, err := mock.Begin(ctx)
	require.NoError(t, err)

	require.NoError(t, repo.MarkExecuted(ctx, tx, ta))
	assert.Equal(t, int64(3), ta.Version)
	require.NoError(t, tx.Commit(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionApprovalRepo_MarkExecuted_LosesRace(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionApprovalRepo(mock)
	ta := sampleApproval()
	ta.Version = 2

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE transaction_approvals SET").
		WithArgs(anyArgs(6)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	ctx := context.Background()
	tx, err := mock.Begin(ctx)
	require.NoError(t, err)

	err = repo.MarkExecuted(ctx, tx, ta)
	assert.ErrorIs(t, err, ports.ErrVersionConflict)
	require.NoError(t, tx.Rollback(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionApprovalRepo_HasActiveForOrder(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionApprovalRepo(mock)
	orderID := uuid.New()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(orderID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	active, err := repo.HasActiveForOrder(context.Background(), orderID)
	require.NoError(t, err)
	assert.True(t, active)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionApprovalRepo_List_ScopedToWallet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionApprovalRepo(mock)
	ta := sampleApproval()
	ta.Version = 1

	mock.ExpectQuery("(?s)SELECT .+ FROM transaction_approvals WHERE wallet_id").
		WithArgs(ta.WalletID).
		WillReturnRows(approvalRow(ta))

	got, err := repo.List(context.Background(), &ta.WalletID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ta.ID, got[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
