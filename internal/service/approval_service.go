package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cstore/internal/core/domain"
	"cstore/internal/core/ports"
	"cstore/internal/metrics"
	"cstore/internal/retry"
	"cstore/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// executionIdempotencyTTL bounds how long a replayed execute request is served
// from the cache fast path. The ledger's unique tx_hash is the durable guard.
const executionIdempotencyTTL = 24 * time.Hour

// ApprovalServiceImpl implements ports.ApprovalService: M-of-N authorization
// for direct wallet transfers. Execution is the only step that moves money and
// is guarded three ways: approval status, an idempotency cache, and the
// payment ledger's unique transaction hash.
type ApprovalServiceImpl struct {
	approvals  ports.TransactionApprovalRepository
	payments   ports.PaymentRepository
	orders     ports.OrderRepository
	wallets    ports.WalletRepository
	transactor ports.DBTransactor
	idem       ports.IdempotencyCache
	audit      ports.AuditService
	log        zerolog.Logger
}

// NewApprovalService creates a new ApprovalServiceImpl.
func NewApprovalService(
	approvals ports.TransactionApprovalRepository,
	payments ports.PaymentRepository,
	orders ports.OrderRepository,
	wallets ports.WalletRepository,
	transactor ports.DBTransactor,
	idem ports.IdempotencyCache,
	audit ports.AuditService,
	log zerolog.Logger,
) *ApprovalServiceImpl {
	return &ApprovalServiceImpl{
		approvals:  approvals,
		payments:   payments,
		orders:     orders,
		wallets:    wallets,
		transactor: transactor,
		idem:       idem,
		audit:      audit,
		log:        log,
	}
}

// Create opens a pending transfer approval. The initiator must have access to
// the wallet, and an order may back at most one live transfer at a time.
func (s *ApprovalServiceImpl) Create(ctx context.Context, in ports.CreateTransferInput, initiator uuid.UUID) (*domain.TransactionApproval, error) {
	if in.Amount <= 0 {
		return nil, apperror.Validation("amount must be positive")
	}
	if !in.Currency.IsValid() {
		return nil, apperror.ErrInvalidCurrency(string(in.Currency))
	}
	if err := ValidateAddress(in.Currency, in.ToAddress); err != nil {
		return nil, err
	}

	wallet, err := s.wallets.GetByID(ctx, in.WalletID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	if !wallet.HasAccess(initiator) {
		return nil, apperror.ErrNotSigner()
	}
	if wallet.Currency != in.Currency {
		return nil, apperror.Validation("currency does not match wallet")
	}

	if in.OrderID != nil {
		order, err := s.orders.GetByID(ctx, *in.OrderID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("get order: %w", err))
		}
		if order == nil {
			return nil, apperror.ErrNotFound("order")
		}
		active, err := s.approvals.HasActiveForOrder(ctx, *in.OrderID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("check active approvals: %w", err))
		}
		if active {
			return nil, apperror.ErrPendingApprovalExists()
		}
	}

	fromAddress := in.FromAddress
	if fromAddress == "" {
		fromAddress = wallet.Address
	}

	now := time.Now().UTC()
	t := &domain.TransactionApproval{
		ID:                uuid.New(),
		WalletID:          in.WalletID,
		OrderID:           in.OrderID,
		Currency:          in.Currency,
		Amount:            in.Amount,
		ToAddress:         in.ToAddress,
		FromAddress:       fromAddress,
		RequiredApprovals: wallet.RequiredApprovals,
		Status:            domain.TransactionApprovalPending,
		InitiatedBy:       initiator,
		ExpiresAt:         now.Add(domain.DefaultApprovalTTL),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.approvals.Create(ctx, t); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create transfer approval: %w", err))
	}

	s.auditLog(ctx, domain.AuditActionTransferCreate, initiator, t.ID.String(), "success", marshalDetails(map[string]any{
		"wallet_id": in.WalletID,
		"amount":    in.Amount,
		"currency":  in.Currency,
	}))
	s.log.Info().
		Str("approval_id", t.ID.String()).
		Str("wallet_id", in.WalletID.String()).
		Int("required_approvals", t.RequiredApprovals).
		Msg("transfer approval created")
	return t, nil
}

// Get fetches a transfer approval, lazily expiring it when the window passed.
func (s *ApprovalServiceImpl) Get(ctx context.Context, id uuid.UUID) (*domain.TransactionApproval, error) {
	t, err := s.approvals.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get transfer approval: %w", err))
	}
	if t == nil {
		return nil, apperror.ErrNotFound("transfer approval")
	}
	if expired, err := s.expireIfStale(ctx, t); err != nil {
		return nil, err
	} else if expired != nil {
		return expired, nil
	}
	return t, nil
}

// List returns transfer approvals, optionally scoped to one wallet.
func (s *ApprovalServiceImpl) List(ctx context.Context, walletID *uuid.UUID) ([]domain.TransactionApproval, error) {
	list, err := s.approvals.List(ctx, walletID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list transfer approvals: %w", err))
	}
	return list, nil
}

// Approve records a signer's vote. Approval votes count toward the wallet's
// threshold; rejection votes are advisory and recorded with their comment.
func (s *ApprovalServiceImpl) Approve(ctx context.Context, id uuid.UUID, signer uuid.UUID, approved bool, signature, comment string) (*domain.TransactionApproval, error) {
	var expiredNow bool
	updated, err := s.mutateApproval(ctx, id, func(t *domain.TransactionApproval) error {
		now := time.Now().UTC()
		if t.IsExpired(now) && !t.Status.IsTerminal() {
			// Persist the lazy expiry; the vote itself is rejected below.
			t.Status = domain.TransactionApprovalExpired
			expiredNow = true
			return nil
		}
		if t.Status != domain.TransactionApprovalPending {
			return apperror.StateConflict(fmt.Sprintf("Cannot vote on a transfer in status %s", t.Status))
		}

		wallet, err := s.wallets.GetByID(ctx, t.WalletID)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("get wallet: %w", err))
		}
		if wallet == nil {
			return apperror.ErrNotFound("wallet")
		}
		if !wallet.IsSigner(signer) {
			return apperror.ErrNotSigner()
		}
		if domain.HasVoted(t.Votes(), signer) {
			return apperror.ErrAlreadyApproved()
		}

		t.Approvals = append(t.Approvals, domain.SignerApproval{
			ID:        uuid.New(),
			SignerID:  signer,
			Approved:  approved,
			Signature: signature,
			Comment:   comment,
			Timestamp: now,
		})

		if domain.ThresholdMet(t.Votes(), t.RequiredApprovals) {
			t.Status = domain.TransactionApprovalApproved
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if expiredNow {
		return nil, apperror.ErrApprovalExpired()
	}

	vote := "approve"
	if !approved {
		vote = "reject"
	}
	metrics.ApprovalVotesTotal.WithLabelValues("transfer", vote).Inc()
	s.auditLog(ctx, domain.AuditActionApprovalVote, signer, id.String(), "success", marshalDetails(map[string]any{
		"approved": approved,
		"status":   updated.Status,
	}))
	s.log.Info().
		Str("approval_id", id.String()).
		Str("signer", signer.String()).
		Bool("approved", approved).
		Str("status", string(updated.Status)).
		Msg("transfer vote recorded")
	return updated, nil
}

// Execute settles an approved transfer exactly once: the payment ledger row,
// the linked order's paid flip and the executed status commit in one database
// transaction. A transaction hash seen before means the funds already moved.
func (s *ApprovalServiceImpl) Execute(ctx context.Context, id uuid.UUID, txHash string, actor uuid.UUID) (*domain.TransactionApproval, error) {
	if txHash == "" {
		return nil, apperror.Validation("transaction hash is required")
	}

	// Fast path for replays of the same request.
	idemKey := "exec:" + id.String() + ":" + txHash
	if s.idem != nil {
		if cached, err := s.idem.Get(ctx, idemKey); err == nil && cached != nil {
			s.log.Info().Str("approval_id", id.String()).Msg("execute replay served from cache")
			return s.Get(ctx, id)
		}
	}

	t, err := s.approvals.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get transfer approval: %w", err))
	}
	if t == nil {
		return nil, apperror.ErrNotFound("transfer approval")
	}

	wallet, err := s.wallets.GetByID(ctx, t.WalletID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	if !wallet.HasAccess(actor) {
		return nil, apperror.ErrNotSigner()
	}

	now := time.Now().UTC()
	if t.IsExpired(now) && !t.Status.IsTerminal() {
		s.lazyExpire(ctx, id)
		return nil, apperror.ErrApprovalExpired()
	}
	if t.Status == domain.TransactionApprovalExecuted {
		return nil, apperror.ErrDuplicateExecution()
	}
	if t.Status != domain.TransactionApprovalApproved {
		return nil, apperror.StateConflict(fmt.Sprintf("Cannot execute a transfer in status %s", t.Status))
	}

	exists, err := s.payments.ExistsByTxHash(ctx, txHash)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check tx hash: %w", err))
	}
	if exists {
		return nil, apperror.ErrDuplicateExecution()
	}

	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin transaction: %w", err))
	}
	defer tx.Rollback(ctx)

	payment := &domain.Payment{
		ID:          uuid.New(),
		TxHash:      txHash,
		Currency:    t.Currency,
		Amount:      t.Amount,
		FromAddress: t.FromAddress,
		ToAddress:   t.ToAddress,
		OrderID:     t.OrderID,
		WalletID:    &t.WalletID,
		Status:      domain.PaymentStatusConfirmed,
		CreatedAt:   now,
	}
	if err := s.payments.Create(ctx, tx, payment); err != nil {
		// The repo surfaces a tx_hash unique violation as DUP_001 when a
		// concurrent execute won the race; pass it through.
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, apperror.InternalError(fmt.Errorf("create payment: %w", err))
	}

	if t.OrderID != nil {
		if err := s.orders.UpdateStatus(ctx, tx, *t.OrderID, domain.OrderStatusPaid); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("update order status: %w", err))
		}
	}

	t.Status = domain.TransactionApprovalExecuted
	t.TransactionHash = &txHash
	t.ExecutedAt = &now
	t.UpdatedAt = now
	if err := s.approvals.MarkExecuted(ctx, tx, t); err != nil {
		if errors.Is(err, ports.ErrVersionConflict) {
			return nil, apperror.ErrDuplicateExecution()
		}
		return nil, apperror.InternalError(fmt.Errorf("mark executed: %w", err))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit execution: %w", err))
	}

	if s.idem != nil {
		if err := s.idem.Set(ctx, idemKey, []byte("1"), executionIdempotencyTTL); err != nil {
			s.log.Warn().Err(err).Msg("failed to record execution idempotency key")
		}
	}

	metrics.TransfersExecutedTotal.WithLabelValues(string(t.Currency)).Inc()
	s.auditLog(ctx, domain.AuditActionTransferExecute, actor, id.String(), "success", marshalDetails(map[string]any{
		"tx_hash": txHash,
		"amount":  t.Amount,
	}))
	s.log.Info().
		Str("approval_id", id.String()).
		Str("tx_hash", txHash).
		Msg("transfer executed")
	return t, nil
}

// Cancel rejects a pending transfer. Only the initiator or the wallet owner
// may cancel; once the threshold is met the transfer can only execute or
// expire.
func (s *ApprovalServiceImpl) Cancel(ctx context.Context, id uuid.UUID, actor uuid.UUID, reason string) (*domain.TransactionApproval, error) {
	updated, err := s.mutateApproval(ctx, id, func(t *domain.TransactionApproval) error {
		if t.Status != domain.TransactionApprovalPending {
			return apperror.StateConflict(fmt.Sprintf("Cannot cancel a transfer in status %s", t.Status))
		}

		wallet, err := s.wallets.GetByID(ctx, t.WalletID)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("get wallet: %w", err))
		}
		if wallet == nil {
			return apperror.ErrNotFound("wallet")
		}
		if actor != t.InitiatedBy && actor != wallet.OwnerID {
			return apperror.ErrNotInitiator()
		}

		t.Status = domain.TransactionApprovalRejected
		t.RejectionReason = reason
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.auditLog(ctx, domain.AuditActionTransferCancel, actor, id.String(), "success", reason)
	s.log.Info().Str("approval_id", id.String()).Str("reason", reason).Msg("transfer cancelled")
	return updated, nil
}

// expireIfStale flips a past-deadline live approval to expired and persists it.
func (s *ApprovalServiceImpl) expireIfStale(ctx context.Context, t *domain.TransactionApproval) (*domain.TransactionApproval, error) {
	if t.Status.IsTerminal() || !t.IsExpired(time.Now().UTC()) {
		return nil, nil
	}
	updated, err := s.mutateApproval(ctx, t.ID, func(t *domain.TransactionApproval) error {
		if t.Status.IsTerminal() {
			return nil
		}
		t.Status = domain.TransactionApprovalExpired
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// lazyExpire is expireIfStale for paths that only have the ID and do not need
// the result.
func (s *ApprovalServiceImpl) lazyExpire(ctx context.Context, id uuid.UUID) {
	_, err := s.mutateApproval(ctx, id, func(t *domain.TransactionApproval) error {
		if t.Status.IsTerminal() {
			return nil
		}
		t.Status = domain.TransactionApprovalExpired
		return nil
	})
	if err != nil {
		s.log.Warn().Err(err).Str("approval_id", id.String()).Msg("failed to expire transfer approval")
	}
}

// mutateApproval runs a read-modify-write cycle with optimistic-concurrency
// retry, mirroring the escrow engine's mutate helper.
func (s *ApprovalServiceImpl) mutateApproval(ctx context.Context, id uuid.UUID, fn func(t *domain.TransactionApproval) error) (*domain.TransactionApproval, error) {
	var result *domain.TransactionApproval
	err := retry.Do(ctx, mutationAttempts, mutationBaseDelay, func() error {
		t, err := s.approvals.GetByID(ctx, id)
		if err != nil {
			return retry.Permanent(apperror.InternalError(fmt.Errorf("get transfer approval: %w", err)))
		}
		if t == nil {
			return retry.Permanent(apperror.ErrNotFound("transfer approval"))
		}
		if err := fn(t); err != nil {
			return retry.Permanent(err)
		}
		t.UpdatedAt = time.Now().UTC()
		if err := s.approvals.Update(ctx, t); err != nil {
			if errors.Is(err, ports.ErrVersionConflict) {
				return err
			}
			return retry.Permanent(apperror.InternalError(fmt.Errorf("update transfer approval: %w", err)))
		}
		result = t
		return nil
	})
	if err != nil {
		if errors.Is(err, ports.ErrVersionConflict) {
			return nil, apperror.Wrap("SYS_003", "Concurrent update conflict, please retry", 409, err)
		}
		return nil, err
	}
	return result, nil
}

// marshalDetails renders a details payload for audit entries.
func marshalDetails(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func (s *ApprovalServiceImpl) auditLog(ctx context.Context, action domain.AuditAction, actor uuid.UUID, resourceID, outcome, details string) {
	if s.audit == nil {
		return
	}
	s.audit.Log(ctx, &domain.AuditLog{
		ID:           uuid.New(),
		UserID:       &actor,
		Action:       action,
		ResourceType: "transaction_approval",
		ResourceID:   resourceID,
		Outcome:      outcome,
		Details:      details,
		CreatedAt:    time.Now().UTC(),
	})
}
