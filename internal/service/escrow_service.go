package service

import (
	"context"
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

const (
	mutationAttempts  = 3
	mutationBaseDelay = 25 * time.Millisecond

	verifyAttempts  = 3
	verifyBaseDelay = 500 * time.Millisecond
)

// EscrowConfig tunes the lifecycle engine.
type EscrowConfig struct {
	// MultiSigThresholdUSD is the USD value at or above which multi-sig
	// approval becomes mandatory.
	MultiSigThresholdUSD float64
	// MultiSigApprovals is the approval count applied when the threshold trips.
	MultiSigApprovals int
	// AutoReleaseWindow, when positive, sets expiresAt on funding.
	AutoReleaseWindow time.Duration
}

// DefaultEscrowConfig returns the production defaults.
func DefaultEscrowConfig() EscrowConfig {
	return EscrowConfig{
		MultiSigThresholdUSD: 10000,
		MultiSigApprovals:    2,
		AutoReleaseWindow:    30 * 24 * time.Hour,
	}
}

// EscrowServiceImpl implements ports.EscrowService: the authoritative state
// machine for escrow records. Every mutation is a read-modify-write guarded by
// the repository's version check and retried on conflict.
type EscrowServiceImpl struct {
	repo     ports.EscrowRepository
	verifier ports.ChainVerifier
	fees     *FeeCalculator
	audit    ports.AuditService
	cfg      EscrowConfig
	log      zerolog.Logger
}

// NewEscrowService creates a new EscrowServiceImpl.
func NewEscrowService(
	repo ports.EscrowRepository,
	verifier ports.ChainVerifier,
	fees *FeeCalculator,
	audit ports.AuditService,
	cfg EscrowConfig,
	log zerolog.Logger,
) *EscrowServiceImpl {
	return &EscrowServiceImpl{
		repo:     repo,
		verifier: verifier,
		fees:     fees,
		audit:    audit,
		cfg:      cfg,
		log:      log,
	}
}

// Create validates and persists a new escrow in status created.
func (s *EscrowServiceImpl) Create(ctx context.Context, in ports.CreateEscrowInput, initiator uuid.UUID) (*domain.Escrow, error) {
	if !in.Currency.IsValid() {
		return nil, s.reject(ctx, domain.AuditActionEscrowCreate, initiator, "", apperror.ErrInvalidCurrency(string(in.Currency)))
	}
	if in.BuyerID == in.SellerID {
		return nil, s.reject(ctx, domain.AuditActionEscrowCreate, initiator, "", apperror.ErrSelfDealing())
	}
	if in.Amount <= 0 {
		return nil, s.reject(ctx, domain.AuditActionEscrowCreate, initiator, "", apperror.Validation("amount must be positive"))
	}
	if initiator != in.BuyerID && initiator != in.SellerID {
		return nil, s.reject(ctx, domain.AuditActionEscrowCreate, initiator, "", apperror.ErrNotParty())
	}
	if err := ValidateAddress(in.Currency, in.DepositAddress); err != nil {
		return nil, s.reject(ctx, domain.AuditActionEscrowCreate, initiator, "", err)
	}
	if err := ValidateAddress(in.Currency, in.ReleaseAddress); err != nil {
		return nil, s.reject(ctx, domain.AuditActionEscrowCreate, initiator, "", err)
	}

	releaseType := in.ReleaseType
	if releaseType == "" {
		releaseType = domain.ReleaseTypeManual
	}

	now := time.Now().UTC()
	e := &domain.Escrow{
		ID:             uuid.New(),
		BuyerID:        in.BuyerID,
		SellerID:       in.SellerID,
		Amount:         in.Amount,
		Currency:       in.Currency,
		AmountUSD:      in.AmountUSD,
		DepositAddress: in.DepositAddress,
		ReleaseAddress: in.ReleaseAddress,
		RefundAddress:  in.RefundAddress,
		Status:         domain.EscrowStatusCreated,
		ReleaseType:    releaseType,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	for _, m := range in.Milestones {
		e.Milestones = append(e.Milestones, domain.Milestone{
			ID:     uuid.New(),
			Title:  m.Title,
			Amount: m.Amount,
			Status: domain.MilestoneStatusPending,
		})
	}
	if !e.ValidateMilestoneSum() {
		return nil, s.reject(ctx, domain.AuditActionEscrowCreate, initiator, "", apperror.ErrMilestoneSumMismatch())
	}

	for _, c := range in.Conditions {
		cond := domain.ReleaseCondition{ID: uuid.New(), Type: c.Type, Days: c.Days}
		if c.At != nil {
			at := c.At.UTC()
			cond.At = &at
		}
		switch c.Type {
		case domain.ConditionTimeBased:
			if cond.At == nil {
				return nil, s.reject(ctx, domain.AuditActionEscrowCreate, initiator, "", apperror.Validation("time_based condition requires a timestamp"))
			}
		case domain.ConditionInspectionPeriod:
			if cond.Days <= 0 {
				return nil, s.reject(ctx, domain.AuditActionEscrowCreate, initiator, "", apperror.Validation("inspection_period condition requires a positive day count"))
			}
		}
		e.Conditions = append(e.Conditions, cond)
	}

	e.Fees = s.fees.Calculate(in.Amount, in.Currency)

	// High-value escrows force multi-sig; caller-set stricter values win.
	e.RequiresMultiSig = in.RequiresMultiSig
	e.RequiredApprovals = in.RequiredApprovals
	if in.AmountUSD >= s.cfg.MultiSigThresholdUSD {
		e.RequiresMultiSig = true
		if e.RequiredApprovals < s.cfg.MultiSigApprovals {
			e.RequiredApprovals = s.cfg.MultiSigApprovals
		}
	}
	if e.RequiredApprovals < 1 {
		e.RequiredApprovals = 1
	}

	e.AppendHistory("created", initiator, fmt.Sprintf("escrow created, release type %s", releaseType), now)

	if err := s.repo.Create(ctx, e); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create escrow: %w", err))
	}

	metrics.EscrowTransitionsTotal.WithLabelValues(string(domain.EscrowStatusCreated)).Inc()
	s.auditLog(ctx, domain.AuditActionEscrowCreate, initiator, e.ID.String(), "success", "")
	s.log.Info().
		Str("escrow_id", e.ID.String()).
		Str("currency", string(e.Currency)).
		Float64("amount", e.Amount).
		Bool("multi_sig", e.RequiresMultiSig).
		Msg("escrow created")

	return e, nil
}

// Get fetches an escrow; non-admin requesters must be a party.
func (s *EscrowServiceImpl) Get(ctx context.Context, id uuid.UUID, requester uuid.UUID) (*domain.Escrow, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get escrow: %w", err))
	}
	if e == nil {
		return nil, apperror.ErrNotFound("escrow")
	}
	if requester != uuid.Nil && !e.IsParty(requester) {
		return nil, apperror.ErrNotParty()
	}
	return e, nil
}

// List returns escrows matching the filter.
func (s *EscrowServiceImpl) List(ctx context.Context, params ports.EscrowListParams) ([]domain.Escrow, error) {
	escrows, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list escrows: %w", err))
	}
	return escrows, nil
}

// Stats returns admin aggregate counts.
func (s *EscrowServiceImpl) Stats(ctx context.Context) (*ports.EscrowStats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("escrow stats: %w", err))
	}
	return stats, nil
}

// Fund verifies the deposit transaction on-chain and moves the escrow from
// created to funded, then runs a condition evaluation pass.
func (s *EscrowServiceImpl) Fund(ctx context.Context, id uuid.UUID, txHash string, actor uuid.UUID) (*domain.Escrow, error) {
	if txHash == "" {
		return nil, s.reject(ctx, domain.AuditActionEscrowFund, actor, id.String(), apperror.Validation("transaction hash is required"))
	}

	e, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, s.reject(ctx, domain.AuditActionEscrowFund, actor, id.String(), err)
	}
	if e.Status != domain.EscrowStatusCreated {
		return nil, s.reject(ctx, domain.AuditActionEscrowFund, actor, id.String(), apperror.ErrIllegalTransition("fund", string(e.Status)))
	}

	result, err := s.verifyOnChain(ctx, e.Currency, txHash, e.DepositAddress, e.Amount)
	if err != nil {
		return nil, s.reject(ctx, domain.AuditActionEscrowFund, actor, id.String(), err)
	}

	updated, err := s.mutate(ctx, id, func(e *domain.Escrow) error {
		if e.Status != domain.EscrowStatusCreated {
			return apperror.ErrIllegalTransition("fund", string(e.Status))
		}
		now := time.Now().UTC()
		e.Status = domain.EscrowStatusFunded
		e.DepositTxHash = txHash
		e.FundedAt = &now
		if s.cfg.AutoReleaseWindow > 0 {
			expires := now.Add(s.cfg.AutoReleaseWindow)
			e.ExpiresAt = &expires
		}
		e.AppendHistory("funded", actor, fmt.Sprintf("deposit confirmed, %d confirmations", result.Confirmations), now)

		EvaluateConditions(e, now)
		s.maybeAutoRelease(e, now)
		return nil
	})
	if err != nil {
		return nil, s.reject(ctx, domain.AuditActionEscrowFund, actor, id.String(), err)
	}

	metrics.EscrowTransitionsTotal.WithLabelValues(string(updated.Status)).Inc()
	s.auditLog(ctx, domain.AuditActionEscrowFund, actor, id.String(), "success", txHash)
	s.log.Info().Str("escrow_id", id.String()).Str("tx_hash", txHash).Msg("escrow funded")
	return updated, nil
}

// Release is the buyer's confirmation of satisfaction. With multi-sig enabled
// it records an approval vote and completes only once the threshold is met.
func (s *EscrowServiceImpl) Release(ctx context.Context, id uuid.UUID, actor uuid.UUID, signature string) (*ports.ReleaseOutcome, error) {
	return s.settle(ctx, id, actor, signature, domain.ApprovalActionRelease, "", false)
}

// Refund returns the funds to the buyer; either party may initiate
// (mutual-agreement semantics), with the same multi-sig gating as release.
func (s *EscrowServiceImpl) Refund(ctx context.Context, id uuid.UUID, actor uuid.UUID, reason string) (*ports.ReleaseOutcome, error) {
	return s.settle(ctx, id, actor, "", domain.ApprovalActionRefund, reason, false)
}

// settle drives release and refund through the shared approval-gated path.
// system marks engine-initiated calls (auto-release), which bypass the
// buyer-only check but not the multi-sig gate.
func (s *EscrowServiceImpl) settle(ctx context.Context, id uuid.UUID, actor uuid.UUID, signature string, action domain.ApprovalAction, reason string, system bool) (*ports.ReleaseOutcome, error) {
	auditAction := domain.AuditActionEscrowRelease
	if action == domain.ApprovalActionRefund {
		auditAction = domain.AuditActionEscrowRefund
	}

	outcome := &ports.ReleaseOutcome{}
	updated, err := s.mutate(ctx, id, func(e *domain.Escrow) error {
		return s.applySettlement(e, actor, signature, action, reason, system, outcome)
	})
	if err != nil {
		return nil, s.reject(ctx, auditAction, actor, id.String(), err)
	}

	outcome.Escrow = updated
	if outcome.PendingApproval {
		s.auditLog(ctx, auditAction, actor, id.String(), "pending_approval",
			fmt.Sprintf("%d/%d approvals", outcome.Approvals, outcome.Required))
	} else {
		metrics.EscrowTransitionsTotal.WithLabelValues(string(updated.Status)).Inc()
		s.auditLog(ctx, auditAction, actor, id.String(), "success", "")
	}
	s.log.Info().
		Str("escrow_id", id.String()).
		Str("action", string(action)).
		Bool("pending_approval", outcome.PendingApproval).
		Msg("escrow settlement")
	return outcome, nil
}

// applySettlement mutates the aggregate in memory; it runs inside the
// optimistic-concurrency loop.
func (s *EscrowServiceImpl) applySettlement(e *domain.Escrow, actor uuid.UUID, signature string, action domain.ApprovalAction, reason string, system bool, outcome *ports.ReleaseOutcome) error {
	verb := "release"
	if action == domain.ApprovalActionRefund {
		verb = "refund"
	}

	if e.Status != domain.EscrowStatusFunded && e.Status != domain.EscrowStatusActive {
		return apperror.ErrIllegalTransition(verb, string(e.Status))
	}
	if e.HasActiveDispute() {
		return apperror.ErrActiveDispute()
	}

	switch action {
	case domain.ApprovalActionRelease:
		// The buyer opens a release; once a multi-sig vote exists the other
		// party may add theirs. Auto-release acts as the seller by
		// construction and skips this check.
		if !system {
			if e.RequiresMultiSig && len(e.VotesFor(action)) > 0 {
				if !e.IsParty(actor) {
					return apperror.ErrNotParty()
				}
			} else if actor != e.BuyerID {
				return apperror.ErrNotBuyer()
			}
		}
	case domain.ApprovalActionRefund:
		if !system && !e.IsParty(actor) {
			return apperror.ErrNotParty()
		}
	}

	now := time.Now().UTC()

	if e.RequiresMultiSig {
		votes := e.VotesFor(action)
		if domain.HasVoted(votes, actor) {
			return apperror.ErrAlreadyApproved()
		}
		e.Approvals = append(e.Approvals, domain.MultiSigApproval{
			ID:         uuid.New(),
			UserID:     actor,
			Action:     action,
			Approved:   true,
			Signature:  signature,
			ApprovedAt: now,
		})
		metrics.ApprovalVotesTotal.WithLabelValues("escrow", "approve").Inc()

		votes = e.VotesFor(action)
		count := domain.CountApprovals(votes)
		outcome.Approvals = count
		outcome.Required = e.RequiredApprovals
		if count < e.RequiredApprovals {
			outcome.PendingApproval = true
			e.AppendHistory(verb+"_approval", actor, fmt.Sprintf("approval %d of %d recorded", count, e.RequiredApprovals), now)
			return nil
		}
	}

	if action == domain.ApprovalActionRelease {
		e.Status = domain.EscrowStatusCompleted
		e.CompletedAt = &now
		e.AppendHistory("released", actor, "funds released to seller", now)
	} else {
		e.Status = domain.EscrowStatusRefunded
		e.AppendHistory("refunded", actor, reason, now)
	}
	return nil
}

// maybeAutoRelease completes the escrow when every release condition is met
// and the release type is automatic. The engine acts as the seller here.
func (s *EscrowServiceImpl) maybeAutoRelease(e *domain.Escrow, now time.Time) {
	if e.ReleaseType != domain.ReleaseTypeAutomatic {
		return
	}
	if e.Status != domain.EscrowStatusFunded && e.Status != domain.EscrowStatusActive {
		return
	}
	// An escrow with no conditions has nothing to satisfy; it settles via
	// the expiry sweeper, not at funding time.
	if len(e.Conditions) == 0 {
		return
	}
	if e.HasActiveDispute() || !e.AllConditionsMet() {
		return
	}

	outcome := &ports.ReleaseOutcome{}
	if err := s.applySettlement(e, e.SellerID, "", domain.ApprovalActionRelease, "", true, outcome); err != nil {
		s.log.Warn().Err(err).Str("escrow_id", e.ID.String()).Msg("auto-release blocked")
	}
}

// Cancel aborts a not-yet-funded escrow.
func (s *EscrowServiceImpl) Cancel(ctx context.Context, id uuid.UUID, actor uuid.UUID, reason string) (*domain.Escrow, error) {
	updated, err := s.mutate(ctx, id, func(e *domain.Escrow) error {
		if !e.IsParty(actor) {
			return apperror.ErrNotParty()
		}
		if e.Status != domain.EscrowStatusCreated {
			return apperror.ErrIllegalTransition("cancel", string(e.Status))
		}
		e.Status = domain.EscrowStatusCancelled
		e.AppendHistory("cancelled", actor, reason, time.Now().UTC())
		return nil
	})
	if err != nil {
		return nil, s.reject(ctx, domain.AuditActionEscrowCancel, actor, id.String(), err)
	}

	metrics.EscrowTransitionsTotal.WithLabelValues(string(domain.EscrowStatusCancelled)).Inc()
	s.auditLog(ctx, domain.AuditActionEscrowCancel, actor, id.String(), "success", reason)
	return updated, nil
}

// FileDispute opens a dispute against a funded/active escrow.
func (s *EscrowServiceImpl) FileDispute(ctx context.Context, id uuid.UUID, filedBy uuid.UUID, in ports.DisputeInput) (*domain.Escrow, error) {
	if in.Reason == "" {
		return nil, s.reject(ctx, domain.AuditActionDisputeFile, filedBy, id.String(), apperror.Validation("dispute reason is required"))
	}

	updated, err := s.mutate(ctx, id, func(e *domain.Escrow) error {
		if !e.IsParty(filedBy) {
			return apperror.ErrNotParty()
		}
		if e.Status != domain.EscrowStatusFunded && e.Status != domain.EscrowStatusActive {
			return apperror.ErrIllegalTransition("dispute", string(e.Status))
		}
		if e.HasActiveDispute() {
			return apperror.StateConflict("Escrow already has an active dispute")
		}

		now := time.Now().UTC()
		e.Disputes = append(e.Disputes, domain.Dispute{
			ID:          uuid.New(),
			FiledBy:     filedBy,
			Reason:      in.Reason,
			Description: in.Description,
			Evidence:    in.Evidence,
			Status:      domain.DisputeStatusOpen,
			FiledAt:     now,
		})
		e.Status = domain.EscrowStatusDisputed
		e.AppendHistory("dispute_filed", filedBy, in.Reason, now)
		return nil
	})
	if err != nil {
		return nil, s.reject(ctx, domain.AuditActionDisputeFile, filedBy, id.String(), err)
	}

	metrics.EscrowTransitionsTotal.WithLabelValues(string(domain.EscrowStatusDisputed)).Inc()
	s.auditLog(ctx, domain.AuditActionDisputeFile, filedBy, id.String(), "success", in.Reason)
	return updated, nil
}

// ResolveDispute closes a dispute and applies the verdict to the escrow.
func (s *EscrowServiceImpl) ResolveDispute(ctx context.Context, id, disputeID uuid.UUID, resolution domain.DisputeResolution, details string, resolvedBy uuid.UUID) (*domain.Escrow, error) {
	if !resolution.IsValid() {
		return nil, s.reject(ctx, domain.AuditActionDisputeResolve, resolvedBy, id.String(), apperror.Validation("unknown dispute resolution"))
	}

	updated, err := s.mutate(ctx, id, func(e *domain.Escrow) error {
		d := e.FindDispute(disputeID)
		if d == nil {
			return apperror.ErrNotFound("dispute")
		}
		if !d.IsActive() {
			return apperror.StateConflict("Dispute is already resolved")
		}

		now := time.Now().UTC()
		d.Status = domain.DisputeStatusResolved
		d.Resolution = resolution
		d.ResolutionDetails = details
		d.ResolvedBy = &resolvedBy
		d.ResolvedAt = &now

		switch resolution {
		case domain.ResolutionBuyerFavor:
			e.Status = domain.EscrowStatusRefunded
		default:
			// seller_favor, partial_refund and custom all complete the escrow;
			// partial splits are settled out of band from the details payload.
			e.Status = domain.EscrowStatusCompleted
			e.CompletedAt = &now
		}
		e.AppendHistory("dispute_resolved", resolvedBy, fmt.Sprintf("%s: %s", resolution, details), now)
		return nil
	})
	if err != nil {
		return nil, s.reject(ctx, domain.AuditActionDisputeResolve, resolvedBy, id.String(), err)
	}

	metrics.EscrowTransitionsTotal.WithLabelValues(string(updated.Status)).Inc()
	s.auditLog(ctx, domain.AuditActionDisputeResolve, resolvedBy, id.String(), "success", string(resolution))
	return updated, nil
}

// CompleteMilestone marks a milestone delivered (seller only).
func (s *EscrowServiceImpl) CompleteMilestone(ctx context.Context, id, milestoneID uuid.UUID, actor uuid.UUID) (*domain.Escrow, error) {
	return s.updateMilestone(ctx, id, milestoneID, actor, true)
}

// ReleaseMilestone releases a completed milestone's funds (buyer only).
func (s *EscrowServiceImpl) ReleaseMilestone(ctx context.Context, id, milestoneID uuid.UUID, actor uuid.UUID) (*domain.Escrow, error) {
	return s.updateMilestone(ctx, id, milestoneID, actor, false)
}

func (s *EscrowServiceImpl) updateMilestone(ctx context.Context, id, milestoneID uuid.UUID, actor uuid.UUID, complete bool) (*domain.Escrow, error) {
	updated, err := s.mutate(ctx, id, func(e *domain.Escrow) error {
		if e.Status != domain.EscrowStatusFunded && e.Status != domain.EscrowStatusActive {
			return apperror.ErrIllegalTransition("update milestone of", string(e.Status))
		}
		m := e.FindMilestone(milestoneID)
		if m == nil {
			return apperror.ErrNotFound("milestone")
		}

		now := time.Now().UTC()
		if complete {
			if actor != e.SellerID {
				return apperror.ErrNotSeller()
			}
			if m.Status != domain.MilestoneStatusPending {
				return apperror.StateConflict(fmt.Sprintf("Cannot complete a milestone in status %s", m.Status))
			}
			m.Status = domain.MilestoneStatusCompleted
			m.CompletedAt = &now
			e.AppendHistory("milestone_completed", actor, m.Title, now)
		} else {
			if actor != e.BuyerID {
				return apperror.ErrNotBuyer()
			}
			if m.Status != domain.MilestoneStatusCompleted {
				return apperror.StateConflict(fmt.Sprintf("Cannot release a milestone in status %s", m.Status))
			}
			m.Status = domain.MilestoneStatusReleased
			m.ReleasedAt = &now
			m.ApprovedBy = &actor
			e.AppendHistory("milestone_released", actor, m.Title, now)
		}

		// First milestone activity marks the escrow as in progress.
		if e.Status == domain.EscrowStatusFunded {
			e.Status = domain.EscrowStatusActive
		}

		EvaluateConditions(e, now)

		// The escrow completes only once the buyer has released every
		// milestone; completion alone is the seller's claim.
		if e.AllMilestonesReleased() && !e.HasActiveDispute() {
			e.Status = domain.EscrowStatusCompleted
			e.CompletedAt = &now
			e.AppendHistory("released", actor, "all milestones released", now)
		}
		return nil
	})
	if err != nil {
		return nil, s.reject(ctx, domain.AuditActionMilestoneUpdate, actor, id.String(), err)
	}

	if updated.Status == domain.EscrowStatusCompleted {
		metrics.EscrowTransitionsTotal.WithLabelValues(string(domain.EscrowStatusCompleted)).Inc()
	}
	s.auditLog(ctx, domain.AuditActionMilestoneUpdate, actor, id.String(), "success", milestoneID.String())
	return updated, nil
}

// ConfirmDelivery satisfies a delivery_confirmation condition (buyer only).
func (s *EscrowServiceImpl) ConfirmDelivery(ctx context.Context, id, conditionID uuid.UUID, actor uuid.UUID) (*domain.Escrow, error) {
	updated, err := s.mutate(ctx, id, func(e *domain.Escrow) error {
		if actor != e.BuyerID {
			return apperror.ErrNotBuyer()
		}
		if e.Status != domain.EscrowStatusFunded && e.Status != domain.EscrowStatusActive {
			return apperror.ErrIllegalTransition("confirm delivery of", string(e.Status))
		}
		c := e.FindCondition(conditionID)
		if c == nil {
			return apperror.ErrNotFound("release condition")
		}
		if c.Type != domain.ConditionDeliveryConfirmation {
			return apperror.Validation("condition is not a delivery confirmation")
		}

		now := time.Now().UTC()
		c.MarkMet(now)
		e.AppendHistory("delivery_confirmed", actor, "", now)

		EvaluateConditions(e, now)
		s.maybeAutoRelease(e, now)
		return nil
	})
	if err != nil {
		return nil, s.reject(ctx, domain.AuditActionEscrowRelease, actor, id.String(), err)
	}

	s.auditLog(ctx, domain.AuditActionEscrowRelease, actor, id.String(), "delivery_confirmed", conditionID.String())
	return updated, nil
}

// Sweep processes expired funded/active escrows: automatic release types are
// auto-released, the rest transition to expired. Used by the expiry sweeper.
func (s *EscrowServiceImpl) Sweep(ctx context.Context, now time.Time) (released, expired int, err error) {
	candidates, err := s.repo.ListExpired(ctx, now)
	if err != nil {
		return 0, 0, apperror.InternalError(fmt.Errorf("list expired escrows: %w", err))
	}

	for i := range candidates {
		e := &candidates[i]
		if e.HasActiveDispute() {
			continue
		}

		if e.ReleaseType == domain.ReleaseTypeAutomatic {
			outcome, serr := s.settle(ctx, e.ID, e.SellerID, "", domain.ApprovalActionRelease, "", true)
			if serr != nil {
				s.log.Warn().Err(serr).Str("escrow_id", e.ID.String()).Msg("sweeper auto-release failed")
				continue
			}
			if !outcome.PendingApproval {
				released++
			}
			continue
		}

		_, serr := s.mutate(ctx, e.ID, func(e *domain.Escrow) error {
			if e.Status != domain.EscrowStatusFunded && e.Status != domain.EscrowStatusActive {
				return apperror.ErrIllegalTransition("expire", string(e.Status))
			}
			if !e.IsExpired(now) {
				return apperror.StateConflict("Escrow is no longer expired")
			}
			e.Status = domain.EscrowStatusExpired
			e.AppendHistory("expired", uuid.Nil, "auto-release window elapsed", now)
			return nil
		})
		if serr != nil {
			s.log.Warn().Err(serr).Str("escrow_id", e.ID.String()).Msg("sweeper expiry failed")
			continue
		}
		metrics.EscrowTransitionsTotal.WithLabelValues(string(domain.EscrowStatusExpired)).Inc()
		s.auditLog(ctx, domain.AuditActionEscrowExpire, uuid.Nil, e.ID.String(), "success", "")
		expired++
	}

	return released, expired, nil
}

// mutate runs a read-modify-write cycle with optimistic-concurrency retry.
func (s *EscrowServiceImpl) mutate(ctx context.Context, id uuid.UUID, fn func(e *domain.Escrow) error) (*domain.Escrow, error) {
	var result *domain.Escrow
	err := retry.Do(ctx, mutationAttempts, mutationBaseDelay, func() error {
		e, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return retry.Permanent(apperror.InternalError(fmt.Errorf("get escrow: %w", err)))
		}
		if e == nil {
			return retry.Permanent(apperror.ErrNotFound("escrow"))
		}
		if err := fn(e); err != nil {
			return retry.Permanent(err)
		}
		e.UpdatedAt = time.Now().UTC()
		if err := s.repo.Update(ctx, e); err != nil {
			if errors.Is(err, ports.ErrVersionConflict) {
				return err // retry with a fresh read
			}
			return retry.Permanent(apperror.InternalError(fmt.Errorf("update escrow: %w", err)))
		}
		result = e
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

// verifyOnChain calls the blockchain collaborator with bounded retries.
func (s *EscrowServiceImpl) verifyOnChain(ctx context.Context, currency domain.Cryptocurrency, txHash, address string, amount float64) (*ports.VerificationResult, error) {
	var result *ports.VerificationResult
	err := retry.Do(ctx, verifyAttempts, verifyBaseDelay, func() error {
		r, err := s.verifier.Verify(ctx, currency, txHash, address, amount)
		if err != nil {
			return err // transient: node unreachable, timeout
		}
		result = r
		return nil
	})
	if err != nil {
		metrics.ChainVerificationsTotal.WithLabelValues(string(currency), "unavailable").Inc()
		return nil, apperror.ErrChainUnavailable(err)
	}
	if !result.Verified {
		metrics.ChainVerificationsTotal.WithLabelValues(string(currency), "rejected").Inc()
		reason := result.Error
		if reason == "" {
			reason = "transaction not confirmed"
		}
		return nil, apperror.ErrVerificationFailed(reason)
	}
	metrics.ChainVerificationsTotal.WithLabelValues(string(currency), "verified").Inc()
	return result, nil
}

// reject logs a rejected mutation attempt to the audit trail and passes the
// error through. Every mutating operation is audited regardless of outcome.
func (s *EscrowServiceImpl) reject(ctx context.Context, action domain.AuditAction, actor uuid.UUID, resourceID string, err error) error {
	outcome := "error"
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		outcome = appErr.Code
	}
	s.auditLog(ctx, action, actor, resourceID, outcome, "")
	return err
}

func (s *EscrowServiceImpl) auditLog(ctx context.Context, action domain.AuditAction, actor uuid.UUID, resourceID, outcome, details string) {
	if s.audit == nil {
		return
	}
	entry := &domain.AuditLog{
		ID:           uuid.New(),
		Action:       action,
		ResourceType: "escrow",
		ResourceID:   resourceID,
		Outcome:      outcome,
		Details:      details,
		CreatedAt:    time.Now().UTC(),
	}
	if actor != uuid.Nil {
		entry.UserID = &actor
	}
	s.audit.Log(ctx, entry)
}
