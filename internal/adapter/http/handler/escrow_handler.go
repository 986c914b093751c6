package handler

import (
	"context"

	"cstore/internal/adapter/http/dto"
	"cstore/internal/adapter/http/middleware"
	"cstore/internal/core/domain"
	"cstore/internal/core/ports"
	"cstore/pkg/apperror"
	"cstore/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// EscrowHandler handles escrow lifecycle endpoints.
type EscrowHandler struct {
	escrowSvc ports.EscrowService
}

// NewEscrowHandler creates a new EscrowHandler.
func NewEscrowHandler(escrowSvc ports.EscrowService) *EscrowHandler {
	return &EscrowHandler{escrowSvc: escrowSvc}
}

// Create handles POST /api/v1/escrow.
func (h *EscrowHandler) Create(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.CreateEscrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	buyerID, err := uuid.Parse(req.BuyerID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid buyer_id"))
		return
	}
	sellerID, err := uuid.Parse(req.SellerID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid seller_id"))
		return
	}

	in := ports.CreateEscrowInput{
		BuyerID:           buyerID,
		SellerID:          sellerID,
		Amount:            req.Amount,
		Currency:          domain.Cryptocurrency(req.Cryptocurrency),
		AmountUSD:         req.AmountUSD,
		DepositAddress:    req.DepositAddress,
		ReleaseAddress:    req.ReleaseAddress,
		RefundAddress:     req.RefundAddress,
		ReleaseType:       domain.ReleaseType(req.ReleaseType),
		RequiresMultiSig:  req.RequiresMultiSig,
		RequiredApprovals: req.RequiredApprovals,
	}
	for _, m := range req.Milestones {
		in.Milestones = append(in.Milestones, ports.MilestoneInput{Title: m.Title, Amount: m.Amount})
	}
	for _, cond := range req.Conditions {
		in.Conditions = append(in.Conditions, ports.ConditionInput{
			Type: domain.ConditionType(cond.Type),
			At:   cond.At,
			Days: cond.Days,
		})
	}

	e, err := h.escrowSvc.Create(c.Request.Context(), in, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, e)
}

// Get handles GET /api/v1/escrow/:id.
func (h *EscrowHandler) Get(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	// Admins see any escrow; parties see their own.
	if role, _ := c.Get(middleware.CtxUserRole); role == middleware.RoleAdmin {
		actor = uuid.Nil
	}

	e, err := h.escrowSvc.Get(c.Request.Context(), id, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, e)
}

// List handles GET /api/v1/escrow.
func (h *EscrowHandler) List(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}

	params := ports.EscrowListParams{UserID: &actor}
	if role, _ := c.Get(middleware.CtxUserRole); role == middleware.RoleAdmin {
		params.UserID = nil
	}
	if s := c.Query("status"); s != "" {
		status := domain.EscrowStatus(s)
		params.Status = &status
	}
	if cur := c.Query("cryptocurrency"); cur != "" {
		currency := domain.Cryptocurrency(cur)
		params.Currency = &currency
	}

	escrows, err := h.escrowSvc.List(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, escrows)
}

// Fund handles POST /api/v1/escrow/:id/fund.
func (h *EscrowHandler) Fund(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req dto.FundEscrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	e, err := h.escrowSvc.Fund(c.Request.Context(), id, req.TransactionHash, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, e)
}

// Release handles POST /api/v1/escrow/:id/release.
func (h *EscrowHandler) Release(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req dto.ReleaseEscrowRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, apperror.Validation(err.Error()))
			return
		}
	}

	outcome, err := h.escrowSvc.Release(c.Request.Context(), id, actor, req.Signature)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, outcome)
}

// Refund handles POST /api/v1/escrow/:id/refund.
func (h *EscrowHandler) Refund(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req dto.RefundEscrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	outcome, err := h.escrowSvc.Refund(c.Request.Context(), id, actor, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, outcome)
}

// Cancel handles POST /api/v1/escrow/:id/cancel.
func (h *EscrowHandler) Cancel(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req dto.CancelEscrowRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, apperror.Validation(err.Error()))
			return
		}
	}

	e, err := h.escrowSvc.Cancel(c.Request.Context(), id, actor, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, e)
}

// FileDispute handles POST /api/v1/escrow/:id/dispute.
func (h *EscrowHandler) FileDispute(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req dto.FileDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	e, err := h.escrowSvc.FileDispute(c.Request.Context(), id, actor, ports.DisputeInput{
		Reason:      req.Reason,
		Description: req.Description,
		Evidence:    req.Evidence,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, e)
}

// ResolveDispute handles POST /api/v1/escrow/:id/dispute/:disputeId/resolve (admin only).
func (h *EscrowHandler) ResolveDispute(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	disputeID, ok := pathUUID(c, "disputeId")
	if !ok {
		return
	}

	var req dto.ResolveDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	e, err := h.escrowSvc.ResolveDispute(c.Request.Context(), id, disputeID,
		domain.DisputeResolution(req.Resolution), req.Details, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, e)
}

// CompleteMilestone handles POST /api/v1/escrow/:id/milestone/:milestoneId/complete.
func (h *EscrowHandler) CompleteMilestone(c *gin.Context) {
	h.milestoneAction(c, h.escrowSvc.CompleteMilestone)
}

// ReleaseMilestone handles POST /api/v1/escrow/:id/milestone/:milestoneId/release.
func (h *EscrowHandler) ReleaseMilestone(c *gin.Context) {
	h.milestoneAction(c, h.escrowSvc.ReleaseMilestone)
}

func (h *EscrowHandler) milestoneAction(c *gin.Context, fn func(ctx context.Context, id, milestoneID, actor uuid.UUID) (*domain.Escrow, error)) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	milestoneID, ok := pathUUID(c, "milestoneId")
	if !ok {
		return
	}

	e, err := fn(c.Request.Context(), id, milestoneID, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, e)
}

// ConfirmDelivery handles POST /api/v1/escrow/:id/conditions/:conditionId/confirm.
func (h *EscrowHandler) ConfirmDelivery(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	conditionID, ok := pathUUID(c, "conditionId")
	if !ok {
		return
	}

	e, err := h.escrowSvc.ConfirmDelivery(c.Request.Context(), id, conditionID, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, e)
}

// Stats handles GET /api/v1/escrow/stats (admin only).
func (h *EscrowHandler) Stats(c *gin.Context) {
	stats, err := h.escrowSvc.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, stats)
}

// currentUser extracts the authenticated user ID set by JWTAuth.
func currentUser(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(middleware.CtxUserID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return uuid.Nil, false
	}
	return id, true
}

// pathUUID parses a UUID path parameter.
func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Error(c, apperror.Validation("invalid "+name))
		return uuid.Nil, false
	}
	return id, true
}
