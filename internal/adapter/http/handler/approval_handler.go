package handler

import (
	"cstore/internal/adapter/http/dto"
	"cstore/internal/core/domain"
	"cstore/internal/core/ports"
	"cstore/pkg/apperror"
	"cstore/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ApprovalHandler handles multi-sig wallet transfer endpoints.
type ApprovalHandler struct {
	approvalSvc ports.ApprovalService
}

// NewApprovalHandler creates a new ApprovalHandler.
func NewApprovalHandler(approvalSvc ports.ApprovalService) *ApprovalHandler {
	return &ApprovalHandler{approvalSvc: approvalSvc}
}

// Create handles POST /api/v1/wallets/multi-sig/transactions.
func (h *ApprovalHandler) Create(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.CreateTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	walletID, err := uuid.Parse(req.WalletID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid wallet_id"))
		return
	}

	in := ports.CreateTransferInput{
		WalletID:    walletID,
		Currency:    domain.Cryptocurrency(req.Cryptocurrency),
		Amount:      req.Amount,
		ToAddress:   req.ToAddress,
		FromAddress: req.FromAddress,
	}
	if req.OrderID != nil {
		orderID, err := uuid.Parse(*req.OrderID)
		if err != nil {
			response.Error(c, apperror.Validation("invalid order_id"))
			return
		}
		in.OrderID = &orderID
	}

	t, err := h.approvalSvc.Create(c.Request.Context(), in, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, t)
}

// List handles GET /api/v1/wallets/multi-sig/transactions.
func (h *ApprovalHandler) List(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}

	var walletID *uuid.UUID
	if w := c.Query("wallet_id"); w != "" {
		id, err := uuid.Parse(w)
		if err != nil {
			response.Error(c, apperror.Validation("invalid wallet_id"))
			return
		}
		walletID = &id
	}

	list, err := h.approvalSvc.List(c.Request.Context(), walletID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// Get handles GET /api/v1/wallets/multi-sig/transactions/:id.
func (h *ApprovalHandler) Get(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	t, err := h.approvalSvc.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, t)
}

// Approve handles POST /api/v1/wallets/multi-sig/transactions/:id/approve.
func (h *ApprovalHandler) Approve(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req dto.ApproveTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	t, err := h.approvalSvc.Approve(c.Request.Context(), id, actor, *req.Approved, req.Signature, req.Comment)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, t)
}

// Execute handles POST /api/v1/wallets/multi-sig/transactions/:id/execute.
func (h *ApprovalHandler) Execute(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req dto.ExecuteTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	t, err := h.approvalSvc.Execute(c.Request.Context(), id, req.TransactionHash, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, t)
}

// Cancel handles DELETE /api/v1/wallets/multi-sig/transactions/:id.
func (h *ApprovalHandler) Cancel(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req dto.CancelTransferRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, apperror.Validation(err.Error()))
			return
		}
	}

	t, err := h.approvalSvc.Cancel(c.Request.Context(), id, actor, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, t)
}
