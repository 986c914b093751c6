package handler

import (
	"context"
	"net/http"
	"testing"

	"cstore/internal/core/domain"
	"cstore/internal/core/ports"
	"cstore/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeApprovalSvc records the last call made through the ApprovalService port.
type fakeApprovalSvc struct {
	transfer *domain.TransactionApproval
	list     []domain.TransactionApproval
	err      error

	calls []string

	lastInput     ports.CreateTransferInput
	lastActor     uuid.UUID
	lastID        uuid.UUID
	lastWalletID  *uuid.UUID
	lastApproved  bool
	lastSignature string
	lastComment   string
	lastTxHash    string
	lastReason    string
}

func (s *fakeApprovalSvc) record(call string) { s.calls = append(s.calls, call) }

func (s *fakeApprovalSvc) Create(_ context.Context, in ports.CreateTransferInput, initiator uuid.UUID) (*domain.TransactionApproval, error) {
	s.record("Create")
	s.lastInput, s.lastActor = in, initiator
	return s.transfer, s.err
}

func (s *fakeApprovalSvc) Get(_ context.Context, id uuid.UUID) (*domain.TransactionApproval, error) {
	s.record("Get")
	s.lastID = id
	return s.transfer, s.err
}

func (s *fakeApprovalSvc) List(_ context.Context, walletID *uuid.UUID) ([]domain.TransactionApproval, error) {
	s.record("List")
	s.lastWalletID = walletID
	return s.list, s.err
}

func (s *fakeApprovalSvc) Approve(_ context.Context, id uuid.UUID, signer uuid.UUID, approved bool, signature, comment string) (*domain.TransactionApproval, error) {
	s.record("Approve")
	s.lastID, s.lastActor = id, signer
	s.lastApproved, s.lastSignature, s.lastComment = approved, signature, comment
	return s.transfer, s.err
}

func (s *fakeApprovalSvc) Execute(_ context.Context, id uuid.UUID, txHash string, actor uuid.UUID) (*domain.TransactionApproval, error) {
	s.record("Execute")
	s.lastID, s.lastTxHash, s.lastActor = id, txHash, actor
	return s.transfer, s.err
}

func (s *fakeApprovalSvc) Cancel(_ context.Context, id uuid.UUID, actor uuid.UUID, reason string) (*domain.TransactionApproval, error) {
	s.record("Cancel")
	s.lastID, s.lastActor, s.lastReason = id, actor, reason
	return s.transfer, s.err
}

func pendingTransfer() *domain.TransactionApproval {
	return &domain.TransactionApproval{
		ID:     uuid.New(),
		Status: domain.TransactionApprovalPending,
	}
}

const transfersPath = "/api/v1/wallets/multi-sig/transactions"

func TestApprovalHandler_Create(t *testing.T) {
	svc := &fakeApprovalSvc{transfer: pendingTransfer()}
	r := newTestRouter(nil, svc)

	walletID := uuid.New()
	orderID := uuid.New()
	w := doJSON(t, r, http.MethodPost, transfersPath, userToken, gin.H{
		"wallet_id":      walletID.String(),
		"order_id":       orderID.String(),
		"cryptocurrency": "BTC",
		"amount":         0.5,
		"to_address":     "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa",
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, walletID, svc.lastInput.WalletID)
	require.NotNil(t, svc.lastInput.OrderID)
	assert.Equal(t, orderID, *svc.lastInput.OrderID)
	assert.Equal(t, domain.CurrencyBTC, svc.lastInput.Currency)
	assert.Equal(t, testUserID, svc.lastActor)
}

func TestApprovalHandler_Create_OrderIsOptional(t *testing.T) {
	svc := &fakeApprovalSvc{transfer: pendingTransfer()}
	r := newTestRouter(nil, svc)

	w := doJSON(t, r, http.MethodPost, transfersPath, userToken, gin.H{
		"wallet_id":      uuid.New().String(),
		"cryptocurrency": "BTC",
		"amount":         0.5,
		"to_address":     "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa",
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Nil(t, svc.lastInput.OrderID)
}

func TestApprovalHandler_Create_BindingErrors(t *testing.T) {
	tests := map[string]gin.H{
		"malformed wallet id": {
			"wallet_id": "not-a-uuid", "cryptocurrency": "BTC", "amount": 0.5, "to_address": "a",
		},
		"malformed order id": {
			"wallet_id": uuid.New().String(), "order_id": "not-a-uuid",
			"cryptocurrency": "BTC", "amount": 0.5, "to_address": "a",
		},
		"missing amount": {
			"wallet_id": uuid.New().String(), "cryptocurrency": "BTC", "to_address": "a",
		},
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			svc := &fakeApprovalSvc{}
			r := newTestRouter(nil, svc)

			w := doJSON(t, r, http.MethodPost, transfersPath, userToken, body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Empty(t, svc.calls)
		})
	}
}

func TestApprovalHandler_List(t *testing.T) {
	svc := &fakeApprovalSvc{list: []domain.TransactionApproval{*pendingTransfer()}}
	r := newTestRouter(nil, svc)

	w := doJSON(t, r, http.MethodGet, transfersPath, userToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, svc.lastWalletID)

	walletID := uuid.New()
	w = doJSON(t, r, http.MethodGet, transfersPath+"?wallet_id="+walletID.String(), userToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, svc.lastWalletID)
	assert.Equal(t, walletID, *svc.lastWalletID)

	w = doJSON(t, r, http.MethodGet, transfersPath+"?wallet_id=junk", userToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestApprovalHandler_Get(t *testing.T) {
	svc := &fakeApprovalSvc{transfer: pendingTransfer()}
	r := newTestRouter(nil, svc)
	id := uuid.New()

	w := doJSON(t, r, http.MethodGet, transfersPath+"/"+id.String(), userToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id, svc.lastID)

	w = doJSON(t, r, http.MethodGet, transfersPath+"/not-a-uuid", userToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestApprovalHandler_Approve(t *testing.T) {
	svc := &fakeApprovalSvc{transfer: pendingTransfer()}
	r := newTestRouter(nil, svc)
	id := uuid.New()
	path := transfersPath + "/" + id.String() + "/approve"

	w := doJSON(t, r, http.MethodPost, path, userToken, gin.H{
		"approved":  true,
		"signature": "sig",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, svc.lastApproved)
	assert.Equal(t, "sig", svc.lastSignature)
	assert.Equal(t, testUserID, svc.lastActor)

	w = doJSON(t, r, http.MethodPost, path, userToken, gin.H{
		"approved": false,
		"comment":  "destination looks wrong",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, svc.lastApproved, "an explicit rejection is not an approval")
	assert.Equal(t, "destination looks wrong", svc.lastComment)
}

func TestApprovalHandler_Approve_RequiresVerdict(t *testing.T) {
	svc := &fakeApprovalSvc{}
	r := newTestRouter(nil, svc)
	id := uuid.New()

	// The approved field is a required pointer so that an explicit false is
	// distinguishable from an omitted field.
	w := doJSON(t, r, http.MethodPost, transfersPath+"/"+id.String()+"/approve", userToken, gin.H{
		"comment": "no verdict given",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, svc.calls)
}

func TestApprovalHandler_Execute(t *testing.T) {
	svc := &fakeApprovalSvc{transfer: pendingTransfer()}
	r := newTestRouter(nil, svc)
	id := uuid.New()
	path := transfersPath + "/" + id.String() + "/execute"

	w := doJSON(t, r, http.MethodPost, path, userToken, gin.H{
		"transaction_hash": "0xbroadcast",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0xbroadcast", svc.lastTxHash)
	assert.Equal(t, testUserID, svc.lastActor)

	w = doJSON(t, r, http.MethodPost, path, userToken, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code, "transaction hash is required")
}

func TestApprovalHandler_Cancel(t *testing.T) {
	svc := &fakeApprovalSvc{transfer: pendingTransfer()}
	r := newTestRouter(nil, svc)
	id := uuid.New()
	path := transfersPath + "/" + id.String()

	w := doJSON(t, r, http.MethodDelete, path, userToken, nil)
	assert.Equal(t, http.StatusOK, w.Code, "cancel accepts an empty body")
	assert.Empty(t, svc.lastReason)

	w = doJSON(t, r, http.MethodDelete, path, userToken, gin.H{
		"reason": "fat-fingered the amount",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "fat-fingered the amount", svc.lastReason)
}

func TestApprovalHandler_ServiceErrorsMapped(t *testing.T) {
	svc := &fakeApprovalSvc{err: apperror.ErrNotSigner()}
	r := newTestRouter(nil, svc)
	id := uuid.New()

	w := doJSON(t, r, http.MethodPost, transfersPath+"/"+id.String()+"/approve", userToken, gin.H{
		"approved": true,
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	env := decodeEnvelope(t, w)
	assert.False(t, env.Success)
	assert.Equal(t, "User is not an authorized signer for this wallet", env.Message)
}

func TestApprovalHandler_Authentication(t *testing.T) {
	svc := &fakeApprovalSvc{}
	r := newTestRouter(nil, svc)

	w := doJSON(t, r, http.MethodGet, transfersPath, "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, svc.calls)
}
