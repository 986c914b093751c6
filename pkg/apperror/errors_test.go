package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	err := New("VAL_001", "bad input", http.StatusBadRequest)
	assert.Equal(t, "[VAL_001] bad input", err.Error())

	wrapped := Wrap("SYS_001", "boom", http.StatusInternalServerError, errors.New("disk full"))
	assert.Equal(t, "[SYS_001] boom: disk full", wrapped.Error())
}

func TestAppError_Unwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := InternalError(inner)

	assert.ErrorIs(t, err, inner)

	var appErr *AppError
	require.ErrorAs(t, fmt.Errorf("context: %w", err), &appErr)
	assert.Equal(t, "SYS_001", appErr.Code)
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		err    *AppError
		code   string
		status int
	}{
		{Validation("x"), "VAL_001", http.StatusBadRequest},
		{ErrSelfDealing(), "VAL_002", http.StatusBadRequest},
		{ErrMilestoneSumMismatch(), "VAL_003", http.StatusBadRequest},
		{ErrInvalidCurrency("DOGE"), "VAL_004", http.StatusBadRequest},
		{ErrInvalidAddress("x"), "VAL_005", http.StatusBadRequest},
		{ErrNotParty(), "AUTHZ_001", http.StatusForbidden},
		{ErrNotBuyer(), "AUTHZ_002", http.StatusForbidden},
		{ErrNotSeller(), "AUTHZ_003", http.StatusForbidden},
		{ErrNotSigner(), "AUTHZ_004", http.StatusForbidden},
		{ErrNotInitiator(), "AUTHZ_005", http.StatusForbidden},
		{ErrAdminRequired(), "AUTHZ_006", http.StatusForbidden},
		{ErrNotFound("escrow"), "NF_001", http.StatusNotFound},
		{StateConflict("x"), "STATE_001", http.StatusBadRequest},
		{ErrActiveDispute(), "STATE_002", http.StatusBadRequest},
		{ErrAlreadyApproved(), "STATE_003", http.StatusBadRequest},
		{ErrApprovalExpired(), "STATE_004", http.StatusBadRequest},
		{ErrPendingApprovalExists(), "STATE_005", http.StatusBadRequest},
		{ErrDuplicateExecution(), "DUP_001", http.StatusBadRequest},
		{ErrVerificationFailed("x"), "CHAIN_001", http.StatusBadRequest},
		{ErrChainUnavailable(errors.New("x")), "CHAIN_002", http.StatusBadGateway},
		{ErrInvalidToken(), "AUTH_001", http.StatusUnauthorized},
		{ErrRateLimitExceeded(), "RATE_001", http.StatusTooManyRequests},
		{InternalError(errors.New("x")), "SYS_001", http.StatusInternalServerError},
		{ErrDatabaseError(errors.New("x")), "SYS_002", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.code, tt.err.Code)
		assert.Equal(t, tt.status, tt.err.HTTPStatus, tt.code)
		assert.NotEmpty(t, tt.err.Message, tt.code)
	}
}

func TestErrNotFound_Message(t *testing.T) {
	assert.Equal(t, "escrow not found", ErrNotFound("escrow").Message)
}
