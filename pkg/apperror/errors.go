package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Validation (VAL) ----

// Validation returns a generic validation error with a caller-supplied message.
func Validation(message string) *AppError {
	return New("VAL_001", message, http.StatusBadRequest)
}

func ErrSelfDealing() *AppError {
	return New("VAL_002", "Buyer and seller must be different users", http.StatusBadRequest)
}

func ErrMilestoneSumMismatch() *AppError {
	return New("VAL_003", "Total milestone amount must equal escrow amount", http.StatusBadRequest)
}

func ErrInvalidCurrency(currency string) *AppError {
	return New("VAL_004", fmt.Sprintf("Unsupported cryptocurrency: %s", currency), http.StatusBadRequest)
}

func ErrInvalidAddress(message string) *AppError {
	return New("VAL_005", message, http.StatusBadRequest)
}

// ---- Authorization (AUTHZ) ----

func ErrNotParty() *AppError {
	return New("AUTHZ_001", "Only the buyer or seller may perform this action", http.StatusForbidden)
}

func ErrNotBuyer() *AppError {
	return New("AUTHZ_002", "Only the buyer may perform this action", http.StatusForbidden)
}

func ErrNotSeller() *AppError {
	return New("AUTHZ_003", "Only the seller may perform this action", http.StatusForbidden)
}

func ErrNotSigner() *AppError {
	return New("AUTHZ_004", "User is not an authorized signer for this wallet", http.StatusForbidden)
}

func ErrNotInitiator() *AppError {
	return New("AUTHZ_005", "Only the initiator or wallet owner may cancel", http.StatusForbidden)
}

func ErrAdminRequired() *AppError {
	return New("AUTHZ_006", "Administrator role required", http.StatusForbidden)
}

// ---- Not found (NF) ----

func ErrNotFound(entity string) *AppError {
	return New("NF_001", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- State conflicts (STATE) ----

// StateConflict reports an action that is illegal in the record's current status.
func StateConflict(message string) *AppError {
	return New("STATE_001", message, http.StatusBadRequest)
}

func ErrIllegalTransition(action string, status string) *AppError {
	return New("STATE_001", fmt.Sprintf("Cannot %s an escrow in status %s", action, status), http.StatusBadRequest)
}

func ErrActiveDispute() *AppError {
	return New("STATE_002", "Escrow has an active dispute", http.StatusBadRequest)
}

func ErrAlreadyApproved() *AppError {
	return New("STATE_003", "Signer has already voted on this action", http.StatusBadRequest)
}

func ErrApprovalExpired() *AppError {
	return New("STATE_004", "Transaction approval has expired", http.StatusBadRequest)
}

func ErrPendingApprovalExists() *AppError {
	return New("STATE_005", "Order already has a pending or approved transaction", http.StatusBadRequest)
}

// ---- Duplicate execution (DUP) ----

func ErrDuplicateExecution() *AppError {
	return New("DUP_001", "Transaction hash has already been used", http.StatusBadRequest)
}

// ---- Chain verification (CHAIN) ----

func ErrVerificationFailed(reason string) *AppError {
	return New("CHAIN_001", fmt.Sprintf("Blockchain verification failed: %s", reason), http.StatusBadRequest)
}

func ErrChainUnavailable(err error) *AppError {
	return Wrap("CHAIN_002", "Blockchain verification service unavailable", http.StatusBadGateway, err)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_001", "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Rate limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_002", "Internal database error", http.StatusInternalServerError, err)
}
