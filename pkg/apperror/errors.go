package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an AppError independently of its transport mapping.
type Kind string

const (
	KindValidation        Kind = "VALIDATION"
	KindStateConflict     Kind = "STATE_CONFLICT"
	KindInsufficientFunds Kind = "INSUFFICIENT_FUNDS"
	KindNotFound          Kind = "NOT_FOUND"
	KindExpired           Kind = "EXPIRED"
	KindUnauthorized      Kind = "UNAUTHORIZED"
	KindForbidden         Kind = "FORBIDDEN"
	KindRateLimited       Kind = "RATE_LIMITED"
	KindInternal          Kind = "INTERNAL"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Kind       Kind   `json:"kind"`
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
func New(code string, kind Kind, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Kind:       kind,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, kind Kind, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Kind:       kind,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// KindOf returns the kind of err, or KindInternal for errors that are not AppErrors.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// HasCode reports whether err is an AppError carrying the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// ---- Validation (VAL) ----

func ErrInvalidAmount() *AppError {
	return New("VAL_001", KindValidation, "Amount must be positive, at most 9999999999.99, with at most 2 decimal places", http.StatusBadRequest)
}

func ErrAmountTooLow(minimum string) *AppError {
	return New("VAL_002", KindValidation, fmt.Sprintf("Amount is below the minimum of %s", minimum), http.StatusBadRequest)
}

func ErrCategoryMismatch(voucherCategory, vendorCategory string) *AppError {
	return New("VAL_003", KindValidation,
		fmt.Sprintf("Voucher is for the %s category, vendor category is %s", voucherCategory, vendorCategory),
		http.StatusUnprocessableEntity)
}

func ErrInvalidCategory() *AppError {
	return New("VAL_004", KindValidation, "Unknown voucher category", http.StatusBadRequest)
}

func ErrBodyTooLarge() *AppError {
	return New("VAL_005", KindValidation, "Request body too large", http.StatusRequestEntityTooLarge)
}

func ErrBalanceLimit() *AppError {
	return New("VAL_006", KindValidation, "Resulting balance would exceed 9999999999.99", http.StatusUnprocessableEntity)
}

// Validation returns a generic field-level validation error.
func Validation(message string) *AppError {
	return New("VAL_000", KindValidation, message, http.StatusBadRequest)
}

// ---- Lifecycle state (STATE) ----

func ErrInvalidState(message string) *AppError {
	return New("STATE_001", KindStateConflict, message, http.StatusConflict)
}

func ErrVoucherNotActive() *AppError {
	return New("STATE_002", KindStateConflict, "Voucher is not active", http.StatusConflict)
}

func ErrAlreadyTerminal() *AppError {
	return New("STATE_003", KindStateConflict, "Redemption request is no longer pending", http.StatusConflict)
}

// ---- Funds (FUNDS) ----

func ErrInsufficientFunds() *AppError {
	return New("FUNDS_001", KindInsufficientFunds, "Insufficient balance", http.StatusPaymentRequired)
}

func ErrAmountExceedsBalance() *AppError {
	return New("FUNDS_002", KindInsufficientFunds, "Amount exceeds the voucher's available balance", http.StatusUnprocessableEntity)
}

func ErrInsufficientEscrow() *AppError {
	return New("FUNDS_003", KindInsufficientFunds, "Voucher escrow does not cover this redemption", http.StatusConflict)
}

// ---- Lookup (NF) ----

func ErrNotFound(entity string) *AppError {
	return New("NF_001", KindNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- Expiry (EXP) ----

func ErrVoucherExpired() *AppError {
	return New("EXP_001", KindExpired, "Voucher has expired", http.StatusGone)
}

// ---- Authentication & authorisation (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_001", KindUnauthorized, "Invalid or expired token", http.StatusUnauthorized)
}

func ErrForbidden() *AppError {
	return New("AUTH_002", KindForbidden, "Operation not permitted for this role", http.StatusForbidden)
}

func ErrVendorNotApproved() *AppError {
	return New("AUTH_003", KindForbidden, "Vendor account is not approved", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", KindRateLimited, "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", KindInternal, "Internal database error", http.StatusInternalServerError, err)
}

func ErrLockTimeout(err error) *AppError {
	return Wrap("SYS_002", KindInternal, "Lock acquisition failed, retry the request", http.StatusServiceUnavailable, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", KindInternal, "Internal server error", http.StatusInternalServerError, err)
}
