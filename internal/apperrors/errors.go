// Package apperrors defines the typed error taxonomy returned by the ledger
// core. Handlers map codes to HTTP statuses; callers branch on codes rather
// than message text.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	AccountNotFound     ErrorCode = "account_not_found"
	DuplicateAccount    ErrorCode = "duplicate_account"
	InsufficientFunds   ErrorCode = "insufficient_funds"
	InvalidAmount       ErrorCode = "invalid_amount"
	InvalidInput        ErrorCode = "invalid_input"
	ConcurrencyConflict ErrorCode = "concurrency_conflict"
	AlreadyRun          ErrorCode = "already_run"
	InternalError       ErrorCode = "internal_error"
)

type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

func (e *AppError) WithDetails(details string) *AppError {
	out := *e
	out.Details = details
	return &out
}

// HTTPStatus maps the error code to the status handlers should respond with.
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case AccountNotFound:
		return http.StatusNotFound
	case DuplicateAccount, AlreadyRun:
		return http.StatusConflict
	case InsufficientFunds:
		return http.StatusUnprocessableEntity
	case InvalidAmount, InvalidInput:
		return http.StatusBadRequest
	case ConcurrencyConflict:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether the caller may retry the operation with backoff.
// Only lock contention qualifies.
func (e *AppError) Retryable() bool {
	return e.Code == ConcurrencyConflict
}

// Predefined errors for common cases
var (
	ErrAccountNotFound     = New(AccountNotFound, "account not found")
	ErrDuplicateAccount    = New(DuplicateAccount, "owner already has an account")
	ErrInsufficientFunds   = New(InsufficientFunds, "insufficient funds")
	ErrInvalidAmount       = New(InvalidAmount, "amount must be a non-zero decimal")
	ErrConcurrencyConflict = New(ConcurrencyConflict, "account is locked by a concurrent operation, try again")
	ErrAlreadyRun          = New(AlreadyRun, "daily interest already calculated for this date")
)

// CodeOf extracts the ErrorCode from err, or InternalError if err is not an
// AppError.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return InternalError
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
