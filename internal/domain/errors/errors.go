package errors

import (
	"errors"
	"net/http"
)

// Domain errors
var (
	ErrNotFound      = errors.New("resource not found")
	ErrAlreadyExists = errors.New("resource already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrBadRequest    = errors.New("bad request")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
)

// Payment execution error kinds. Components wrap their causes with these so
// callers can classify failures with errors.Is.
var (
	ErrChainUnavailable        = errors.New("chain unavailable")
	ErrApprovalFailed          = errors.New("approval failed")
	ErrNoRouteFound            = errors.New("no route found")
	ErrTransferRejected        = errors.New("transfer rejected")
	ErrTransferReverted        = errors.New("transfer reverted")
	ErrSettlementPersistFailed = errors.New("settlement persist failed")

	ErrInvalidSelectionKey = errors.New("invalid token selection key")
	ErrUnsupportedToken    = errors.New("unsupported token")
	ErrIdentityNotVerified = errors.New("identity verification required")
	ErrAttemptInProgress   = errors.New("payment attempt already in progress")
	ErrAttemptCancelled    = errors.New("payment attempt cancelled")
	ErrInvalidTransition   = errors.New("invalid attempt state transition")
	ErrTransferIncomplete  = errors.New("transfer incomplete")
)

// Error codes returned in API responses
const (
	CodeNotFound          = "ERR_NOT_FOUND"
	CodeBadRequest        = "ERR_BAD_REQUEST"
	CodeUnauthorized      = "ERR_UNAUTHORIZED"
	CodeForbidden         = "ERR_FORBIDDEN"
	CodeConflict          = "ERR_CONFLICT"
	CodeInternalError     = "ERR_INTERNAL"
	CodePaymentFailed     = "ERR_PAYMENT_FAILED"
	CodeUpstreamFailed    = "ERR_UPSTREAM_FAILED"
	CodeAttemptInProgress = "ERR_ATTEMPT_IN_PROGRESS"
)

var kinds = []struct {
	err  error
	name string
}{
	{ErrChainUnavailable, "ChainUnavailable"},
	{ErrApprovalFailed, "ApprovalFailed"},
	{ErrNoRouteFound, "NoRouteFound"},
	{ErrTransferRejected, "TransferRejected"},
	{ErrTransferReverted, "TransferReverted"},
	{ErrSettlementPersistFailed, "SettlementPersistFailed"},
	{ErrAttemptCancelled, "AttemptCancelled"},
	{ErrInvalidSelectionKey, "InvalidSelectionKey"},
	{ErrUnsupportedToken, "UnsupportedToken"},
	{ErrIdentityNotVerified, "IdentityNotVerified"},
	{ErrAttemptInProgress, "AttemptInProgress"},
	{ErrInvalidTransition, "InvalidTransition"},
	{ErrTransferIncomplete, "TransferIncomplete"},
	{ErrNotFound, "NotFound"},
}

// KindOf returns the name of the payment error kind wrapped by err, or
// "Unknown" when err carries none of them.
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "Unknown"
}

// AppError represents application error with HTTP status
type AppError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new app error
func NewAppError(status int, code, message string, err error) *AppError {
	return &AppError{
		Status:  status,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common error constructors
func NotFound(message string) *AppError {
	return NewAppError(http.StatusNotFound, CodeNotFound, message, ErrNotFound)
}

func BadRequest(message string) *AppError {
	return NewAppError(http.StatusBadRequest, CodeBadRequest, message, ErrInvalidInput)
}

func Unauthorized(message string) *AppError {
	return NewAppError(http.StatusUnauthorized, CodeUnauthorized, message, ErrUnauthorized)
}

func Forbidden(message string) *AppError {
	return NewAppError(http.StatusForbidden, CodeForbidden, message, ErrForbidden)
}

func Conflict(message string, err error) *AppError {
	return NewAppError(http.StatusConflict, CodeConflict, message, err)
}

func InternalError(err error) *AppError {
	return NewAppError(http.StatusInternalServerError, CodeInternalError, "internal server error", err)
}

// FromPaymentError maps a payment execution failure to an API error.
func FromPaymentError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return NewAppError(http.StatusNotFound, CodeNotFound, err.Error(), err)
	case errors.Is(err, ErrInvalidSelectionKey), errors.Is(err, ErrUnsupportedToken),
		errors.Is(err, ErrBadRequest), errors.Is(err, ErrInvalidInput):
		return NewAppError(http.StatusBadRequest, CodeBadRequest, err.Error(), err)
	case errors.Is(err, ErrIdentityNotVerified):
		return NewAppError(http.StatusForbidden, CodeForbidden, err.Error(), err)
	case errors.Is(err, ErrAttemptInProgress):
		return NewAppError(http.StatusConflict, CodeAttemptInProgress, err.Error(), err)
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrTransferIncomplete):
		return NewAppError(http.StatusConflict, CodeConflict, err.Error(), err)
	case errors.Is(err, ErrNoRouteFound), errors.Is(err, ErrChainUnavailable):
		return NewAppError(http.StatusBadGateway, CodeUpstreamFailed, err.Error(), err)
	case errors.Is(err, ErrApprovalFailed), errors.Is(err, ErrTransferRejected),
		errors.Is(err, ErrTransferReverted), errors.Is(err, ErrSettlementPersistFailed),
		errors.Is(err, ErrAttemptCancelled):
		return NewAppError(http.StatusUnprocessableEntity, CodePaymentFailed, err.Error(), err)
	}
	return InternalError(err)
}
