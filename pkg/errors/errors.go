package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Reason  string    `json:"reason,omitempty"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode maps the error class onto an HTTP status.
func (e *AppError) StatusCode() int {
	switch e.Code {
	case ErrValidation:
		return http.StatusBadRequest
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrPaymentRequired:
		return http.StatusPaymentRequired
	case ErrForbidden:
		return http.StatusForbidden
	case ErrNotFound:
		return http.StatusNotFound
	case ErrConflict:
		return http.StatusConflict
	case ErrTimeout:
		return http.StatusGatewayTimeout
	case ErrRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

var reasonCodes = map[ErrorCode]string{
	ErrNotFound:        "not_found",
	ErrValidation:      "validation_error",
	ErrUnauthorized:    "unauthorized",
	ErrForbidden:       "forbidden",
	ErrInternal:        "internal_error",
	ErrConflict:        "conflict",
	ErrPaymentRequired: "payment_required",
	ErrUpstream:        "upstream_error",
	ErrTimeout:         "timeout",
	ErrStorage:         "storage_error",
	ErrRateLimited:     "rate_limited",
}

// ReasonCode is the machine-readable code sent to clients. Denials carry
// their own reason, every other error the name of its class.
func (e *AppError) ReasonCode() string {
	if e.Reason != "" {
		return e.Reason
	}
	if code, ok := reasonCodes[e.Code]; ok {
		return code
	}
	return "internal_error"
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrValidation
	ErrUnauthorized
	ErrForbidden
	ErrInternal
	ErrConflict
	ErrPaymentRequired
	ErrUpstream
	ErrTimeout
	ErrStorage
	ErrRateLimited
)

// Error constructors
func NotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func Validation(message string, err error) *AppError {
	return &AppError{
		Code:    ErrValidation,
		Message: message,
		Err:     err,
	}
}

func Unauthorized(message string, err error) *AppError {
	if message == "" {
		message = "unauthorized"
	}
	return &AppError{
		Code:    ErrUnauthorized,
		Message: message,
		Err:     err,
	}
}

// Denied is an entitlement refusal. Reason is the machine-readable code clients switch on.
func Denied(reason, message string) *AppError {
	return &AppError{
		Code:    ErrForbidden,
		Message: message,
		Reason:  reason,
	}
}

func Conflict(message string, err error) *AppError {
	return &AppError{
		Code:    ErrConflict,
		Message: message,
		Err:     err,
	}
}

func PaymentRequired(message string, err error) *AppError {
	return &AppError{
		Code:    ErrPaymentRequired,
		Message: message,
		Err:     err,
	}
}

func Upstream(err error) *AppError {
	return &AppError{
		Code:    ErrUpstream,
		Message: "content service unavailable",
		Err:     err,
	}
}

func Timeout(err error) *AppError {
	return &AppError{
		Code:    ErrTimeout,
		Message: "content service timed out",
		Err:     err,
	}
}

func Storage(err error) *AppError {
	return &AppError{
		Code:    ErrStorage,
		Message: "internal server error",
		Err:     err,
	}
}

func RateLimited() *AppError {
	return &AppError{
		Code:    ErrRateLimited,
		Message: "rate limit exceeded",
	}
}

func Internal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

// As returns the first AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HTTPStatus returns the status for err, 500 for anything that is not an AppError.
func HTTPStatus(err error) int {
	if appErr, ok := As(err); ok {
		return appErr.StatusCode()
	}
	return http.StatusInternalServerError
}
