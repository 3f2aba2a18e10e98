package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden    ErrorType = "FORBIDDEN"
	ErrorTypeConflict     ErrorType = "CONFLICT"
	ErrorTypeInternal     ErrorType = "INTERNAL_ERROR"
	ErrorTypeUnavailable  ErrorType = "UNAVAILABLE"
)

type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidQuantity  ErrorCode = "INVALID_QUANTITY"
	ErrCodeInvalidDuration  ErrorCode = "INVALID_DURATION"

	ErrCodeItemNotFound         ErrorCode = "ITEM_NOT_FOUND"
	ErrCodeUserNotFound         ErrorCode = "USER_NOT_FOUND"
	ErrCodeAlreadyCheckedOut    ErrorCode = "ALREADY_CHECKED_OUT"
	ErrCodeInsufficientQuantity ErrorCode = "INSUFFICIENT_QUANTITY"
	ErrCodeNotReserved          ErrorCode = "NOT_RESERVED"

	ErrCodeInvalidFlag       ErrorCode = "INVALID_FLAG"
	ErrCodeFlagNotFound      ErrorCode = "FLAG_NOT_FOUND"
	ErrCodeDuplicateFlagName ErrorCode = "DUPLICATE_FLAG_NAME"
	ErrCodeNotAssigned       ErrorCode = "NOT_ASSIGNED"
	ErrCodeForbiddenAction   ErrorCode = "FORBIDDEN_ACTION"

	ErrCodeInvalidToken ErrorCode = "INVALID_TOKEN"
	ErrCodeTokenExpired ErrorCode = "TOKEN_EXPIRED"

	ErrCodeStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"
)

type AppError struct {
	Type       ErrorType   `json:"type"`
	Code       ErrorCode   `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	StatusCode int         `json:"-"`
	Cause      error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok && len(validationErrors.Errors) > 0 {
			return validationErrors.Errors[0].Message
		}
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) GetDetailedMessage() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok {
			if len(validationErrors.Errors) == 1 {
				return validationErrors.Errors[0].Message
			} else if len(validationErrors.Errors) > 1 {
				messages := make([]string, len(validationErrors.Errors))
				for i, err := range validationErrors.Errors {
					messages[i] = err.Message
				}
				return strings.Join(messages, "; ")
			}
		}
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches on error code so sentinel values work with errors.Is even when
// the returned error carries its own message and details.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithCause returns a copy so the package-level sentinels are never mutated.
func (e *AppError) WithCause(cause error) *AppError {
	cp := *e
	cp.Cause = cause
	return &cp
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

func (e *AppError) WithMessage(message string) *AppError {
	cp := *e
	cp.Message = message
	return &cp
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewValidationFieldError(field, message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       ErrCodeValidationFailed,
		Message:    "Validation failed",
		StatusCode: http.StatusBadRequest,
		Details: ValidationErrors{
			Errors: []ValidationError{
				{Field: field, Message: message, Code: string(code)},
			},
		},
	}
}

func NewNotFoundError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

func NewUnauthorizedError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeUnauthorized,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func NewForbiddenError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeForbidden,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

func NewConflictError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

// NewStoreUnavailableError wraps a failure of the persistent layer. It aborts
// the current operation and is never retried internally.
func NewStoreUnavailableError(op string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeUnavailable,
		Code:       ErrCodeStoreUnavailable,
		Message:    fmt.Sprintf("store unavailable during %s", op),
		StatusCode: http.StatusServiceUnavailable,
		Cause:      cause,
	}
}

var (
	ErrInvalidQuantity      = NewValidationError("quantity must be greater than zero", ErrCodeInvalidQuantity)
	ErrItemNotFound         = NewNotFoundError("item not found", ErrCodeItemNotFound)
	ErrUserNotFound         = NewNotFoundError("user not found", ErrCodeUserNotFound)
	ErrAlreadyCheckedOut    = NewConflictError("item is already checked out", ErrCodeAlreadyCheckedOut)
	ErrInsufficientQuantity = NewConflictError("insufficient quantity available", ErrCodeInsufficientQuantity)
	ErrNotReserved          = NewNotFoundError("item has no active reservation", ErrCodeNotReserved)

	ErrInvalidFlag       = NewValidationError("invalid permission flag", ErrCodeInvalidFlag)
	ErrFlagNotFound      = NewNotFoundError("permission flag not found", ErrCodeFlagNotFound)
	ErrDuplicateFlagName = NewConflictError("permission flag name already exists", ErrCodeDuplicateFlagName)
	ErrNotAssigned       = NewConflictError("permission flag is not assigned to user", ErrCodeNotAssigned)
	ErrForbiddenAction   = NewForbiddenError("action not permitted", ErrCodeForbiddenAction)

	ErrInvalidToken = NewUnauthorizedError("Invalid token", ErrCodeInvalidToken)
	ErrTokenExpired = NewUnauthorizedError("Token has expired", ErrCodeTokenExpired)

	ErrStoreUnavailable = NewStoreUnavailableError("operation", nil)
)

// AlreadyCheckedOutBy builds the conflict error naming the current holder.
func AlreadyCheckedOutBy(itemID, holder string) *AppError {
	if holder == "" {
		return ErrAlreadyCheckedOut.WithMessage(fmt.Sprintf("item %s is already checked out", itemID))
	}
	return ErrAlreadyCheckedOut.
		WithMessage(fmt.Sprintf("item %s is already checked out by %s", itemID, holder)).
		WithDetails(map[string]interface{}{"item_id": itemID, "holder": holder})
}

// InsufficientQuantityFor builds the conflict error carrying requested vs available.
func InsufficientQuantityFor(itemID string, requested, available int) *AppError {
	return ErrInsufficientQuantity.
		WithMessage(fmt.Sprintf("item %s: requested %d, available %d", itemID, requested, available)).
		WithDetails(map[string]interface{}{"item_id": itemID, "requested": requested, "available": available})
}

func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

type Response struct {
	Error *AppError `json:"error"`
}

func (e *AppError) ToHTTPResponse() (int, interface{}) {
	return e.StatusCode, Response{Error: e}
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    ErrorType   `json:"type"`
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
	}{
		Type:    e.Type,
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	})
}
