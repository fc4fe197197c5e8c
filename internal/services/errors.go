package services

import (
	"errors"
	"fmt"
	"net/http"
)

// Machine readable error codes surfaced in the response envelope.
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeProductNotFound   = "PRODUCT_NOT_FOUND"
	CodeInvalidAmount     = "INVALID_AMOUNT"
	CodeAmountMismatch    = "AMOUNT_MISMATCH"
	CodeYapeLimitExceeded = "YAPE_LIMIT_EXCEEDED"
	CodePaymentDeclined   = "PAYMENT_DECLINED"
	CodeInsufficientStock = "INSUFFICIENT_STOCK"
	CodeOrderNotFound     = "ORDER_NOT_FOUND"
	CodeForbidden         = "FORBIDDEN"
	CodeInternal          = "INTERNAL_ERROR"
)

// Error is the typed failure services raise. Status is the HTTP status hint
// the handler boundary maps it to; Info carries structured detail for the
// response envelope.
type Error struct {
	Code    string
	Message string
	Status  int
	Info    map[string]any
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code
}

// Unwrap exposes the underlying error, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// WithInfo attaches a structured detail entry and returns the error.
func (e *Error) WithInfo(key string, value any) *Error {
	if e == nil {
		return nil
	}
	if e.Info == nil {
		e.Info = make(map[string]any)
	}
	e.Info[key] = value
	return e
}

// NewError constructs a typed service error.
func NewError(code, message string, status int) *Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return &Error{Code: code, Message: message, Status: status}
}

// AsServiceError extracts a typed service error from err, if present.
func AsServiceError(err error) (*Error, bool) {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr, true
	}
	return nil, false
}

func validationError(message string) *Error {
	return NewError(CodeValidation, message, http.StatusBadRequest)
}

func internalError(message string, err error) *Error {
	e := NewError(CodeInternal, message, http.StatusInternalServerError)
	e.Err = err
	return e
}
