package repositories

import "fmt"

// OrderErrorCode enumerates repository error causes for order ledger operations.
type OrderErrorCode string

const (
	// OrderErrorUnknown represents an unspecified failure.
	OrderErrorUnknown OrderErrorCode = "order_unknown"
	// OrderErrorNotFound indicates the order document does not exist.
	OrderErrorNotFound OrderErrorCode = "order_not_found"
	// OrderErrorProviderMismatch indicates the order was created for a different payment provider.
	OrderErrorProviderMismatch OrderErrorCode = "order_provider_mismatch"
	// OrderErrorProductNotFound indicates a line references a product that no longer exists.
	OrderErrorProductNotFound OrderErrorCode = "order_product_not_found"
	// OrderErrorInsufficientStock indicates a line quantity exceeds current availability.
	OrderErrorInsufficientStock OrderErrorCode = "order_insufficient_stock"
	// OrderErrorInvalidState indicates the order status forbids the operation.
	OrderErrorInvalidState OrderErrorCode = "order_invalid_state"
)

// OrderError wraps order-ledger failures with machine readable codes.
type OrderError struct {
	Op      string
	Code    OrderErrorCode
	Message string
	// ProductID identifies the offending line for stock failures.
	ProductID string
	Err       error
}

// Error implements the error interface.
func (e *OrderError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *OrderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewOrderError constructs a typed order error.
func NewOrderError(code OrderErrorCode, message string, err error) *OrderError {
	if message == "" {
		message = string(code)
	}
	return &OrderError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
