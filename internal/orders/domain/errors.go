package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrAlreadyPaid          = errors.New("order already paid")
	ErrAlreadyVerified      = errors.New("payment already verified")
	ErrInvalidSignature     = errors.New("invalid payment signature")
	ErrGateway              = errors.New("payment gateway error")
	ErrValidation           = errors.New("validation failed")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrInvalidOrderRef      = errors.New("invalid order reference")
	ErrConflict             = errors.New("conflict")
	ErrDuplicateOrderNumber = errors.New("duplicate order number")
)

// NotFoundError names the missing resource.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NotFound builds a NotFoundError for resource with the given id.
func NotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// InsufficientStockError carries the numbers a client needs to adjust its cart.
type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	name := e.ProductName
	if name == "" {
		name = e.ProductID
	}
	return fmt.Sprintf("insufficient stock for %s: available %d, requested %d", name, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// ValidationError reports a malformed request with optional per-field detail.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func NewValidationError(message string, fields map[string]string) *ValidationError {
	return &ValidationError{Message: message, Fields: fields}
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrValidation }

// TransitionError is returned when an order cannot move between two statuses.
type TransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot transition order from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// GatewayError wraps any failure returned by the payment processor.
type GatewayError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *GatewayError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("payment gateway %s: %s", e.Op, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("payment gateway %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("payment gateway %s failed", e.Op)
}

func (e *GatewayError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrGateway, e.Err}
	}
	return []error{ErrGateway}
}

// IsRejection reports whether err is an expected business rejection
// rather than an infrastructure failure.
func IsRejection(err error) bool {
	for _, target := range []error{
		ErrValidation,
		ErrNotFound,
		ErrUnauthorized,
		ErrInsufficientStock,
		ErrAlreadyPaid,
		ErrAlreadyVerified,
		ErrInvalidSignature,
		ErrInvalidTransition,
		ErrInvalidOrderRef,
		ErrConflict,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
