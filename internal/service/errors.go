package service

import (
	"errors"
	"fmt"
)

// Checkout failure kinds. Use errors.Is against a returned error to classify it.
var (
	ErrValidation          = errors.New("validation error")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrIdempotencyConflict = errors.New("idempotency key reused for a different checkout")
	ErrInfrastructure      = errors.New("infrastructure error")
)

// CheckoutError is returned by every failed checkout. Reason is safe to show
// to the buyer and names the offending product when there is one.
type CheckoutError struct {
	Kind    error
	Product string
	Reason  string
	Err     error
}

func (e *CheckoutError) Error() string {
	if e.Err != nil && e.Kind == ErrInfrastructure {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *CheckoutError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// ClientAttributable reports whether the caller caused the failure (4xx)
// rather than the service (5xx).
func (e *CheckoutError) ClientAttributable() bool {
	return e.Kind != ErrInfrastructure
}

func validationError(product, format string, args ...interface{}) *CheckoutError {
	return &CheckoutError{Kind: ErrValidation, Product: product, Reason: fmt.Sprintf(format, args...)}
}

func infrastructureError(err error) *CheckoutError {
	return &CheckoutError{Kind: ErrInfrastructure, Reason: "checkout failed, please retry", Err: err}
}
