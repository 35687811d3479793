package entity

import (
	"errors"
	"fmt"
)

// ErrNotFound marks a permanently missing record.
var ErrNotFound = errors.New("not found")

// ValidationError rejects a malformed or inconsistent request.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// OutOfStockError names the product that could not be reserved.
type OutOfStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s (available: %d, requested: %d)",
		e.ProductID, e.Available, e.Requested)
}

// GatewayError wraps a failure of the external payment gateway. Checkout
// surfaces it as retryable to the buyer.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string { return fmt.Sprintf("payment gateway %s: %v", e.Op, e.Err) }
func (e *GatewayError) Unwrap() error { return e.Err }

// InvalidTransitionError is a data-integrity fault: the requested status is
// not reachable from the current one. State is left unchanged.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid order transition %s -> %s", e.From, e.To)
}

// TransientError marks a failure the caller should retry, as opposed to a
// permanent rejection.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("transient: %v", e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// Transient reports whether err is retryable.
func Transient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}
