package utils

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrorRecordNotFound = errors.New("record not found")

// ValidationError is a deterministic, pre-mutation failure: a referential
// check failed or a precondition (e.g. stock sufficiency) does not hold.
// Safe to report verbatim to the caller; never requires rollback because
// nothing has been mutated yet.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func Validationf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// InsufficientStockError identifies the offending line of a stock
// sufficiency check.
type InsufficientStockError struct {
	ProductName string
	Available   decimal.Decimal
	Required    decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s. Available: %s, Required: %s",
		e.ProductName, e.Available.String(), e.Required.String())
}

// ConflictError means an optimistic-concurrency retry budget was exhausted
// (stock CAS race, numbering race). Retryable: the caller may resubmit.
type ConflictError struct {
	Op string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("concurrent conflict on %s; please retry", e.Op)
}

// StateError means the operation targeted a document in a terminal or
// incompatible state (refund on refunded sale, cancel on cancelled
// purchase). Non-retryable.
type StateError struct {
	Message string
}

func (e *StateError) Error() string { return e.Message }

func Statef(format string, args ...any) error {
	return &StateError{Message: fmt.Sprintf(format, args...)}
}

// PersistenceError wraps a storage failure. The message shown to callers is
// opaque; the cause is attached for internal logging only.
type PersistenceError struct {
	Cause error
}

func (e *PersistenceError) Error() string { return "internal storage failure" }

func (e *PersistenceError) Unwrap() error { return e.Cause }

func WrapPersistence(err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Cause: err}
}

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
