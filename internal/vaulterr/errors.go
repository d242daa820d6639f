// Package vaulterr defines the error taxonomy shared by the ledger,
// the payment gateway adapter and the reconciliation engine.
//
// Callers classify errors with errors.As or the Is* helpers:
//
//   - ValidationError: rejected before anything was persisted; retry after correcting input
//   - NotFoundError: an unknown entry, split or transaction
//   - GatewayError: the payment processor call failed; no local state changed
//   - InconsistentLedgerStateError: a multi-step write could not complete as a unit
//
// A reconciliation conflict (an event for a transaction that is already
// terminal) is not an error to callers. ErrReconciliationConflict exists
// only so the conflict can be logged and counted.
package vaulterr

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidAmount is wrapped by validation errors about amounts,
	// including attempts to pay a split that is already paid.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrEmptyParticipants is wrapped when a split has nobody to split between.
	ErrEmptyParticipants = errors.New("participant set is empty")

	// ErrReconciliationConflict marks an event for an already terminal transaction.
	ErrReconciliationConflict = errors.New("transaction already in a terminal state")
)

// ValidationError reports bad input.
type ValidationError struct {
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %s", e.Err, e.Reason)
	}
	return "validation failed: " + e.Reason
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Validation returns a ValidationError with a formatted reason.
func Validation(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// InvalidAmount returns a ValidationError wrapping ErrInvalidAmount.
func InvalidAmount(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...), Err: ErrInvalidAmount}
}

// NotFoundError reports a missing ledger record.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// NotFound returns a NotFoundError for a record of the given kind.
func NotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// GatewayError reports a failed payment processor call.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment processor %s failed: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Timeout reports whether the call ran out of time. A timed out call is
// inconclusive: the processor may still complete it.
func (e *GatewayError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// Gateway wraps err as a GatewayError for operation op.
func Gateway(op string, err error) error {
	return &GatewayError{Op: op, Err: err}
}

// InconsistentLedgerStateError reports a multi-step write that could not be
// completed as one unit. These need operator attention.
type InconsistentLedgerStateError struct {
	Op     string
	Detail string
	Err    error
}

func (e *InconsistentLedgerStateError) Error() string {
	msg := "inconsistent ledger state during " + e.Op
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InconsistentLedgerStateError) Unwrap() error { return e.Err }

// Inconsistent wraps err as an InconsistentLedgerStateError.
func Inconsistent(op, detail string, err error) error {
	return &InconsistentLedgerStateError{Op: op, Detail: detail, Err: err}
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsNotFound reports whether err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsGateway reports whether err is or wraps a GatewayError.
func IsGateway(err error) bool {
	var target *GatewayError
	return errors.As(err, &target)
}

// IsInconsistent reports whether err is or wraps an InconsistentLedgerStateError.
func IsInconsistent(err error) bool {
	var target *InconsistentLedgerStateError
	return errors.As(err, &target)
}
