// Package repository defines the error taxonomy shared by the repositories
// and the rental ledger. Every failure carries one of four kinds so that
// handlers can distinguish the scenarios: ErrValidation for malformed input,
// ErrConflict for uniqueness or availability violations, ErrNotFound for
// missing or already-closed records and ErrStorage for transaction or
// connection failures. Match kinds with errors.Is.
package repository

import (
	stderrors "errors"
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrValidation = stderrors.New("validation error")
	ErrConflict   = stderrors.New("conflict")
	ErrNotFound   = stderrors.New("not found")
	ErrStorage    = stderrors.New("storage error")
)

// Error describes a failed operation: which operation, which kind of failure
// and the offending field or id. Err holds the underlying driver error for
// storage failures.
type Error struct {
	Kind   error
	Op     string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Kind.Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// ValidationError reports malformed input for op.
func ValidationError(op, format string, args ...any) error {
	return &Error{Kind: ErrValidation, Op: op, Detail: fmt.Sprintf(format, args...)}
}

// ConflictError reports a uniqueness or availability violation for op.
func ConflictError(op, format string, args ...any) error {
	return &Error{Kind: ErrConflict, Op: op, Detail: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a missing record for op.
func NotFoundError(op, format string, args ...any) error {
	return &Error{Kind: ErrNotFound, Op: op, Detail: fmt.Sprintf(format, args...)}
}

// StorageError wraps a driver or transaction failure for op. Errors that
// already carry a kind are returned unchanged.
func StorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if stderrors.As(err, &e) {
		return err
	}
	return &Error{Kind: ErrStorage, Op: op, Err: errors.WithStack(err)}
}

// ErrTitleNotFound is returned by TitleRepo.GetByID when no title has the id.
var ErrTitleNotFound = &Error{Kind: ErrNotFound, Op: "getTitleById", Detail: "title not found"}

// ErrCustomerNotFound is returned by CustomerRepo.GetByID when no customer has the id.
var ErrCustomerNotFound = &Error{Kind: ErrNotFound, Op: "getCustomerById", Detail: "customer not found"}
