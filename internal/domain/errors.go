package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound               = errors.New("resource not found")
	ErrBusinessNotFound       = errors.New("business not found")
	ErrInvoiceNotFound        = errors.New("invoice not found")
	ErrBatchNotFound          = errors.New("batch not found")
	ErrRowNotFound            = errors.New("batch row not found")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrForbidden              = errors.New("forbidden")
	ErrBusinessInactive       = errors.New("business is inactive")
	ErrSandboxNotValidated    = errors.New("sandbox must be validated before enabling production")
	ErrDuplicateLocalID       = errors.New("local id already exists in this batch")
	ErrDuplicateCode          = errors.New("code already exists for this business")
	ErrInvalidIntegrationMode = errors.New("invalid integration mode")
	ErrUnsupportedFileType    = errors.New("unsupported batch file type")
	ErrFileTooLarge           = errors.New("file exceeds maximum allowed size")
	ErrBatchNotCancellable    = errors.New("batch is not in a cancellable state")
	ErrBatchNotRetryable      = errors.New("batch has no retryable rows")
	ErrSubmissionLocked       = errors.New("another submission for this invoice is in flight")
)

// StateConflictError reports an attempted transition that the state table
// does not permit. It is a programming-invariant violation: callers log and
// surface it, never swallow it.
type StateConflictError struct {
	Entity string
	From   string
	To     string
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("illegal %s transition %s -> %s", e.Entity, e.From, e.To)
}

// ValidationFailedError carries the field-level errors that blocked an
// invoice from leaving draft.
type ValidationFailedError struct {
	Fields []FieldError
}

func (e *ValidationFailedError) Error() string {
	return fmt.Sprintf("invoice validation failed (%d field errors)", len(e.Fields))
}

// SequenceError wraps an allocator storage failure after retries were
// exhausted.
type SequenceError struct {
	BusinessID string
	Err        error
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("sequence allocation failed for business %s: %v", e.BusinessID, e.Err)
}

func (e *SequenceError) Unwrap() error { return e.Err }
