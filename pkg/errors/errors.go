// Package errors defines the sentinel errors shared by the indexer and maps
// them onto process exit codes.
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrConfig           = errors.New("invalid configuration")
	ErrConnect          = errors.New("connecting to backend")
	ErrStore            = errors.New("store operation failed")
	ErrTimeout          = errors.New("operation timed out")
	ErrInvalidDocument  = errors.New("invalid document")
	ErrPositionOverflow = errors.New("token position overflows int32")
	ErrBatchLocked      = errors.New("another indexing run holds the batch lock")
)

// Exit codes returned by the indexer binary.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitConfig  = 2
	ExitConnect = 3
	ExitLocked  = 4
)

type AppError struct {
	Err     error
	Message string
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, message string) *AppError {
	return &AppError{
		Err:     sentinel,
		Message: message,
	}
}

func Newf(sentinel error, format string, args ...any) *AppError {
	return &AppError{
		Err:     sentinel,
		Message: fmt.Sprintf(format, args...),
	}
}

// OperationError records which pipeline operation failed and for which
// document. DocumentID is zero for batch-level operations.
type OperationError struct {
	Op         string
	DocumentID int64
	Err        error
}

func (e *OperationError) Error() string {
	if e.DocumentID == 0 {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s (document %d): %v", e.Op, e.DocumentID, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// Op wraps err in an OperationError. A nil err stays nil.
func Op(op string, documentID int64, err error) error {
	if err == nil {
		return nil
	}
	return &OperationError{Op: op, DocumentID: documentID, Err: err}
}

// FailedOperation returns the name of the operation carried by err, or "".
func FailedOperation(err error) string {
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr.Op
	}
	return ""
}

func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrConfig):
		return ExitConfig
	case errors.Is(err, ErrConnect):
		return ExitConnect
	case errors.Is(err, ErrBatchLocked):
		return ExitLocked
	default:
		return ExitFailure
	}
}
