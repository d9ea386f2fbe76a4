// Package apperrors provides the error taxonomy shared across ytbatch.
// Errors are values that carry context about what went wrong; callers
// branch on them with errors.Is/errors.As rather than string matching.
package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel errors. Check with errors.Is() for specific handling.
var (
	ErrValidation       = errors.New("validation failed")
	ErrPrecondition     = errors.New("precondition not met")
	ErrURLExtraction    = errors.New("url extraction failed")
	ErrPerJobExecution  = errors.New("job execution failed")
	ErrNetwork          = errors.New("network error")
	ErrFile             = errors.New("file error")
	ErrArchive          = errors.New("archive error")
	ErrCancelled        = errors.New("cancelled by user")
	ErrUnexpected       = errors.New("unexpected error")
	ErrDependencyMissing = errors.New("required dependency not installed")
	ErrTimeout          = errors.New("operation timed out")
	ErrNotFound         = errors.New("resource not found")
)

// Code identifies which branch of the taxonomy an AppError belongs to,
// for callers that want to switch without comparing sentinel values.
type Code string

const (
	CodeValidation      Code = "validation"
	CodePrecondition    Code = "precondition"
	CodeURLExtraction   Code = "url_extraction"
	CodePerJobExecution Code = "per_job_execution"
	CodeNetwork         Code = "network"
	CodeFile            Code = "file"
	CodeArchive         Code = "archive"
	CodeCancelled       Code = "cancelled"
	CodeUnexpected      Code = "unexpected"
)

// AppError is a structured error carrying the failing operation, the
// underlying cause, a user-facing message, and a taxonomy code.
type AppError struct {
	Op      string
	Err     error
	Message string
	Code    Code
}

func (e *AppError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates an AppError wrapping err for operation op.
func New(op string, err error) *AppError {
	return &AppError{Op: op, Err: err}
}

// NewWithMessage creates an AppError with a user-friendly message.
func NewWithMessage(op string, err error, message string) *AppError {
	return &AppError{Op: op, Err: err, Message: message}
}

// NewWithCode creates an AppError tagged with a taxonomy code.
func NewWithCode(op string, err error, code Code, message string) *AppError {
	return &AppError{Op: op, Err: err, Code: code, Message: message}
}

// Wrap wraps err with operation context, returning nil if err is nil.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &AppError{Op: op, Err: err}
}

// WrapWithMessage wraps err with a user-friendly message.
func WrapWithMessage(op string, err error, message string) error {
	if err == nil {
		return nil
	}
	return &AppError{Op: op, Err: err, Message: message}
}

// IsCancelled reports whether err is (or wraps) a user cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// IsTimeout reports whether err is (or wraps) a timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsNotFound reports whether err is (or wraps) a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDependencyMissing reports whether err is (or wraps) a missing-dependency error.
func IsDependencyMissing(err error) bool {
	return errors.Is(err, ErrDependencyMissing)
}

// CodeOf extracts the taxonomy Code from err, if it is (or wraps) an *AppError.
func CodeOf(err error) (Code, bool) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code, true
	}
	return "", false
}
