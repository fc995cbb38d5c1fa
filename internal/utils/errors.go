package utils

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the validation pipeline. Detections are reported as
// data; these sentinels only mark the exceptional paths.
var (
	ErrContentRejected = errors.New("content rejected")
	ErrContentFlagged  = errors.New("content flagged")
	ErrConfiguration   = errors.New("configuration error")
	ErrPersistence     = errors.New("persistence error")
	ErrUnexpected      = errors.New("unexpected error")
)

// AppError wraps an operation, human-facing message, and underlying error.
type AppError struct {
	Op  string
	Msg string
	Err error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(op, msg string, err error) error {
	return &AppError{Op: op, Msg: msg, Err: err}
}

// ConfigError reports malformed configuration for op.
func ConfigError(op, msg string, err error) error {
	if err == nil {
		return &AppError{Op: op, Msg: msg, Err: ErrConfiguration}
	}
	return &AppError{Op: op, Msg: msg, Err: fmt.Errorf("%w: %w", ErrConfiguration, err)}
}

// PersistenceError reports a failed read or write against a backing store.
func PersistenceError(op string, err error) error {
	return &AppError{Op: op, Msg: "store operation failed", Err: fmt.Errorf("%w: %w", ErrPersistence, err)}
}
