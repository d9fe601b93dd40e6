package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for client failure classification.
// Use errors.Is(err, ErrXxx) for typed assertions.
var (
	// ErrTransport indicates a network failure or a non-success HTTP status.
	ErrTransport = errors.New("transport error")

	// ErrValidation indicates a malformed identifier, URL or request.
	ErrValidation = errors.New("validation error")

	// ErrIO indicates an unreadable source, uncreatable destination or
	// failed temp-file cleanup.
	ErrIO = errors.New("io error")

	// ErrArchive indicates the archive writer rejected an entry.
	ErrArchive = errors.New("archive error")

	// ErrTimeout indicates a wait deadline was exceeded.
	ErrTimeout = errors.New("timeout")
)

// Error wraps an underlying error with a classification kind.
// It preserves the original error in the chain for inspection via errors.As.
type Error struct {
	// Kind is the sentinel error for classification (e.g., ErrIO).
	Kind error
	// Op is the operation that failed (e.g., "hash", "archive", "upload").
	Op string
	// Path is the file path or URI involved, if any.
	Path string
	// Err is the underlying error.
	Err error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As chain traversal.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether the error matches the target sentinel.
func (e *Error) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// NewError creates a classified error.
func NewError(kind error, op, path string, err error) *Error {
	return &Error{
		Kind: kind,
		Op:   op,
		Path: path,
		Err:  err,
	}
}
