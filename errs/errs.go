package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrTrackNotFound indicates the vendor does not know the requested track id.
	ErrTrackNotFound = errors.New("track not found")
	// ErrNoCandidates indicates that every configured provider failed or returned nothing.
	ErrNoCandidates = errors.New("no playable candidate")
	// ErrProviderTimeout indicates a provider exceeded its per-query deadline.
	ErrProviderTimeout = errors.New("provider timeout")
)

// DecodeError reports a malformed wire body (bad hex, bad cipher block, bad JSON).
// Path carries the logical path of the offending exchange when known.
type DecodeError struct {
	Path  string
	Cause error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("decode %s: %v", e.Path, e.Cause)
	}
	return fmt.Sprintf("decode: %v", e.Cause)
}

// Unwrap returns the underlying cause.
func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// NewDecodeError creates a DecodeError for the given logical path.
func NewDecodeError(path string, cause error) *DecodeError {
	return &DecodeError{Path: path, Cause: cause}
}

// IsDecodeError reports whether err is (or wraps) a DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
