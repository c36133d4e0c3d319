package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for logview operations.
var (
	// ErrInvalidPattern indicates a regular expression failed to compile.
	ErrInvalidPattern = errors.New("invalid pattern")

	// ErrPatternTooLong indicates a pattern source exceeds MaxPatternLength.
	ErrPatternTooLong = errors.New("pattern exceeds maximum length")

	// ErrInvalidView indicates a view document violates the rule-set schema.
	ErrInvalidView = errors.New("invalid view")

	// ErrViewTooDeep indicates If nesting exceeds MaxViewDepth.
	ErrViewTooDeep = errors.New("view nesting exceeds maximum depth")

	// ErrTooManyOperations indicates a view exceeds MaxViewOperations.
	ErrTooManyOperations = errors.New("view has too many operations")

	// ErrViewNotFound indicates a stored view name does not exist.
	ErrViewNotFound = errors.New("view not found")

	// ErrViewExists indicates a stored view name is already taken.
	ErrViewExists = errors.New("view already exists")

	// ErrInvalidViewName indicates an empty or oversized stored view name.
	ErrInvalidViewName = errors.New("invalid view name")
)

// ReadError is an I/O failure surfaced by the record source while a view is
// being applied. It ends the record sequence; nothing is retried.
type ReadError struct {
	Offset int64 // byte offset at which the read was attempted
	Err    error
}

// Error implements error.
func (e *ReadError) Error() string {
	return fmt.Sprintf("read failed at offset %d: %v", e.Offset, e.Err)
}

// Unwrap returns the underlying I/O error.
func (e *ReadError) Unwrap() error {
	return e.Err
}
