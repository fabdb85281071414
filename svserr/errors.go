// Package svserr declares the typed error taxonomy shared by every
// component of the library (graph build, search, storage, persistence).
package svserr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a failure the way a caller across the index manager
// surface needs to act on it.
type Kind int

const (
	// RuntimeError is the catch-all for unexpected failures.
	RuntimeError Kind = iota
	// InvalidArgument marks a bad caller-supplied parameter: dimension
	// mismatch, k=0, unknown metric, out-of-range config value.
	InvalidArgument
	// NotInitialized marks an operation attempted on an empty or
	// unbuilt/unloaded index.
	NotInitialized
	// AlreadyInitialized marks Assemble/Load called on a live index.
	AlreadyInitialized
	// IoError marks a persistence read/write failure or a schema/version
	// mismatch while loading.
	IoError
	// NotImplemented marks a parameter combination the current build
	// does not support.
	NotImplemented
	// UnsupportedHardware marks a compressed code path whose SIMD
	// requirements are not met at runtime.
	UnsupportedHardware
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "InvalidArgument"
	case NotInitialized:
		return "NotInitialized"
	case AlreadyInitialized:
		return "AlreadyInitialized"
	case IoError:
		return "IoError"
	case NotImplemented:
		return "NotImplemented"
	case UnsupportedHardware:
		return "UnsupportedHardware"
	default:
		return "RuntimeError"
	}
}

// Error is the typed error returned across component boundaries. It wraps
// an underlying cause (often produced via github.com/pkg/errors) and
// records which operation failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs a typed Error, wrapping cause with github.com/pkg/errors
// so callers retain a stack trace when the cause is non-nil.
func New(kind Kind, op string, cause error) *Error {
	if cause != nil {
		cause = errors.WithStack(cause)
	}
	return &Error{Kind: kind, Op: op, Err: cause}
}

// Newf builds a typed Error from a format string, with no wrapped cause.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the Kind of err if it is (or wraps) an *Error, and
// RuntimeError otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return RuntimeError
}
