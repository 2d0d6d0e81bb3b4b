// Package errors defines the typed error kinds used across the form
// editing pipeline. Every fatal kind aborts the current operation and is
// surfaced to the caller; FieldNotFound is the only kind callers are
// expected to tolerate.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind categorizes a processing error.
type Kind int

const (
	KindUnknown Kind = iota
	// KindStructuralUnsupported marks documents outside the supported
	// structural bounds: object streams, linearized layout, incremental
	// updates. Always fatal for the native engine.
	KindStructuralUnsupported
	// KindStructuralInconsistency marks a mismatch between a recorded
	// cross-reference offset and the object actually found there. Fatal
	// only in halt mode.
	KindStructuralInconsistency
	// KindFieldNotFound marks a write against a field name the document
	// does not contain. Non-fatal; the write is a no-op.
	KindFieldNotFound
	// KindResourceUnavailable marks a temporary or output file that cannot
	// be created or written.
	KindResourceUnavailable
	// KindToolkitFailure marks a failure reported by an external engine.
	KindToolkitFailure
)

// String returns the wire-stable identifier of the kind.
func (k Kind) String() string {
	switch k {
	case KindStructuralUnsupported:
		return "STRUCTURAL_UNSUPPORTED"
	case KindStructuralInconsistency:
		return "STRUCTURAL_INCONSISTENCY"
	case KindFieldNotFound:
		return "FIELD_NOT_FOUND"
	case KindResourceUnavailable:
		return "RESOURCE_UNAVAILABLE"
	case KindToolkitFailure:
		return "TOOLKIT_FAILURE"
	default:
		return "UNKNOWN"
	}
}

// Recoverable reports whether an operation may continue past this kind.
// Structural inconsistencies are recoverable in principle; whether they
// actually are is decided by the active repair configuration.
func (k Kind) Recoverable() bool {
	switch k {
	case KindFieldNotFound, KindStructuralInconsistency:
		return true
	default:
		return false
	}
}

// Error is the concrete error type carried through the pipeline.
type Error struct {
	Kind      Kind
	Op        string
	ObjectNum int
	Message   string
	Err       error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.ObjectNum > 0 {
		return fmt.Sprintf("[%s] %s: object %d: %s", e.Kind, e.Op, e.ObjectNum, msg)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Op, msg)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// Unsupported builds a structural-unsupported error.
func Unsupported(op, message string) *Error {
	return &Error{Kind: KindStructuralUnsupported, Op: op, Message: message}
}

// Inconsistency builds a structural-inconsistency error for an object.
func Inconsistency(op string, objectNum int, message string) *Error {
	return &Error{Kind: KindStructuralInconsistency, Op: op, ObjectNum: objectNum, Message: message}
}

// FieldNotFound builds the non-fatal unknown-field error.
func FieldNotFound(name string) *Error {
	return &Error{Kind: KindFieldNotFound, Op: "set field value", Message: fmt.Sprintf("field %q not found", name)}
}

// Resource wraps an I/O failure for a temporary or output file.
func Resource(op string, err error) *Error {
	return &Error{Kind: KindResourceUnavailable, Op: op, Err: err}
}

// Toolkit wraps an external engine failure, keeping the engine's own
// diagnostic text.
func Toolkit(op, diagnostic string, err error) *Error {
	return &Error{Kind: KindToolkitFailure, Op: op, Message: diagnostic, Err: err}
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, k Kind) bool {
	var pe *Error
	if stderrors.As(err, &pe) {
		return pe.Kind == k
	}
	return false
}
