package procurement

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a procurement failure for the caller
type ErrorKind string

const (
	// KindValidation is bad input, rejected before anything is written
	KindValidation ErrorKind = "validation"
	// KindNotFound is a missing request, product, quote or conversation
	KindNotFound ErrorKind = "not_found"
	// KindConflict is a concurrent write that won first
	KindConflict ErrorKind = "conflict"
	// KindInvariant is an operation the lifecycle forbids
	KindInvariant ErrorKind = "invariant"
)

// Error is a classified procurement error. Reason is safe to show to API clients.
type Error struct {
	Kind   ErrorKind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

func validationErr(format string, args ...interface{}) error {
	return &Error{Kind: KindValidation, Reason: fmt.Sprintf(format, args...)}
}

func notFoundErr(what string, err error) error {
	return &Error{Kind: KindNotFound, Reason: what + " not found", Err: err}
}

func invariantErr(format string, args ...interface{}) error {
	return &Error{Kind: KindInvariant, Reason: fmt.Sprintf(format, args...)}
}

func conflictErr(format string, args ...interface{}) error {
	return &Error{Kind: KindConflict, Reason: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of a procurement error, or "" for anything else
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsValidation reports whether err is a validation error
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// IsNotFound reports whether err is a not-found error
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsInvariant reports whether err is an invariant violation
func IsInvariant(err error) bool { return KindOf(err) == KindInvariant }

// IsConflict reports whether err is a lost concurrent write
func IsConflict(err error) bool { return KindOf(err) == KindConflict }

// ReasonOf returns the client-safe reason of a procurement error
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}
