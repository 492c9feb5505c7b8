// Package faults defines the error taxonomy shared by steps, backends and the
// executor. Every failure crossing a package boundary is wrapped with a Kind so
// the step runner can decide between an error envelope, a hard stop, and an
// aborted run without string matching.
package faults

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	// KindValidation indicates malformed or schema-violating input to a step.
	KindValidation Kind = "validation"
	// KindBackend indicates an external call (model, store) failed or timed out.
	KindBackend Kind = "backend"
	// KindPermission indicates a step attempted a tool it is not allowed to use.
	KindPermission Kind = "permission"
	// KindParse indicates unparseable structured output (bad JSON from a model).
	KindParse Kind = "parse"
	// KindCancelled indicates the context was cancelled or timed out.
	KindCancelled Kind = "cancelled"
	// KindInternal is the catch-all for unclassified failures.
	KindInternal Kind = "internal"
)

// Error is a classified failure with an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates a classified error without a cause.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Validationf creates a validation error.
func Validationf(format string, args ...any) *Error { return New(KindValidation, format, args...) }

// Backendf creates a backend error.
func Backendf(format string, args ...any) *Error { return New(KindBackend, format, args...) }

// Permissionf creates a permission error.
func Permissionf(format string, args ...any) *Error { return New(KindPermission, format, args...) }

// Parsef creates a parse error.
func Parsef(format string, args ...any) *Error { return New(KindParse, format, args...) }

// Internalf creates an internal error.
func Internalf(format string, args ...any) *Error { return New(KindInternal, format, args...) }

// KindOf reports the classification of err. Context cancellation and deadline
// expiry map to KindCancelled even when wrapped by other packages. Anything
// unrecognized is KindInternal; a nil error has no kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCancelled
	}
	return KindInternal
}

// IsRecoverable reports whether a step failure of this kind should be converted
// into an error envelope rather than stopping or failing the run.
func IsRecoverable(kind Kind) bool {
	switch kind {
	case KindValidation, KindBackend, KindParse:
		return true
	default:
		return false
	}
}
