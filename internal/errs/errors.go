// Package errs holds the error taxonomy shared by the extraction pipeline.
// Retry decisions are made on Kind alone.
package errs

import (
	"errors"
	"fmt"
)

// Kind tags an error with the class that drives propagation and retry policy.
type Kind int

const (
	Unknown Kind = iota
	NotFound
	Format
	Parse
	Transport
	Validation
	FatalDiagnostic
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case Format:
		return "format"
	case Parse:
		return "parse"
	case Transport:
		return "transport"
	case Validation:
		return "validation"
	case FatalDiagnostic:
		return "fatal_diagnostic"
	default:
		return "unknown"
	}
}

// Error is a kinded error carrying the failing operation.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// E wraps err with kind and op. A nil err yields nil.
func E(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a kinded error from a format string.
func Errorf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost kinded error in the chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Is reports whether err carries kind k.
func Is(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// Retryable reports whether a per-item failure of kind k may be retried.
func Retryable(k Kind) bool {
	switch k {
	case Parse, Transport, Validation:
		return true
	}
	return false
}
