// Package simerr defines the error taxonomy shared across the simulator:
// configuration failures (fatal at startup), invariant violations
// (programmer errors, fatal), and numeric conditions (legitimate data,
// never coerced silently).
package simerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a simulator error.
type Kind int

const (
	// KindConfiguration covers missing/unparseable parameter files, unknown
	// compounds, missing drivers, and other startup-time misconfiguration.
	KindConfiguration Kind = iota
	// KindInvariant covers state invariants a caller violated (position out
	// of range, illegal state-machine transition attempt). These are
	// programmer errors and are never expected to occur in a correct build.
	KindInvariant
	// KindNumeric flags a non-finite value that must be reported rather than
	// silently coerced (callers decide whether to filter it).
	KindNumeric
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindInvariant:
		return "invariant"
	case KindNumeric:
		return "numeric"
	default:
		return "unknown"
	}
}

// Error wraps a cause with a Kind and free-form context (what file, what
// operation) so it can propagate to the top of the program with that
// context intact.
type Error struct {
	Kind    Kind
	Context string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Context, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Context)
}

func (e *Error) Unwrap() error { return e.Cause }

// Configf builds a KindConfiguration error with a formatted context message.
func Configf(cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: KindConfiguration, Context: fmt.Sprintf(format, args...), Cause: wrap(cause)}
}

// Numericf builds a KindNumeric error with a formatted context message.
func Numericf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNumeric, Context: fmt.Sprintf(format, args...)}
}

func wrap(cause error) error {
	if cause == nil {
		return nil
	}
	return errors.WithStack(cause)
}

// Invariant panics with a KindInvariant error: a violated invariant is a
// programmer error and is not recoverable data.
func Invariant(format string, args ...interface{}) {
	panic(&Error{Kind: KindInvariant, Context: fmt.Sprintf(format, args...)})
}
