// Package errdefs defines the error kinds shared across the tracing
// layers, so callers can decide how to react (deny a syscall, abort it,
// or fault the tracee) without parsing error strings.
package errdefs

import (
	"errors"
	"fmt"
)

// Kind classifies an error raised by the tracing layers.
type Kind int

const (
	// Unknown is the zero Kind; it matches no classified error.
	Unknown Kind = iota
	// BadAddress indicates address arithmetic that would leave the
	// tracee's valid address space (unsigned under/overflow).
	BadAddress
	// NotSupported indicates an operation the current platform or
	// architecture cannot perform.
	NotSupported
	// Interrupted indicates a trap wait cut short by a signal.
	Interrupted
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case BadAddress:
		return "bad address"
	case NotSupported:
		return "not supported"
	case Interrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// Error is a classified error with an attached message and optional cause.
type Error struct {
	kind  Kind
	msg   string
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.msg)
}

// Kind returns the error's classification.
func (e *Error) Kind() Kind { return e.kind }

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error { return e.cause }

// NewBadAddress returns a BadAddress error with the given message.
func NewBadAddress(msg string) error {
	return &Error{kind: BadAddress, msg: msg}
}

// NewNotSupported returns a NotSupported error with the given message.
func NewNotSupported(msg string) error {
	return &Error{kind: NotSupported, msg: msg}
}

// NewInterrupted returns an Interrupted error wrapping cause.
func NewInterrupted(msg string, cause error) error {
	return &Error{kind: Interrupted, msg: msg, cause: cause}
}

// IsKind reports whether err or any error it wraps has the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.kind == kind
}

// IsBadAddress reports whether err is a BadAddress error.
func IsBadAddress(err error) bool { return IsKind(err, BadAddress) }
