// Package errs provides the unified error type used across the file server.
//
// Every subsystem (registry, localhost listener, object-store driver, …)
// wraps its native errors into *errs.Error before returning them to callers.
// Callers use the Is* predicates to handle errors without importing
// backend-specific packages.
//
// Usage:
//
//	// In a backend — wrap native errors:
//	return errs.Wrap(errs.ErrKindUnavailable, "listener failed to bind", err)
//
//	// In a caller — check error kind:
//	if errs.IsNotFound(err) {
//	    // token unknown, expired, or not yet fulfilled
//	}
package errs

import (
	"errors"
	"fmt"
)

// ErrKind categorises an error without exposing backend-specific codes.
// Both backends (localhost listener, object store) map their native errors
// to one of these kinds, giving callers a single consistent API.
type ErrKind int

const (
	ErrKindUnknown         ErrKind = iota
	ErrKindNotFound                // missing file, unknown/expired token, no object
	ErrKindPayloadTooLarge         // upload body exceeds the registered limit
	ErrKindConfiguration           // backend selected without required settings
	ErrKindUnavailable             // listener failed to bind; store unreachable
	ErrKindTimeout                 // context deadline / cancellation
	ErrKindInvalidInput            // bad arguments from the caller
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindNotFound:
		return "not_found"
	case ErrKindPayloadTooLarge:
		return "payload_too_large"
	case ErrKindConfiguration:
		return "configuration"
	case ErrKindUnavailable:
		return "unavailable"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindInvalidInput:
		return "invalid_input"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by all file-server subsystems.
// Backends produce it; callers inspect it via the Is* predicates below.
type Error struct {
	Kind    ErrKind
	Message string
	Cause   error // original backend-level error, preserved for logging
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// --- Constructors ---

// New creates an *Error with the given kind and message and no cause.
func New(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf creates an *Error with a formatted message and no cause.
func Newf(kind ErrKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// --- Predicates ---

// IsNotFound reports whether err represents an absent result: a source file
// missing at registration time, or a token that is unknown, expired, not yet
// fulfilled, or already consumed.
func IsNotFound(err error) bool {
	return kindOf(err) == ErrKindNotFound
}

// IsPayloadTooLarge reports whether err was caused by an upload exceeding
// its registered byte limit.
func IsPayloadTooLarge(err error) bool {
	return kindOf(err) == ErrKindPayloadTooLarge
}

// IsConfiguration reports whether err is a configuration failure, such as
// selecting the object-store backend without a bucket.
func IsConfiguration(err error) bool {
	return kindOf(err) == ErrKindConfiguration
}

// IsUnavailable reports whether err is a connectivity or bind failure.
func IsUnavailable(err error) bool {
	return kindOf(err) == ErrKindUnavailable
}

// IsTimeout reports whether err was caused by a deadline or context cancellation.
func IsTimeout(err error) bool {
	return kindOf(err) == ErrKindTimeout
}

// IsInvalidInput reports whether err was caused by bad input from the caller.
func IsInvalidInput(err error) bool {
	return kindOf(err) == ErrKindInvalidInput
}

// kindOf extracts the ErrKind from any error in the chain.
func kindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}
