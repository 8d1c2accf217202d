// Package errs provides the error kinds shared by the storage layers and the
// service.
//
// Repositories and file stores wrap their native errors (pgx, MinIO, os)
// into *errs.Error so callers can branch on the kind without importing a
// driver package:
//
//	if errs.IsNotFound(err) {
//	    // respond 404
//	}
package errs

import (
	"errors"
	"fmt"
)

// Kind categorises an error independently of the backend that produced it.
type Kind int

const (
	KindUnknown          Kind = iota
	KindNotFound                // no row, no object
	KindInvalidInput            // bad arguments from the caller
	KindPermissionDenied        // not authenticated or not the owner
	KindConflict                // unique violation, state transition lost
	KindConnectionFailed        // backend unreachable
	KindTimeout                 // deadline or cancellation
	KindQueryFailed             // SQL or storage operation failed
	KindUnavailable             // capacity exhausted, retry later
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidInput:
		return "invalid_input"
	case KindPermissionDenied:
		return "permission_denied"
	case KindConflict:
		return "conflict"
	case KindConnectionFailed:
		return "connection_failed"
	case KindTimeout:
		return "timeout"
	case KindQueryFailed:
		return "query_failed"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Error is the error type returned by the storage layers.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is / errors.As to reach the cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an *Error with no cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf creates an *Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error around cause.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func IsNotFound(err error) bool         { return KindOf(err) == KindNotFound }
func IsInvalidInput(err error) bool     { return KindOf(err) == KindInvalidInput }
func IsPermissionDenied(err error) bool { return KindOf(err) == KindPermissionDenied }
func IsConflict(err error) bool         { return KindOf(err) == KindConflict }
func IsTimeout(err error) bool          { return KindOf(err) == KindTimeout }
func IsUnavailable(err error) bool      { return KindOf(err) == KindUnavailable }
