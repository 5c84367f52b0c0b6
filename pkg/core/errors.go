package core

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error taxonomy
// =============================================================================

// ErrorKind classifies why an operation failed.
type ErrorKind string

// Error kinds surfaced by the client.
const (
	// KindValidation is a local precondition failure; no request was sent.
	KindValidation ErrorKind = "validation"
	// KindBusy means an upload is already in flight.
	KindBusy ErrorKind = "busy"
	// KindAuth means the service rejected the credentials.
	KindAuth ErrorKind = "auth"
	// KindNetwork means the request never produced an HTTP response.
	KindNetwork ErrorKind = "network"
	// KindServer means the service answered with a non-success status.
	KindServer ErrorKind = "server"
	// KindMalformed means the response could not be decoded or broke an invariant.
	KindMalformed ErrorKind = "malformed"
)

// Error is the tagged error returned by every client operation.
type Error struct {
	Kind ErrorKind
	// Op is the logical operation, e.g. "uploadDataset".
	Op string
	// Message is the user-facing text for the latest-notice slot.
	Message string
	// Status is the HTTP status code when one was received.
	Status int
	Err    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates an Error.
func NewError(kind ErrorKind, op, message string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: cause}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// MessageOf returns the user-facing message of err, falling back to fallback
// when err carries none.
func MessageOf(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return fallback
}
