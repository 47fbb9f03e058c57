package domain

import (
	"errors"
	"fmt"
)

// Code classifies an operation failure. Every recoverable failure is
// reported back to the originating connection only; it never terminates
// the connection or other in-flight work.
type Code string

const (
	// Unauthorized means the connection's identity could not be resolved.
	// It is fatal to the connection attempt, never to an established one.
	Unauthorized Code = "unauthorized"
	// PermissionDenied means a membership, role, mute or block rule
	// rejected the operation.
	PermissionDenied Code = "permission_denied"
	// InvalidArgument means the request shape was malformed.
	InvalidArgument Code = "invalid_argument"
	// InvalidState means the operation is not valid for the entity's
	// current state, e.g. unmuting a user who is not muted.
	InvalidState Code = "invalid_state"
	// NotFound means a referenced session, channel or user is absent.
	NotFound Code = "not_found"
)

// Error carries a taxonomy code alongside a caller-facing message.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Errorf builds a coded error.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the taxonomy code from err, unwrapping as needed.
// Errors without a code are treated as InvalidState: they come from
// collaborators and are still recoverable at the event boundary.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return InvalidState
}
