package domain

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindInvalidInput      ErrorKind = "invalid_input"
	KindNotFound          ErrorKind = "not_found"
	KindUnauthorized      ErrorKind = "unauthorized"
	KindConnectionMissing ErrorKind = "connection_missing"
	KindNetwork           ErrorKind = "network"
	KindServer            ErrorKind = "server"
	KindInvalidValue      ErrorKind = "invalid_value"
	KindUnsupported       ErrorKind = "unsupported"
	KindUnableToLoad      ErrorKind = "unable_to_load"
)

// Error is the typed failure returned across the application boundary.
// Message is always a complete sentence that can be shown to the user as is.
type Error struct {
	Kind    ErrorKind
	Message string
	Status  int
	Body    string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func WrapError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func ServerError(status int, body, message string) *Error {
	return &Error{Kind: KindServer, Message: message, Status: status, Body: body}
}

// KindOf returns the kind of the first *Error in the chain, or "" if there is none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// Common user-facing messages.
const (
	MsgConnectionNotConfigured = "The hub connection is not configured for this home."
	MsgHomeUnreachable         = "We cannot find your hub on the home Wi-Fi. It looks like you are away from home, so switch to Cloud mode to control your place."
	MsgCloudUnreachable        = "Cloud access is not ready yet. The homeowner needs to finish setting up remote access for this property."
	MsgUserNotFound            = "We could not find that account."
	MsgDeviceNotFound          = "We could not find that device."
	MsgHistoryUnavailable      = "We could not load your history right now. Please try again."
	MsgStoreUnavailable        = "We could not reach the home database right now. Please try again."
	MsgMissingCredentials      = "Enter both username and password to sign in."
	MsgSessionExpired          = "Your session has ended. Please sign in again."
	MsgCommandNeedsValue       = "This command requires a numeric value."
)

func UnsupportedCommand(detail string) *Error {
	return NewError(KindUnsupported, fmt.Sprintf("Unsupported command: %s.", detail))
}
