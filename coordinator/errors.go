package coordinator

import (
	"errors"
	"fmt"

	"chatdesk/state"
)

// ErrorKind classifies coordinator failures.
type ErrorKind string

const (
	// KindTransport covers every failed backend call; status codes are not interpreted.
	KindTransport ErrorKind = "transport"
	// KindPrecondition is raised before any network call is made.
	KindPrecondition ErrorKind = "precondition"
	// KindValidation rejects bad user input.
	KindValidation ErrorKind = "validation"
)

var (
	ErrEmptyMessage        = errors.New("message is empty")
	ErrEmptyInput          = errors.New("input is empty")
	ErrEmptyDocument       = errors.New("document is empty")
	ErrDocumentTooLarge    = errors.New("document exceeds size limit")
	ErrUnsupportedDocument = errors.New("unsupported document type")
	ErrNoDocumentSession   = errors.New("no document session is active")
	ErrSessionNotFound     = state.ErrSessionNotFound
	ErrModelNotFound       = state.ErrModelNotFound
)

// Error is returned by every coordinator operation that fails.
type Error struct {
	Kind  ErrorKind
	Op    string
	Cause error
}

func (e *Error) Error() string {
	if e == nil {
		return "coordinator: <nil>"
	}
	return fmt.Sprintf("%s failed (%s): %v", e.Op, e.Kind, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// KindOf returns the kind of a coordinator error, or "" for other errors.
func KindOf(err error) ErrorKind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}
