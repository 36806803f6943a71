package catalog

import (
	"errors"
	"fmt"
)

// Common errors returned by catalog clients.
var (
	// ErrNetwork matches any error for a remote call that could not complete.
	ErrNetwork = errors.New("catalog network error")

	// ErrProtocol matches any error for a response that could not be parsed
	// into the expected shape.
	ErrProtocol = errors.New("catalog protocol error")

	// ErrNotFound matches any error for an id unknown to the catalog.
	ErrNotFound = errors.New("catalog item not found")

	// ErrInvalidPage is returned for a negative offset or a non-positive limit.
	ErrInvalidPage = errors.New("invalid page: offset must be >= 0 and limit > 0")

	// ErrInvalidID is returned for a negative item id.
	ErrInvalidID = errors.New("invalid item id: must be >= 0")
)

// ErrorKind is the failure taxonomy of a catalog call.
type ErrorKind string

const (
	// KindNetwork is a transport failure or a non-success status.
	KindNetwork ErrorKind = "network"

	// KindProtocol is a malformed response.
	KindProtocol ErrorKind = "protocol"

	// KindNotFound is an unknown id.
	KindNotFound ErrorKind = "not_found"
)

// Error is a catalog call failure with additional context.
type Error struct {
	Kind ErrorKind

	// Op is the failing operation ("list" or "get").
	Op string

	// StatusCode is the HTTP status of the response, 0 when none was received.
	StatusCode int

	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("catalog %s %s error", e.Op, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel matching the error kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNetwork:
		return e.Kind == KindNetwork
	case ErrProtocol:
		return e.Kind == KindProtocol
	case ErrNotFound:
		return e.Kind == KindNotFound
	default:
		return false
	}
}

// NetworkError builds a KindNetwork error.
func NetworkError(op string, status int, err error) *Error {
	return &Error{Kind: KindNetwork, Op: op, StatusCode: status, Err: err}
}

// ProtocolError builds a KindProtocol error.
func ProtocolError(op, message string, err error) *Error {
	return &Error{Kind: KindProtocol, Op: op, Message: message, Err: err}
}

// NotFoundError builds a KindNotFound error for id.
func NotFoundError(op string, id int) *Error {
	return &Error{Kind: KindNotFound, Op: op, StatusCode: 404, Message: fmt.Sprintf("id %d", id)}
}

// KindOf returns the kind of a catalog error, or "" when err is not one.
func KindOf(err error) ErrorKind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}
