package picoserve

import (
	"errors"
	"fmt"
	"net/http"
)

// ProtocolError is an HTTP protocol violation detected while reading or
// routing a request. The connection handler converts it into an error
// response with the embedded status code and then closes the connection;
// it never reaches a user handler.
type ProtocolError struct {
	Code   int
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Code, http.StatusText(e.Code), e.Reason)
}

// Protocol errors produced by the engine itself. NotFound and
// MethodNotAllowed are resolved entirely within the router.
var (
	ErrBadRequest       = &ProtocolError{Code: http.StatusBadRequest, Reason: "malformed request"}
	ErrHeaderTooLarge   = &ProtocolError{Code: http.StatusBadRequest, Reason: "header line too large"}
	ErrPayloadTooLarge  = &ProtocolError{Code: http.StatusRequestEntityTooLarge, Reason: "request body exceeds limit"}
	ErrNotFound         = &ProtocolError{Code: http.StatusNotFound, Reason: "no matching route"}
	ErrMethodNotAllowed = &ProtocolError{Code: http.StatusMethodNotAllowed, Reason: "method not allowed for this route"}
)

// ErrInvalidState is returned by Response methods called outside the protocol
// state they are valid in, such as setting a header after the headers have
// been sent. It indicates a bug in the handler, not a client error, and is
// never translated into a response.
var ErrInvalidState = errors.New("invalid response state")

// ErrServerRunning is returned when the route table is modified after Run has
// started. Routes are immutable while serving.
var ErrServerRunning = errors.New("server is already running")

// ErrDuplicateRoute is returned when a pattern is registered twice.
var ErrDuplicateRoute = errors.New("route already registered")

// handlerFailure marks an error (or recovered panic) coming out of a user
// handler, as opposed to a socket-level failure. The connection handler turns
// it into a 500 response if output has not started yet.
type handlerFailure struct {
	err error
}

func (e handlerFailure) Error() string {
	return e.err.Error()
}

func (e handlerFailure) Unwrap() error {
	return e.err
}
