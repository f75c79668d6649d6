// Copyright 2017 First Flamingo Enterprise B.V.
// This software is released under an MIT/X11 open source license.

package resource

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorStatus describes errors that correspond to specific HTTP status
// codes.
type ErrorStatus interface {
	// HTTPStatus returns the HTTP status code for this error.
	HTTPStatus() int
}

// ErrNoValidIdentifier is returned when a candidate identifier fails
// its class grammar.
var ErrNoValidIdentifier = errors.New("not a valid identifier")

// ErrNotFound is a wrapper error that indicates that, due to the
// embedded error, the REST service should return 404 Not Found.
type ErrNotFound struct {
	Err error
}

func (e ErrNotFound) Error() string {
	return e.Err.Error()
}

// HTTPStatus returns a fixed 404 Not Found status code.
func (e ErrNotFound) HTTPStatus() int {
	return http.StatusNotFound
}

// ErrBadRequest is returned when a request header or identifier cannot
// be interpreted at all.
type ErrBadRequest struct {
	Err error
}

func (e ErrBadRequest) Error() string {
	return e.Err.Error()
}

// HTTPStatus returns a fixed 400 Bad Request status code.
func (e ErrBadRequest) HTTPStatus() int {
	return http.StatusBadRequest
}

// ErrMethodNotAllowed flags an HTTP method the addressed resource does
// not support.
type ErrMethodNotAllowed struct {
	Method string
}

func (e ErrMethodNotAllowed) Error() string {
	return fmt.Sprintf("Method %v not allowed", e.Method)
}

// HTTPStatus returns a fixed 405 Method Not Allowed status code.
func (e ErrMethodNotAllowed) HTTPStatus() int {
	return http.StatusMethodNotAllowed
}

// ErrUnsupportedMediaType is returned when the Content-Type of a
// request body is not among the class's readable types.
type ErrUnsupportedMediaType struct {
	Type string
}

func (e ErrUnsupportedMediaType) Error() string {
	return fmt.Sprintf("Unsupported media type %q", e.Type)
}

// HTTPStatus returns a fixed 415 Unsupported Media Type status code.
func (e ErrUnsupportedMediaType) HTTPStatus() int {
	return http.StatusUnsupportedMediaType
}

// ErrNotAcceptable is returned when the Accept header does not mention
// any media type the class can actually write.
type ErrNotAcceptable struct{}

func (e ErrNotAcceptable) Error() string {
	return "No acceptable representation for response"
}

// HTTPStatus returns a fixed 406 Not Acceptable status code.
func (e ErrNotAcceptable) HTTPStatus() int {
	return http.StatusNotAcceptable
}

// ErrMissingPrecondition is returned when a PUT against an existing
// resource carries no If-Unmodified-Since header.  The client cannot
// prove which version it is updating, so the request conflicts by
// definition.
type ErrMissingPrecondition struct{}

func (e ErrMissingPrecondition) Error() string {
	return "Update requires an If-Unmodified-Since header"
}

// HTTPStatus returns a fixed 409 Conflict status code.
func (e ErrMissingPrecondition) HTTPStatus() int {
	return http.StatusConflict
}

// ErrPreconditionFailed is returned when the stored resource is
// strictly newer than the version the client claims to have seen.
type ErrPreconditionFailed struct{}

func (e ErrPreconditionFailed) Error() string {
	return "Resource has been modified since the provided timestamp"
}

// HTTPStatus returns a fixed 412 Precondition Failed status code.
func (e ErrPreconditionFailed) HTTPStatus() int {
	return http.StatusPreconditionFailed
}

// ErrInvalidPayload is returned from Object.Update when the submitted
// body parses but cannot be applied to the resource.
type ErrInvalidPayload struct {
	Err error
}

func (e ErrInvalidPayload) Error() string {
	if e.Err == nil {
		return "Invalid update payload"
	}
	return e.Err.Error()
}

// HTTPStatus returns a fixed 422 Unprocessable Entity status code.
func (e ErrInvalidPayload) HTTPStatus() int {
	return http.StatusUnprocessableEntity
}
