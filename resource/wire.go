// Copyright 2017 First Flamingo Enterprise B.V.
// This software is released under an MIT/X11 open source license.

package resource

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/ugorji/go/codec"
)

// ParseMediaType extracts the bare media type from a Content-Type or
// Accept list member, dropping any parameters, and reports whether it
// is one of the types restkit knows about.
func ParseMediaType(value string) (MediaType, bool) {
	bare := strings.TrimSpace(strings.SplitN(value, ";", 2)[0])
	switch MediaType(bare) {
	case JSON:
		return JSON, true
	case XML:
		return XML, true
	}
	return "", false
}

// EncodeJSON serializes v as JSON using the shared codec handle.
func EncodeJSON(v interface{}) ([]byte, error) {
	var out []byte
	handle := &codec.JsonHandle{}
	encoder := codec.NewEncoderBytes(&out, handle)
	err := encoder.Encode(v)
	return out, err
}

// DecodeJSON deserializes JSON into v, which must be a pointer.
func DecodeJSON(data []byte, v interface{}) error {
	handle := &codec.JsonHandle{}
	decoder := codec.NewDecoderBytes(data, handle)
	return decoder.Decode(v)
}

// ErrorResponse is the body accompanying any failing HTTP status.
type ErrorResponse struct {
	// Error is a short machine-readable description of the failure,
	// the string "panic" for a recovered panic, or "error" for
	// anything else.
	Error string `json:"error"`

	// Message is a human-readable description of the failure.
	Message string `json:"message"`

	// Stack holds a formatted backtrace, if the method failed due to
	// a panic.
	Stack string `json:"stack,omitempty"`
}

// FromError populates an error response based on an error value,
// remapping the well-known restkit errors to specific codes.
func (e *ErrorResponse) FromError(err error) {
	e.Error = "error"
	e.Message = err.Error()
	switch et := err.(type) {
	case ErrMethodNotAllowed:
		e.Error = "ErrMethodNotAllowed"
	case ErrUnsupportedMediaType:
		e.Error = "ErrUnsupportedMediaType"
	case ErrNotAcceptable:
		e.Error = "ErrNotAcceptable"
	case ErrMissingPrecondition:
		e.Error = "ErrMissingPrecondition"
	case ErrPreconditionFailed:
		e.Error = "ErrPreconditionFailed"
	case ErrInvalidPayload:
		e.Error = "ErrInvalidPayload"
	case ErrNotFound:
		// Discard the wrapper and report the embedded error
		e.FromError(et.Err)
		e.Error = "ErrNotFound"
	case ErrBadRequest:
		e.FromError(et.Err)
		e.Error = "ErrBadRequest"
	}
	if err == ErrNoValidIdentifier {
		e.Error = "ErrNoValidIdentifier"
	}
}

// FromPanic populates an error response based on a recovered panic.
func (e *ErrorResponse) FromPanic(obj interface{}) {
	e.Error = "panic"
	if recoveredError, isError := obj.(error); isError {
		e.Message = recoveredError.Error()
	} else {
		e.Message = fmt.Sprintf("%+v", obj)
	}
	var stack [4096]byte
	n := runtime.Stack(stack[:], false)
	e.Stack = string(stack[:n])
}
