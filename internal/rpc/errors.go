package rpc

import (
	"errors"
	"fmt"
	"net/http"
)

// InternalErrorMessage is sent for failures that are not *Error values.
const InternalErrorMessage = "Internal server error"

// Error is the envelope returned to callers when a handler fails.
type Error struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Status, e.Message)
}

// NewError creates an envelope with the given status and message.
func NewError(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

// BadRequest creates a 400 envelope.
func BadRequest(message string) *Error {
	return NewError(http.StatusBadRequest, message)
}

// Unauthorized creates a 401 envelope.
func Unauthorized(message string) *Error {
	return NewError(http.StatusUnauthorized, message)
}

// AsError returns the envelope carried by err, or a 500 envelope when err
// does not wrap one. Internal details never leave the service.
func AsError(err error) *Error {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	return NewError(http.StatusInternalServerError, InternalErrorMessage)
}
