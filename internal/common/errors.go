package common

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound         = errors.New("resource not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrNoSelection      = errors.New("no document selected")
	ErrUploadInProgress = errors.New("upload already in progress")
	ErrEmptyQueue       = errors.New("no files queued")
	ErrIndexOutOfRange  = errors.New("index out of range")
	ErrUnknownField     = errors.New("unknown field")
	ErrRefreshFailed    = errors.New("document list refresh failed")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// TransportError is a failed backend call: the backend was unreachable or
// answered with a non-2xx status.
type TransportError struct {
	Op     string // backend operation, e.g. "upload"
	Status int    // HTTP status; 0 when no response was received
	Detail string // "detail" field of the error body, if any
	Err    error
}

func (e *TransportError) Error() string {
	switch {
	case e.Detail != "" && e.Status != 0:
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Detail)
	case e.Detail != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Detail)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: status %d", e.Op, e.Status)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Reason is the text shown to the user: the server detail when present,
// else the transport error text.
func (e *TransportError) Reason() string {
	if e.Detail != "" {
		return e.Detail
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("request failed with status code %d (%s)", e.Status, http.StatusText(e.Status))
	}
	return "request failed"
}

// UserMessage formats a notification such as "Error uploading files: <reason>".
// Errors that are not TransportErrors use their own text.
func UserMessage(prefix string, err error) string {
	var te *TransportError
	if errors.As(err, &te) {
		return prefix + ": " + te.Reason()
	}
	return prefix + ": " + err.Error()
}

// ParseError is a preview failure for one file. It never leaves the viewer.
type ParseError struct {
	File string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %q: %v", e.File, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
