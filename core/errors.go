package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error kinds. Services attach their own messages to a kind with NewError;
// the API layer maps each kind to an HTTP status.
var (
	ErrNotFound      = errors.New("not found")
	ErrForbidden     = errors.New("permission denied")
	ErrUnauthorized  = errors.New("not authenticated")
	ErrAlreadyExists = errors.New("already exists")
	ErrExpired       = errors.New("expired")
	ErrMismatch      = errors.New("mismatch")
)

type kindError struct {
	kind error
	msg  string
}

// NewError returns an error of the given kind carrying a user-facing message.
func NewError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Is(target error) bool { return target == e.kind }

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

// UpstreamError reports a failure of an external provider (storage, mail transport, AI completion...).
type UpstreamError struct {
	Service string
	Message string
	Err     error
}

func NewUpstreamError(service, msg string, err error) error {
	return &UpstreamError{Service: service, Message: msg, Err: err}
}

// NewTransportError is an UpstreamError raised by the mail transport.
func NewTransportError(err error) error {
	return &UpstreamError{Service: "mail", Message: "mail transport failed", Err: err}
}

func (err UpstreamError) Error() string {
	if err.Err == nil {
		return err.Message
	}
	return fmt.Sprintf("%s: %v", err.Message, err.Err)
}

func (err UpstreamError) Unwrap() error { return err.Err }

// Details describes the underlying provider failure.
func (err UpstreamError) Details() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// AsUpstream finds the first UpstreamError in err's chain.
func AsUpstream(err error) (*UpstreamError, bool) {
	var uerr *UpstreamError
	if errors.As(err, &uerr) {
		return uerr, true
	}
	return nil, false
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
