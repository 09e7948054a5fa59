// Package apperr defines the error taxonomy shared by services and the HTTP
// layer. Services return typed errors; handlers map them to status codes.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// KindInternal is the default for errors that carry no kind.
	KindInternal Kind = iota
	// KindValidation covers malformed input and bad enum values.
	KindValidation
	// KindUnauthenticated covers missing, expired, or malformed tokens.
	KindUnauthenticated
	// KindForbidden covers deactivated accounts and insufficient roles.
	KindForbidden
	// KindNotFound covers lookups of unknown ids.
	KindNotFound
	// KindModelLoad covers a model file that exists but cannot be restored.
	KindModelLoad
	// KindConfiguration covers a missing vocabulary or model artifact.
	KindConfiguration
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf walks the wrap chain and returns the first typed kind it finds.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps an error to the status code the API contract specifies.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return 400
	case KindUnauthenticated:
		return 401
	case KindForbidden:
		return 403
	case KindNotFound:
		return 404
	default:
		return 500
	}
}
