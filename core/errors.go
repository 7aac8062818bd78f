package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError is returned when the data sent by a client is invalid (400).
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

func (err ValidationError) Unwrap() error { return err.Err }

// NotFoundError is returned when a resource does not exist or is not visible to the caller (404).
type NotFoundError struct {
	Resource string
}

func NewNotFoundError(resource string) error {
	return &NotFoundError{Resource: resource}
}

func (err NotFoundError) Error() string {
	return err.Resource + " not found"
}

func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}

// PermissionError is returned when the caller is not allowed to perform an action (403).
type PermissionError struct {
	Reason string
}

func NewPermissionError(reason string) error {
	return &PermissionError{Reason: reason}
}

func (err PermissionError) Error() string {
	return err.Reason
}

// ConflictError is returned when a concurrent request already holds the resource (409).
type ConflictError struct {
	Key string
}

func NewConflictError(key string) error {
	return &ConflictError{Key: key}
}

func (err ConflictError) Error() string {
	return "request already in progress"
}

func IsConflict(err error) bool {
	_, ok := errors.Cause(err).(*ConflictError)
	return ok
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
