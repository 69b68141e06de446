package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError is an InvalidInput error: surfaced to the user as a form validation message.
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
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

func IsValidationError(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}

// NotFoundError is returned when an organization, guardian or any other entity does not exist.
// It is expected: not logged.
type NotFoundError struct {
	message string
}

func NewNotFoundError(msg string) error {
	return &NotFoundError{message: msg}
}

func (e NotFoundError) Error() string {
	return e.message
}

func IsNotFound(err error) bool {
	var nfErr *NotFoundError
	return errors.As(err, &nfErr)
}

// ConflictError is returned on duplicate registrations. Its message is surfaced verbatim.
type ConflictError struct {
	message string
}

func NewConflictError(msg string) error {
	return &ConflictError{message: msg}
}

func (e ConflictError) Error() string {
	return e.message
}

func IsConflict(err error) bool {
	var cErr *ConflictError
	return errors.As(err, &cErr)
}

// StoreError means the store could not serve the request (connectivity, credentials, unexpected fault).
// It is unexpected: logged and surfaced as a generic system error.
type StoreError struct {
	Err     error
	message string
}

func NewStoreError(err error, msg string) error {
	return &StoreError{Err: err, message: msg}
}

func (e StoreError) Error() string {
	if e.Err == nil {
		return e.message
	}
	return e.message + ": " + e.Err.Error()
}

func (e StoreError) Unwrap() error { return e.Err }

func IsStoreError(err error) bool {
	var sErr *StoreError
	return errors.As(err, &sErr)
}

// ConstraintError reports a unique, foreign key or check constraint violation raised by the store.
type ConstraintError struct {
	Err        error
	Constraint string
}

func NewConstraintError(err error, constraint string) error {
	return &ConstraintError{Err: err, Constraint: constraint}
}

func (e ConstraintError) Error() string {
	return "constraint violation (" + e.Constraint + "): " + e.Err.Error()
}

func (e ConstraintError) Unwrap() error { return e.Err }

func IsConstraintError(err error) bool {
	var cErr *ConstraintError
	return errors.As(err, &cErr)
}

// IdentityError means the identity provider failed or the user is not in the required embedded session.
type IdentityError struct {
	Err     error
	message string
}

func NewIdentityError(err error, msg string) error {
	return &IdentityError{Err: err, message: msg}
}

func (e IdentityError) Error() string {
	return e.message
}

func (e IdentityError) Unwrap() error { return e.Err }

func IsIdentityError(err error) bool {
	var iErr *IdentityError
	return errors.As(err, &iErr)
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
