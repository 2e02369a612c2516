package services

import (
	"encoding/json"
	"strings"
)

// ErrorKind classifies an authentication failure.
type ErrorKind string

const (
	KindMissingField       ErrorKind = "missing_field"
	KindMalformed          ErrorKind = "malformed"
	KindDuplicateEmail     ErrorKind = "duplicate_email"
	KindInvalidCredentials ErrorKind = "invalid_credentials"
	KindInternal           ErrorKind = "internal"
)

// AuthError is either a FieldError or a GeneralError.
type AuthError interface {
	error
	Kind() ErrorKind
	authError()
}

// FieldError is attached to one input field.
type FieldError struct {
	Field   string
	Message string
	kind    ErrorKind
}

func (e FieldError) Error() string   { return e.Field + ": " + e.Message }
func (e FieldError) Kind() ErrorKind { return e.kind }
func (FieldError) authError()        {}

func (e FieldError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	}{e.Field, e.Message})
}

// GeneralError is not tied to a field.
type GeneralError struct {
	Message string
	kind    ErrorKind
}

func (e GeneralError) Error() string   { return e.Message }
func (e GeneralError) Kind() ErrorKind { return e.kind }
func (GeneralError) authError()        {}

func (e GeneralError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Message string `json:"message"`
	}{e.Message})
}

// AuthErrors is the failure result of a register or login request.
type AuthErrors []AuthError

func (errs AuthErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Has reports whether any error is of kind k.
func (errs AuthErrors) Has(k ErrorKind) bool {
	for _, e := range errs {
		if e.Kind() == k {
			return true
		}
	}
	return false
}

func missingField(field, message string) FieldError {
	return FieldError{Field: field, Message: message, kind: KindMissingField}
}

func malformedField(field, message string) FieldError {
	return FieldError{Field: field, Message: message, kind: KindMalformed}
}

var (
	errDuplicateEmail = FieldError{
		Field:   "email",
		Message: "This email address is already registered",
		kind:    KindDuplicateEmail,
	}
	errInvalidCredentials = GeneralError{
		Message: "Incorrect email address or password",
		kind:    KindInvalidCredentials,
	}
	errInternal = GeneralError{
		Message: "A server error occurred",
		kind:    KindInternal,
	}
)
