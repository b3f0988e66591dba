// Package apperr defines the client-facing error taxonomy shared by the
// validation, service and handler layers.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind string

const (
	KindMissingField        Kind = "missing_field"
	KindInvalidEmail        Kind = "invalid_email"
	KindInvalidPhone        Kind = "invalid_phone"
	KindInvalidInput        Kind = "invalid_input"
	KindDuplicateEmail      Kind = "duplicate_email"
	KindDuplicatePhone      Kind = "duplicate_phone"
	KindDuplicateCategory   Kind = "duplicate_category"
	KindDuplicateTicket     Kind = "duplicate_ticket"
	KindInvalidCredentials  Kind = "invalid_credentials"
	KindUnauthorized        Kind = "unauthorized"
	KindForbidden           Kind = "forbidden"
	KindNotFound            Kind = "not_found"
	KindInsufficientTickets Kind = "insufficient_tickets"
	KindIntegrityViolation  Kind = "integrity_violation"
)

// Error is a taxonomy error. Message is safe to show to clients; Err carries
// the underlying cause for logging and is never serialised.
type Error struct {
	Kind    Kind
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, apperr.New(k, ""))
// works as a kind check.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// New builds an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an error of the given kind around cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if there
// is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

func MissingField(field, message string) *Error {
	if message == "" {
		message = field + " is required"
	}
	return &Error{Kind: KindMissingField, Field: field, Message: message}
}

func InvalidEmail(message string) *Error {
	return &Error{Kind: KindInvalidEmail, Field: "email", Message: message}
}

func InvalidPhone(message string) *Error {
	return &Error{Kind: KindInvalidPhone, Field: "phone", Message: message}
}

func InvalidInput(field, message string) *Error {
	return &Error{Kind: KindInvalidInput, Field: field, Message: message}
}

func DuplicateEmail() *Error {
	return &Error{Kind: KindDuplicateEmail, Field: "email", Message: "email already in use"}
}

func DuplicatePhone() *Error {
	return &Error{Kind: KindDuplicatePhone, Field: "phone", Message: "phone already in use"}
}

func DuplicateCategory() *Error {
	return &Error{Kind: KindDuplicateCategory, Field: "name", Message: "category exists"}
}

func DuplicateTicket(name string) *Error {
	return &Error{Kind: KindDuplicateTicket, Field: "name", Message: fmt.Sprintf("ticket with name %s already exists", name)}
}

// InvalidCredentials is returned for every login failure so responses do not
// reveal whether the email or the password was wrong.
func InvalidCredentials() *Error {
	return &Error{Kind: KindInvalidCredentials, Message: "invalid email or password"}
}

func Unauthorized() *Error {
	return &Error{Kind: KindUnauthorized, Message: "unauthorized"}
}

func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

func NotFound(what string) *Error {
	return &Error{Kind: KindNotFound, Message: what + " not found"}
}

// IntegrityViolation hides the storage error text behind a generic message.
func IntegrityViolation(cause error) *Error {
	return &Error{Kind: KindIntegrityViolation, Message: "request conflicts with existing data", Err: cause}
}
