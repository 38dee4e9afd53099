package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError is returned for malformed or duplicate input. The caller can correct & retry.
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

// ConflictError is returned when an operation is not allowed in the current state of a resource.
// Nothing has been changed when it is returned.
type ConflictError struct {
	Msg string
}

func NewConflictError(msg string) *ConflictError {
	return &ConflictError{Msg: msg}
}

func (err ConflictError) Error() string { return err.Msg }

// NotFoundError is returned when the requested resource does not exist.
type NotFoundError struct {
	Msg string
}

func NewNotFoundError(msg string) *NotFoundError {
	return &NotFoundError{Msg: msg}
}

func (err NotFoundError) Error() string { return err.Msg }

// ProvisioningError is returned when a downstream account could not be created or updated.
type ProvisioningError struct {
	Err error
}

func NewProvisioningError(err error) error {
	return &ProvisioningError{Err: err}
}

func (err ProvisioningError) Error() string {
	if err.Err == nil {
		return "account provisioning failed"
	}
	return "account provisioning failed: " + err.Err.Error()
}

func (err ProvisioningError) Unwrap() error { return err.Err }

// Authentication failure reasons
const (
	AuthInvalidCredentials = "invalid_credentials"
	AuthPendingReview      = "pending_review"
	AuthRejected           = "rejected"
	AuthAccountInactive    = "account_inactive"
)

// AuthFailure is returned by login attempts. Reason tells the failures apart.
type AuthFailure struct {
	Reason string
	Msg    string
}

func NewAuthFailure(reason, msg string) *AuthFailure {
	return &AuthFailure{Reason: reason, Msg: msg}
}

func (err AuthFailure) Error() string { return err.Msg }

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
