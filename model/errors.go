package model

import (
	"errors"
	"fmt"
)

// ValidationError is bad caller input. Not retryable.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func NewValidationError(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// AuthenticityError is a webhook whose signature did not verify.
type AuthenticityError struct {
	Err error
}

func (e *AuthenticityError) Error() string { return "webhook signature verification failed: " + e.Err.Error() }
func (e *AuthenticityError) Unwrap() error { return e.Err }

// NotFoundError is an unknown id on a direct lookup.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string { return e.Resource + " not found" }

// ConflictError is a lost race: double redeem, concurrent cart
// mutation during checkout. Not retryable.
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string { return e.Msg }

func NewConflictError(format string, args ...interface{}) error {
	return &ConflictError{Msg: fmt.Sprintf(format, args...)}
}

// ProviderError is an upstream failure. Safe to retry: no local state
// is persisted before the provider call succeeds.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string { return "provider " + e.Op + ": " + e.Err.Error() }
func (e *ProviderError) Unwrap() error { return e.Err }

// HTTPStatus maps the error taxonomy onto response codes.
func HTTPStatus(err error) int {
	var (
		ve *ValidationError
		ae *AuthenticityError
		nf *NotFoundError
		ce *ConflictError
		pe *ProviderError
	)
	switch {
	case errors.As(err, &ve):
		return 400
	case errors.As(err, &ae):
		return 400
	case errors.As(err, &nf):
		return 404
	case errors.As(err, &ce):
		return 409
	case errors.As(err, &pe):
		return 502
	default:
		return 500
	}
}
