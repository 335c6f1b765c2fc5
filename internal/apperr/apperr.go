// Package apperr defines the error taxonomy shared by the engine and its
// HTTP boundary. Every error the engine returns is one of these kinds, so
// handlers map errors to responses in one place instead of re-checking
// conditions per route.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation       Kind = "validation_error"
	KindStateConflict    Kind = "state_conflict"
	KindAuthorization    Kind = "authorization_error"
	KindNotFound         Kind = "not_found"
	KindPaymentTransient Kind = "payment_transient"
	KindPaymentPermanent Kind = "payment_permanent"
	KindInternal         Kind = "internal_error"
)

// Error carries a kind plus a caller-facing message. Wrapped causes stay
// available through errors.Unwrap for logging.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error {
	return newf(KindValidation, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return newf(KindStateConflict, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return newf(KindAuthorization, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return newf(KindNotFound, format, args...)
}

func PaymentTransient(msg string, cause error) *Error {
	return &Error{Kind: KindPaymentTransient, Msg: msg, Err: cause}
}

func PaymentPermanent(msg string, cause error) *Error {
	return &Error{Kind: KindPaymentPermanent, Msg: msg, Err: cause}
}

func Internal(msg string, cause error) *Error {
	return &Error{Kind: KindInternal, Msg: msg, Err: cause}
}

// KindOf extracts the kind from any error in the chain, defaulting to
// internal for unclassified errors.
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
