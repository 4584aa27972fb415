// Package apperr defines the failure taxonomy shared by the services.
// Business-rule rejections are expected outcomes and carry a stable reason
// code; KindPersistence is the only kind that signals an unexpected failure.
package apperr

import (
	"errors"
	"net/http"
)

type Kind string

const (
	KindNotFound           Kind = "not_found"
	KindInvalidState       Kind = "invalid_state"
	KindMembershipRequired Kind = "membership_required"
	KindQuotaExceeded      Kind = "quota_exceeded"
	KindFull               Kind = "full"
	KindScheduleCancelled  Kind = "schedule_cancelled"
	KindAlreadyCancelled   Kind = "already_cancelled"
	KindForbidden          Kind = "forbidden"
	KindPaymentRequired    Kind = "payment_required"
	KindValidation         Kind = "validation"
	KindConflict           Kind = "conflict"
	KindPersistence        Kind = "persistence_failure"
)

// Error is a typed failure. Code refines Kind (e.g. "schedule_not_found").
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Kind, and on Code too when the target sets one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

// Sentinels for errors.Is checks against a kind.
var (
	ErrNotFound           = &Error{Kind: KindNotFound, Message: "not found"}
	ErrInvalidState       = &Error{Kind: KindInvalidState, Message: "invalid state"}
	ErrMembershipRequired = &Error{Kind: KindMembershipRequired, Message: "membership required"}
	ErrQuotaExceeded      = &Error{Kind: KindQuotaExceeded, Message: "weekly booking quota exceeded"}
	ErrFull               = &Error{Kind: KindFull, Message: "class is full"}
	ErrScheduleCancelled  = &Error{Kind: KindScheduleCancelled, Message: "schedule is cancelled"}
	ErrAlreadyCancelled   = &Error{Kind: KindAlreadyCancelled, Message: "already cancelled"}
	ErrForbidden          = &Error{Kind: KindForbidden, Message: "forbidden"}
	ErrPaymentRequired    = &Error{Kind: KindPaymentRequired, Message: "payment required"}
	ErrValidation         = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrConflict           = &Error{Kind: KindConflict, Message: "conflict"}
	ErrPersistence        = &Error{Kind: KindPersistence, Message: "persistence failure"}
)

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func NotFound(code, message string) *Error {
	return New(KindNotFound, code, message)
}

func InvalidState(code, message string) *Error {
	return New(KindInvalidState, code, message)
}

func Forbidden(code, message string) *Error {
	return New(KindForbidden, code, message)
}

func Validation(code, message string) *Error {
	return New(KindValidation, code, message)
}

// Persistence wraps an infrastructure error. Wrapping an *Error returns it unchanged.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}
	return &Error{Kind: KindPersistence, Code: "persistence_failure", Message: op, Err: err}
}

// KindOf reports the kind of err; untyped errors count as persistence failures.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindPersistence
}

// CodeOf returns the reason code of err, falling back to its kind.
func CodeOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		if appErr.Code != "" {
			return appErr.Code
		}
		return string(appErr.Kind)
	}
	return string(KindPersistence)
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindMembershipRequired, KindQuotaExceeded, KindForbidden:
		return http.StatusForbidden
	case KindFull, KindScheduleCancelled, KindInvalidState, KindAlreadyCancelled, KindValidation:
		return http.StatusBadRequest
	case KindPaymentRequired:
		return http.StatusPaymentRequired
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
