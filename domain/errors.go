package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error for callers and transports.
type Kind string

const (
	KindUnauthenticated      Kind = "unauthenticated"
	KindForbidden            Kind = "forbidden"
	KindNotFound             Kind = "not-found"
	KindValidation           Kind = "validation"
	KindStateConflict        Kind = "state-conflict"
	KindRoutingNotConfigured Kind = "routing-not-configured"
	KindInternal             Kind = "internal"
)

// Violation names one offending field of a rejected request.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the typed result returned by every workflow operation.
type Error struct {
	Kind       Kind
	Message    string
	Violations []Violation
	// Retryable is set when the caller should reload and try again.
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	msg := e.Message
	if len(e.Violations) > 0 {
		parts := make([]string, 0, len(e.Violations))
		for _, v := range e.Violations {
			parts = append(parts, v.Field+": "+v.Message)
		}
		msg += " (" + strings.Join(parts, "; ") + ")"
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

var (
	ErrUnauthenticated      = &Error{Kind: KindUnauthenticated, Message: "unauthenticated"}
	ErrForbidden            = &Error{Kind: KindForbidden, Message: "forbidden"}
	ErrNotFound             = &Error{Kind: KindNotFound, Message: "not found"}
	ErrValidation           = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrStateConflict        = &Error{Kind: KindStateConflict, Message: "state conflict"}
	ErrRoutingNotConfigured = &Error{Kind: KindRoutingNotConfigured, Message: "routing not configured"}
)

// KindOf returns the kind of err, or KindInternal for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Unauthenticated(msg string) *Error {
	return &Error{Kind: KindUnauthenticated, Message: msg}
}

func Forbidden(format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

func NotFound(entity string, id uint) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %d not found", entity, id)}
}

func Invalid(msg string, violations ...Violation) *Error {
	return &Error{Kind: KindValidation, Message: msg, Violations: violations}
}

func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindStateConflict, Message: fmt.Sprintf(format, args...)}
}

// StaleWrite is the retryable conflict returned when another call changed the
// evaluation between read and write.
func StaleWrite(id uint) *Error {
	return &Error{
		Kind:      KindStateConflict,
		Message:   fmt.Sprintf("evaluation %d changed concurrently, reload and retry", id),
		Retryable: true,
	}
}

func RoutingNotConfigured(departmentID uint) *Error {
	return &Error{
		Kind:    KindRoutingNotConfigured,
		Message: fmt.Sprintf("no evaluator setup configured for department %d", departmentID),
	}
}

// Violations accumulates field problems and turns them into one validation error.
type Violations []Violation

func (v *Violations) Add(field, format string, args ...any) {
	*v = append(*v, Violation{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Err returns nil when nothing was added.
func (v Violations) Err(msg string) error {
	if len(v) == 0 {
		return nil
	}
	return Invalid(msg, v...)
}
