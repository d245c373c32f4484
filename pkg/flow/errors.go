package flow

import (
	"context"
	"errors"
	"fmt"
	"reflect"
)

// Kind classifies an Error.
type Kind int

const (
	KindUnknown Kind = iota
	ValidationError
	OperationFailure
	Cancelled
	ModeMismatch
	AlreadyAttached
	AlreadySet
	InvalidState
)

func (k Kind) String() string {
	switch k {
	case ValidationError:
		return "validation_error"
	case OperationFailure:
		return "operation_failure"
	case Cancelled:
		return "cancelled"
	case ModeMismatch:
		return "mode_mismatch"
	case AlreadyAttached:
		return "already_attached"
	case AlreadySet:
		return "already_set"
	case InvalidState:
		return "invalid_state"
	default:
		return "unknown"
	}
}

// Programmer reports kinds that signal API misuse rather than a runtime
// condition.
func (k Kind) Programmer() bool {
	switch k {
	case ModeMismatch, AlreadyAttached, AlreadySet, InvalidState:
		return true
	}
	return false
}

// Error is the error information carried by a failed Outcome.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

var (
	ErrValidation      = &Error{Kind: ValidationError}
	ErrOperation       = &Error{Kind: OperationFailure}
	ErrCancelled       = &Error{Kind: Cancelled}
	ErrModeMismatch    = &Error{Kind: ModeMismatch}
	ErrAlreadyAttached = &Error{Kind: AlreadyAttached}
	ErrAlreadySet      = &Error{Kind: AlreadySet}
	ErrInvalidState    = &Error{Kind: InvalidState}
)

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Cause != nil && e.Cause.Error() != msg {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error of the same kind when the target has no message, so
// the Err* values work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Message == "" || t.Message == e.Message
}

// Info normalises err into *Error. Foreign errors become OperationFailure,
// context cancellation becomes Cancelled.
func Info(err error) *Error {
	if isNil(err) {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	if IsCancellation(err) {
		return &Error{Kind: Cancelled, Message: err.Error(), Cause: err}
	}
	return &Error{Kind: OperationFailure, Message: err.Error(), Cause: err}
}

func KindOf(err error) Kind {
	if info := Info(err); info != nil {
		return info.Kind
	}
	return KindUnknown
}

// IsRecoverable reports whether a catch handler may see err. Programmer errors
// are always surfaced.
func IsRecoverable(err error) bool {
	if isNil(err) {
		return false
	}
	return !KindOf(err).Programmer()
}

// IsCancellation reports a context cancellation or deadline, or an Error of
// kind Cancelled, anywhere in err's chain.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, ErrCancelled)
}

// isNil also catches a typed nil such as (*Error)(nil) stored in an error.
func isNil(err error) bool {
	if err == nil {
		return true
	}
	v := reflect.ValueOf(err)
	return v.Kind() == reflect.Ptr && v.IsNil()
}

// PanicError wraps a panic value that was not raised through Throw.
type PanicError struct {
	Value any
}

func (e PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

func (e PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
