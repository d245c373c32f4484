package flow

import (
	"errors"
	"fmt"
)

// Thrown marks a panic raised by Throw so Catch can tell it from a crash.
// Suppressed carries cleanup failures of the outcome that was re-raised.
type Thrown struct {
	Err        error
	Suppressed []error
}

// Throw raises err up the call stack.
func Throw(err error) {
	if isNil(err) {
		return
	}
	panic(Thrown{Err: err})
}

// Rethrow raises a failed outcome together with its suppressed failures.
// Successes are ignored.
func Rethrow[T any](out Outcome[T]) {
	if !out.IsFailure() {
		return
	}
	panic(Thrown{Err: out.Err(), Suppressed: out.Suppressed()})
}

// FailRecovered turns a recovered panic value into a failure, keeping the
// suppressed failures a Rethrow carried.
func FailRecovered[T any](r any) Outcome[T] {
	out := Fail[T](Recover(r))
	if t, ok := r.(Thrown); ok && len(t.Suppressed) > 0 {
		out = out.WithSuppressed(errors.Join(t.Suppressed...))
	}
	return out
}

func Throwf(kind Kind, format string, args ...any) {
	Throw(Newf(kind, format, args...))
}

// Validate raises a ValidationError when ok is false.
func Validate(ok bool, format string, args ...any) {
	if !ok {
		Throw(Newf(ValidationError, format, args...))
	}
}

// Catch stops a panic raised by Throw and stores its error in *perr. Other
// panics keep unwinding. Use it deferred:
//
//	defer flow.Catch(&err)
func Catch(perr *error) {
	r := recover()
	if r == nil {
		return
	}
	if t, ok := r.(Thrown); ok {
		*perr = t.Err
		return
	}
	panic(r)
}

// Recover converts any recovered panic value into an error. It returns nil
// for a nil value.
func Recover(r any) error {
	switch v := r.(type) {
	case nil:
		return nil
	case Thrown:
		return v.Err
	case *Error:
		return v
	default:
		return PanicError{Value: v}
	}
}

// Guard runs fn and turns a raised error or panic into a failure.
func Guard[T any](fn func() Outcome[T]) (out Outcome[T]) {
	defer func() {
		if r := recover(); r != nil {
			out = FailRecovered[T](r)
		}
	}()
	return fn()
}

func (t Thrown) Error() string {
	return fmt.Sprintf("thrown: %v", t.Err)
}

func (t Thrown) Unwrap() error {
	return t.Err
}
