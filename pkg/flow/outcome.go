package flow

import (
	"reflect"
	"time"

	"github.com/google/uuid"
)

type Outcome[T any] struct {
	id         uuid.UUID
	createdAt  time.Time
	value      T
	err        error
	suppressed []error
	isSuccess  bool
	isCancel   bool
	handled    bool
}

func Success[T any](v T) Outcome[T] {
	return Outcome[T]{
		value:     v,
		isSuccess: true,
		createdAt: time.Now().UTC(),
		id:        uuid.New(),
	}
}

func Fail[T any](err error) Outcome[T] {
	if isNil(err) {
		err = New(OperationFailure, "failure without error")
	}
	return Outcome[T]{
		err:       err,
		createdAt: time.Now().UTC(),
		id:        uuid.New(),
	}
}

func Cancel[T any](err error) Outcome[T] {
	if isNil(err) {
		err = ErrCancelled
	}
	return Outcome[T]{
		err:       err,
		isCancel:  true,
		createdAt: time.Now().UTC(),
		id:        uuid.New(),
	}
}

// FailFrom moves a failure or cancellation to another value type, keeping id
// and suppressed failures.
func FailFrom[In, Out any](from Outcome[In]) Outcome[Out] {
	return Outcome[Out]{
		id:         from.id,
		createdAt:  from.createdAt,
		err:        from.err,
		suppressed: from.suppressed,
		isCancel:   from.isCancel,
		handled:    from.handled,
	}
}

func (o Outcome[T]) Value() T {
	return o.value
}

func (o Outcome[T]) Err() error {
	return o.err
}

// Info returns the failure as *Error, nil on success.
func (o Outcome[T]) Info() *Error {
	if o.isSuccess {
		return nil
	}
	return Info(o.err)
}

func (o Outcome[T]) IsSuccess() bool {
	return o.isSuccess
}

// IsFailure is true for failures and cancellations.
func (o Outcome[T]) IsFailure() bool {
	return !o.isSuccess && o.err != nil
}

func (o Outcome[T]) IsCancel() bool {
	return o.isCancel
}

// Handled reports a failure that a catch handler has already seen. It stays
// a failure but no longer counts as unhandled.
func (o Outcome[T]) Handled() bool {
	return o.handled && o.IsFailure()
}

// MarkHandled flags a failure as seen by a catch handler. Successes are
// returned unchanged.
func (o Outcome[T]) MarkHandled() Outcome[T] {
	if !o.IsFailure() {
		return o
	}
	out := o
	out.handled = true
	return out
}

func (o Outcome[T]) IsEmpty() bool {
	return o.err == nil && !o.isCancel && !o.isSuccess
}

func (o Outcome[T]) CreatedAt() time.Time {
	return o.createdAt
}

func (o Outcome[T]) Id() uuid.UUID {
	return o.id
}

// Suppressed lists secondary failures recorded by cleanup handlers. They never
// change the outcome's tag.
func (o Outcome[T]) Suppressed() []error {
	return append([]error(nil), o.suppressed...)
}

func (o Outcome[T]) WithSuppressed(err error) Outcome[T] {
	errs := unjoin(err)
	if len(errs) == 0 {
		return o
	}
	out := o
	out.suppressed = make([]error, 0, len(o.suppressed)+len(errs))
	out.suppressed = append(out.suppressed, o.suppressed...)
	out.suppressed = append(out.suppressed, errs...)
	return out
}

// Map transforms a success value; failures pass through untouched.
func (o Outcome[T]) Map(fn func(T) T) Outcome[T] {
	if !o.isSuccess {
		return o
	}
	out := Success(fn(o.value))
	out.suppressed = o.suppressed
	return out
}

// Equal compares tag, value and error kind/message. Ids and timestamps are
// ignored.
func (o Outcome[T]) Equal(other Outcome[T]) bool {
	if o.isSuccess != other.isSuccess || o.isCancel != other.isCancel {
		return false
	}
	if o.isSuccess {
		return reflect.DeepEqual(o.value, other.value)
	}
	a, b := Info(o.err), Info(other.err)
	if a == nil || b == nil {
		return a == b
	}
	return a.Kind == b.Kind && a.Message == b.Message
}

// unjoin flattens errors.Join trees into their leaves.
func unjoin(err error) []error {
	if isNil(err) {
		return nil
	}
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		var out []error
		for _, e := range j.Unwrap() {
			out = append(out, unjoin(e)...)
		}
		return out
	}
	return []error{err}
}
