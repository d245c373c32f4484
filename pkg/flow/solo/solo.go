package solo

import (
	"context"
	"errors"

	"github.com/ib-77/errflow/pkg/flow"
)

func Succeed[T any](input T) flow.Outcome[T] {
	return flow.Success(input)
}

func Fail[T any](err error) flow.Outcome[T] {
	return flow.Fail[T](err)
}

func Cancel[T any](err error) flow.Outcome[T] {
	return flow.Cancel[T](err)
}

func Validate[T any](ctx context.Context, input T,
	validate func(ctx context.Context, in T) (isValid bool, errMsg string)) flow.Outcome[T] {
	return AndValidate(ctx, Succeed(input), validate)
}

func AndValidate[T any](ctx context.Context, input flow.Outcome[T],
	validate func(ctx context.Context, in T) (valid bool, errMsg string)) flow.Outcome[T] {

	if input.IsSuccess() {
		if isValid, errMsg := validate(ctx, input.Value()); !isValid {
			return flow.Fail[T](flow.New(flow.ValidationError, errMsg))
		}
	}
	return input
}

// ValidateAll runs every validator and joins their failures. With
// breakOnError it stops at the first one.
func ValidateAll[T any](ctx context.Context, input flow.Outcome[T], breakOnError bool,
	validators ...func(ctx context.Context, in T) (valid bool, errMsg string)) flow.Outcome[T] {

	if !input.IsSuccess() {
		return input
	}

	var errs []error
	for _, validate := range validators {
		if ctx.Err() != nil {
			break
		}
		if valid, errMsg := validate(ctx, input.Value()); !valid {
			errs = append(errs, flow.New(flow.ValidationError, errMsg))
			if breakOnError {
				break
			}
		}
	}

	switch len(errs) {
	case 0:
		return input
	case 1:
		return flow.Fail[T](errs[0])
	default:
		return flow.Fail[T](flow.Wrap(flow.ValidationError, errors.Join(errs...), "validation failed"))
	}
}

func Switch[In, Out any](ctx context.Context, input flow.Outcome[In],
	onSuccess func(ctx context.Context, r In) flow.Outcome[Out]) flow.Outcome[Out] {

	if input.IsSuccess() {
		return onSuccess(ctx, input.Value())
	}
	return flow.FailFrom[In, Out](input)
}

func Map[In, Out any](ctx context.Context, input flow.Outcome[In],
	onSuccess func(ctx context.Context, r In) Out) flow.Outcome[Out] {

	if input.IsSuccess() {
		return flow.Success(onSuccess(ctx, input.Value()))
	}
	return flow.FailFrom[In, Out](input)
}

func Try[In, Out any](ctx context.Context, input flow.Outcome[In],
	onTryExecute func(ctx context.Context, r In) (Out, error)) flow.Outcome[Out] {

	if !input.IsSuccess() {
		return flow.FailFrom[In, Out](input)
	}

	out, err := onTryExecute(ctx, input.Value())
	if err != nil {
		if flow.IsCancellation(err) {
			return flow.Cancel[Out](err)
		}
		return flow.Fail[Out](err)
	}
	return flow.Success(out)
}

// Recover hands a recoverable failure to onFailure and returns its outcome.
// Programmer errors and successes pass through.
func Recover[T any](ctx context.Context, input flow.Outcome[T],
	onFailure func(ctx context.Context, err *flow.Error) flow.Outcome[T]) flow.Outcome[T] {

	if !input.IsFailure() || !flow.IsRecoverable(input.Err()) {
		return input
	}
	return onFailure(ctx, input.Info())
}

func Tee[T any](ctx context.Context, input flow.Outcome[T],
	onSuccess func(ctx context.Context, r T)) flow.Outcome[T] {

	if input.IsSuccess() {
		onSuccess(ctx, input.Value())
	}
	return input
}

func DoubleTee[T any](ctx context.Context, input flow.Outcome[T],
	onSuccess func(ctx context.Context, r T),
	onError func(ctx context.Context, err error),
	onCancel func(ctx context.Context, err error)) flow.Outcome[T] {

	switch {
	case input.IsSuccess():
		if onSuccess != nil {
			onSuccess(ctx, input.Value())
		}
	case input.IsCancel():
		if onCancel != nil {
			onCancel(ctx, input.Err())
		}
	case input.IsFailure():
		if onError != nil {
			onError(ctx, input.Err())
		}
	}
	return input
}

func Finally[In, Out any](ctx context.Context, input flow.Outcome[In],
	onSuccess func(ctx context.Context, r In) Out,
	onError func(ctx context.Context, err error) Out,
	onCancel func(ctx context.Context, err error) Out) Out {

	if input.IsSuccess() {
		return onSuccess(ctx, input.Value())
	} else if input.IsCancel() {
		return onCancel(ctx, input.Err())
	} else {
		return onError(ctx, input.Err())
	}
}
