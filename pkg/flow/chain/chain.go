package chain

import (
	"context"
	"errors"
	"sync"

	"github.com/ib-77/errflow/pkg/flow"
	"github.com/ib-77/errflow/pkg/flow/operation"
)

// Layer is one try block's handlers. Every field is optional.
type Layer[T any] struct {
	// Then transforms a success before Catch sees the result.
	Then func(ctx context.Context, v T) flow.Outcome[T]
	// Catch receives recoverable failures; its outcome replaces the failure.
	// An empty outcome means the handler only observed the failure, which
	// then passes through marked as handled.
	Catch func(ctx context.Context, err *flow.Error) flow.Outcome[T]
	// Finally always runs once. Its error is recorded as suppressed.
	Finally func(ctx context.Context) error
}

type starter interface {
	Started() bool
}

type Chain[T any] struct {
	mu     sync.Mutex
	op     starter
	layers []Layer[T]
	frozen bool
}

// New builds a chain that is not bound to any operation.
func New[T any](layers ...Layer[T]) *Chain[T] {
	return &Chain[T]{layers: append([]Layer[T](nil), layers...)}
}

// Attach binds a new chain to op. It fails with AlreadyAttached if op has a
// chain, and with InvalidState if op already started.
func Attach[T any](op *operation.Operation[T], layers ...Layer[T]) (*Chain[T], error) {
	c := New(layers...)
	c.op = op
	if err := op.Attach(c); err != nil {
		return nil, err
	}
	return c, nil
}

// Append adds an outer layer. The chain is frozen once its operation starts
// or the chain has dispatched.
func (c *Chain[T]) Append(l Layer[T]) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frozen || (c.op != nil && c.op.Started()) {
		return flow.New(flow.InvalidState, "handler chain is frozen")
	}
	c.layers = append(c.layers, l)
	return nil
}

func (c *Chain[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.layers)
}

// Dispatch applies every layer to in, innermost first.
func (c *Chain[T]) Dispatch(ctx context.Context, in flow.Outcome[T]) flow.Outcome[T] {
	c.mu.Lock()
	c.frozen = true
	layers := append([]Layer[T](nil), c.layers...)
	c.mu.Unlock()

	out := in
	for _, l := range layers {
		out = l.apply(ctx, out)
	}
	return out
}

func (l Layer[T]) apply(ctx context.Context, in flow.Outcome[T]) flow.Outcome[T] {
	out := in

	if l.Then != nil && out.IsSuccess() {
		out = carry(in, flow.Guard(func() flow.Outcome[T] {
			return l.Then(ctx, in.Value())
		}))
	}

	if l.Catch != nil && out.IsFailure() && flow.IsRecoverable(out.Err()) {
		failed := out
		out = carry(failed, flow.Guard(func() flow.Outcome[T] {
			caught := l.Catch(ctx, failed.Info())
			if caught.IsEmpty() {
				return failed.MarkHandled()
			}
			return caught
		}))
	}

	if l.Finally != nil {
		if err := cleanup(ctx, l.Finally); err != nil {
			out = out.WithSuppressed(err)
		}
	}
	return out
}

// carry keeps suppressed failures of from on to.
func carry[T any](from, to flow.Outcome[T]) flow.Outcome[T] {
	prev := from.Suppressed()
	if len(prev) == 0 || to.Id() == from.Id() {
		return to
	}
	return to.WithSuppressed(errors.Join(prev...))
}

func cleanup(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = flow.Recover(r)
		}
	}()
	return fn(ctx)
}
