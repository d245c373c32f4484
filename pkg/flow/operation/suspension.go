package operation

import (
	"context"

	"github.com/ib-77/errflow/pkg/flow"
	"github.com/ib-77/errflow/pkg/flow/core"
)

// Suspension is the handle an async body uses to await fallible calls. It is
// only valid on the body's own goroutine.
type Suspension struct {
	y        *core.Yielder
	setState func(State) error
}

// Await suspends the body until call returns and hands back its result.
// Other operations may run in between; nothing else interleaves with the
// body between two Await calls.
func Await[V any](s *Suspension, call func(ctx context.Context) (V, error)) (V, error) {
	if err := s.setState(StateSuspended); err != nil {
		var zero V
		return zero, err
	}

	v, err := s.y.Await(func(ctx context.Context) (any, error) {
		return call(ctx)
	})

	if serr := s.setState(StateRunning); serr != nil {
		var zero V
		return zero, serr
	}

	typed, _ := v.(V)
	return typed, err
}

// AwaitOutcome awaits a sub-operation that reports through an Outcome.
func AwaitOutcome[V any](s *Suspension, call func(ctx context.Context) flow.Outcome[V]) flow.Outcome[V] {
	out, err := Await(s, func(ctx context.Context) (flow.Outcome[V], error) {
		return call(ctx), nil
	})
	if err != nil {
		return flow.Fail[V](err)
	}
	return out
}
