package operation

import (
	"context"
	"sync"

	"github.com/ib-77/errflow/pkg/flow"
)

// Future is the lazily resolving outcome of an async operation.
type Future[T any] struct {
	done    chan struct{}
	once    sync.Once
	outcome flow.Outcome[T]
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func (f *Future[T]) resolve(out flow.Outcome[T]) {
	f.once.Do(func() {
		f.outcome = out
		close(f.done)
	})
}

func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Outcome returns the resolved outcome, false while unresolved.
func (f *Future[T]) Outcome() (flow.Outcome[T], bool) {
	select {
	case <-f.done:
		return f.outcome, true
	default:
		return flow.Outcome[T]{}, false
	}
}

// Wait blocks until the future resolves or ctx ends. It must not be called
// from inside a task on the same scheduler.
func (f *Future[T]) Wait(ctx context.Context) flow.Outcome[T] {
	select {
	case <-f.done:
		return f.outcome
	case <-ctx.Done():
		return flow.Cancel[T](ctx.Err())
	}
}
