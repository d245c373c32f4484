package operation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ib-77/errflow/pkg/flow"
	"github.com/ib-77/errflow/pkg/flow/core"
)

// Dispatcher applies handlers to a settled outcome.
type Dispatcher[T any] interface {
	Dispatch(ctx context.Context, in flow.Outcome[T]) flow.Outcome[T]
}

type Body[T any] func(ctx context.Context) flow.Outcome[T]

type AsyncBody[T any] func(ctx context.Context, s *Suspension) flow.Outcome[T]

type Operation[T any] struct {
	id        uuid.UUID
	name      string
	mode      Mode
	body      Body[T]
	asyncBody AsyncBody[T]

	mu              sync.Mutex
	state           State
	handler         Dispatcher[T]
	task            *core.Task
	cancelRequested bool
	outcome         flow.Outcome[T]
	startedAt       time.Time
	settledAt       time.Time
}

func NewSync[T any](name string, body Body[T]) *Operation[T] {
	return &Operation[T]{
		id:    uuid.New(),
		name:  name,
		mode:  Sync,
		body:  body,
		state: StatePending,
	}
}

func NewAsync[T any](name string, body AsyncBody[T]) *Operation[T] {
	return &Operation[T]{
		id:        uuid.New(),
		name:      name,
		mode:      Async,
		asyncBody: body,
		state:     StatePending,
	}
}

func (o *Operation[T]) Id() uuid.UUID {
	return o.id
}

func (o *Operation[T]) Name() string {
	return o.name
}

func (o *Operation[T]) Mode() Mode {
	return o.mode
}

func (o *Operation[T]) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Started reports whether the body has begun; attached handlers are frozen
// from then on.
func (o *Operation[T]) Started() bool {
	return o.State() != StatePending
}

// Duration is the time between start and settlement.
func (o *Operation[T]) Duration() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.startedAt.IsZero() || o.settledAt.IsZero() {
		return 0
	}
	return o.settledAt.Sub(o.startedAt)
}

// Attach binds the handler chain. An operation has at most one.
func (o *Operation[T]) Attach(d Dispatcher[T]) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.handler != nil {
		return flow.Newf(flow.AlreadyAttached, "operation %s already has a handler chain", o.name)
	}
	if o.state != StatePending {
		return flow.Newf(flow.InvalidState, "operation %s is %s; handlers must be attached before it runs", o.name, o.state)
	}
	o.handler = d
	return nil
}

func (o *Operation[T]) Handler() (Dispatcher[T], bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.handler, o.handler != nil
}

// Outcome returns the settled outcome, false while still pending or running.
func (o *Operation[T]) Outcome() (flow.Outcome[T], bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateSettled && o.state != StateFinalized {
		return flow.Outcome[T]{}, false
	}
	return o.outcome, true
}

func (o *Operation[T]) transition(to State) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.transitionLocked(to)
}

func (o *Operation[T]) transitionLocked(to State) error {
	if err := ValidateTransition(o.state, to); err != nil {
		return err
	}
	switch to {
	case StateRunning:
		if o.startedAt.IsZero() {
			o.startedAt = time.Now()
		}
	case StateSettled:
		o.settledAt = time.Now()
	}
	o.state = to
	return nil
}

func (o *Operation[T]) settle(out flow.Outcome[T]) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.transitionLocked(StateSettled); err != nil {
		return err
	}
	o.outcome = out
	return nil
}

// Finalize records the handled outcome and closes the lifecycle. It fails
// with InvalidState unless the operation is settled.
func (o *Operation[T]) Finalize(out flow.Outcome[T]) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.transitionLocked(StateFinalized); err != nil {
		return err
	}
	o.outcome = out
	return nil
}

// Cancel stops an async operation that is pending or suspended.
func (o *Operation[T]) Cancel() error {
	o.mu.Lock()
	if o.mode != Async {
		o.mu.Unlock()
		return flow.Newf(flow.ModeMismatch, "operation %s is sync and cannot be cancelled", o.name)
	}
	if !CanCancel(o.state) {
		state := o.state
		o.mu.Unlock()
		return flow.Newf(flow.InvalidState, "operation %s is %s and cannot be cancelled", o.name, state)
	}
	task := o.task
	if task == nil {
		o.cancelRequested = true
		o.mu.Unlock()
		return nil
	}
	o.mu.Unlock()
	return task.Cancel()
}

// RunSync executes a sync body on the caller's stack. Without an attached
// handler chain a raised error keeps unwinding.
func (o *Operation[T]) RunSync(ctx context.Context) flow.Outcome[T] {
	if o.mode != Sync {
		return flow.Fail[T](flow.Newf(flow.ModeMismatch, "operation %s is async; RunSync needs a sync operation", o.name))
	}
	if err := o.transition(StateRunning); err != nil {
		return flow.Fail[T](err)
	}

	var out flow.Outcome[T]
	if _, ok := o.Handler(); ok {
		out = flow.Guard(func() flow.Outcome[T] { return o.body(ctx) })
	} else {
		out = o.unguarded(ctx)
	}

	out = normalize(o.name, out)
	if err := o.settle(out); err != nil {
		return flow.Fail[T](err)
	}
	return out
}

// RunAsync schedules the operation on sched and returns its future. settled,
// when not nil, runs on the scheduler loop as soon as the body ends and its
// result resolves the future. Sync operations run as a single segment.
func (o *Operation[T]) RunAsync(ctx context.Context, sched *core.Scheduler,
	settled func(ctx context.Context, out flow.Outcome[T]) flow.Outcome[T]) *Future[T] {

	f := newFuture[T]()

	o.mu.Lock()
	if o.task != nil || o.state != StatePending {
		o.mu.Unlock()
		f.resolve(flow.Fail[T](flow.Newf(flow.InvalidState, "operation %s was already started", o.name)))
		return f
	}
	o.mu.Unlock()

	var out flow.Outcome[T]

	task := sched.Spawn(ctx, o.name,
		func(ctx context.Context, y *core.Yielder) {
			if err := o.transition(StateRunning); err != nil {
				out = flow.Fail[T](err)
				return
			}
			out = o.invokeAsync(ctx, &Suspension{y: y, setState: o.transition})
		},
		func(st core.Settlement) {
			switch {
			case st.Cancelled:
				out = flow.Cancel[T](flow.Wrap(flow.Cancelled, context.Canceled, "operation "+o.name+" cancelled"))
			case st.Panic != nil:
				out = flow.FailRecovered[T](st.Panic)
			}
			out = normalize(o.name, out)
			if err := o.settle(out); err != nil {
				out = flow.Fail[T](err)
			}
			final := out
			if settled != nil {
				final = settled(ctx, out)
			}
			f.resolve(final)
		})

	o.mu.Lock()
	o.task = task
	cancel := o.cancelRequested
	o.mu.Unlock()

	if cancel {
		_ = task.Cancel()
	}
	return f
}

// unguarded settles the operation before letting a raised error unwind.
func (o *Operation[T]) unguarded(ctx context.Context) flow.Outcome[T] {
	defer func() {
		if r := recover(); r != nil {
			_ = o.settle(flow.FailRecovered[T](r))
			panic(r)
		}
	}()
	return o.body(ctx)
}

func (o *Operation[T]) invokeAsync(ctx context.Context, s *Suspension) (out flow.Outcome[T]) {
	defer func() {
		if r := recover(); r != nil {
			if core.IsCancelSignal(r) {
				out = flow.Cancel[T](flow.Wrap(flow.Cancelled, context.Canceled, "operation "+o.name+" cancelled while suspended"))
				return
			}
			out = flow.FailRecovered[T](r)
		}
	}()

	if o.mode == Sync {
		return o.body(ctx)
	}
	return o.asyncBody(ctx, s)
}

func normalize[T any](name string, out flow.Outcome[T]) flow.Outcome[T] {
	if out.IsEmpty() {
		return flow.Fail[T](flow.Newf(flow.InvalidState, "operation %s returned an empty outcome", name))
	}
	if out.IsFailure() && !out.IsCancel() && flow.KindOf(out.Err()) == flow.Cancelled {
		return flow.Cancel[T](out.Err())
	}
	return out
}
