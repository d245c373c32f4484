package operation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ib-77/errflow/pkg/flow"
	"github.com/ib-77/errflow/pkg/flow/core"
)

type passThrough[T any] struct{}

func (passThrough[T]) Dispatch(_ context.Context, in flow.Outcome[T]) flow.Outcome[T] {
	return in
}

func TestValidateTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to State
		ok       bool
	}{
		{StatePending, StateRunning, true},
		{StatePending, StateSettled, true},
		{StateRunning, StateSuspended, true},
		{StateSuspended, StateRunning, true},
		{StateSuspended, StateSettled, true},
		{StateRunning, StateSettled, true},
		{StateSettled, StateFinalized, true},
		{StatePending, StateFinalized, false},
		{StateSettled, StateRunning, false},
		{StateFinalized, StatePending, false},
		{State("bogus"), StateRunning, false},
	}

	for _, tt := range tests {
		err := ValidateTransition(tt.from, tt.to)
		if tt.ok {
			assert.NoError(t, err, "%s -> %s", tt.from, tt.to)
		} else {
			assert.ErrorIs(t, err, flow.ErrInvalidState, "%s -> %s", tt.from, tt.to)
		}
	}

	assert.True(t, IsTerminalState(StateFinalized))
	assert.False(t, IsTerminalState(StateSettled))
}

func TestRunSync_Lifecycle(t *testing.T) {
	t.Parallel()

	op := NewSync("answer", func(ctx context.Context) flow.Outcome[int] {
		return flow.Success(42)
	})
	assert.Equal(t, StatePending, op.State())
	assert.Equal(t, Sync, op.Mode())

	out := op.RunSync(context.Background())
	require.True(t, out.IsSuccess())
	assert.Equal(t, 42, out.Value())
	assert.Equal(t, StateSettled, op.State())
	assert.True(t, op.Started())

	settled, ok := op.Outcome()
	require.True(t, ok)
	assert.Equal(t, 42, settled.Value())

	require.NoError(t, op.Finalize(out))
	assert.Equal(t, StateFinalized, op.State())
	assert.ErrorIs(t, op.Finalize(out), flow.ErrInvalidState)
}

func TestRunSync_RunsOnce(t *testing.T) {
	t.Parallel()

	calls := 0
	op := NewSync("once", func(ctx context.Context) flow.Outcome[int] {
		calls++
		return flow.Success(calls)
	})

	op.RunSync(context.Background())
	second := op.RunSync(context.Background())

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, second.Err(), flow.ErrInvalidState)
}

func TestRunSync_ModeMismatch(t *testing.T) {
	t.Parallel()

	op := NewAsync("async", func(ctx context.Context, s *Suspension) flow.Outcome[int] {
		return flow.Success(1)
	})

	out := op.RunSync(context.Background())
	assert.ErrorIs(t, out.Err(), flow.ErrModeMismatch)
	assert.Equal(t, StatePending, op.State())
}

func TestRunSync_EmptyOutcomeIsInvalidState(t *testing.T) {
	t.Parallel()

	op := NewSync("empty", func(ctx context.Context) flow.Outcome[int] {
		return flow.Outcome[int]{}
	})

	out := op.RunSync(context.Background())
	assert.ErrorIs(t, out.Err(), flow.ErrInvalidState)
}

func TestRunSync_CancelledKindBecomesCancel(t *testing.T) {
	t.Parallel()

	op := NewSync("cancelled", func(ctx context.Context) flow.Outcome[int] {
		return flow.Fail[int](context.Canceled)
	})

	out := op.RunSync(context.Background())
	assert.True(t, out.IsCancel())
}

func TestRunSync_RaisedErrorUnwindsWithoutHandler(t *testing.T) {
	t.Parallel()

	op := NewSync("raise", func(ctx context.Context) flow.Outcome[int] {
		flow.Throwf(flow.ValidationError, "bad")
		return flow.Success(0)
	})

	var err error
	func() {
		defer flow.Catch(&err)
		op.RunSync(context.Background())
	}()

	assert.ErrorIs(t, err, flow.ErrValidation)
	assert.Equal(t, StateSettled, op.State())
	settled, ok := op.Outcome()
	require.True(t, ok)
	assert.True(t, settled.IsFailure())
}

func TestRunSync_RaisedErrorSettlesWithHandler(t *testing.T) {
	t.Parallel()

	op := NewSync("raise", func(ctx context.Context) flow.Outcome[int] {
		flow.Throwf(flow.ValidationError, "bad")
		return flow.Success(0)
	})
	require.NoError(t, op.Attach(passThrough[int]{}))

	out := op.RunSync(context.Background())
	require.True(t, out.IsFailure())
	assert.Equal(t, flow.ValidationError, out.Info().Kind)
}

func TestAttach(t *testing.T) {
	t.Parallel()

	op := NewSync("attach", func(ctx context.Context) flow.Outcome[int] { return flow.Success(1) })

	require.NoError(t, op.Attach(passThrough[int]{}))
	assert.ErrorIs(t, op.Attach(passThrough[int]{}), flow.ErrAlreadyAttached)

	late := NewSync("late", func(ctx context.Context) flow.Outcome[int] { return flow.Success(1) })
	late.RunSync(context.Background())
	assert.ErrorIs(t, late.Attach(passThrough[int]{}), flow.ErrInvalidState)
}

func TestCancel_Sync(t *testing.T) {
	t.Parallel()

	op := NewSync("sync", func(ctx context.Context) flow.Outcome[int] { return flow.Success(1) })
	assert.ErrorIs(t, op.Cancel(), flow.ErrModeMismatch)
}

func TestRunAsync_AwaitSuspends(t *testing.T) {
	t.Parallel()

	sched := core.NewScheduler(logr.Discard())
	var states []State

	var op *Operation[string]
	op = NewAsync("fetch", func(ctx context.Context, s *Suspension) flow.Outcome[string] {
		states = append(states, op.State())
		v, err := Await(s, func(ctx context.Context) (string, error) {
			states = append(states, op.State())
			return "payload", nil
		})
		if err != nil {
			return flow.Fail[string](err)
		}
		states = append(states, op.State())
		return flow.Success(v)
	})

	f := op.RunAsync(context.Background(), sched, nil)
	_, resolved := f.Outcome()
	assert.False(t, resolved, "nothing runs before the scheduler is driven")

	require.NoError(t, sched.Run(context.Background()))

	out, ok := f.Outcome()
	require.True(t, ok)
	assert.Equal(t, "payload", out.Value())
	assert.Equal(t, []State{StateRunning, StateSuspended, StateRunning}, states)
	assert.Equal(t, StateSettled, op.State())
}

func TestRunAsync_AwaitError(t *testing.T) {
	t.Parallel()

	sched := core.NewScheduler(logr.Discard())
	op := NewAsync("fetch", func(ctx context.Context, s *Suspension) flow.Outcome[int] {
		_, err := Await(s, func(ctx context.Context) (int, error) {
			return 0, errors.New("connection refused")
		})
		if err != nil {
			return flow.Fail[int](flow.Wrap(flow.OperationFailure, err, "fetch"))
		}
		return flow.Success(1)
	})

	f := op.RunAsync(context.Background(), sched, nil)
	require.NoError(t, sched.Run(context.Background()))

	out := f.Wait(context.Background())
	require.True(t, out.IsFailure())
	assert.Equal(t, "fetch: connection refused", out.Err().Error())
}

func TestRunAsync_SettledCallbackResolvesFuture(t *testing.T) {
	t.Parallel()

	sched := core.NewScheduler(logr.Discard())
	op := NewAsync("v", func(ctx context.Context, s *Suspension) flow.Outcome[int] {
		return flow.Success(1)
	})

	f := op.RunAsync(context.Background(), sched, func(_ context.Context, out flow.Outcome[int]) flow.Outcome[int] {
		return out.Map(func(v int) int { return v + 10 })
	})
	require.NoError(t, sched.Run(context.Background()))

	assert.Equal(t, 11, f.Wait(context.Background()).Value())
}

func TestRunAsync_Twice(t *testing.T) {
	t.Parallel()

	sched := core.NewScheduler(logr.Discard())
	op := NewAsync("v", func(ctx context.Context, s *Suspension) flow.Outcome[int] {
		return flow.Success(1)
	})

	op.RunAsync(context.Background(), sched, nil)
	second := op.RunAsync(context.Background(), sched, nil)

	out, ok := second.Outcome()
	require.True(t, ok)
	assert.ErrorIs(t, out.Err(), flow.ErrInvalidState)
}

func TestCancel_BeforeScheduling(t *testing.T) {
	t.Parallel()

	sched := core.NewScheduler(logr.Discard())
	ran := false
	op := NewAsync("v", func(ctx context.Context, s *Suspension) flow.Outcome[int] {
		ran = true
		return flow.Success(1)
	})

	require.NoError(t, op.Cancel())
	f := op.RunAsync(context.Background(), sched, nil)
	require.NoError(t, sched.Run(context.Background()))

	assert.False(t, ran)
	assert.True(t, f.Wait(context.Background()).IsCancel())
	assert.Equal(t, StateSettled, op.State())
	assert.ErrorIs(t, op.Cancel(), flow.ErrInvalidState)
}

func TestCancel_WhileSuspended(t *testing.T) {
	t.Parallel()

	sched := core.NewScheduler(logr.Discard())
	resumed := false
	slow := NewAsync("slow", func(ctx context.Context, s *Suspension) flow.Outcome[int] {
		_, _ = Await(s, func(ctx context.Context) (int, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		})
		resumed = true
		return flow.Success(1)
	})

	var cancelErr error
	canceller := NewAsync("canceller", func(ctx context.Context, s *Suspension) flow.Outcome[int] {
		cancelErr = slow.Cancel()
		return flow.Success(0)
	})

	f := slow.RunAsync(context.Background(), sched, nil)
	canceller.RunAsync(context.Background(), sched, nil)
	require.NoError(t, sched.Run(context.Background()))

	require.NoError(t, cancelErr)
	assert.False(t, resumed)
	out := f.Wait(context.Background())
	assert.True(t, out.IsCancel())
	assert.ErrorIs(t, out.Err(), flow.ErrCancelled)
}

func TestRunAsync_SyncOperationRunsAsOneSegment(t *testing.T) {
	t.Parallel()

	sched := core.NewScheduler(logr.Discard())
	op := NewSync("sync", func(ctx context.Context) flow.Outcome[int] {
		return flow.Success(5)
	})

	f := op.RunAsync(context.Background(), sched, nil)
	require.NoError(t, sched.Run(context.Background()))
	assert.Equal(t, 5, f.Wait(context.Background()).Value())
}

func TestRunAsync_PanicBecomesFailure(t *testing.T) {
	t.Parallel()

	sched := core.NewScheduler(logr.Discard())
	op := NewAsync("panics", func(ctx context.Context, s *Suspension) flow.Outcome[int] {
		panic("boom")
	})

	f := op.RunAsync(context.Background(), sched, nil)
	require.NoError(t, sched.Run(context.Background()))

	out := f.Wait(context.Background())
	require.True(t, out.IsFailure())
	assert.False(t, out.IsCancel())
	assert.Equal(t, StateSettled, op.State())
	assert.GreaterOrEqual(t, op.Duration(), time.Duration(0))
}

func TestFuture_WaitRespectsContext(t *testing.T) {
	t.Parallel()

	f := newFuture[int]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.True(t, f.Wait(ctx).IsCancel())

	f.resolve(flow.Success(1))
	f.resolve(flow.Success(2))
	assert.Equal(t, 1, f.Wait(context.Background()).Value())
}
