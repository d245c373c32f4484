package sink

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ib-77/errflow/pkg/flow"
	"github.com/ib-77/errflow/pkg/flow/operation"
)

func TestRegister_Once(t *testing.T) {
	t.Parallel()

	s := New(logr.Discard())
	assert.False(t, s.Registered())

	require.NoError(t, s.Register(func(context.Context, Report) error { return nil }))
	assert.True(t, s.Registered())

	err := s.Register(func(context.Context, Report) error { return nil })
	assert.ErrorIs(t, err, flow.ErrAlreadySet)
}

func TestRegister_Nil(t *testing.T) {
	t.Parallel()

	s := New(logr.Discard())
	assert.ErrorIs(t, s.Register(nil), flow.ErrInvalidState)
	assert.False(t, s.Registered())
}

func TestRegister_Concurrent(t *testing.T) {
	t.Parallel()

	s := New(logr.Discard())
	var wg sync.WaitGroup
	var mu sync.Mutex
	won := 0

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Register(func(context.Context, Report) error { return nil }) == nil {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, won)
}

func TestCapture_WithoutFallback(t *testing.T) {
	t.Parallel()

	s := New(logr.Discard())
	assert.False(t, s.Capture(context.Background(), Report{Name: "op"}))
	assert.Zero(t, s.Captured())
}

func TestCapture_DeliversReport(t *testing.T) {
	t.Parallel()

	s := New(logr.Discard())
	var got []Report
	require.NoError(t, s.Register(func(_ context.Context, r Report) error {
		got = append(got, r)
		return nil
	}))

	ok := s.Capture(context.Background(), Report{
		Name: "fetch",
		Mode: operation.Async,
		Err:  flow.New(flow.OperationFailure, "network"),
	})

	require.True(t, ok)
	require.Len(t, got, 1)
	assert.True(t, got[0].Rejection())
	assert.False(t, got[0].At.IsZero())
	assert.Equal(t, int64(1), s.Captured())
}

func TestCapture_SwallowsFallbackFailure(t *testing.T) {
	t.Parallel()

	s := New(logr.Discard())
	require.NoError(t, s.Register(func(context.Context, Report) error {
		return errors.New("reporter offline")
	}))
	assert.True(t, s.Capture(context.Background(), Report{Name: "a"}))

	p := New(logr.Discard())
	require.NoError(t, p.Register(func(context.Context, Report) error {
		panic("reporter crashed")
	}))
	assert.NotPanics(t, func() {
		assert.True(t, p.Capture(context.Background(), Report{Name: "b"}))
	})
}

func TestCapture_ReentrantFallback(t *testing.T) {
	t.Parallel()

	s := New(logr.Discard())
	var names []string
	require.NoError(t, s.Register(func(ctx context.Context, r Report) error {
		names = append(names, r.Name)
		if r.Name == "outer" {
			s.Capture(ctx, Report{Name: "inner"})
		}
		return nil
	}))

	done := make(chan bool, 1)
	go func() { done <- s.Capture(context.Background(), Report{Name: "outer"}) }()

	select {
	case ok := <-done:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatalf("capture from inside the fallback deadlocked")
	}
	assert.Equal(t, int64(2), s.Captured())
	assert.Equal(t, []string{"outer", "inner"}, names)
}

func TestReport_Rejection(t *testing.T) {
	t.Parallel()

	assert.False(t, Report{Mode: operation.Sync}.Rejection())
	assert.True(t, Report{Mode: operation.Async}.Rejection())
}

func TestDefault(t *testing.T) {
	t.Parallel()

	assert.Same(t, Default(), Default())
}
