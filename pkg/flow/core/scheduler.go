package core

import (
	"context"
	"sync"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/ib-77/errflow/pkg/flow"
)

type TaskState int

const (
	TaskPending TaskState = iota
	TaskRunning
	TaskSuspended
	TaskDone
)

func (s TaskState) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskRunning:
		return "running"
	case TaskSuspended:
		return "suspended"
	case TaskDone:
		return "done"
	default:
		return "unknown"
	}
}

// Settlement describes how a task body ended.
type Settlement struct {
	Cancelled bool
	// Panic holds a panic value the body did not recover.
	Panic any
}

type suspension struct {
	call      func(ctx context.Context) (any, error)
	done      bool
	cancelled bool
	panic     any
}

type resumption struct {
	value     any
	err       error
	cancelled bool
}

type cancelSignal struct{}

// IsCancelSignal reports whether a recovered value is the unwind raised by
// Yielder.Await for a cancelled task. Bodies that recover panics must let it
// through or translate it into a cancellation.
func IsCancelSignal(r any) bool {
	_, ok := r.(cancelSignal)
	return ok
}

// Task is one cooperative unit of work owned by a Scheduler.
type Task struct {
	id       uuid.UUID
	name     string
	sched    *Scheduler
	ctx      context.Context
	cancel   context.CancelFunc
	body     func(ctx context.Context, y *Yielder)
	onSettle func(Settlement)

	state     TaskState
	cancelled bool
	// awaiting is set while the task waits on an awaited call.
	awaiting bool

	resume  chan resumption
	yield   chan suspension
	abandon chan struct{}
	pending resumption
}

func (t *Task) Id() uuid.UUID {
	return t.id
}

func (t *Task) Name() string {
	return t.name
}

func (t *Task) State() TaskState {
	t.sched.mu.Lock()
	defer t.sched.mu.Unlock()
	return t.state
}

// Cancel stops a task that is pending or suspended. A running segment cannot
// be preempted. A suspended task is queued for resumption at once and unwinds
// from Await; its awaited call keeps running until it returns and the result
// is discarded.
func (t *Task) Cancel() error {
	s := t.sched
	s.mu.Lock()
	defer s.mu.Unlock()

	switch t.state {
	case TaskPending, TaskSuspended:
		if t.cancelled {
			return nil
		}
		t.cancelled = true
		t.cancel()
		if t.awaiting {
			t.awaiting = false
			s.inflight--
			s.ready = append(s.ready, t)
			close(t.abandon)
			s.notify()
		}
		s.log.V(1).Info("task cancelled", "task", t.name, "id", t.id, "state", t.state.String())
		return nil
	case TaskRunning:
		return flow.Newf(flow.InvalidState, "task %s is running and cannot be cancelled", t.name)
	default:
		return flow.Newf(flow.InvalidState, "task %s already settled", t.name)
	}
}

func (t *Task) start() {
	msg := suspension{done: true}
	defer func() {
		if r := recover(); r != nil {
			if IsCancelSignal(r) {
				msg.cancelled = true
			} else {
				msg.panic = r
			}
		}
		t.yield <- msg
	}()
	t.body(t.ctx, &Yielder{t: t})
}

// settle runs on the loop goroutine. A panic here escapes Run on purpose:
// it is how a fatal unhandled failure reaches the caller.
func (t *Task) settle(st Settlement) {
	t.sched.log.V(1).Info("task settled", "task", t.name, "id", t.id, "cancelled", st.Cancelled)
	if t.onSettle != nil {
		t.onSettle(st)
	}
}

// Yielder is handed to a task body; it is the only way to suspend.
type Yielder struct {
	t *Task
}

// Await suspends the calling task until call returns. call runs off the
// scheduler loop with the task's context; the task resumes in FIFO order of
// completion. If the task is cancelled while suspended, Await unwinds the
// body instead of returning.
func (y *Yielder) Await(call func(ctx context.Context) (any, error)) (any, error) {
	y.t.yield <- suspension{call: call}
	r := <-y.t.resume
	if r.cancelled {
		panic(cancelSignal{})
	}
	return r.value, r.err
}

func (y *Yielder) Task() *Task {
	return y.t
}

// Scheduler runs tasks one at a time. Only the task holding the baton
// executes; it hands the baton back when it awaits or finishes.
type Scheduler struct {
	mu          sync.Mutex
	ready       []*Task
	live        map[uuid.UUID]*Task
	inflight    int
	running     bool
	completions chan *Task
	wake        chan struct{}
	log         logr.Logger
}

func NewScheduler(log logr.Logger) *Scheduler {
	return &Scheduler{
		live:        make(map[uuid.UUID]*Task),
		completions: make(chan *Task),
		wake:        make(chan struct{}, 1),
		log:         log,
	}
}

// Spawn queues body as a new task. onSettle runs on the scheduler loop right
// after the body ends, before any other task is resumed.
func (s *Scheduler) Spawn(ctx context.Context, name string,
	body func(ctx context.Context, y *Yielder), onSettle func(Settlement)) *Task {

	taskCtx, cancel := context.WithCancel(ctx)
	t := &Task{
		id:       uuid.New(),
		name:     name,
		sched:    s,
		ctx:      taskCtx,
		cancel:   cancel,
		body:     body,
		onSettle: onSettle,
		state:    TaskPending,
		resume:   make(chan resumption),
		yield:    make(chan suspension),
		abandon:  make(chan struct{}),
	}

	s.mu.Lock()
	s.ready = append(s.ready, t)
	s.live[t.id] = t
	s.mu.Unlock()

	s.log.V(1).Info("task spawned", "task", name, "id", t.id)
	return t
}

// Live counts tasks that have not settled.
func (s *Scheduler) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// Run drives queued tasks until none is left. When ctx ends every live task
// is cancelled and the queue is drained before Run returns ctx.Err().
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return flow.New(flow.InvalidState, "scheduler is already running")
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	var stopErr error
	done := ctx.Done()

	for {
		select {
		case <-done:
			stopErr = ctx.Err()
			s.cancelAll()
			done = nil
		default:
		}

		s.collect()

		if t, ok := s.next(); ok {
			s.step(t)
			continue
		}

		if s.idle() {
			return stopErr
		}

		select {
		case t := <-s.completions:
			s.arrive(t)
		case <-s.wake:
		case <-done:
			stopErr = ctx.Err()
			s.cancelAll()
			done = nil
		}
	}
}

func (s *Scheduler) collect() {
	for {
		select {
		case t := <-s.completions:
			s.arrive(t)
		default:
			return
		}
	}
}

// arrive queues a task whose awaited call returned. A task cancelled in the
// meantime was already queued by Cancel.
func (s *Scheduler) arrive(t *Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !t.awaiting {
		return
	}
	t.awaiting = false
	s.inflight--
	s.ready = append(s.ready, t)
}

// notify wakes a Run loop blocked on completions. The caller holds s.mu.
func (s *Scheduler) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) next() (*Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ready) == 0 {
		return nil, false
	}
	t := s.ready[0]
	s.ready = s.ready[1:]
	return t, true
}

func (s *Scheduler) idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ready) == 0 && s.inflight == 0
}

func (s *Scheduler) cancelAll() {
	s.mu.Lock()
	tasks := make([]*Task, 0, len(s.live))
	for _, t := range s.live {
		tasks = append(tasks, t)
	}
	s.mu.Unlock()

	for _, t := range tasks {
		_ = t.Cancel()
	}
}

func (s *Scheduler) step(t *Task) {
	s.mu.Lock()
	state, cancelled := t.state, t.cancelled
	if state == TaskPending && cancelled {
		t.state = TaskDone
		delete(s.live, t.id)
		s.mu.Unlock()
		t.settle(Settlement{Cancelled: true})
		return
	}
	t.state = TaskRunning
	r := t.pending
	t.pending = resumption{}
	s.mu.Unlock()

	if state == TaskPending {
		go t.start()
	} else {
		if cancelled {
			r = resumption{cancelled: true}
		}
		t.resume <- r
	}

	msg := <-t.yield

	s.mu.Lock()
	if msg.done {
		t.state = TaskDone
		delete(s.live, t.id)
		s.mu.Unlock()
		t.cancel()
		t.settle(Settlement{Cancelled: msg.cancelled, Panic: msg.panic})
		return
	}
	t.state = TaskSuspended
	if t.cancelled {
		s.ready = append(s.ready, t)
		s.mu.Unlock()
		return
	}
	t.awaiting = true
	s.inflight++
	s.mu.Unlock()

	go func() {
		v, err := invoke(t.ctx, msg.call)

		s.mu.Lock()
		if !t.awaiting {
			s.mu.Unlock()
			return
		}
		t.pending = resumption{value: v, err: err}
		s.mu.Unlock()

		select {
		case s.completions <- t:
		case <-t.abandon:
		}
	}()
}

func invoke(ctx context.Context, call func(ctx context.Context) (any, error)) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = flow.Recover(r)
		}
	}()
	return call(ctx)
}
