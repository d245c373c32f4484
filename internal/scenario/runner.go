package scenario

import (
	"context"
	"sync"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/ib-77/errflow/pkg/flow"
	"github.com/ib-77/errflow/pkg/flow/chain"
	"github.com/ib-77/errflow/pkg/flow/engine"
	"github.com/ib-77/errflow/pkg/flow/operation"
	"github.com/ib-77/errflow/pkg/flow/sink"
)

// Row is the observed result of one scenario. Handled marks a failure a
// catch handler observed without replacing it.
type Row struct {
	Name       string `json:"name" yaml:"name"`
	Mode       string `json:"mode" yaml:"mode"`
	Result     string `json:"result" yaml:"result"`
	Value      string `json:"value,omitempty" yaml:"value,omitempty"`
	Message    string `json:"message,omitempty" yaml:"message,omitempty"`
	Catches    int    `json:"catches" yaml:"catches"`
	Finals     int    `json:"finals" yaml:"finals"`
	Suppressed int    `json:"suppressed" yaml:"suppressed"`
	Captured   bool   `json:"captured" yaml:"captured"`
	Handled    bool   `json:"handled,omitempty" yaml:"handled,omitempty"`
}

// Runner runs scenarios through one engine whose sink records every escaped
// failure.
type Runner struct {
	engine *engine.Engine
	log    logr.Logger

	mu       sync.Mutex
	captured map[uuid.UUID]sink.Report
}

// NewRunner registers the recording fallback on s, which defaults to a
// private sink. Registering on a sink that already has a fallback fails with
// AlreadySet.
func NewRunner(log logr.Logger, s *sink.Sink, opts ...engine.Option) (*Runner, error) {
	if s == nil {
		s = sink.New(log.WithName("sink"))
	}
	r := &Runner{
		log:      log,
		captured: make(map[uuid.UUID]sink.Report),
	}
	if err := s.Register(r.record); err != nil {
		return nil, err
	}
	r.engine = engine.New(append([]engine.Option{engine.WithSink(s), engine.WithLogger(log)}, opts...)...)
	return r, nil
}

func (r *Runner) Engine() *engine.Engine {
	return r.engine
}

func (r *Runner) record(_ context.Context, rep sink.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.captured[rep.OperationID] = rep
	r.log.Info("unhandled failure", "scenario", rep.Name, "mode", rep.Mode.String(),
		"rejection", rep.Rejection(), "error", rep.Err.Error())
	return nil
}

func (r *Runner) wasCaptured(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.captured[id]
	return ok
}

// RunAll runs scenarios in order. Async scenarios share the scheduler, so
// they interleave at their await points.
func (r *Runner) RunAll(ctx context.Context, scenarios []Scenario) ([]Row, error) {
	rows := make([]Row, len(scenarios))
	var pending []func() Row
	var pendingIdx []int

	for i, sc := range scenarios {
		if err := sc.Validate(); err != nil {
			return nil, err
		}
		if sc.Mode == ModeSync {
			rows[i] = r.runSync(ctx, sc)
			continue
		}
		pending = append(pending, r.goAsync(ctx, sc))
		pendingIdx = append(pendingIdx, i)
	}

	waitErr := r.engine.Wait(ctx)
	for j, collect := range pending {
		rows[pendingIdx[j]] = collect()
	}
	return rows, waitErr
}

// Run runs a single scenario to completion.
func (r *Runner) Run(ctx context.Context, sc Scenario) (Row, error) {
	rows, err := r.RunAll(ctx, []Scenario{sc})
	if len(rows) == 0 {
		return Row{}, err
	}
	return rows[0], err
}

type tally struct {
	catches int
	finals  int
}

func (p *tally) layer(sc Scenario) chain.Layer[string] {
	var l chain.Layer[string]

	switch sc.Catch {
	case CatchRecover:
		l.Catch = func(_ context.Context, err *flow.Error) flow.Outcome[string] {
			p.catches++
			return flow.Success("recovered: " + err.Message)
		}
	case CatchRethrow:
		l.Catch = func(_ context.Context, err *flow.Error) flow.Outcome[string] {
			p.catches++
			flow.Throw(flow.Wrap(err.Kind, err, "rethrown"))
			return flow.Outcome[string]{}
		}
	case CatchObserve:
		l.Catch = func(_ context.Context, err *flow.Error) flow.Outcome[string] {
			p.catches++
			return flow.Outcome[string]{}
		}
	}

	if sc.Finally {
		l.Finally = func(context.Context) error {
			p.finals++
			if sc.FinallyFails {
				return flow.New(flow.OperationFailure, "cleanup failed")
			}
			return nil
		}
	}
	return l
}

func (r *Runner) build(sc Scenario) (*operation.Operation[string], *tally, error) {
	var op *operation.Operation[string]
	if sc.Mode == ModeSync {
		op = operation.NewSync(sc.Name, sc.syncBody())
	} else {
		op = operation.NewAsync(sc.Name, sc.asyncBody())
	}

	p := &tally{}
	if sc.Catch != CatchNone || sc.Finally {
		if _, err := chain.Attach(op, p.layer(sc)); err != nil {
			return nil, nil, err
		}
	}
	return op, p, nil
}

func (r *Runner) runSync(ctx context.Context, sc Scenario) Row {
	op, p, err := r.build(sc)
	if err != nil {
		return errorRow(sc, err)
	}
	out := engine.RunSync(ctx, r.engine, op)
	return r.row(sc, op.Id(), out, p)
}

func (r *Runner) goAsync(ctx context.Context, sc Scenario) func() Row {
	op, p, err := r.build(sc)
	if err != nil {
		return func() Row { return errorRow(sc, err) }
	}

	f := engine.Go(ctx, r.engine, op)
	if sc.Cancel {
		if err := op.Cancel(); err != nil {
			r.log.Error(err, "cancel", "scenario", sc.Name)
		}
	}

	return func() Row {
		out, ok := f.Outcome()
		if !ok {
			out = flow.Cancel[string](nil)
		}
		return r.row(sc, op.Id(), out, p)
	}
}

func (r *Runner) row(sc Scenario, id uuid.UUID, out flow.Outcome[string], p *tally) Row {
	row := Row{
		Name:       sc.Name,
		Mode:       sc.Mode,
		Result:     result(out),
		Catches:    p.catches,
		Finals:     p.finals,
		Suppressed: len(out.Suppressed()),
		Captured:   r.wasCaptured(id),
		Handled:    out.Handled(),
	}
	if out.IsSuccess() {
		row.Value = out.Value()
	} else if info := out.Info(); info != nil {
		row.Message = info.Error()
	}
	return row
}

func errorRow(sc Scenario, err error) Row {
	return Row{Name: sc.Name, Mode: sc.Mode, Result: "error", Message: err.Error()}
}

func result(out flow.Outcome[string]) string {
	switch {
	case out.IsSuccess():
		return "success"
	case out.IsCancel():
		return "cancel"
	default:
		return "failure"
	}
}
