package chain

import (
	"context"

	"github.com/ib-77/errflow/pkg/flow"
	"github.com/ib-77/errflow/pkg/flow/operation"
)

// Promise builds layers the way .then().catch().finally() reads. A call that
// would overwrite a handler of the current layer, or come after one that runs
// later in the layer, opens a new outer layer.
type Promise[T any] struct {
	layers []Layer[T]
}

func NewPromise[T any]() *Promise[T] {
	return &Promise[T]{}
}

func (p *Promise[T]) current() *Layer[T] {
	if len(p.layers) == 0 {
		p.layers = append(p.layers, Layer[T]{})
	}
	return &p.layers[len(p.layers)-1]
}

func (p *Promise[T]) open() *Layer[T] {
	p.layers = append(p.layers, Layer[T]{})
	return &p.layers[len(p.layers)-1]
}

func (p *Promise[T]) Then(fn func(ctx context.Context, v T) flow.Outcome[T]) *Promise[T] {
	l := p.current()
	if l.Then != nil || l.Catch != nil || l.Finally != nil {
		l = p.open()
	}
	l.Then = fn
	return p
}

func (p *Promise[T]) Catch(fn func(ctx context.Context, err *flow.Error) flow.Outcome[T]) *Promise[T] {
	l := p.current()
	if l.Catch != nil || l.Finally != nil {
		l = p.open()
	}
	l.Catch = fn
	return p
}

func (p *Promise[T]) Finally(fn func(ctx context.Context) error) *Promise[T] {
	l := p.current()
	if l.Finally != nil {
		l = p.open()
	}
	l.Finally = fn
	return p
}

func (p *Promise[T]) Layers() []Layer[T] {
	return append([]Layer[T](nil), p.layers...)
}

// AttachTo binds the built layers to op.
func (p *Promise[T]) AttachTo(op *operation.Operation[T]) (*Chain[T], error) {
	return Attach(op, p.Layers()...)
}
