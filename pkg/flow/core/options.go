package core

import (
	"context"

	"github.com/google/uuid"
)

type OptionKey string

const (
	EnclosingOptionKey OptionKey = "enclosing_operation"
)

type EnclosingOptions struct {
	OperationID uuid.UUID
	Depth       int
}

// WithEnclosing marks ctx as running inside the body of operation id.
func WithEnclosing(ctx context.Context, id uuid.UUID) context.Context {
	depth := 1
	if parent, ok := ctx.Value(EnclosingOptionKey).(EnclosingOptions); ok {
		depth = parent.Depth + 1
	}
	return context.WithValue(ctx, EnclosingOptionKey, EnclosingOptions{OperationID: id, Depth: depth})
}

// Enclosing returns the innermost operation whose body ctx belongs to.
func Enclosing(ctx context.Context) (EnclosingOptions, bool) {
	options, ok := ctx.Value(EnclosingOptionKey).(EnclosingOptions)
	return options, ok
}

func IsNested(ctx context.Context) bool {
	_, ok := Enclosing(ctx)
	return ok
}
