// Package pipeline defines the composition contract shared by every cloudmosh stage.
//
// Data moves through lazy, pull-based sequences. A stage plays exactly one Role: a Source
// produces a sequence from nothing, a Transform turns one sequence into another, and a Sink
// consumes a sequence and produces nothing. Stages are connected with Shift, which is the only
// way data enters a stage, and Open, which is the only way to read a source directly.
package pipeline

import (
	"context"

	"go.viam.com/cloudmosh/utils"
)

// Seq is a lazy sequence of values. Ranging over it pulls one element at a time from upstream.
// A non-nil error ends the sequence; the zero value of T accompanies it.
type Seq[T any] func(yield func(T, error) bool)

// Nothing is the element type of the absent side of a stage: the input of a Source and the
// output of a Sink.
type Nothing struct{}

// Role is what part a stage plays in a pipeline.
type Role int

const (
	// RoleSource stages produce data and accept no input.
	RoleSource Role = iota
	// RoleTransform stages consume one sequence and produce another.
	RoleTransform
	// RoleSink stages consume a sequence and produce nothing to iterate over.
	RoleSink
)

func (r Role) String() string {
	switch r {
	case RoleSource:
		return "source"
	case RoleTransform:
		return "transform"
	case RoleSink:
		return "sink"
	default:
		return "unknown"
	}
}

// Stage is a single step in a pipeline.
type Stage[In, Out any] interface {
	// Name identifies the stage in errors and logs.
	Name() string
	Role() Role
	// Attach connects the stage to its upstream sequence. Sources are attached to a nil upstream.
	// Sinks do their work during Attach and return a nil sequence.
	Attach(ctx context.Context, upstream Seq[In]) (Seq[Out], error)
}

// Shift feeds upstream into stage. It is the pipeline's ">>" operator.
func Shift[In, Out any](ctx context.Context, upstream Seq[In], stage Stage[In, Out]) (Seq[Out], error) {
	switch stage.Role() {
	case RoleSource:
		return nil, utils.NewSourceInputError(stage.Name())
	case RoleTransform, RoleSink:
		if upstream == nil {
			return nil, utils.NewMissingInputError(stage.Name())
		}
	}
	return stage.Attach(ctx, upstream)
}

// Open starts reading from a source stage.
func Open[Out any](ctx context.Context, stage Stage[Nothing, Out]) (Seq[Out], error) {
	switch stage.Role() {
	case RoleSink:
		return nil, utils.NewSinkReadError(stage.Name())
	case RoleTransform:
		return nil, utils.NewMissingInputError(stage.Name())
	case RoleSource:
	}
	return stage.Attach(ctx, nil)
}

// Run opens source and shifts everything it produces into sink.
func Run[T any](ctx context.Context, source Stage[Nothing, T], sink Stage[T, Nothing]) error {
	if sink.Role() != RoleSink {
		return utils.NewUsageError("%s is a %s, not a sink", sink.Name(), sink.Role())
	}
	seq, err := Open(ctx, source)
	if err != nil {
		return err
	}
	_, err = Shift(ctx, seq, sink)
	return err
}

// Collect drains seq into a slice, stopping at the first error.
func Collect[T any](seq Seq[T]) ([]T, error) {
	if seq == nil {
		return nil, nil
	}
	var out []T
	for item, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

// Fail returns a sequence that yields only err.
func Fail[T any](err error) Seq[T] {
	return func(yield func(T, error) bool) {
		var zero T
		yield(zero, err)
	}
}

// Of returns a sequence over items. It is restartable.
func Of[T any](items ...T) Seq[T] {
	return func(yield func(T, error) bool) {
		for _, item := range items {
			if !yield(item, nil) {
				return
			}
		}
	}
}

// WithContext stops seq with ctx's error once ctx is done. The check happens between elements.
func WithContext[T any](ctx context.Context, seq Seq[T]) Seq[T] {
	return func(yield func(T, error) bool) {
		if err := ctx.Err(); err != nil {
			var zero T
			yield(zero, err)
			return
		}
		for item, err := range seq {
			if !yield(item, err) || err != nil {
				return
			}
			if err := ctx.Err(); err != nil {
				var zero T
				yield(zero, err)
				return
			}
		}
	}
}

// CollectN drains upstream for the stage called name and checks that it yielded exactly want
// items. A different count is a count mismatch error naming itemKind and wantKind.
func CollectN[T any](name string, upstream Seq[T], itemKind string, want int, wantKind string) ([]T, error) {
	if upstream == nil {
		return nil, utils.NewMissingInputError(name)
	}
	items, err := Collect(upstream)
	if err != nil {
		return nil, err
	}
	if len(items) != want {
		return nil, utils.NewCountMismatchError(name, len(items), itemKind, want, wantKind)
	}
	return items, nil
}
