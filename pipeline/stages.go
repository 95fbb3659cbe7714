package pipeline

import (
	"context"

	"go.viam.com/cloudmosh/utils"
)

// SourceFunc adapts a function that starts a fresh sequence into a source stage. The function is
// called once per Attach, and the returned sequence should start over each time it is ranged.
type SourceFunc[Out any] struct {
	StageName string
	Start     func(ctx context.Context) (Seq[Out], error)
}

// NewSource returns a source stage named name.
func NewSource[Out any](name string, start func(ctx context.Context) (Seq[Out], error)) *SourceFunc[Out] {
	return &SourceFunc[Out]{StageName: name, Start: start}
}

// Name returns the stage name.
func (s *SourceFunc[Out]) Name() string { return s.StageName }

// Role is always RoleSource.
func (s *SourceFunc[Out]) Role() Role { return RoleSource }

// Attach starts the source. Any upstream is a usage error.
func (s *SourceFunc[Out]) Attach(ctx context.Context, upstream Seq[Nothing]) (Seq[Out], error) {
	if upstream != nil {
		return nil, utils.NewSourceInputError(s.StageName)
	}
	return s.Start(ctx)
}

// TransformFunc adapts a function over sequences into a transform stage.
type TransformFunc[In, Out any] struct {
	StageName string
	Apply     func(ctx context.Context, upstream Seq[In]) (Seq[Out], error)
}

// NewTransform returns a transform stage named name.
func NewTransform[In, Out any](
	name string,
	apply func(ctx context.Context, upstream Seq[In]) (Seq[Out], error),
) *TransformFunc[In, Out] {
	return &TransformFunc[In, Out]{StageName: name, Apply: apply}
}

// Name returns the stage name.
func (s *TransformFunc[In, Out]) Name() string { return s.StageName }

// Role is always RoleTransform.
func (s *TransformFunc[In, Out]) Role() Role { return RoleTransform }

// Attach applies the transform to upstream.
func (s *TransformFunc[In, Out]) Attach(ctx context.Context, upstream Seq[In]) (Seq[Out], error) {
	if upstream == nil {
		return nil, utils.NewMissingInputError(s.StageName)
	}
	return s.Apply(ctx, upstream)
}

// SinkFunc adapts a consuming function into a sink stage.
type SinkFunc[In any] struct {
	StageName string
	Consume   func(ctx context.Context, upstream Seq[In]) error
}

// NewSink returns a sink stage named name.
func NewSink[In any](name string, consume func(ctx context.Context, upstream Seq[In]) error) *SinkFunc[In] {
	return &SinkFunc[In]{StageName: name, Consume: consume}
}

// Name returns the stage name.
func (s *SinkFunc[In]) Name() string { return s.StageName }

// Role is always RoleSink.
func (s *SinkFunc[In]) Role() Role { return RoleSink }

// Attach consumes upstream entirely and returns a nil sequence.
func (s *SinkFunc[In]) Attach(ctx context.Context, upstream Seq[In]) (Seq[Nothing], error) {
	if upstream == nil {
		return nil, utils.NewMissingInputError(s.StageName)
	}
	return nil, s.Consume(ctx, upstream)
}

// FromSlice returns a restartable source over items.
func FromSlice[T any](name string, items []T) *SourceFunc[T] {
	return NewSource(name, func(ctx context.Context) (Seq[T], error) {
		return WithContext(ctx, Of(items...)), nil
	})
}

// Map returns a transform that applies fn to every element, one at a time.
func Map[In, Out any](name string, fn func(ctx context.Context, in In) (Out, error)) *TransformFunc[In, Out] {
	return NewTransform(name, func(ctx context.Context, upstream Seq[In]) (Seq[Out], error) {
		return func(yield func(Out, error) bool) {
			var zero Out
			for in, err := range upstream {
				if err != nil {
					yield(zero, err)
					return
				}
				out, err := fn(ctx, in)
				if err != nil {
					yield(zero, err)
					return
				}
				if !yield(out, nil) {
					return
				}
			}
		}, nil
	})
}

// chained is two stages joined into one.
type chained[A, B, C any] struct {
	first  Stage[A, B]
	second Stage[B, C]
}

// Chain joins two stages so that the output of first feeds second. The result is a source if
// first is a source, a sink if second is a sink, and a transform otherwise. A source chained
// into a sink is a closed pipeline: it is a sink that Run or Open cannot read, and is executed by
// attaching it to a nil upstream with Execute.
func Chain[A, B, C any](first Stage[A, B], second Stage[B, C]) (Stage[A, C], error) {
	if first.Role() == RoleSink {
		return nil, utils.NewSinkReadError(first.Name())
	}
	if second.Role() == RoleSource {
		return nil, utils.NewSourceInputError(second.Name())
	}
	return &chained[A, B, C]{first: first, second: second}, nil
}

func (c *chained[A, B, C]) Name() string {
	return c.first.Name() + " >> " + c.second.Name()
}

func (c *chained[A, B, C]) Role() Role {
	if c.second.Role() == RoleSink {
		return RoleSink
	}
	if c.first.Role() == RoleSource {
		return RoleSource
	}
	return RoleTransform
}

func (c *chained[A, B, C]) closed() bool {
	return c.first.Role() == RoleSource && c.second.Role() == RoleSink
}

func (c *chained[A, B, C]) Attach(ctx context.Context, upstream Seq[A]) (Seq[C], error) {
	var mid Seq[B]
	var err error
	if c.first.Role() == RoleSource {
		if upstream != nil {
			return nil, utils.NewSourceInputError(c.first.Name())
		}
		mid, err = c.first.Attach(ctx, nil)
	} else {
		if upstream == nil {
			return nil, utils.NewMissingInputError(c.first.Name())
		}
		mid, err = c.first.Attach(ctx, upstream)
	}
	if err != nil {
		return nil, err
	}
	return Shift(ctx, mid, c.second)
}

// Execute runs a closed pipeline built by Chain from a source and a sink.
func Execute[A, C any](ctx context.Context, pipeline Stage[A, C]) error {
	c, ok := pipeline.(interface{ closed() bool })
	if !ok || !c.closed() {
		return utils.NewUsageError("%s is not a closed pipeline", pipeline.Name())
	}
	_, err := pipeline.Attach(ctx, nil)
	return err
}
