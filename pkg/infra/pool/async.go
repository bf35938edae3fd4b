package pool

import (
	"context"

	"github.com/kart-io/docbase/pkg/errors"
)

// Result carries the outcome of an asynchronous call.
type Result[T any] struct {
	Value T
	Err   error
}

// Go runs fn on p and delivers exactly one Result on the returned channel.
// The channel is buffered, so an abandoned receiver never blocks the worker.
// If the pool rejects the task, or ctx is done before the task starts, the
// Result carries that error instead. A panic in fn is delivered as an
// ErrInternal Result.
func Go[T any](ctx context.Context, p *Pool, fn func(context.Context) (T, error)) <-chan Result[T] {
	out := make(chan Result[T], 1)

	run := func() {
		defer close(out)
		defer func() {
			if r := recover(); r != nil {
				out <- Result[T]{Err: errors.ErrInternal.WithMessagef("panic: %v", r)}
			}
		}()
		if err := ctx.Err(); err != nil {
			out <- Result[T]{Err: err}
			return
		}
		v, err := fn(ctx)
		out <- Result[T]{Value: v, Err: err}
	}

	if err := p.Submit(run); err != nil {
		out <- Result[T]{Err: err}
		close(out)
	}
	return out
}
