// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package rawhttp

import (
	"context"
	"errors"

	"github.com/z5labs/rawhttp/internal/try"
	"github.com/z5labs/rawhttp/lifecycle"
)

// Runtime represents a long running component, e.g. the server accept loop.
type Runtime interface {
	Run(context.Context) error
}

// RuntimeFunc is a functional implementation of the [Runtime] interface.
type RuntimeFunc func(context.Context) error

// Run implements the [Runtime] interface.
func (f RuntimeFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Runner builds and then runs a [Runtime].
type Runner[T Runtime] interface {
	Run(context.Context, Builder[T]) error
}

// RunnerFunc is a functional implementation of the [Runner] interface.
type RunnerFunc[T Runtime] func(context.Context, Builder[T]) error

// Run implements the [Runner] interface.
func (f RunnerFunc[T]) Run(ctx context.Context, b Builder[T]) error {
	return f(ctx, b)
}

// DefaultRunner returns a [Runner] which installs a [lifecycle.Context] into
// the build context, builds the [Runtime], runs it and finally executes every
// registered PostRun hook, even when the build or run failed.
func DefaultRunner[T Runtime]() Runner[T] {
	return RunnerFunc[T](func(ctx context.Context, b Builder[T]) (err error) {
		lc := &lifecycle.Context{}
		ctx = lifecycle.NewContext(ctx, lc)

		defer func() {
			err = errors.Join(err, lc.PostRun().Run(context.WithoutCancel(ctx)))
		}()

		rt, err := build(ctx, b)
		if err != nil {
			return err
		}
		return rt.Run(ctx)
	})
}

func build[T any](ctx context.Context, b Builder[T]) (_ T, err error) {
	defer try.Recover(&err)

	return b.Build(ctx)
}

// RecoverPanics wraps r so that a panic during build or run is returned as a
// [try.PanicError] instead of crashing the process.
func RecoverPanics[T Runtime](r Runner[T]) Runner[T] {
	return RunnerFunc[T](func(ctx context.Context, b Builder[T]) (err error) {
		defer try.Recover(&err)

		return r.Run(ctx, b)
	})
}
