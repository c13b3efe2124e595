// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package lifecycle lets components register work that must happen once the
// server process stops, e.g. flushing spans or closing the listener.
package lifecycle

import (
	"context"
	"errors"
	"sync"
)

// Hook is work executed relative to a [rawhttp.Runtime] finishing.
type Hook interface {
	Run(context.Context) error
}

// HookFunc is a func variant of the [Hook] interface.
type HookFunc func(context.Context) error

// Run implements the [Hook] interface.
func (f HookFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// multiHook runs every hook in order. A failing hook does not stop the ones
// after it; all failures are joined.
type multiHook []Hook

func (mh multiHook) Run(ctx context.Context) error {
	var errs []error
	for _, h := range mh {
		if err := h.Run(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Context collects PostRun hooks. It is safe for concurrent use.
type Context struct {
	mu       sync.Mutex
	postRuns []Hook
}

// OnPostRun registers hook to run after the runtime returns.
func (c *Context) OnPostRun(hook Hook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.postRuns = append(c.postRuns, hook)
}

// PostRun returns every registered hook as one [Hook]. Hooks run in reverse
// registration order, like deferred calls, so a component registered later
// (and likely depending on earlier ones) is torn down first.
func (c *Context) PostRun() Hook {
	c.mu.Lock()
	defer c.mu.Unlock()

	hooks := make(multiHook, len(c.postRuns))
	for i, h := range c.postRuns {
		hooks[len(c.postRuns)-1-i] = h
	}
	return hooks
}

type contextKey struct{}

// NewContext returns a copy of parent carrying c.
func NewContext(parent context.Context, c *Context) context.Context {
	return context.WithValue(parent, contextKey{}, c)
}

// FromContext extracts the [Context] stored by [NewContext].
func FromContext(ctx context.Context) (*Context, bool) {
	lc, ok := ctx.Value(contextKey{}).(*Context)
	return lc, ok
}
