// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package shutdown turns operating system signals into typed messages for the
// server's control loop.
package shutdown

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/z5labs/rawhttp/internal/noop"
	"github.com/z5labs/rawhttp/internal/slogfield"

	"golang.org/x/sync/errgroup"
)

// Signal is one of [NormalExit], [ErrorExit] or [ReloadConfig].
type Signal interface {
	signal()
}

// NormalExit stops the server with exit code 0.
type NormalExit struct{}

// ErrorExit stops the server with the given exit code.
type ErrorExit struct {
	Code int
}

// ReloadConfig asks the server to reload its settings and rebind.
type ReloadConfig struct{}

func (NormalExit) signal()   {}
func (ErrorExit) signal()    {}
func (ReloadConfig) signal() {}

func (NormalExit) String() string   { return "normal exit" }
func (e ErrorExit) String() string  { return fmt.Sprintf("error exit(%d)", e.Code) }
func (ReloadConfig) String() string { return "reload config" }

// NewChannel returns the channel shared by every producer and the server.
// It holds at most one pending signal so the receiver is expected to keep
// pace with producers.
func NewChannel() chan Signal {
	return make(chan Signal, 1)
}

// Send delivers sig on out unless ctx is done first.
func Send(ctx context.Context, out chan<- Signal, sig Signal) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case out <- sig:
		return nil
	}
}

// NotifyFunc matches [signal.Notify].
type NotifyFunc func(c chan<- os.Signal, sig ...os.Signal)

// StopFunc matches [signal.Stop].
type StopFunc func(c chan<- os.Signal)

// Option configures a [Coordinator].
type Option func(*Coordinator)

// Logger sets the logger used to report received signals.
func Logger(log *slog.Logger) Option {
	return func(c *Coordinator) {
		c.log = log
	}
}

// Notify replaces [signal.Notify] and [signal.Stop], mainly for tests.
func Notify(notify NotifyFunc, stop StopFunc) Option {
	return func(c *Coordinator) {
		c.notify = notify
		c.stop = stop
	}
}

type producer struct {
	name    string
	signals []os.Signal
	emit    Signal
}

// Coordinator runs one producer per class of operating system signal.
// Interrupt and terminate produce [NormalExit]; hangup produces [ReloadConfig].
type Coordinator struct {
	out       chan<- Signal
	notify    NotifyFunc
	stop      StopFunc
	log       *slog.Logger
	producers []producer
}

// NewCoordinator returns a [Coordinator] which owns out and closes it once
// [Coordinator.Run] returns.
func NewCoordinator(out chan<- Signal, opts ...Option) *Coordinator {
	c := &Coordinator{
		out:    out,
		notify: signal.Notify,
		stop:   signal.Stop,
		log:    noop.Logger(),
		producers: []producer{
			{name: "interrupt", signals: []os.Signal{os.Interrupt}, emit: NormalExit{}},
			{name: "terminate", signals: []os.Signal{syscall.SIGTERM}, emit: NormalExit{}},
			{name: "hangup", signals: []os.Signal{syscall.SIGHUP}, emit: ReloadConfig{}},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run blocks until ctx is done. Every producer stops listening for its
// signals before the channel is closed.
func (c *Coordinator) Run(ctx context.Context) error {
	defer close(c.out)

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range c.producers {
		g.Go(c.produce(gctx, p))
	}
	return g.Wait()
}

func (c *Coordinator) produce(ctx context.Context, p producer) func() error {
	return func() error {
		ch := make(chan os.Signal, 1)
		c.notify(ch, p.signals...)
		defer c.stop(ch)

		for {
			select {
			case <-ctx.Done():
				return nil
			case sig := <-ch:
				c.log.InfoContext(
					ctx,
					"received signal",
					slogfield.String("producer", p.name),
					slogfield.String("signal", sig.String()),
				)
				if Send(ctx, c.out, p.emit) != nil {
					return nil
				}
			}
		}
	}
}
