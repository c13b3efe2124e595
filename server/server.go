// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package server owns the listener and runs the accept loop.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/z5labs/rawhttp/connection"
	"github.com/z5labs/rawhttp/files"
	"github.com/z5labs/rawhttp/internal/noop"
	"github.com/z5labs/rawhttp/internal/slogfield"
	"github.com/z5labs/rawhttp/router"
	"github.com/z5labs/rawhttp/settings"
	"github.com/z5labs/rawhttp/shutdown"

	"github.com/cenkalti/backoff/v4"
)

// State is the position of the server in its lifecycle.
type State int32

const (
	Running State = iota
	Reloading
	Stopped
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Reloading:
		return "reloading"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// ExitError is returned by [Server.Run] when the server was stopped by a
// [shutdown.ErrorExit] signal.
type ExitError struct {
	Code int
}

// Error implements the [error] interface.
func (e ExitError) Error() string {
	return fmt.Sprintf("server stopped with exit code %d", e.Code)
}

// BindError is returned when a listener could not be created.
type BindError struct {
	Addr  string
	Cause error
}

// Error implements the [error] interface.
func (e BindError) Error() string {
	return fmt.Sprintf("failed to listen on %s: %s", e.Addr, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e BindError) Unwrap() error {
	return e.Cause
}

// ReloadError is returned by [Server.Run] when a reload left the server
// without any listener.
type ReloadError struct {
	Cause error
}

// Error implements the [error] interface.
func (e ReloadError) Error() string {
	return fmt.Sprintf("reload left server without a listener: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e ReloadError) Unwrap() error {
	return e.Cause
}

// ConnectionHandler serves one accepted connection with the settings that
// were active when it was accepted.
type ConnectionHandler interface {
	Handle(context.Context, net.Conn, *settings.Settings) error
}

// ConnectionHandlerFunc is a func version of [ConnectionHandler].
type ConnectionHandlerFunc func(context.Context, net.Conn, *settings.Settings) error

// Handle implements the [ConnectionHandler] interface.
func (f ConnectionHandlerFunc) Handle(ctx context.Context, conn net.Conn, s *settings.Settings) error {
	return f(ctx, conn, s)
}

type options struct {
	initial  *settings.Settings
	provider settings.Provider
	handler  ConnectionHandler
	signals  <-chan shutdown.Signal
	log      *slog.Logger
}

// Option configures a [Server].
type Option func(*options)

// InitialSettings skips the first provider load and binds s instead.
func InitialSettings(s *settings.Settings) Option {
	return func(o *options) {
		o.initial = s
	}
}

// Provider sets where settings are loaded from on startup and on every reload.
// Defaults to [settings.NewEnvProvider].
func Provider(p settings.Provider) Option {
	return func(o *options) {
		o.provider = p
	}
}

// Handler sets the per-connection handler. Defaults to a
// [connection.Handler] which has no directory for /files/ requests.
func Handler(h ConnectionHandler) Option {
	return func(o *options) {
		o.handler = h
	}
}

// Signals sets the channel the control loop receives shutdown signals from.
// Without it the server only stops when its context is done.
func Signals(ch <-chan shutdown.Signal) Option {
	return func(o *options) {
		o.signals = ch
	}
}

// Logger sets the logger for lifecycle events.
func Logger(log *slog.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// Server is the accept loop and its signal driven state machine.
type Server struct {
	listen   func(network, addr string) (net.Listener, error)
	provider settings.Provider
	handler  ConnectionHandler
	signals  <-chan shutdown.Signal
	log      *slog.Logger

	settings *settings.Store
	state    atomic.Int32

	mu sync.Mutex
	ls net.Listener
}

// New loads the initial settings and binds the listener. A bind failure is
// returned as a [BindError].
func New(ctx context.Context, opts ...Option) (*Server, error) {
	o := &options{
		log: noop.Logger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.provider == nil {
		o.provider = settings.NewEnvProvider()
	}
	if o.handler == nil {
		o.handler = connection.NewHandler(
			router.New(router.StaticDirectory(""), files.OS(), router.Logger(o.log)),
			connection.Logger(o.log),
		)
	}

	return newServer(ctx, net.Listen, o)
}

func newServer(ctx context.Context, listen func(string, string) (net.Listener, error), o *options) (*Server, error) {
	s := o.initial
	if s == nil {
		var err error
		s, err = o.provider.Load(ctx)
		if err != nil {
			return nil, err
		}
	}

	srv := &Server{
		listen:   listen,
		provider: o.provider,
		handler:  o.handler,
		signals:  o.signals,
		log:      o.log,
		settings: settings.NewStore(s),
	}

	ls, err := srv.bind(s.Addr())
	if err != nil {
		return nil, err
	}
	srv.ls = ls
	return srv, nil
}

// State returns the current lifecycle state.
func (srv *Server) State() State {
	return State(srv.state.Load())
}

// Settings returns the active settings snapshot.
func (srv *Server) Settings() *settings.Settings {
	return srv.settings.Load()
}

// Addr returns the address of the active listener.
func (srv *Server) Addr() net.Addr {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return srv.ls.Addr()
}

// Run serves connections until ctx is done or a stopping signal arrives.
// Connections still being handled when Run returns are left to finish
// on their own.
//
// Accepted connections and signals are received in one select. When both are
// ready Go picks one at random, so neither has priority.
func (srv *Server) Run(ctx context.Context) error {
	stop := make(chan struct{})
	defer close(stop)
	defer srv.state.Store(int32(Stopped))
	defer srv.closeListener()

	conns := make(chan net.Conn)
	srv.state.Store(int32(Running))
	go srv.accept(srv.listener(), conns, stop)
	srv.log.InfoContext(ctx, "started server", slogfield.Addr("addr", srv.Addr()))

	for {
		select {
		case <-ctx.Done():
			srv.log.InfoContext(ctx, "stopping server", slogfield.String("reason", "context done"))
			return nil
		case conn := <-conns:
			s := srv.settings.Load()
			go srv.serve(context.WithoutCancel(ctx), conn, s)
		case sig, ok := <-srv.signals:
			if !ok {
				srv.log.InfoContext(ctx, "stopping server", slogfield.String("reason", "signal channel closed"))
				return nil
			}
			switch sig := sig.(type) {
			case shutdown.NormalExit:
				srv.log.InfoContext(ctx, "stopping server", slogfield.String("reason", "normal exit"))
				return nil
			case shutdown.ErrorExit:
				srv.log.WarnContext(ctx, "stopping server", slogfield.String("reason", "error exit"), slogfield.Int("code", sig.Code))
				return ExitError{Code: sig.Code}
			case shutdown.ReloadConfig:
				err := srv.reload(ctx, conns, stop)
				if err != nil {
					srv.log.ErrorContext(ctx, "stopping server", slogfield.Error(err))
					return err
				}
			}
		}
	}
}

func (srv *Server) serve(ctx context.Context, conn net.Conn, s *settings.Settings) {
	// Handle logs its own failures.
	_ = srv.handler.Handle(ctx, conn, s)
}

// reload swaps in freshly loaded settings and a listener bound to their
// address. If either step fails the old listener and settings stay active.
// The only error returned is when no listener could be restored.
func (srv *Server) reload(ctx context.Context, conns chan<- net.Conn, stop <-chan struct{}) error {
	srv.state.Store(int32(Reloading))
	defer srv.state.Store(int32(Running))
	srv.log.InfoContext(ctx, "reloading settings")

	next, err := srv.provider.Load(ctx)
	if err != nil {
		srv.log.ErrorContext(ctx, "failed to load settings, keeping current settings", slogfield.Error(err))
		return nil
	}
	prev := srv.settings.Load()

	if next.Addr() != prev.Addr() {
		ls, err := srv.bind(next.Addr())
		if err != nil {
			srv.log.ErrorContext(ctx, "failed to bind new address, keeping current listener", slogfield.Error(err))
			return nil
		}
		old := srv.swapListener(ls)
		srv.settings.Swap(next)
		go srv.accept(ls, conns, stop)
		old.Close()
		srv.log.InfoContext(ctx, "reloaded settings", slogfield.Addr("addr", ls.Addr()))
		return nil
	}

	// The same address can't be bound twice so the old listener has to go first.
	srv.closeListener()
	ls, err := srv.bind(next.Addr())
	if err == nil {
		srv.swapListener(ls)
		srv.settings.Swap(next)
		go srv.accept(ls, conns, stop)
		srv.log.InfoContext(ctx, "reloaded settings", slogfield.Addr("addr", ls.Addr()))
		return nil
	}
	srv.log.ErrorContext(ctx, "failed to rebind address, restoring previous listener", slogfield.Error(err))

	ls, rerr := srv.bind(prev.Addr())
	if rerr != nil {
		return ReloadError{Cause: errors.Join(err, rerr)}
	}
	srv.swapListener(ls)
	go srv.accept(ls, conns, stop)
	return nil
}

func (srv *Server) bind(addr string) (net.Listener, error) {
	ls, err := srv.listen("tcp", addr)
	if err != nil {
		return nil, BindError{Addr: addr, Cause: err}
	}
	return ls, nil
}

func (srv *Server) listener() net.Listener {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return srv.ls
}

func (srv *Server) swapListener(ls net.Listener) net.Listener {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	old := srv.ls
	srv.ls = ls
	return old
}

func (srv *Server) closeListener() {
	err := srv.listener().Close()
	if err != nil && !errors.Is(err, net.ErrClosed) {
		srv.log.Warn("failed to close listener", slogfield.Error(err))
	}
}

// accept feeds conns from ls until ls is closed or stop is closed.
func (srv *Server) accept(ls net.Listener, conns chan<- net.Conn, stop <-chan struct{}) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 5 * time.Millisecond
	bo.MaxInterval = time.Second
	bo.MaxElapsedTime = 0
	// the constructor already reset the interval from its own defaults
	bo.Reset()

	for {
		conn, err := ls.Accept()
		if errors.Is(err, net.ErrClosed) {
			return
		}
		if err != nil {
			delay := bo.NextBackOff()
			srv.log.Warn("failed to accept connection", slogfield.Duration("retry_in", delay), slogfield.Error(err))
			select {
			case <-stop:
				return
			case <-time.After(delay):
			}
			continue
		}
		bo.Reset()

		select {
		case <-stop:
			conn.Close()
			return
		case conns <- conn:
		}
	}
}
