// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package connection serves exactly one request per accepted connection.
package connection

import (
	"context"
	"log/slog"
	"net"

	"github.com/z5labs/rawhttp/internal/noop"
	"github.com/z5labs/rawhttp/internal/slogfield"
	"github.com/z5labs/rawhttp/internal/try"
	"github.com/z5labs/rawhttp/protocol"
	"github.com/z5labs/rawhttp/settings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Router produces the response for a parsed request.
type Router interface {
	Route(context.Context, *protocol.Request) protocol.Response
}

// RouterFunc is a func version of the [Router] interface.
type RouterFunc func(context.Context, *protocol.Request) protocol.Response

// Route implements the [Router] interface.
func (f RouterFunc) Route(ctx context.Context, req *protocol.Request) protocol.Response {
	return f(ctx, req)
}

// WriteError is returned when the response could not be written back.
type WriteError struct {
	Cause error
}

// Error implements the [error] interface.
func (e WriteError) Error() string {
	return "failed to write response: " + e.Cause.Error()
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e WriteError) Unwrap() error {
	return e.Cause
}

// Option configures a [Handler].
type Option func(*Handler)

// Logger sets the logger for connection failures.
func Logger(log *slog.Logger) Option {
	return func(h *Handler) {
		h.log = log
	}
}

// TracerProvider overrides the global tracer provider.
func TracerProvider(tp trace.TracerProvider) Option {
	return func(h *Handler) {
		h.tracer = tp.Tracer("connection")
	}
}

// Handler runs parse, route, serialize and write for a single connection.
type Handler struct {
	router Router
	log    *slog.Logger
	tracer trace.Tracer
}

// NewHandler returns a [Handler] dispatching to r.
func NewHandler(r Router, opts ...Option) *Handler {
	h := &Handler{
		router: r,
		log:    noop.Logger(),
		tracer: otel.Tracer("connection"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle serves one request from conn using the read buffer size of s and
// always closes conn. A request that fails to parse is answered with a 500
// and no body. Every error, including a recovered panic, is logged before
// being returned so callers are free to drop it.
func (h *Handler) Handle(ctx context.Context, conn net.Conn, s *settings.Settings) (err error) {
	spanCtx, span := h.tracer.Start(ctx, "connection", trace.WithSpanKind(trace.SpanKindServer), trace.WithAttributes(
		attribute.String("net.peer.addr", peer(conn)),
	))
	defer span.End()
	defer func() {
		if err == nil {
			return
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.log.ErrorContext(spanCtx, "connection failed", slogfield.Addr("peer", conn.RemoteAddr()), slogfield.Error(err))
	}()
	defer try.Close(&err, conn)
	defer try.Recover(&err)

	resp := h.respond(spanCtx, span, conn, s.ReadBufferSize())
	span.SetAttributes(attribute.Int("http.status_code", resp.Status.Code()))

	_, err = resp.WriteTo(conn)
	if err != nil {
		return WriteError{Cause: err}
	}
	return nil
}

func (h *Handler) respond(ctx context.Context, span trace.Span, conn net.Conn, bufSize int) protocol.Response {
	req, err := protocol.ReadRequest(conn, bufSize)
	if err != nil {
		h.log.WarnContext(ctx, "failed to read request", slogfield.Addr("peer", conn.RemoteAddr()), slogfield.Error(err))
		return protocol.Empty(protocol.StatusInternalServerError)
	}
	span.SetAttributes(
		attribute.String("http.method", req.Headers.Method),
		attribute.String("http.target", req.Headers.Path),
	)
	return h.router.Route(ctx, req)
}

func peer(conn net.Conn) string {
	addr := conn.RemoteAddr()
	if addr == nil {
		return ""
	}
	return addr.String()
}
