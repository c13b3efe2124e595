// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package otelslog correlates connection logs with the span of the
// connection being served.
package otelslog

import (
	"context"
	"log/slog"

	"github.com/z5labs/rawhttp/internal/slogfield"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Option configures a [Handler].
type Option func(*Handler)

// Group nests the span identifiers under name. An empty name puts them at
// the top level of the record.
//
// Default: "otel"
func Group(name string) Option {
	return func(h *Handler) {
		h.group = name
	}
}

// SpanEvents copies records at or above lvl onto the active span as events,
// so a span exported without its logs still shows what went wrong.
func SpanEvents(lvl slog.Level) Option {
	return func(h *Handler) {
		h.events = true
		h.minEvent = lvl
	}
}

// Handler stamps records logged with a span in their context with the trace
// id, span id and sampling decision of that span.
type Handler struct {
	next     slog.Handler
	group    string
	events   bool
	minEvent slog.Level
}

// NewHandler wraps next.
func NewHandler(next slog.Handler, opts ...Option) *Handler {
	h := &Handler{
		next:  next,
		group: "otel",
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// New is shorthand for slog.New(NewHandler(next, opts...)).
func New(next slog.Handler, opts ...Option) *slog.Logger {
	return slog.New(NewHandler(next, opts...))
}

// Enabled implements the slog.Handler interface.
func (h *Handler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return h.next.Enabled(ctx, lvl)
}

// Handle implements the slog.Handler interface.
func (h *Handler) Handle(ctx context.Context, record slog.Record) error {
	span := trace.SpanFromContext(ctx)
	sc := span.SpanContext()
	if !sc.IsValid() {
		return h.next.Handle(ctx, record)
	}

	if h.events && record.Level >= h.minEvent && span.IsRecording() {
		span.AddEvent(record.Message, trace.WithAttributes(
			attribute.String("log.severity", record.Level.String()),
		))
	}

	ids := []slog.Attr{
		slogfield.String("trace_id", sc.TraceID().String()),
		slogfield.String("span_id", sc.SpanID().String()),
		slog.Bool("sampled", sc.IsSampled()),
	}

	r := record.Clone()
	if h.group == "" {
		r.AddAttrs(ids...)
		return h.next.Handle(ctx, r)
	}
	args := make([]any, len(ids))
	for i, attr := range ids {
		args[i] = attr
	}
	r.AddAttrs(slog.Group(h.group, args...))
	return h.next.Handle(ctx, r)
}

func (h *Handler) with(next slog.Handler) *Handler {
	cp := *h
	cp.next = next
	return &cp
}

// WithAttrs implements the slog.Handler interface.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.with(h.next.WithAttrs(attrs))
}

// WithGroup implements the slog.Handler interface.
func (h *Handler) WithGroup(name string) slog.Handler {
	return h.with(h.next.WithGroup(name))
}
