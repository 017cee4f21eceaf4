// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MDIP Contributors

// Package logging builds the slog loggers authd writes with. Records carry the
// service identity and storage backend, plus the RPC call and trace context
// found on the record's context.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

// Redacted replaces the value of any attribute named in redactedKeys.
const Redacted = "[REDACTED]"

var redactedKeys = map[string]bool{
	"password":      true,
	"password_hash": true,
	"token":         true,
}

// Options configures Setup.
type Options struct {
	Service string
	Version string
	// Backend is the storage backend name. Omitted from records when empty.
	Backend string
	// Format is "json" or "text". Empty means json.
	Format string
	// Level is parsed with ParseLevel.
	Level string
}

type callKey struct{}

type call struct {
	method string
	peer   string
}

// WithCall returns a copy of ctx that makes records logged with it carry the
// RPC method and remote peer address. An empty peer is left out.
func WithCall(ctx context.Context, method, peer string) context.Context {
	return context.WithValue(ctx, callKey{}, call{method: method, peer: peer})
}

// recordHandler stamps identity, call and trace attributes onto each record.
type recordHandler struct {
	next     slog.Handler
	identity []slog.Attr
}

func (h *recordHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(h.identity...)

	if c, ok := ctx.Value(callKey{}).(call); ok {
		r.AddAttrs(slog.String("rpc_method", c.method))
		if c.peer != "" {
			r.AddAttrs(slog.String("peer", c.peer))
		}
	}

	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.HasTraceID() {
		r.AddAttrs(slog.String("trace_id", spanCtx.TraceID().String()))
	}
	if spanCtx.HasSpanID() {
		r.AddAttrs(slog.String("span_id", spanCtx.SpanID().String()))
	}

	//nolint:wrapcheck // Handler interface requires unwrapped error passthrough
	return h.next.Handle(ctx, r)
}

func (h *recordHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *recordHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &recordHandler{next: h.next.WithAttrs(attrs), identity: h.identity}
}

func (h *recordHandler) WithGroup(name string) slog.Handler {
	return &recordHandler{next: h.next.WithGroup(name), identity: h.identity}
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if redactedKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, Redacted)
	}
	return a
}

// ParseLevel maps "debug", "info", "warn" or "error" to a slog.Level.
// Anything else, including "", yields slog.LevelInfo.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup creates a logger writing to w, or to os.Stderr when w is nil.
func Setup(opts Options, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{
		Level:       ParseLevel(opts.Level),
		ReplaceAttr: redact,
	}
	var next slog.Handler
	if opts.Format == "text" {
		next = slog.NewTextHandler(w, handlerOpts)
	} else {
		next = slog.NewJSONHandler(w, handlerOpts)
	}

	identity := []slog.Attr{
		slog.String("service", opts.Service),
		slog.String("version", opts.Version),
	}
	if opts.Backend != "" {
		identity = append(identity, slog.String("backend", opts.Backend))
	}
	return slog.New(&recordHandler{next: next, identity: identity})
}

// SetDefault installs a stderr logger as the slog default and returns it.
func SetDefault(opts Options) *slog.Logger {
	logger := Setup(opts, nil)
	slog.SetDefault(logger)
	return logger
}
