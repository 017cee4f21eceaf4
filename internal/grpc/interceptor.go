// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MDIP Contributors

package grpc

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/mdip/authd/internal/logging"
)

var tracer = otel.Tracer("authd/grpc")

// tracingInterceptor starts a server span per call so log records written
// while handling it carry trace_id and span_id.
func tracingInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, span := tracer.Start(ctx, info.FullMethod,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("rpc.service", ServiceName)),
		)
		defer span.End()

		resp, err := handler(ctx, req)
		code := status.Code(err)
		span.SetAttributes(attribute.String("rpc.grpc.status_code", code.String()))
		if code != codes.OK {
			span.SetStatus(otelcodes.Error, code.String())
		}
		return resp, err
	}
}

// loggingInterceptor logs every unary call with its status code and latency.
// Request bodies carry passwords and are never logged. Records the handler
// writes with ctx carry the method and peer.
func loggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		var addr string
		if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
			addr = p.Addr.String()
		}
		ctx = logging.WithCall(ctx, info.FullMethod, addr)
		resp, err := handler(ctx, req)
		code := status.Code(err)

		level := slog.LevelDebug
		if code == codes.Internal || code == codes.Unavailable || code == codes.Unknown {
			level = slog.LevelWarn
		}
		logger.Log(ctx, level, "grpc request",
			"code", code.String(),
			"duration", time.Since(start),
		)
		return resp, err
	}
}

// recoveryInterceptor turns a handler panic into codes.Internal.
func recoveryInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.ErrorContext(ctx, "grpc handler panic",
					"method", info.FullMethod,
					"panic", r,
				)
				resp, err = nil, status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}
