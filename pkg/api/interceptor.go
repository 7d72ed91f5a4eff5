package api

import (
	"context"
	"time"

	"github.com/cuemby/burrow/pkg/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/tap"
)

// LoggingInterceptor logs every unary call with its status code and latency
func LoggingInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		log.Logger.Debug().
			Str("component", "grpc").
			Str("method", info.FullMethod).
			Str("code", status.Code(err).String()).
			Dur("took", time.Since(start)).
			Msg("Call served")
		return resp, err
	}
}

// StreamLoggingInterceptor logs the end of every stream
func StreamLoggingInterceptor() grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		start := time.Now()
		err := handler(srv, ss)

		log.Logger.Debug().
			Str("component", "grpc").
			Str("method", info.FullMethod).
			Str("code", status.Code(err).String()).
			Dur("took", time.Since(start)).
			Msg("Stream closed")
		return err
	}
}

// TapLimiter applies a Limiter to incoming streams before any decoding
type TapLimiter struct {
	limiter *Limiter
}

// NewTapLimiter wraps limiter for use with grpc.InTapHandle
func NewTapLimiter(limiter *Limiter) *TapLimiter {
	return &TapLimiter{limiter: limiter}
}

// Handler waits for the limiter and fails with ResourceExhausted once the
// caller's context expires
func (t *TapLimiter) Handler(ctx context.Context, info *tap.Info) (context.Context, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		log.Logger.Warn().
			Err(err).
			Str("method", info.FullMethodName).
			Msg("Request dropped by rate limit")
		return nil, status.Error(codes.ResourceExhausted, "resource exhausted due to rate limit")
	}
	return ctx, nil
}
