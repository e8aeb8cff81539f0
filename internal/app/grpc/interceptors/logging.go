package interceptors

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

func UnaryLoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()

		resp, err := handler(ctx, req)

		attrs := []slog.Attr{
			slog.String("method", info.FullMethod),
			slog.Duration("duration", time.Since(start)),
			slog.String("code", status.Code(err).String()),
		}
		if err != nil {
			logger.LogAttrs(ctx, slog.LevelWarn, "grpc request failed", append(attrs, slog.String("error", err.Error()))...)
			return resp, err
		}
		logger.LogAttrs(ctx, slog.LevelDebug, "grpc request", attrs...)
		return resp, err
	}
}
