package interceptors

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	app_errors "github.com/spounge-ai/auditchain/internal/errors"
)

// UnaryErrorInterceptor turns handler errors into sanitized gRPC statuses. Errors that already
// carry a status pass through untouched.
func UnaryErrorInterceptor(errorClassifier *app_errors.ErrorClassifier) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		if err == nil {
			return resp, nil
		}
		if _, ok := status.FromError(err); ok {
			return nil, err
		}
		return nil, errorClassifier.LogAndSanitize(ctx, errorClassifier.Classify(err, info.FullMethod))
	}
}
