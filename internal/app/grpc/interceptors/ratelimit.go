package interceptors

import (
	"context"
	"net"
	"path"

	"google.golang.org/grpc"
	"google.golang.org/grpc/peer"

	"github.com/spounge-ai/auditchain/internal/constants"
	app_errors "github.com/spounge-ai/auditchain/internal/errors"
	"github.com/spounge-ai/auditchain/internal/infra/ratelimit"
)

// UnaryRateLimitInterceptor spends constants.MethodCosts tokens per call from the caller's
// bucket. Callers are identified by peer address; unknown methods cost one token.
func UnaryRateLimitInterceptor(limiter ratelimit.Limiter) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		cost, ok := constants.MethodCosts[path.Base(info.FullMethod)]
		if !ok {
			cost = 1
		}
		if !limiter.AllowN(peerIdentity(ctx), cost) {
			return nil, app_errors.ErrRateLimit
		}
		return handler(ctx, req)
	}
}

func peerIdentity(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return "unknown"
	}
	host, _, err := net.SplitHostPort(p.Addr.String())
	if err != nil {
		return p.Addr.String()
	}
	return host
}
