package interceptors

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/spounge-ai/auditchain/internal/domain"
	"github.com/spounge-ai/auditchain/internal/infra/audit"
)

// Metadata keys a collaborator sets to name the user an ingested event is about.
const (
	ActorIDKey    = "x-actor-id"
	ActorEmailKey = "x-actor-email"
	ActorRoleKey  = "x-actor-role"
)

// UnaryActorInterceptor lifts actor metadata into the context. Requests without an actor id
// are left alone and recorded as system events.
func UnaryActorInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return handler(ctx, req)
		}
		id := first(md, ActorIDKey)
		if id == "" {
			return handler(ctx, req)
		}
		actor := &domain.Actor{
			UserID: id,
			Email:  first(md, ActorEmailKey),
			Role:   first(md, ActorRoleKey),
		}
		return handler(audit.ContextWithActor(ctx, actor), req)
	}
}

func first(md metadata.MD, key string) string {
	if v := md.Get(key); len(v) > 0 {
		return v[0]
	}
	return ""
}
