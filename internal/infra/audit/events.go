package audit

import (
	"context"
	"maps"
	"net"
	"slices"
	"strings"

	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"

	"github.com/spounge-ai/auditchain/internal/domain"
)

type actorKey struct{}

// ContextWithActor attaches the acting user so recorders can fill it into events that do
// not name one.
func ContextWithActor(ctx context.Context, actor *domain.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func ActorFromContext(ctx context.Context) (*domain.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(*domain.Actor)
	return actor, ok && actor != nil
}

// WithRequestEnvironment returns a copy of req with the actor, client address and user agent
// filled in from ctx where req leaves them empty. Explicit values always win. req itself is not
// modified, so callers may reuse it once this returns.
func WithRequestEnvironment(ctx context.Context, in *domain.IngestRequest) *domain.IngestRequest {
	req := copyRequest(in)
	if req.Actor == nil {
		if actor, ok := ActorFromContext(ctx); ok {
			a := *actor
			req.Actor = &a
		}
	}
	if req.Environment.IPAddress == "" {
		req.Environment.IPAddress = extractSourceIP(ctx)
	}
	if req.Environment.UserAgent == "" {
		req.Environment.UserAgent = extractUserAgent(ctx)
	}
	return req
}

// copyRequest copies the request and its top-level containers. Payload values inside Changes,
// Request and Metadata are shared.
func copyRequest(in *domain.IngestRequest) *domain.IngestRequest {
	req := *in
	if in.Actor != nil {
		a := *in.Actor
		req.Actor = &a
	}
	if in.Environment.Geolocation != nil {
		g := *in.Environment.Geolocation
		req.Environment.Geolocation = &g
	}
	if in.Request != nil {
		rc := *in.Request
		req.Request = &rc
	}
	if in.Changes != nil {
		c := *in.Changes
		c.Fields = slices.Clone(in.Changes.Fields)
		req.Changes = &c
	}
	req.Tags = slices.Clone(in.Tags)
	req.Metadata = maps.Clone(in.Metadata)
	return &req
}

// extractUserAgent reads the user agent from incoming gRPC metadata.
func extractUserAgent(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if ua := md.Get("user-agent"); len(ua) > 0 {
		return ua[0]
	}
	return ""
}

// extractSourceIP prefers the first X-Forwarded-For hop, then the transport peer.
func extractSourceIP(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if fwd := md.Get("x-forwarded-for"); len(fwd) > 0 {
			first := strings.TrimSpace(strings.Split(fwd[0], ",")[0])
			if first != "" {
				return first
			}
		}
	}
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(p.Addr.String())
	if err != nil {
		return p.Addr.String()
	}
	return host
}
