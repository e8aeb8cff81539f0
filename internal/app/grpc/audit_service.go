package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/spounge-ai/auditchain/internal/constants"
	"github.com/spounge-ai/auditchain/internal/domain"
	"github.com/spounge-ai/auditchain/internal/infra/audit"
	"github.com/spounge-ai/auditchain/internal/service"
)

// AuditServiceServer is the gRPC surface of service.AuditService. Every method takes and
// returns a google.protobuf.Struct holding the JSON form of the request and result.
type AuditServiceServer interface {
	Ingest(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Query(context.Context, *structpb.Struct) (*structpb.Struct, error)
	VerifyChain(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DetectAnomalies(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ArchiveOldLogs(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetStats(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AggregateForCompliance(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(AuditServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func handler(method string, call unaryMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(AuditServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: constants.FullMethod(method)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(AuditServiceServer), ctx, req.(*structpb.Struct))
			})
		},
	}
}

// AuditServiceDesc is registered in place of generated protobuf bindings.
var AuditServiceDesc = grpc.ServiceDesc{
	ServiceName: constants.ServiceName,
	HandlerType: (*AuditServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		handler(constants.MethodIngest, AuditServiceServer.Ingest),
		handler(constants.MethodQuery, AuditServiceServer.Query),
		handler(constants.MethodVerifyChain, AuditServiceServer.VerifyChain),
		handler(constants.MethodDetectAnomalies, AuditServiceServer.DetectAnomalies),
		handler(constants.MethodArchiveOldLogs, AuditServiceServer.ArchiveOldLogs),
		handler(constants.MethodGetStats, AuditServiceServer.GetStats),
		handler(constants.MethodAggregateForCompliance, AuditServiceServer.AggregateForCompliance),
	},
	Metadata: "auditchain/v1/audit_service.proto",
}

type auditServer struct {
	svc service.AuditService
}

func NewAuditServer(svc service.AuditService) AuditServiceServer {
	return &auditServer{svc: svc}
}

type queryRequest struct {
	Filter domain.QueryFilter `json:"filter"`
	Page   domain.Page        `json:"page"`
	Sort   domain.Sort        `json:"sort"`
}

func (s *auditServer) Ingest(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req domain.IngestRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	entry, err := s.svc.Ingest(ctx, audit.WithRequestEnvironment(ctx, &req))
	if err != nil {
		return nil, err
	}
	return encode("entry", entry)
}

func (s *auditServer) Query(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req queryRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	entries, err := s.svc.Query(ctx, req.Filter, req.Page, req.Sort)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []*domain.AuditEntry{}
	}
	return encode("entries", entries)
}

func (s *auditServer) VerifyChain(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req rangeRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	report, err := s.svc.VerifyChain(ctx, req.Start, req.End)
	if err != nil {
		return nil, err
	}
	return encode("", report)
}

func (s *auditServer) DetectAnomalies(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req anomaliesRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	window, err := req.duration()
	if err != nil {
		return nil, err
	}
	records, err := s.svc.DetectAnomalies(ctx, window)
	if err != nil {
		return nil, err
	}
	return encode("anomalies", records)
}

func (s *auditServer) ArchiveOldLogs(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req archiveRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	result, err := s.svc.ArchiveOldLogs(ctx, req.DaysOld)
	if err != nil {
		return nil, err
	}
	return encode("", result)
}

func (s *auditServer) GetStats(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req rangeRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	stats, err := s.svc.GetStats(ctx, req.Start, req.End, req.TopN)
	if err != nil {
		return nil, err
	}
	return encode("", stats)
}

func (s *auditServer) AggregateForCompliance(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req rangeRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	report, err := s.svc.AggregateForCompliance(ctx, req.Start, req.End)
	if err != nil {
		return nil, err
	}
	return encode("", report)
}
