package grpc

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"

	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/spounge-ai/auditchain/internal/app/grpc/interceptors"
	"github.com/spounge-ai/auditchain/internal/constants"
	app_errors "github.com/spounge-ai/auditchain/internal/errors"
	"github.com/spounge-ai/auditchain/internal/infra/config"
	"github.com/spounge-ai/auditchain/internal/infra/ratelimit"
	"github.com/spounge-ai/auditchain/internal/service"
	"github.com/spounge-ai/auditchain/pkg/patterns/lifecycle"
)

type Server struct {
	grpcServer *grpc.Server
	healthSrv  *health.Server
	lis        net.Listener
	logger     *slog.Logger
	running    atomic.Bool
	serveErr   atomic.Value
}

// New listens on cfg.Server.Port (0 picks a free port) and returns the bound port.
func New(
	cfg *config.Config,
	auditService service.AuditService,
	logger *slog.Logger,
	errorClassifier *app_errors.ErrorClassifier,
) (*Server, int, error) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.Port))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to listen: %w", err)
	}

	port := lis.Addr().(*net.TCPAddr).Port
	return NewWithListener(lis, cfg.Server.RateLimiter, auditService, logger, errorClassifier), port, nil
}

// NewWithListener builds the server on an existing listener, such as a bufconn in tests.
func NewWithListener(
	lis net.Listener,
	limits config.RateLimiterConfig,
	auditService service.AuditService,
	logger *slog.Logger,
	errorClassifier *app_errors.ErrorClassifier,
) *Server {
	chain := []grpc.UnaryServerInterceptor{
		interceptors.UnaryLoggingInterceptor(logger),
		interceptors.UnaryErrorInterceptor(errorClassifier),
	}
	if limits.Enabled {
		rateLimiter := ratelimit.NewInMemoryRateLimiter(rate.Limit(limits.Rate), limits.Burst)
		chain = append(chain, interceptors.UnaryRateLimitInterceptor(rateLimiter))
	}
	chain = append(chain, interceptors.UnaryActorInterceptor())

	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(chain...))
	grpcServer.RegisterService(&AuditServiceDesc, NewAuditServer(auditService))

	healthSrv := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthSrv)
	reflection.Register(grpcServer)

	return &Server{
		grpcServer: grpcServer,
		healthSrv:  healthSrv,
		lis:        lis,
		logger:     logger,
	}
}

// Start serves in the background until Stop is called.
func (s *Server) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return nil
	}
	s.logger.Info("gRPC server listening", "address", s.lis.Addr().String())
	s.healthSrv.SetServingStatus(constants.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	go func() {
		if err := s.grpcServer.Serve(s.lis); err != nil {
			s.serveErr.Store(err.Error())
			s.logger.Error("gRPC server failed", "error", err)
		}
		s.running.Store(false)
	}()
	return nil
}

func (s *Server) Health(context.Context) lifecycle.HealthStatus {
	if s.running.Load() {
		return lifecycle.HealthStatus{Ready: true}
	}
	msg, _ := s.serveErr.Load().(string)
	if msg == "" {
		msg = "not serving"
	}
	return lifecycle.HealthStatus{Ready: false, Message: msg}
}

// Stop drains in-flight calls, falling back to a hard stop when ctx ends first.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping gRPC server")
	s.healthSrv.SetServingStatus(constants.ServiceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("gRPC server stopped")
		return nil
	case <-ctx.Done():
		s.grpcServer.Stop()
		return ctx.Err()
	}
}

// SetServing flips the health status reported for the audit service.
func (s *Server) SetServing(serving bool) {
	st := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		st = grpc_health_v1.HealthCheckResponse_SERVING
	}
	s.healthSrv.SetServingStatus(constants.ServiceName, st)
}
