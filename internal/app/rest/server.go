package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spounge-ai/auditchain/pkg/patterns/lifecycle"
)

// SetupRoutes registers the operator endpoints. metricsPath may be empty to leave /metrics
// unrouted.
func SetupRoutes(router *mux.Router, h *Handler, metricsPath string) {
	router.HandleFunc("/healthz", h.Healthz).Methods(http.MethodGet)
	if metricsPath != "" {
		router.Handle(metricsPath, promhttp.Handler()).Methods(http.MethodGet)
	}

	api := router.PathPrefix("/v1/audit").Subrouter()
	api.HandleFunc("/export", h.Export).Methods(http.MethodGet)
}

// Server runs the HTTP router as a lifecycle.ManagedResource.
type Server struct {
	srv     *http.Server
	logger  *slog.Logger
	running atomic.Bool
	lastErr atomic.Value
}

func NewServer(port int, handler http.Handler, logger *slog.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Start binds the port and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return nil
	}
	lis, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		s.running.Store(false)
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.logger.Info("HTTP server listening", "address", lis.Addr().String())

	go func() {
		if err := s.srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.lastErr.Store(err.Error())
			s.logger.Error("HTTP server failed", "error", err)
		}
		s.running.Store(false)
	}()
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}
	return nil
}

func (s *Server) Health(context.Context) lifecycle.HealthStatus {
	if s.running.Load() {
		return lifecycle.HealthStatus{Ready: true}
	}
	msg, _ := s.lastErr.Load().(string)
	if msg == "" {
		msg = "not serving"
	}
	return lifecycle.HealthStatus{Ready: false, Message: msg}
}
