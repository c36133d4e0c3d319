// Package server provides HTTP and gRPC server lifecycle management.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/solatis/logview/internal/core/api"
	"github.com/solatis/logview/internal/core/auth"
	"github.com/solatis/logview/internal/core/config"
)

// ShutdownTimeout bounds graceful shutdown before connections are dropped.
const ShutdownTimeout = 30 * time.Second

// GRPCServer manages gRPC server lifecycle.
type GRPCServer struct {
	server *grpc.Server
	health *health.Server
	addr   string
}

// NewGRPCServer creates gRPC server with service registration. A nil
// authenticator disables API key checks.
func NewGRPCServer(cfg config.WebConfig, service api.QueryServer, authenticator *auth.Authenticator) (*GRPCServer, error) {
	if service == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}

	var opts []grpc.ServerOption
	if authenticator != nil {
		opts = append(opts,
			grpc.ChainUnaryInterceptor(authenticator.UnaryInterceptor()),
			grpc.ChainStreamInterceptor(authenticator.StreamInterceptor()),
		)
	}

	server := grpc.NewServer(opts...)
	api.RegisterQueryServer(server, service)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(api.QueryServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	return &GRPCServer{
		server: server,
		health: healthServer,
		addr:   fmt.Sprintf("%s:%d", cfg.Host, cfg.GRPCPort),
	}, nil
}

// Addr returns the configured listen address.
func (s *GRPCServer) Addr() string {
	return s.addr
}

// Start binds the configured address and serves until Shutdown.
func (s *GRPCServer) Start(ctx context.Context) error {
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", s.addr, err)
	}
	return s.Serve(listener)
}

// Serve serves gRPC requests on listener until Shutdown.
func (s *GRPCServer) Serve(listener net.Listener) error {
	err := s.server.Serve(listener)
	if errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return err
}

// Shutdown marks the server NOT_SERVING and stops it gracefully, forcing a
// stop when ctx ends or ShutdownTimeout passes.
func (s *GRPCServer) Shutdown(ctx context.Context) error {
	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		s.server.Stop()
		return fmt.Errorf("shutdown cancelled by context: %w", ctx.Err())
	case <-time.After(ShutdownTimeout):
		s.server.Stop()
		return fmt.Errorf("graceful shutdown timeout, forced stop")
	}
}
