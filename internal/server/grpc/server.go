// Package grpc exposes the gRPC endpoint: health checking, server
// reflection and access token authentication for every other method.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/taskcamp/internal/logging"
	"github.com/dmitrijs2005/taskcamp/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

type GRPCServer struct {
	address string
	issuer  *auth.TokenIssuer
	logger  logging.Logger
	health  *health.Server
}

func NewGRPCServer(a string, l logging.Logger, issuer *auth.TokenIssuer) *GRPCServer {
	return &GRPCServer{
		address: a,
		logger:  l.With("module", "grpc_server"),
		issuer:  issuer,
		health:  health.NewServer(),
	}
}

// newServer builds the grpc.Server with all services registered.
func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.accessTokenInterceptor))
	healthpb.RegisterHealthServer(srv, s.health)
	reflection.Register(srv)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is cancelled.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}
