// Package grpc serves auth.v1.AuthService over gRPC.
package grpc

import (
	"context"
	"errors"
	"net"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/services"

	pb "github.com/dmitrijs2005/gophauth/internal/proto"
)

// AuthService is the part of services.UserService the transport calls.
type AuthService interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.PublicUser, error)
	Login(ctx context.Context, email, password string) (*services.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	Authenticate(ctx context.Context, accessToken string) (string, error)
	Me(ctx context.Context, userID string) (*models.PublicUser, error)
}

type GRPCServer struct {
	address string
	users   AuthService
	logger  logging.Logger
	health  *health.Server
}

func NewGRPCServer(a string, l logging.Logger, us AuthService) *GRPCServer {
	if l == nil {
		l = logging.NopLogger{}
	}
	return &GRPCServer{
		address: a,
		logger:  l.With("module", "grpc_server"),
		users:   us,
		health:  health.NewServer(),
	}
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(s.accessTokenInterceptor),
	)

	pb.RegisterAuthServiceServer(srv, s)
	healthpb.RegisterHealthServer(srv, s.health)
	s.health.SetServingStatus(pb.ServiceName, healthpb.HealthCheckResponse_SERVING)

	return srv
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve serves on lis until ctx is done, then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}
