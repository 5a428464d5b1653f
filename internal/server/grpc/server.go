// Package grpc exposes the registry façade as the userledger.v1.Registry
// gRPC service.
package grpc

import (
	"context"
	"errors"
	"net"

	"github.com/dmitrijs2005/userledger/internal/api"
	"github.com/dmitrijs2005/userledger/internal/logging"
	"github.com/dmitrijs2005/userledger/internal/models"
	"github.com/dmitrijs2005/userledger/internal/server/services"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	_ "github.com/dmitrijs2005/userledger/internal/grpcjson"
)

// Registry is the façade the server delegates to.
type Registry interface {
	Register(ctx context.Context, sender string, profile models.Profile) (*services.Response, error)
	SessionStart(ctx context.Context, sender, seed string) (*services.Response, error)
	SessionEnd(ctx context.Context, sender, seed string) (*services.Response, error)
	SessionRefresh(ctx context.Context, sender, oldSeed, newSeed string) (*services.Response, error)
	SetSessionTimeout(ctx context.Context, sender string, userID, seconds uint64) (*services.Response, error)
	Migrate(ctx context.Context, sender string) (*services.Response, error)

	Select(ctx context.Context, fields []string, wallet *string) (*services.SelectResponse, error)
	Session(ctx context.Context, address, seed string) (*models.Session, error)
	User(ctx context.Context, target services.UserTarget) (*models.User, error)
}

type GRPCServer struct {
	address   string
	registry  Registry
	logger    logging.Logger
	jwtSecret []byte
}

func NewGRPCServer(a string, l logging.Logger, r Registry, secretKey string) *GRPCServer {
	return &GRPCServer{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		registry:  r,
		jwtSecret: []byte(secretKey),
	}
}

func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is done.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.requestInterceptor, s.accessTokenInterceptor))
	srv.RegisterService(&serviceDesc, s)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	hs.SetServingStatus(api.ServiceName, healthpb.HealthCheckResponse_SERVING)

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "Stopping gRPC server...")
			hs.Shutdown()
			srv.GracefulStop()
		case <-done:
		}
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	err := srv.Serve(lis)
	close(done)
	<-stopped
	if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}
