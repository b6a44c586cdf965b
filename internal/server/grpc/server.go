// Package grpc exposes remote collections over the gRPC gateway contract
// defined in internal/proto.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/clubsync/internal/entity"
	"github.com/dmitrijs2005/clubsync/internal/logging"
	pb "github.com/dmitrijs2005/clubsync/internal/proto"
	"github.com/dmitrijs2005/clubsync/internal/remote"
	"google.golang.org/grpc"
)

type GRPCServer struct {
	address   string
	backend   remote.Backend
	registry  *entity.Registry
	logger    logging.Logger
	jwtSecret []byte
}

var _ pb.CollectionsServer = (*GRPCServer)(nil)

// NewGRPCServer serves the collections of registry from backend. An empty
// secretKey disables token checks.
func NewGRPCServer(a string, l logging.Logger, backend remote.Backend, registry *entity.Registry, secretKey string) *GRPCServer {
	return &GRPCServer{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		backend:   backend,
		registry:  registry,
		jwtSecret: []byte(secretKey),
	}
}

// NewServer returns a grpc.Server with the gateway registered.
func (s *GRPCServer) NewServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor))
	pb.RegisterCollectionsServer(srv, s)
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

// Serve accepts connections on lis until ctx is done.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.NewServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}
