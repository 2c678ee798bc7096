// Package grpc exposes AuthService over gRPC: request validation, access
// token verification for protected methods and domain error mapping.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/gophauth/internal/api"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"google.golang.org/grpc"
)

// authService is the part of services.AuthService the handlers use.
type authService interface {
	Register(ctx context.Context, req services.RegisterRequest) (*services.RegisterResult, error)
	Login(ctx context.Context, email, password string) (*services.LoginResult, error)
	RefreshAccessToken(ctx context.Context, secret string) (*services.RefreshResult, error)
	RevokeRefreshToken(ctx context.Context, secret string) services.RevokeResult
	GetAccountByID(ctx context.Context, id string) (*services.AccountView, error)
	GetCurrentAccount(ctx context.Context, resolve services.IdentityResolver) (*services.AccountView, error)
	UpdateAccount(ctx context.Context, id string, req services.UpdateRequest) (*services.AccountView, error)
	DeleteAccount(ctx context.Context, id string) error
}

// tokenParser verifies access tokens presented in request metadata.
type tokenParser interface {
	Parse(token string) (*auth.AccessClaims, error)
}

type GRPCServer struct {
	address string
	auth    authService
	tokens  tokenParser
	metrics *metrics.Metrics
	logger  logging.Logger
}

// NewGRPCServer builds the server. m may be nil to disable metrics.
func NewGRPCServer(a string, l logging.Logger, svc authService, tokens tokenParser, m *metrics.Metrics) *GRPCServer {
	return &GRPCServer{
		address: a,
		logger:  l.With("module", "grpc_server"),
		auth:    svc,
		tokens:  tokens,
		metrics: m,
	}
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve serves on lis until ctx is cancelled, then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

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

func (s *GRPCServer) newServer() *grpc.Server {
	var chain []grpc.UnaryServerInterceptor
	if s.metrics != nil {
		chain = append(chain, s.metrics.UnaryServerInterceptor())
	}
	chain = append(chain, s.accessTokenInterceptor)

	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(chain...))
	api.RegisterAuthServiceServer(srv, s)
	return srv
}
