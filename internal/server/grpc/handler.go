package grpc

import (
	"context"
	"slices"

	"github.com/dmitrijs2005/gophauth/internal/api"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AdminRole may read, update and delete any account.
const AdminRole = "admin"

func (s *GRPCServer) Register(ctx context.Context, req *api.RegisterRequest) (*api.RegisterResponse, error) {
	if err := validateRegister(req); err != nil {
		return nil, err
	}

	res, err := s.auth.Register(ctx, services.RegisterRequest{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Gender:    req.Gender,
	})
	if err != nil {
		return nil, s.fail(ctx, "register", err)
	}

	return &api.RegisterResponse{
		User:                 toUser(&res.Account),
		AccessToken:          res.AccessToken.Token,
		AccessTokenExpiresAt: res.AccessToken.ExpiresAt,
	}, nil
}

func (s *GRPCServer) Login(ctx context.Context, req *api.LoginRequest) (*api.LoginResponse, error) {
	if err := validateLogin(req); err != nil {
		return nil, err
	}

	res, err := s.auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		return nil, s.fail(ctx, "login", err)
	}

	return &api.LoginResponse{
		AccessToken:           res.AccessToken.Token,
		AccessTokenExpiresAt:  res.AccessToken.ExpiresAt,
		RefreshToken:          res.RefreshToken,
		RefreshTokenExpiresAt: res.RefreshTokenExpiresAt,
		User:                  toUser(&res.Account),
	}, nil
}

func (s *GRPCServer) RefreshToken(ctx context.Context, req *api.RefreshTokenRequest) (*api.RefreshTokenResponse, error) {
	if err := validateRefreshToken(&req.RefreshToken); err != nil {
		return nil, err
	}

	res, err := s.auth.RefreshAccessToken(ctx, req.RefreshToken)
	if err != nil {
		return nil, s.fail(ctx, "refresh", err)
	}

	return &api.RefreshTokenResponse{
		AccessToken:          res.AccessToken.Token,
		AccessTokenExpiresAt: res.AccessToken.ExpiresAt,
		User:                 toUser(&res.Account),
	}, nil
}

// RevokeRefreshToken always answers OK; the outcome is in the response.
func (s *GRPCServer) RevokeRefreshToken(ctx context.Context, req *api.RevokeRefreshTokenRequest) (*api.RevokeRefreshTokenResponse, error) {
	res := s.auth.RevokeRefreshToken(ctx, req.RefreshToken)
	return &api.RevokeRefreshTokenResponse{Success: res.Success, Message: res.Message}, nil
}

func (s *GRPCServer) GetUser(ctx context.Context, req *api.GetUserRequest) (*api.GetUserResponse, error) {
	if err := validateID(&req.ID); err != nil {
		return nil, err
	}

	view, err := s.auth.GetAccountByID(ctx, req.ID)
	if err != nil {
		return nil, s.fail(ctx, "get user", err)
	}
	return &api.GetUserResponse{User: toUser(view)}, nil
}

func (s *GRPCServer) GetCurrentUser(ctx context.Context, _ *api.GetCurrentUserRequest) (*api.GetCurrentUserResponse, error) {
	view, err := s.auth.GetCurrentAccount(ctx, func() (string, bool) { return UserIDFromContext(ctx) })
	if err != nil {
		return nil, s.fail(ctx, "get current user", err)
	}
	return &api.GetCurrentUserResponse{User: toUser(view)}, nil
}

func (s *GRPCServer) UpdateUser(ctx context.Context, req *api.UpdateUserRequest) (*api.UpdateUserResponse, error) {
	if err := validateUpdate(req); err != nil {
		return nil, err
	}
	if err := authorizeAccount(ctx, req.ID); err != nil {
		return nil, err
	}

	view, err := s.auth.UpdateAccount(ctx, req.ID, services.UpdateRequest{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Gender:    req.Gender,
	})
	if err != nil {
		return nil, s.fail(ctx, "update user", err)
	}
	return &api.UpdateUserResponse{User: toUser(view)}, nil
}

func (s *GRPCServer) DeleteUser(ctx context.Context, req *api.DeleteUserRequest) (*api.DeleteUserResponse, error) {
	if err := validateID(&req.ID); err != nil {
		return nil, err
	}
	if err := authorizeAccount(ctx, req.ID); err != nil {
		return nil, err
	}

	if err := s.auth.DeleteAccount(ctx, req.ID); err != nil {
		return nil, s.fail(ctx, "delete user", err)
	}
	return &api.DeleteUserResponse{}, nil
}

func (s *GRPCServer) Ping(ctx context.Context, req *api.PingRequest) (*api.PingResponse, error) {
	return &api.PingResponse{Status: "OK"}, nil
}

// authorizeAccount lets callers modify only their own account unless they
// hold AdminRole.
func authorizeAccount(ctx context.Context, id string) error {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, "missing token")
	}
	if claims.Subject == id || slices.Contains(claims.Roles, AdminRole) {
		return nil
	}
	return status.Error(codes.PermissionDenied, "not allowed to modify this account")
}

func (s *GRPCServer) fail(ctx context.Context, op string, err error) error {
	st := toStatus(err)
	if status.Code(st) == codes.Internal {
		s.logger.Error(ctx, op+" failed", "error", err)
	} else {
		s.logger.Debug(ctx, op+" rejected", "error", err)
	}
	return st
}

func toUser(v *services.AccountView) *api.User {
	if v == nil {
		return nil
	}
	return &api.User{
		ID:        v.ID,
		UserName:  v.UserName,
		Email:     v.Email,
		FirstName: v.FirstName,
		LastName:  v.LastName,
		Gender:    v.Gender,
		Roles:     v.Roles,
		CreatedAt: v.CreatedAt,
	}
}
