package grpc

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/api"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ---- fakes ----

type fakeAuth struct {
	regReq  services.RegisterRequest
	regResp *services.RegisterResult
	regErr  error

	loginResp *services.LoginResult
	loginErr  error

	refreshResp *services.RefreshResult
	refreshErr  error

	revokeResp services.RevokeResult

	account    *services.AccountView
	accountErr error
	resolvedID string

	updatedID string
	deletedID string
	deleteErr error
	called    bool
}

func (f *fakeAuth) Register(_ context.Context, req services.RegisterRequest) (*services.RegisterResult, error) {
	f.called = true
	f.regReq = req
	return f.regResp, f.regErr
}

func (f *fakeAuth) Login(context.Context, string, string) (*services.LoginResult, error) {
	f.called = true
	return f.loginResp, f.loginErr
}

func (f *fakeAuth) RefreshAccessToken(context.Context, string) (*services.RefreshResult, error) {
	f.called = true
	return f.refreshResp, f.refreshErr
}

func (f *fakeAuth) RevokeRefreshToken(context.Context, string) services.RevokeResult {
	f.called = true
	return f.revokeResp
}

func (f *fakeAuth) GetAccountByID(context.Context, string) (*services.AccountView, error) {
	f.called = true
	return f.account, f.accountErr
}

func (f *fakeAuth) GetCurrentAccount(_ context.Context, resolve services.IdentityResolver) (*services.AccountView, error) {
	f.called = true
	id, ok := resolve()
	if !ok {
		return nil, common.ErrAccountNotFound
	}
	f.resolvedID = id
	return f.account, f.accountErr
}

func (f *fakeAuth) UpdateAccount(_ context.Context, id string, _ services.UpdateRequest) (*services.AccountView, error) {
	f.called = true
	f.updatedID = id
	return f.account, f.accountErr
}

func (f *fakeAuth) DeleteAccount(_ context.Context, id string) error {
	f.called = true
	f.deletedID = id
	return f.deleteErr
}

const (
	idAda = "2f1b8a40-6d2e-4c59-9a63-3f7c0b6a1d11"
	idBob = "7c9e6679-7425-40de-944b-e07fc1f90ae7"
)

func newHandlerServer(f *fakeAuth) *GRPCServer {
	return NewGRPCServer("", logging.Nop{}, f, &fakeParser{}, nil)
}

func asCaller(id string, roles ...string) context.Context {
	claims := &auth.AccessClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: id}, Roles: roles}
	return context.WithValue(context.Background(), claimsKey, claims)
}

func wantCode(t *testing.T, err error, code codes.Code) {
	t.Helper()
	if status.Code(err) != code {
		t.Fatalf("expected %v, got %v (%v)", code, status.Code(err), err)
	}
}

// ---- tests ----

func TestRegister_ValidatesInput(t *testing.T) {
	tests := []struct {
		name string
		req  api.RegisterRequest
	}{
		{"missing email", api.RegisterRequest{Password: "p", FirstName: "A", LastName: "B"}},
		{"bad email", api.RegisterRequest{Email: "nope", Password: "p", FirstName: "A", LastName: "B"}},
		{"missing password", api.RegisterRequest{Email: "a@b.io", FirstName: "A", LastName: "B"}},
		{"long password", api.RegisterRequest{Email: "a@b.io", Password: string(make([]byte, 73)), FirstName: "A", LastName: "B"}},
		{"missing first name", api.RegisterRequest{Email: "a@b.io", Password: "p", LastName: "B"}},
		{"missing last name", api.RegisterRequest{Email: "a@b.io", Password: "p", FirstName: "A"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeAuth{}
			_, err := newHandlerServer(f).Register(context.Background(), &tt.req)
			wantCode(t, err, codes.InvalidArgument)
			if f.called {
				t.Fatal("service must not be called for invalid input")
			}
		})
	}
}

func TestRegister_OK(t *testing.T) {
	exp := time.Now().Add(time.Minute)
	f := &fakeAuth{regResp: &services.RegisterResult{
		Account:     services.AccountView{ID: idAda, UserName: "ada lovelace", Roles: []string{"user"}},
		AccessToken: &auth.AccessToken{Token: "tok", ExpiresAt: exp},
	}}

	resp, err := newHandlerServer(f).Register(context.Background(), &api.RegisterRequest{
		Email: "ada@example.com", Password: "Pw1!", FirstName: "Ada", LastName: "Lovelace", Gender: "F",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.AccessToken != "tok" || !resp.AccessTokenExpiresAt.Equal(exp) {
		t.Fatalf("unexpected token in response: %+v", resp)
	}
	if resp.User.ID != idAda || resp.User.UserName != "ada lovelace" {
		t.Fatalf("unexpected user: %+v", resp.User)
	}
	if f.regReq.Gender != "F" || f.regReq.Email != "ada@example.com" {
		t.Fatalf("request not passed through: %+v", f.regReq)
	}
}

func TestHandlers_MapServiceErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code codes.Code
		msg  string
	}{
		{"duplicate", common.ErrDuplicateAccount, codes.AlreadyExists, "email already exists"},
		{"credentials", common.ErrInvalidCredentials, codes.Unauthenticated, "invalid email or password"},
		{"not found", common.ErrAccountNotFound, codes.NotFound, "user not found"},
		{"persistence", fmt.Errorf("%w: boom", common.ErrPersistence), codes.Internal, "internal error"},
		{"unknown", errors.New("boom"), codes.Internal, "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeAuth{loginErr: tt.err}
			_, err := newHandlerServer(f).Login(context.Background(), &api.LoginRequest{Email: "a@b.io", Password: "p"})
			wantCode(t, err, tt.code)
			if got := status.Convert(err).Message(); got != tt.msg {
				t.Fatalf("expected message %q, got %q", tt.msg, got)
			}
		})
	}
}

func TestRefreshToken_Errors(t *testing.T) {
	s := newHandlerServer(&fakeAuth{refreshErr: common.ErrRefreshTokenExpired})

	_, err := s.RefreshToken(context.Background(), &api.RefreshTokenRequest{})
	wantCode(t, err, codes.InvalidArgument)

	_, err = s.RefreshToken(context.Background(), &api.RefreshTokenRequest{RefreshToken: "abc"})
	wantCode(t, err, codes.Unauthenticated)
	if status.Convert(err).Message() != "refresh token expired" {
		t.Fatalf("unexpected message: %q", status.Convert(err).Message())
	}
}

func TestRevokeRefreshToken_AlwaysOK(t *testing.T) {
	f := &fakeAuth{revokeResp: services.RevokeResult{Success: false, Message: services.MsgRevokeInvalid}}

	resp, err := newHandlerServer(f).RevokeRefreshToken(context.Background(), &api.RevokeRefreshTokenRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Success || resp.Message != services.MsgRevokeInvalid {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestGetCurrentUser_ResolvesCallerFromClaims(t *testing.T) {
	f := &fakeAuth{account: &services.AccountView{ID: idAda}}

	resp, err := newHandlerServer(f).GetCurrentUser(asCaller(idAda), &api.GetCurrentUserRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.resolvedID != idAda || resp.User.ID != idAda {
		t.Fatalf("caller not resolved: %q %+v", f.resolvedID, resp.User)
	}

	_, err = newHandlerServer(&fakeAuth{}).GetCurrentUser(context.Background(), &api.GetCurrentUserRequest{})
	wantCode(t, err, codes.NotFound)
}

func TestGetUser_RejectsMalformedID(t *testing.T) {
	f := &fakeAuth{}
	_, err := newHandlerServer(f).GetUser(asCaller(idAda), &api.GetUserRequest{ID: "not-a-uuid"})
	wantCode(t, err, codes.InvalidArgument)
	if f.called {
		t.Fatal("service must not be called for invalid id")
	}
}

func TestUpdateUser_Authorization(t *testing.T) {
	req := &api.UpdateUserRequest{ID: idAda, Email: "ada@example.com", FirstName: "Ada", LastName: "King"}

	f := &fakeAuth{account: &services.AccountView{ID: idAda}}
	_, err := newHandlerServer(f).UpdateUser(asCaller(idBob, "user"), req)
	wantCode(t, err, codes.PermissionDenied)
	if f.called {
		t.Fatal("service must not be called for a foreign account")
	}

	if _, err := newHandlerServer(f).UpdateUser(asCaller(idAda, "user"), req); err != nil {
		t.Fatalf("owner update failed: %v", err)
	}
	if f.updatedID != idAda {
		t.Fatalf("unexpected id: %q", f.updatedID)
	}

	f = &fakeAuth{account: &services.AccountView{ID: idAda}}
	if _, err := newHandlerServer(f).UpdateUser(asCaller(idBob, "user", AdminRole), req); err != nil {
		t.Fatalf("admin update failed: %v", err)
	}
}

func TestDeleteUser(t *testing.T) {
	f := &fakeAuth{}
	if _, err := newHandlerServer(f).DeleteUser(asCaller(idAda), &api.DeleteUserRequest{ID: idAda}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.deletedID != idAda {
		t.Fatalf("unexpected id: %q", f.deletedID)
	}

	_, err := newHandlerServer(&fakeAuth{}).DeleteUser(context.Background(), &api.DeleteUserRequest{ID: idAda})
	wantCode(t, err, codes.Unauthenticated)

	_, err = newHandlerServer(&fakeAuth{deleteErr: common.ErrAccountNotFound}).DeleteUser(asCaller(idAda), &api.DeleteUserRequest{ID: idAda})
	wantCode(t, err, codes.NotFound)
}
