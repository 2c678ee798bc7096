// Package client is the gRPC client of the gophauth service. It keeps the
// session tokens, attaches the access token to every call and renews it
// with the refresh token when the server reports it expired.
package client

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/api"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// Session describes the tokens held after a successful login.
type Session struct {
	User                  *api.User
	AccessTokenExpiresAt  time.Time
	RefreshTokenExpiresAt time.Time
}

type GRPCClient struct {
	conn   *grpc.ClientConn
	client *api.AuthServiceClient

	mu           sync.Mutex
	accessToken  string
	refreshToken string
}

// NewGRPCClient connects to endpoint. Extra dial options are appended after
// the defaults, so tests can swap the dialer.
func NewGRPCClient(endpoint string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(endpoint, dialOpts...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	c.client = api.NewAuthServiceClient(conn)
	return c, nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)
	return metadata.NewOutgoingContext(ctx, md)
}

func (c *GRPCClient) tokens() (access, refresh string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken, c.refreshToken
}

func (c *GRPCClient) setTokens(access, refresh string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken, c.refreshToken = access, refresh
}

func (c *GRPCClient) setAccessToken(access string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = access
}

// accessTokenInterceptor attaches the access token and, when the server
// answers "token expired", refreshes once and retries the call.
func (c *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	access, refresh := c.tokens()
	if access != "" {
		ctx = withAccessToken(ctx, access)
	}

	err := invoker(ctx, method, req, reply, cc, opts...)
	if err == nil || method == api.MethodRefreshToken || refresh == "" {
		return err
	}

	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Unauthenticated || st.Message() != common.ErrTokenExpired.Error() {
		return err
	}

	resp, rerr := c.client.RefreshToken(ctx, &api.RefreshTokenRequest{RefreshToken: refresh})
	if rerr != nil {
		return err
	}
	c.setAccessToken(resp.AccessToken)

	return invoker(withAccessToken(ctx, resp.AccessToken), method, req, reply, cc, opts...)
}

// LoggedIn reports whether the client holds an access token.
func (c *GRPCClient) LoggedIn() bool {
	access, _ := c.tokens()
	return access != ""
}

// Register creates an account. The returned access token is kept, but no
// refresh token is issued until Login.
func (c *GRPCClient) Register(ctx context.Context, req *api.RegisterRequest) (*api.User, error) {
	resp, err := c.client.Register(ctx, req)
	if err != nil {
		return nil, mapError(err)
	}
	c.setTokens(resp.AccessToken, "")
	return resp.User, nil
}

func (c *GRPCClient) Login(ctx context.Context, email, password string) (*Session, error) {
	resp, err := c.client.Login(ctx, &api.LoginRequest{Email: email, Password: password})
	if err != nil {
		return nil, mapError(err)
	}
	c.setTokens(resp.AccessToken, resp.RefreshToken)
	return &Session{
		User:                  resp.User,
		AccessTokenExpiresAt:  resp.AccessTokenExpiresAt,
		RefreshTokenExpiresAt: resp.RefreshTokenExpiresAt,
	}, nil
}

// Refresh exchanges the refresh token for a new access token.
func (c *GRPCClient) Refresh(ctx context.Context) (time.Time, error) {
	_, refresh := c.tokens()
	if refresh == "" {
		return time.Time{}, ErrNotLoggedIn
	}
	resp, err := c.client.RefreshToken(ctx, &api.RefreshTokenRequest{RefreshToken: refresh})
	if err != nil {
		return time.Time{}, mapError(err)
	}
	c.setAccessToken(resp.AccessToken)
	return resp.AccessTokenExpiresAt, nil
}

func (c *GRPCClient) WhoAmI(ctx context.Context) (*api.User, error) {
	resp, err := c.client.GetCurrentUser(ctx, &api.GetCurrentUserRequest{})
	if err != nil {
		return nil, mapError(err)
	}
	return resp.User, nil
}

// Logout revokes the refresh token and forgets both tokens. The server's
// message is returned even when the token was already gone.
func (c *GRPCClient) Logout(ctx context.Context) (string, error) {
	_, refresh := c.tokens()
	if refresh == "" {
		c.setTokens("", "")
		return "", ErrNotLoggedIn
	}
	resp, err := c.client.RevokeRefreshToken(ctx, &api.RevokeRefreshTokenRequest{RefreshToken: refresh})
	if err != nil {
		return "", mapError(err)
	}
	c.setTokens("", "")
	return resp.Message, nil
}

func (c *GRPCClient) Ping(ctx context.Context) error {
	_, err := c.client.Ping(ctx, &api.PingRequest{})
	return mapError(err)
}
