package authclient

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/gophauth/internal/common"

	pb "github.com/dmitrijs2005/gophauth/internal/proto"
)

type Client struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      pb.AuthServiceClient
	health      healthpb.HealthClient

	mu     sync.Mutex
	tokens pb.TokenPair

	// refreshMu lets one call at a time rotate the refresh token.
	refreshMu sync.Mutex
}

// New dials endpointURL without TLS. Extra dial options are appended.
func New(endpointURL string, opts ...grpc.DialOption) (*Client, error) {
	c := &Client{endpointURL: endpointURL}

	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(endpointURL, opts...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	c.client = pb.NewAuthServiceClient(conn)
	c.health = healthpb.NewHealthClient(conn)
	return c, nil
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.AccessTokenHeaderName)
	if token != "" {
		md.Set(common.AccessTokenHeaderName, token)
	}
	return metadata.NewOutgoingContext(ctx, md)
}

func (c *Client) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	tokens := c.Tokens()

	err := invoker(withAccessToken(ctx, tokens.AccessToken), method, req, reply, cc, opts...)
	if err == nil || method == pb.AuthService_Refresh_FullMethodName {
		return err
	}

	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Unauthenticated || st.Message() != common.ErrTokenExpired.Error() {
		return err
	}
	if tokens.RefreshToken == "" {
		return err
	}

	if rerr := c.refreshIfUnchanged(ctx, tokens); rerr != nil {
		return err
	}

	return invoker(withAccessToken(ctx, c.Tokens().AccessToken), method, req, reply, cc, opts...)
}

// Tokens returns the token pair currently held.
func (c *Client) Tokens() pb.TokenPair {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokens
}

// SetTokens replaces the held token pair, e.g. with one saved on disk.
func (c *Client) SetTokens(t pb.TokenPair) {
	c.mu.Lock()
	c.tokens = t
	c.mu.Unlock()
}

func (c *Client) Register(ctx context.Context, req pb.RegisterRequest) (*pb.User, error) {
	in, err := pb.ToStruct(req)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Register(ctx, in)
	if err != nil {
		return nil, mapError(err)
	}

	var user pb.User
	if err := pb.FromStruct(resp, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Login authenticates and keeps the returned pair.
func (c *Client) Login(ctx context.Context, email, password string) (*pb.TokenPair, error) {
	in, err := pb.ToStruct(pb.LoginRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Login(ctx, in)
	if err != nil {
		return nil, mapError(err)
	}
	return c.keep(resp)
}

// Refresh rotates the held refresh token.
func (c *Client) Refresh(ctx context.Context) (*pb.TokenPair, error) {
	token := c.Tokens().RefreshToken
	if token == "" {
		return nil, ErrNotLoggedIn
	}
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	return c.refresh(ctx, token)
}

// refreshIfUnchanged rotates seen unless another call already replaced it
// while this one waited.
func (c *Client) refreshIfUnchanged(ctx context.Context, seen pb.TokenPair) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	if c.Tokens().AccessToken != seen.AccessToken {
		return nil
	}
	_, err := c.refresh(ctx, seen.RefreshToken)
	return err
}

func (c *Client) refresh(ctx context.Context, token string) (*pb.TokenPair, error) {
	in, err := pb.ToStruct(pb.RefreshRequest{RefreshToken: token})
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Refresh(ctx, in)
	if err != nil {
		return nil, mapError(err)
	}
	return c.keep(resp)
}

// Logout revokes the held refresh token and forgets the pair.
func (c *Client) Logout(ctx context.Context) error {
	token := c.Tokens().RefreshToken
	if token == "" {
		return ErrNotLoggedIn
	}

	in, err := pb.ToStruct(pb.RefreshRequest{RefreshToken: token})
	if err != nil {
		return err
	}
	if _, err := c.client.Logout(ctx, in); err != nil {
		return mapError(err)
	}

	c.SetTokens(pb.TokenPair{})
	return nil
}

func (c *Client) Me(ctx context.Context) (*pb.User, error) {
	if c.Tokens().AccessToken == "" {
		return nil, ErrNotLoggedIn
	}

	resp, err := c.client.Me(ctx, nil)
	if err != nil {
		return nil, mapError(err)
	}

	var user pb.User
	if err := pb.FromStruct(resp, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Ping asks the server's health service about auth.v1.AuthService.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: pb.ServiceName})
	if err != nil {
		return mapError(err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return ErrUnavailable
	}
	return nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) keep(resp *structpb.Struct) (*pb.TokenPair, error) {
	var pair pb.TokenPair
	if err := pb.FromStruct(resp, &pair); err != nil {
		return nil, err
	}
	c.SetTokens(pair)
	return &pair, nil
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return ErrUnauthorized
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	case codes.AlreadyExists:
		return fmt.Errorf("%w: %s", ErrConflict, st.Message())
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", ErrInvalid, st.Message())
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
