// Package proto holds the wire contract of auth.v1.AuthService.
//
// Requests and responses travel as google.protobuf.Struct values. The Go
// types below describe their fields; ToStruct and FromStruct convert
// between the two through their JSON form.
package proto

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "auth.v1.AuthService"

const (
	AuthService_Register_FullMethodName = "/auth.v1.AuthService/Register"
	AuthService_Login_FullMethodName    = "/auth.v1.AuthService/Login"
	AuthService_Refresh_FullMethodName  = "/auth.v1.AuthService/Refresh"
	AuthService_Logout_FullMethodName   = "/auth.v1.AuthService/Logout"
	AuthService_Me_FullMethodName       = "/auth.v1.AuthService/Me"
)

type RegisterRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Username *string `json:"username,omitempty"`
	FullName *string `json:"full_name,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest is used by both Refresh and Logout.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type User struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Username   *string   `json:"username,omitempty"`
	FullName   *string   `json:"full_name,omitempty"`
	AvatarURL  *string   `json:"avatar_url,omitempty"`
	Role       string    `json:"role"`
	IsActive   bool      `json:"is_active"`
	IsVerified bool      `json:"is_verified"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ToStruct encodes v, which must marshal to a JSON object.
func ToStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	s := &structpb.Struct{}
	if err := s.UnmarshalJSON(b); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return s, nil
}

// FromStruct decodes s into v. A nil s leaves v untouched.
func FromStruct(s *structpb.Struct, v any) error {
	if s == nil {
		return nil
	}
	b, err := s.MarshalJSON()
	if err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	return nil
}

// AuthServiceServer is the server API for auth.v1.AuthService.
type AuthServiceServer interface {
	Register(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Refresh(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Logout(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Me(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func RegisterAuthServiceServer(s grpc.ServiceRegistrar, srv AuthServiceServer) {
	s.RegisterService(&AuthService_ServiceDesc, srv)
}

type unaryMethod func(AuthServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryMethod) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AuthServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AuthServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var AuthService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuthServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Register", Handler: unaryHandler(AuthService_Register_FullMethodName, AuthServiceServer.Register)},
		{MethodName: "Login", Handler: unaryHandler(AuthService_Login_FullMethodName, AuthServiceServer.Login)},
		{MethodName: "Refresh", Handler: unaryHandler(AuthService_Refresh_FullMethodName, AuthServiceServer.Refresh)},
		{MethodName: "Logout", Handler: unaryHandler(AuthService_Logout_FullMethodName, AuthServiceServer.Logout)},
		{MethodName: "Me", Handler: unaryHandler(AuthService_Me_FullMethodName, AuthServiceServer.Me)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "auth/v1/auth.proto",
}

// AuthServiceClient is the client API for auth.v1.AuthService.
type AuthServiceClient interface {
	Register(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Login(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Refresh(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Logout(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Me(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type authServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewAuthServiceClient(cc grpc.ClientConnInterface) AuthServiceClient {
	return &authServiceClient{cc}
}

func (c *authServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts []grpc.CallOption) (*structpb.Struct, error) {
	if in == nil {
		in = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *authServiceClient) Register(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, AuthService_Register_FullMethodName, in, opts)
}

func (c *authServiceClient) Login(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, AuthService_Login_FullMethodName, in, opts)
}

func (c *authServiceClient) Refresh(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, AuthService_Refresh_FullMethodName, in, opts)
}

func (c *authServiceClient) Logout(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, AuthService_Logout_FullMethodName, in, opts)
}

func (c *authServiceClient) Me(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, AuthService_Me_FullMethodName, in, opts)
}
