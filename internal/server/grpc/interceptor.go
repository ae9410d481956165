package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/gophauth/internal/common"

	pb "github.com/dmitrijs2005/gophauth/internal/proto"
)

type ctxKey string

const userIDKey ctxKey = "userID"

// authenticated lists the methods that need an access token.
var authenticated = map[string]bool{
	pb.AuthService_Me_FullMethodName: true,
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if !authenticated[info.FullMethod] {
		return handler(ctx, req)
	}

	var accessToken string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		values := md.Get(common.AccessTokenHeaderName)
		if len(values) > 0 {
			accessToken = values[0]
		}
	}
	if len(accessToken) == 0 {
		return nil, status.Error(codes.Unauthenticated, common.PublicAuthFailureMessage)
	}

	userID, err := s.users.Authenticate(ctx, accessToken)
	if err != nil {
		// clients refresh on this exact message
		if errors.Is(err, common.ErrTokenExpired) {
			return nil, status.Error(codes.Unauthenticated, common.ErrTokenExpired.Error())
		}
		return nil, status.Error(codes.Unauthenticated, common.PublicAuthFailureMessage)
	}

	return handler(context.WithValue(ctx, userIDKey, userID), req)
}

func userIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}
