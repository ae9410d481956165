package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/services"

	pb "github.com/dmitrijs2005/gophauth/internal/proto"
)

func (s *GRPCServer) Register(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in pb.RegisterRequest
	if err := pb.FromStruct(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, "malformed request")
	}

	user, err := s.users.Register(ctx, services.RegisterInput{
		Email:    in.Email,
		Password: in.Password,
		Username: in.Username,
		FullName: in.FullName,
	})
	if err != nil {
		return nil, toStatus(err)
	}

	return s.reply(ctx, user)
}

func (s *GRPCServer) Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in pb.LoginRequest
	if err := pb.FromStruct(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, "malformed request")
	}

	tokens, err := s.users.Login(ctx, in.Email, in.Password)
	if err != nil {
		return nil, toStatus(err)
	}

	return s.reply(ctx, tokens)
}

func (s *GRPCServer) Refresh(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in pb.RefreshRequest
	if err := pb.FromStruct(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, "malformed request")
	}

	tokens, err := s.users.Refresh(ctx, in.RefreshToken)
	if err != nil {
		return nil, toStatus(err)
	}

	return s.reply(ctx, tokens)
}

func (s *GRPCServer) Logout(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in pb.RefreshRequest
	if err := pb.FromStruct(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, "malformed request")
	}

	if err := s.users.Logout(ctx, in.RefreshToken); err != nil {
		return nil, toStatus(err)
	}

	return &structpb.Struct{}, nil
}

func (s *GRPCServer) Me(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	userID, ok := userIDFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, common.PublicAuthFailureMessage)
	}

	user, err := s.users.Me(ctx, userID)
	if err != nil {
		return nil, toStatus(err)
	}

	return s.reply(ctx, user)
}

func (s *GRPCServer) reply(ctx context.Context, v any) (*structpb.Struct, error) {
	out, err := pb.ToStruct(v)
	if err != nil {
		s.logger.Error(ctx, "encode response", "error", err)
		return nil, status.Error(codes.Internal, "internal error")
	}
	return out, nil
}

// toStatus maps a service error onto a gRPC status. Internal details never
// reach the caller.
func toStatus(err error) error {
	switch {
	case errors.Is(err, common.ErrEmailTaken):
		return status.Error(codes.AlreadyExists, "email already registered")
	case errors.Is(err, common.ErrUsernameTaken):
		return status.Error(codes.AlreadyExists, "username already taken")
	case errors.Is(err, common.ErrorConflict):
		return status.Error(codes.AlreadyExists, "already exists")
	case errors.Is(err, common.ErrorUnauthorized):
		return status.Error(codes.Unauthenticated, common.PublicAuthFailureMessage)
	case errors.Is(err, common.ErrorValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrorUnavailable):
		return status.Error(codes.Unavailable, "service unavailable")
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
