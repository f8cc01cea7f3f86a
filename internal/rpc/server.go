package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/JonMunkholm/userimport/internal/core"
	"github.com/JonMunkholm/userimport/internal/metrics"
	"github.com/JonMunkholm/userimport/internal/store"
)

// Server implements UserServiceServer on top of an in-memory store.
// Uploaded files are re-parsed with the core parser, so the service applies
// the same structural and field rules as the importer.
type Server struct {
	store     *store.Memory
	newFileID func() string
}

// NewServer creates a user service backed by s.
func NewServer(s *store.Memory) *Server {
	return &Server{
		store:     s,
		newFileID: func() string { return uuid.NewString() },
	}
}

// NewGRPCServer builds a grpc.Server with tracing, request logging and the
// user service registered.
func NewGRPCServer(srv UserServiceServer, logger *slog.Logger, opts ...grpc.ServerOption) *grpc.Server {
	base := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(LoggingUnary(logger)),
	}
	s := grpc.NewServer(append(base, opts...)...)
	RegisterUserServiceServer(s, srv)
	return s
}

func (s *Server) ValidateUserData(ctx context.Context, in *ValidateUserDataRequest) (*ValidateUserDataResponse, error) {
	users, err := core.ParseUsers(string(in.GetFileContent()))
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	result := s.store.Validate(users)
	return &ValidateUserDataResponse{
		IsValid:   result.Clean(),
		Errors:    validationErrors(result.Failed),
		Message:   summarize(result),
		TotalRows: int32(result.TotalProcessed),
	}, nil
}

func (s *Server) UploadUserData(ctx context.Context, in *UploadUserDataRequest) (*UploadUserDataResponse, error) {
	users, err := core.ParseUsers(string(in.GetFileContent()))
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	result := s.store.Commit(users)
	if !result.Clean() {
		return nil, status.Error(codes.InvalidArgument, summarize(result))
	}

	committed := make([]User, len(result.Successful))
	for i, u := range result.Successful {
		committed[i] = FromCore(u)
	}

	return &UploadUserDataResponse{
		FileID:    s.newFileID(),
		Message:   fmt.Sprintf("Imported %d users from %s", len(committed), in.GetOriginalFileName()),
		Users:     committed,
		TotalRows: int32(result.TotalProcessed),
	}, nil
}

func (s *Server) GetUserById(ctx context.Context, in *GetUserByIdRequest) (*GetUserResponse, error) {
	if in.GetID() == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	u, err := s.store.GetByID(in.GetID())
	return userResponse(u, err)
}

func (s *Server) GetUserByEmail(ctx context.Context, in *GetUserByEmailRequest) (*GetUserResponse, error) {
	if in.GetEmail() == "" {
		return nil, status.Error(codes.InvalidArgument, "email is required")
	}
	u, err := s.store.GetByEmail(in.GetEmail())
	return userResponse(u, err)
}

func (s *Server) GetAllUsers(ctx context.Context, _ *GetAllUsersRequest) (*GetAllUsersResponse, error) {
	all := s.store.All()
	users := make([]User, len(all))
	for i, u := range all {
		users[i] = FromCore(u)
	}
	return &GetAllUsersResponse{Users: users}, nil
}

func userResponse(u core.User, err error) (*GetUserResponse, error) {
	if errors.Is(err, store.ErrNotFound) {
		return nil, status.Error(codes.NotFound, "user not found")
	}
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	w := FromCore(u)
	return &GetUserResponse{User: &w}, nil
}

func summarize(result core.ImportResult) string {
	if result.Clean() {
		return fmt.Sprintf("All %d records are valid", result.TotalProcessed)
	}
	return fmt.Sprintf("%d of %d records failed validation", len(result.Failed), result.TotalProcessed)
}

// LoggingUnary returns a unary server interceptor that logs every RPC with its
// status code and duration and counts it in the RPC metrics.
func LoggingUnary(logger *slog.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)

		metrics.ObserveRPC(info.FullMethod, code.String())

		level := slog.LevelInfo
		if code != codes.OK && code != codes.NotFound && code != codes.InvalidArgument {
			level = slog.LevelError
		}
		logger.Log(ctx, level, "rpc handled",
			slog.String("method", info.FullMethod),
			slog.String("code", code.String()),
			slog.Duration("duration", time.Since(start)),
		)
		return resp, err
	}
}
