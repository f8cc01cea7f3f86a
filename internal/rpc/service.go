package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified service name.
const ServiceName = "userimport.v1.UserService"

// Full method names.
const (
	ValidateUserDataMethod = "/" + ServiceName + "/ValidateUserData"
	UploadUserDataMethod   = "/" + ServiceName + "/UploadUserData"
	GetUserByIdMethod      = "/" + ServiceName + "/GetUserById"
	GetUserByEmailMethod   = "/" + ServiceName + "/GetUserByEmail"
	GetAllUsersMethod      = "/" + ServiceName + "/GetAllUsers"
)

// UserServiceServer is the server API for the user service.
type UserServiceServer interface {
	ValidateUserData(context.Context, *ValidateUserDataRequest) (*ValidateUserDataResponse, error)
	UploadUserData(context.Context, *UploadUserDataRequest) (*UploadUserDataResponse, error)
	GetUserById(context.Context, *GetUserByIdRequest) (*GetUserResponse, error)
	GetUserByEmail(context.Context, *GetUserByEmailRequest) (*GetUserResponse, error)
	GetAllUsers(context.Context, *GetAllUsersRequest) (*GetAllUsersResponse, error)
}

// RegisterUserServiceServer registers srv with s.
func RegisterUserServiceServer(s grpc.ServiceRegistrar, srv UserServiceServer) {
	s.RegisterService(&UserServiceDesc, srv)
}

// UserServiceDesc is the grpc.ServiceDesc for the user service.
var UserServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*UserServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ValidateUserData", Handler: validateUserDataHandler},
		{MethodName: "UploadUserData", Handler: uploadUserDataHandler},
		{MethodName: "GetUserById", Handler: getUserByIdHandler},
		{MethodName: "GetUserByEmail", Handler: getUserByEmailHandler},
		{MethodName: "GetAllUsers", Handler: getAllUsersHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "userimport/v1/user_service.proto",
}

func validateUserDataHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ValidateUserDataRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(UserServiceServer).ValidateUserData(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ValidateUserDataMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(UserServiceServer).ValidateUserData(ctx, req.(*ValidateUserDataRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func uploadUserDataHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(UploadUserDataRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(UserServiceServer).UploadUserData(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: UploadUserDataMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(UserServiceServer).UploadUserData(ctx, req.(*UploadUserDataRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getUserByIdHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetUserByIdRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(UserServiceServer).GetUserById(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetUserByIdMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(UserServiceServer).GetUserById(ctx, req.(*GetUserByIdRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getUserByEmailHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetUserByEmailRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(UserServiceServer).GetUserByEmail(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetUserByEmailMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(UserServiceServer).GetUserByEmail(ctx, req.(*GetUserByEmailRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getAllUsersHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetAllUsersRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(UserServiceServer).GetAllUsers(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetAllUsersMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(UserServiceServer).GetAllUsers(ctx, req.(*GetAllUsersRequest))
	}
	return interceptor(ctx, in, info, handler)
}
