package rpc

import (
	"context"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client is the client API for the user service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an existing connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Dial opens a connection to the user service at target. Target may be a bare
// host:port or an http(s) URL as found in API_BASE_URL. Extra options are
// applied after the defaults.
func Dial(target string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	base := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	}
	return grpc.NewClient(NormalizeTarget(target), append(base, opts...)...)
}

// NormalizeTarget strips an http(s) scheme and trailing slashes from target.
func NormalizeTarget(target string) string {
	target = strings.TrimSpace(target)
	for _, scheme := range []string{"http://", "https://"} {
		if strings.HasPrefix(strings.ToLower(target), scheme) {
			target = target[len(scheme):]
			break
		}
	}
	return strings.TrimRight(target, "/")
}

func (c *Client) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, method, in, out, opts...)
}

func (c *Client) ValidateUserData(ctx context.Context, in *ValidateUserDataRequest, opts ...grpc.CallOption) (*ValidateUserDataResponse, error) {
	out := new(ValidateUserDataResponse)
	if err := c.invoke(ctx, ValidateUserDataMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UploadUserData(ctx context.Context, in *UploadUserDataRequest, opts ...grpc.CallOption) (*UploadUserDataResponse, error) {
	out := new(UploadUserDataResponse)
	if err := c.invoke(ctx, UploadUserDataMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetUserById(ctx context.Context, in *GetUserByIdRequest, opts ...grpc.CallOption) (*GetUserResponse, error) {
	out := new(GetUserResponse)
	if err := c.invoke(ctx, GetUserByIdMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetUserByEmail(ctx context.Context, in *GetUserByEmailRequest, opts ...grpc.CallOption) (*GetUserResponse, error) {
	out := new(GetUserResponse)
	if err := c.invoke(ctx, GetUserByEmailMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetAllUsers(ctx context.Context, in *GetAllUsersRequest, opts ...grpc.CallOption) (*GetAllUsersResponse, error) {
	out := new(GetAllUsersResponse)
	if err := c.invoke(ctx, GetAllUsersMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}
