package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const userExistsMethod = "/user.UserInternal/UserExists"

// UserClient answers identity lookups against user-service.
type UserClient struct {
	conn    grpc.ClientConnInterface
	timeout time.Duration
}

// NewUserClient constructs the wrapper. A positive timeout bounds each lookup.
func NewUserClient(conn grpc.ClientConnInterface, timeout time.Duration) *UserClient {
	return &UserClient{conn: conn, timeout: timeout}
}

// Exists reports whether userID names a known user.
func (u *UserClient) Exists(ctx context.Context, userID int64) (bool, error) {
	if u.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.timeout)
		defer cancel()
	}

	resp := new(wrapperspb.BoolValue)
	if err := u.conn.Invoke(ctx, userExistsMethod, wrapperspb.Int64(userID), resp); err != nil {
		if status.Code(err) == codes.NotFound {
			return false, nil
		}
		return false, err
	}
	return resp.GetValue(), nil
}
